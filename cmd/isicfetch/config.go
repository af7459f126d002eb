package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"isicfetch/pkg/auth"
	"isicfetch/pkg/config"
	"isicfetch/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage isicfetch configuration files.

Configuration is loaded from, in order of priority:
  - Command line flags
  - Environment variables (ISICFETCH_*)
  - Configuration file
  - Default values`,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Run:   runConfigInit,
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Show the effective configuration from all sources. The API token is masked.`,
	Run:   runConfigShow,
}

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Run:   runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

const exampleConfig = `# isicfetch configuration file
#
# Environment variables prefixed with ISICFETCH_ override these values,
# e.g. ISICFETCH_TOKEN, ISICFETCH_OUTPUT_DIR, ISICFETCH_CONCURRENT_DOWNLOADS.

# Archive connection
archive:
  # API base URL
  base_url: "https://isic-archive.com/api/v1"

  # API token; prefer 'isicfetch auth login' over storing it here
  token: ""

  # Account username used to look up a stored token
  username: ""

# Download behavior
download:
  # Number of concurrent downloads (1-20)
  concurrent_downloads: 5

  # Retry attempts per request
  retry_attempts: 3

  # Listing page size (1-300)
  page_size: 50

# Rate limiting
rate_limit:
  requests_per_minute: 60
  max_retries: 3

# Output location
output:
  base_directory: "./isic_images"
  overwrite_existing: false

# Logging
logging:
  # debug, info, warn, error
  level: "info"

  # Optional log file; empty logs to stderr only
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) {
	configPath := configFile
	if configPath == "" {
		configPath = "isicfetch.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		os.Exit(1)
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		ui.PrintError("Failed to create configuration file", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Run 'isicfetch auth login' to store an API token")
	fmt.Println("2. Run 'isicfetch config validate' to check the configuration")
	fmt.Println("3. Start downloading with 'isicfetch download'")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	displayCfg := *cfg
	if displayCfg.Archive.Token != "" {
		displayCfg.Archive.Token = auth.MaskToken(displayCfg.Archive.Token)
	}

	data, err := yaml.Marshal(&displayCfg)
	if err != nil {
		ui.PrintError("Failed to format configuration", err.Error())
		os.Exit(1)
	}

	fmt.Print(string(data))
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	path := configFile
	if path == "" {
		possiblePaths := []string{
			"isicfetch.yaml",
			".isicfetch.yaml",
			filepath.Join(os.Getenv("HOME"), ".isicfetch.yaml"),
			filepath.Join(os.Getenv("HOME"), ".config", "isicfetch", "config.yaml"),
		}
		for _, candidate := range possiblePaths {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			ui.PrintError("No configuration file found", "specify a file with --config")
			os.Exit(1)
		}
	}

	ui.PrintInfo("Validating", path)

	cfg, err := config.Load(path, nil)
	if err != nil {
		ui.PrintError("Configuration is invalid", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Configuration is valid")
	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Archive: %s\n", cfg.Archive.BaseURL)
	fmt.Printf("  Output directory: %s\n", cfg.Output.BaseDirectory)
	fmt.Printf("  Concurrent downloads: %d\n", cfg.Download.ConcurrentDownloads)
	fmt.Printf("  Page size: %d\n", cfg.Download.PageSize)
	fmt.Printf("  Rate limit: %d requests/minute\n", cfg.RateLimit.RequestsPerMinute)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
}
