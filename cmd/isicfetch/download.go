package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"isicfetch/pkg/auth"
	"isicfetch/pkg/config"
	"isicfetch/pkg/fetcher"
	"isicfetch/pkg/logger"
	"isicfetch/pkg/ui"
)

var (
	// Download command flags
	outputDir    string
	concurrent   int
	pageSize     int
	datasetID    string
	timeout      int
	maxRetries   int
	accountName  string
	resumeRun    bool
	forceRestart bool
)

// downloadCmd represents the download command
var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download images from the archive in bulk",
	Long: `Download images from the ISIC Archive into a single output directory.

Images already present with a non-zero size are skipped without touching the
network, so re-running the command completes an interrupted download. An
explicit checkpoint additionally remembers the listing cursor; use --resume
to continue from it or --force-restart to discard it.

A manifest.json with the outcome of every item is written into the output
directory when the run finishes. The command exits non-zero if any item
failed.`,
	Example: `  # Download every image in the archive
  isicfetch download --output ./images

  # Download one dataset with higher concurrency
  isicfetch download --dataset 5627f42f9fc3c132be08d852 --concurrent 8

  # Continue an interrupted run
  isicfetch download --resume

  # Start over, discarding the old checkpoint
  isicfetch download --force-restart`,
	Args: cobra.NoArgs,
	Run:  runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory for downloads")
	downloadCmd.Flags().IntVar(&concurrent, "concurrent", 0, "number of concurrent downloads")
	downloadCmd.Flags().IntVar(&pageSize, "page-size", 0, "listing page size (max 300)")
	downloadCmd.Flags().StringVarP(&datasetID, "dataset", "d", "", "restrict the download to one dataset ID")
	downloadCmd.Flags().IntVar(&timeout, "timeout", 0, "per-request timeout in seconds")
	downloadCmd.Flags().IntVar(&maxRetries, "max-retries", 0, "maximum retry attempts per request")
	downloadCmd.Flags().StringVarP(&accountName, "account", "a", "", "use a specific stored account's token")
	downloadCmd.Flags().BoolVar(&resumeRun, "resume", false, "resume from the last checkpoint")
	downloadCmd.Flags().BoolVar(&forceRestart, "force-restart", false, "discard any existing checkpoint and start fresh")
}

func runDownload(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig(downloadFlagOverrides())

	f, err := fetcher.New(cfg, logger.GetLogger())
	if err != nil {
		ui.PrintError("Failed to initialize", err.Error())
		os.Exit(1)
	}

	ui.PrintInfo("Archive", cfg.Archive.BaseURL)
	ui.PrintInfo("Output", cfg.Output.BaseDirectory)
	if datasetID != "" {
		ui.PrintInfo("Dataset", datasetID)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var progress *ui.StatusTracker
	if !quiet {
		progress = ui.NewStatusTracker()
	}

	summary, err := f.DownloadImages(ctx, fetcher.DownloadOptions{
		Dataset:      datasetID,
		Resume:       resumeRun,
		ForceRestart: forceRestart,
		Progress:     progress,
	})
	if err != nil {
		if summary != nil {
			printSummary(summary.Total, summary.Succeeded, summary.Skipped, summary.Failed)
		}
		ui.PrintError("Download aborted", err.Error())
		os.Exit(1)
	}

	printSummary(summary.Total, summary.Succeeded, summary.Skipped, summary.Failed)

	if code := summary.ExitCode(); code != 0 {
		ui.PrintError(fmt.Sprintf("%d of %d items failed; see manifest.json for details", summary.Failed, summary.Total))
		os.Exit(code)
	}

	ui.PrintSuccess("Download completed")
}

// downloadFlagOverrides maps the set command flags onto config keys
func downloadFlagOverrides() map[string]interface{} {
	flags := make(map[string]interface{})
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if concurrent > 0 {
		flags["concurrent"] = concurrent
	}
	if pageSize > 0 {
		flags["page-size"] = pageSize
	}
	if timeout > 0 {
		flags["timeout"] = time.Duration(timeout) * time.Second
	}
	if maxRetries > 0 {
		flags["max-retries"] = maxRetries
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	return flags
}

func printSummary(total, succeeded, skipped, failed int) {
	ui.PrintInfo("Total", fmt.Sprintf("%d", total))
	ui.PrintInfo("Succeeded", fmt.Sprintf("%d", succeeded))
	ui.PrintInfo("Skipped", fmt.Sprintf("%d", skipped))
	ui.PrintInfo("Failed", fmt.Sprintf("%d", failed))
}

// mustLoadConfig loads configuration, resolves stored credentials, and
// initializes logging; any failure is fatal for the command
func mustLoadConfig(flags map[string]interface{}) *config.Config {
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	logger.Initialize(&cfg.Logging)

	if cfg.Archive.Token == "" {
		if manager, err := auth.NewManager(); err == nil {
			lookup := accountName
			if lookup == "" {
				lookup = cfg.Archive.Username
			}
			if account, err := manager.Retrieve(lookup); err == nil {
				cfg.Archive.Token = account.Token
				cfg.Archive.Username = account.Username
			}
		}
	}

	return cfg
}
