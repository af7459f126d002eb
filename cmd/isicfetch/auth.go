package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"isicfetch/pkg/archive"
	"isicfetch/pkg/auth"
	"isicfetch/pkg/logger"
	"isicfetch/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage ISIC Archive credentials",
	Long: `Manage stored ISIC Archive credentials.

Logging in exchanges your username and password for an API token, which is
stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (ISICFETCH_TOKEN, read-only)

Your password is never stored; only the token is.`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Log in and store an API token",
	Long: `Authenticate against the archive and store the resulting API token
securely. You will be prompted for your password; it is used once for the
token exchange and discarded.`,
	Example: `  # Interactive login
  isicfetch auth login

  # Login with username
  isicfetch auth login researcher@example.org`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [username]",
	Short: "Remove a stored token",
	Long:  `Remove the stored API token for an account.`,
	Args:  cobra.MaximumNArgs(1),
	Run:   runLogout,
}

// statusCmd represents the auth status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored accounts",
	Long:  `Show all stored accounts with masked tokens.`,
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)
}

func runLogin(cmd *cobra.Command, args []string) {
	flags := make(map[string]interface{})
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	cfg := mustLoadConfig(flags)

	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	var username string
	if len(args) > 0 {
		username = args[0]
	}

	reader := bufio.NewReader(os.Stdin)

	if username == "" {
		fmt.Print("Username: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			ui.PrintError("Failed to read username", err.Error())
			os.Exit(1)
		}
		username = strings.TrimSpace(input)
	}

	if username == "" {
		ui.PrintError("Username is required")
		os.Exit(1)
	}

	fmt.Print("Password: ")
	password, err := readPassword()
	if err != nil {
		ui.PrintError("Failed to read password", err.Error())
		os.Exit(1)
	}
	fmt.Println()

	client := archive.NewClient(cfg.Archive.BaseURL, 30*time.Second, logger.GetLogger())

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	token, err := client.Login(ctx, username, password)
	if err != nil {
		ui.PrintError("Login failed", err.Error())
		os.Exit(1)
	}

	account := &auth.Account{Username: username, Token: token}
	if err := manager.Store(account); err != nil {
		ui.PrintError("Failed to store credentials", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess(fmt.Sprintf("Logged in as %s", username))
	ui.PrintInfo("Token", auth.MaskToken(token))
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	var username string
	if len(args) > 0 {
		username = args[0]
	} else {
		accounts, _ := manager.List()
		switch len(accounts) {
		case 0:
			ui.PrintWarning("No stored accounts")
			return
		case 1:
			username = accounts[0].Username
		default:
			ui.PrintError("Multiple accounts stored; specify one", "isicfetch auth logout <username>")
			os.Exit(1)
		}
	}

	if err := manager.Delete(username); err != nil {
		ui.PrintError("Failed to remove credentials", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess(fmt.Sprintf("Logged out %s", username))
}

func runStatus(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	accounts, err := manager.List()
	if err != nil || len(accounts) == 0 {
		ui.PrintWarning("No stored accounts")
		return
	}

	for _, account := range accounts {
		fmt.Printf("%-30s %s  (stored %s)\n",
			account.Username,
			auth.MaskToken(account.Token),
			account.LastModified.Format("2006-01-02 15:04"))
	}
}

// readPassword reads a line from stdin without echoing it
func readPassword() (string, error) {
	data, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
