package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"isicfetch/pkg/storage"
	"isicfetch/pkg/ui"
)

var (
	// Gather command flags
	gatherPath    string
	gatherOutFile string
)

// gatherCmd represents the gather command
var gatherCmd = &cobra.Command{
	Use:   "gather",
	Short: "Write a directory's file listing to a JSON file",
	Long: `Write the names of every file in a directory to a JSON file. Useful
for recording which images a download run produced, for example to diff
two output directories or to build an IDs file for 'metadata --ids-file'.`,
	Example: `  # Record the contents of an output directory
  isicfetch gather --path ./images --output listing.json`,
	Args: cobra.NoArgs,
	Run:  runGather,
}

func init() {
	rootCmd.AddCommand(gatherCmd)

	gatherCmd.Flags().StringVarP(&gatherPath, "path", "p", "", "directory to list (required)")
	gatherCmd.Flags().StringVarP(&gatherOutFile, "output", "o", "", "JSON file to write the listing to (required)")
	gatherCmd.MarkFlagRequired("path")
	gatherCmd.MarkFlagRequired("output")
}

func runGather(cmd *cobra.Command, args []string) {
	flags := make(map[string]interface{})
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	mustLoadConfig(flags)

	names, err := storage.ListEntries(gatherPath)
	if err != nil {
		ui.PrintError("Failed to list directory", err.Error())
		os.Exit(1)
	}

	if err := writeListing(gatherOutFile, names); err != nil {
		ui.PrintError("Failed to write listing", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess(fmt.Sprintf("Wrote %d entries to %s", len(names), gatherOutFile))
}

// writeListing writes the names as indented JSON via temp file and rename
func writeListing(path string, names []string) error {
	data, err := json.MarshalIndent(names, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal listing: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write listing file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace listing file: %w", err)
	}

	return nil
}
