package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"isicfetch/pkg/extract"
	"isicfetch/pkg/logger"
	"isicfetch/pkg/ui"
)

var (
	// Unzip command flags
	unzipDir     string
	unzipOutput  string
	unzipWorkers int
)

// unzipCmd represents the unzip command
var unzipCmd = &cobra.Command{
	Use:   "unzip",
	Short: "Extract downloaded zip batches into one flat directory",
	Long: `Extract every zip archive in a directory into a single flat output
directory. Directory structure inside the archives is discarded; only the
file names survive. Archives produced by the archive's batch download
endpoint nest images under per-dataset folders, which this flattens.`,
	Example: `  # Extract all batches downloaded into ./zips
  isicfetch unzip --zip-dir ./zips --output ./images

  # Use more extraction workers
  isicfetch unzip --zip-dir ./zips --output ./images --workers 8`,
	Args: cobra.NoArgs,
	Run:  runUnzip,
}

func init() {
	rootCmd.AddCommand(unzipCmd)

	unzipCmd.Flags().StringVar(&unzipDir, "zip-dir", "", "directory containing the zip archives (required)")
	unzipCmd.Flags().StringVarP(&unzipOutput, "output", "o", "", "directory to extract into (required)")
	unzipCmd.Flags().IntVar(&unzipWorkers, "workers", 5, "number of archives extracted in parallel")
	unzipCmd.MarkFlagRequired("zip-dir")
	unzipCmd.MarkFlagRequired("output")
}

func runUnzip(cmd *cobra.Command, args []string) {
	flags := make(map[string]interface{})
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	mustLoadConfig(flags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	count, err := extract.ExtractAll(ctx, unzipDir, unzipOutput, extract.Options{
		Workers: unzipWorkers,
		Logger:  logger.GetLogger(),
	})
	if err != nil {
		if count > 0 {
			ui.PrintWarning(fmt.Sprintf("Extracted %d files before failing", count))
		}
		ui.PrintError("Extraction failed", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess(fmt.Sprintf("Extracted %d files to %s", count, unzipOutput))
}
