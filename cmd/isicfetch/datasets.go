package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"isicfetch/pkg/fetcher"
	"isicfetch/pkg/logger"
	"isicfetch/pkg/ui"
)

// datasetsCmd represents the datasets command
var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List the datasets available in the archive",
	Long: `List the datasets available in the ISIC Archive with their IDs and
image counts. The IDs can be passed to 'download --dataset' and
'metadata --dataset' to restrict a run to one dataset.`,
	Args: cobra.NoArgs,
	Run:  runDatasets,
}

func init() {
	rootCmd.AddCommand(datasetsCmd)
}

func runDatasets(cmd *cobra.Command, args []string) {
	flags := make(map[string]interface{})
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	cfg := mustLoadConfig(flags)

	f, err := fetcher.New(cfg, logger.GetLogger())
	if err != nil {
		ui.PrintError("Failed to initialize", err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	datasets, err := f.ListDatasets(ctx)
	if err != nil {
		ui.PrintError("Failed to list datasets", err.Error())
		os.Exit(1)
	}

	if len(datasets) == 0 {
		ui.PrintWarning("No datasets found")
		return
	}

	for _, ds := range datasets {
		fmt.Printf("%s  %-40s %d images\n", ds.ID, ds.Name, ds.Count)
	}
}
