package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"isicfetch/internal/downloader"
	"isicfetch/pkg/archive"
	"isicfetch/pkg/checkpoint"
	"isicfetch/pkg/config"
	"isicfetch/pkg/logger"
	"isicfetch/pkg/ratelimit"
	"isicfetch/pkg/report"
	"isicfetch/pkg/retry"
	"isicfetch/pkg/storage"
	"isicfetch/pkg/ui"
)

// ManifestFile is the run summary written into the output directory
const ManifestFile = "manifest.json"

// Fetcher orchestrates the bulk-fetch pipeline: paginator feeding a bounded
// worker pool feeding the reconciler
type Fetcher struct {
	client      *archive.Client
	rateLimiter ratelimit.Limiter
	config      *config.Config
	logger      logger.Logger
}

// New creates a new Fetcher instance from validated configuration
func New(cfg *config.Config, log logger.Logger) (*Fetcher, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	client := archive.NewClient(cfg.Archive.BaseURL, cfg.Download.DownloadTimeout, log)
	if cfg.Archive.Token != "" {
		client.SetToken(cfg.Archive.Token)
	} else {
		log.Info("no API token configured, sending requests anonymously")
	}

	rpm := cfg.RateLimit.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}

	return &Fetcher{
		client:      client,
		rateLimiter: ratelimit.NewTokenBucket(rpm, time.Minute),
		config:      cfg,
		logger:      log,
	}, nil
}

// Client returns the underlying archive client
func (f *Fetcher) Client() *archive.Client {
	return f.client
}

// retryConfig builds the explicit retry policy shared by the paginator and
// the worker pool
func (f *Fetcher) retryConfig() *retry.Config {
	return &retry.Config{
		MaxAttempts: f.config.Download.RetryAttempts,
		Backoff: &retry.ExponentialBackoff{
			BaseDelay:    f.config.RateLimit.RetryDelay,
			MaxDelay:     2 * time.Minute,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		RetryIf: retry.DefaultRetryIf,
		Logger:  f.logger,
	}
}

// DownloadOptions controls one bulk download run
type DownloadOptions struct {
	// Dataset restricts the run to a single dataset ID
	Dataset string
	// Resume continues from an existing checkpoint's cursor
	Resume bool
	// ForceRestart discards an existing checkpoint
	ForceRestart bool
	// Progress, when set, receives per-item updates for terminal display
	Progress *ui.StatusTracker
}

// DownloadImages runs the full pipeline and returns the finalized summary.
// The summary's exit code is non-zero when any item failed; a pagination
// failure additionally returns an error because the record set is unknown.
func (f *Fetcher) DownloadImages(ctx context.Context, opts DownloadOptions) (*report.Summary, error) {
	outputDir := f.config.Output.BaseDirectory

	store, err := storage.NewManager(outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage manager: %w", err)
	}

	cp, checkpointMgr, err := f.prepareCheckpoint(outputDir, opts)
	if err != nil {
		return nil, err
	}

	f.logger.InfoWithFields("starting bulk download", map[string]interface{}{
		"output":      outputDir,
		"dataset":     opts.Dataset,
		"offset":      cp.Offset,
		"page_size":   f.config.Download.PageSize,
		"concurrency": f.config.Download.ConcurrentDownloads,
	})

	pool := downloader.NewWorkerPool(
		ctx,
		f.config.Download.ConcurrentDownloads,
		f.client,
		store,
		f.rateLimiter,
		f.retryConfig(),
		f.logger,
	)
	pool.Start()

	reconciler := report.NewReconciler()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.collectOutcomes(pool.Results(), reconciler, checkpointMgr, cp, opts.Progress)
	}()

	paginator := archive.NewPaginator(f.client, archive.PaginatorOptions{
		PageSize:    f.config.Download.PageSize,
		StartOffset: cp.Offset,
		DatasetID:   opts.Dataset,
		Retry:       f.retryConfig(),
		Logger:      f.logger,
	})

	var runErr error
	totalQueued := cp.TotalQueued

feed:
	for !paginator.Done() {
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
			break feed
		default:
		}

		page, _, err := paginator.Next(ctx)
		if err != nil {
			runErr = err
			break feed
		}

		for _, record := range page {
			task := downloader.Task{
				ID:       record.ID,
				URL:      archive.ImageDownloadURL(f.client.BaseURL(), record.ID),
				Filename: record.Filename(),
			}
			if err := pool.Submit(task); err != nil {
				runErr = err
				break feed
			}
			totalQueued++
		}
		if opts.Progress != nil {
			opts.Progress.AddQueued(len(page))
		}

		if err := checkpointMgr.UpdateOffset(cp, paginator.Offset(), totalQueued); err != nil {
			f.logger.WithError(err).Warn("failed to update checkpoint cursor")
		}
	}

	pool.Stop()
	wg.Wait()

	if opts.Progress != nil {
		opts.Progress.Finish()
	}

	summary := reconciler.Finalize()

	manifestPath := filepath.Join(outputDir, ManifestFile)
	if err := summary.WriteManifest(manifestPath); err != nil {
		f.logger.WithError(err).Error("failed to write manifest")
	} else {
		f.logger.WithField("path", manifestPath).Info("manifest written")
	}

	f.logger.InfoWithFields("bulk download finished", map[string]interface{}{
		"run_id":    summary.RunID,
		"total":     summary.Total,
		"succeeded": summary.Succeeded,
		"skipped":   summary.Skipped,
		"failed":    summary.Failed,
	})

	// The checkpoint only survives interrupted or incomplete runs
	if runErr == nil && summary.Failed == 0 {
		if err := checkpointMgr.Delete(); err != nil {
			f.logger.WithError(err).Warn("failed to delete checkpoint")
		}
	}

	if runErr != nil {
		return summary, runErr
	}

	return summary, nil
}

// prepareCheckpoint resolves resume/restart semantics for the run
func (f *Fetcher) prepareCheckpoint(outputDir string, opts DownloadOptions) (*checkpoint.Checkpoint, *checkpoint.Manager, error) {
	mgr := checkpoint.NewManager(outputDir, f.logger)

	if opts.ForceRestart && mgr.Exists() {
		if err := mgr.Delete(); err != nil {
			f.logger.WithError(err).Warn("failed to delete existing checkpoint")
		}
	}

	if opts.Resume && mgr.Exists() {
		cp, err := mgr.Load()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load checkpoint: %w", err)
		}
		if cp != nil {
			if cp.Dataset != opts.Dataset {
				return nil, nil, fmt.Errorf("checkpoint is for dataset %q, not %q; use --force-restart", cp.Dataset, opts.Dataset)
			}
			f.logger.InfoWithFields("resuming from checkpoint", map[string]interface{}{
				"offset":           cp.Offset,
				"total_downloaded": cp.TotalDownloaded,
			})
			return cp, mgr, nil
		}
	}

	if mgr.Exists() && !opts.Resume {
		return nil, nil, fmt.Errorf("a previous download checkpoint exists in %s: use --resume to continue or --force-restart to start fresh", outputDir)
	}

	cp, err := mgr.Create(opts.Dataset, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create checkpoint: %w", err)
	}

	return cp, mgr, nil
}

// collectOutcomes drains the pool's result channel into the reconciler
func (f *Fetcher) collectOutcomes(
	results <-chan downloader.Outcome,
	reconciler *report.Reconciler,
	checkpointMgr *checkpoint.Manager,
	cp *checkpoint.Checkpoint,
	progress *ui.StatusTracker,
) {
	for oc := range results {
		if err := reconciler.Record(oc); err != nil {
			f.logger.WithError(err).WithField("id", oc.Task.ID).Error("failed to record outcome")
			continue
		}

		switch oc.Status {
		case downloader.StatusSucceeded:
			if progress != nil {
				progress.RecordSucceeded()
			}
			if err := checkpointMgr.RecordDownload(cp, oc.Task.ID, oc.Task.Filename); err != nil {
				f.logger.WithError(err).Warn("failed to record download in checkpoint")
			}
		case downloader.StatusSkipped:
			if progress != nil {
				progress.RecordSkipped()
			}
		case downloader.StatusFailed:
			if progress != nil {
				progress.RecordFailed()
			}
			f.logger.ErrorWithFields("item failed", map[string]interface{}{
				"id":   oc.Task.ID,
				"url":  oc.Task.URL,
				"kind": string(oc.FailureKind),
			})
		}

		if progress != nil {
			progress.PrintProgress()
		}
	}
}

// MetadataOptions controls a metadata-only run
type MetadataOptions struct {
	// Dataset restricts the listing to a single dataset ID
	Dataset string
	// Offset resumes the listing from a prior cursor
	Offset int
	// Limit caps the number of records collected; 0 means the whole listing
	Limit int
	// IDs, when non-empty, fetches detail records for exactly these
	// identifiers instead of paginating the listing
	IDs []string
	// OutFile is the JSON file the records are written to
	OutFile string
}

// FetchMetadata collects metadata records and writes them to a JSON file.
// Returns the number of records written.
func (f *Fetcher) FetchMetadata(ctx context.Context, opts MetadataOptions) (int, error) {
	var (
		records []archive.Image
		err     error
	)

	if len(opts.IDs) > 0 {
		records, err = f.fetchByIDs(ctx, opts.IDs)
	} else {
		records, err = f.fetchListing(ctx, opts)
	}
	if err != nil {
		return 0, err
	}

	if err := writeRecords(opts.OutFile, records); err != nil {
		return 0, err
	}

	f.logger.InfoWithFields("metadata written", map[string]interface{}{
		"records": len(records),
		"path":    opts.OutFile,
	})

	return len(records), nil
}

// fetchListing paginates the image listing into memory
func (f *Fetcher) fetchListing(ctx context.Context, opts MetadataOptions) ([]archive.Image, error) {
	pageSize := f.config.Download.PageSize
	if opts.Limit > 0 && opts.Limit < pageSize {
		pageSize = opts.Limit
	}

	paginator := archive.NewPaginator(f.client, archive.PaginatorOptions{
		PageSize:    pageSize,
		StartOffset: opts.Offset,
		DatasetID:   opts.Dataset,
		Retry:       f.retryConfig(),
		Logger:      f.logger,
	})

	if opts.Limit > 0 {
		var records []archive.Image
		for !paginator.Done() && len(records) < opts.Limit {
			page, _, err := paginator.Next(ctx)
			if err != nil {
				return nil, err
			}
			records = append(records, page...)
		}
		if len(records) > opts.Limit {
			records = records[:opts.Limit]
		}
		return records, nil
	}

	// Bounded channel between producer and collector; the paginator
	// suspends once the buffer fills.
	out := make(chan archive.Image, pageSize)

	var records []archive.Image
	done := make(chan struct{})
	go func() {
		defer close(done)
		for record := range out {
			records = append(records, record)
		}
	}()

	err := paginator.Run(ctx, out)
	close(out)
	<-done

	if err != nil {
		return nil, err
	}
	return records, nil
}

// fetchByIDs fetches full detail records for an explicit identifier list
func (f *Fetcher) fetchByIDs(ctx context.Context, ids []string) ([]archive.Image, error) {
	retrier := retry.NewRetrier(f.retryConfig()).WithContext(ctx)

	records := make([]archive.Image, 0, len(ids))
	for _, id := range ids {
		if !f.rateLimiter.Allow() {
			f.rateLimiter.Wait()
		}

		var record *archive.Image
		err := retrier.Do(func() error {
			var opErr error
			record, opErr = f.client.GetImage(ctx, id)
			return opErr
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch metadata for %s: %w", id, err)
		}
		records = append(records, *record)
	}
	return records, nil
}

// writeRecords writes the records as indented JSON via temp file and rename
func writeRecords(path string, records []archive.Image) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create metadata directory: %w", err)
		}
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace metadata file: %w", err)
	}

	return nil
}

// ListDatasets fetches the datasets available in the archive
func (f *Fetcher) ListDatasets(ctx context.Context) ([]archive.Dataset, error) {
	return f.client.ListDatasets(ctx, 100, 0)
}
