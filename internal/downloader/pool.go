package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	errs "isicfetch/pkg/errors"
	"isicfetch/pkg/logger"
	"isicfetch/pkg/ratelimit"
	"isicfetch/pkg/retry"
)

// Task pairs a record's resource reference with a destination file name
type Task struct {
	ID       string
	URL      string
	Filename string
}

// Status is the terminal state of one download attempt
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// FailureKind classifies failed downloads for the final report
type FailureKind string

const (
	FailureNotFound    FailureKind = "not_found"
	FailureRateLimited FailureKind = "rate_limited"
	FailureTimeout     FailureKind = "timeout"
	FailureOther       FailureKind = "other"
)

// Outcome is produced exactly once per submitted Task
type Outcome struct {
	Task         Task
	Status       Status
	BytesWritten int64
	SkipReason   string
	FailureKind  FailureKind
	Err          error
	Duration     time.Duration
}

// ImageFetcher streams the binary body of a resource URL
type ImageFetcher interface {
	FetchImage(ctx context.Context, url string) (io.ReadCloser, error)
}

// ImageStore persists image bodies and answers existence checks
type ImageStore interface {
	IsDownloaded(filename string) bool
	Save(r io.Reader, filename string) (int64, error)
}

// WorkerPool manages concurrent download workers. At most numWorkers
// downloads are in flight at any time.
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan Task
	resultQueue chan Outcome
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	client      ImageFetcher
	store       ImageStore
	rateLimiter ratelimit.Limiter
	retryCfg    *retry.Config
	logger      logger.Logger
}

// NewWorkerPool creates a new download worker pool. The pool stops issuing
// work when parent is cancelled; in-flight downloads abort cleanly.
func NewWorkerPool(
	parent context.Context,
	numWorkers int,
	client ImageFetcher,
	store ImageStore,
	rateLimiter ratelimit.Limiter,
	retryCfg *retry.Config,
	log logger.Logger,
) *WorkerPool {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	if log == nil {
		log = logger.GetLogger()
	}
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Task, numWorkers*2), // Buffer size = 2x workers
		resultQueue: make(chan Outcome, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		client:      client,
		store:       store,
		rateLimiter: rateLimiter,
		retryCfg:    retryCfg,
		logger:      log,
	}
}

// Start initializes and starts all workers
func (wp *WorkerPool) Start() {
	wp.logger.InfoWithFields("starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop gracefully shuts down the worker pool: no more jobs are accepted,
// queued jobs are drained, then the result queue is closed.
func (wp *WorkerPool) Stop() {
	wp.logger.Debug("stopping worker pool")

	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()

	wp.logger.Debug("worker pool stopped")
}

// Submit adds a new download task to the queue, blocking when the queue is
// full (backpressure on the producer)
func (wp *WorkerPool) Submit(task Task) error {
	select {
	case wp.jobQueue <- task:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", wp.ctx.Err())
	}
}

// Results returns the result channel for consuming download outcomes
func (wp *WorkerPool) Results() <-chan Outcome {
	return wp.resultQueue
}

// worker is the main worker routine
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for task := range wp.jobQueue {
		select {
		case <-wp.ctx.Done():
			wp.logger.DebugWithFields("worker stopping, context cancelled", map[string]interface{}{
				"worker_id": id,
			})
			return
		default:
		}

		outcome := wp.processTask(task, id)

		select {
		case wp.resultQueue <- outcome:
		case <-wp.ctx.Done():
			return
		}
	}
}

// processTask handles a single download task
func (wp *WorkerPool) processTask(task Task, workerID int) Outcome {
	start := time.Now()

	wp.logger.DebugWithFields("worker processing task", map[string]interface{}{
		"worker_id": workerID,
		"id":        task.ID,
	})

	// Idempotent re-runs: a destination with content needs no network call
	if wp.store.IsDownloaded(task.Filename) {
		wp.logger.DebugWithFields("image already present, skipping", map[string]interface{}{
			"worker_id": workerID,
			"id":        task.ID,
			"filename":  task.Filename,
		})
		return Outcome{
			Task:       task,
			Status:     StatusSkipped,
			SkipReason: "already exists",
			Duration:   time.Since(start),
		}
	}

	if wp.rateLimiter != nil && !wp.rateLimiter.Allow() {
		wp.logger.DebugWithFields("worker waiting for rate limit", map[string]interface{}{
			"worker_id": workerID,
			"id":        task.ID,
		})
		wp.rateLimiter.Wait()
	}

	written, err := wp.downloadWithRetry(task)
	if err != nil {
		kind := classifyFailure(err)

		wp.logger.ErrorWithFields("download failed", map[string]interface{}{
			"worker_id": workerID,
			"id":        task.ID,
			"url":       task.URL,
			"kind":      string(kind),
			"error":     err.Error(),
		})

		return Outcome{
			Task:        task,
			Status:      StatusFailed,
			FailureKind: kind,
			Err:         err,
			Duration:    time.Since(start),
		}
	}

	wp.logger.DebugWithFields("worker completed task", map[string]interface{}{
		"worker_id": workerID,
		"id":        task.ID,
		"size":      written,
		"duration":  time.Since(start),
	})

	return Outcome{
		Task:         task,
		Status:       StatusSucceeded,
		BytesWritten: written,
		Duration:     time.Since(start),
	}
}

// downloadWithRetry streams the resource body into the store, retrying
// transient failures per the pool's retry policy. A failed attempt restarts
// the download from scratch; the store never exposes a partial file.
func (wp *WorkerPool) downloadWithRetry(task Task) (int64, error) {
	cfg := *wp.retryCfg
	cfg.Context = wp.ctx
	cfg.Logger = wp.logger

	return retry.DoWithResult(func() (int64, error) {
		body, err := wp.client.FetchImage(wp.ctx, task.URL)
		if err != nil {
			return 0, err
		}
		defer body.Close()

		return wp.store.Save(body, task.Filename)
	}, &cfg)
}

// classifyFailure maps an error to the outcome taxonomy
func classifyFailure(err error) FailureKind {
	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Type {
		case errs.ErrorTypeNotFound:
			return FailureNotFound
		case errs.ErrorTypeRateLimit:
			return FailureRateLimited
		case errs.ErrorTypeTimeout:
			return FailureTimeout
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}

	return FailureOther
}

// QueueSize returns the current number of tasks in the queue
func (wp *WorkerPool) QueueSize() int {
	return len(wp.jobQueue)
}
