package archive

import (
	"context"
	"fmt"

	"isicfetch/pkg/logger"
	"isicfetch/pkg/retry"
)

// PaginationError is fatal to a run: without the full record set there is
// nothing sensible to reconcile against.
type PaginationError struct {
	Offset int
	Err    error
}

func (e *PaginationError) Error() string {
	return fmt.Sprintf("pagination failed at offset %d: %v", e.Offset, e.Err)
}

func (e *PaginationError) Unwrap() error {
	return e.Err
}

// PaginatorOptions configures a Paginator
type PaginatorOptions struct {
	// PageSize is the number of records requested per page
	PageSize int
	// StartOffset resumes listing from a prior run's cursor
	StartOffset int
	// DatasetID restricts the listing to a single dataset
	DatasetID string
	// Retry is the per-page retry policy for transient failures
	Retry *retry.Config
	// Logger is the injected log sink
	Logger logger.Logger
}

// Paginator walks the offset-based image listing lazily, one page per
// request, until the archive returns an undersized or empty page
type Paginator struct {
	client   *Client
	pageSize int
	offset   int
	dataset  string
	retryCfg *retry.Config
	logger   logger.Logger
	done     bool
}

// NewPaginator creates a paginator over the image listing endpoint
func NewPaginator(client *Client, opts PaginatorOptions) *Paginator {
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	if opts.Retry == nil {
		opts.Retry = retry.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}

	return &Paginator{
		client:   client,
		pageSize: opts.PageSize,
		offset:   opts.StartOffset,
		dataset:  opts.DatasetID,
		retryCfg: opts.Retry,
		logger:   opts.Logger,
	}
}

// Offset returns the cursor of the next unfetched page. Persisting it lets
// a later run resume without re-fetching completed pages.
func (p *Paginator) Offset() int {
	return p.offset
}

// Done reports whether the listing has been exhausted
func (p *Paginator) Done() bool {
	return p.done
}

// Next fetches the next page of records. It returns the page, whether more
// pages remain, and a *PaginationError on unrecoverable failure. Transient
// failures are retried per the configured policy before giving up.
func (p *Paginator) Next(ctx context.Context) ([]Image, bool, error) {
	if p.done {
		return nil, false, nil
	}

	pageOffset := p.offset

	p.logger.DebugWithFields("fetching listing page", map[string]interface{}{
		"offset":    pageOffset,
		"page_size": p.pageSize,
		"dataset":   p.dataset,
	})

	cfg := *p.retryCfg
	cfg.Context = ctx

	page, err := retry.DoWithResult(func() ([]Image, error) {
		return p.client.ListImages(ctx, p.pageSize, pageOffset, p.dataset)
	}, &cfg)
	if err != nil {
		return nil, false, &PaginationError{Offset: pageOffset, Err: err}
	}

	p.offset = pageOffset + len(page)

	// An empty or undersized page is the end-of-listing signal
	if len(page) < p.pageSize {
		p.done = true
	}

	p.logger.DebugWithFields("listing page fetched", map[string]interface{}{
		"offset":   pageOffset,
		"records":  len(page),
		"has_more": !p.done,
	})

	return page, !p.done, nil
}

// Run pushes every remaining record into out, in listing order, respecting
// backpressure from the channel's buffer. It stops early when ctx is
// cancelled. The channel is left open; closing it is the caller's business.
func (p *Paginator) Run(ctx context.Context, out chan<- Image) error {
	for !p.done {
		page, _, err := p.Next(ctx)
		if err != nil {
			return err
		}

		for _, record := range page {
			select {
			case out <- record:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return nil
}
