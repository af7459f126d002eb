// Package archive provides the HTTP client and pagination layer for the
// ISIC Archive API.
//
// The Client performs single GET round trips and classifies every failure
// into the typed errors of pkg/errors; it never retries on its own, retry
// policy belongs to the caller. The Paginator walks the offset-based image
// listing lazily, one page per request, and treats an undersized or empty
// page as the end-of-listing signal.
//
// Basic usage:
//
//	client := archive.NewClient(archive.DefaultBaseURL, 60*time.Second, log)
//	client.SetToken(token)
//
//	p := archive.NewPaginator(client, archive.PaginatorOptions{PageSize: 50})
//	for !p.Done() {
//		page, _, err := p.Next(ctx)
//		if err != nil {
//			return err // pagination failures are fatal to a run
//		}
//		for _, record := range page {
//			// queue record.ID for download
//		}
//	}
//
// The cursor returned by Offset can be persisted and fed back through
// PaginatorOptions.StartOffset to resume a listing without re-fetching
// completed pages.
package archive
