package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	progressBar   = "█"
	progressEmpty = "░"
)

// StatusTracker tracks the progress of a bulk download. It is safe for
// concurrent use; outcomes arrive from multiple workers.
type StatusTracker struct {
	mu        sync.Mutex
	queued    int
	succeeded int
	skipped   int
	failed    int
	startTime time.Time
}

// NewStatusTracker creates a new status tracker
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{startTime: time.Now()}
}

// AddQueued raises the number of items known to be in flight
func (st *StatusTracker) AddQueued(n int) {
	st.mu.Lock()
	st.queued += n
	st.mu.Unlock()
}

// RecordSucceeded counts one successful download
func (st *StatusTracker) RecordSucceeded() {
	st.mu.Lock()
	st.succeeded++
	st.mu.Unlock()
}

// RecordSkipped counts one skipped item
func (st *StatusTracker) RecordSkipped() {
	st.mu.Lock()
	st.skipped++
	st.mu.Unlock()
}

// RecordFailed counts one failed item
func (st *StatusTracker) RecordFailed() {
	st.mu.Lock()
	st.failed++
	st.mu.Unlock()
}

// Rate returns the average completion rate in items per minute
func (st *StatusTracker) Rate() float64 {
	st.mu.Lock()
	done := st.succeeded + st.skipped + st.failed
	st.mu.Unlock()

	elapsed := time.Since(st.startTime).Minutes()
	if elapsed == 0 {
		return 0
	}
	return float64(done) / elapsed
}

// bar renders a fixed-width progress bar against the queued total
func bar(done, total, width int) string {
	if total <= 0 {
		return strings.Repeat(progressEmpty, width)
	}
	filled := done * width / total
	if filled > width {
		filled = width
	}
	return strings.Repeat(progressBar, filled) + strings.Repeat(progressEmpty, width-filled)
}

// PrintProgress redraws the progress line in place
func (st *StatusTracker) PrintProgress() {
	if quietMode.Load() {
		return
	}

	st.mu.Lock()
	queued := st.queued
	succeeded := st.succeeded
	skipped := st.skipped
	failed := st.failed
	st.mu.Unlock()

	done := succeeded + skipped + failed
	fmt.Printf("\r[%s] %d/%d  %s %d  %s %d  %s %d",
		bar(done, queued, 20), done, queued,
		Green("ok"), succeeded,
		Dim("skip"), skipped,
		Red("fail"), failed)
}

// Finish terminates the progress line
func (st *StatusTracker) Finish() {
	if quietMode.Load() {
		return
	}
	fmt.Println()
}
