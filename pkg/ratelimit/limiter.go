// Package ratelimit paces requests against the archive API, which
// throttles aggressive clients well before a bulk download finishes.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter is the request pacing contract shared by the paginator and
// the download workers
type Limiter interface {
	// Allow reports whether a request may go out now
	Allow() bool
	// Wait blocks until a request may go out
	Wait()
	// Reset returns the limiter to its initial state
	Reset()
}

// TokenBucket allows a fixed number of requests per window. The whole
// budget is restored at once when the window rolls over, mirroring how
// the API's own per-minute quota behaves.
type TokenBucket struct {
	mu          sync.Mutex
	budget      int
	remaining   int
	window      time.Duration
	windowStart time.Time
}

// NewTokenBucket creates a limiter allowing budget requests per window
func NewTokenBucket(budget int, window time.Duration) *TokenBucket {
	return &TokenBucket{
		budget:      budget,
		remaining:   budget,
		window:      window,
		windowStart: time.Now(),
	}
}

// Allow consumes one request from the current window's budget
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.rollWindow()

	if tb.remaining == 0 {
		return false
	}
	tb.remaining--
	return true
}

// Wait sleeps out the remainder of the window until a request fits
func (tb *TokenBucket) Wait() {
	for !tb.Allow() {
		tb.mu.Lock()
		sleep := tb.window - time.Since(tb.windowStart)
		tb.mu.Unlock()

		if sleep <= 0 {
			// Another caller may grab the fresh budget first
			sleep = 100 * time.Millisecond
		}
		time.Sleep(sleep)
	}
}

// Reset restores the full budget and restarts the window
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.remaining = tb.budget
	tb.windowStart = time.Now()
}

func (tb *TokenBucket) rollWindow() {
	now := time.Now()
	if now.Sub(tb.windowStart) >= tb.window {
		tb.remaining = tb.budget
		tb.windowStart = now
	}
}
