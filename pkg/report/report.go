package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"isicfetch/internal/downloader"
)

// ErrFinalized is returned when an outcome is recorded after Finalize.
// That is a programming error in the caller, not a runtime condition.
var ErrFinalized = errors.New("report: summary already finalized")

// Summary aggregates the outcomes of one run. Counts always sum to the
// total number of records observed.
type Summary struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`

	SucceededIDs []string `json:"succeeded_ids,omitempty"`
	SkippedIDs   []string `json:"skipped_ids,omitempty"`
	// FailedIDs is ordered by recording time; a later run can retry
	// exactly this subset.
	FailedIDs []string       `json:"failed_ids,omitempty"`
	Failures  []FailureEntry `json:"failures,omitempty"`

	BytesWritten int64 `json:"bytes_written"`
}

// FailureEntry carries enough context for a precise retry of one item
type FailureEntry struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ExitCode is zero only when nothing failed
func (s *Summary) ExitCode() int {
	if s.Failed > 0 {
		return 1
	}
	return 0
}

// Reconciler accumulates download outcomes across a run. It is the only
// component in the pipeline that needs mutual exclusion; outcomes arrive
// out of order from concurrent workers.
//
// State machine: Collecting (accepting outcomes) -> Finalized (frozen).
type Reconciler struct {
	mu        sync.Mutex
	finalized bool
	summary   Summary
}

// NewReconciler creates a reconciler in the Collecting state
func NewReconciler() *Reconciler {
	return &Reconciler{
		summary: Summary{
			RunID:     uuid.NewString(),
			StartedAt: time.Now().UTC(),
		},
	}
}

// Record accumulates one outcome. Each outcome must be recorded exactly once.
func (r *Reconciler) Record(oc downloader.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		return ErrFinalized
	}

	r.summary.Total++

	switch oc.Status {
	case downloader.StatusSucceeded:
		r.summary.Succeeded++
		r.summary.BytesWritten += oc.BytesWritten
		r.summary.SucceededIDs = append(r.summary.SucceededIDs, oc.Task.ID)
	case downloader.StatusSkipped:
		r.summary.Skipped++
		r.summary.SkippedIDs = append(r.summary.SkippedIDs, oc.Task.ID)
	case downloader.StatusFailed:
		r.summary.Failed++
		r.summary.FailedIDs = append(r.summary.FailedIDs, oc.Task.ID)
		entry := FailureEntry{
			ID:   oc.Task.ID,
			URL:  oc.Task.URL,
			Kind: string(oc.FailureKind),
		}
		if oc.Err != nil {
			entry.Message = oc.Err.Error()
		}
		r.summary.Failures = append(r.summary.Failures, entry)
	default:
		return fmt.Errorf("report: unknown outcome status %q", oc.Status)
	}

	return nil
}

// Finalize freezes the summary and transitions the reconciler to the
// Finalized state. Further Record calls are rejected. Finalize is
// idempotent; repeated calls return the same frozen summary.
func (r *Reconciler) Finalize() *Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.finalized {
		r.finalized = true
		r.summary.FinishedAt = time.Now().UTC()
	}

	frozen := r.summary
	return &frozen
}

// WriteManifest writes the summary as JSON, atomically, so a future
// resume/retry invocation never reads a torn manifest
func (s *Summary) WriteManifest(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace manifest: %w", err)
	}

	return nil
}

// LoadManifest reads a manifest written by a prior run
func LoadManifest(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var summary Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	return &summary, nil
}
