package report

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"isicfetch/internal/downloader"
)

func outcome(id string, status downloader.Status) downloader.Outcome {
	oc := downloader.Outcome{
		Task: downloader.Task{
			ID:       id,
			URL:      "https://example.com/image/" + id + "/download",
			Filename: id + ".jpg",
		},
		Status: status,
	}
	if status == downloader.StatusSucceeded {
		oc.BytesWritten = 1024
	}
	if status == downloader.StatusFailed {
		oc.FailureKind = downloader.FailureOther
		oc.Err = errors.New("boom")
	}
	return oc
}

func TestReconcilerCountsSumToTotal(t *testing.T) {
	r := NewReconciler()

	require.NoError(t, r.Record(outcome("a", downloader.StatusSucceeded)))
	require.NoError(t, r.Record(outcome("b", downloader.StatusSkipped)))
	require.NoError(t, r.Record(outcome("c", downloader.StatusFailed)))
	require.NoError(t, r.Record(outcome("d", downloader.StatusSucceeded)))

	s := r.Finalize()

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, s.Total, s.Succeeded+s.Skipped+s.Failed)
	assert.Equal(t, 2, s.Succeeded)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, int64(2048), s.BytesWritten)
	assert.NotEmpty(t, s.RunID)
}

func TestReconcilerRejectsRecordAfterFinalize(t *testing.T) {
	r := NewReconciler()
	require.NoError(t, r.Record(outcome("a", downloader.StatusSucceeded)))

	r.Finalize()

	err := r.Record(outcome("b", downloader.StatusSucceeded))
	assert.ErrorIs(t, err, ErrFinalized)
}

func TestReconcilerFinalizeIdempotent(t *testing.T) {
	r := NewReconciler()
	require.NoError(t, r.Record(outcome("a", downloader.StatusFailed)))

	first := r.Finalize()
	second := r.Finalize()

	assert.Equal(t, first.RunID, second.RunID)
	assert.Equal(t, first.FinishedAt, second.FinishedAt)
	assert.Equal(t, first.Failed, second.Failed)
}

func TestReconcilerFinalizeReturnsFrozenCopy(t *testing.T) {
	r := NewReconciler()
	require.NoError(t, r.Record(outcome("a", downloader.StatusSucceeded)))

	s := r.Finalize()
	s.Succeeded = 99

	again := r.Finalize()
	assert.Equal(t, 1, again.Succeeded)
}

func TestReconcilerRejectsUnknownStatus(t *testing.T) {
	r := NewReconciler()

	err := r.Record(downloader.Outcome{
		Task:   downloader.Task{ID: "x"},
		Status: downloader.Status("bogus"),
	})
	assert.Error(t, err)
}

func TestSummaryFailureOrderPreserved(t *testing.T) {
	r := NewReconciler()

	ids := []string{"f3", "f1", "f2"}
	for _, id := range ids {
		require.NoError(t, r.Record(outcome(id, downloader.StatusFailed)))
	}

	s := r.Finalize()
	assert.Equal(t, ids, s.FailedIDs)

	require.Len(t, s.Failures, 3)
	for i, entry := range s.Failures {
		assert.Equal(t, ids[i], entry.ID)
		assert.NotEmpty(t, entry.URL)
		assert.Equal(t, string(downloader.FailureOther), entry.Kind)
		assert.Equal(t, "boom", entry.Message)
	}
}

func TestSummaryExitCode(t *testing.T) {
	clean := &Summary{Total: 5, Succeeded: 3, Skipped: 2}
	assert.Equal(t, 0, clean.ExitCode())

	dirty := &Summary{Total: 5, Succeeded: 4, Failed: 1}
	assert.Equal(t, 1, dirty.ExitCode())
}

func TestManifestRoundTrip(t *testing.T) {
	r := NewReconciler()
	require.NoError(t, r.Record(outcome("a", downloader.StatusSucceeded)))
	require.NoError(t, r.Record(outcome("b", downloader.StatusFailed)))
	s := r.Finalize()

	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, s.WriteManifest(path))

	loaded, err := LoadManifest(path)
	require.NoError(t, err)

	assert.Equal(t, s.RunID, loaded.RunID)
	assert.Equal(t, s.Total, loaded.Total)
	assert.Equal(t, s.FailedIDs, loaded.FailedIDs)
	assert.Equal(t, s.BytesWritten, loaded.BytesWritten)
}

func TestLoadManifestMissing(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
