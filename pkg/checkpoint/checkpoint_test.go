package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestCreateLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, nil)

	cp, err := m.Create("ds1", 0)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !m.Exists() {
		t.Fatal("checkpoint file missing after Create")
	}

	if err := m.UpdateOffset(cp, 150, 150); err != nil {
		t.Fatalf("UpdateOffset failed: %v", err)
	}
	if err := m.RecordDownload(cp, "img001", "ISIC_0000001.jpg"); err != nil {
		t.Fatalf("RecordDownload failed: %v", err)
	}

	loaded, err := m.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("Load returned nil for existing checkpoint")
	}

	if loaded.Dataset != "ds1" {
		t.Errorf("Dataset = %q, want ds1", loaded.Dataset)
	}
	if loaded.Offset != 150 {
		t.Errorf("Offset = %d, want 150", loaded.Offset)
	}
	if loaded.TotalQueued != 150 {
		t.Errorf("TotalQueued = %d, want 150", loaded.TotalQueued)
	}
	if loaded.TotalDownloaded != 1 {
		t.Errorf("TotalDownloaded = %d, want 1", loaded.TotalDownloaded)
	}
	if !loaded.IsDownloaded("img001") {
		t.Error("recorded download missing")
	}
	if loaded.IsDownloaded("img999") {
		t.Error("IsDownloaded true for unknown image")
	}
}

// During a run the listing cursor and the download bookkeeping are
// updated from different goroutines; no update may be lost.
func TestConcurrentCursorAndDownloadUpdates(t *testing.T) {
	const n = 100

	dir := t.TempDir()
	m := NewManager(dir, nil)

	cp, err := m.Create("ds1", 0)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 1; i <= n; i++ {
			if err := m.UpdateOffset(cp, i, i); err != nil {
				t.Errorf("UpdateOffset failed: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("img%03d", i)
			if err := m.RecordDownload(cp, id, id+".jpg"); err != nil {
				t.Errorf("RecordDownload failed: %v", err)
				return
			}
		}
	}()
	wg.Wait()

	loaded, err := m.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Offset != n {
		t.Errorf("Offset = %d, want %d", loaded.Offset, n)
	}
	if loaded.TotalDownloaded != n {
		t.Errorf("TotalDownloaded = %d, want %d", loaded.TotalDownloaded, n)
	}
	if len(loaded.DownloadedImages) != n {
		t.Errorf("DownloadedImages has %d entries, want %d", len(loaded.DownloadedImages), n)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".tmp" {
			t.Errorf("temp file %s left behind", entry.Name())
		}
	}
}

func TestLoadMissingReturnsNil(t *testing.T) {
	m := NewManager(t.TempDir(), nil)

	cp, err := m.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cp != nil {
		t.Error("expected nil checkpoint when none exists")
	}
	if m.Exists() {
		t.Error("Exists true with no checkpoint file")
	}
}

func TestDelete(t *testing.T) {
	m := NewManager(t.TempDir(), nil)

	if _, err := m.Create("", 0); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := m.Delete(); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if m.Exists() {
		t.Error("checkpoint still exists after Delete")
	}

	// Deleting a missing checkpoint is not an error
	if err := m.Delete(); err != nil {
		t.Errorf("second Delete failed: %v", err)
	}
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, nil)

	if _, err := m.Create("ds1", 10); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".tmp" {
			t.Errorf("temp file %s left behind", entry.Name())
		}
	}
}

func TestLoadCorruptCheckpoint(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, nil)

	if err := os.WriteFile(filepath.Join(dir, checkpointFile), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Load(); err == nil {
		t.Error("expected error loading corrupt checkpoint")
	}
}
