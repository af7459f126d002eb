package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Manager handles file storage operations and duplicate detection for the
// download output directory
type Manager struct {
	outputDir string
	existing  map[string]bool
	mu        sync.RWMutex
}

// NewManager creates a new storage manager. Failure to create the output
// directory aborts the whole run, so it surfaces here.
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	manager := &Manager{
		outputDir: outputDir,
		existing:  make(map[string]bool),
	}

	if err := manager.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}

	return manager, nil
}

// scanExistingFiles records already downloaded files for duplicate detection.
// Zero-byte files are ignored: a crashed run never leaves a partial file at
// a final path, but an empty one is still not a completed download.
func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) == ".tmp" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.Size() > 0 {
			m.existing[entry.Name()] = true
		}
	}

	return nil
}

// IsDownloaded checks if a file with the given name is already present
// with a non-zero size
func (m *Manager) IsDownloaded(filename string) bool {
	m.mu.RLock()
	cached := m.existing[filename]
	m.mu.RUnlock()

	if cached {
		return true
	}

	info, err := os.Stat(filepath.Join(m.outputDir, filename))
	if err != nil || info.Size() == 0 {
		return false
	}

	m.mu.Lock()
	m.existing[filename] = true
	m.mu.Unlock()

	return true
}

// Save streams data to a temporary path and atomically renames it into
// place, so a crash mid-write never leaves a corrupt file at the final path
func (m *Manager) Save(r io.Reader, filename string) (int64, error) {
	finalPath := filepath.Join(m.outputDir, filename)
	tempPath := finalPath + ".tmp"

	out, err := os.Create(tempPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}

	written, err := io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempPath)
		return 0, fmt.Errorf("failed to write image data: %w", err)
	}

	if closeErr != nil {
		os.Remove(tempPath)
		return 0, fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return 0, fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.mu.Lock()
	m.existing[filename] = true
	m.mu.Unlock()

	return written, nil
}

// OutputDir returns the output directory path
func (m *Manager) OutputDir() string {
	return m.outputDir
}

// DownloadedCount returns the number of files known to be present
func (m *Manager) DownloadedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.existing)
}

// ListEntries returns the names of every entry in a directory, sorted,
// with in-flight temporary files left out
func ListEntries(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".tmp" {
			continue
		}
		names = append(names, entry.Name())
	}

	return names, nil
}
