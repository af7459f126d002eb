package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"isicfetch/pkg/logger"
)

const checkpointFile = ".isicfetch.checkpoint.json"

// Checkpoint records the state of a download session so a later run can
// resume from the listing cursor instead of re-fetching completed pages
type Checkpoint struct {
	Dataset          string            `json:"dataset"`
	Offset           int               `json:"offset"`
	DownloadedImages map[string]string `json:"downloaded_images"` // id -> filename
	TotalQueued      int               `json:"total_queued"`
	TotalDownloaded  int               `json:"total_downloaded"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	Version          int               `json:"version"`
}

// IsDownloaded checks if an image was recorded as downloaded
func (cp *Checkpoint) IsDownloaded(imageID string) bool {
	_, exists := cp.DownloadedImages[imageID]
	return exists
}

// Manager handles checkpoint persistence inside the output directory.
// All checkpoint mutation goes through the Manager, which serializes
// writers: the listing cursor and the per-download bookkeeping are
// updated from different goroutines during a run.
type Manager struct {
	mu     sync.Mutex
	path   string
	logger logger.Logger
}

// NewManager creates a checkpoint manager rooted at the output directory
func NewManager(outputDir string, log logger.Logger) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{
		path:   filepath.Join(outputDir, checkpointFile),
		logger: log,
	}
}

// Create creates and saves a fresh checkpoint
func (m *Manager) Create(dataset string, offset int) (*Checkpoint, error) {
	cp := &Checkpoint{
		Dataset:          dataset,
		Offset:           offset,
		DownloadedImages: make(map[string]string),
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
		Version:          1,
	}

	if err := m.Save(cp); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.InfoWithFields("checkpoint created", map[string]interface{}{
		"dataset": dataset,
		"path":    m.path,
	})

	return cp, nil
}

// Load loads an existing checkpoint; (nil, nil) when none exists
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var cp Checkpoint
	if err := json.NewDecoder(file).Decode(&cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if cp.DownloadedImages == nil {
		cp.DownloadedImages = make(map[string]string)
	}

	m.logger.InfoWithFields("checkpoint loaded", map[string]interface{}{
		"dataset":          cp.Dataset,
		"offset":           cp.Offset,
		"total_downloaded": cp.TotalDownloaded,
		"updated_at":       cp.UpdatedAt,
	})

	return &cp, nil
}

// Save saves the checkpoint to disk atomically
func (m *Manager) Save(cp *Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(cp)
}

// save writes the checkpoint while holding the manager lock
func (m *Manager) save(cp *Checkpoint) error {
	cp.UpdatedAt = time.Now()

	tempPath := m.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cp); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, m.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	return nil
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	m.logger.Debug("checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// UpdateOffset advances the listing cursor and persists the checkpoint
func (m *Manager) UpdateOffset(cp *Checkpoint, offset, totalQueued int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp.Offset = offset
	cp.TotalQueued = totalQueued
	return m.save(cp)
}

// RecordDownload records a successfully downloaded image
func (m *Manager) RecordDownload(cp *Checkpoint, imageID, filename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp.DownloadedImages[imageID] = filename
	cp.TotalDownloaded++
	return m.save(cp)
}
