package extract

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"isicfetch/pkg/logger"
)

// Options configures archive extraction
type Options struct {
	// Workers is the number of archives extracted in parallel
	Workers int
	// Logger is the injected log sink
	Logger logger.Logger
}

// ExtractAll extracts every *.zip in zipDir into a single flat output
// directory. Entry paths inside the archives are discarded; only base names
// survive. Returns the number of files extracted.
func ExtractAll(ctx context.Context, zipDir, outputDir string, opts Options) (int, error) {
	if opts.Workers <= 0 {
		opts.Workers = 5
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	log := opts.Logger

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create extraction directory: %w", err)
	}

	archives, err := listArchives(zipDir)
	if err != nil {
		return 0, err
	}
	if len(archives) == 0 {
		return 0, fmt.Errorf("no zip archives found in %s", zipDir)
	}

	log.InfoWithFields("extracting archives", map[string]interface{}{
		"zip_dir":  zipDir,
		"output":   outputDir,
		"archives": len(archives),
		"workers":  opts.Workers,
	})

	jobs := make(chan string)
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		extracted int
		errs      []error
	)

	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for archive := range jobs {
				n, err := extractArchive(archive, outputDir)

				mu.Lock()
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(archive), err))
					log.WithError(err).WithField("archive", archive).Error("failed to extract archive")
				} else {
					extracted += n
					log.DebugWithFields("archive extracted", map[string]interface{}{
						"archive": archive,
						"files":   n,
					})
				}
				mu.Unlock()
			}
		}()
	}

	for _, archive := range archives {
		select {
		case jobs <- archive:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return extracted, ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	if len(errs) > 0 {
		return extracted, errors.Join(errs...)
	}

	return extracted, nil
}

// listArchives returns the absolute paths of all zip files in dir
func listArchives(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read zip directory: %w", err)
	}

	var archives []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".zip") {
			continue
		}
		archives = append(archives, filepath.Join(dir, entry.Name()))
	}

	return archives, nil
}

// extractArchive unpacks one archive, flattening all entries into outputDir
func extractArchive(archive, outputDir string) (int, error) {
	reader, err := zip.OpenReader(archive)
	if err != nil {
		return 0, fmt.Errorf("failed to open archive: %w", err)
	}
	defer reader.Close()

	extracted := 0
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}

		name := filepath.Base(entry.Name)
		if name == "." || name == string(filepath.Separator) {
			continue
		}

		if err := extractEntry(entry, filepath.Join(outputDir, name)); err != nil {
			return extracted, fmt.Errorf("entry %s: %w", entry.Name, err)
		}
		extracted++
	}

	return extracted, nil
}

// extractEntry writes one archive entry via a temp file and atomic rename
func extractEntry(entry *zip.File, dest string) error {
	src, err := entry.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	tempPath := dest + ".tmp"
	out, err := os.Create(tempPath)
	if err != nil {
		return err
	}

	_, err = io.Copy(out, src)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempPath)
		return err
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return closeErr
	}

	if err := os.Rename(tempPath, dest); err != nil {
		os.Remove(tempPath)
		return err
	}

	return nil
}
