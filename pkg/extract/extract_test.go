package extract

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeZip creates a zip archive with the given entry name -> content pairs
func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range entries {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

func TestExtractAllFlattensNestedPaths(t *testing.T) {
	zipDir := t.TempDir()
	outDir := t.TempDir()

	writeZip(t, filepath.Join(zipDir, "batch1.zip"), map[string]string{
		"dataset-a/ISIC_0000001.jpg": "img1",
		"dataset-a/ISIC_0000002.jpg": "img2",
	})
	writeZip(t, filepath.Join(zipDir, "batch2.zip"), map[string]string{
		"deeply/nested/dir/ISIC_0000003.jpg": "img3",
	})

	count, err := ExtractAll(context.Background(), zipDir, outDir, Options{Workers: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// Entries land directly in the output directory, base names only
	for name, content := range map[string]string{
		"ISIC_0000001.jpg": "img1",
		"ISIC_0000002.jpg": "img2",
		"ISIC_0000003.jpg": "img3",
	} {
		data, err := os.ReadFile(filepath.Join(outDir, name))
		require.NoError(t, err, "missing %s", name)
		assert.Equal(t, content, string(data))
	}

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, entry.IsDir(), "directory %s should not exist in flat output", entry.Name())
	}
}

func TestExtractAllSkipsDirectoryEntries(t *testing.T) {
	zipDir := t.TempDir()
	outDir := t.TempDir()

	path := filepath.Join(zipDir, "dirs.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	_, err = w.Create("folder/")
	require.NoError(t, err)
	entry, err := w.Create("folder/file.jpg")
	require.NoError(t, err)
	entry.Write([]byte("data"))
	require.NoError(t, w.Close())
	f.Close()

	count, err := ExtractAll(context.Background(), zipDir, outDir, Options{Workers: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestExtractAllNoArchives(t *testing.T) {
	_, err := ExtractAll(context.Background(), t.TempDir(), t.TempDir(), Options{})
	assert.Error(t, err)
}

func TestExtractAllIgnoresNonZipFiles(t *testing.T) {
	zipDir := t.TempDir()
	outDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(zipDir, "notes.txt"), []byte("x"), 0644))
	writeZip(t, filepath.Join(zipDir, "only.ZIP"), map[string]string{"a.jpg": "a"})

	count, err := ExtractAll(context.Background(), zipDir, outDir, Options{Workers: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestExtractAllCorruptArchive(t *testing.T) {
	zipDir := t.TempDir()
	outDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(zipDir, "broken.zip"), []byte("not a zip"), 0644))
	writeZip(t, filepath.Join(zipDir, "good.zip"), map[string]string{"ok.jpg": "ok"})

	count, err := ExtractAll(context.Background(), zipDir, outDir, Options{Workers: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.zip")

	// The good archive still extracted
	assert.Equal(t, 1, count)
	_, statErr := os.Stat(filepath.Join(outDir, "ok.jpg"))
	assert.NoError(t, statErr)
}

func TestExtractAllLeavesNoTempFiles(t *testing.T) {
	zipDir := t.TempDir()
	outDir := t.TempDir()

	writeZip(t, filepath.Join(zipDir, "b.zip"), map[string]string{"x.jpg": "x", "y.jpg": "y"})

	_, err := ExtractAll(context.Background(), zipDir, outDir, Options{Workers: 1})
	require.NoError(t, err)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotEqual(t, ".tmp", filepath.Ext(entry.Name()))
	}
}
