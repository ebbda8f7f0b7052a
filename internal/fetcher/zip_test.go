package fetcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestZIP(t *testing.T, entries map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.zip")

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
	return path
}

func TestExtractZIPSuffix(t *testing.T) {
	zipPath := writeTestZIP(t, map[string]string{
		"cities15000.txt": "line1\nline2\n",
		"readme.md":       "ignore me",
	})

	dest := t.TempDir()
	path, err := ExtractZIPSuffix(zipPath, ".txt", dest)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2\n", string(data))
}

func TestExtractZIPSuffixMissing(t *testing.T) {
	zipPath := writeTestZIP(t, map[string]string{"readme.md": "x"})

	_, err := ExtractZIPSuffix(zipPath, ".txt", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no file ending in ".txt"`)
}

func TestExtractZIPFile(t *testing.T) {
	zipPath := writeTestZIP(t, map[string]string{
		"a.txt": "aaa",
		"b.txt": "bbb",
	})

	dest := t.TempDir()
	path, err := ExtractZIPFile(zipPath, "b.txt", dest)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "bbb", string(data))

	_, err = ExtractZIPFile(zipPath, "c.txt", dest)
	assert.Error(t, err)
}

func TestExtractZIPRejectsZipSlip(t *testing.T) {
	zipPath := writeTestZIP(t, map[string]string{
		"../escape.txt": "evil",
	})

	_, err := ExtractZIPSuffix(zipPath, ".txt", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zip slip")
}
