package extractor

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func TestDetectFormatZipByMagicBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payload.zip")
	writeTestZip(t, path, map[string]string{"a.txt": "hello"})

	format, err := DetectFormat(path)
	require.NoError(t, err)
	assert.Equal(t, FormatZip, format)
}

func TestExtractZipFilteredWritesFiles(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "payload.zip")
	writeTestZip(t, archivePath, map[string]string{
		"include/foo.h": "content-a",
		"lib/x64/a.lib": "content-b",
	})

	destDir := filepath.Join(dir, "out")
	require.NoError(t, extractZip(archivePath, destDir, func(string) bool { return true }))

	data, err := os.ReadFile(filepath.Join(destDir, "include", "foo.h"))
	require.NoError(t, err)
	assert.Equal(t, "content-a", string(data))
}

func TestExtractZipAppliesPathFilter(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "payload.zip")
	writeTestZip(t, archivePath, map[string]string{
		"lib/x64/a.lib": "keep",
		"lib/arm/a.lib": "drop",
	})

	destDir := filepath.Join(dir, "out")
	filter := func(p string) bool {
		return filepath.ToSlash(p) == "lib/x64/a.lib"
	}
	require.NoError(t, extractZip(archivePath, destDir, filter))

	_, err := os.Stat(filepath.Join(destDir, "lib", "x64", "a.lib"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(destDir, "lib", "arm", "a.lib"))
	assert.True(t, os.IsNotExist(err))
}

func TestExtractAllSkipsWhenDoneMarkerPresent(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "payload.zip")
	writeTestZip(t, archivePath, map[string]string{"a.txt": "hello"})

	destDir := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(destDir, 0o755))
	require.NoError(t, os.WriteFile(destDir+doneMarkerSuffix, nil, 0o644))

	ex := New(Options{})
	results := ex.ExtractAll(context.Background(), []Task{{ArchivePath: archivePath, DestDir: destDir}})
	require.Len(t, results, 1)
	assert.True(t, results[0].Skipped)
	assert.NoError(t, results[0].Err)
}

func TestExtractAllIsIdempotentAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "payload.zip")
	writeTestZip(t, archivePath, map[string]string{"a.txt": "hello"})
	destDir := filepath.Join(dir, "out")

	ex := New(Options{})
	first := ex.ExtractAll(context.Background(), []Task{{ArchivePath: archivePath, DestDir: destDir}})
	require.NoError(t, first[0].Err)
	assert.False(t, first[0].Skipped)

	second := ex.ExtractAll(context.Background(), []Task{{ArchivePath: archivePath, DestDir: destDir}})
	require.NoError(t, second[0].Err)
	assert.True(t, second[0].Skipped)
}

func TestSanitizeArchivePathRejectsTraversal(t *testing.T) {
	assert.Equal(t, "", sanitizeArchivePath("../../etc/passwd"))
	assert.Equal(t, "", sanitizeArchivePath("/etc/passwd"))
	assert.NotEqual(t, "", sanitizeArchivePath("lib/x64/a.lib"))
}
