package extractor

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/codeclysm/extract/v3"

	"github.com/loonghao/msvc-kit/src/internal/kiterrors"
)

// extractZip extracts archivePath's entries into destDir. A payload with
// no path filter (headers, SDK tools) goes through codeclysm/extract.Archive,
// the teacher's own zip-extraction call. A payload that needs only the
// subtree matching one architecture (an MSVC or SDK lib VSIX carrying every
// target arch in one archive, spec.md §4.7) goes through the stdlib zip
// reader directly instead, since Archive extracts everything or nothing.
func extractZip(archivePath, destDir string, filter func(string) bool) error {
	if filter == nil {
		return extractZipWhole(archivePath, destDir)
	}
	return extractZipFiltered(archivePath, destDir, filter)
}

func extractZipWhole(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return kiterrors.Wrap(kiterrors.Extraction, "open zip archive", err)
	}
	defer f.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return kiterrors.Wrap(kiterrors.Extraction, "create extraction directory", err)
	}
	if err := extract.Archive(context.Background(), f, destDir, nil); err != nil {
		return kiterrors.Wrap(kiterrors.Extraction, "extract zip archive", err)
	}
	return nil
}

func extractZipFiltered(archivePath, destDir string, filter func(string) bool) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return kiterrors.Wrap(kiterrors.Extraction, "open zip archive", err)
	}
	defer r.Close()

	for _, entry := range r.File {
		name := sanitizeArchivePath(entry.Name)
		if name == "" {
			continue
		}
		if filter != nil && !filter(name) {
			continue
		}
		target := filepath.Join(destDir, name)
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) && target != filepath.Clean(destDir) {
			return kiterrors.New(kiterrors.Extraction, "zip entry escapes destination: "+entry.Name)
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return kiterrors.Wrap(kiterrors.Extraction, "create directory for zip entry", err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return kiterrors.Wrap(kiterrors.Extraction, "create parent directory for zip entry", err)
		}
		if err := extractZipEntry(entry, target); err != nil {
			return err
		}
	}
	return nil
}

func extractZipEntry(entry *zip.File, target string) error {
	rc, err := entry.Open()
	if err != nil {
		return kiterrors.Wrap(kiterrors.Extraction, "open zip entry "+entry.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, entry.Mode().Perm()|0o600)
	if err != nil {
		return kiterrors.Wrap(kiterrors.Extraction, "create file for zip entry "+entry.Name, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return kiterrors.Wrap(kiterrors.Extraction, "write zip entry "+entry.Name, err)
	}
	return nil
}

// sanitizeArchivePath rejects absolute paths and "../" traversal
// components, returning "" for an entry that should be dropped entirely.
func sanitizeArchivePath(name string) string {
	name = filepath.ToSlash(name)
	if strings.HasPrefix(name, "/") || strings.Contains(name, "../") {
		return ""
	}
	return filepath.FromSlash(name)
}
