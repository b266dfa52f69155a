// Package archive implements the optional single-file de-archive step of
// the download pipeline (spec.md §4.4 stage 4): a catalogue filename with
// a recognised archive extension is expanded to a sibling file before
// integrity scanning, and the archive extension is dropped from the
// destination URI (spec.md §6).
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Extensions recognised as single-file archives, mapping the lowercase
// suffix to the expand function used for it.
var extensions = map[string]func(path string) (string, error){
	".zip": expandZip,
	".gz":  expandGzip,
}

// Recognised reports whether filename carries a recognised archive
// extension, and if so returns the filename with that extension dropped
// (used to build the destination URI per spec.md §6, independent of
// whether Expand is actually invoked yet).
func Recognised(filename string) (stripped string, ok bool) {
	for ext := range extensions {
		if strings.HasSuffix(strings.ToLower(filename), ext) {
			return filename[:len(filename)-len(ext)], true
		}
	}
	return filename, false
}

// Expand de-archives the single file at path, writing the expanded
// content to a sibling file (path with the archive extension stripped)
// and returns that path. The archive itself is left in place; callers
// are expected to delete it per spec.md §4.4's temp-file discipline. ok
// is false if path does not carry a recognised extension, in which case
// expandedPath equals path unchanged.
func Expand(path string) (expandedPath string, ok bool, err error) {
	lower := strings.ToLower(path)
	for ext, fn := range extensions {
		if strings.HasSuffix(lower, ext) {
			expanded, err := fn(path)
			if err != nil {
				return "", true, err
			}
			return expanded, true, nil
		}
	}
	return path, false, nil
}

// expandZip expands the first non-directory entry of a zip archive. No
// ecosystem zip-read library exists in the corpus that improves on the
// standard library here (see DESIGN.md), so archive/zip is used directly.
func expandZip(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("archive: open zip %s: %w", path, err)
	}
	defer r.Close()

	var entry *zip.File
	for _, f := range r.File {
		if !f.FileInfo().IsDir() {
			entry = f
			break
		}
	}
	if entry == nil {
		return "", fmt.Errorf("archive: zip %s has no file entries", path)
	}

	expandedPath := strippedPath(path, ".zip")
	if err := copyZipEntry(entry, expandedPath); err != nil {
		return "", err
	}
	return expandedPath, nil
}

func copyZipEntry(entry *zip.File, dest string) error {
	rc, err := entry.Open()
	if err != nil {
		return fmt.Errorf("archive: open zip entry %s: %w", entry.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("archive: create expanded file %s: %w", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("archive: write expanded file %s: %w", dest, err)
	}
	return nil
}

// expandGzip streams a .gz member to a sibling file using klauspost/compress,
// the same streaming-decompression library the rest of the corpus (the
// bureau-foundation-bureau example) reaches for instead of the standard
// library's compress/gzip, for its faster decoder.
func expandGzip(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("archive: open gzip %s: %w", path, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return "", fmt.Errorf("archive: read gzip header %s: %w", path, err)
	}
	defer gz.Close()

	expandedPath := strippedPath(path, ".gz")
	out, err := os.Create(expandedPath)
	if err != nil {
		return "", fmt.Errorf("archive: create expanded file %s: %w", expandedPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, gz); err != nil {
		return "", fmt.Errorf("archive: write expanded file %s: %w", expandedPath, err)
	}
	return expandedPath, nil
}

func strippedPath(path, ext string) string {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ext) {
		return path[:len(path)-len(ext)]
	}
	return path
}
