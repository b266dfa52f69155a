// Package pathutil provides secure path handling utilities this worker
// uses to keep catalogue-supplied filenames from escaping the temp
// directory or the destination prefix, ported from the teacher's
// internal/pathutil request-path sanitizer and adapted from "HTTP request
// path under a served root" to "THREDDS dataset filename under a download
// or destination directory".
package pathutil

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrPathEscape is returned whenever a catalogue-supplied path component
// would resolve outside the directory it is meant to be confined to.
var ErrPathEscape = errors.New("pathutil: path escapes its root directory")

// Clean sanitizes a relative path to prevent directory traversal: it
// resolves "." and ".." components and rejects any path that would climb
// above its own root, the same defence the teacher's Clean applied to
// inbound HTTP request paths, now applied to dataset filenames and
// sub-directories pulled out of a remote THREDDS catalogue.
func Clean(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	trimmed := strings.TrimPrefix(path, "/")
	cleaned := filepath.Clean("/" + trimmed)

	depth := 0
	for _, part := range strings.Split(trimmed, "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			depth--
			if depth < 0 {
				return "", ErrPathEscape
			}
		default:
			depth++
		}
	}

	return strings.TrimPrefix(cleaned, "/"), nil
}

// SafeJoin joins root with rel, ensuring the result cannot resolve outside
// root even via "../" segments or a symlink planted at an intermediate
// component. Used wherever a catalogue-controlled filename becomes part
// of a local filesystem path (the download temp path, a FILE-sink
// destination).
func SafeJoin(root, rel string) (string, error) {
	cleanRel, err := Clean(rel)
	if err != nil {
		return "", fmt.Errorf("pathutil: %s: %w", rel, err)
	}

	cleanRoot := filepath.Clean(root)
	joined := filepath.Join(cleanRoot, cleanRel)

	resolved, err := filepath.EvalSymlinks(joined)
	if err != nil {
		// The file may not exist yet (this is the common case: the
		// destination of a not-yet-downloaded dataset) — fall back to a
		// purely lexical containment check.
		relPath, relErr := filepath.Rel(cleanRoot, joined)
		if relErr != nil || strings.HasPrefix(relPath, "..") {
			return "", fmt.Errorf("pathutil: %s: %w", rel, ErrPathEscape)
		}
		return joined, nil
	}

	relPath, relErr := filepath.Rel(cleanRoot, resolved)
	if relErr != nil || strings.HasPrefix(relPath, "..") {
		return "", fmt.Errorf("pathutil: %s: %w", rel, ErrPathEscape)
	}
	return joined, nil
}

// ValidateFilename rejects a catalogue-supplied filename component that
// carries null bytes, control characters other than tab, or an embedded
// path separator —
// defence in depth alongside Clean/SafeJoin for the places a filename is
// used as a single path segment rather than joined onto a root.
func ValidateFilename(name string) error {
	if name == "" {
		return fmt.Errorf("pathutil: empty filename")
	}
	if strings.ContainsRune(name, 0) {
		return ErrPathEscape
	}
	for _, r := range name {
		if r < 32 && r != '\t' {
			return ErrPathEscape
		}
	}
	if name == "." || name == ".." || strings.ContainsAny(name, "/\\") {
		return ErrPathEscape
	}
	return nil
}
