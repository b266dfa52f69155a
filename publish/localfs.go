package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// LocalFSPublisher implements Publisher over the local filesystem, ported
// from the teacher's backends/localfs adapter: destination URIs are
// file:// URIs naming an absolute path (spec.md §6 "FILE -> URI is
// file:///absolute/path").
type LocalFSPublisher struct{}

// NewLocalFSPublisher constructs a LocalFSPublisher.
func NewLocalFSPublisher() *LocalFSPublisher {
	return &LocalFSPublisher{}
}

func (p *LocalFSPublisher) Publish(ctx context.Context, tempPath, destURI string) error {
	destPath, err := filePathFromURI(destURI)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("publish: create parent directories for %s: %w", destPath, err)
	}

	// rename is atomic when tempPath and destPath share a filesystem (the
	// expected case: downloadDir and destination live under the same
	// mount). When they don't, spec.md §6 requires falling back to
	// copy-then-delete.
	if err := os.Rename(tempPath, destPath); err != nil {
		if errors.Is(err, os.ErrExist) || isCrossDeviceError(err) {
			return copyThenDelete(tempPath, destPath)
		}
		return fmt.Errorf("publish: rename %s to %s: %w", tempPath, destPath, err)
	}
	return nil
}

func (p *LocalFSPublisher) Exists(ctx context.Context, destURI string) (bool, error) {
	destPath, err := filePathFromURI(destURI)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(destPath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("publish: stat %s: %w", destPath, err)
}

func copyThenDelete(tempPath, destPath string) error {
	src, err := os.Open(tempPath)
	if err != nil {
		return fmt.Errorf("publish: open temp file %s: %w", tempPath, err)
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("publish: create destination %s: %w", destPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("publish: copy to %s: %w", destPath, err)
	}
	if err := os.Remove(tempPath); err != nil {
		return fmt.Errorf("publish: remove temp file %s after copy: %w", tempPath, err)
	}
	return nil
}

func filePathFromURI(destURI string) (string, error) {
	u, err := url.Parse(destURI)
	if err != nil {
		return "", fmt.Errorf("publish: invalid destination URI %s: %w", destURI, err)
	}
	if u.Scheme != "" && u.Scheme != "file" {
		return "", fmt.Errorf("publish: %s is not a file:// URI", destURI)
	}
	if u.Path != "" {
		return u.Path, nil
	}
	return destURI, nil
}

// isCrossDeviceError reports whether err is the platform's "invalid
// cross-device link" rename failure, which os.Rename surfaces as a plain
// *PathError with no portable sentinel to compare against.
func isCrossDeviceError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "cross-device")
}
