// Package integrity is the interface to the external "integrity scan +
// metadata extract" collaborator spec.md §4.6 treats as opaque (a real
// NetCDF validator in production). This repo ships one concrete,
// self-contained implementation that stands in for it: ChecksumExtractor
// computes a streamed MD5 digest and treats any non-empty, readable file
// as VALID. The reconcile package only ever talks to the Extractor
// interface, so a production deployment swaps in a real NetCDF-aware
// implementation without touching reconciliation logic.
package integrity

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/aims-ereefs/thredds-mirror/metadatastore"
)

// Extractor is the interface to the integrity + metadata extraction
// collaborator, per spec.md §4.6.
type Extractor interface {
	// Extract inspects localFile and returns a tentative DatasetMetadata
	// with Status set to VALID if the file is well-formed, CORRUPTED
	// otherwise, and Checksum set to the content hash computed over the
	// exact bytes on disk (algorithm-tagged, e.g. "MD5:<hex>").
	Extract(ctx context.Context, definitionID, datasetID, destURI, localFile string, srcLastModifiedMs int64) (*metadatastore.DatasetMetadata, error)

	// DeepScan is the stricter validator invoked only when content has
	// actually changed (checksum differs from the persisted record). It
	// must be safe to call on large files: implementations stream rather
	// than buffer the whole file. A non-empty return is the scan's error
	// message; an empty return means the file passed the scan.
	DeepScan(ctx context.Context, localFile string) (string, error)
}

// ChecksumExtractor is the bundled Extractor implementation: MD5 over the
// file bytes, VALID iff the file is non-empty and fully readable.
type ChecksumExtractor struct{}

// NewChecksumExtractor constructs the bundled Extractor.
func NewChecksumExtractor() *ChecksumExtractor {
	return &ChecksumExtractor{}
}

func (c *ChecksumExtractor) Extract(ctx context.Context, definitionID, datasetID, destURI, localFile string, srcLastModifiedMs int64) (*metadatastore.DatasetMetadata, error) {
	sum, size, err := hashFile(localFile)
	if err != nil {
		return nil, fmt.Errorf("integrity: extract %s: %w", localFile, err)
	}

	record := &metadatastore.DatasetMetadata{
		DefinitionID:   definitionID,
		DatasetID:      datasetID,
		FileURI:        destURI,
		LastModifiedMs: srcLastModifiedMs,
	}

	if size == 0 {
		record.Status = metadatastore.StatusCorrupted
		record.ErrorMessage = "downloaded file is empty"
		return record, nil
	}

	record.Status = metadatastore.StatusValid
	record.Checksum = "MD5:" + sum
	return record, nil
}

func (c *ChecksumExtractor) DeepScan(ctx context.Context, localFile string) (string, error) {
	f, err := os.Open(localFile)
	if err != nil {
		return "", fmt.Errorf("integrity: deep scan open %s: %w", localFile, err)
	}
	defer f.Close()

	// Streamed pass so DeepScan is safe on arbitrarily large files, per
	// spec.md §4.6. The bundled implementation has nothing stronger to
	// check than "the bytes are fully readable"; a real NetCDF validator
	// would parse structure here instead.
	if _, err := io.Copy(io.Discard, f); err != nil {
		return fmt.Sprintf("deep scan read failed: %v", err), nil
	}
	return "", nil
}

func hashFile(path string) (hexDigest string, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := md5.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
