// Package transport fetches a dataset from its advertised HTTP-file-server
// URL to a local temp path, with the buffered-copy and size-cap discipline
// spec.md §4.5 requires. Retry/backoff lives in retry.go as an explicit
// outer driver; Fetcher.Fetch itself performs exactly one attempt and
// never sleeps or retries.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// copyBufferSize matches original_source's binaryCopy buffer size.
const copyBufferSize = 32 * 1024

// MaxObjectBytes bounds a single downloaded object, per spec.md §4.5.
const MaxObjectBytes = 100 << 30 // 100 GiB

// ErrObjectTooLarge is returned when a fetch would exceed MaxObjectBytes.
var ErrObjectTooLarge = errors.New("transport: object exceeds 100GiB cap")

// Result describes the outcome of one fetch attempt.
type Result struct {
	BytesWritten int64
	Elapsed      time.Duration
}

// Fetcher performs a single streamed HTTP GET to a local file.
type Fetcher struct {
	client *http.Client
}

// NewFetcher builds a Fetcher around client (nil means a plain
// &http.Client{}). Neither Fetcher nor WithRetry applies a timeout of its
// own: an attempt is bounded only by client's own settings and by ctx.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	return &Fetcher{client: client}
}

// Fetch performs exactly one GET of srcURI, streaming the response body to
// destPath (truncating/creating it). A non-2xx response or any transport
// error is returned as an error and counts as a failed attempt in the
// outer retry driver. The request is always closed on return (success or
// failure) so the connection is freed, per spec.md §4.5 "the request is
// aborted and reset on exit".
func (f *Fetcher) Fetch(ctx context.Context, srcURI, destPath string) (Result, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURI, nil)
	if err != nil {
		return Result{}, fmt.Errorf("transport: build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("transport: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("transport: non-2xx status %d fetching %s", resp.StatusCode, srcURI)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return Result{}, fmt.Errorf("transport: create temp file: %w", err)
	}
	defer out.Close()

	n, err := boundedCopy(out, resp.Body, MaxObjectBytes)
	if err != nil {
		return Result{BytesWritten: n}, err
	}

	return Result{BytesWritten: n, Elapsed: time.Since(start)}, nil
}

// boundedCopy streams src to dst in fixed copyBufferSize chunks, aborting
// with ErrObjectTooLarge the instant more than maxBytes would be written.
func boundedCopy(dst io.Writer, src io.Reader, maxBytes int64) (int64, error) {
	buf := make([]byte, copyBufferSize)
	var total int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			total += int64(n)
			if total > maxBytes {
				return total, ErrObjectTooLarge
			}
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return total, fmt.Errorf("transport: write temp file: %w", werr)
			}
		}
		if rerr == io.EOF {
			return total, nil
		}
		if rerr != nil {
			return total, fmt.Errorf("transport: read response body: %w", rerr)
		}
	}
}
