package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Fetcher downloads record attachments with bounded concurrency. A failed
// download is logged and dropped; it never fails the owning record.
type Fetcher struct {
	dir         string
	concurrency int
	maxBytes    int64
	timeout     time.Duration
	client      *http.Client
	logger      *slog.Logger
}

func NewFetcher(dir string, concurrency int, maxBytes int64, timeout time.Duration, logger *slog.Logger) *Fetcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Fetcher{
		dir:         dir,
		concurrency: concurrency,
		maxBytes:    maxBytes,
		timeout:     timeout,
		client:      &http.Client{},
		logger:      logger.With("component", "attachments"),
	}
}

// DownloadAll fetches every url into dir/bucketKey/ and returns the local
// paths of the ones that succeeded, in input order.
func (f *Fetcher) DownloadAll(ctx context.Context, urls []string, bucketKey string) []string {
	if len(urls) == 0 {
		return nil
	}

	target := filepath.Join(f.dir, filepath.FromSlash(bucketKey))
	if err := os.MkdirAll(target, 0o755); err != nil {
		f.logger.Error("creating attachment dir", "dir", target, "error", err)
		return nil
	}

	results := make([]string, len(urls))
	sem := make(chan struct{}, f.concurrency)
	var wg sync.WaitGroup

	for i, url := range urls {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			local, err := f.download(ctx, url, target, i)
			if err != nil {
				f.logger.Warn("attachment dropped", "url", url, "error", err)
				return
			}
			results[i] = local
		}(i, url)
	}
	wg.Wait()

	var paths []string
	for _, p := range results {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

func (f *Fetcher) download(ctx context.Context, url, dir string, ordinal int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	name := fmt.Sprintf("%d%s", ordinal, extensionFor(url, resp.Header.Get("Content-Type")))
	dest := filepath.Join(dir, name)

	out, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	defer out.Close()

	// Read one byte past the ceiling so oversized files are detected, not
	// silently truncated.
	n, err := io.Copy(out, io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		os.Remove(dest)
		return "", err
	}
	if n > f.maxBytes {
		os.Remove(dest)
		return "", fmt.Errorf("exceeds %d byte limit", f.maxBytes)
	}
	return dest, nil
}

func extensionFor(url, contentType string) string {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	if ext := path.Ext(url); ext != "" && len(ext) <= 5 {
		return ext
	}
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	return ".bin"
}
