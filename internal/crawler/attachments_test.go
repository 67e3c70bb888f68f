package crawler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestFetcher(t *testing.T, maxBytes int64) *Fetcher {
	t.Helper()
	return NewFetcher(t.TempDir(), 3, maxBytes, 5*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFetcher_DownloadAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()

	f := newTestFetcher(t, 1024)
	urls := []string{srv.URL + "/a.jpg", srv.URL + "/b.jpg"}

	paths := f.DownloadAll(context.Background(), urls, "reviews/abc123")
	if len(paths) != 2 {
		t.Fatalf("downloaded %d files, want 2", len(paths))
	}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("reading %s: %v", p, err)
		}
		if string(data) != "jpeg-bytes" {
			t.Errorf("content = %q", data)
		}
		if !strings.Contains(filepath.ToSlash(p), "reviews/abc123") {
			t.Errorf("path %s not under bucket key", p)
		}
	}
}

func TestFetcher_PartialFailureIsDropped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "bad.jpg") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newTestFetcher(t, 1024)
	paths := f.DownloadAll(context.Background(), []string{
		srv.URL + "/good.jpg",
		srv.URL + "/bad.jpg",
		srv.URL + "/also-good.jpg",
	}, "reviews/fp")

	if len(paths) != 2 {
		t.Fatalf("downloaded %d files, want 2 (failure dropped, not raised)", len(paths))
	}
}

func TestFetcher_ByteCeiling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 2048))
	}))
	defer srv.Close()

	f := newTestFetcher(t, 1024)
	paths := f.DownloadAll(context.Background(), []string{srv.URL + "/big.jpg"}, "reviews/fp")
	if len(paths) != 0 {
		t.Fatalf("oversized download should be dropped, got %v", paths)
	}
}

func TestFetcher_EmptyInput(t *testing.T) {
	f := newTestFetcher(t, 1024)
	if paths := f.DownloadAll(context.Background(), nil, "reviews/fp"); paths != nil {
		t.Errorf("DownloadAll(nil) = %v, want nil", paths)
	}
}

func TestExtensionFor(t *testing.T) {
	tests := []struct {
		url         string
		contentType string
		want        string
	}{
		{"https://img.test/photo.jpg", "", ".jpg"},
		{"https://img.test/photo.png?type=w800", "", ".png"},
		{"https://img.test/photo", "image/webp", ".webp"},
		{"https://img.test/photo", "", ".bin"},
	}
	for _, tt := range tests {
		if got := extensionFor(tt.url, tt.contentType); got != tt.want {
			t.Errorf("extensionFor(%q, %q) = %q, want %q", tt.url, tt.contentType, got, tt.want)
		}
	}
}
