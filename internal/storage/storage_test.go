package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestFetchMediaUsesContentTypeForExtension(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	path, err := NewFetcher().FetchMedia(context.Background(), srv.URL+"/some/picture", dir, 3)
	if err != nil {
		t.Fatalf("FetchMedia: %v", err)
	}

	if filepath.Base(path) != "3.jpg" {
		t.Errorf("saved as %s, want 3.jpg", filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading fetched file: %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestFetchMediaFallsBackToURLExtension(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("mp4-bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	path, err := NewFetcher().FetchMedia(context.Background(), srv.URL+"/clip.MP4?token=abc", dir, 1)
	if err != nil {
		t.Fatalf("FetchMedia: %v", err)
	}
	if filepath.Base(path) != "1.mp4" {
		t.Errorf("saved as %s, want 1.mp4", filepath.Base(path))
	}
}

func TestFetchMediaRejectsUnsupportedTypes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>not media</html>"))
	}))
	defer srv.Close()

	if _, err := NewFetcher().FetchMedia(context.Background(), srv.URL+"/page", t.TempDir(), 1); err == nil {
		t.Fatal("expected error for unsupported media type")
	}
}

func TestFetchRetriesRetryableStatus(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png"))
	}))
	defer srv.Close()

	path, err := NewFetcher().FetchMedia(context.Background(), srv.URL+"/flaky", t.TempDir(), 1)
	if err != nil {
		t.Fatalf("FetchMedia after retries: %v", err)
	}
	if attempts != 3 {
		t.Errorf("server saw %d attempts, want 3", attempts)
	}
	if filepath.Base(path) != "1.png" {
		t.Errorf("saved as %s, want 1.png", filepath.Base(path))
	}
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := NewFetcher().FetchMedia(context.Background(), srv.URL+"/gone.jpg", t.TempDir(), 1); err == nil {
		t.Fatal("expected error for 404")
	}
	if attempts != 1 {
		t.Errorf("server saw %d attempts, want 1 (404 is not retryable)", attempts)
	}
}

func TestFetchEmptyBodyIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
	}))
	defer srv.Close()

	if _, err := NewFetcher().FetchMedia(context.Background(), srv.URL+"/empty.png", t.TempDir(), 1); err == nil {
		t.Fatal("expected error for empty body")
	}
}

func TestExtensionFor(t *testing.T) {
	cases := []struct {
		contentType string
		url         string
		want        string
	}{
		{"image/jpeg", "http://x/y", ".jpg"},
		{"video/mp4", "http://x/y", ".mp4"},
		{"video/quicktime", "http://x/y", ".mov"},
		{"audio/mpeg", "http://x/y", ".mp3"},
		{"image/png; charset=binary", "http://x/y", ".png"},
		{"application/octet-stream", "http://x/clip.webm", ".webm"},
		{"", "http://x/photo.JPG?sig=1", ".jpg"},
		{"text/plain", "http://x/noext", ""},
	}
	for _, c := range cases {
		if got := extensionFor(c.contentType, c.url); got != c.want {
			t.Errorf("extensionFor(%q, %q) = %q, want %q", c.contentType, c.url, got, c.want)
		}
	}
}
