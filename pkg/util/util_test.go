package util

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reels-generator/pkg/retry"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloaderFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/clip.mp4":
			_, _ = w.Write([]byte("video-bytes"))
		case "/image":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("png-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	d := NewDownloader(5*time.Second, nil)
	d.Retry = retry.Policy{MaxAttempts: 3}
	dir := t.TempDir()

	got, err := d.Fetch(context.Background(), srv.URL+"/clip.mp4", dir)
	require.NoError(t, err)
	assert.Equal(t, ".mp4", filepath.Ext(got))
	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "video-bytes", string(data))

	got, err = d.Fetch(context.Background(), srv.URL+"/image", dir)
	require.NoError(t, err)
	assert.Equal(t, ".png", filepath.Ext(got))

	_, err = d.Fetch(context.Background(), srv.URL+"/missing.jpg", dir)
	require.Error(t, err)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestDownloaderRejectsBadScheme(t *testing.T) {
	_, err := NewDownloader(time.Second, nil).Fetch(context.Background(), "file:///etc/passwd", t.TempDir())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "invalid media url"))
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))
	dst := filepath.Join(dir, "nested", "b.txt")

	require.NoError(t, CopyFile(src, dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}
