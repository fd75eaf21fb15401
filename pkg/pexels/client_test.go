package pexels

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reels-generator/internal/types"
	"reels-generator/pkg/retry"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("Authorization"))
		assert.Equal(t, "portrait", r.URL.Query().Get("orientation"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/search":
			_, _ = w.Write([]byte(`{"photos":[{"id":1,"src":{"original":"https://img/orig.jpg","portrait":"https://img/portrait.jpg"}}]}`))
		case "/videos/search":
			if r.URL.Query().Get("query") == "nothing" {
				_, _ = w.Write([]byte(`{"videos":[]}`))
				return
			}
			_, _ = w.Write([]byte(`{"videos":[{"id":2,"video_files":[
				{"link":"https://vid/landscape.mp4","quality":"hd","width":1920,"height":1080},
				{"link":"https://vid/portrait-sd.mp4","quality":"sd","width":540,"height":960},
				{"link":"https://vid/portrait-hd.mp4","quality":"hd","width":1080,"height":1920}
			]}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestSearch(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	c := NewClient("secret", srv.URL)
	c.Retry = retry.Policy{MaxAttempts: 1}

	photo, err := c.Search(context.Background(), "mountains", types.StockPhoto)
	require.NoError(t, err)
	assert.Equal(t, "https://img/portrait.jpg", photo)

	video, err := c.Search(context.Background(), "mountains", types.StockVideo)
	require.NoError(t, err)
	assert.Equal(t, "https://vid/portrait-hd.mp4", video)

	_, err = c.Search(context.Background(), "nothing", types.StockVideo)
	assert.Error(t, err)
}

func TestPickVideoFile(t *testing.T) {
	_, ok := PickVideoFile(nil, 1080)
	assert.False(t, ok)

	f, ok := PickVideoFile([]VideoFile{{Link: "a", Width: 1920, Height: 1080}}, 1080)
	require.True(t, ok)
	assert.Equal(t, "a", f.Link)
}
