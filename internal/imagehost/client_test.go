package imagehost

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, APIKey: "img-key"}, zaptest.NewLogger(t))
}

func testUpload() Upload {
	return Upload{
		Name:        "game-1",
		Filename:    "cover.png",
		ContentType: "image/png",
		Body:        strings.NewReader("\x89PNG fake"),
	}
}

func TestUploadSuccess(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/1/upload", r.URL.Path)
		assert.Equal(t, "img-key", r.Header.Get("X-API-Key"))

		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "game-1", r.FormValue("name"))

		f, hdr, err := r.FormFile("source")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		assert.Equal(t, "cover.png", hdr.Filename)
		data, _ := io.ReadAll(f)
		assert.Equal(t, "\x89PNG fake", string(data))

		_, _ = io.WriteString(w, `{"status_code":200,"image":{"url":"https://i.example/a.png",
			"display_url":"https://i.example/a-display.png","medium":{"url":"https://i.example/a-md.png"}}}`)
	})

	img, err := c.Upload(context.Background(), testUpload())
	require.NoError(t, err)
	assert.Equal(t, &Image{
		ImageURL:   "https://i.example/a.png",
		DisplayURL: "https://i.example/a-display.png",
		ThumbURL:   "https://i.example/a-md.png",
	}, img)
}

func TestUploadFallsBackToImageURL(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status_code":200,"image":{"url":"https://i.example/b.png"}}`)
	})

	img, err := c.Upload(context.Background(), testUpload())
	require.NoError(t, err)
	assert.Equal(t, "https://i.example/b.png", img.DisplayURL)
	assert.Equal(t, "https://i.example/b.png", img.ThumbURL)
}

func TestUploadUpstreamError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"status_code":400,"status_txt":"Bad Request","error":{"message":"Invalid API key"}}`)
	})

	_, err := c.Upload(context.Background(), testUpload())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid API key")
}

func TestUploadUnexpectedShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status_code":200}`)
	})

	_, err := c.Upload(context.Background(), testUpload())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected response")
}

func TestUploadNotConfigured(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://unused"}, nil)
	assert.False(t, c.Configured())

	_, err := c.Upload(context.Background(), testUpload())
	assert.True(t, errors.Is(err, ErrNotConfigured))
}
