package emoji

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 72, 72))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestFetchDecodesAndCaches(t *testing.T) {
	body := pngBytes(t)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/72x72/1f64f.png", r.URL.Path)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	f := NewFetcher(WithBaseURL(srv.URL+"/72x72"), WithHTTPClient(srv.Client()))
	img, err := f.Fetch(context.Background(), "1F64F")
	require.NoError(t, err)
	assert.Equal(t, 72, img.Bounds().Dx())

	_, err = f.Fetch(context.Background(), "1f64f")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load(), "second fetch should be served from cache")
}

func TestFetchWithoutCacheHitsEveryTime(t *testing.T) {
	body := pngBytes(t)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	f := NewFetcher(WithBaseURL(srv.URL), WithCacheSize(0))
	for i := 0; i < 2; i++ {
		_, err := f.Fetch(context.Background(), "2600")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewFetcher(WithBaseURL(srv.URL)).Fetch(context.Background(), "ffff")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFetchRejectsGarbage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not a png"))
	}))
	defer srv.Close()

	_, err := NewFetcher(WithBaseURL(srv.URL)).Fetch(context.Background(), "1f64f")
	require.Error(t, err)
}

func TestURL(t *testing.T) {
	f := NewFetcher()
	assert.Equal(t, DefaultBaseURL+"1f64f.png", f.URL("1F64F"))
}
