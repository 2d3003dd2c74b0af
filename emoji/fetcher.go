package emoji

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// DefaultBaseURL 指向 Twemoji 72x72 PNG 资源。
	DefaultBaseURL   = "https://cdnjs.cloudflare.com/ajax/libs/twemoji/14.0.2/72x72/"
	defaultTimeout   = 10 * time.Second
	defaultCacheSize = 128
	maxBitmapBytes   = 1 << 20
)

// ErrNotFound 表示 CDN 上不存在该码位的图片。
var ErrNotFound = errors.New("emoji: bitmap not found")

var errCodepointMissing = errors.New("emoji: codepoint is required")

// Fetcher 从 CDN 获取表情位图，并在进程内缓存解码结果。
type Fetcher struct {
	baseURL string
	client  *http.Client
	cache   *lru.Cache[string, image.Image]
}

// Option customises the fetcher.
type Option func(*Fetcher)

// WithBaseURL overrides the CDN base URL (must end with "/").
func WithBaseURL(u string) Option {
	return func(f *Fetcher) {
		if u = strings.TrimSpace(u); u != "" {
			if !strings.HasSuffix(u, "/") {
				u += "/"
			}
			f.baseURL = u
		}
	}
}

// WithHTTPClient injects the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithCacheSize sets the number of decoded bitmaps kept in memory; 0 disables caching.
func WithCacheSize(n int) Option {
	return func(f *Fetcher) {
		if n <= 0 {
			f.cache = nil
			return
		}
		cache, err := lru.New[string, image.Image](n)
		if err == nil {
			f.cache = cache
		}
	}
}

// NewFetcher constructs a Twemoji fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	cache, _ := lru.New[string, image.Image](defaultCacheSize)
	f := &Fetcher{
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: defaultTimeout},
		cache:   cache,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// URL returns the bitmap URL for a codepoint identifier such as "1f64f".
func (f *Fetcher) URL(codepoint string) string {
	return f.baseURL + strings.ToLower(strings.TrimSpace(codepoint)) + ".png"
}

// Fetch downloads and decodes the bitmap for codepoint.
func (f *Fetcher) Fetch(ctx context.Context, codepoint string) (image.Image, error) {
	key := strings.ToLower(strings.TrimSpace(codepoint))
	if key == "" {
		return nil, errCodepointMissing
	}
	if f.cache != nil {
		if img, ok := f.cache.Get(key); ok {
			return img, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL(key), nil)
	if err != nil {
		return nil, fmt.Errorf("emoji: build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("emoji: fetch %s: %w", key, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("emoji: fetch %s: unexpected status %d", key, resp.StatusCode)
	}

	img, _, err := image.Decode(io.LimitReader(resp.Body, maxBitmapBytes))
	if err != nil {
		return nil, fmt.Errorf("emoji: decode %s: %w", key, err)
	}
	if f.cache != nil {
		f.cache.Add(key, img)
	}
	return img, nil
}
