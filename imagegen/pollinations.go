// Package imagegen fetches generated background images from a
// Pollinations-style text-to-image HTTP endpoint.
package imagegen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ByLCY/blessing/logging"
)

const (
	DefaultBaseURL    = "https://pollinations.ai/p/"
	DefaultModel      = "flux"
	DefaultWidth      = 1024
	DefaultHeight     = 1024
	DefaultMaxRetries = 3
	DefaultRetryDelay = 5 * time.Second

	defaultTimeout = 90 * time.Second
	maxImageBytes  = 32 << 20
)

// ErrExhausted wraps the last failure once every retry has been used.
var ErrExhausted = errors.New("imagegen: retries exhausted")

// Request describes one image to generate. Seed 0 picks a random seed.
type Request struct {
	Prompt string
	Width  int
	Height int
	Seed   int
}

// Client is a Pollinations client with fixed-delay retries.
type Client struct {
	baseURL    string
	model      string
	maxRetries int
	retryDelay time.Duration
	http       *http.Client
	logger     *zap.Logger
}

// Option customises a Client.
type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" && u[len(u)-1] != '/' {
			u += "/"
		}
		c.baseURL = u
	}
}

func WithModel(m string) Option { return func(c *Client) { c.model = m } }

func WithRetries(n int, delay time.Duration) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxRetries = n
		}
		if delay >= 0 {
			c.retryDelay = delay
		}
	}
}

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.logger = l } }

// NewClient returns a client using the public endpoint unless overridden.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		http:       &http.Client{Timeout: defaultTimeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL builds the request URL for req after defaults are applied.
func (c *Client) URL(req Request) string {
	q := url.Values{}
	q.Set("width", strconv.Itoa(req.Width))
	q.Set("height", strconv.Itoa(req.Height))
	q.Set("seed", strconv.Itoa(req.Seed))
	q.Set("model", c.model)
	q.Set("nologo", "true")
	return c.baseURL + url.PathEscape(req.Prompt) + "?" + q.Encode()
}

// Fetch downloads the generated image bytes, retrying failures with a fixed delay.
// 取消 ctx 会立即中断等待，返回 ctx 的错误。
func (c *Client) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if req.Prompt == "" {
		return nil, errors.New("imagegen: prompt is required")
	}
	if req.Width <= 0 {
		req.Width = DefaultWidth
	}
	if req.Height <= 0 {
		req.Height = DefaultHeight
	}
	if req.Seed == 0 {
		req.Seed = rand.IntN(1_000_000) + 1
	}
	logger := logging.Named(ctx, c.logger, "imagegen")
	target := c.URL(req)

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		logger.Info("fetching generated image", zap.Int("attempt", attempt), zap.String("url", target))
		body, err := c.get(ctx, target)
		if err == nil {
			return body, nil
		}
		lastErr = err
		logger.Warn("image generation attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		if attempt == c.maxRetries {
			break
		}
		if err := sleep(ctx, c.retryDelay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, c.maxRetries, lastErr)
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("upstream status %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(body) == 0 {
		return nil, errors.New("upstream returned empty body")
	}
	return body, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
