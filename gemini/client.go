// Package gemini adapts google.golang.org/genai to blessing.TextGenerator.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/ByLCY/blessing/blessing"
)

const DefaultModel = "gemini-2.5-flash"

var errNoText = errors.New("gemini: response contained no text")

// Config configures the Gemini text client.
type Config struct {
	APIKey string
	Model  string
}

// contentGenerator 是 *genai.Models 的子集，便于测试替换。
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client generates blessing text with a Gemini model.
type Client struct {
	models contentGenerator
	model  string
	logger *zap.Logger
}

var _ blessing.TextGenerator = (*Client)(nil)

// New creates a client backed by the Gemini API.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	return newClient(gc.Models, cfg.Model, logger), nil
}

func newClient(models contentGenerator, model string, logger *zap.Logger) *Client {
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{models: models, model: model, logger: logger}
}

// GenerateText implements blessing.TextGenerator. Quota failures wrap blessing.ErrQuotaExceeded.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		if isQuota(err) {
			return "", fmt.Errorf("gemini %s: %w: %v", c.model, blessing.ErrQuotaExceeded, err)
		}
		return "", fmt.Errorf("gemini %s: %w", c.model, err)
	}
	text := responseText(resp)
	if text == "" {
		return "", errNoText
	}
	c.logger.Debug("gemini text generated", zap.String("model", c.model), zap.Int("bytes", len(text)))
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil {
		return ""
	}
	var out strings.Builder
	for _, p := range cand.Content.Parts {
		if p != nil && p.Text != "" {
			out.WriteString(p.Text)
		}
	}
	return strings.TrimSpace(out.String())
}

// isQuota 按 HTTP 状态码与 RPC 状态判断，不依赖错误消息文本。
func isQuota(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return quotaStatus(apiErr.Code, apiErr.Status)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return quotaStatus(apiErrPtr.Code, apiErrPtr.Status)
	}
	return false
}

func quotaStatus(code int, status string) bool {
	return code == http.StatusTooManyRequests || status == "RESOURCE_EXHAUSTED"
}
