package line

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

const (
	DefaultAPIBaseURL = "https://api.line.me"
	defaultTimeout    = 15 * time.Second
	maxMessages       = 5
)

// Client sends reply and push messages through the Messaging API SDK.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

// ClientOption customises a Client.
type ClientOption func(*Client)

func WithAPIBaseURL(u string) ClientOption {
	return func(c *Client) {
		if u = strings.TrimRight(u, "/"); u != "" {
			c.baseURL = u
		}
	}
}

func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// NewClient creates a client authorised with a channel access token.
func NewClient(channelToken string, opts ...ClientOption) (*Client, error) {
	if strings.TrimSpace(channelToken) == "" {
		return nil, errors.New("line: channel access token is required")
	}
	c := &Client{token: channelToken, baseURL: DefaultAPIBaseURL, http: &http.Client{Timeout: defaultTimeout}}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if _, err := c.api(context.Background()); err != nil {
		return nil, err
	}
	return c, nil
}

// api 每次调用单独构造：SDK 的 WithContext 会改写客户端本身。
func (c *Client) api(ctx context.Context) (*messaging_api.MessagingApiAPI, error) {
	api, err := messaging_api.NewMessagingApiAPI(c.token,
		messaging_api.WithEndpoint(c.baseURL),
		messaging_api.WithHTTPClient(c.http),
	)
	if err != nil {
		return nil, fmt.Errorf("line: messaging api client: %w", err)
	}
	return api.WithContext(ctx), nil
}

// Reply answers an event using its reply token.
func (c *Client) Reply(ctx context.Context, replyToken string, msgs ...messaging_api.MessageInterface) error {
	if replyToken == "" {
		return errors.New("line: reply token is required")
	}
	if err := checkCount(msgs); err != nil {
		return err
	}
	api, err := c.api(ctx)
	if err != nil {
		return err
	}
	if _, err := api.ReplyMessage(&messaging_api.ReplyMessageRequest{ReplyToken: replyToken, Messages: msgs}); err != nil {
		return fmt.Errorf("line: reply: %w", err)
	}
	return nil
}

// Push sends messages to a user, group or room id.
func (c *Client) Push(ctx context.Context, to string, msgs ...messaging_api.MessageInterface) error {
	if to == "" {
		return errors.New("line: push target is required")
	}
	if err := checkCount(msgs); err != nil {
		return err
	}
	api, err := c.api(ctx)
	if err != nil {
		return err
	}
	if _, err := api.PushMessage(&messaging_api.PushMessageRequest{To: to, Messages: msgs}, ""); err != nil {
		return fmt.Errorf("line: push: %w", err)
	}
	return nil
}

func checkCount(msgs []messaging_api.MessageInterface) error {
	if n := len(msgs); n == 0 || n > maxMessages {
		return fmt.Errorf("line: between 1 and %d messages required, got %d", maxMessages, n)
	}
	return nil
}
