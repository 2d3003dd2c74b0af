// Package line adapts the LINE Messaging API SDK to the bot: webhook
// events are decoded into a flat Event, and reply/push go through the
// messaging_api client.
package line

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
)

const maxWebhookBytes = 1 << 20

var (
	// ErrInvalidSignature is returned when X-Line-Signature does not match the body.
	ErrInvalidSignature = webhook.ErrInvalidSignature
	errEmptySecret      = errors.New("line: channel secret is required")
)

// Event types.
const (
	EventMessage  = "message"
	EventPostback = "postback"
	EventFollow   = "follow"
)

// Source types.
const (
	SourceUser  = "user"
	SourceGroup = "group"
	SourceRoom  = "room"
)

// Event is one webhook event. Only the fields the bot reads are kept.
type Event struct {
	Type           string
	WebhookEventID string
	Timestamp      int64
	ReplyToken     string
	Source         Source
	Message        *Message
	Postback       *Postback
}

// IsText reports whether the event is a text message.
func (e Event) IsText() bool {
	return e.Type == EventMessage && e.Message != nil && e.Message.Type == "text"
}

// Source identifies where an event came from.
type Source struct {
	Type    string
	UserID  string
	GroupID string
	RoomID  string
}

// ID 返回会话标识：用户取 userId，群组取 groupId，聊天室取 roomId。
func (s Source) ID() string {
	switch s.Type {
	case SourceUser:
		return s.UserID
	case SourceGroup:
		return s.GroupID
	case SourceRoom:
		return s.RoomID
	default:
		return ""
	}
}

// Message is an inbound message body.
type Message struct {
	ID   string
	Type string
	Text string
}

// Postback carries the data attached to a postback action.
type Postback struct {
	Data string
}

// ParseRequest verifies the signature and decodes the events the bot
// understands. Other event types are dropped.
func ParseRequest(secret string, r *http.Request) ([]Event, error) {
	if secret == "" {
		return nil, errEmptySecret
	}
	r.Body = http.MaxBytesReader(nil, r.Body, maxWebhookBytes)
	cb, err := webhook.ParseRequest(secret, r)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			return nil, ErrInvalidSignature
		}
		return nil, fmt.Errorf("line: parse webhook: %w", err)
	}
	events := make([]Event, 0, len(cb.Events))
	for _, raw := range cb.Events {
		if ev, ok := fromWebhook(raw); ok {
			events = append(events, ev)
		}
	}
	return events, nil
}

func fromWebhook(raw webhook.EventInterface) (Event, bool) {
	switch e := raw.(type) {
	case webhook.MessageEvent:
		ev := Event{Type: EventMessage, WebhookEventID: e.WebhookEventId, Timestamp: e.Timestamp, ReplyToken: e.ReplyToken, Source: fromSource(e.Source)}
		switch m := e.Message.(type) {
		case webhook.TextMessageContent:
			ev.Message = &Message{ID: m.Id, Type: "text", Text: m.Text}
		default:
			ev.Message = &Message{Type: "unsupported"}
		}
		return ev, true
	case webhook.PostbackEvent:
		ev := Event{Type: EventPostback, WebhookEventID: e.WebhookEventId, Timestamp: e.Timestamp, ReplyToken: e.ReplyToken, Source: fromSource(e.Source)}
		if e.Postback != nil {
			ev.Postback = &Postback{Data: e.Postback.Data}
		}
		return ev, true
	case webhook.FollowEvent:
		return Event{Type: EventFollow, WebhookEventID: e.WebhookEventId, Timestamp: e.Timestamp, ReplyToken: e.ReplyToken, Source: fromSource(e.Source)}, true
	default:
		return Event{}, false
	}
}

func fromSource(raw webhook.SourceInterface) Source {
	switch s := raw.(type) {
	case webhook.UserSource:
		return Source{Type: SourceUser, UserID: s.UserId}
	case webhook.GroupSource:
		return Source{Type: SourceGroup, GroupID: s.GroupId, UserID: s.UserId}
	case webhook.RoomSource:
		return Source{Type: SourceRoom, RoomID: s.RoomId, UserID: s.UserId}
	default:
		return Source{}
	}
}
