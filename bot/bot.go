// Package bot implements the conversational flow: theme carousel, style
// carousel, blessing text prompt, then generation and delivery.
package bot

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/ByLCY/blessing/catalog"
	"github.com/ByLCY/blessing/line"
	"github.com/ByLCY/blessing/logging"
	"github.com/ByLCY/blessing/metrics"
	"github.com/ByLCY/blessing/pipeline"
	"github.com/ByLCY/blessing/session"
	"github.com/ByLCY/blessing/storage"
)

// AIGenerateText 是“请 AI 生成祝福语”的哨兵值，映射为空文字。
const AIGenerateText = "請 AI 生成祝福語"

// Messenger sends messages over the chat transport.
type Messenger interface {
	Reply(ctx context.Context, replyToken string, msgs ...messaging_api.MessageInterface) error
	Push(ctx context.Context, to string, msgs ...messaging_api.MessageInterface) error
}

// ImageGenerator produces the final image.
type ImageGenerator interface {
	Generate(ctx context.Context, theme *catalog.Theme, style *catalog.Style, userText string) (pipeline.Result, error)
}

// BlobStore hosts the image long enough for the platform to fetch it.
type BlobStore interface {
	Upload(ctx context.Context, png []byte) (storage.Object, error)
	Delete(ctx context.Context, id string) error
}

// Config 为机器人行为参数。
type Config struct {
	TriggerPhrases         []string
	MaxTextLength          int
	DeletionDelay          time.Duration
	WelcomeMessage         string // {keywords} 会被替换为触发词列表
	GenerationErrorMessage string
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		TriggerPhrases:         []string{"開始", "生成圖片", "長輩圖", "我想做圖", "start", "generate image"},
		MaxTextLength:          20,
		DeletionDelay:          10 * time.Second,
		WelcomeMessage:         "哈囉！我是您的專屬長輩圖生成器！🌸\n\n您可以透過我輕鬆生成帶有祝福語的圖片，並分享給親朋好友。\n\n請輸入 {keywords} 來製作您的第一張長輩圖吧！",
		GenerationErrorMessage: "圖片生成失敗，系統有點忙，請稍後再試一次。",
	}
}

// Bot handles webhook events. It is safe for concurrent use.
type Bot struct {
	catalog  *catalog.Catalog
	sessions session.Store
	images   ImageGenerator
	blobs    BlobStore
	out      Messenger
	cfg      Config
	logger   *zap.Logger
	metrics  *metrics.Metrics
	sleep    func(context.Context, time.Duration) error
}

// Option customises a Bot.
type Option func(*Bot)

// WithSleep replaces the wait between delivery and cleanup (useful for tests).
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(b *Bot) {
		if fn != nil {
			b.sleep = fn
		}
	}
}

// WithMetrics records delivery outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bot) { b.metrics = m }
}

// WithLogger sets the fallback logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bot) {
		if l != nil {
			b.logger = l
		}
	}
}

// New constructs a Bot. Zero config fields take the defaults.
func New(cat *catalog.Catalog, sessions session.Store, images ImageGenerator, blobs BlobStore, out Messenger, cfg Config, opts ...Option) *Bot {
	def := DefaultConfig()
	if len(cfg.TriggerPhrases) == 0 {
		cfg.TriggerPhrases = def.TriggerPhrases
	}
	if cfg.MaxTextLength <= 0 {
		cfg.MaxTextLength = def.MaxTextLength
	}
	if cfg.DeletionDelay <= 0 {
		cfg.DeletionDelay = def.DeletionDelay
	}
	if cfg.WelcomeMessage == "" {
		cfg.WelcomeMessage = def.WelcomeMessage
	}
	if cfg.GenerationErrorMessage == "" {
		cfg.GenerationErrorMessage = def.GenerationErrorMessage
	}
	b := &Bot{
		catalog:  cat,
		sessions: sessions,
		images:   images,
		blobs:    blobs,
		out:      out,
		cfg:      cfg,
		logger:   zap.NewNop(),
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// HandleEvent dispatches one webhook event. Unsupported events are ignored.
func (b *Bot) HandleEvent(ctx context.Context, ev line.Event) error {
	sourceID := ev.Source.ID()
	logger := logging.Named(ctx, b.logger, "bot").With(zap.String("event", ev.Type), zap.String("sourceType", ev.Source.Type))
	if sourceID == "" {
		logger.Warn("event without source id ignored")
		return nil
	}
	ctx = logging.WithLogger(ctx, logger.With(zap.String("sourceId", sourceID)))

	switch {
	case ev.Type == line.EventPostback && ev.Postback != nil:
		return b.handlePostback(ctx, ev, sourceID)
	case ev.IsText():
		return b.handleText(ctx, ev, sourceID)
	case ev.Type == line.EventFollow:
		return b.out.Reply(ctx, ev.ReplyToken, b.welcomeMessage(), b.themeCarousel())
	default:
		return nil
	}
}

func (b *Bot) handleText(ctx context.Context, ev line.Event, sourceID string) error {
	userText := strings.TrimSpace(ev.Message.Text)
	state, ok, err := b.sessions.Get(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("bot: load session: %w", err)
	}

	if b.isTrigger(userText) {
		if err := b.sessions.Clear(ctx, sourceID); err != nil {
			return fmt.Errorf("bot: clear session: %w", err)
		}
		return b.out.Reply(ctx, ev.ReplyToken, b.themeCarousel())
	}

	if ok {
		return b.handleBlessingText(ctx, ev, sourceID, state, userText)
	}

	if theme, found := b.catalog.ThemeByName(userText); found {
		if err := b.sessions.Set(ctx, sourceID, session.State{ThemeID: theme.ID}); err != nil {
			return fmt.Errorf("bot: save session: %w", err)
		}
		return b.out.Reply(ctx, ev.ReplyToken, b.styleCarousel(theme.ID))
	}

	// 群组与聊天室中不回应无关消息
	if ev.Source.Type != line.SourceUser {
		return nil
	}
	return b.out.Reply(ctx, ev.ReplyToken, line.Text(b.hintText()))
}

func (b *Bot) handleBlessingText(ctx context.Context, ev line.Event, sourceID string, state session.State, userText string) error {
	logger := logging.FromContext(ctx, b.logger)
	theme, ok := b.catalog.ThemeByID(state.ThemeID)
	if !ok {
		logger.Warn("session references unknown theme", zap.String("themeId", state.ThemeID))
		_ = b.sessions.Clear(ctx, sourceID)
		return b.out.Reply(ctx, ev.ReplyToken, b.themeCarousel())
	}

	// 统一为 NFC，避免组合字符影响字数
	text := norm.NFC.String(userText)
	switch text {
	case pipeline.UseDefaultText:
		text = theme.DefaultText
	case AIGenerateText:
		text = ""
	}
	if utf8.RuneCountInString(text) > b.cfg.MaxTextLength {
		return b.out.Reply(ctx, ev.ReplyToken, line.Text(fmt.Sprintf("祝福語長度超過 %d 字，請重新輸入。", b.cfg.MaxTextLength)))
	}

	style, styleKnown := b.catalog.StyleByID(state.StyleID)
	styleInfo := fmt.Sprintf("（風格：%s）", style.Name)
	if !styleKnown {
		style = b.catalog.DefaultStyle()
		styleInfo = fmt.Sprintf("（預設風格：%s）", style.Name)
	}

	ack := fmt.Sprintf("好的，為您生成圖片 %s，並加上祝福語：「%s」，請稍候...", styleInfo, text)
	if text == "" {
		ack = fmt.Sprintf("好的，為您生成圖片 %s，並由 AI 為您生成專屬祝福語，請稍候...", styleInfo)
	}
	if err := b.out.Reply(ctx, ev.ReplyToken, line.Text(ack)); err != nil {
		logger.Warn("acknowledgement reply failed", zap.Error(err))
	}

	start := time.Now()
	err := b.deliver(ctx, sourceID, &theme, &style, text)
	b.metrics.ObserveDelivery(err, time.Since(start))
	if err != nil {
		logger.Error("image generation or delivery failed", zap.Error(err))
		return b.out.Push(ctx, sourceID, line.Text(b.cfg.GenerationErrorMessage))
	}
	return nil
}

// deliver 生成、上传并推送图片；等待平台抓取后清理会话与对象。
func (b *Bot) deliver(ctx context.Context, sourceID string, theme *catalog.Theme, style *catalog.Style, text string) error {
	logger := logging.FromContext(ctx, b.logger)
	res, err := b.images.Generate(ctx, theme, style, text)
	if err != nil {
		return err
	}
	b.metrics.IncTextSource(string(res.TextSource))
	obj, err := b.blobs.Upload(ctx, res.PNG)
	if err != nil {
		return err
	}
	if err := b.out.Push(ctx, sourceID, line.Image(obj.URL)); err != nil {
		_ = b.blobs.Delete(ctx, obj.ID)
		return err
	}
	logger.Info("image delivered", zap.String("object", obj.ID), zap.String("text", res.Text))

	if err := b.sleep(ctx, b.cfg.DeletionDelay); err != nil {
		logger.Warn("cleanup wait interrupted", zap.Error(err))
	}
	if err := b.sessions.Clear(ctx, sourceID); err != nil {
		logger.Warn("session clear failed", zap.Error(err))
	}
	if err := b.blobs.Delete(context.WithoutCancel(ctx), obj.ID); err != nil {
		logger.Warn("object delete failed", zap.String("object", obj.ID), zap.Error(err))
	}
	return nil
}

func (b *Bot) handlePostback(ctx context.Context, ev line.Event, sourceID string) error {
	q, _ := url.ParseQuery(ev.Postback.Data)
	theme, okTheme := b.catalog.ThemeByID(q.Get("themeId"))
	style, okStyle := b.catalog.StyleByID(q.Get("styleId"))
	if !okTheme || !okStyle {
		return b.out.Reply(ctx, ev.ReplyToken, line.Text("抱歉，找不到對應的主題或風格。"))
	}
	if err := b.sessions.Set(ctx, sourceID, session.State{ThemeID: theme.ID, StyleID: style.ID}); err != nil {
		return fmt.Errorf("bot: save session: %w", err)
	}
	return b.out.Reply(ctx, ev.ReplyToken, b.textPrompt())
}

// isTrigger 整句匹配触发词，忽略首尾空白与大小写。
func (b *Bot) isTrigger(text string) bool {
	text = strings.TrimSpace(text)
	for _, phrase := range b.cfg.TriggerPhrases {
		if phrase = strings.TrimSpace(phrase); phrase != "" && strings.EqualFold(text, phrase) {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
