// Package pipeline runs one blessing-image request end to end: text
// selection, background generation, object detection and compositing.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"

	"go.uber.org/zap"
	_ "golang.org/x/image/webp"

	"github.com/ByLCY/blessing/blessing"
	"github.com/ByLCY/blessing/catalog"
	"github.com/ByLCY/blessing/compose"
	"github.com/ByLCY/blessing/imagegen"
	"github.com/ByLCY/blessing/layout"
	"github.com/ByLCY/blessing/logging"
	"github.com/ByLCY/blessing/prompt"
)

// UseDefaultText 是“使用主题默认文字”的哨兵值。
const UseDefaultText = "用主題預設文字"

// ErrInvalidInput signals a caller bug such as a missing theme or style.
var ErrInvalidInput = errors.New("pipeline: invalid input")

// ImageSource fetches a generated background image.
type ImageSource interface {
	Fetch(ctx context.Context, req imagegen.Request) ([]byte, error)
}

// ObjectDetector returns normalized boxes of salient objects.
type ObjectDetector interface {
	Detect(ctx context.Context, img []byte) ([]layout.ObjectAnnotation, error)
}

// TextSource produces blessing text when the user supplied none.
type TextSource interface {
	Generate(ctx context.Context, themeName, styleName string) blessing.Result
}

// Compositor overlays text onto an image.
type Compositor interface {
	Compose(ctx context.Context, src image.Image, text string, annotations []layout.ObjectAnnotation) (compose.Result, error)
}

// Config holds the generated image size.
type Config struct {
	Width  int
	Height int
}

// Pipeline wires the collaborators together. Detector may be nil.
type Pipeline struct {
	images     ImageSource
	detector   ObjectDetector
	text       TextSource
	compositor Compositor
	cfg        Config
	logger     *zap.Logger
}

// New validates the required collaborators.
func New(images ImageSource, detector ObjectDetector, text TextSource, compositor Compositor, cfg Config, logger *zap.Logger) (*Pipeline, error) {
	if images == nil || text == nil || compositor == nil {
		return nil, fmt.Errorf("%w: image source, text source and compositor are required", ErrInvalidInput)
	}
	if cfg.Width <= 0 {
		cfg.Width = imagegen.DefaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = imagegen.DefaultHeight
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{images: images, detector: detector, text: text, compositor: compositor, cfg: cfg, logger: logger}, nil
}

// Result is the outcome of one request.
type Result struct {
	PNG         []byte
	Text        string
	TextSource  blessing.Source // 用户提供时为空
	Prompt      string
	Annotations []layout.ObjectAnnotation
	Layout      *layout.FittedLayout
}

// Generate produces the final PNG for (theme, style, userText).
// userText 为 UseDefaultText 时使用主题默认文字；为空时由 TextSource 生成。
func (p *Pipeline) Generate(ctx context.Context, theme *catalog.Theme, style *catalog.Style, userText string) (Result, error) {
	if theme == nil || style == nil {
		return Result{}, fmt.Errorf("%w: theme and style are required", ErrInvalidInput)
	}
	logger := logging.Named(ctx, p.logger, "pipeline").With(zap.String("theme", theme.ID), zap.String("style", style.ID))

	var res Result
	res.Text = userText
	if res.Text == UseDefaultText {
		res.Text = theme.DefaultText
	}
	if res.Text == "" {
		gen := p.text.Generate(ctx, theme.Name, style.Name)
		res.Text, res.TextSource = gen.Text, gen.Source
		logger.Info("blessing text generated", zap.String("source", string(gen.Source)), zap.Int("calls", len(gen.Attempts)))
	}

	imgPrompt, err := ComposePrompt(theme, style, res.Text)
	if err != nil {
		return Result{}, err
	}
	res.Prompt = imgPrompt

	raw, err := p.images.Fetch(ctx, imagegen.Request{Prompt: imgPrompt, Width: p.cfg.Width, Height: p.cfg.Height})
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: fetch background: %w", err)
	}
	src, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: decode background: %w", err)
	}
	logger.Debug("background fetched", zap.String("format", format), zap.Int("bytes", len(raw)))

	if p.detector != nil {
		anns, err := p.detector.Detect(ctx, raw)
		if err != nil {
			logger.Warn("object detection failed, placing text without avoidance", zap.Error(err))
		} else {
			res.Annotations = anns
		}
	}

	composed, err := p.compositor.Compose(ctx, src, res.Text, res.Annotations)
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: compose: %w", err)
	}
	res.Layout = composed.Layout

	var buf bytes.Buffer
	if err := png.Encode(&buf, composed.Image); err != nil {
		return Result{}, fmt.Errorf("pipeline: encode png: %w", err)
	}
	res.PNG = buf.Bytes()
	return res, nil
}

// ComposePrompt 将风格提示词代入主题模板的 {stylePrompt}；
// 节日主题且文字为用户自定时，把文字前置到提示词中。
func ComposePrompt(theme *catalog.Theme, style *catalog.Style, text string) (string, error) {
	if theme == nil || style == nil {
		return "", fmt.Errorf("%w: theme and style are required", ErrInvalidInput)
	}
	tpl, err := prompt.Parse(theme.Prompt)
	if err != nil {
		return "", fmt.Errorf("%w: theme %s prompt: %v", ErrInvalidInput, theme.ID, err)
	}
	out := tpl.Execute(map[string]string{"stylePrompt": style.Prompt})
	if theme.ID == catalog.FestivalThemeID && text != "" && text != UseDefaultText {
		out = text + ", " + out
	}
	return out, nil
}
