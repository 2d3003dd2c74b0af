package compose

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"go.uber.org/zap"

	"github.com/ByLCY/blessing/layout"
	"github.com/ByLCY/blessing/logging"
	"github.com/ByLCY/blessing/renderer"
)

// FallbackGlyph 在表情位图获取失败时绘制。
const FallbackGlyph = "□"

// EmojiFetcher 按码位获取表情位图。
type EmojiFetcher interface {
	Fetch(ctx context.Context, codepoint string) (image.Image, error)
}

// Options 控制合成样式与拟合参数。
type Options struct {
	Markers         []layout.Marker
	FontSizeDivisor float64 // 初始字号 = 图片宽度 / FontSizeDivisor
	MinFontSize     float64
	MaxFitAttempts  int
	Background      color.Color // 文字面板的半透明底色
	TextColor       color.Color
}

// DefaultOptions mirrors the production defaults: rgba(0,0,0,0.5) panel, white text.
func DefaultOptions() Options {
	return Options{
		Markers:         layout.DefaultMarkers,
		FontSizeDivisor: 20,
		MinFontSize:     layout.DefaultMinFontSize,
		MaxFitAttempts:  layout.DefaultMaxAttempts,
		Background:      color.NRGBA{A: 128},
		TextColor:       color.White,
	}
}

// Compositor 把文字面板与文字、表情叠加到原图上。
type Compositor struct {
	surfaces renderer.Factory
	emoji    EmojiFetcher
	opts     Options
	logger   *zap.Logger
}

var errNoSurfaceFactory = errors.New("compose: surface factory is required")

// NewCompositor constructs a compositor. emoji may be nil, in which case every emoji draws the fallback glyph.
func NewCompositor(surfaces renderer.Factory, emoji EmojiFetcher, opts Options, logger *zap.Logger) (*Compositor, error) {
	if surfaces == nil {
		return nil, errNoSurfaceFactory
	}
	defaults := DefaultOptions()
	if opts.Markers == nil {
		opts.Markers = defaults.Markers
	}
	if opts.FontSizeDivisor <= 0 {
		opts.FontSizeDivisor = defaults.FontSizeDivisor
	}
	if opts.MinFontSize <= 0 {
		opts.MinFontSize = defaults.MinFontSize
	}
	if opts.MaxFitAttempts <= 0 {
		opts.MaxFitAttempts = defaults.MaxFitAttempts
	}
	if opts.Background == nil {
		opts.Background = defaults.Background
	}
	if opts.TextColor == nil {
		opts.TextColor = defaults.TextColor
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compositor{surfaces: surfaces, emoji: emoji, opts: opts, logger: logger}, nil
}

// Result 是一次合成的输出。Layout 在文字为空时为 nil。
type Result struct {
	Image  image.Image
	Layout *layout.FittedLayout
}

// Compose 绘制原图、半透明面板与逐行内容，返回与原图同尺寸的新图。
// text 为空时不做任何绘制，直接返回原图的副本。
func (c *Compositor) Compose(ctx context.Context, src image.Image, text string, annotations []layout.ObjectAnnotation) (Result, error) {
	if src == nil {
		return Result{}, errors.New("compose: source image is required")
	}
	bounds := src.Bounds()
	if text == "" {
		return Result{Image: clone(src)}, nil
	}
	logger := logging.Named(ctx, c.logger, "compose")

	w, h := bounds.Dx(), bounds.Dy()
	surface, err := c.surfaces.NewSurface(w, h)
	if err != nil {
		return Result{}, fmt.Errorf("compose: create surface: %w", err)
	}
	surface.DrawImage(src, 0, 0, float64(w), float64(h))

	region := layout.SelectRegion(float64(w), float64(h), annotations)
	fitted, err := layout.Fit(text, region, layout.FitOptions{
		Measurer:        surface,
		Markers:         c.opts.Markers,
		InitialFontSize: layout.FontSizeFor(float64(w), c.opts.FontSizeDivisor),
		MinFontSize:     c.opts.MinFontSize,
		MaxAttempts:     c.opts.MaxFitAttempts,
	})
	if err != nil {
		return Result{}, fmt.Errorf("compose: fit text: %w", err)
	}
	if !fitted.Fits {
		logger.Warn("text does not fit region, using last attempt",
			zap.String("region", region.Name),
			zap.Float64("fontSize", fitted.FontSize),
			zap.Float64("panelHeight", fitted.PanelHeight),
			zap.Float64("regionHeight", region.Height),
			zap.Int("attempts", fitted.Attempts),
		)
	}

	surface.SetFontSize(fitted.FontSize)
	surface.FillRect(fitted.OriginX, fitted.OriginY, fitted.PanelWidth, fitted.PanelHeight, c.opts.Background)
	for i, line := range fitted.Lines {
		x, y := fitted.LineStart(i)
		for _, seg := range line.Segments {
			switch seg.Kind {
			case layout.TokenEmoji:
				c.drawEmoji(ctx, logger, surface, seg, x, y, fitted.FontSize)
			default:
				surface.FillText(seg.Value, x, y, c.opts.TextColor)
			}
			x += seg.Width
		}
	}

	out, err := surface.Image()
	if err != nil {
		return Result{}, fmt.Errorf("compose: rasterize: %w", err)
	}
	return Result{Image: out, Layout: &fitted}, nil
}

// drawEmoji 的失败只影响当前片段。
func (c *Compositor) drawEmoji(ctx context.Context, logger *zap.Logger, surface renderer.Surface, seg layout.Segment, x, y, size float64) {
	if c.emoji != nil {
		bitmap, err := c.emoji.Fetch(ctx, seg.Value)
		if err == nil {
			surface.DrawImage(bitmap, x, y-size/2, size, size)
			return
		}
		logger.Warn("emoji bitmap unavailable, drawing placeholder",
			zap.String("codepoint", seg.Value),
			zap.Error(err),
		)
	}
	surface.FillText(FallbackGlyph, x, y, c.opts.TextColor)
}

func clone(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
