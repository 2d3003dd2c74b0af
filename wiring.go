package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ByLCY/blessing/blessing"
	"github.com/ByLCY/blessing/compose"
	"github.com/ByLCY/blessing/config"
	"github.com/ByLCY/blessing/emoji"
	"github.com/ByLCY/blessing/fonts"
	"github.com/ByLCY/blessing/gemini"
	"github.com/ByLCY/blessing/imagegen"
	"github.com/ByLCY/blessing/pipeline"
	"github.com/ByLCY/blessing/renderer"
	canvasrenderer "github.com/ByLCY/blessing/renderer/canvas"
	ggrenderer "github.com/ByLCY/blessing/renderer/gg"
	"github.com/ByLCY/blessing/vision"
)

func loadConfig(path string, opts ...config.Option) (config.Config, error) {
	if path != "" {
		opts = append(opts, config.WithFile(path))
	}
	return config.Load(opts...)
}

// newSurfaceFactory 按配置选择绘制实现。
func newSurfaceFactory(cfg config.ImageConfig) (renderer.Factory, error) {
	switch cfg.Renderer {
	case "gg":
		return ggrenderer.NewRenderer(cfg.Font), nil
	case "", "canvas":
		r, err := canvasrenderer.NewRendererWithOptions(canvasrenderer.Options{FontSrc: cfg.Font})
		if err != nil {
			return nil, fmt.Errorf("初始化 canvas 渲染器失败: %w", err)
		}
		return r, nil
	}
	return nil, fmt.Errorf("未知渲染器 %q", cfg.Renderer)
}

func newCompositor(cfg config.ImageConfig, logger *zap.Logger) (*compose.Compositor, error) {
	surfaces, err := newSurfaceFactory(cfg)
	if err != nil {
		return nil, err
	}
	opts := compose.DefaultOptions()
	opts.FontSizeDivisor = cfg.FontSizeDivisor
	opts.Background = cfg.Background
	opts.TextColor = cfg.TextColor

	var fetcherOpts []emoji.Option
	if cfg.EmojiBaseURL != "" {
		fetcherOpts = append(fetcherOpts, emoji.WithBaseURL(cfg.EmojiBaseURL))
	}
	return compose.NewCompositor(surfaces, emoji.NewFetcher(fetcherOpts...), opts, logger.Named("compose"))
}

// offlineText 在未配置 Gemini 时直接落到兜底文字。
type offlineText struct{}

func (offlineText) GenerateText(context.Context, string) (string, error) {
	return "", fmt.Errorf("gemini not configured: %w", blessing.ErrQuotaExceeded)
}

func newTextGenerator(ctx context.Context, cfg config.GeminiConfig, logger *zap.Logger) (*blessing.Generator, error) {
	var backend blessing.TextGenerator = offlineText{}
	if cfg.APIKey != "" {
		client, err := gemini.New(ctx, gemini.Config{APIKey: cfg.APIKey, Model: cfg.Model}, logger.Named("gemini"))
		if err != nil {
			return nil, err
		}
		backend = client
	} else {
		logger.Warn("GEMINI_API_KEY not set; blessing text falls back to the constant")
	}
	return blessing.NewGenerator(backend, cfg.Generator, logger.Named("blessing"))
}

// newPipeline 装配完整的生成流水线。images 为空时使用 Pollinations 客户端。
func newPipeline(ctx context.Context, cfg config.Config, images pipeline.ImageSource, logger *zap.Logger) (*pipeline.Pipeline, error) {
	if images == nil {
		images = imagegen.NewClient(
			imagegen.WithModel(cfg.Image.Model),
			imagegen.WithRetries(cfg.Image.Retries, cfg.Image.RetryDelay),
			imagegen.WithLogger(logger.Named("imagegen")),
		)
	}

	var detector pipeline.ObjectDetector
	if cfg.Vision.Enabled {
		d, err := vision.New(ctx, vision.Config{APIKey: cfg.Vision.APIKey, CredentialsFile: cfg.Vision.CredentialsFile}, logger.Named("vision"))
		if err != nil {
			// 检测只影响避让，初始化失败时降级
			logger.Warn("vision detector unavailable; text placement ignores objects", zap.Error(err))
		} else {
			detector = d
		}
	}

	text, err := newTextGenerator(ctx, cfg.Gemini, logger)
	if err != nil {
		return nil, err
	}
	warnUncoveredFont(cfg.Image.Font, text.Config().FinalFallbackText, logger)
	comp, err := newCompositor(cfg.Image, logger)
	if err != nil {
		return nil, err
	}
	return pipeline.New(images, detector, text, comp, pipeline.Config{Width: cfg.Image.Width, Height: cfg.Image.Height}, logger.Named("pipeline"))
}

// warnUncoveredFont 提示字体画不出兜底祝福语。serve 的配置校验已拒绝这种情况，
// 这里主要面向跳过校验的 render 命令。
func warnUncoveredFont(src, text string, logger *zap.Logger) {
	if src == "" {
		src = fonts.BuiltinRegular
	}
	data, err := fonts.Load(src)
	if err != nil {
		logger.Warn("font unavailable", zap.String("font", src), zap.Error(err))
		return
	}
	missing, err := fonts.MissingGlyphs(data, text)
	if err != nil {
		logger.Warn("font coverage check failed", zap.String("font", src), zap.Error(err))
		return
	}
	if len(missing) > 0 {
		logger.Warn("font lacks glyphs for the fallback blessing; set IMAGE_FONT to a CJK font",
			zap.String("font", src), zap.String("missing", string(missing)))
	}
}
