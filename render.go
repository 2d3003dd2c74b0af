package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ByLCY/blessing/catalog"
	"github.com/ByLCY/blessing/config"
	"github.com/ByLCY/blessing/imagegen"
	"github.com/ByLCY/blessing/layout"
	"github.com/ByLCY/blessing/logging"
	"github.com/ByLCY/blessing/pipeline"
)

type renderFlags struct {
	theme  string
	style  string
	text   string
	input  string
	output string
	debug  string
	vision bool
}

func newRenderCommand(configFile *string) *cobra.Command {
	f := &renderFlags{}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "離線生成一張長輩圖",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := render(cmd.Context(), *configFile, f); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已生成图片：%s\n", f.output)
			return nil
		},
	}
	cmd.Flags().StringVar(&f.theme, "theme", "morning", "主题 id")
	cmd.Flags().StringVar(&f.style, "style", "", "风格 id（默认第一个风格）")
	cmd.Flags().StringVar(&f.text, "text", pipeline.UseDefaultText, "祝福语；留空则由 AI 生成")
	cmd.Flags().StringVar(&f.input, "in", "", "背景图片路径；为空时调用上游生成")
	cmd.Flags().StringVar(&f.output, "out", "output/blessing.png", "PNG 输出路径")
	cmd.Flags().StringVar(&f.debug, "debug", "", "布局调试 JSON 输出路径")
	cmd.Flags().BoolVar(&f.vision, "vision", false, "调用物体检测以避让文字")
	return cmd
}

// fileImage 以本地文件代替上游生成。
type fileImage string

func (p fileImage) Fetch(context.Context, imagegen.Request) ([]byte, error) {
	return os.ReadFile(string(p))
}

// render 串联配置、目录与流水线，写出 PNG 与可选的排版调试 JSON。
func render(ctx context.Context, configFile string, f *renderFlags) error {
	cfg, err := loadConfig(configFile, config.WithoutValidation(), config.WithValues(map[string]any{"vision_enabled": f.vision}))
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	cat, err := catalog.Load(cfg.Catalog.ThemesPath, cfg.Catalog.StylesPath)
	if err != nil {
		return err
	}
	theme, ok := cat.ThemeByID(f.theme)
	if !ok {
		return fmt.Errorf("找不到主题 %q", f.theme)
	}
	style := cat.DefaultStyle()
	if f.style != "" {
		if style, ok = cat.StyleByID(f.style); !ok {
			return fmt.Errorf("找不到风格 %q", f.style)
		}
	}

	var images pipeline.ImageSource
	if f.input != "" {
		images = fileImage(f.input)
	}
	pipe, err := newPipeline(ctx, cfg, images, logger)
	if err != nil {
		return err
	}
	res, err := pipe.Generate(ctx, &theme, &style, f.text)
	if err != nil {
		return fmt.Errorf("生成图片失败: %w", err)
	}
	logger.Info("rendered", zap.String("text", res.Text), zap.String("prompt", res.Prompt), zap.Int("objects", len(res.Annotations)))

	if err := writeFile(f.output, res.PNG); err != nil {
		return err
	}
	if f.debug != "" {
		if err := layout.WriteDebugJSON(f.debug, res.Layout, res.Annotations); err != nil {
			return fmt.Errorf("输出调试 JSON 失败: %w", err)
		}
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("写入图片失败: %w", err)
	}
	return nil
}
