package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	gcs "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ByLCY/blessing/bot"
	"github.com/ByLCY/blessing/catalog"
	"github.com/ByLCY/blessing/line"
	"github.com/ByLCY/blessing/logging"
	"github.com/ByLCY/blessing/metrics"
	"github.com/ByLCY/blessing/server"
	"github.com/ByLCY/blessing/session"
	"github.com/ByLCY/blessing/storage"
)

func newServeCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "啟動 LINE webhook 服務",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, *configFile)
		},
	}
}

func serve(ctx context.Context, configFile string) error {
	cfg, err := loadConfig(configFile)
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
	pipe, err := newPipeline(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}

	gcsClient, err := gcs.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("初始化 GCS 客户端失败: %w", err)
	}
	defer gcsClient.Close()
	uploader, err := storage.NewUploader(gcsClient, cfg.Storage.Bucket,
		storage.WithPrefix(cfg.Storage.Prefix),
		storage.WithPublicBaseURL(cfg.Storage.PublicBaseURL),
	)
	if err != nil {
		return err
	}

	messenger, err := line.NewClient(cfg.LINE.ChannelAccessToken)
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.MustNew(reg)

	sessions := session.NewMemory(cfg.Session.Size, cfg.Session.TTL)
	b := bot.New(cat, sessions, pipe, uploader, messenger, cfg.Bot,
		bot.WithLogger(logger.Named("bot")),
		bot.WithMetrics(m),
	)

	srv, err := server.New(server.Config{
		Addr:            cfg.Server.Addr(),
		ChannelSecret:   cfg.LINE.ChannelSecret,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Metrics:         m,
		Gatherer:        reg,
	}, b, logger)
	if err != nil {
		return err
	}
	logger.Info("starting blessing service",
		zap.String("renderer", cfg.Image.Renderer),
		zap.Int("themes", len(cat.Themes())),
		zap.Int("styles", len(cat.Styles())),
	)
	return srv.ListenAndServe(ctx)
}
