// Package server exposes the LINE webhook over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ByLCY/blessing/line"
	"github.com/ByLCY/blessing/logging"
	"github.com/ByLCY/blessing/metrics"
)

// EventHandler processes a single webhook event.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev line.Event) error
}

// Config holds HTTP server settings.
type Config struct {
	Addr            string
	ChannelSecret   string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Metrics 可为空；Gatherer 非空时挂载 /metrics。
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

// Server routes webhook calls to the bot. Events run in the background so
// the webhook can acknowledge within the platform timeout.
type Server struct {
	cfg     Config
	handler EventHandler
	logger  *zap.Logger
	router  chi.Router

	wg sync.WaitGroup
}

// New builds the router.
func New(cfg Config, handler EventHandler, logger *zap.Logger) (*Server, error) {
	if handler == nil {
		return nil, errors.New("server: event handler is required")
	}
	if cfg.ChannelSecret == "" {
		return nil, errors.New("server: channel secret is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":3000"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{cfg: cfg, handler: handler, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.healthz)
	r.Post("/api/webhook", s.webhook)
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	s.router = r
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Wait blocks until every dispatched event has finished.
func (s *Server) Wait() { s.wg.Wait() }

// ListenAndServe serves until ctx is cancelled, then drains requests and events.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("blessing webhook listening", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	s.logger.Info("shutdown signal received; draining requests")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Wait()
	return err
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) webhook(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context(), s.logger)
	events, err := line.ParseRequest(s.cfg.ChannelSecret, r)
	switch {
	case errors.Is(err, line.ErrInvalidSignature):
		logger.Warn("webhook signature rejected")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid signature"})
		return
	case err != nil:
		logger.Warn("webhook payload rejected", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid payload"})
		return
	}

	// 事件处理脱离请求的取消信号，但保留 logger 等值
	ctx := context.WithoutCancel(r.Context())
	for _, ev := range events {
		s.cfg.Metrics.IncEvent(ev.Type)
		s.wg.Add(1)
		go func(ev line.Event) {
			defer s.wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("event handler panicked", zap.Any("panic", rec), zap.String("event", ev.Type))
				}
			}()
			if err := s.handler.HandleEvent(ctx, ev); err != nil {
				logger.Error("event handling failed", zap.String("event", ev.Type), zap.Error(err))
			}
		}(ev)
	}
	logger.Info("webhook accepted", zap.Int("events", len(events)))
	writeJSON(w, http.StatusOK, map[string]any{})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
