package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ByLCY/blessing/line"
	"github.com/ByLCY/blessing/logging"
	"github.com/ByLCY/blessing/metrics"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []line.Event
	err    error
	ctxOK  bool
}

func (h *recordingHandler) HandleEvent(ctx context.Context, ev line.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	fallback := zap.NewNop()
	h.ctxOK = ctx.Err() == nil && logging.FromContext(ctx, fallback) != fallback
	return h.err
}

const body = `{"destination":"U","events":[{"type":"follow","replyToken":"r","source":{"type":"user","userId":"U1"}},{"type":"message","replyToken":"r2","source":{"type":"user","userId":"U1"},"message":{"id":"1","type":"text","text":"開始"}}]}`

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func newTestServer(t *testing.T, h EventHandler, logger *zap.Logger) *Server {
	t.Helper()
	s, err := New(Config{ChannelSecret: "secret"}, h, logger)
	require.NoError(t, err)
	return s
}

func TestWebhookDispatchesEvents(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := &recordingHandler{err: errors.New("reply failed")}
	s := newTestServer(t, h, zap.New(core))

	req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(body))
	req.Header.Set("X-Line-Signature", sign("secret", body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	s.Wait()

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, h.events, 2)
	assert.True(t, h.ctxOK)
	assert.Equal(t, 2, logs.FilterMessage("event handling failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("request completed").Len())
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	h := &recordingHandler{}
	s := newTestServer(t, h, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(body))
	req.Header.Set("X-Line-Signature", sign("wrong", body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	s.Wait()

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, h.events)
}

func TestWebhookRejectsGarbage(t *testing.T) {
	s := newTestServer(t, &recordingHandler{}, nil)
	garbage := "{not json"
	req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(garbage))
	req.Header.Set("X-Line-Signature", sign("secret", garbage))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, &recordingHandler{}, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestNewValidates(t *testing.T) {
	_, err := New(Config{ChannelSecret: "s"}, nil, nil)
	require.Error(t, err)
	_, err = New(Config{}, &recordingHandler{}, nil)
	require.Error(t, err)
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	s, err := New(Config{ChannelSecret: "s", Addr: "127.0.0.1:0"}, &recordingHandler{}, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.ListenAndServe(ctx))
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := New(Config{ChannelSecret: "secret", Metrics: metrics.MustNew(reg), Gatherer: reg}, &recordingHandler{}, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(body))
	req.Header.Set("X-Line-Signature", sign("secret", body))
	s.Handler().ServeHTTP(httptest.NewRecorder(), req)
	s.Wait()

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `blessing_webhook_events_total{type="follow"} 1`)
}
