// Package session keeps the short-lived per-conversation selection state.
package session

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultTTL  = 300 * time.Second
	DefaultSize = 10_000
)

// State 记录某个会话（用户、群组或聊天室）已选的主题与风格。StyleID 为空表示尚未选风格。
type State struct {
	ThemeID   string    `json:"themeId"`
	StyleID   string    `json:"styleId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is a TTL key-value store keyed by source id.
type Store interface {
	Get(ctx context.Context, sourceID string) (State, bool, error)
	Set(ctx context.Context, sourceID string, state State) error
	Clear(ctx context.Context, sourceID string) error
}

// Memory is an in-process Store backed by an expirable LRU.
type Memory struct {
	cache *expirable.LRU[string, State]
	ttl   time.Duration
	now   func() time.Time
}

var _ Store = (*Memory)(nil)

// MemoryOption customises Memory.
type MemoryOption func(*Memory)

// WithClock injects a custom clock (useful for tests).
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory creates a store holding at most size entries, each for ttl.
func NewMemory(size int, ttl time.Duration, opts ...MemoryOption) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if size <= 0 {
		size = DefaultSize
	}
	m := &Memory{
		cache: expirable.NewLRU[string, State](size, nil, ttl),
		ttl:   ttl,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the state if present and younger than the TTL.
func (m *Memory) Get(_ context.Context, sourceID string) (State, bool, error) {
	st, ok := m.cache.Get(sourceID)
	if !ok {
		return State{}, false, nil
	}
	// 以写入时间再校验一次，LRU 的过期只在惰性清理时生效
	if m.now().Sub(st.Timestamp) > m.ttl {
		m.cache.Remove(sourceID)
		return State{}, false, nil
	}
	return st, true, nil
}

// Set stores state, stamping it with the current time when Timestamp is zero.
func (m *Memory) Set(_ context.Context, sourceID string, state State) error {
	if state.Timestamp.IsZero() {
		state.Timestamp = m.now()
	}
	m.cache.Add(sourceID, state)
	return nil
}

// Clear removes any state for sourceID.
func (m *Memory) Clear(_ context.Context, sourceID string) error {
	m.cache.Remove(sourceID)
	return nil
}

// Len reports the number of live entries.
func (m *Memory) Len() int { return m.cache.Len() }
