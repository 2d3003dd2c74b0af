// Package blessing produces short blessing phrases within a length window
// using a bounded-retry state machine around a generative text backend.
package blessing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ByLCY/blessing/logging"
	"github.com/ByLCY/blessing/prompt"
)

// ErrQuotaExceeded 由 TextGenerator 实现返回（可包装），表示额度耗尽，继续重试没有意义。
var ErrQuotaExceeded = errors.New("blessing: text generation quota exceeded")

// TextGenerator is the generative text capability.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// templateSlots 是两个提示词模板可用的槽位。
var templateSlots = map[string]struct{}{"theme": {}, "style": {}, "minLength": {}, "maxLength": {}}

const (
	DefaultMinLength   = 5
	DefaultMaxLength   = 15
	DefaultMaxAttempts = 3

	DefaultPromptTemplate         = "請根據主題「{theme}」和風格「{style}」，生成一句長度介於{minLength}到{maxLength}個字之間的繁體中文祝福語。請直接提供祝福語文字，不要包含任何其他說明或引號。"
	DefaultFallbackPromptTemplate = "請生成一句長度介於{minLength}到{maxLength}個字之間的通用中文祝福語。請直接提供祝福語文字，不要包含任何其他說明或引號。"
	DefaultFinalFallbackText      = "平安喜樂，萬事如意"
)

// Config holds the generation bounds and templates.
type Config struct {
	MinLength              int
	MaxLength              int
	MaxAttempts            int
	PromptTemplate         string
	FallbackPromptTemplate string
	FinalFallbackText      string
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MinLength:              DefaultMinLength,
		MaxLength:              DefaultMaxLength,
		MaxAttempts:            DefaultMaxAttempts,
		PromptTemplate:         DefaultPromptTemplate,
		FallbackPromptTemplate: DefaultFallbackPromptTemplate,
		FinalFallbackText:      DefaultFinalFallbackText,
	}
}

// State 是生成状态机的状态。
type State int

const (
	StateAttempting State = iota
	StateFallbackAttempt
	StateFinalFallback
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAttempting:
		return "attempting"
	case StateFallbackAttempt:
		return "fallback-attempt"
	case StateFinalFallback:
		return "final-fallback"
	case StateDone:
		return "done"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// Source 标记最终文字的来源。
type Source string

const (
	SourceThemed   Source = "themed"
	SourceFallback Source = "fallback"
	SourceConstant Source = "constant"
)

// Attempt records one call to the text backend.
type Attempt struct {
	State    State
	Prompt   string
	Result   string
	Err      error
	Accepted bool
}

// Result is the outcome of Generate. Text is never empty.
type Result struct {
	Text     string
	Source   Source
	Attempts []Attempt
}

// Generator runs the retry state machine.
type Generator struct {
	backend  TextGenerator
	cfg      Config
	themed   *prompt.Template
	fallback *prompt.Template
	logger   *zap.Logger
}

// NewGenerator validates cfg (zero fields take defaults) and parses both templates.
func NewGenerator(backend TextGenerator, cfg Config, logger *zap.Logger) (*Generator, error) {
	if backend == nil {
		return nil, errors.New("blessing: text backend is required")
	}
	def := DefaultConfig()
	if cfg.MinLength <= 0 {
		cfg.MinLength = def.MinLength
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = def.MaxLength
	}
	if cfg.MaxLength < cfg.MinLength {
		return nil, fmt.Errorf("blessing: max length %d below min length %d", cfg.MaxLength, cfg.MinLength)
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.PromptTemplate == "" {
		cfg.PromptTemplate = def.PromptTemplate
	}
	if cfg.FallbackPromptTemplate == "" {
		cfg.FallbackPromptTemplate = def.FallbackPromptTemplate
	}
	if strings.TrimSpace(cfg.FinalFallbackText) == "" {
		cfg.FinalFallbackText = def.FinalFallbackText
	}
	themed, err := prompt.Parse(cfg.PromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("blessing: prompt template: %w", err)
	}
	fallback, err := prompt.Parse(cfg.FallbackPromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("blessing: fallback prompt template: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, tpl := range []*prompt.Template{themed, fallback} {
		if unknown := unknownSlots(tpl); len(unknown) > 0 {
			logger.Warn("prompt template has unknown slots, sent verbatim", zap.Strings("slots", unknown), zap.String("template", tpl.String()))
		}
	}
	return &Generator{backend: backend, cfg: cfg, themed: themed, fallback: fallback, logger: logger}, nil
}

func unknownSlots(tpl *prompt.Template) []string {
	var out []string
	for _, name := range tpl.Slots() {
		if _, ok := templateSlots[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

// Generate 总是返回非空文字，不向调用方暴露错误。
// 调用后端的次数介于 1 与 MaxAttempts+1 之间。
func (g *Generator) Generate(ctx context.Context, themeName, styleName string) Result {
	logger := logging.Named(ctx, g.logger, "blessing")
	vars := map[string]string{
		"theme":     themeName,
		"style":     styleName,
		"minLength": strconv.Itoa(g.cfg.MinLength),
		"maxLength": strconv.Itoa(g.cfg.MaxLength),
	}

	var res Result
	state := StateAttempting
	n := 1
	for state != StateDone {
		switch state {
		case StateAttempting:
			a := g.attempt(ctx, state, g.themed.Execute(vars))
			res.Attempts = append(res.Attempts, a)
			switch {
			case a.Accepted:
				res.Text, res.Source = a.Result, SourceThemed
				state = StateDone
			case errors.Is(a.Err, ErrQuotaExceeded):
				logger.Warn("text generation quota exceeded, using constant", zap.Int("attempt", n))
				state = StateFinalFallback
			case n < g.cfg.MaxAttempts:
				logger.Warn("themed blessing rejected, retrying", zap.Int("attempt", n), zap.String("result", a.Result), zap.Error(a.Err))
				n++
			default:
				logger.Warn("themed attempts exhausted, trying generic prompt", zap.Int("attempts", n))
				state = StateFallbackAttempt
			}

		case StateFallbackAttempt:
			a := g.attempt(ctx, state, g.fallback.Execute(vars))
			res.Attempts = append(res.Attempts, a)
			if a.Accepted {
				res.Text, res.Source = a.Result, SourceFallback
				state = StateDone
				break
			}
			logger.Warn("generic blessing rejected, using constant", zap.String("result", a.Result), zap.Error(a.Err))
			state = StateFinalFallback

		case StateFinalFallback:
			res.Text, res.Source = g.cfg.FinalFallbackText, SourceConstant
			state = StateDone
		}
	}
	return res
}

func (g *Generator) attempt(ctx context.Context, state State, p string) Attempt {
	a := Attempt{State: state, Prompt: p}
	text, err := g.backend.GenerateText(ctx, p)
	if err != nil {
		a.Err = err
		return a
	}
	a.Result = strings.TrimSpace(text)
	a.Accepted = g.withinBounds(a.Result)
	return a
}

// withinBounds 以字符数（而非字节数）比较长度。
func (g *Generator) withinBounds(s string) bool {
	if s == "" {
		return false
	}
	n := utf8.RuneCountInString(s)
	return n >= g.cfg.MinLength && n <= g.cfg.MaxLength
}

// Config returns the effective configuration.
func (g *Generator) Config() Config { return g.cfg }
