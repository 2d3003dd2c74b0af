// Package config loads runtime configuration from defaults, an optional
// blessing.yaml file and environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ByLCY/blessing/blessing"
	"github.com/ByLCY/blessing/bot"
	"github.com/ByLCY/blessing/fonts"
	"github.com/ByLCY/blessing/gemini"
	"github.com/ByLCY/blessing/imagegen"
	"github.com/ByLCY/blessing/session"
)

const (
	defaultPort            = "3000"
	defaultReadTimeout     = 15 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultFontDivisor     = 20
	defaultBackground      = "rgba(0,0,0,0.5)"
	defaultTextColor       = "#FFFFFF"
	defaultRenderer        = "canvas"
	defaultLogLevel        = "info"
	defaultConfigName      = "blessing"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	LogLevel string
	Server   ServerConfig
	LINE     LINEConfig
	Gemini   GeminiConfig
	Vision   VisionConfig
	Storage  StorageConfig
	Image    ImageConfig
	Bot      bot.Config
	Session  SessionConfig
	Catalog  CatalogConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string { return ":" + s.Port }

// LINEConfig holds channel credentials.
type LINEConfig struct {
	ChannelSecret      string
	ChannelAccessToken string
}

// GeminiConfig holds the text generation backend and its bounds.
type GeminiConfig struct {
	APIKey    string
	Model     string
	Generator blessing.Config
}

// VisionConfig configures object detection. Detection is disabled when Enabled is false.
type VisionConfig struct {
	Enabled         bool
	APIKey          string
	CredentialsFile string
}

// StorageConfig configures the bucket holding delivered images.
type StorageConfig struct {
	Bucket        string
	Prefix        string
	PublicBaseURL string
}

// ImageConfig configures generation and composition.
type ImageConfig struct {
	Width           int
	Height          int
	Model           string
	Retries         int
	RetryDelay      time.Duration
	FontSizeDivisor float64
	Background      color.Color
	TextColor       color.Color
	Renderer        string // canvas 或 gg
	Font            string // serve 要求字体覆盖 GEMINI_FINAL_FALLBACK_TEXT 的全部字形
	EmojiBaseURL    string
}

// SessionConfig configures the conversation state store.
type SessionConfig struct {
	TTL  time.Duration
	Size int
}

// CatalogConfig points at theme/style tables; empty paths use the embedded data.
type CatalogConfig struct {
	ThemesPath string
	StylesPath string
}

// ValidationError aggregates invalid or missing fields.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return "config: invalid fields: " + strings.Join(e.fields, ", ")
}

// Fields lists the offending keys.
func (e *ValidationError) Fields() []string { return append([]string(nil), e.fields...) }

// Option customises loading.
type Option func(*loader)

type loader struct {
	file     string
	paths    []string
	values   map[string]any
	required bool
}

// WithFile reads the given config file instead of searching for blessing.yaml.
func WithFile(path string) Option {
	return func(l *loader) { l.file = path }
}

// WithSearchPaths overrides the directories searched for blessing.yaml.
func WithSearchPaths(paths ...string) Option {
	return func(l *loader) { l.paths = paths }
}

// WithValues sets explicit values, taking precedence over file and environment.
func WithValues(values map[string]any) Option {
	return func(l *loader) { l.values = values }
}

// WithoutValidation skips the required credential checks, for offline commands.
func WithoutValidation() Option {
	return func(l *loader) { l.required = false }
}

// Load resolves the configuration.
func Load(opts ...Option) (Config, error) {
	l := &loader{paths: []string{"."}, required: true}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if l.file != "" {
		v.SetConfigFile(l.file)
	} else {
		v.SetConfigName(defaultConfigName)
		v.SetConfigType("yaml")
		for _, p := range l.paths {
			v.AddConfigPath(p)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if l.file != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read file: %w", err)
		}
	}
	for k, val := range l.values {
		v.Set(k, val)
	}

	cfg, err := decode(v)
	if err != nil {
		return Config{}, err
	}
	if l.required {
		if err := validate(cfg); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	gen := blessing.DefaultConfig()
	b := bot.DefaultConfig()

	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("port", defaultPort)
	v.SetDefault("server_read_timeout", defaultReadTimeout)
	v.SetDefault("server_write_timeout", defaultWriteTimeout)
	v.SetDefault("server_shutdown_timeout", defaultShutdownTimeout)

	v.SetDefault("line_channel_secret", "")
	v.SetDefault("line_channel_access_token", "")

	v.SetDefault("gemini_api_key", "")
	v.SetDefault("gemini_model", gemini.DefaultModel)
	v.SetDefault("gemini_blessing_prompt_template", gen.PromptTemplate)
	v.SetDefault("gemini_fallback_prompt_template", gen.FallbackPromptTemplate)
	v.SetDefault("gemini_final_fallback_text", gen.FinalFallbackText)
	v.SetDefault("gemini_text_min_length", gen.MinLength)
	v.SetDefault("gemini_text_max_length", gen.MaxLength)
	v.SetDefault("gemini_generation_max_attempts", gen.MaxAttempts)

	v.SetDefault("vision_enabled", true)
	v.SetDefault("vision_api_key", "")
	v.SetDefault("google_application_credentials", "")

	v.SetDefault("gcs_bucket", "")
	v.SetDefault("gcs_prefix", "blessings/")
	v.SetDefault("gcs_public_base_url", "")

	v.SetDefault("image_width", imagegen.DefaultWidth)
	v.SetDefault("image_height", imagegen.DefaultHeight)
	v.SetDefault("image_model", imagegen.DefaultModel)
	v.SetDefault("image_generation_retries", imagegen.DefaultMaxRetries)
	v.SetDefault("image_generation_retry_delay_ms", int(imagegen.DefaultRetryDelay/time.Millisecond))
	v.SetDefault("image_font_size_ratio_divisor", defaultFontDivisor)
	v.SetDefault("image_bg_color_rgba", defaultBackground)
	v.SetDefault("image_text_color_hex", defaultTextColor)
	v.SetDefault("image_renderer", defaultRenderer)
	v.SetDefault("image_font", "")
	v.SetDefault("emoji_base_url", "")

	v.SetDefault("bot_trigger_keywords", strings.Join(b.TriggerPhrases, ","))
	v.SetDefault("bot_max_text_length", b.MaxTextLength)
	v.SetDefault("image_deletion_delay_ms", int(b.DeletionDelay/time.Millisecond))
	v.SetDefault("welcome_message", b.WelcomeMessage)
	v.SetDefault("generation_error_message", b.GenerationErrorMessage)

	v.SetDefault("user_state_ttl_seconds", int(session.DefaultTTL/time.Second))
	v.SetDefault("user_state_max_entries", session.DefaultSize)

	v.SetDefault("themes_path", "")
	v.SetDefault("styles_path", "")
}

func decode(v *viper.Viper) (Config, error) {
	var bad []string

	bg, err := ParseColor(v.GetString("image_bg_color_rgba"))
	if err != nil {
		bad = append(bad, "IMAGE_BG_COLOR_RGBA")
	}
	fg, err := ParseColor(v.GetString("image_text_color_hex"))
	if err != nil {
		bad = append(bad, "IMAGE_TEXT_COLOR_HEX")
	}
	divisor := v.GetFloat64("image_font_size_ratio_divisor")
	if divisor <= 0 {
		bad = append(bad, "IMAGE_FONT_SIZE_RATIO_DIVISOR")
	}
	rendererName := strings.ToLower(strings.TrimSpace(v.GetString("image_renderer")))
	if rendererName != "canvas" && rendererName != "gg" {
		bad = append(bad, "IMAGE_RENDERER")
	}
	gen := blessing.Config{
		MinLength:              v.GetInt("gemini_text_min_length"),
		MaxLength:              v.GetInt("gemini_text_max_length"),
		MaxAttempts:            v.GetInt("gemini_generation_max_attempts"),
		PromptTemplate:         v.GetString("gemini_blessing_prompt_template"),
		FallbackPromptTemplate: v.GetString("gemini_fallback_prompt_template"),
		FinalFallbackText:      v.GetString("gemini_final_fallback_text"),
	}
	if gen.MinLength <= 0 || gen.MaxLength < gen.MinLength {
		bad = append(bad, "GEMINI_TEXT_MIN_LENGTH/GEMINI_TEXT_MAX_LENGTH")
	}
	if len(bad) > 0 {
		return Config{}, &ValidationError{fields: bad}
	}

	return Config{
		LogLevel: v.GetString("log_level"),
		Server: ServerConfig{
			Port:            v.GetString("port"),
			ReadTimeout:     v.GetDuration("server_read_timeout"),
			WriteTimeout:    v.GetDuration("server_write_timeout"),
			ShutdownTimeout: v.GetDuration("server_shutdown_timeout"),
		},
		LINE: LINEConfig{
			ChannelSecret:      v.GetString("line_channel_secret"),
			ChannelAccessToken: v.GetString("line_channel_access_token"),
		},
		Gemini: GeminiConfig{
			APIKey:    v.GetString("gemini_api_key"),
			Model:     v.GetString("gemini_model"),
			Generator: gen,
		},
		Vision: VisionConfig{
			Enabled:         v.GetBool("vision_enabled"),
			APIKey:          v.GetString("vision_api_key"),
			CredentialsFile: v.GetString("google_application_credentials"),
		},
		Storage: StorageConfig{
			Bucket:        v.GetString("gcs_bucket"),
			Prefix:        v.GetString("gcs_prefix"),
			PublicBaseURL: v.GetString("gcs_public_base_url"),
		},
		Image: ImageConfig{
			Width:           v.GetInt("image_width"),
			Height:          v.GetInt("image_height"),
			Model:           v.GetString("image_model"),
			Retries:         v.GetInt("image_generation_retries"),
			RetryDelay:      time.Duration(v.GetInt("image_generation_retry_delay_ms")) * time.Millisecond,
			FontSizeDivisor: divisor,
			Background:      bg,
			TextColor:       fg,
			Renderer:        rendererName,
			Font:            v.GetString("image_font"),
			EmojiBaseURL:    v.GetString("emoji_base_url"),
		},
		Bot: bot.Config{
			TriggerPhrases:         csv(v.GetString("bot_trigger_keywords")),
			MaxTextLength:          v.GetInt("bot_max_text_length"),
			DeletionDelay:          time.Duration(v.GetInt("image_deletion_delay_ms")) * time.Millisecond,
			WelcomeMessage:         v.GetString("welcome_message"),
			GenerationErrorMessage: v.GetString("generation_error_message"),
		},
		Session: SessionConfig{
			TTL:  time.Duration(v.GetInt("user_state_ttl_seconds")) * time.Second,
			Size: v.GetInt("user_state_max_entries"),
		},
		Catalog: CatalogConfig{
			ThemesPath: v.GetString("themes_path"),
			StylesPath: v.GetString("styles_path"),
		},
	}, nil
}

func validate(cfg Config) error {
	var missing []string
	if cfg.LINE.ChannelSecret == "" {
		missing = append(missing, "LINE_CHANNEL_SECRET")
	}
	if cfg.LINE.ChannelAccessToken == "" {
		missing = append(missing, "LINE_CHANNEL_ACCESS_TOKEN")
	}
	if cfg.Gemini.APIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	if cfg.Storage.Bucket == "" {
		missing = append(missing, "GCS_BUCKET")
	}
	if !coversFallback(cfg.Image.Font, cfg.Gemini.Generator.FinalFallbackText) {
		missing = append(missing, "IMAGE_FONT")
	}
	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

// coversFallback 校验字体能绘制兜底祝福语；未配置字体时内置字体只含拉丁字符，必然失败。
func coversFallback(src, text string) bool {
	if strings.TrimSpace(src) == "" {
		return false
	}
	if text == "" {
		text = blessing.DefaultFinalFallbackText
	}
	data, err := fonts.Load(src)
	if err != nil {
		return false
	}
	missing, err := fonts.MissingGlyphs(data, text)
	return err == nil && len(missing) == 0
}

func csv(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseColor accepts "rgba(r,g,b,a)" with alpha in [0,1], "rgb(r,g,b)", "#RRGGBB" and "#RGB".
func ParseColor(s string) (color.Color, error) {
	s = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	switch {
	case strings.HasPrefix(s, "#"):
		return parseHex(s[1:])
	case strings.HasPrefix(s, "rgba(") && strings.HasSuffix(s, ")"):
		return parseFunc(s[len("rgba("):len(s)-1], 4)
	case strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")"):
		return parseFunc(s[len("rgb("):len(s)-1], 3)
	}
	return nil, fmt.Errorf("config: unsupported colour %q", s)
}

func parseHex(h string) (color.Color, error) {
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return nil, fmt.Errorf("config: bad hex colour %q", h)
	}
	n, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("config: bad hex colour %q: %w", h, err)
	}
	return color.NRGBA{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n), A: 0xff}, nil
}

func parseFunc(body string, n int) (color.Color, error) {
	parts := strings.Split(body, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("config: expected %d components in %q", n, body)
	}
	var ch [3]uint8
	for i := 0; i < 3; i++ {
		v, err := strconv.Atoi(parts[i])
		if err != nil || v < 0 || v > 255 {
			return nil, fmt.Errorf("config: bad colour component %q", parts[i])
		}
		ch[i] = uint8(v)
	}
	alpha := uint8(0xff)
	if n == 4 {
		a, err := strconv.ParseFloat(parts[3], 64)
		if err != nil || a < 0 || a > 1 {
			return nil, fmt.Errorf("config: bad alpha %q", parts[3])
		}
		alpha = uint8(a*255 + 0.5)
	}
	return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: alpha}, nil
}
