package config

import (
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByLCY/blessing/fonts"
)

// requiredValues 使用内置拉丁字体，因此兜底文字也改为拉丁字符。
func requiredValues() map[string]any {
	return map[string]any{
		"line_channel_secret":        "secret",
		"line_channel_access_token":  "token",
		"gemini_api_key":             "key",
		"gcs_bucket":                 "bucket",
		"image_font":                 fonts.BuiltinRegular,
		"gemini_final_fallback_text": "Peace and joy",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(WithSearchPaths(t.TempDir()), WithoutValidation())
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Server.Addr())
	assert.Equal(t, 5, cfg.Gemini.Generator.MinLength)
	assert.Equal(t, 15, cfg.Gemini.Generator.MaxLength)
	assert.Equal(t, 3, cfg.Gemini.Generator.MaxAttempts)
	assert.Equal(t, "平安喜樂，萬事如意", cfg.Gemini.Generator.FinalFallbackText)
	assert.Equal(t, color.NRGBA{A: 128}, cfg.Image.Background)
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, cfg.Image.TextColor)
	assert.Equal(t, float64(20), cfg.Image.FontSizeDivisor)
	assert.Equal(t, "canvas", cfg.Image.Renderer)
	assert.Equal(t, 10*time.Second, cfg.Bot.DeletionDelay)
	assert.Equal(t, 20, cfg.Bot.MaxTextLength)
	assert.Contains(t, cfg.Bot.TriggerPhrases, "長輩圖")
	assert.Equal(t, 300*time.Second, cfg.Session.TTL)
	assert.Equal(t, 5*time.Second, cfg.Image.RetryDelay)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("GEMINI_TEXT_MAX_LENGTH", "12")
	t.Setenv("BOT_TRIGGER_KEYWORDS", " 做圖 , hi ,")
	t.Setenv("IMAGE_RENDERER", "GG")
	t.Setenv("USER_STATE_TTL_SECONDS", "60")

	cfg, err := Load(WithSearchPaths(t.TempDir()), WithValues(requiredValues()))
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Gemini.Generator.MaxLength)
	assert.Equal(t, []string{"做圖", "hi"}, cfg.Bot.TriggerPhrases)
	assert.Equal(t, "gg", cfg.Image.Renderer)
	assert.Equal(t, time.Minute, cfg.Session.TTL)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	content := "port: \"8080\"\nimage_text_color_hex: \"#f00\"\nbot_max_text_length: 30\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blessing.yaml"), []byte(content), 0o644))

	cfg, err := Load(WithSearchPaths(dir), WithValues(requiredValues()))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr())
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, cfg.Image.TextColor)
	assert.Equal(t, 30, cfg.Bot.MaxTextLength)
}

func TestLoadExplicitFileMissing(t *testing.T) {
	_, err := Load(WithFile(filepath.Join(t.TempDir(), "nope.yaml")))
	require.Error(t, err)
}

func TestLoadReportsMissingSecrets(t *testing.T) {
	_, err := Load(WithSearchPaths(t.TempDir()))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.ElementsMatch(t, []string{"LINE_CHANNEL_SECRET", "LINE_CHANNEL_ACCESS_TOKEN", "GEMINI_API_KEY", "GCS_BUCKET", "IMAGE_FONT"}, verr.Fields())

	_, err = Load(WithSearchPaths(t.TempDir()), WithoutValidation())
	require.NoError(t, err)
}

func TestLoadRejectsFontWithoutFallbackGlyphs(t *testing.T) {
	cases := map[string]map[string]any{
		"default font":        {"image_font": ""},
		"latin builtin":       {"image_font": fonts.BuiltinRegular, "gemini_final_fallback_text": "平安喜樂，萬事如意"},
		"unreadable font":     {"image_font": filepath.Join(t.TempDir(), "missing.ttf")},
		"empty fallback text": {"image_font": fonts.BuiltinRegular, "gemini_final_fallback_text": ""},
	}
	for name, overrides := range cases {
		t.Run(name, func(t *testing.T) {
			values := requiredValues()
			for k, v := range overrides {
				values[k] = v
			}
			_, err := Load(WithSearchPaths(t.TempDir()), WithValues(values))
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, []string{"IMAGE_FONT"}, verr.Fields())
		})
	}
}

func TestLoadAcceptsFontCoveringFallback(t *testing.T) {
	cfg, err := Load(WithSearchPaths(t.TempDir()), WithValues(requiredValues()))
	require.NoError(t, err)
	assert.Equal(t, fonts.BuiltinRegular, cfg.Image.Font)
	assert.Equal(t, "Peace and joy", cfg.Gemini.Generator.FinalFallbackText)
}

func TestLoadRejectsBadValues(t *testing.T) {
	values := requiredValues()
	values["image_bg_color_rgba"] = "purple"
	values["image_renderer"] = "svg"
	values["gemini_text_min_length"] = 20
	_, err := Load(WithSearchPaths(t.TempDir()), WithValues(values))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"IMAGE_BG_COLOR_RGBA", "IMAGE_RENDERER", "GEMINI_TEXT_MIN_LENGTH/GEMINI_TEXT_MAX_LENGTH"}, verr.Fields())
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.Color
		ok   bool
	}{
		{"rgba(0,0,0,0.5)", color.NRGBA{A: 128}, true},
		{" rgba(255, 200, 0, 1) ", color.NRGBA{R: 255, G: 200, A: 255}, true},
		{"rgb(1,2,3)", color.NRGBA{R: 1, G: 2, B: 3, A: 255}, true},
		{"#FFFFFF", color.NRGBA{R: 255, G: 255, B: 255, A: 255}, true},
		{"#0f0", color.NRGBA{G: 255, A: 255}, true},
		{"rgba(0,0,0,2)", nil, false},
		{"rgba(300,0,0,1)", nil, false},
		{"#12345", nil, false},
		{"white", nil, false},
	}
	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		if !tt.ok {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
