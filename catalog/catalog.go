// Package catalog loads the static theme and style tables.
package catalog

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

//go:embed themes.json
var defaultThemes []byte

//go:embed styles.json
var defaultStyles []byte

// FestivalThemeID 的主题会把用户自定的祝福语并入图片提示词。
const FestivalThemeID = "festival"

// Theme is a named category with a default phrase and an image prompt
// template containing a {stylePrompt} slot.
type Theme struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DefaultText string `json:"defaultText"`
	Prompt      string `json:"prompt"`
	Thumbnail   string `json:"thumbnail"`
}

// Style modifies the theme prompt.
type Style struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Prompt    string `json:"prompt"`
	Thumbnail string `json:"thumbnail"`
}

// Catalog is immutable after Load.
type Catalog struct {
	themes []Theme
	styles []Style
}

// Load reads themes and styles from the given files; an empty path selects the embedded table.
func Load(themesPath, stylesPath string) (*Catalog, error) {
	themesRaw, err := readOr(themesPath, defaultThemes)
	if err != nil {
		return nil, err
	}
	stylesRaw, err := readOr(stylesPath, defaultStyles)
	if err != nil {
		return nil, err
	}
	return Parse(themesRaw, stylesRaw)
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultThemes, defaultStyles)
	if err != nil {
		panic(err)
	}
	return c
}

// Parse decodes {"themes":[...]} and {"styles":[...]} documents.
func Parse(themesRaw, stylesRaw []byte) (*Catalog, error) {
	var td struct {
		Themes []Theme `json:"themes"`
	}
	if err := json.Unmarshal(themesRaw, &td); err != nil {
		return nil, fmt.Errorf("解析主题失败: %w", err)
	}
	var sd struct {
		Styles []Style `json:"styles"`
	}
	if err := json.Unmarshal(stylesRaw, &sd); err != nil {
		return nil, fmt.Errorf("解析风格失败: %w", err)
	}
	if len(td.Themes) == 0 {
		return nil, errors.New("catalog: no themes defined")
	}
	if len(sd.Styles) == 0 {
		return nil, errors.New("catalog: no styles defined")
	}
	if err := checkIDs(td.Themes, func(t Theme) string { return t.ID }); err != nil {
		return nil, fmt.Errorf("catalog themes: %w", err)
	}
	if err := checkIDs(sd.Styles, func(s Style) string { return s.ID }); err != nil {
		return nil, fmt.Errorf("catalog styles: %w", err)
	}
	return &Catalog{themes: td.Themes, styles: sd.Styles}, nil
}

func (c *Catalog) Themes() []Theme { return append([]Theme(nil), c.themes...) }
func (c *Catalog) Styles() []Style { return append([]Style(nil), c.styles...) }

func (c *Catalog) ThemeByID(id string) (Theme, bool) {
	for _, t := range c.themes {
		if t.ID == id {
			return t, true
		}
	}
	return Theme{}, false
}

// ThemeByName matches the display name exactly, as sent by the carousel buttons.
func (c *Catalog) ThemeByName(name string) (Theme, bool) {
	for _, t := range c.themes {
		if t.Name == name {
			return t, true
		}
	}
	return Theme{}, false
}

func (c *Catalog) StyleByID(id string) (Style, bool) {
	for _, s := range c.styles {
		if s.ID == id {
			return s, true
		}
	}
	return Style{}, false
}

// DefaultStyle is used when a theme was chosen but no style.
func (c *Catalog) DefaultStyle() Style { return c.styles[0] }

func readOr(path string, fallback []byte) ([]byte, error) {
	if path == "" {
		return fallback, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取 %s 失败: %w", path, err)
	}
	return data, nil
}

func checkIDs[T any](items []T, id func(T) string) error {
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		k := id(it)
		if k == "" {
			return errors.New("empty id")
		}
		if _, dup := seen[k]; dup {
			return fmt.Errorf("duplicate id %q", k)
		}
		seen[k] = struct{}{}
	}
	return nil
}
