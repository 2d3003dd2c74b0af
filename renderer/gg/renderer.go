// Package ggrenderer implements renderer.Surface on top of github.com/fogleman/gg.
package ggrenderer

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"

	"github.com/ByLCY/blessing/fonts"
	"github.com/ByLCY/blessing/layout"
	"github.com/ByLCY/blessing/renderer"
)

// Renderer creates gg-backed surfaces sharing one parsed font.
type Renderer struct {
	fontSrc string

	mu   sync.Mutex
	font *truetype.Font
}

var (
	_ renderer.Factory = (*Renderer)(nil)
	_ renderer.Surface = (*Surface)(nil)
)

// NewRenderer creates a gg renderer; fontSrc accepts a file path or builtin:*.
func NewRenderer(fontSrc string) *Renderer { return &Renderer{fontSrc: fontSrc} }

// NewSurface implements renderer.Factory.
func (r *Renderer) NewSurface(width, height int) (renderer.Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("画布尺寸无效: %dx%d", width, height)
	}
	f, err := r.parsedFont()
	if err != nil {
		return nil, err
	}
	s := &Surface{dc: gg.NewContext(width, height), font: f}
	s.SetFontSize(layout.DefaultMinFontSize)
	return s, nil
}

func (r *Renderer) parsedFont() (*truetype.Font, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.font != nil {
		return r.font, nil
	}
	src := r.fontSrc
	if src == "" {
		src = fonts.BuiltinRegular
	}
	data, err := fonts.Load(src)
	if err != nil {
		return nil, err
	}
	f, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("解析字体 %s 失败: %w", src, err)
	}
	r.font = f
	return f, nil
}

// Surface draws into a gg.Context.
type Surface struct {
	dc   *gg.Context
	font *truetype.Font
	face font.Face
}

// SetFontSize implements layout.Measurer. truetype 在 72 DPI 下 1pt 即 1 像素。
func (s *Surface) SetFontSize(px float64) {
	if px <= 0 {
		return
	}
	if s.face != nil {
		_ = s.face.Close()
	}
	s.face = truetype.NewFace(s.font, &truetype.Options{Size: px, DPI: 72, Hinting: font.HintingNone})
	s.dc.SetFontFace(s.face)
}

// MeasureText implements layout.Measurer.
func (s *Surface) MeasureText(text string) float64 {
	if text == "" {
		return 0
	}
	w, _ := s.dc.MeasureString(text)
	return w
}

// DrawImage implements renderer.Surface.
func (s *Surface) DrawImage(img image.Image, x, y, w, h float64) {
	if img == nil || w <= 0 || h <= 0 {
		return
	}
	tw, th := int(math.Round(w)), int(math.Round(h))
	b := img.Bounds()
	if b.Dx() != tw || b.Dy() != th {
		scaled := image.NewRGBA(image.Rect(0, 0, tw, th))
		xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), img, b, xdraw.Over, nil)
		img = scaled
	}
	s.dc.DrawImage(img, int(math.Round(x)), int(math.Round(y)))
}

// FillRect implements renderer.Surface.
func (s *Surface) FillRect(x, y, w, h float64, c color.Color) {
	s.dc.SetColor(c)
	s.dc.DrawRectangle(x, y, w, h)
	s.dc.Fill()
}

// FillText implements renderer.Surface.
func (s *Surface) FillText(text string, x, y float64, c color.Color) {
	if text == "" {
		return
	}
	s.dc.SetColor(c)
	s.dc.DrawStringAnchored(text, x, y, 0, 0.5)
}

// Image implements renderer.Surface.
func (s *Surface) Image() (image.Image, error) { return s.dc.Image(), nil }
