package canvasrenderer

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"

	"github.com/ByLCY/blessing/fonts"
	"github.com/ByLCY/blessing/layout"
	"github.com/ByLCY/blessing/renderer"
)

// Renderer creates drawing surfaces backed by github.com/tdewolff/canvas.
// 画布单位按 mm 计，光栅化分辨率固定为 1 像素/mm，因此画布坐标即像素坐标。
type Renderer struct {
	fontSrc string

	fontMu sync.Mutex
	family *canvas.FontFamily
}

var (
	_ renderer.Factory = (*Renderer)(nil)
	_ renderer.Surface = (*Surface)(nil)
)

// Options configures the canvas renderer.
type Options struct {
	// FontSrc 为文件路径或 builtin:* 形式；为空时使用内置字体。
	FontSrc string
	// FontBytes 直接注入字体数据，优先于 FontSrc。
	FontBytes []byte
}

var resolution = canvas.DPMM(1.0)

// NewRenderer creates a canvas-based renderer using the given font source.
func NewRenderer(fontSrc string) *Renderer { return &Renderer{fontSrc: fontSrc} }

// NewRendererWithOptions creates a renderer and eagerly loads the font.
func NewRendererWithOptions(opts Options) (*Renderer, error) {
	r := &Renderer{fontSrc: opts.FontSrc}
	if len(opts.FontBytes) > 0 {
		family := canvas.NewFontFamily("blessing")
		if err := family.LoadFont(opts.FontBytes, 0, canvas.FontRegular); err != nil {
			return nil, fmt.Errorf("加载字体失败: %w", err)
		}
		r.family = family
		return r, nil
	}
	if _, err := r.fontFamily(); err != nil {
		return nil, err
	}
	return r, nil
}

// NewSurface implements renderer.Factory.
func (r *Renderer) NewSurface(width, height int) (renderer.Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("画布尺寸无效: %dx%d", width, height)
	}
	family, err := r.fontFamily()
	if err != nil {
		return nil, err
	}
	c := canvas.New(float64(width), float64(height))
	ctx := canvas.NewContext(c)
	ctx.SetCoordSystem(canvas.CartesianIV) // 使坐标与排版保持左上角为原点
	s := &Surface{canvas: c, ctx: ctx, family: family}
	s.SetFontSize(layout.DefaultMinFontSize)
	return s, nil
}

func (r *Renderer) fontFamily() (*canvas.FontFamily, error) {
	r.fontMu.Lock()
	defer r.fontMu.Unlock()
	if r.family != nil {
		return r.family, nil
	}

	src := r.fontSrc
	if src == "" {
		src = fonts.BuiltinRegular
	}
	data, err := fonts.Load(src)
	if err != nil {
		return nil, err
	}
	family := canvas.NewFontFamily("blessing")
	if err := family.LoadFont(data, 0, canvas.FontRegular); err != nil {
		return nil, fmt.Errorf("加载字体 %s 失败: %w", src, err)
	}
	r.family = family
	return family, nil
}

// Surface draws onto a single canvas.
type Surface struct {
	canvas *canvas.Canvas
	ctx    *canvas.Context
	family *canvas.FontFamily

	size    float64 // 像素
	measure *canvas.FontFace
}

// SetFontSize implements layout.Measurer.
func (s *Surface) SetFontSize(px float64) {
	if px <= 0 {
		return
	}
	s.size = px
	s.measure = s.face(canvas.Black)
}

// MeasureText implements layout.Measurer.
func (s *Surface) MeasureText(text string) float64 {
	if text == "" {
		return 0
	}
	return s.measure.TextWidth(text)
}

// DrawImage implements renderer.Surface.
func (s *Surface) DrawImage(img image.Image, x, y, w, h float64) {
	if img == nil || w <= 0 || h <= 0 {
		return
	}
	// 以分辨率控制缩放：图片像素宽 / 目标宽度 = 每 mm 像素数
	dpmm := float64(img.Bounds().Dx()) / w
	if dpmm <= 0 {
		dpmm = 1
	}
	s.ctx.DrawImage(x, y, img, canvas.DPMM(dpmm))
}

// FillRect implements renderer.Surface.
func (s *Surface) FillRect(x, y, w, h float64, c color.Color) {
	s.ctx.SetFillColor(c)
	s.ctx.SetStrokeColor(canvas.Transparent)
	s.ctx.DrawPath(x, y, canvas.Rectangle(w, h))
}

// FillText implements renderer.Surface.
func (s *Surface) FillText(text string, x, y float64, c color.Color) {
	if text == "" {
		return
	}
	face := s.face(c)
	// 以大写字母高度的一半把中线换算为基线
	baseline := y + face.Metrics().CapHeight/2
	s.ctx.DrawText(x, baseline, canvas.NewTextLine(face, text, canvas.Left))
}

// Image rasterizes the canvas at one pixel per unit.
func (s *Surface) Image() (image.Image, error) {
	return rasterizer.Draw(s.canvas, resolution, canvas.DefaultColorSpace), nil
}

func (s *Surface) face(c color.Color) *canvas.FontFace {
	return s.family.Face(layout.PxToPt(s.size), c, canvas.FontRegular, canvas.FontNormal)
}
