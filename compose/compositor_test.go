package compose

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByLCY/blessing/layout"
	"github.com/ByLCY/blessing/renderer"
	ggrenderer "github.com/ByLCY/blessing/renderer/gg"
)

type op struct {
	kind       string
	text       string
	x, y, w, h float64
	img        image.Image
}

// fakeSurface 每个字符宽为字号的一半，并记录所有绘制调用。
type fakeSurface struct {
	w, h int
	size float64
	ops  []op
}

func (s *fakeSurface) SetFontSize(px float64) { s.size = px }
func (s *fakeSurface) MeasureText(text string) float64 {
	return float64(utf8.RuneCountInString(text)) * s.size / 2
}
func (s *fakeSurface) DrawImage(img image.Image, x, y, w, h float64) {
	s.ops = append(s.ops, op{kind: "image", x: x, y: y, w: w, h: h, img: img})
}
func (s *fakeSurface) FillRect(x, y, w, h float64, _ color.Color) {
	s.ops = append(s.ops, op{kind: "rect", x: x, y: y, w: w, h: h})
}
func (s *fakeSurface) FillText(text string, x, y float64, _ color.Color) {
	s.ops = append(s.ops, op{kind: "text", text: text, x: x, y: y})
}
func (s *fakeSurface) Image() (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, s.w, s.h)), nil
}

type fakeFactory struct {
	calls   int
	surface *fakeSurface
}

func (f *fakeFactory) NewSurface(w, h int) (renderer.Surface, error) {
	f.calls++
	f.surface = &fakeSurface{w: w, h: h}
	return f.surface, nil
}

type fakeEmoji struct {
	img   image.Image
	err   error
	calls []string
}

func (f *fakeEmoji) Fetch(_ context.Context, cp string) (image.Image, error) {
	f.calls = append(f.calls, cp)
	return f.img, f.err
}

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func assertText(t *testing.T, o op, text string, x, y float64) {
	t.Helper()
	assert.Equal(t, "text", o.kind)
	assert.Equal(t, text, o.text)
	assert.InDelta(t, x, o.x, 1e-9)
	assert.InDelta(t, y, o.y, 1e-9)
}

func TestComposeEmptyTextReturnsCopy(t *testing.T) {
	factory := &fakeFactory{}
	c, err := NewCompositor(factory, nil, Options{}, nil)
	require.NoError(t, err)

	src := solid(8, 6, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	res, err := c.Compose(context.Background(), src, "", nil)
	require.NoError(t, err)
	assert.Nil(t, res.Layout)
	assert.Zero(t, factory.calls, "empty text must not create a surface")

	out, ok := res.Image.(*image.RGBA)
	require.True(t, ok)
	assert.Equal(t, src.Pix, out.Pix)
	assert.Equal(t, src.Bounds(), out.Bounds())
	// 返回的是副本
	out.Pix[0] = 99
	assert.Equal(t, uint8(10), src.Pix[0])
}

func TestComposeDrawOrder(t *testing.T) {
	factory := &fakeFactory{}
	bitmap := solid(72, 72, color.White)
	fetcher := &fakeEmoji{img: bitmap}
	c, err := NewCompositor(factory, fetcher, Options{}, nil)
	require.NoError(t, err)

	src := solid(400, 400, color.Black)
	res, err := c.Compose(context.Background(), src, "Pray (hands together) now", nil)
	require.NoError(t, err)
	require.NotNil(t, res.Layout)
	assert.True(t, res.Layout.Fits)
	assert.Equal(t, "bottom-center", res.Layout.Region.Name)
	assert.InDelta(t, 20, res.Layout.FontSize, 1e-9)

	ops := factory.surface.ops
	require.Len(t, ops, 5)

	assert.Equal(t, "image", ops[0].kind)
	assert.Same(t, src, ops[0].img)
	assert.Equal(t, [4]float64{0, 0, 400, 400}, [4]float64{ops[0].x, ops[0].y, ops[0].w, ops[0].h})

	assert.Equal(t, "rect", ops[1].kind)
	assert.InDelta(t, 140, ops[1].x, 1e-9)
	assert.InDelta(t, 120, ops[1].w, 1e-9)
	assert.InDelta(t, 34, ops[1].h, 1e-9)

	midY := res.Layout.OriginY + 5 + 12
	assertText(t, ops[2], "Pray ", 145, midY)

	assert.Equal(t, "image", ops[3].kind)
	assert.Same(t, bitmap, ops[3].img)
	assert.InDelta(t, 195, ops[3].x, 1e-9)
	assert.InDelta(t, midY-10, ops[3].y, 1e-9)
	assert.InDelta(t, 20, ops[3].w, 1e-9)
	assert.InDelta(t, 20, ops[3].h, 1e-9)

	assertText(t, ops[4], " now", 215, midY)
	assert.Equal(t, []string{"1f64f"}, fetcher.calls)
}

func TestComposeEmojiFailureDrawsPlaceholder(t *testing.T) {
	factory := &fakeFactory{}
	fetcher := &fakeEmoji{err: errors.New("cdn down")}
	c, err := NewCompositor(factory, fetcher, Options{}, nil)
	require.NoError(t, err)

	_, err = c.Compose(context.Background(), solid(400, 400, color.Black), "(hands together)(hands together)", nil)
	require.NoError(t, err)

	var glyphs []op
	for _, o := range factory.surface.ops {
		if o.kind == "text" {
			glyphs = append(glyphs, o)
		}
	}
	require.Len(t, glyphs, 2)
	assert.Equal(t, FallbackGlyph, glyphs[0].text)
	assert.Equal(t, FallbackGlyph, glyphs[1].text)
	assert.InDelta(t, 20, glyphs[1].x-glyphs[0].x, 1e-9)
	assert.Len(t, fetcher.calls, 2)
}

func TestComposeAvoidsObjects(t *testing.T) {
	factory := &fakeFactory{}
	c, err := NewCompositor(factory, nil, Options{}, nil)
	require.NoError(t, err)

	ann := []layout.ObjectAnnotation{{Name: "cat", Box: layout.Rect{X: 0, Y: 0.5, Width: 1, Height: 0.5}}}
	res, err := c.Compose(context.Background(), solid(400, 400, color.Black), "hi", ann)
	require.NoError(t, err)
	assert.Equal(t, "top-left", res.Layout.Region.Name)
}

func TestNewCompositorRequiresFactory(t *testing.T) {
	_, err := NewCompositor(nil, nil, Options{}, nil)
	require.Error(t, err)
}

func TestComposeWithGGSurface(t *testing.T) {
	c, err := NewCompositor(ggrenderer.NewRenderer(""), nil, Options{}, nil)
	require.NoError(t, err)

	src := solid(200, 200, color.RGBA{B: 255, A: 255})
	res, err := c.Compose(context.Background(), src, "Peace", nil)
	require.NoError(t, err)
	require.NotNil(t, res.Layout)
	assert.Equal(t, src.Bounds(), res.Image.Bounds())

	// 面板左上角内侧应被半透明黑色压暗
	px := int(res.Layout.OriginX) + 1
	py := int(res.Layout.OriginY) + 1
	_, _, b, _ := res.Image.At(px, py).RGBA()
	assert.Less(t, b>>8, uint32(200))

	// 面板外保持原色
	_, _, b, _ = res.Image.At(2, 2).RGBA()
	assert.Equal(t, uint32(255), b>>8)
}
