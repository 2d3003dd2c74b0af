package ggrenderer

import (
	"image"
	"image/color"
	"testing"
)

func TestSurfaceDrawsPanelAndText(t *testing.T) {
	s, err := NewRenderer("").NewSurface(200, 100)
	if err != nil {
		t.Fatalf("new surface: %v", err)
	}
	s.FillRect(0, 0, 200, 100, color.RGBA{A: 255})
	s.SetFontSize(40)
	s.FillText("Hi", 10, 50, color.White)
	img, err := s.Image()
	if err != nil {
		t.Fatalf("image: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 100 {
		t.Fatalf("unexpected bounds %v", b)
	}
	lit := 0
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			if r, _, _, _ := img.At(x, y).RGBA(); r > 0x8000 {
				lit++
			}
		}
	}
	if lit == 0 {
		t.Fatalf("expected white glyph pixels on the black panel")
	}
}

func TestMeasureTextDependsOnFontSize(t *testing.T) {
	s, err := NewRenderer("builtin:go-regular").NewSurface(10, 10)
	if err != nil {
		t.Fatalf("new surface: %v", err)
	}
	s.SetFontSize(12)
	a := s.MeasureText("blessing")
	s.SetFontSize(24)
	b := s.MeasureText("blessing")
	if a <= 0 || b <= a*1.5 {
		t.Fatalf("unexpected widths: %g then %g", a, b)
	}
}

func TestDrawImageScales(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 72, 72))
	for i := range src.Pix {
		src.Pix[i] = 0xff
	}
	s, err := NewRenderer("").NewSurface(100, 100)
	if err != nil {
		t.Fatalf("new surface: %v", err)
	}
	s.DrawImage(src, 10, 10, 20, 20)
	img, _ := s.Image()
	if _, _, _, a := img.At(20, 20).RGBA(); a == 0 {
		t.Fatalf("expected opaque pixel inside the scaled image")
	}
	if _, _, _, a := img.At(50, 50).RGBA(); a != 0 {
		t.Fatalf("expected transparent pixel outside the scaled image")
	}
}

func TestUnknownFontFails(t *testing.T) {
	if _, err := NewRenderer("builtin:nope").NewSurface(10, 10); err == nil {
		t.Fatalf("expected error for unknown font")
	}
}
