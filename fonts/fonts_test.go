package fonts

import (
	"bytes"
	"testing"

	"golang.org/x/image/font/gofont/goregular"
)

func TestLoadBuiltin(t *testing.T) {
	for _, src := range []string{BuiltinRegular, "built-in:go-regular"} {
		data, err := Load(src)
		if err != nil {
			t.Fatalf("load %s: %v", src, err)
		}
		if !bytes.Equal(data, goregular.TTF) {
			t.Fatalf("unexpected font bytes for %s", src)
		}
	}
	if _, err := Load("builtin:missing"); err == nil {
		t.Fatalf("expected error for unknown builtin")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("does/not/exist.ttf"); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if _, err := Load("  "); err == nil {
		t.Fatalf("expected error for empty source")
	}
}

func TestMissingGlyphsBuiltinHasNoCJK(t *testing.T) {
	missing, err := MissingGlyphs(goregular.TTF, "平安喜樂，萬事如意")
	if err != nil {
		t.Fatalf("missing glyphs: %v", err)
	}
	want := []rune("平安喜樂，萬事如意")
	if string(missing) != string(want) {
		t.Fatalf("missing = %q, want %q", string(missing), string(want))
	}
}

func TestMissingGlyphsLatinCovered(t *testing.T) {
	missing, err := MissingGlyphs(goregular.TTF, "Good morning, AAA!\n")
	if err != nil {
		t.Fatalf("missing glyphs: %v", err)
	}
	if len(missing) != 0 {
		t.Fatalf("unexpected missing runes %q", string(missing))
	}
	missing, err = MissingGlyphs(goregular.TTF, "A福A福")
	if err != nil {
		t.Fatalf("missing glyphs: %v", err)
	}
	if string(missing) != "福" {
		t.Fatalf("expected one deduplicated rune, got %q", string(missing))
	}
}

func TestMissingGlyphsRejectsGarbage(t *testing.T) {
	if _, err := MissingGlyphs([]byte("not a font"), "A"); err == nil {
		t.Fatalf("expected parse error")
	}
}
