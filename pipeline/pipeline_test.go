package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByLCY/blessing/blessing"
	"github.com/ByLCY/blessing/catalog"
	"github.com/ByLCY/blessing/compose"
	"github.com/ByLCY/blessing/imagegen"
	"github.com/ByLCY/blessing/layout"
)

type fakeImages struct {
	body []byte
	err  error
	reqs []imagegen.Request
}

func (f *fakeImages) Fetch(_ context.Context, req imagegen.Request) ([]byte, error) {
	f.reqs = append(f.reqs, req)
	return f.body, f.err
}

type fakeDetector struct {
	anns  []layout.ObjectAnnotation
	err   error
	calls int
}

func (f *fakeDetector) Detect(_ context.Context, _ []byte) ([]layout.ObjectAnnotation, error) {
	f.calls++
	return f.anns, f.err
}

type fakeText struct {
	calls int
}

func (f *fakeText) Generate(_ context.Context, themeName, styleName string) blessing.Result {
	f.calls++
	return blessing.Result{Text: "AI:" + themeName + styleName, Source: blessing.SourceFallback}
}

type fakeCompositor struct {
	text string
	anns []layout.ObjectAnnotation
	src  image.Image
}

func (f *fakeCompositor) Compose(_ context.Context, src image.Image, text string, anns []layout.ObjectAnnotation) (compose.Result, error) {
	f.src, f.text, f.anns = src, text, anns
	return compose.Result{Image: src, Layout: &layout.FittedLayout{FontSize: 12}}, nil
}

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

var (
	testTheme    = &catalog.Theme{ID: "t1", Name: "早安", DefaultText: "早安你好", Prompt: "A {stylePrompt} scene"}
	testStyle    = &catalog.Style{ID: "s1", Name: "水彩", Prompt: "festive"}
	festivalTh   = &catalog.Theme{ID: catalog.FestivalThemeID, Name: "節日", DefaultText: "佳節愉快", Prompt: "Lanterns, {stylePrompt}"}
	errUpstream  = errors.New("upstream down")
	errDetection = errors.New("vision down")
)

func newTestPipeline(t *testing.T, images *fakeImages, det ObjectDetector, text *fakeText, comp *fakeCompositor) *Pipeline {
	t.Helper()
	p, err := New(images, det, text, comp, Config{Width: 64, Height: 48}, nil)
	require.NoError(t, err)
	return p
}

func TestComposePrompt(t *testing.T) {
	got, err := ComposePrompt(testTheme, testStyle, "")
	require.NoError(t, err)
	assert.Equal(t, "A festive scene", got)

	got, err = ComposePrompt(festivalTh, testStyle, "新年快樂")
	require.NoError(t, err)
	assert.Equal(t, "新年快樂, Lanterns, festive", got)

	got, err = ComposePrompt(festivalTh, testStyle, UseDefaultText)
	require.NoError(t, err)
	assert.Equal(t, "Lanterns, festive", got)

	// 非节日主题不前置文字
	got, err = ComposePrompt(testTheme, testStyle, "新年快樂")
	require.NoError(t, err)
	assert.Equal(t, "A festive scene", got)

	_, err = ComposePrompt(nil, testStyle, "")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestGenerateWithUserText(t *testing.T) {
	images := &fakeImages{body: pngOf(t, 64, 48)}
	det := &fakeDetector{anns: []layout.ObjectAnnotation{{Name: "cat"}}}
	text := &fakeText{}
	comp := &fakeCompositor{}

	res, err := newTestPipeline(t, images, det, text, comp).Generate(context.Background(), testTheme, testStyle, "平安喜樂")
	require.NoError(t, err)

	assert.Zero(t, text.calls)
	assert.Equal(t, "平安喜樂", comp.text)
	assert.Equal(t, det.anns, comp.anns)
	assert.Equal(t, "A festive scene", res.Prompt)
	require.Len(t, images.reqs, 1)
	assert.Equal(t, imagegen.Request{Prompt: "A festive scene", Width: 64, Height: 48}, images.reqs[0])

	decoded, err := png.Decode(bytes.NewReader(res.PNG))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 48), decoded.Bounds())
	assert.NotNil(t, res.Layout)
	assert.Empty(t, res.TextSource)
}

func TestGenerateDefaultTextSentinel(t *testing.T) {
	comp := &fakeCompositor{}
	_, err := newTestPipeline(t, &fakeImages{body: pngOf(t, 4, 4)}, nil, &fakeText{}, comp).
		Generate(context.Background(), testTheme, testStyle, UseDefaultText)
	require.NoError(t, err)
	assert.Equal(t, "早安你好", comp.text)
}

func TestGenerateEmptyTextUsesGenerator(t *testing.T) {
	text := &fakeText{}
	comp := &fakeCompositor{}
	images := &fakeImages{body: pngOf(t, 4, 4)}
	res, err := newTestPipeline(t, images, nil, text, comp).Generate(context.Background(), festivalTh, testStyle, "")
	require.NoError(t, err)

	assert.Equal(t, 1, text.calls)
	assert.Equal(t, "AI:節日水彩", comp.text)
	assert.Equal(t, blessing.SourceFallback, res.TextSource)
	assert.Equal(t, "AI:節日水彩, Lanterns, festive", images.reqs[0].Prompt)
}

func TestGenerateDetectionFailureDegrades(t *testing.T) {
	det := &fakeDetector{err: errDetection}
	comp := &fakeCompositor{anns: []layout.ObjectAnnotation{{Name: "stale"}}}
	res, err := newTestPipeline(t, &fakeImages{body: pngOf(t, 4, 4)}, det, &fakeText{}, comp).
		Generate(context.Background(), testTheme, testStyle, "hi")
	require.NoError(t, err)
	assert.Equal(t, 1, det.calls)
	assert.Nil(t, comp.anns)
	assert.Nil(t, res.Annotations)
}

func TestGenerateHardFailures(t *testing.T) {
	p := newTestPipeline(t, &fakeImages{err: errUpstream}, nil, &fakeText{}, &fakeCompositor{})
	_, err := p.Generate(context.Background(), testTheme, testStyle, "hi")
	require.ErrorIs(t, err, errUpstream)

	p = newTestPipeline(t, &fakeImages{body: []byte("not an image")}, nil, &fakeText{}, &fakeCompositor{})
	_, err = p.Generate(context.Background(), testTheme, testStyle, "hi")
	require.ErrorContains(t, err, "decode")

	_, err = p.Generate(context.Background(), nil, testStyle, "hi")
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = New(nil, nil, nil, nil, Config{}, nil)
	require.ErrorIs(t, err, ErrInvalidInput)
}
