package layout

import (
	"errors"
	"math"
)

var errNoMeasurer = errors.New("layout: 缺少文字测量后端 Measurer")

// Fit 反复缩小字号并重新折行，直到文字块高度不超过区域高度。
//
// 每轮都会先把字号设置到 Measurer 上再分词折行，避免使用旧字号的测量结果。
// 字号严格递减且不低于 MinFontSize；若在 MaxAttempts 轮内始终放不下，
// 返回最后一轮的排版并将 Fits 置为 false，由调用方记录日志。
func Fit(text string, region Region, opts FitOptions) (FittedLayout, error) {
	if opts.Measurer == nil {
		return FittedLayout{}, errNoMeasurer
	}
	opts = opts.withDefaults()
	tokens := Tokenize(text, opts.Markers)

	var result FittedLayout
	size := opts.InitialFontSize
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		result = layoutAt(tokens, region, size, opts)
		result.Attempts = attempt
		if result.PanelHeight <= region.Height {
			result.Fits = true
			return result, nil
		}
		next := math.Max(size*opts.ShrinkFactor, opts.MinFontSize)
		if next >= size {
			break
		}
		size = next
	}
	return result, nil
}

func layoutAt(tokens []Token, region Region, size float64, opts FitOptions) FittedLayout {
	opts.Measurer.SetFontSize(size)
	padding := size / 4
	lineHeight := size * opts.LineHeightFactor

	wrapWidth := math.Max(region.Width-2*padding, 1)
	lines := BreakLines(tokens, wrapWidth, opts.Measurer.MeasureText, size)
	l := FittedLayout{
		Lines:      lines,
		FontSize:   size,
		LineHeight: lineHeight,
		Padding:    padding,
		Region:     region,
	}
	l.PanelWidth = l.MaxLineWidth() + 2*padding
	l.PanelHeight = float64(len(lines))*lineHeight + 2*padding

	l.OriginX = region.X + (region.Width-l.PanelWidth)/2
	switch region.Anchor {
	case AnchorTop:
		l.OriginY = region.Y
	default:
		l.OriginY = region.Y + region.Height - l.PanelHeight
	}
	l.OriginX = math.Max(l.OriginX, 0)
	l.OriginY = math.Max(l.OriginY, 0)
	return l
}
