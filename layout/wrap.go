package layout

import (
	"math"
	"strings"
)

// MeasureFunc 返回一段文字在当前字号下的像素宽度。
type MeasureFunc func(text string) float64

// BreakLines 以贪心方式逐字符折行（不依赖词边界，适合中日韩文字）。
//
// 同一行内相邻的字符会合并为一个文本片段，宽度按合并后的整段重新测量，
// 因此行宽与实际绘制时的推进距离一致。表情片段宽度固定为 emojiWidth，
// 且不可拆分；单个片段超宽时独占一行。文本中的 '\n' 视为强制换行。
func BreakLines(tokens []Token, maxWidth float64, measure MeasureFunc, emojiWidth float64) []WrappedLine {
	limit := maxWidth
	if limit <= 0 {
		limit = math.MaxFloat64
	}
	b := &lineBuilder{limit: limit, measure: measure}

	for _, tok := range tokens {
		switch tok.Kind {
		case TokenEmoji:
			b.closeRun()
			if b.nonEmpty() && b.settled+emojiWidth > limit {
				b.emit()
			}
			b.segments = append(b.segments, Segment{Token: tok, Width: emojiWidth})
			b.settled += emojiWidth
		default:
			for i, r := range tok.Value {
				if r == '\r' {
					continue
				}
				if r == '\n' {
					// 连续换行会产生空行
					b.closeRun()
					b.emit()
					continue
				}
				b.appendRune(r, tok.Offset+i)
			}
		}
	}
	b.closeRun()
	if b.nonEmpty() {
		b.emit()
	}
	return b.lines
}

type lineBuilder struct {
	limit   float64
	measure MeasureFunc

	lines    []WrappedLine
	segments []Segment
	settled  float64

	run       strings.Builder
	runOffset int
	runWidth  float64
}

func (b *lineBuilder) nonEmpty() bool { return len(b.segments) > 0 || b.run.Len() > 0 }

func (b *lineBuilder) appendRune(r rune, offset int) {
	s := string(r)
	if b.run.Len() == 0 {
		w := b.measure(s)
		if len(b.segments) > 0 && b.settled+w > b.limit {
			b.emit()
		}
		b.run.WriteRune(r)
		b.runOffset = offset
		b.runWidth = w
		return
	}
	candidate := b.run.String() + s
	w := b.measure(candidate)
	if b.settled+w > b.limit {
		b.closeRun()
		b.emit()
		b.run.WriteRune(r)
		b.runOffset = offset
		b.runWidth = b.measure(s)
		return
	}
	b.run.WriteRune(r)
	b.runWidth = w
}

func (b *lineBuilder) closeRun() {
	if b.run.Len() == 0 {
		return
	}
	s := b.run.String()
	b.segments = append(b.segments, Segment{
		Token: Token{Kind: TokenText, Value: s, Source: s, Offset: b.runOffset},
		Width: b.runWidth,
	})
	b.settled += b.runWidth
	b.run.Reset()
	b.runWidth = 0
}

func (b *lineBuilder) emit() {
	b.lines = append(b.lines, WrappedLine{Segments: b.segments, Width: b.settled})
	b.segments = nil
	b.settled = 0
}
