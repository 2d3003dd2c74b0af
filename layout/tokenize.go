package layout

import (
	"sort"
	"strings"
)

// DefaultMarkers 是 LINE 文字表情到 Twemoji 码位的默认映射，声明顺序即优先级。
var DefaultMarkers = []Marker{
	{Text: "(hands together)", Codepoint: "1f64f"},
}

type occurrence struct {
	index    int
	priority int
	marker   Marker
}

// Tokenize 将原文拆分为文本与表情片段，片段按顺序无缝覆盖原文。
//
// 每个标记独立扫描所有不重叠出现位置，之后按位置排序；同一位置以标记声明顺序优先。
// 与已接受标记重叠的出现位置会被丢弃（最左匹配优先）。
func Tokenize(text string, markers []Marker) []Token {
	if text == "" {
		return nil
	}

	var found []occurrence
	for priority, m := range markers {
		if m.Text == "" {
			continue
		}
		from := 0
		for from <= len(text)-len(m.Text) {
			idx := strings.Index(text[from:], m.Text)
			if idx < 0 {
				break
			}
			found = append(found, occurrence{index: from + idx, priority: priority, marker: m})
			from += idx + len(m.Text)
		}
	}
	sort.SliceStable(found, func(i, j int) bool {
		if found[i].index != found[j].index {
			return found[i].index < found[j].index
		}
		return found[i].priority < found[j].priority
	})

	tokens := make([]Token, 0, 2*len(found)+1)
	cursor := 0
	for _, occ := range found {
		if occ.index < cursor {
			continue
		}
		if occ.index > cursor {
			tokens = append(tokens, textToken(text[cursor:occ.index], cursor))
		}
		tokens = append(tokens, Token{
			Kind:   TokenEmoji,
			Value:  strings.ToLower(occ.marker.Codepoint),
			Source: occ.marker.Text,
			Offset: occ.index,
		})
		cursor = occ.index + len(occ.marker.Text)
	}
	if cursor < len(text) {
		tokens = append(tokens, textToken(text[cursor:], cursor))
	}
	return tokens
}

func textToken(s string, offset int) Token {
	return Token{Kind: TokenText, Value: s, Source: s, Offset: offset}
}

// Reconstruct 拼接各片段的原始子串，结果应与分词前的原文一致。
func Reconstruct(tokens []Token) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(t.Source)
	}
	return b.String()
}
