// Package prompt parses the small placeholder language used by prompt
// templates, eg: "請根據主題「{theme}」和風格「{style}」...".
package prompt

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var (
	templateLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Slot", Pattern: `\{[A-Za-z_][A-Za-z0-9_]*\}`},
		{Name: "Text", Pattern: `[^{]+`},
		{Name: "Brace", Pattern: `\{`},
	})

	templateParser = participle.MustBuild[document](
		participle.Lexer(templateLexer),
		participle.Map(stripBraces, "Slot"),
	)
)

type document struct {
	Parts []*Part `parser:"@@*"`
}

// Template is a parsed prompt template.
type Template struct {
	Parts  []*Part
	source string
}

// Part 为模板中的一段：字面文字或命名槽位。
type Part struct {
	Pos  lexer.Position `parser:"" json:"-"`
	Slot *string        `parser:"  @Slot"`
	Text *string        `parser:"| @(Text | Brace)"`
}

// Parse parses template source. Unbalanced braces are kept as literal text.
func Parse(src string) (*Template, error) {
	doc, err := templateParser.ParseString("", src)
	if err != nil {
		return nil, fmt.Errorf("解析提示词模板失败: %w", err)
	}
	return &Template{Parts: doc.Parts, source: src}, nil
}

// Execute 替换所有出现的槽位。vars 中没有的槽位原样保留（含花括号）。
func (t *Template) Execute(vars map[string]string) string {
	var b strings.Builder
	b.Grow(len(t.source))
	for _, p := range t.Parts {
		switch {
		case p.Slot != nil:
			if v, ok := vars[*p.Slot]; ok {
				b.WriteString(v)
			} else {
				b.WriteString("{" + *p.Slot + "}")
			}
		case p.Text != nil:
			b.WriteString(*p.Text)
		}
	}
	return b.String()
}

// Slots returns slot names in first-appearance order without duplicates.
func (t *Template) Slots() []string {
	var names []string
	seen := make(map[string]struct{})
	for _, p := range t.Parts {
		if p.Slot == nil {
			continue
		}
		if _, ok := seen[*p.Slot]; ok {
			continue
		}
		seen[*p.Slot] = struct{}{}
		names = append(names, *p.Slot)
	}
	return names
}

// String returns the original template source.
func (t *Template) String() string { return t.source }

// Render parses src and executes it in one step.
func Render(src string, vars map[string]string) (string, error) {
	tpl, err := Parse(src)
	if err != nil {
		return "", err
	}
	return tpl.Execute(vars), nil
}

func stripBraces(tok lexer.Token) (lexer.Token, error) {
	tok.Value = tok.Value[1 : len(tok.Value)-1]
	return tok, nil
}
