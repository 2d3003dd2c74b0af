package fonts

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"
)

// BuiltinRegular 是内置的后备字体名（Go Regular，仅覆盖拉丁字符）。
const BuiltinRegular = "builtin:go-regular"

var builtins = map[string][]byte{
	"go-regular": goregular.TTF,
}

// Load 返回字体的字节数据。src 可写为 "builtin:go-regular"（或 "built-in:go-regular"）或文件路径。
func Load(src string) ([]byte, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("字体路径为空")
	}
	if name, ok := builtinName(src); ok {
		data, found := builtins[name]
		if !found {
			return nil, fmt.Errorf("找不到内置字体资源 builtin:%s", name)
		}
		return data, nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("读取字体 %s 失败: %w", src, err)
	}
	return data, nil
}

// MissingGlyphs 返回 text 中字体没有字形（映射到 .notdef）的字符，去重并保持出现顺序。
// 空白与控制字符不检查。TTC/OTC 取集合中的第一个字体。
func MissingGlyphs(data []byte, text string) ([]rune, error) {
	coll, err := sfnt.ParseCollection(data)
	if err != nil {
		return nil, fmt.Errorf("解析字体失败: %w", err)
	}
	f, err := coll.Font(0)
	if err != nil {
		return nil, fmt.Errorf("解析字体失败: %w", err)
	}
	var (
		buf     sfnt.Buffer
		missing []rune
		seen    = make(map[rune]struct{})
	)
	for _, r := range text {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		idx, err := f.GlyphIndex(&buf, r)
		if err != nil {
			return nil, fmt.Errorf("查询字形 %q 失败: %w", r, err)
		}
		if idx == 0 {
			missing = append(missing, r)
		}
	}
	return missing, nil
}

func builtinName(src string) (string, bool) {
	for _, prefix := range []string{"built-in:", "builtin:"} {
		if strings.HasPrefix(src, prefix) {
			return strings.TrimPrefix(src, prefix), true
		}
	}
	return "", false
}
