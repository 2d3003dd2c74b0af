package layout

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DebugDocument 是排版调试输出：拟合结果与参与选区的物体框。
type DebugDocument struct {
	Layout      *FittedLayout      `json:"layout"`
	Annotations []ObjectAnnotation `json:"annotations"`
}

// WriteDebugJSON 写出调试文档，必要时创建目录。l 为空（无文字）时不输出。
func WriteDebugJSON(path string, l *FittedLayout, annotations []ObjectAnnotation) error {
	if l == nil {
		return nil
	}
	if annotations == nil {
		annotations = []ObjectAnnotation{}
	}
	data, err := json.MarshalIndent(DebugDocument{Layout: l, Annotations: annotations}, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化调试数据失败: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建调试目录失败: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
