package layout

// 该文件定义排版结果与输入描述，供分词、折行、区域选择、拟合与合成阶段共用。

// TokenKind 区分文本片段与表情片段。
type TokenKind int

const (
	TokenText TokenKind = iota
	TokenEmoji
)

func (k TokenKind) String() string {
	switch k {
	case TokenText:
		return "text"
	case TokenEmoji:
		return "emoji"
	default:
		return "unknown"
	}
}

// MarshalText 让调试 JSON 中输出可读的类型名。
func (k TokenKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Token 是分词后的最小片段。
// 文本片段的 Value 为文字本身；表情片段的 Value 为小写的码位标识（如 "1f64f"）。
// Source 保留原始子串（表情为完整标记文本），Offset 为其在原文中的字节偏移。
type Token struct {
	Kind   TokenKind `json:"kind"`
	Value  string    `json:"value"`
	Source string    `json:"source"`
	Offset int       `json:"offset"`
}

// Marker 描述一个文字表情标记及其对应的码位。
type Marker struct {
	Text      string `json:"text"`
	Codepoint string `json:"codepoint"`
}

// Segment 是折行后一行内的片段及其像素宽度。
type Segment struct {
	Token
	Width float64 `json:"width"`
}

// WrappedLine 表示折行后的一行内容及其总宽度（像素）。
type WrappedLine struct {
	Segments []Segment `json:"segments"`
	Width    float64   `json:"width"`
}

// Rect 是一个轴对齐矩形。用于标注时坐标归一化到 [0,1]，用于区域时为像素。
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) right() float64  { return r.X + r.Width }
func (r Rect) bottom() float64 { return r.Y + r.Height }

// Intersection returns the overlapping area of two rectangles (0 when disjoint).
func (r Rect) Intersection(o Rect) float64 {
	w := minf(r.right(), o.right()) - maxf(r.X, o.X)
	h := minf(r.bottom(), o.bottom()) - maxf(r.Y, o.Y)
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// ObjectAnnotation 是物体检测结果，Box 为归一化矩形。
type ObjectAnnotation struct {
	Name  string  `json:"name,omitempty"`
	Score float64 `json:"score,omitempty"`
	Box   Rect    `json:"box"`
}

// Anchor 决定文字面板在区域内的纵向停靠方式。
type Anchor int

const (
	AnchorBottom Anchor = iota
	AnchorTop
)

// Region 是候选放置区域（像素坐标，相对于目标图片）。
type Region struct {
	Name   string `json:"name"`
	Rect          // 像素
	Anchor Anchor `json:"anchor"`
}

// FittedLayout 是拟合完成后的最终排版，之后只读。
type FittedLayout struct {
	Lines       []WrappedLine `json:"lines"`
	FontSize    float64       `json:"fontSize"`
	LineHeight  float64       `json:"lineHeight"`
	Padding     float64       `json:"padding"`
	OriginX     float64       `json:"originX"`
	OriginY     float64       `json:"originY"`
	PanelWidth  float64       `json:"panelWidth"`
	PanelHeight float64       `json:"panelHeight"`
	Region      Region        `json:"region"`
	Fits        bool          `json:"fits"`
	Attempts    int           `json:"attempts"`
}

// MaxLineWidth 返回所有行中最宽的宽度。
func (l FittedLayout) MaxLineWidth() float64 {
	widest := 0.0
	for _, line := range l.Lines {
		widest = maxf(widest, line.Width)
	}
	return widest
}

// LineStart 返回第 i 行的起始 x 以及该行垂直中线 y。行在面板内水平居中。
func (l FittedLayout) LineStart(i int) (float64, float64) {
	x := l.OriginX + l.Padding + (l.MaxLineWidth()-l.Lines[i].Width)/2
	y := l.OriginY + l.Padding + l.LineHeight*(float64(i)+0.5)
	return x, y
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
