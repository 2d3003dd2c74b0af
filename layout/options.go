package layout

// FitOptions 配置拟合阶段所需的依赖与参数。
type FitOptions struct {
	Measurer         Measurer
	Markers          []Marker
	InitialFontSize  float64 // 像素，通常为 图片宽度/divisor
	MinFontSize      float64 // 字号下限（像素）
	LineHeightFactor float64 // 行高倍数，默认 1.2
	ShrinkFactor     float64 // 每轮缩小倍数，默认 0.9
	MaxAttempts      int
}

// Measurer 负责在可设置的字号下测量文字宽度；绘制面实现该接口。
type Measurer interface {
	SetFontSize(px float64)
	MeasureText(text string) float64
}

const (
	DefaultLineHeightFactor = 1.2
	DefaultShrinkFactor     = 0.9
	DefaultMaxAttempts      = 5
	DefaultMinFontSize      = 10.0
)

func (o FitOptions) withDefaults() FitOptions {
	if o.LineHeightFactor <= 0 {
		o.LineHeightFactor = DefaultLineHeightFactor
	}
	if o.ShrinkFactor <= 0 || o.ShrinkFactor >= 1 {
		o.ShrinkFactor = DefaultShrinkFactor
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.MinFontSize <= 0 {
		o.MinFontSize = DefaultMinFontSize
	}
	if o.InitialFontSize < o.MinFontSize {
		o.InitialFontSize = o.MinFontSize
	}
	return o
}
