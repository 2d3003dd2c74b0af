package renderer

import (
	"image"
	"image/color"

	"github.com/ByLCY/blessing/layout"
)

// Surface 是合成阶段使用的二维绘制面。长度单位均为像素，原点在左上角。
// 绘制面同时实现 layout.Measurer，以便拟合阶段在同一字体下测量文字。
type Surface interface {
	layout.Measurer

	// DrawImage 将 img 缩放绘制到 (x, y, w, h) 矩形内。
	DrawImage(img image.Image, x, y, w, h float64)
	// FillRect 以给定颜色（可带透明度）填充矩形。
	FillRect(x, y, w, h float64, c color.Color)
	// FillText 以当前字号绘制文字，x 为左边缘，y 为文字的垂直中线。
	FillText(text string, x, y float64, c color.Color)
	// Image 返回当前绘制结果。
	Image() (image.Image, error)
}

// Factory 创建指定像素尺寸的绘制面。具体实现在进程装配时选定。
type Factory interface {
	NewSurface(width, height int) (Surface, error)
}
