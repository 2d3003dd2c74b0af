package layout

// 绘制面统一以像素为长度单位：画布上 1 个单位对应输出图片的 1 个像素。
// 字体系统以 pt 为单位创建字体面，这里提供两者的换算。

// Conversion constants between pt and mm. 画布单位按 mm 记，光栅化时取 1 像素/mm。
const (
	PtToMm = 0.352777
	MmToPt = 1.0 / PtToMm
)

// PxToPt 将像素字号换算为字体面所需的 pt（画布分辨率为 1 像素/mm）。
func PxToPt(px float64) float64 { return px * MmToPt }

// FontSizeFor 根据图片宽度与比例除数计算初始字号。
func FontSizeFor(imageWidth, divisor float64) float64 {
	if divisor <= 0 {
		divisor = 20
	}
	return imageWidth / divisor
}
