package layout

// regionSpec 以图片宽高的比例描述候选区域。
type regionSpec struct {
	name                string
	x, y, width, height float64
	anchor              Anchor
}

// candidateRegions 的顺序即平局时的优先级，底部居中为默认区域。
var candidateRegions = []regionSpec{
	{name: "bottom-center", x: 0.05, y: 2.0 / 3.0, width: 0.90, height: 0.30, anchor: AnchorBottom},
	{name: "top-left", x: 0.03, y: 0.03, width: 0.45, height: 0.45, anchor: AnchorTop},
	{name: "top-right", x: 0.52, y: 0.03, width: 0.45, height: 0.45, anchor: AnchorTop},
	{name: "bottom-left", x: 0.03, y: 0.52, width: 0.45, height: 0.45, anchor: AnchorBottom},
	{name: "bottom-right", x: 0.52, y: 0.52, width: 0.45, height: 0.45, anchor: AnchorBottom},
}

// CandidateRegions 返回给定图片尺寸下所有候选区域（像素坐标）。
func CandidateRegions(width, height float64) []Region {
	regions := make([]Region, 0, len(candidateRegions))
	for _, spec := range candidateRegions {
		regions = append(regions, Region{
			Name: spec.name,
			Rect: Rect{
				X:      spec.x * width,
				Y:      spec.y * height,
				Width:  spec.width * width,
				Height: spec.height * height,
			},
			Anchor: spec.anchor,
		})
	}
	return regions
}

// SelectRegion 选出与所有检测物体重叠面积之和最小的候选区域。
// 重叠相同时按候选顺序取靠前者，因此没有标注时总是返回底部居中。
func SelectRegion(width, height float64, annotations []ObjectAnnotation) Region {
	boxes := absoluteBoxes(width, height, annotations)
	regions := CandidateRegions(width, height)
	best := regions[0]
	bestOverlap := overlapSum(best.Rect, boxes)
	for _, region := range regions[1:] {
		if o := overlapSum(region.Rect, boxes); o < bestOverlap {
			best, bestOverlap = region, o
		}
	}
	return best
}

// OverlapArea 返回区域与所有标注在像素坐标下的重叠面积之和。
func OverlapArea(region Region, width, height float64, annotations []ObjectAnnotation) float64 {
	return overlapSum(region.Rect, absoluteBoxes(width, height, annotations))
}

func absoluteBoxes(width, height float64, annotations []ObjectAnnotation) []Rect {
	boxes := make([]Rect, 0, len(annotations))
	for _, a := range annotations {
		boxes = append(boxes, Rect{
			X:      a.Box.X * width,
			Y:      a.Box.Y * height,
			Width:  a.Box.Width * width,
			Height: a.Box.Height * height,
		})
	}
	return boxes
}

func overlapSum(r Rect, boxes []Rect) float64 {
	total := 0.0
	for _, b := range boxes {
		total += r.Intersection(b)
	}
	return total
}
