package tracker

import "github.com/e7canasta/shroudstream/internal/frame"

// iou computes intersection-over-union between two axis-aligned boxes,
// grounded on the IoU/Area/Intersects shape used across the retrieval
// pack's detection types (e.g. BoundingBox.IoU), adapted from the
// normalized [0,1] convention there to this tracker's pixel-space Box.
func iou(a, b frame.Box) float64 {
	x1 := max(a.X, b.X)
	y1 := max(a.Y, b.Y)
	x2 := min(a.X+a.W, b.X+b.W)
	y2 := min(a.Y+a.H, b.Y+b.H)

	if x2 <= x1 || y2 <= y1 {
		return 0
	}

	intersection := (x2 - x1) * (y2 - y1)
	union := a.W*a.H + b.W*b.H - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
