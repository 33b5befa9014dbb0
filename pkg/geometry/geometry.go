// Package geometry computes face centers, scaled crop rectangles and output sizes.
// Every function is pure.
package geometry

import (
	"math"

	"github.com/menta2k/face-cropper/pkg/types"
)

const (
	// DefaultScale widens a face box to include head and shoulders
	DefaultScale = 1.5
	// DefaultDPI converts physical inches to output pixels
	DefaultDPI = 96.0
)

// Center returns the center point of a bounding box
func Center(box types.BoundingBox) (float64, float64) {
	return box.X + box.Width/2, box.Y + box.Height/2
}

// Distance returns the Euclidean distance between two points
func Distance(x1, y1, x2, y2 float64) float64 {
	return math.Hypot(x1-x2, y1-y2)
}

// CropRectangle scales box around its center. The origin is clamped at zero;
// width and height are left unclamped.
func CropRectangle(box types.BoundingBox, scale float64) types.CropRectangle {
	cx, cy := Center(box)
	newW := box.Width * scale
	newH := box.Height * scale

	return types.CropRectangle{
		X:      math.Max(cx-newW/2, 0),
		Y:      math.Max(cy-newH/2, 0),
		Width:  newW,
		Height: newH,
	}
}

// OutputSize resolves each axis independently: inches*dpi when an inch value is
// given, otherwise the crop rectangle's own dimension. Fractional pixels are truncated.
func OutputSize(rect types.CropRectangle, widthInch, heightInch, dpi float64) types.OutputSpec {
	if dpi <= 0 {
		dpi = DefaultDPI
	}

	w := rect.Width
	if widthInch > 0 {
		w = widthInch * dpi
	}
	h := rect.Height
	if heightInch > 0 {
		h = heightInch * dpi
	}

	return types.OutputSpec{
		Width:  int(w),
		Height: int(h),
	}
}

// ResolveScale returns scale, or DefaultScale when scale is not positive
func ResolveScale(scale float64) float64 {
	if scale <= 0 {
		return DefaultScale
	}
	return scale
}
