package cropper

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/face-cropper/pkg/geometry"
	"github.com/menta2k/face-cropper/pkg/types"
)

// Overlay creates a debug image showing every detection box (green), the crop
// rectangles that were rendered (gold) with their centers (red), and the image
// center (blue).
func Overlay(img image.Image, detections []types.Detection, rects []types.CropRectangle) *image.NRGBA {
	nrgba := imaging.Clone(img)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()

	green := color.NRGBA{0, 255, 0, 255}
	gold := color.NRGBA{255, 204, 0, 255}
	red := color.NRGBA{255, 0, 0, 255}
	blue := color.NRGBA{0, 170, 255, 255}
	stroke := int(math.Max(2, 0.004*float64(min(w, h)))) // ~0.4% of min side
	cross := int(math.Max(4, 0.01*float64(min(w, h))))   // ~1% of min side

	for _, det := range detections {
		b := det.Box
		drawBox(nrgba, b.X, b.Y, b.X+b.Width, b.Y+b.Height, green, stroke)
	}

	for _, r := range rects {
		drawBox(nrgba, r.X, r.Y, r.X+r.Width, r.Y+r.Height, gold, stroke)

		cx, cy := geometry.Center(types.BoundingBox{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height})
		px, py := int(cx+0.5), int(cy+0.5)
		drawHLine(nrgba, py, px-cross, px+cross, red)
		drawVLine(nrgba, px, py-cross, py+cross, red)
	}

	ix, iy := w/2, h/2
	drawHLine(nrgba, iy, ix-6, ix+6, blue)
	drawVLine(nrgba, ix, iy-6, iy+6, blue)

	return nrgba
}

func drawBox(img *image.NRGBA, fx0, fy0, fx1, fy1 float64, c color.NRGBA, stroke int) {
	x0, y0 := int(fx0+0.5), int(fy0+0.5)
	x1, y1 := int(fx1+0.5), int(fy1+0.5)
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	for s := 0; s < stroke; s++ {
		drawHLine(img, y0+s, x0, x1, c)
		drawHLine(img, y1-1-s, x0, x1, c)
		drawVLine(img, x0+s, y0, y1, c)
		drawVLine(img, x1-1-s, y0, y1, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	x0 = max(x0, 0)
	x1 = min(x1, img.Bounds().Dx())

	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	y0 = max(y0, 0)
	y1 = min(y1, img.Bounds().Dy())

	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
