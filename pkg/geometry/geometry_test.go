package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/menta2k/face-cropper/pkg/types"
)

func TestCenter(t *testing.T) {
	cx, cy := Center(types.BoundingBox{X: 10, Y: 20, Width: 100, Height: 80})

	assert.Equal(t, 60.0, cx)
	assert.Equal(t, 60.0, cy)
}

func TestCropRectangle(t *testing.T) {
	rect := CropRectangle(types.BoundingBox{X: 100, Y: 100, Width: 40, Height: 60}, DefaultScale)

	// center (120, 130), scaled 60x90
	assert.Equal(t, types.CropRectangle{X: 90, Y: 85, Width: 60, Height: 90}, rect)
}

func TestCropRectangleClampsAtOrigin(t *testing.T) {
	boxes := []types.BoundingBox{
		{X: 0, Y: 0, Width: 50, Height: 50},
		{X: 5, Y: 200, Width: 80, Height: 10},
		{X: 300, Y: 1, Width: 10, Height: 90},
	}

	for _, box := range boxes {
		rect := CropRectangle(box, DefaultScale)
		assert.GreaterOrEqual(t, rect.X, 0.0, "box %+v", box)
		assert.GreaterOrEqual(t, rect.Y, 0.0, "box %+v", box)
		assert.Equal(t, box.Width*DefaultScale, rect.Width, "width must stay unclamped")
		assert.Equal(t, box.Height*DefaultScale, rect.Height, "height must stay unclamped")
	}
}

func TestCropRectangleScaleIsAParameter(t *testing.T) {
	rect := CropRectangle(types.BoundingBox{X: 100, Y: 100, Width: 100, Height: 100}, 2)

	assert.Equal(t, types.CropRectangle{X: 50, Y: 50, Width: 200, Height: 200}, rect)
}

func TestOutputSize(t *testing.T) {
	rect := types.CropRectangle{X: 0, Y: 0, Width: 150, Height: 225}

	tests := []struct {
		name       string
		widthInch  float64
		heightInch float64
		want       types.OutputSpec
	}{
		{"neither", 0, 0, types.OutputSpec{Width: 150, Height: 225}},
		{"both", 2, 3, types.OutputSpec{Width: 192, Height: 288}},
		{"width only", 1, 0, types.OutputSpec{Width: 96, Height: 225}},
		{"height only", 0, 0.5, types.OutputSpec{Width: 150, Height: 48}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OutputSize(rect, tt.widthInch, tt.heightInch, DefaultDPI))
		})
	}
}

func TestOutputSizeIgnoresBoxDimensionsWhenInchesGiven(t *testing.T) {
	for _, rect := range []types.CropRectangle{
		{Width: 10, Height: 10},
		{Width: 1234.5, Height: 17},
	} {
		assert.Equal(t, types.OutputSpec{Width: 192, Height: 288}, OutputSize(rect, 2, 3, 96))
	}
}

func TestOutputSizeTruncatesFractions(t *testing.T) {
	got := OutputSize(types.CropRectangle{Width: 61.9, Height: 90.5}, 0, 0.3, 0)

	assert.Equal(t, types.OutputSpec{Width: 61, Height: 28}, got)
}

func TestResolveScale(t *testing.T) {
	assert.Equal(t, DefaultScale, ResolveScale(0))
	assert.Equal(t, DefaultScale, ResolveScale(-1))
	assert.Equal(t, 2.0, ResolveScale(2))
}

func BenchmarkCropRectangle(b *testing.B) {
	box := types.BoundingBox{X: 120, Y: 80, Width: 64, Height: 72}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rect := CropRectangle(box, DefaultScale)
		OutputSize(rect, 2, 3, DefaultDPI)
	}
}
