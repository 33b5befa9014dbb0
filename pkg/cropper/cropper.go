package cropper

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/face-cropper/pkg/imageio"
	"github.com/menta2k/face-cropper/pkg/types"
)

// ErrInvalidOutputSize is returned when the target surface would have no pixels
var ErrInvalidOutputSize = errors.New("invalid output size")

// Renderer draws a crop rectangle of a source image onto an output surface
type Renderer struct {
	config RenderConfig
}

// RenderConfig holds configuration for rendering crops
type RenderConfig struct {
	Format   imageio.Format
	Quality  int
	Lossless bool
	// Resample names the scaling filter: nearest, linear (default), catmullrom or lanczos
	Resample string
}

var filters = map[string]imaging.ResampleFilter{
	"nearest":    imaging.NearestNeighbor,
	"linear":     imaging.Linear,
	"catmullrom": imaging.CatmullRom,
	"lanczos":    imaging.Lanczos,
}

// ValidResample reports whether name is a known resample filter
func ValidResample(name string) bool {
	if name == "" {
		return true
	}
	_, ok := filters[name]
	return ok
}

// New creates a Renderer producing PNG with bilinear resampling
func New() *Renderer {
	return &Renderer{
		config: RenderConfig{
			Format:   imageio.PNG,
			Quality:  90,
			Resample: "linear",
		},
	}
}

// NewWithConfig creates a new Renderer with custom configuration
func NewWithConfig(config RenderConfig) *Renderer {
	if config.Format == "" {
		config.Format = imageio.PNG
	}
	if _, ok := filters[config.Resample]; !ok {
		config.Resample = "linear"
	}
	return &Renderer{config: config}
}

// Extension returns the file extension of rendered artifacts
func (r *Renderer) Extension() string {
	return r.config.Format.Extension()
}

// Draw maps rect (source pixel space) onto a new spec.Width x spec.Height surface,
// stretching to fill it. Parts of rect outside the source are transparent.
func (r *Renderer) Draw(src image.Image, rect types.CropRectangle, spec types.OutputSpec) (*image.NRGBA, error) {
	if spec.Width <= 0 || spec.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidOutputSize, spec.Width, spec.Height)
	}

	region := sourceRegion(src.Bounds(), rect)
	canvas := imaging.New(region.Dx(), region.Dy(), color.NRGBA{})

	inside := region.Intersect(src.Bounds())
	if !inside.Empty() {
		canvas = imaging.Paste(canvas, imaging.Crop(src, inside), inside.Min.Sub(region.Min))
	}

	return imaging.Resize(canvas, spec.Width, spec.Height, filters[r.config.Resample]), nil
}

// Render draws the crop and encodes it in the renderer's output format
func (r *Renderer) Render(src image.Image, rect types.CropRectangle, spec types.OutputSpec) ([]byte, error) {
	img, err := r.Draw(src, rect, spec)
	if err != nil {
		return nil, err
	}

	data, err := imageio.EncodeBytes(img, imageio.EncodeOptions{
		Format:   r.config.Format,
		Quality:  r.config.Quality,
		Lossless: r.config.Lossless,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode crop: %w", err)
	}
	return data, nil
}

// sourceRegion converts rect to whole pixels relative to the image origin.
// The region always covers at least one pixel.
func sourceRegion(bounds image.Rectangle, rect types.CropRectangle) image.Rectangle {
	x0 := int(math.Round(rect.X))
	y0 := int(math.Round(rect.Y))
	x1 := int(math.Round(rect.X + rect.Width))
	y1 := int(math.Round(rect.Y + rect.Height))
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	return image.Rect(x0, y0, x1, y1).Add(bounds.Min)
}
