package detection

import (
	"context"
	"errors"
	"image"
	"sync/atomic"

	"github.com/menta2k/face-cropper/pkg/imageio"
	"github.com/menta2k/face-cropper/pkg/types"
)

// ErrNotLoaded is returned by Detect before the detector finished loading
var ErrNotLoaded = errors.New("detector not loaded")

// Detector locates faces in a decoded image. Boxes are in pixel coordinates of
// the image passed to Detect.
type Detector interface {
	Ready() bool
	Detect(ctx context.Context, img image.Image) ([]types.Detection, error)
}

// Loader is implemented by detectors that need a warm-up step (model download,
// health check, connection) before Ready reports true
type Loader interface {
	Load(ctx context.Context) error
}

// Load runs d's warm-up step if it has one
func Load(ctx context.Context, d Detector) error {
	if l, ok := d.(Loader); ok {
		return l.Load(ctx)
	}
	return nil
}

type readiness struct {
	ready atomic.Bool
}

// Ready reports whether the detector has finished loading
func (r *readiness) Ready() bool {
	return r.ready.Load()
}

func (r *readiness) setReady(v bool) {
	r.ready.Store(v)
}

// encodeFrame encodes img as JPEG for transports that expect a compressed frame
func encodeFrame(img image.Image, quality int) ([]byte, error) {
	return imageio.PrepareForModel(img, imageio.JPEG, 0, quality)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// fromNormalized converts a [0,1] box into pixel coordinates of a w x h image.
// Coordinates outside [0,1] are clipped.
func fromNormalized(x, y, bw, bh float64, w, h int) types.BoundingBox {
	x0 := clamp(x, 0, 1)
	y0 := clamp(y, 0, 1)
	x1 := clamp(x+bw, 0, 1)
	y1 := clamp(y+bh, 0, 1)
	return types.BoundingBox{
		X:      x0 * float64(w),
		Y:      y0 * float64(h),
		Width:  (x1 - x0) * float64(w),
		Height: (y1 - y0) * float64(h),
	}
}

// clipToImage clips a pixel box to a w x h image
func clipToImage(b types.BoundingBox, w, h int) types.BoundingBox {
	x0 := clamp(b.X, 0, float64(w))
	y0 := clamp(b.Y, 0, float64(h))
	x1 := clamp(b.X+b.Width, 0, float64(w))
	y1 := clamp(b.Y+b.Height, 0, float64(h))
	return types.BoundingBox{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// degenerate reports boxes smaller than one pixel on either side
func degenerate(b types.BoundingBox) bool {
	return b.Width < 1 || b.Height < 1
}
