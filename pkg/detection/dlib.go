//go:build dlib

package detection

import (
	"context"
	"fmt"
	"image"
	"sync"

	face "github.com/Kagami/go-face"

	"github.com/menta2k/face-cropper/pkg/types"
)

// DlibPayload is attached to detections from DlibDetector
type DlibPayload struct {
	Descriptor face.Descriptor
	Shapes     []image.Point
}

// DlibDetector runs dlib's face detector in process. It needs the dlib model
// files (shape_predictor_5_face_landmarks.dat, dlib_face_recognition_resnet_model_v1.dat,
// mmod_human_face_detector.dat) in modelsDir.
type DlibDetector struct {
	readiness
	mu         sync.Mutex
	recognizer *face.Recognizer
	useCNN     bool
	quality    int
}

// NewDlibDetector loads the recognizer models from modelsDir
func NewDlibDetector(modelsDir string, useCNN bool) (*DlibDetector, error) {
	rec, err := face.NewRecognizer(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load dlib models from %s: %w", modelsDir, err)
	}
	d := &DlibDetector{recognizer: rec, useCNN: useCNN, quality: 95}
	d.setReady(true)
	return d, nil
}

// Detect runs the recognizer on img
func (d *DlibDetector) Detect(_ context.Context, img image.Image) ([]types.Detection, error) {
	frame, err := encodeFrame(img, d.quality)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.recognizer == nil {
		return nil, ErrNotLoaded
	}

	var faces []face.Face
	if d.useCNN {
		faces, err = d.recognizer.RecognizeCNN(frame)
	} else {
		faces, err = d.recognizer.Recognize(frame)
	}
	if err != nil {
		return nil, fmt.Errorf("dlib recognition failed: %w", err)
	}

	detections := make([]types.Detection, 0, len(faces))
	for _, f := range faces {
		r := f.Rectangle
		box := types.BoundingBox{
			X:      float64(r.Min.X),
			Y:      float64(r.Min.Y),
			Width:  float64(r.Dx()),
			Height: float64(r.Dy()),
		}
		if degenerate(box) {
			continue
		}
		detections = append(detections, types.Detection{
			Box:     box,
			Score:   1,
			Label:   "face",
			Payload: DlibPayload{Descriptor: f.Descriptor, Shapes: f.Shapes},
		})
	}
	return detections, nil
}

// Close frees the dlib models
func (d *DlibDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.recognizer != nil {
		d.recognizer.Close()
		d.recognizer = nil
	}
	d.setReady(false)
	return nil
}
