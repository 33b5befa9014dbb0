// Package selector picks which detected faces of an image get cropped.
package selector

import (
	"errors"
	"fmt"

	"github.com/menta2k/face-cropper/pkg/geometry"
	"github.com/menta2k/face-cropper/pkg/types"
)

var (
	// ErrNoDetections is returned when selection is asked to pick from nothing
	ErrNoDetections = errors.New("selector: no detections")
	// ErrUnknownMode is returned for a selection mode other than main or all
	ErrUnknownMode = errors.New("selector: unknown mode")
)

// Select returns the detections to crop for one image of imgWidth x imgHeight.
//
// ModeAll returns every detection in the order received. ModeMain returns exactly
// one: the largest by box area, ties broken by the smallest distance from the box
// center to the image center, and remaining ties by input order.
func Select(detections []types.Detection, mode types.Mode, imgWidth, imgHeight int) ([]types.Detection, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	if len(detections) == 0 {
		return nil, ErrNoDetections
	}

	if mode == types.ModeAll {
		out := make([]types.Detection, len(detections))
		copy(out, detections)
		return out, nil
	}

	primary, err := Primary(detections, imgWidth, imgHeight)
	if err != nil {
		return nil, err
	}
	return []types.Detection{primary}, nil
}

// Primary picks the main face
func Primary(detections []types.Detection, imgWidth, imgHeight int) (types.Detection, error) {
	candidates := Candidates(detections, imgWidth, imgHeight)
	if len(candidates) == 0 {
		return types.Detection{}, ErrNoDetections
	}

	best := 0
	for i := 1; i < len(candidates); i++ {
		if better(candidates[i], candidates[best]) {
			best = i
		}
	}
	return candidates[best].Detection, nil
}

// Candidates scores every detection by area and distance from the image center
func Candidates(detections []types.Detection, imgWidth, imgHeight int) []types.SelectionCandidate {
	imgCx := float64(imgWidth) / 2
	imgCy := float64(imgHeight) / 2

	out := make([]types.SelectionCandidate, 0, len(detections))
	for _, det := range detections {
		cx, cy := geometry.Center(det.Box)
		out = append(out, types.SelectionCandidate{
			Detection:               det,
			Area:                    det.Box.Area(),
			DistanceFromImageCenter: geometry.Distance(cx, cy, imgCx, imgCy),
		})
	}
	return out
}

// better reports whether a strictly outranks b. Equal candidates never outrank,
// which keeps the earliest one.
func better(a, b types.SelectionCandidate) bool {
	if a.Area != b.Area {
		return a.Area > b.Area
	}
	return a.DistanceFromImageCenter < b.DistanceFromImageCenter
}
