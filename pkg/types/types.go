package types

import "io"

// Mode selects which detections of an image are cropped
type Mode string

const (
	// ModeMain keeps exactly one detection per image
	ModeMain Mode = "main"
	// ModeAll keeps every detection, in detector order
	ModeAll Mode = "all"
)

// Valid reports whether m is a known selection mode
func (m Mode) Valid() bool {
	return m == ModeMain || m == ModeAll
}

// BoundingBox is a face box in source-image pixel coordinates, origin top-left
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area returns the box area in square pixels
func (b BoundingBox) Area() float64 {
	return b.Width * b.Height
}

// Detection is one face located by a detector. Payload holds backend specific
// data (landmarks, descriptors) that is carried through but never interpreted.
type Detection struct {
	Box     BoundingBox `json:"box"`
	Score   float64     `json:"score"`
	Label   string      `json:"label,omitempty"`
	Payload any         `json:"-"`
}

// SelectionCandidate is a detection scored for primary face selection
type SelectionCandidate struct {
	Detection               Detection
	Area                    float64
	DistanceFromImageCenter float64
}

// CropRectangle is the scaled source region to crop, with X and Y clamped at zero
type CropRectangle struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// OutputSpec is the pixel size of a rendered crop
type OutputSpec struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// CroppedArtifact is one encoded crop
type CroppedArtifact struct {
	Name   string        `json:"name"`
	Data   []byte        `json:"-"`
	Source string        `json:"source"`
	Face   int           `json:"face"`
	Rect   CropRectangle `json:"rect"`
	Size   OutputSpec    `json:"size"`
}

// BatchResult is the outcome of one pipeline run. Every input file contributes
// either at least one artifact or exactly one entry in FailedImages.
type BatchResult struct {
	Artifacts    []CroppedArtifact `json:"artifacts"`
	FailedImages []string          `json:"failed_images"`
	Overlays     []CroppedArtifact `json:"overlays,omitempty"`
}

// RunOptions are the immutable per-run crop options. A zero inch value means the
// axis follows the crop rectangle; zero Scale and DPI fall back to the defaults.
type RunOptions struct {
	Mode         Mode    `json:"mode"`
	WidthInch    float64 `json:"width_inch,omitempty"`
	HeightInch   float64 `json:"height_inch,omitempty"`
	Scale        float64 `json:"scale,omitempty"`
	DPI          float64 `json:"dpi,omitempty"`
	DebugOverlay bool    `json:"debug_overlay,omitempty"`
}

// SourceFile is a named, loadable input image
type SourceFile struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// FaceBox is a single face reported by a vision model
type FaceBox struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// FaceAnalysis contains the faces a vision model located in an image
type FaceAnalysis struct {
	Faces       []FaceBox `json:"faces"`
	Description string    `json:"description"`
}
