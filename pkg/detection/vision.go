package detection

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/lithammer/dedent"

	"github.com/menta2k/face-cropper/pkg/client"
	"github.com/menta2k/face-cropper/pkg/imageio"
	"github.com/menta2k/face-cropper/pkg/types"
)

// SimpleTestPrompt for testing if the model can see images
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// DefaultPrompt asks a vision model for every face in the image
var DefaultPrompt = strings.TrimSpace(dedent.Dedent(`
	You are a face locator.

	Return JSON only:
	{
	  "faces": [
	    {"label": "face", "confidence": 0.0, "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}}
	  ],
	  "description": "short neutral sentence"
	}

	HARD RULES
	- All coordinates are normalized to [0,1] (NOT pixels), origin top-left.
	- x and y are the top-left corner of the box, w and h its width and height.
	- One entry per visible human face. The box covers forehead to chin, ear to ear.
	- Order faces left to right.
	- Do not guess real identities.
	- If there is no face, return {"faces": [], "description": "..."}.
	- JSON only. No markdown, no code fences, no comments, no trailing commas.
`))

// VisionConfig controls how images are sent to a vision model
type VisionConfig struct {
	Model         string
	Prompt        string
	MaxDimension  int
	Quality       int
	MinConfidence float64
}

// DefaultVisionConfig returns the settings used by NewVisionDetector
func DefaultVisionConfig(model string) VisionConfig {
	return VisionConfig{
		Model:         model,
		Prompt:        DefaultPrompt,
		MaxDimension:  1024,
		Quality:       85,
		MinConfidence: 0.3,
	}
}

// VisionDetector locates faces by prompting a multimodal model
type VisionDetector struct {
	readiness
	client client.VisionClient
	config VisionConfig
}

// NewVisionDetector creates a detector backed by a vision client
func NewVisionDetector(c client.VisionClient, model string) *VisionDetector {
	return NewVisionDetectorWithConfig(c, DefaultVisionConfig(model))
}

// NewVisionDetectorWithConfig creates a detector with custom settings
func NewVisionDetectorWithConfig(c client.VisionClient, config VisionConfig) *VisionDetector {
	if config.Prompt == "" {
		config.Prompt = DefaultPrompt
	}
	if config.Quality <= 0 || config.Quality > 100 {
		config.Quality = 85
	}
	return &VisionDetector{client: c, config: config}
}

// Load checks that the model backend is reachable
func (d *VisionDetector) Load(ctx context.Context) error {
	if err := d.client.Ping(ctx); err != nil {
		d.setReady(false)
		return fmt.Errorf("failed to load vision detector: %w", err)
	}
	d.setReady(true)
	return nil
}

// Detect sends img to the model and converts the returned faces to pixel boxes
func (d *VisionDetector) Detect(ctx context.Context, img image.Image) ([]types.Detection, error) {
	if !d.Ready() {
		return nil, ErrNotLoaded
	}

	imgB64, err := imageio.PrepareForModelBase64(img, imageio.JPEG, d.config.MaxDimension, d.config.Quality)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare image: %w", err)
	}

	analysis, err := d.client.LocateFaces(ctx, d.config.Model, d.config.Prompt, imgB64)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	sentW, sentH := modelDimensions(b.Dx(), b.Dy(), d.config.MaxDimension)

	detections := make([]types.Detection, 0, len(analysis.Faces))
	for _, f := range analysis.Faces {
		if strings.EqualFold(f.Label, "none") || f.Confidence < d.config.MinConfidence {
			continue
		}

		box := normalizeBox(f.Box, sentW, sentH)
		px := fromNormalized(box.X, box.Y, box.W, box.H, b.Dx(), b.Dy())
		if degenerate(px) {
			continue
		}

		label := f.Label
		if label == "" {
			label = "face"
		}
		detections = append(detections, types.Detection{
			Box:   px,
			Score: f.Confidence,
			Label: label,
		})
	}
	return detections, nil
}

// TestVision tests if the model can actually see the image with a simple prompt
func (d *VisionDetector) TestVision(ctx context.Context, img image.Image) (string, error) {
	imgB64, err := imageio.PrepareForModelBase64(img, imageio.JPEG, d.config.MaxDimension, d.config.Quality)
	if err != nil {
		return "", fmt.Errorf("failed to prepare image: %w", err)
	}
	return d.client.SimpleQuery(ctx, d.config.Model, SimpleTestPrompt, imgB64)
}

// modelDimensions returns the size of the image the model actually receives
func modelDimensions(w, h, maxDim int) (int, int) {
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return w, h
	}
	if w >= h {
		return maxDim, max(1, h*maxDim/w)
	}
	return max(1, w*maxDim/h), maxDim
}

// normalizeBox returns b in [0,1] coordinates. Models sometimes answer in pixels
// of the image they were sent; any component above 1 is taken as that case.
func normalizeBox(b types.Box, imgW, imgH int) types.Box {
	if (b.X > 1 || b.Y > 1 || b.W > 1 || b.H > 1) && imgW > 0 && imgH > 0 {
		b = types.Box{
			X: b.X / float64(imgW),
			Y: b.Y / float64(imgH),
			W: b.W / float64(imgW),
			H: b.H / float64(imgH),
		}
	}
	return types.Box{
		X: clamp(b.X, 0, 1),
		Y: clamp(b.Y, 0, 1),
		W: clamp(b.W, 0, 1),
		H: clamp(b.H, 0, 1),
	}
}
