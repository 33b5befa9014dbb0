package detection

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/menta2k/face-cropper/pkg/types"
)

// HTTPDetector sends images to a remote inference service. The service accepts
// a multipart upload on POST /detect and reports liveness on GET /health.
type HTTPDetector struct {
	readiness
	client  *resty.Client
	quality int
}

type httpDetection struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence"`
	Label      string  `json:"label"`
}

type httpDetectResponse struct {
	Detections []httpDetection `json:"detections"`
}

// NewHTTPDetector creates a detector for the service at baseURL
func NewHTTPDetector(baseURL string, timeout time.Duration) *HTTPDetector {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &HTTPDetector{client: c, quality: 90}
}

// Load checks the service health endpoint
func (d *HTTPDetector) Load(ctx context.Context) error {
	_, err := handleError(d.client.R().SetContext(ctx).Get("/health"))
	if err != nil {
		d.setReady(false)
		return fmt.Errorf("detector service unhealthy: %w", err)
	}
	d.setReady(true)
	return nil
}

// Detect uploads img as JPEG and returns the service's pixel boxes
func (d *HTTPDetector) Detect(ctx context.Context, img image.Image) ([]types.Detection, error) {
	if !d.Ready() {
		return nil, ErrNotLoaded
	}

	frame, err := encodeFrame(img, d.quality)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	result := &httpDetectResponse{}
	_, err = handleError(d.client.R().
		SetContext(ctx).
		SetFileReader("file", "image.jpg", bytes.NewReader(frame)).
		SetResult(result).
		ForceContentType("application/json").
		Post("/detect"))
	if err != nil {
		return nil, fmt.Errorf("detection request failed: %w", err)
	}

	b := img.Bounds()
	detections := make([]types.Detection, 0, len(result.Detections))
	for _, det := range result.Detections {
		box := clipToImage(types.BoundingBox{X: det.X, Y: det.Y, Width: det.Width, Height: det.Height}, b.Dx(), b.Dy())
		if degenerate(box) {
			continue
		}
		detections = append(detections, types.Detection{
			Box:   box,
			Score: det.Confidence,
			Label: det.Label,
		})
	}
	return detections, nil
}

// handleError turns a >399 response into an error; resty reports those as success
func handleError(res *resty.Response, err error) (*resty.Response, error) {
	if err != nil {
		return res, err
	}
	if res.IsError() {
		return res, fmt.Errorf("request failed: %s %s (status: %d)", res.Request.Method, res.Request.URL, res.StatusCode())
	}
	return res, nil
}
