package detection

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/menta2k/face-cropper/pkg/types"
)

// WSConfig configures a WSDetector
type WSConfig struct {
	// URL is a ws:// or wss:// address, or a bare host:port served at /ws
	URL           string
	Labels        []string
	MinConfidence float64
	Timeout       time.Duration
}

// WSDetector streams frames to a detection server over a websocket. Each
// binary JPEG frame is answered by one JSON text frame.
type WSDetector struct {
	readiness
	config  WSConfig
	url     string
	dialer  *websocket.Dialer
	quality int

	mu     sync.Mutex
	conn   *websocket.Conn
	loaded bool
}

type wsResult struct {
	Label      string    `json:"label"`
	Confidence float32   `json:"confidence"`
	Box        []float32 `json:"box"` // normalized y1, x1, y2, x2
}

// NewWSDetector creates a websocket detector; call Load to connect
func NewWSDetector(config WSConfig) *WSDetector {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &WSDetector{
		config:  config,
		url:     wsURL(config.URL),
		dialer:  websocket.DefaultDialer,
		quality: 85,
	}
}

func wsURL(addr string) string {
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		return addr
	}
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}
	return u.String()
}

// Load dials the detection server. Once loaded, a connection dropped by a
// failed frame is redialed by the next Detect.
func (d *WSDetector) Load(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}

	if err := d.dialLocked(ctx); err != nil {
		d.loaded = false
		d.setReady(false)
		return err
	}
	d.loaded = true
	d.setReady(true)
	return nil
}

func (d *WSDetector) dialLocked(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	conn, _, err := d.dialer.DialContext(ctx, d.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", d.url, err)
	}
	d.conn = conn
	return nil
}

// Detect sends one frame and waits for its result
func (d *WSDetector) Detect(ctx context.Context, img image.Image) ([]types.Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.loaded {
		return nil, ErrNotLoaded
	}
	if d.conn == nil {
		if err := d.dialLocked(ctx); err != nil {
			return nil, err
		}
	}

	frame, err := encodeFrame(img, d.quality)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	deadline := time.Now().Add(d.config.Timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = d.conn.SetWriteDeadline(deadline)
	_ = d.conn.SetReadDeadline(deadline)

	if err := d.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		d.dropLocked()
		return nil, fmt.Errorf("failed to send frame: %w", err)
	}

	_, message, err := d.conn.ReadMessage()
	if err != nil {
		d.dropLocked()
		return nil, fmt.Errorf("failed to read result: %w", err)
	}

	var results []wsResult
	if err := json.Unmarshal(message, &results); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}

	b := img.Bounds()
	detections := make([]types.Detection, 0, len(results))
	for _, res := range results {
		if len(res.Box) != 4 || !d.accepts(res) {
			continue
		}
		y1, x1, y2, x2 := float64(res.Box[0]), float64(res.Box[1]), float64(res.Box[2]), float64(res.Box[3])
		box := fromNormalized(x1, y1, x2-x1, y2-y1, b.Dx(), b.Dy())
		if degenerate(box) {
			continue
		}
		detections = append(detections, types.Detection{
			Box:   box,
			Score: float64(res.Confidence),
			Label: res.Label,
		})
	}
	return detections, nil
}

func (d *WSDetector) accepts(res wsResult) bool {
	if float64(res.Confidence) < d.config.MinConfidence {
		return false
	}
	if len(d.config.Labels) == 0 {
		return true
	}
	for _, l := range d.config.Labels {
		if strings.EqualFold(l, res.Label) {
			return true
		}
	}
	return false
}

// dropLocked closes a broken connection so that a late reply to the failed
// frame is never read as the answer to the next one
func (d *WSDetector) dropLocked() {
	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}
}

// Close sends a close frame and releases the connection
func (d *WSDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.loaded = false
	d.setReady(false)
	if d.conn == nil {
		return nil
	}
	_ = d.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := d.conn.Close()
	d.conn = nil
	return err
}
