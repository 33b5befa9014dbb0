package imageio

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"io"
	"os"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// Format is an output raster format
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpg"
	WebP Format = "webp"
)

// ParseFormat maps a user supplied name onto a Format
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "", "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	case "webp":
		return WebP, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", s)
	}
}

// Extension returns the file extension including the dot
func (f Format) Extension() string {
	if f == "" {
		return ".png"
	}
	return "." + string(f)
}

// EncodeOptions controls lossy encoders; PNG ignores them
type EncodeOptions struct {
	Format   Format
	Quality  int
	Lossless bool
}

// Encode writes img to w in the requested format
func Encode(w io.Writer, img image.Image, opts EncodeOptions) error {
	quality := opts.Quality
	if quality <= 0 || quality > 100 {
		quality = 90
	}

	switch opts.Format {
	case "", PNG:
		return imaging.Encode(w, img, imaging.PNG)
	case JPEG:
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	case WebP:
		return webp.Encode(w, img, &webp.Options{Lossless: opts.Lossless, Quality: float32(quality)})
	default:
		return fmt.Errorf("unsupported output format: %s", opts.Format)
	}
}

// EncodeBytes encodes img into a new byte slice
func EncodeBytes(img image.Image, opts EncodeOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SaveImage saves an image to a file with the specified format and quality
func SaveImage(img image.Image, path string, opts EncodeOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := Encode(f, img, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// PrepareForModel downscales img so its long side is at most maxDim (0 keeps the
// original size) and returns the encoded bytes.
func PrepareForModel(img image.Image, format Format, maxDim int, quality int) ([]byte, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}
	if format != PNG {
		format = JPEG
	}
	return EncodeBytes(img, EncodeOptions{Format: format, Quality: quality})
}

// PrepareForModelBase64 is PrepareForModel with base64 output for JSON payloads
func PrepareForModelBase64(img image.Image, format Format, maxDim int, quality int) (string, error) {
	data, err := PrepareForModel(img, format, maxDim, quality)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
