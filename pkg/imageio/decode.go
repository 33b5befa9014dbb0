package imageio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedFormat is returned for images outside the decoder's format list
var ErrUnsupportedFormat = errors.New("unsupported image format")

// DefaultFormats are the input formats accepted by New
var DefaultFormats = []string{"jpeg", "png", "webp", "gif", "bmp", "tiff"}

// Decoder turns image bytes into an image.Image
type Decoder struct {
	config DecoderConfig
}

// DecoderConfig holds configuration for decoding
type DecoderConfig struct {
	SupportedFormats []string
	AutoOrientation  bool
	MaxBytes         int64
}

// NewDecoder creates a Decoder accepting DefaultFormats with EXIF orientation applied
func NewDecoder() *Decoder {
	return &Decoder{
		config: DecoderConfig{
			SupportedFormats: DefaultFormats,
			AutoOrientation:  true,
		},
	}
}

// NewDecoderWithConfig creates a Decoder with custom configuration
func NewDecoderWithConfig(config DecoderConfig) *Decoder {
	if len(config.SupportedFormats) == 0 {
		config.SupportedFormats = DefaultFormats
	}
	return &Decoder{config: config}
}

// Decode reads all of r and decodes it, returning the image and its format name
func (d *Decoder) Decode(r io.Reader) (image.Image, string, error) {
	if d.config.MaxBytes > 0 {
		r = io.LimitReader(r, d.config.MaxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image data: %w", err)
	}
	if d.config.MaxBytes > 0 && int64(len(data)) > d.config.MaxBytes {
		return nil, "", fmt.Errorf("image too large: exceeds limit of %d bytes", d.config.MaxBytes)
	}
	return d.DecodeBytes(data)
}

// DecodeBytes decodes in-memory image data
func (d *Decoder) DecodeBytes(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", errors.New("failed to decode image: empty data")
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		// x/image/webp rejects some encoder variants that libwebp reads fine
		if img, werr := webp.Decode(bytes.NewReader(data)); werr == nil {
			return d.checkFormat(img, "webp")
		}
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	var opts []imaging.DecodeOption
	if d.config.AutoOrientation {
		opts = append(opts, imaging.AutoOrientation(true))
	}
	img, err := imaging.Decode(bytes.NewReader(data), opts...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return d.checkFormat(img, format)
}

// DecodeFile loads an image from a file path
func (d *Decoder) DecodeFile(path string) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open image file: %w", err)
	}
	defer f.Close()

	return d.Decode(f)
}

func (d *Decoder) checkFormat(img image.Image, format string) (image.Image, string, error) {
	if !d.isFormatSupported(format) {
		return nil, format, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, format, fmt.Errorf("invalid image dimensions: %dx%d", b.Dx(), b.Dy())
	}
	return img, format, nil
}

func (d *Decoder) isFormatSupported(format string) bool {
	for _, supported := range d.config.SupportedFormats {
		if strings.EqualFold(format, supported) || (strings.EqualFold(supported, "jpg") && strings.EqualFold(format, "jpeg")) {
			return true
		}
	}
	return false
}
