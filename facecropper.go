// Package facecropper finds faces in batches of images and writes one cropped
// image per face.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		facecropper "github.com/menta2k/face-cropper"
//		"github.com/menta2k/face-cropper/pkg/detection"
//		"github.com/menta2k/face-cropper/pkg/ingest"
//		"github.com/menta2k/face-cropper/pkg/ollama"
//		"github.com/menta2k/face-cropper/pkg/types"
//	)
//
//	func main() {
//		client, err := ollama.NewClient("http://localhost:11434")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		fc := facecropper.New(detection.NewVisionDetector(client, "qwen2.5vl:7b"))
//		if err := fc.Load(context.Background()); err != nil {
//			log.Fatal(err)
//		}
//
//		batch, result, err := fc.ProcessSelection(context.Background(),
//			ingest.Selection{Mode: ingest.ModeFolder, Paths: []string{"./photos"}},
//			types.RunOptions{Mode: types.ModeAll, WidthInch: 2, HeightInch: 2})
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		if _, err := fc.Export(context.Background(), batch.Name, result, "./output", true); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// The package consists of these components:
//
//  1. Detection (pkg/detection): vision model, HTTP, websocket, and dlib face detectors
//  2. Selector (pkg/selector): picks the primary face or keeps all of them
//  3. Geometry (pkg/geometry): crop rectangles and physical output sizes
//  4. Cropper (pkg/cropper): renders and encodes each crop
//  5. Pipeline (pkg/pipeline): runs a batch, recording failures per file
//  6. Ingest and Export (pkg/ingest, pkg/export): files, folders, and zip archives in and out
package facecropper

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/menta2k/face-cropper/pkg/cropper"
	"github.com/menta2k/face-cropper/pkg/detection"
	"github.com/menta2k/face-cropper/pkg/export"
	"github.com/menta2k/face-cropper/pkg/imageio"
	"github.com/menta2k/face-cropper/pkg/ingest"
	"github.com/menta2k/face-cropper/pkg/pipeline"
	"github.com/menta2k/face-cropper/pkg/types"
)

// Version of the face cropper library
const Version = "1.0.0"

// Options configures a FaceCropper. Zero values select defaults.
type Options struct {
	Decoder     imageio.DecoderConfig
	Render      cropper.RenderConfig
	Observer    pipeline.Observer
	MaxEntry    int64
	Parallelism int
}

// FaceCropper ties detection, cropping, ingestion, and export together
type FaceCropper struct {
	detector    detection.Detector
	pipeline    *pipeline.Pipeline
	resolver    *ingest.Resolver
	parallelism int
}

// New creates a FaceCropper with default configuration
func New(detector detection.Detector) *FaceCropper {
	return NewWithConfig(detector, Options{})
}

// NewWithConfig creates a FaceCropper with custom configuration
func NewWithConfig(detector detection.Detector, opts Options) *FaceCropper {
	decoder := imageio.NewDecoder()
	if len(opts.Decoder.SupportedFormats) > 0 || opts.Decoder.MaxBytes > 0 {
		decoder = imageio.NewDecoderWithConfig(opts.Decoder)
	}

	resolver := ingest.NewResolver()
	if opts.MaxEntry > 0 {
		resolver.MaxEntryBytes = opts.MaxEntry
	}

	return &FaceCropper{
		detector: detector,
		pipeline: pipeline.NewWithConfig(detector, pipeline.Config{
			Decoder:  decoder,
			Renderer: cropper.NewWithConfig(opts.Render),
			Observer: opts.Observer,
		}),
		resolver:    resolver,
		parallelism: opts.Parallelism,
	}
}

// Load prepares the detector; Process fails until it succeeds
func (fc *FaceCropper) Load(ctx context.Context) error {
	return detection.Load(ctx, fc.detector)
}

// Ready reports whether the detector can take images
func (fc *FaceCropper) Ready() bool {
	return fc.detector != nil && fc.detector.Ready()
}

// Process crops faces from files
func (fc *FaceCropper) Process(ctx context.Context, files []types.SourceFile, opts types.RunOptions) (types.BatchResult, error) {
	return fc.pipeline.Run(ctx, files, opts)
}

// ProcessSelection resolves sel and crops faces from every file in it
func (fc *FaceCropper) ProcessSelection(ctx context.Context, sel ingest.Selection, opts types.RunOptions) (ingest.Batch, types.BatchResult, error) {
	batch, err := fc.resolver.Resolve(sel)
	if err != nil {
		return ingest.Batch{}, types.BatchResult{}, fmt.Errorf("failed to resolve selection: %w", err)
	}

	result, err := fc.pipeline.Run(ctx, batch.Files, opts)
	if err != nil {
		return batch, types.BatchResult{}, err
	}
	return batch, result, nil
}

// Result returns the outcome of the last completed run
func (fc *FaceCropper) Result() types.BatchResult {
	return fc.pipeline.Result()
}

// Export writes result to outputDir, either as one zip bundle or as loose
// files, and returns the path written
func (fc *FaceCropper) Export(ctx context.Context, batchName string, result types.BatchResult, outputDir string, bundle bool) (string, error) {
	artifacts := append(append([]types.CroppedArtifact{}, result.Artifacts...), result.Overlays...)

	if bundle {
		path := filepath.Join(outputDir, export.BundleName(batchName))
		if err := export.SaveZip(path, artifacts); err != nil {
			return "", err
		}
		return path, nil
	}

	if err := export.WriteDir(ctx, outputDir, artifacts, fc.parallelism); err != nil {
		return "", err
	}
	return outputDir, nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
