// Package pipeline turns a batch of source images into face crops. Files are
// processed one at a time in input order; a failing file is recorded and the
// batch continues.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/menta2k/face-cropper/pkg/cropper"
	"github.com/menta2k/face-cropper/pkg/detection"
	"github.com/menta2k/face-cropper/pkg/geometry"
	"github.com/menta2k/face-cropper/pkg/imageio"
	"github.com/menta2k/face-cropper/pkg/selector"
	"github.com/menta2k/face-cropper/pkg/types"
)

// Config holds the collaborators of a Pipeline. Nil fields get defaults.
type Config struct {
	Decoder  *imageio.Decoder
	Renderer *cropper.Renderer
	Observer Observer
}

// Pipeline runs detection, selection, and cropping over batches of files.
// It is not safe for concurrent use.
type Pipeline struct {
	detector detection.Detector
	decoder  *imageio.Decoder
	renderer *cropper.Renderer
	observer Observer

	result types.BatchResult
}

// New creates a pipeline with default decoder and renderer
func New(detector detection.Detector) *Pipeline {
	return NewWithConfig(detector, Config{})
}

// NewWithConfig creates a pipeline with custom collaborators
func NewWithConfig(detector detection.Detector, config Config) *Pipeline {
	if config.Decoder == nil {
		config.Decoder = imageio.NewDecoder()
	}
	if config.Renderer == nil {
		config.Renderer = cropper.New()
	}
	if config.Observer == nil {
		config.Observer = NopObserver{}
	}
	return &Pipeline{
		detector: detector,
		decoder:  config.Decoder,
		renderer: config.Renderer,
		observer: config.Observer,
	}
}

// Result returns the outcome of the last completed run
func (p *Pipeline) Result() types.BatchResult {
	return p.result
}

// pendingCrop is a rendered crop waiting for its name
type pendingCrop struct {
	face int
	data []byte
	rect types.CropRectangle
	size types.OutputSpec
}

type fileOutcome struct {
	crops   []pendingCrop
	overlay []byte
}

// Run processes files and replaces the held result with the new one. It fails
// without touching any file when there is no input, the detector is not
// ready, or the mode is unknown. Every other failure is recorded per file.
func (p *Pipeline) Run(ctx context.Context, files []types.SourceFile, opts types.RunOptions) (types.BatchResult, error) {
	if len(files) == 0 {
		return types.BatchResult{}, ErrNoInput
	}
	if p.detector == nil || !p.detector.Ready() {
		return types.BatchResult{}, ErrDetectorNotReady
	}
	if !opts.Mode.Valid() {
		return types.BatchResult{}, fmt.Errorf("%w: %q", selector.ErrUnknownMode, opts.Mode)
	}

	started := time.Now()
	p.observer.OnStart(len(files), opts)

	namer := NewNamer(p.renderer.Extension())
	result := types.BatchResult{
		Artifacts:    []types.CroppedArtifact{},
		FailedImages: []string{},
	}

	for i, file := range files {
		fileStarted := time.Now()

		outcome, err := p.processFile(ctx, file, opts)
		if err != nil {
			result.FailedImages = append(result.FailedImages, file.Name)
			p.observer.OnFileFailed(i, file.Name, err, time.Since(fileStarted))
			continue
		}

		for _, c := range outcome.crops {
			result.Artifacts = append(result.Artifacts, types.CroppedArtifact{
				Name:   namer.Reserve(ArtifactStem(file.Name, opts.Mode, c.face)),
				Data:   c.data,
				Source: file.Name,
				Face:   c.face,
				Rect:   c.rect,
				Size:   c.size,
			})
		}
		if outcome.overlay != nil {
			result.Overlays = append(result.Overlays, types.CroppedArtifact{
				Name:   namer.Reserve(OverlayStem(file.Name)),
				Data:   outcome.overlay,
				Source: file.Name,
			})
		}
		p.observer.OnFileDone(i, file.Name, len(outcome.crops), time.Since(fileStarted))
	}

	p.result = result
	p.observer.OnFinish(result, time.Since(started))
	return result, nil
}

// processFile runs every stage for one file. Panics are turned into a
// FileError for the stage that raised them.
func (p *Pipeline) processFile(ctx context.Context, file types.SourceFile, opts types.RunOptions) (outcome fileOutcome, err error) {
	stage := StageDecode
	defer func() {
		if r := recover(); r != nil {
			err = &FileError{Name: file.Name, Stage: stage, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	img, err := p.load(file)
	if err != nil {
		return outcome, &FileError{Name: file.Name, Stage: stage, Err: err}
	}

	stage = StageDetect
	detections, err := p.detector.Detect(ctx, img)
	if err != nil {
		return outcome, &FileError{Name: file.Name, Stage: stage, Err: err}
	}
	if len(detections) == 0 {
		return outcome, &FileError{Name: file.Name, Stage: stage, Err: ErrNoFaceDetected}
	}

	stage = StageSelect
	b := img.Bounds()
	selected, err := selector.Select(detections, opts.Mode, b.Dx(), b.Dy())
	if err != nil {
		return outcome, &FileError{Name: file.Name, Stage: stage, Err: err}
	}

	stage = StageRender
	scale := geometry.ResolveScale(opts.Scale)
	rects := make([]types.CropRectangle, 0, len(selected))
	for i, det := range selected {
		rect := geometry.CropRectangle(det.Box, scale)
		size := geometry.OutputSize(rect, opts.WidthInch, opts.HeightInch, opts.DPI)

		data, err := p.renderer.Render(img, rect, size)
		if err != nil {
			return fileOutcome{}, &FileError{
				Name:  file.Name,
				Stage: stage,
				Err:   fmt.Errorf("face %d: %w", i+1, err),
			}
		}

		rects = append(rects, rect)
		outcome.crops = append(outcome.crops, pendingCrop{face: i + 1, data: data, rect: rect, size: size})
	}

	if opts.DebugOverlay {
		overlay := cropper.Overlay(img, selected, rects)
		data, err := imageio.EncodeBytes(overlay, imageio.EncodeOptions{Format: imageio.PNG})
		if err != nil {
			return fileOutcome{}, &FileError{Name: file.Name, Stage: stage, Err: fmt.Errorf("overlay: %w", err)}
		}
		outcome.overlay = data
	}

	return outcome, nil
}

func (p *Pipeline) load(file types.SourceFile) (image.Image, error) {
	if file.Open == nil {
		return nil, fmt.Errorf("file %q has no content", file.Name)
	}

	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer rc.Close()

	img, _, err := p.decoder.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}
