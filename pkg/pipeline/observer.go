package pipeline

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/menta2k/face-cropper/pkg/types"
)

// Observer receives progress events from Run. Events are delivered from the
// goroutine calling Run, in file order.
type Observer interface {
	OnStart(total int, opts types.RunOptions)
	OnFileDone(index int, name string, artifacts int, dur time.Duration)
	OnFileFailed(index int, name string, err error, dur time.Duration)
	OnFinish(result types.BatchResult, dur time.Duration)
}

// NopObserver ignores every event
type NopObserver struct{}

func (NopObserver) OnStart(int, types.RunOptions)                  {}
func (NopObserver) OnFileDone(int, string, int, time.Duration)     {}
func (NopObserver) OnFileFailed(int, string, error, time.Duration) {}
func (NopObserver) OnFinish(types.BatchResult, time.Duration)      {}

// LogObserver writes progress to a zerolog logger
type LogObserver struct {
	logger zerolog.Logger
	total  int
}

var (
	_ Observer = NopObserver{}
	_ Observer = (*LogObserver)(nil)
)

// NewLogObserver creates an observer logging through logger
func NewLogObserver(logger zerolog.Logger) *LogObserver {
	return &LogObserver{logger: logger.With().Str("component", "pipeline").Logger()}
}

func (o *LogObserver) OnStart(total int, opts types.RunOptions) {
	o.total = total
	o.logger.Info().
		Int("files", total).
		Str("mode", string(opts.Mode)).
		Float64("width_inch", opts.WidthInch).
		Float64("height_inch", opts.HeightInch).
		Msg("batch started")
}

func (o *LogObserver) OnFileDone(index int, name string, artifacts int, dur time.Duration) {
	o.logger.Debug().
		Int("index", index+1).
		Int("total", o.total).
		Str("file", name).
		Int("faces", artifacts).
		Dur("took", dur).
		Msg("file cropped")
}

func (o *LogObserver) OnFileFailed(index int, name string, err error, dur time.Duration) {
	o.logger.Warn().
		Err(err).
		Int("index", index+1).
		Int("total", o.total).
		Str("file", name).
		Dur("took", dur).
		Msg("file failed")
}

func (o *LogObserver) OnFinish(result types.BatchResult, dur time.Duration) {
	o.logger.Info().
		Int("artifacts", len(result.Artifacts)).
		Int("failed", len(result.FailedImages)).
		Dur("took", dur).
		Msg("batch finished")
}
