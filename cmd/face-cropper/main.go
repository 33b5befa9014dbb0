package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	facecropper "github.com/menta2k/face-cropper"
	"github.com/menta2k/face-cropper/internal/config"
	"github.com/menta2k/face-cropper/internal/utils"
	"github.com/menta2k/face-cropper/pkg/cropper"
	"github.com/menta2k/face-cropper/pkg/export"
	"github.com/menta2k/face-cropper/pkg/imageio"
	"github.com/menta2k/face-cropper/pkg/ingest"
	"github.com/menta2k/face-cropper/pkg/pipeline"
	"github.com/menta2k/face-cropper/pkg/types"
)

func main() {
	var configPath, from, saveConfig string
	var backend, url, model, apiKey string
	var mode, resample string
	var widthInch, heightInch, scale, dpi, minConf float64
	var outDir, ext string
	var quality int
	var lossless, noZip, debug bool
	var logLevel, logFormat string

	flag.StringVar(&configPath, "config", "", "config file (default: "+config.GetConfigPath()+" if present)")
	flag.StringVar(&saveConfig, "save-config", "", "write the effective config to this path and exit")
	flag.StringVar(&from, "from", string(ingest.ModeFiles), "input kind: files|folder|archive")

	flag.StringVar(&backend, "backend", "", "detector backend: ollama|llamacpp|gemini|http|ws|dlib")
	flag.StringVar(&url, "url", "", "detector server URL")
	flag.StringVar(&model, "model", "", "vision model name")
	flag.StringVar(&apiKey, "api-key", "", "API key for hosted backends (gemini)")
	flag.Float64Var(&minConf, "min-confidence", -1, "drop detections below this confidence (0..1)")

	flag.StringVar(&mode, "crop", "", "which faces to crop: main|all")
	flag.Float64Var(&widthInch, "width", -1, "output width in inches (0 = follow the face)")
	flag.Float64Var(&heightInch, "height", -1, "output height in inches (0 = follow the face)")
	flag.Float64Var(&scale, "scale", 0, "crop scale around the face box")
	flag.Float64Var(&dpi, "dpi", 0, "pixels per inch for physical sizes")
	flag.StringVar(&resample, "resample", "", "resample filter: nearest|linear|catmullrom|lanczos")

	flag.StringVar(&outDir, "out", "", "output directory")
	flag.StringVar(&ext, "ext", "", "output format for crops: png|jpg|webp")
	flag.IntVar(&quality, "quality", 0, "JPEG/WebP output quality for crops (1-100)")
	flag.BoolVar(&lossless, "lossless", false, "WebP output lossless mode for crops")
	flag.BoolVar(&noZip, "no-zip", false, "write loose files instead of a zip bundle")
	flag.BoolVar(&debug, "debug", false, "also write debug overlay images")

	flag.StringVar(&logLevel, "log-level", "", "log level: debug|info|warn|error")
	flag.StringVar(&logFormat, "log-format", "", "log format: console|json")
	flag.Parse()

	cfg, err := loadConfig(configPath)
	if err != nil {
		fatal(err)
	}

	// flags override the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.Detector.Backend = backend
		case "url":
			cfg.Detector.URL = url
		case "model":
			cfg.Detector.Model = model
		case "api-key":
			cfg.Detector.APIKey = apiKey
		case "min-confidence":
			cfg.Detector.MinConfidence = minConf
		case "crop":
			cfg.Cropper.Mode = mode
		case "width":
			cfg.Cropper.WidthInch = widthInch
		case "height":
			cfg.Cropper.HeightInch = heightInch
		case "scale":
			cfg.Cropper.Scale = scale
		case "dpi":
			cfg.Cropper.DPI = dpi
		case "resample":
			cfg.Cropper.Resample = resample
		case "out":
			cfg.Output.OutputDir = outDir
		case "ext":
			cfg.Output.Format = ext
		case "quality":
			cfg.Output.Quality = quality
		case "lossless":
			cfg.Output.Lossless = lossless
		case "no-zip":
			cfg.Output.Zip = !noZip
		case "debug":
			cfg.Output.DebugOverlay = debug
		case "log-level":
			cfg.Log.Level = logLevel
		case "log-format":
			cfg.Log.Format = logFormat
		}
	})

	setupLogging(cfg.Log)

	if err := cfg.Validate(); err != nil {
		fatal(fmt.Errorf("invalid configuration: %w", err))
	}

	if saveConfig != "" {
		if err := cfg.SaveToFile(saveConfig); err != nil {
			fatal(err)
		}
		log.Info().Str("path", saveConfig).Msg("config written")
		return
	}

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "usage: %s [-from files|folder|archive] [-crop main|all] [-width in] [-height in] [-backend name] [-url server_url] [-out outdir] path...\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, ingest.Selection{Mode: ingest.Mode(from), Paths: flag.Args()}); err != nil {
		fatal(err)
	}
}

func run(ctx context.Context, cfg *config.Config, sel ingest.Selection) error {
	detector, closeDetector, err := newDetector(ctx, cfg.Detector)
	if err != nil {
		return err
	}
	defer closeDetector()

	format, err := imageio.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	fc := facecropper.NewWithConfig(detector, facecropper.Options{
		Decoder: imageio.DecoderConfig{
			SupportedFormats: cfg.Input.SupportedFormats,
			AutoOrientation:  true,
			MaxBytes:         cfg.Input.MaxImageBytes,
		},
		Render: cropper.RenderConfig{
			Format:   format,
			Quality:  cfg.Output.Quality,
			Lossless: cfg.Output.Lossless,
			Resample: cfg.Cropper.Resample,
		},
		Observer:    pipeline.NewLogObserver(log.Logger),
		MaxEntry:    cfg.Input.MaxEntryBytes,
		Parallelism: cfg.Output.Parallelism,
	})

	log.Info().Str("backend", cfg.Detector.Backend).Str("model", cfg.Detector.Model).Msg("loading face detector")
	if err := fc.Load(ctx); err != nil {
		return err
	}

	batch, result, err := fc.ProcessSelection(ctx, sel, cfg.RunOptions())
	if err != nil {
		return err
	}

	for _, msg := range export.Notifications(result.FailedImages) {
		log.Warn().Msg(msg)
	}

	if len(result.Artifacts) == 0 {
		return fmt.Errorf("no faces cropped from %d file(s)", len(batch.Files))
	}

	path, err := fc.Export(ctx, batch.Name, result, cfg.Output.OutputDir, cfg.Output.Zip)
	if err != nil {
		return fmt.Errorf("failed to export crops: %w", err)
	}

	bundle := ""
	if cfg.Output.Zip {
		bundle = filepath.Base(path)
	}
	if err := writeSummary(cfg.Output.OutputDir, bundle, result); err != nil {
		return err
	}

	var total int64
	for _, a := range result.Artifacts {
		total += int64(len(a.Data))
	}
	log.Info().
		Str("path", path).
		Int("crops", len(result.Artifacts)).
		Int("failed", len(result.FailedImages)).
		Str("size", utils.FormatFileSize(total)).
		Msg("wrote crops")
	return nil
}

func writeSummary(dir, bundle string, result types.BatchResult) error {
	if err := utils.EnsureDir(dir); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, "summary.json"))
	if err != nil {
		return fmt.Errorf("failed to create summary: %w", err)
	}
	if err := export.WriteSummary(f, bundle, result); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	if def := config.GetConfigPath(); utils.FileExists(def) {
		return config.LoadFromFile(def)
	}
	return config.Default(), nil
}

func setupLogging(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "json" {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func fatal(err error) {
	log.Fatal().Err(err).Msg("face-cropper failed")
}
