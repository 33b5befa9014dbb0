package main

import (
	"context"
	"fmt"

	"github.com/menta2k/face-cropper/internal/config"
	"github.com/menta2k/face-cropper/pkg/client"
	"github.com/menta2k/face-cropper/pkg/detection"
	"github.com/menta2k/face-cropper/pkg/gemini"
	"github.com/menta2k/face-cropper/pkg/llamacpp"
	"github.com/menta2k/face-cropper/pkg/ollama"
)

// newDetector builds the configured backend. The returned func releases it.
func newDetector(ctx context.Context, cfg config.DetectorConfig) (detection.Detector, func(), error) {
	noop := func() {}

	switch cfg.Backend {
	case config.BackendHTTP:
		return detection.NewHTTPDetector(cfg.URL, cfg.Timeout()), noop, nil

	case config.BackendWS:
		d := detection.NewWSDetector(detection.WSConfig{
			URL:           cfg.URL,
			Labels:        cfg.Labels,
			MinConfidence: cfg.MinConfidence,
			Timeout:       cfg.Timeout(),
		})
		return d, func() { _ = d.Close() }, nil

	case config.BackendDlib:
		return newDlibDetector(cfg)
	}

	var (
		visionClient client.VisionClient
		err          error
	)
	switch cfg.Backend {
	case config.BackendOllama:
		visionClient, err = ollama.NewClient(cfg.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
	case config.BackendLlamaCpp:
		visionClient, err = llamacpp.NewClient(cfg.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
	case config.BackendGemini:
		visionClient, err = gemini.NewClient(ctx, gemini.Config{APIKey: cfg.APIKey, Model: cfg.Model})
		if err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, fmt.Errorf("unknown backend: %s", cfg.Backend)
	}

	vc := detection.DefaultVisionConfig(cfg.Model)
	vc.MinConfidence = cfg.MinConfidence
	if cfg.MaxDimension > 0 {
		vc.MaxDimension = cfg.MaxDimension
	}
	return detection.NewVisionDetectorWithConfig(visionClient, vc), noop, nil
}
