//go:build dlib

package main

import (
	"github.com/menta2k/face-cropper/internal/config"
	"github.com/menta2k/face-cropper/pkg/detection"
)

func newDlibDetector(cfg config.DetectorConfig) (detection.Detector, func(), error) {
	d, err := detection.NewDlibDetector(cfg.ModelsDir, cfg.UseCNN)
	if err != nil {
		return nil, nil, err
	}
	return d, func() { _ = d.Close() }, nil
}
