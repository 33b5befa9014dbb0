//go:build !dlib

package main

import (
	"errors"

	"github.com/menta2k/face-cropper/internal/config"
	"github.com/menta2k/face-cropper/pkg/detection"
)

func newDlibDetector(config.DetectorConfig) (detection.Detector, func(), error) {
	return nil, nil, errors.New("dlib backend not available: rebuild with -tags dlib")
}
