package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrNoInput is returned when Run is called without files
	ErrNoInput = errors.New("no input files")
	// ErrDetectorNotReady is returned when the detector has not finished loading
	ErrDetectorNotReady = errors.New("face detector is not ready")
	// ErrNoFaceDetected is recorded for files the detector found no face in
	ErrNoFaceDetected = errors.New("no face detected")
)

// Stage names the step of per-file processing that failed
type Stage string

const (
	StageDecode Stage = "decode"
	StageDetect Stage = "detect"
	StageSelect Stage = "select"
	StageRender Stage = "render"
)

// FileError is a failure contained to a single input file
type FileError struct {
	Name  string
	Stage Stage
	Err   error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Name, e.Stage, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}
