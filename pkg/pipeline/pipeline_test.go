package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/face-cropper/pkg/selector"
	"github.com/menta2k/face-cropper/pkg/types"
)

// fakeDetector answers by image width so each test file can get its own faces
type fakeDetector struct {
	ready   bool
	byWidth map[int][]types.Detection
	errs    map[int]error
	panics  map[int]bool
	calls   int
}

func (f *fakeDetector) Ready() bool { return f.ready }

func (f *fakeDetector) Detect(_ context.Context, img image.Image) ([]types.Detection, error) {
	f.calls++
	w := img.Bounds().Dx()
	if f.panics[w] {
		panic("detector crashed")
	}
	if err := f.errs[w]; err != nil {
		return nil, err
	}
	return f.byWidth[w], nil
}

type recordObserver struct {
	started  int
	done     []string
	failed   []string
	errs     []error
	finished *types.BatchResult
}

func (o *recordObserver) OnStart(total int, _ types.RunOptions) { o.started = total }
func (o *recordObserver) OnFileDone(_ int, name string, _ int, _ time.Duration) {
	o.done = append(o.done, name)
}
func (o *recordObserver) OnFileFailed(_ int, name string, err error, _ time.Duration) {
	o.failed = append(o.failed, name)
	o.errs = append(o.errs, err)
}
func (o *recordObserver) OnFinish(result types.BatchResult, _ time.Duration) { o.finished = &result }

func pngFile(t *testing.T, name string, width, height int) types.SourceFile {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 200, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return bytesFile(name, buf.Bytes())
}

func bytesFile(name string, data []byte) types.SourceFile {
	return types.SourceFile{
		Name: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func face(x, y, w, h float64) types.Detection {
	return types.Detection{Box: types.BoundingBox{X: x, Y: y, Width: w, Height: h}, Score: 0.9, Label: "face"}
}

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestRunMixedBatch(t *testing.T) {
	det := &fakeDetector{ready: true, byWidth: map[int][]types.Detection{
		100: {face(20, 20, 40, 40)},
	}}
	obs := &recordObserver{}
	p := NewWithConfig(det, Config{Observer: obs})

	files := []types.SourceFile{
		pngFile(t, "a.png", 100, 80),
		pngFile(t, "b.png", 120, 80),
		bytesFile("c.jpg", []byte("definitely not an image")),
	}

	res, err := p.Run(context.Background(), files, types.RunOptions{Mode: types.ModeMain})
	require.NoError(t, err)

	require.Len(t, res.Artifacts, 1)
	assert.Equal(t, "a.png", res.Artifacts[0].Name)
	assert.Equal(t, "a.png", res.Artifacts[0].Source)
	assert.Equal(t, []string{"b.png", "c.jpg"}, res.FailedImages)
	assert.Empty(t, res.Overlays)

	// c.jpg never reaches the detector
	assert.Equal(t, 2, det.calls)

	assert.Equal(t, 3, obs.started)
	assert.Equal(t, []string{"a.png"}, obs.done)
	assert.Equal(t, []string{"b.png", "c.jpg"}, obs.failed)
	require.NotNil(t, obs.finished)

	var fe *FileError
	require.ErrorAs(t, obs.errs[0], &fe)
	assert.Equal(t, StageDetect, fe.Stage)
	assert.ErrorIs(t, obs.errs[0], ErrNoFaceDetected)
	require.ErrorAs(t, obs.errs[1], &fe)
	assert.Equal(t, StageDecode, fe.Stage)

	assert.Equal(t, res, p.Result())
}

func TestRunCropGeometry(t *testing.T) {
	det := &fakeDetector{ready: true, byWidth: map[int][]types.Detection{
		100: {face(20, 20, 40, 40)},
	}}
	p := New(det)

	res, err := p.Run(context.Background(), []types.SourceFile{pngFile(t, "a.png", 100, 80)}, types.RunOptions{Mode: types.ModeMain})
	require.NoError(t, err)
	require.Len(t, res.Artifacts, 1)

	a := res.Artifacts[0]
	assert.Equal(t, types.CropRectangle{X: 10, Y: 10, Width: 60, Height: 60}, a.Rect)
	assert.Equal(t, types.OutputSpec{Width: 60, Height: 60}, a.Size)
	assert.Equal(t, 1, a.Face)

	img := decodePNG(t, a.Data)
	assert.Equal(t, 60, img.Bounds().Dx())
	assert.Equal(t, 60, img.Bounds().Dy())
}

func TestRunPhysicalSize(t *testing.T) {
	det := &fakeDetector{ready: true, byWidth: map[int][]types.Detection{
		100: {face(20, 20, 40, 40)},
	}}
	p := New(det)

	opts := types.RunOptions{Mode: types.ModeMain, WidthInch: 2, HeightInch: 3}
	res, err := p.Run(context.Background(), []types.SourceFile{pngFile(t, "a.png", 100, 80)}, opts)
	require.NoError(t, err)
	require.Len(t, res.Artifacts, 1)

	img := decodePNG(t, res.Artifacts[0].Data)
	assert.Equal(t, 192, img.Bounds().Dx())
	assert.Equal(t, 288, img.Bounds().Dy())
}

func TestRunNaming(t *testing.T) {
	faces := map[int][]types.Detection{
		100: {face(10, 10, 20, 20), face(50, 10, 30, 30)},
	}

	p := New(&fakeDetector{ready: true, byWidth: faces})
	res, err := p.Run(context.Background(), []types.SourceFile{pngFile(t, "portrait.jpg", 100, 80)}, types.RunOptions{Mode: types.ModeAll})
	require.NoError(t, err)
	require.Len(t, res.Artifacts, 2)
	assert.Equal(t, "portrait_face1.png", res.Artifacts[0].Name)
	assert.Equal(t, "portrait_face2.png", res.Artifacts[1].Name)
	assert.Equal(t, 20.0, res.Artifacts[0].Rect.Width/1.5)

	res, err = p.Run(context.Background(), []types.SourceFile{pngFile(t, "portrait.jpg", 100, 80)}, types.RunOptions{Mode: types.ModeMain})
	require.NoError(t, err)
	require.Len(t, res.Artifacts, 1)
	assert.Equal(t, "portrait.png", res.Artifacts[0].Name)
	// the larger face wins
	assert.Equal(t, types.CropRectangle{X: 42.5, Y: 2.5, Width: 45, Height: 45}, res.Artifacts[0].Rect)
}

func TestRunNameCollisions(t *testing.T) {
	p := New(&fakeDetector{ready: true, byWidth: map[int][]types.Detection{
		100: {face(20, 20, 40, 40)},
	}})

	files := []types.SourceFile{
		pngFile(t, "x/portrait.jpg", 100, 80),
		pngFile(t, "y/portrait.png", 100, 80),
	}
	res, err := p.Run(context.Background(), files, types.RunOptions{Mode: types.ModeMain})
	require.NoError(t, err)
	require.Len(t, res.Artifacts, 2)
	assert.Equal(t, "portrait.png", res.Artifacts[0].Name)
	assert.Equal(t, "portrait_2.png", res.Artifacts[1].Name)
}

func TestRunReplacesResult(t *testing.T) {
	p := New(&fakeDetector{ready: true, byWidth: map[int][]types.Detection{
		100: {face(20, 20, 40, 40)},
	}})

	_, err := p.Run(context.Background(), []types.SourceFile{pngFile(t, "a.png", 100, 80)}, types.RunOptions{Mode: types.ModeMain})
	require.NoError(t, err)

	second, err := p.Run(context.Background(), []types.SourceFile{pngFile(t, "b.png", 50, 50)}, types.RunOptions{Mode: types.ModeMain})
	require.NoError(t, err)

	assert.Empty(t, second.Artifacts)
	assert.Equal(t, []string{"b.png"}, second.FailedImages)
	assert.Equal(t, second, p.Result())
}

func TestRunPreconditions(t *testing.T) {
	opened := false
	file := types.SourceFile{Name: "a.png", Open: func() (io.ReadCloser, error) {
		opened = true
		return nil, errors.New("unreachable")
	}}

	p := New(&fakeDetector{ready: true})
	_, err := p.Run(context.Background(), nil, types.RunOptions{Mode: types.ModeMain})
	assert.ErrorIs(t, err, ErrNoInput)

	_, err = p.Run(context.Background(), []types.SourceFile{file}, types.RunOptions{Mode: "biggest"})
	assert.ErrorIs(t, err, selector.ErrUnknownMode)

	p = New(&fakeDetector{ready: false})
	_, err = p.Run(context.Background(), []types.SourceFile{file}, types.RunOptions{Mode: types.ModeMain})
	assert.ErrorIs(t, err, ErrDetectorNotReady)

	p = New(nil)
	_, err = p.Run(context.Background(), []types.SourceFile{file}, types.RunOptions{Mode: types.ModeMain})
	assert.ErrorIs(t, err, ErrDetectorNotReady)

	assert.False(t, opened)
}

func TestRunContainsPanicsAndErrors(t *testing.T) {
	det := &fakeDetector{
		ready: true,
		byWidth: map[int][]types.Detection{
			100: {face(20, 20, 40, 40)},
		},
		errs:   map[int]error{60: errors.New("backend timeout")},
		panics: map[int]bool{70: true},
	}
	obs := &recordObserver{}
	p := NewWithConfig(det, Config{Observer: obs})

	files := []types.SourceFile{
		pngFile(t, "panic.png", 70, 70),
		pngFile(t, "timeout.png", 60, 60),
		{Name: "unreadable.png", Open: func() (io.ReadCloser, error) { return nil, errors.New("permission denied") }},
		{Name: "empty.png"},
		pngFile(t, "ok.png", 100, 80),
	}

	res, err := p.Run(context.Background(), files, types.RunOptions{Mode: types.ModeAll})
	require.NoError(t, err)
	require.Len(t, res.Artifacts, 1)
	assert.Equal(t, "ok_face1.png", res.Artifacts[0].Name)
	assert.Equal(t, []string{"panic.png", "timeout.png", "unreadable.png", "empty.png"}, res.FailedImages)

	var fe *FileError
	require.ErrorAs(t, obs.errs[0], &fe)
	assert.Equal(t, StageDetect, fe.Stage)
	assert.Contains(t, fe.Error(), "panic: detector crashed")
}

func TestRunZeroSizeFaceFailsWholeFile(t *testing.T) {
	det := &fakeDetector{ready: true, byWidth: map[int][]types.Detection{
		100: {face(10, 10, 20, 20), face(50, 10, 0.2, 0.2)},
	}}
	p := New(det)

	res, err := p.Run(context.Background(), []types.SourceFile{pngFile(t, "group.png", 100, 80)}, types.RunOptions{Mode: types.ModeAll})
	require.NoError(t, err)
	assert.Empty(t, res.Artifacts)
	assert.Equal(t, []string{"group.png"}, res.FailedImages)
}

func TestRunDebugOverlay(t *testing.T) {
	det := &fakeDetector{ready: true, byWidth: map[int][]types.Detection{
		100: {face(20, 20, 40, 40)},
	}}
	p := New(det)

	res, err := p.Run(context.Background(), []types.SourceFile{pngFile(t, "a.png", 100, 80)},
		types.RunOptions{Mode: types.ModeMain, DebugOverlay: true})
	require.NoError(t, err)
	require.Len(t, res.Artifacts, 1)
	require.Len(t, res.Overlays, 1)
	assert.Equal(t, "a_debug.png", res.Overlays[0].Name)

	img := decodePNG(t, res.Overlays[0].Data)
	assert.Equal(t, image.Rect(0, 0, 100, 80), img.Bounds())
}

func TestLogObserver(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	p := NewWithConfig(&fakeDetector{ready: true}, Config{Observer: NewLogObserver(logger)})

	_, err := p.Run(context.Background(), []types.SourceFile{pngFile(t, "b.png", 10, 10)}, types.RunOptions{Mode: types.ModeMain})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"message":"batch started"`)
	assert.Contains(t, out, `"file":"b.png"`)
	assert.Contains(t, out, `"failed":1`)
}
