package facecropper

import (
	"archive/zip"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/face-cropper/pkg/ingest"
	"github.com/menta2k/face-cropper/pkg/pipeline"
	"github.com/menta2k/face-cropper/pkg/types"
)

// centerDetector reports one face in the middle third of every image
type centerDetector struct {
	loaded bool
}

func (d *centerDetector) Ready() bool { return d.loaded }

func (d *centerDetector) Load(context.Context) error {
	d.loaded = true
	return nil
}

func (d *centerDetector) Detect(_ context.Context, img image.Image) ([]types.Detection, error) {
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	return []types.Detection{{
		Box:   types.BoundingBox{X: w / 3, Y: h / 3, Width: w / 3, Height: h / 3},
		Score: 1,
		Label: "face",
	}}, nil
}

// createTestImage creates a simple test image with a bright center
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/3 && x < 2*width/3 && y > height/3 && y < 2*height/3 {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				img.Set(x, y, color.RGBA{64, 64, 64, 255})
			}
		}
	}
	return img
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func TestNew(t *testing.T) {
	fc := New(&centerDetector{})
	require.NotNil(t, fc)
	assert.False(t, fc.Ready())

	require.NoError(t, fc.Load(context.Background()))
	assert.True(t, fc.Ready())

	assert.False(t, New(nil).Ready())
}

func TestProcessRequiresLoad(t *testing.T) {
	fc := New(&centerDetector{})
	_, err := fc.Process(context.Background(), []types.SourceFile{{Name: "a.png"}}, types.RunOptions{Mode: types.ModeMain})
	assert.ErrorIs(t, err, pipeline.ErrDetectorNotReady)
}

func TestProcessSelectionAndExport(t *testing.T) {
	root := filepath.Join(t.TempDir(), "team")
	require.NoError(t, os.MkdirAll(root, 0755))
	writePNG(t, filepath.Join(root, "alice.png"), createTestImage(90, 120))
	writePNG(t, filepath.Join(root, "bob.png"), createTestImage(60, 60))
	require.NoError(t, os.WriteFile(filepath.Join(root, "broken.jpg"), []byte("nope"), 0644))

	fc := New(&centerDetector{})
	require.NoError(t, fc.Load(context.Background()))

	batch, result, err := fc.ProcessSelection(context.Background(),
		ingest.Selection{Mode: ingest.ModeFolder, Paths: []string{root}},
		types.RunOptions{Mode: types.ModeMain, WidthInch: 1, HeightInch: 1})
	require.NoError(t, err)

	assert.Equal(t, "team", batch.Name)
	require.Len(t, result.Artifacts, 2)
	assert.Equal(t, "alice.png", result.Artifacts[0].Name)
	assert.Equal(t, "bob.png", result.Artifacts[1].Name)
	assert.Equal(t, types.OutputSpec{Width: 96, Height: 96}, result.Artifacts[0].Size)
	assert.Equal(t, []string{"broken.jpg"}, result.FailedImages)
	assert.Equal(t, result, fc.Result())

	out := t.TempDir()
	path, err := fc.Export(context.Background(), batch.Name, result, out, true)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "team_cropped.zip"), path)

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()
	require.Len(t, zr.File, 2)
	assert.Equal(t, "alice.png", zr.File[0].Name)

	dir := filepath.Join(out, "loose")
	_, err = fc.Export(context.Background(), "", result, dir, false)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "bob.png"))
	assert.NoError(t, err)
}

func TestProcessSelectionBadMode(t *testing.T) {
	fc := New(&centerDetector{loaded: true})
	_, _, err := fc.ProcessSelection(context.Background(), ingest.Selection{Mode: "zipfile", Paths: []string{"a.zip"}}, types.RunOptions{Mode: types.ModeMain})
	assert.ErrorIs(t, err, ingest.ErrUnknownMode)
}

func TestGetVersion(t *testing.T) {
	assert.Equal(t, Version, GetVersion())
}
