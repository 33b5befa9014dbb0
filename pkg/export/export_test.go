package export

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/face-cropper/pkg/types"
)

func artifacts() []types.CroppedArtifact {
	return []types.CroppedArtifact{
		{Name: "portrait_face1.png", Data: []byte("one"), Source: "portrait.jpg", Face: 1},
		{Name: "portrait_face2.png", Data: []byte("two"), Source: "portrait.jpg", Face: 2},
		{Name: "../escape.png", Data: []byte("three"), Source: "escape.jpg", Face: 1},
	}
}

func TestBundleName(t *testing.T) {
	assert.Equal(t, "holiday_cropped.zip", BundleName("holiday"))
	assert.Equal(t, "cropped_faces.zip", BundleName(""))
	assert.Equal(t, "cropped_faces.zip", BundleName("   "))
}

func TestNotifications(t *testing.T) {
	assert.Equal(t, []string{
		"Failed to detect face in: b.jpg (1/2)",
		"Failed to detect face in: c.png (2/2)",
	}, Notifications([]string{"b.jpg", "c.png"}))
	assert.Empty(t, Notifications(nil))
}

func TestWriteZip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteZip(&buf, artifacts()))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 3)

	assert.Equal(t, "portrait_face1.png", zr.File[0].Name)
	assert.Equal(t, "portrait_face2.png", zr.File[1].Name)
	assert.Equal(t, "_escape.png", zr.File[2].Name)

	rc, err := zr.File[1].Open()
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
}

func TestSaveZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", BundleName("team"))
	require.NoError(t, SaveZip(path, artifacts()[:1]))

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()
	assert.Len(t, zr.File, 1)
}

func TestWriteDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "crops")
	require.NoError(t, WriteDir(context.Background(), dir, artifacts(), 2))

	data, err := os.ReadFile(filepath.Join(dir, "portrait_face2.png"))
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	_, err = os.Stat(filepath.Join(dir, "_escape.png"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(filepath.Dir(dir), "escape.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteDirCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WriteDir(ctx, t.TempDir(), artifacts(), 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	result := types.BatchResult{
		Artifacts:    artifacts()[:1],
		FailedImages: []string{"b.jpg"},
	}
	require.NoError(t, WriteSummary(&buf, "team_cropped.zip", result))

	var got Summary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "team_cropped.zip", got.Bundle)
	require.Len(t, got.Artifacts, 1)
	assert.Equal(t, "portrait_face1.png", got.Artifacts[0].Name)
	assert.Nil(t, got.Artifacts[0].Data)
	assert.Equal(t, []string{"Failed to detect face in: b.jpg (1/1)"}, got.Messages)

	buf.Reset()
	require.NoError(t, WriteSummary(&buf, "", types.BatchResult{}))
	assert.Contains(t, buf.String(), `"failed_images": []`)
}
