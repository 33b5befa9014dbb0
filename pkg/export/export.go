package export

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/menta2k/face-cropper/internal/utils"
	"github.com/menta2k/face-cropper/pkg/types"
)

// DefaultBundleName is used when the batch has no folder or archive name
const DefaultBundleName = "cropped_faces.zip"

// DefaultParallelism bounds concurrent file writes in WriteDir
const DefaultParallelism = 4

// BundleName returns the archive name for a batch
func BundleName(batchName string) string {
	batchName = strings.TrimSpace(batchName)
	if batchName == "" {
		return DefaultBundleName
	}
	return batchName + "_cropped.zip"
}

// Notifications returns one user-facing message per failed file
func Notifications(failed []string) []string {
	out := make([]string, 0, len(failed))
	for i, name := range failed {
		out = append(out, fmt.Sprintf("Failed to detect face in: %s (%d/%d)", name, i+1, len(failed)))
	}
	return out
}

// WriteZip stores artifacts in a zip archive, in order. Path separators in
// names are replaced so the archive has no directories.
func WriteZip(w io.Writer, artifacts []types.CroppedArtifact) error {
	zw := zip.NewWriter(w)
	modified := time.Now()

	for _, a := range artifacts {
		// PNG and WebP are already compressed
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     entryName(a.Name),
			Method:   zip.Store,
			Modified: modified,
		})
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", a.Name, err)
		}
		if _, err := fw.Write(a.Data); err != nil {
			return fmt.Errorf("failed to write %s: %w", a.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	return nil
}

// SaveZip writes the archive to path
func SaveZip(path string, artifacts []types.CroppedArtifact) error {
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	if err := WriteZip(f, artifacts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteDir writes each artifact to dir, at most parallelism files at a time
func WriteDir(ctx context.Context, dir string, artifacts []types.CroppedArtifact, parallelism int) error {
	if err := utils.EnsureDir(dir); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for _, a := range artifacts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(dir, entryName(a.Name))
			if err := os.WriteFile(path, a.Data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Summary is the machine-readable report of a run
type Summary struct {
	Bundle       string                  `json:"bundle,omitempty"`
	Artifacts    []types.CroppedArtifact `json:"artifacts"`
	FailedImages []string                `json:"failed_images"`
	Messages     []string                `json:"messages,omitempty"`
}

// WriteSummary writes result as indented JSON
func WriteSummary(w io.Writer, bundle string, result types.BatchResult) error {
	summary := Summary{
		Bundle:       bundle,
		Artifacts:    result.Artifacts,
		FailedImages: result.FailedImages,
		Messages:     Notifications(result.FailedImages),
	}
	if summary.Artifacts == nil {
		summary.Artifacts = []types.CroppedArtifact{}
	}
	if summary.FailedImages == nil {
		summary.FailedImages = []string{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	return nil
}

func entryName(name string) string {
	name = utils.SanitizeFilename(name)
	if name == "" {
		name = "image"
	}
	return name
}
