// Package ingest resolves a user selection (loose files, a folder, or a zip
// archive) into an ordered list of named source files. The caller states which
// kind of selection it is; nothing is inferred from file names.
package ingest

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/menta2k/face-cropper/internal/utils"
	"github.com/menta2k/face-cropper/pkg/types"
)

// Mode is the kind of selection being resolved
type Mode string

const (
	ModeFiles   Mode = "files"
	ModeFolder  Mode = "folder"
	ModeArchive Mode = "archive"
)

var (
	// ErrUnknownMode is returned for a selection mode other than files, folder, or archive
	ErrUnknownMode = errors.New("unknown ingestion mode")
	// ErrEmptySelection is returned when a selection names no paths
	ErrEmptySelection = errors.New("empty selection")
	// ErrEntryTooLarge is returned when opening an archive entry above the size limit
	ErrEntryTooLarge = errors.New("archive entry too large")
)

// DefaultMaxEntryBytes caps a single decompressed archive entry or download
const DefaultMaxEntryBytes = 64 << 20

// Selection is what the user picked
type Selection struct {
	Mode  Mode
	Paths []string
}

// Batch is a resolved selection. Name is the folder or archive name used for
// the export bundle; it is empty for loose files.
type Batch struct {
	Name  string
	Files []types.SourceFile
}

// Resolver turns selections into batches
type Resolver struct {
	MaxEntryBytes int64
}

// NewResolver creates a resolver with default limits
func NewResolver() *Resolver {
	return &Resolver{MaxEntryBytes: DefaultMaxEntryBytes}
}

// Resolve is shorthand for NewResolver().Resolve(sel)
func Resolve(sel Selection) (Batch, error) {
	return NewResolver().Resolve(sel)
}

// Resolve expands sel into source files in a deterministic order
func (r *Resolver) Resolve(sel Selection) (Batch, error) {
	if len(sel.Paths) == 0 {
		return Batch{}, ErrEmptySelection
	}

	switch sel.Mode {
	case ModeFiles:
		return r.files(sel.Paths)
	case ModeFolder:
		if len(sel.Paths) != 1 {
			return Batch{}, fmt.Errorf("folder selection takes one path, got %d", len(sel.Paths))
		}
		return r.folder(sel.Paths[0])
	case ModeArchive:
		if len(sel.Paths) != 1 {
			return Batch{}, fmt.Errorf("archive selection takes one path, got %d", len(sel.Paths))
		}
		return r.archive(sel.Paths[0])
	default:
		return Batch{}, fmt.Errorf("%w: %q", ErrUnknownMode, sel.Mode)
	}
}

func (r *Resolver) files(paths []string) (Batch, error) {
	batch := Batch{Files: make([]types.SourceFile, 0, len(paths))}
	for _, p := range paths {
		if isRemote(p) {
			f, err := remoteFile(p, r.limit())
			if err != nil {
				return Batch{}, err
			}
			batch.Files = append(batch.Files, f)
			continue
		}
		batch.Files = append(batch.Files, diskFile(filepath.Base(p), p))
	}
	return batch, nil
}

func (r *Resolver) folder(dir string) (Batch, error) {
	if !utils.DirExists(dir) {
		return Batch{}, fmt.Errorf("folder not found: %s", dir)
	}

	paths, err := utils.ListImageFiles(dir)
	if err != nil {
		return Batch{}, fmt.Errorf("failed to list folder: %w", err)
	}

	batch := Batch{
		Name:  filepath.Base(filepath.Clean(dir)),
		Files: make([]types.SourceFile, 0, len(paths)),
	}
	for _, p := range paths {
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			rel = filepath.Base(p)
		}
		batch.Files = append(batch.Files, diskFile(filepath.ToSlash(rel), p))
	}
	return batch, nil
}

func (r *Resolver) archive(path string) (Batch, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return Batch{}, fmt.Errorf("failed to open archive: %w", err)
	}
	defer zr.Close()

	return Batch{Name: archiveName(path), Files: r.readEntries(&zr.Reader)}, nil
}

// ReadArchive resolves an in-memory zip, as received from an upload
func (r *Resolver) ReadArchive(name string, data []byte) (Batch, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Batch{}, fmt.Errorf("failed to open archive: %w", err)
	}

	return Batch{Name: archiveName(name), Files: r.readEntries(zr)}, nil
}

// archiveName is the file name of path without a .zip extension
func archiveName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		path = path[i+1:]
	}
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		path = path[:len(path)-len(".zip")]
	}
	return path
}

// readEntries loads every file entry into memory, in central directory order.
// An oversized or unreadable entry stays in the batch and fails when opened.
func (r *Resolver) readEntries(zr *zip.Reader) []types.SourceFile {
	limit := r.limit()

	files := make([]types.SourceFile, 0, len(zr.File))
	for _, f := range zr.File {
		if skipEntry(f) {
			continue
		}
		if f.UncompressedSize64 > uint64(limit) {
			files = append(files, failedFile(f.Name, fmt.Errorf("%w: %s exceeds %d bytes", ErrEntryTooLarge, f.Name, limit)))
			continue
		}

		data, err := readEntry(f, limit)
		if err != nil {
			files = append(files, failedFile(f.Name, fmt.Errorf("failed to read archive entry %s: %w", f.Name, err)))
			continue
		}
		files = append(files, memoryFile(f.Name, data))
	}
	return files
}

func (r *Resolver) limit() int64 {
	if r.MaxEntryBytes <= 0 {
		return DefaultMaxEntryBytes
	}
	return r.MaxEntryBytes
}

func skipEntry(f *zip.File) bool {
	if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
		return true
	}
	if strings.HasPrefix(f.Name, "__MACOSX/") {
		return true
	}
	return strings.HasPrefix(filepath.Base(f.Name), "._")
}

func readEntry(f *zip.File, limit int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrEntryTooLarge, limit)
	}
	return data, nil
}

func diskFile(name, path string) types.SourceFile {
	return types.SourceFile{
		Name: name,
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

func failedFile(name string, err error) types.SourceFile {
	return types.SourceFile{
		Name: name,
		Open: func() (io.ReadCloser, error) {
			return nil, err
		},
	}
}

func memoryFile(name string, data []byte) types.SourceFile {
	return types.SourceFile{
		Name: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}
