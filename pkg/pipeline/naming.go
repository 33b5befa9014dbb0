package pipeline

import (
	"fmt"
	"strings"

	"github.com/menta2k/face-cropper/internal/utils"
	"github.com/menta2k/face-cropper/pkg/types"
)

// Namer hands out output names that are unique within one run
type Namer struct {
	ext  string
	used map[string]struct{}
}

// NewNamer creates a namer producing names with the given extension (no dot)
func NewNamer(ext string) *Namer {
	return &Namer{
		ext:  strings.TrimPrefix(ext, "."),
		used: make(map[string]struct{}),
	}
}

// Reserve returns stem plus extension, or stem_2, stem_3, ... if taken.
// Names are compared case-insensitively so the output is safe on any filesystem.
func (n *Namer) Reserve(stem string) string {
	name := n.join(stem)
	for i := 2; n.taken(name); i++ {
		name = n.join(fmt.Sprintf("%s_%d", stem, i))
	}
	n.used[strings.ToLower(name)] = struct{}{}
	return name
}

func (n *Namer) taken(name string) bool {
	_, ok := n.used[strings.ToLower(name)]
	return ok
}

func (n *Namer) join(stem string) string {
	if n.ext == "" {
		return stem
	}
	return stem + "." + n.ext
}

// ArtifactStem is the name of a crop before the extension: the source base
// name, plus _face{n} in all mode
func ArtifactStem(source string, mode types.Mode, face int) string {
	base := utils.SanitizeFilename(utils.BaseName(source))
	if base == "" {
		base = "image"
	}
	if mode == types.ModeAll {
		return fmt.Sprintf("%s_face%d", base, face)
	}
	return base
}

// OverlayStem is the name of a debug overlay before the extension
func OverlayStem(source string) string {
	return ArtifactStem(source, types.ModeMain, 0) + "_debug"
}
