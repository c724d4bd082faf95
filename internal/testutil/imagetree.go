// Package testutil builds synthetic trees of decodable raster images for
// exercising the duplicate-detection pipeline in tests.
//
// Trees hold PNG images with controllable pixel content and modification
// times: images sharing a pixel pattern are duplicates by construction,
// and ModTime controls which member of a group counts as the original.
package testutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// ImageSpec describes one picture file to create.
type ImageSpec struct {
	// RelPath is the file's path relative to the tree root. Subdirectories
	// are created automatically (mkdir -p semantics).
	RelPath string
	// Pattern selects the pixel fill: images sharing the same Pattern (and
	// Width/Height) decode to identical pixel buffers and are expected
	// duplicates of one another.
	Pattern byte
	// Width/Height in pixels; defaults to 120x120 when zero.
	Width, Height int
	// ModTime, if non-zero, is applied via os.Chtimes after creation,
	// the cross-platform stand-in for creation time.
	ModTime time.Time
}

// Tree describes a directory tree of picture files, and any non-image
// filler files to place alongside them (to exercise decode-failure skips).
type Tree struct {
	Images []ImageSpec
	// PlainFiles are non-image regular files created verbatim (content is
	// their own relative path, for simplicity) to test that the
	// Fingerprinter silently skips non-decodable candidates.
	PlainFiles []string
	// Dirs are extra directories (relative to root) to create with no
	// images of their own: hidden ones exercise Walker skips, empty ones
	// exercise work-item pruning.
	Dirs []string
}

// Build materializes a Tree under a fresh temporary directory and returns
// its root.
func Build(t testing.TB, tree Tree) string {
	t.Helper()
	root := t.TempDir()
	if err := Sow(root, tree); err != nil {
		t.Fatalf("sow tree: %v", err)
	}
	return root
}

// Sow creates the files and directories described by tree under root.
func Sow(root string, tree Tree) error {
	for _, spec := range tree.Images {
		if err := sowImage(root, spec); err != nil {
			return fmt.Errorf("sow image %s: %w", spec.RelPath, err)
		}
	}
	for _, rel := range tree.PlainFiles {
		full := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(full, []byte(rel), 0o644); err != nil {
			return err
		}
	}
	for _, rel := range tree.Dirs {
		if err := os.MkdirAll(filepath.Join(root, rel), 0o755); err != nil {
			return err
		}
	}
	return nil
}

func sowImage(root string, spec ImageSpec) error {
	full := filepath.Join(root, spec.RelPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}

	w, h := spec.Width, spec.Height
	if w == 0 {
		w = 120
	}
	if h == 0 {
		h = 120
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fill := color.RGBA{R: spec.Pattern, G: spec.Pattern / 2, B: 255 - spec.Pattern, A: 255}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, fill)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}
	if err := os.WriteFile(full, buf.Bytes(), 0o644); err != nil {
		return err
	}

	if !spec.ModTime.IsZero() {
		if err := os.Chtimes(full, spec.ModTime, spec.ModTime); err != nil {
			return err
		}
	}
	return nil
}
