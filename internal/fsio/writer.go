package fsio

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
)

// Writer persists output files addressed by slash-separated relative paths.
type Writer interface {
	WriteFile(ctx context.Context, name string, data []byte) error
	// Location describes where name ends up, for logs and metadata.
	Location(name string) string
}

// LocalWriter writes outputs below a directory on local disk.
type LocalWriter struct {
	root string
}

// NewLocalWriter returns a writer rooted at dir.
func NewLocalWriter(dir string) *LocalWriter {
	return &LocalWriter{root: dir}
}

// WriteFile creates parent directories as needed and writes data.
func (w *LocalWriter) WriteFile(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rel, err := cleanRelative(name)
	if err != nil {
		return err
	}
	target := filepath.Join(w.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryIO, "failed to create output directory").
			WithContext("path", target).
			Build()
	}
	// #nosec G306 - generated site output is meant to be world readable
	if err := os.WriteFile(target, data, 0644); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryIO, "failed to write output file").
			WithContext("path", target).
			Build()
	}
	return nil
}

// Location returns the on-disk path for name.
func (w *LocalWriter) Location(name string) string {
	return filepath.Join(w.root, filepath.FromSlash(path.Clean(name)))
}

// cleanRelative rejects absolute paths and paths escaping the output root.
func cleanRelative(name string) (string, error) {
	clean := path.Clean(strings.ReplaceAll(name, "\\", "/"))
	if clean == "." || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ferrors.ValidationError(fmt.Sprintf("output path %q escapes the output root", name)).
			WithContext("path", name).
			Build()
	}
	return clean, nil
}
