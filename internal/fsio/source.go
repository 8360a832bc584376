// Package fsio provides the file collaborators used by source and sink modules:
// a glob-matching content source and output writers for local disk and MinIO.
package fsio

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"slices"

	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
)

// Source lists and reads input files relative to a content root.
type Source interface {
	// Match returns the sorted, de-duplicated relative paths selected by patterns.
	Match(ctx context.Context, patterns ...string) ([]string, error)
	// ReadFile reads one file by relative path.
	ReadFile(ctx context.Context, name string) ([]byte, error)
}

// FS is a Source backed by an fs.FS.
type FS struct {
	fsys fs.FS
	root string
}

// NewFS wraps an fs.FS.
func NewFS(fsys fs.FS) *FS {
	return &FS{fsys: fsys}
}

// NewLocal returns a Source for a directory on local disk.
func NewLocal(root string) *FS {
	return &FS{fsys: os.DirFS(root), root: root}
}

// Root returns the local directory, or "" for non-local file systems.
func (s *FS) Root() string { return s.root }

// Match walks the file system and returns the files selected by patterns.
func (s *FS) Match(ctx context.Context, patterns ...string) ([]string, error) {
	m, err := NewMatcher(patterns...)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryValidation, "invalid read pattern").Build()
	}

	var out []string
	err = fs.WalkDir(s.fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		if m.Match(name) {
			out = append(out, name)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryIO, "failed to list input files").
			WithContext("root", s.root).
			Build()
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// ReadFile reads a file relative to the root.
func (s *FS) ReadFile(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := path.Clean(name)
	if !fs.ValidPath(clean) {
		return nil, ferrors.ValidationError("invalid input path").WithContext("path", name).Build()
	}
	data, err := fs.ReadFile(s.fsys, clean)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ferrors.WrapError(err, ferrors.CategoryNotFound, "input file not found").
				WithContext("path", name).
				Build()
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryIO, "failed to read input file").
			WithContext("path", name).
			Build()
	}
	return data, nil
}
