package modules

import (
	"context"
	"log/slog"
	"path"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/docflow/internal/document"
	"git.home.luguber.info/inful/docflow/internal/fsio"
	"git.home.luguber.info/inful/docflow/internal/logfields"
	"git.home.luguber.info/inful/docflow/internal/meta"
	"git.home.luguber.info/inful/docflow/internal/module"
)

// Metadata keys set by the file modules.
const (
	KeyTitle    = "title"
	KeyFileName = "file_name"
	KeyLocation = "location"
)

type readFiles struct {
	src      fsio.Source
	patterns []string
}

// ReadFiles is a source module: it ignores its inputs and emits one document per
// file matched by patterns, in path order. Content is loaded on first access.
func ReadFiles(src fsio.Source, patterns ...string) module.Module {
	return readFiles{src: src, patterns: patterns}
}

func (r readFiles) Name() string { return "read_files" }

func (r readFiles) Execute(ctx context.Context, mc module.Context, _ []*document.Document) ([]*document.Document, error) {
	files, err := r.src.Match(ctx, r.patterns...)
	if err != nil {
		return nil, err
	}
	mc.Logger().DebugContext(ctx, "Matched input files",
		slog.Any("patterns", r.patterns),
		logfields.Documents(len(files)))

	out := make([]*document.Document, len(files))
	for i, name := range files {
		src := r.src
		content := document.Deferred(func(ctx context.Context) ([]byte, error) {
			return src.ReadFile(ctx, name)
		})
		out[i] = mc.GetDocument(content, meta.Items{
			{Key: document.KeySource, Value: name},
			{Key: document.KeyDestination, Value: name},
			{Key: KeyFileName, Value: path.Base(name)},
			{Key: KeyTitle, Value: formatTitle(name)},
		})
	}
	return out, nil
}

// formatTitle derives a display title from a file name: "getting-started.md"
// becomes "Getting Started".
func formatTitle(name string) string {
	base := strings.TrimSuffix(path.Base(name), path.Ext(name))
	base = strings.NewReplacer("-", " ", "_", " ").Replace(base)
	// Casers are stateful, so each call gets its own.
	return cases.Title(language.English).String(strings.Join(strings.Fields(base), " "))
}

type writeFiles struct {
	w         fsio.Writer
	extension string
}

// WriteFiles writes every document's content to its destination (falling back
// to its source). A non-empty extension replaces the destination's extension.
// Outputs carry the final destination and the written location.
func WriteFiles(w fsio.Writer, extension string) module.Module {
	if extension != "" && !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}
	return writeFiles{w: w, extension: extension}
}

func (wf writeFiles) Name() string { return "write_files" }

func (wf writeFiles) Execute(ctx context.Context, mc module.Context, inputs []*document.Document) ([]*document.Document, error) {
	return module.ParallelMap(ctx, mc.Concurrency(), inputs, func(ctx context.Context, doc *document.Document) (*document.Document, error) {
		dest := doc.Destination()
		if dest == "" {
			dest = doc.Source()
		}
		if dest == "" {
			mc.Logger().WarnContext(ctx, "Skipping document without destination", slog.String("document", doc.ID()))
			return doc, nil
		}
		if wf.extension != "" {
			dest = strings.TrimSuffix(dest, path.Ext(dest)) + wf.extension
		}

		data, err := doc.Content(ctx)
		if err != nil {
			return nil, err
		}
		if err := wf.w.WriteFile(ctx, dest, data); err != nil {
			return nil, err
		}
		mc.Logger().DebugContext(ctx, "Wrote output", logfields.Path(wf.w.Location(dest)))

		return doc.Clone(meta.Items{
			{Key: document.KeyDestination, Value: dest},
			{Key: KeyLocation, Value: wf.w.Location(dest)},
		}), nil
	})
}

// Files binds a content source and an output writer to the builder's
// WithReadFiles and WithWriteFiles steps.
type Files struct {
	Source fsio.Source
	Writer fsio.Writer
}

// ReadFiles implements pipeline.FileModules.
func (f Files) ReadFiles(patterns ...string) module.Module { return ReadFiles(f.Source, patterns...) }

// WriteFiles implements pipeline.FileModules.
func (f Files) WriteFiles(extension string) module.Module { return WriteFiles(f.Writer, extension) }
