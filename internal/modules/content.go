package modules

import (
	"context"
	"strings"

	"git.home.luguber.info/inful/docflow/internal/document"
	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
	"git.home.luguber.info/inful/docflow/internal/meta"
	"git.home.luguber.info/inful/docflow/internal/module"
)

// ContentToMetadata runs a child chain and stores the content of its outputs
// under a metadata key of every input.
type ContentToMetadata struct {
	key   string
	child Child
}

// AddContentToMetadata stores the content of the child outputs under key. With
// no modules the child chain is the identity, so the inputs' own content is used.
//
// Zero child outputs pass the inputs through unchanged. One output stores its
// content as a string. More outputs store a []any of strings in output order.
func AddContentToMetadata(key string, modules ...module.Module) (*ContentToMetadata, error) {
	return newContentToMetadata(key, ChildOf(modules...))
}

// AddPipelineContentToMetadata stores the content of other pipelines' outputs under key.
func AddPipelineContentToMetadata(key string, pipelines ...string) (*ContentToMetadata, error) {
	if len(pipelines) == 0 {
		return nil, ferrors.ConfigError("add_content_to_metadata needs at least one pipeline").
			WithContext("key", key).
			Build()
	}
	return newContentToMetadata(key, ChildOfPipelines(pipelines))
}

// AddChildContentToMetadata is the general form taking an explicit child.
func AddChildContentToMetadata(key string, child Child) (*ContentToMetadata, error) {
	return newContentToMetadata(key, child)
}

func newContentToMetadata(key string, child Child) (*ContentToMetadata, error) {
	if key == "" {
		return nil, ferrors.ConfigError("add_content_to_metadata requires a metadata key").Build()
	}
	for _, m := range child.Modules {
		if m == nil {
			return nil, ferrors.ConfigError("add_content_to_metadata received a nil module").
				WithContext("key", key).
				Build()
		}
	}
	return &ContentToMetadata{key: key, child: child}, nil
}

func (m *ContentToMetadata) Name() string { return "add_content_to_metadata" }

// Key returns the metadata key written by the module.
func (m *ContentToMetadata) Key() string { return m.key }

func (m *ContentToMetadata) Execute(ctx context.Context, mc module.Context, inputs []*document.Document) ([]*document.Document, error) {
	outputs, err := m.child.Run(ctx, mc)
	if err != nil {
		return nil, err
	}
	if len(outputs) == 0 {
		return inputs, nil
	}

	texts, err := contents(ctx, mc, outputs)
	if err != nil {
		return nil, err
	}

	var value any
	if len(texts) == 1 {
		value = texts[0]
	} else {
		seq := make([]any, len(texts))
		for i, t := range texts {
			seq[i] = t
		}
		value = seq
	}

	items := meta.Set(m.key, value)
	result := make([]*document.Document, len(inputs))
	for i, in := range inputs {
		result[i] = in.Clone(items)
	}
	return result, nil
}

// ContentFunc returns the text to append for one document. An empty result
// leaves the document unchanged.
type ContentFunc func(ctx context.Context, mc module.Context, doc *document.Document) (string, error)

// Append appends per-document text to the content of every input.
func Append(fn ContentFunc) module.Module {
	return module.Map("append", func(ctx context.Context, mc module.Context, doc *document.Document) (*document.Document, error) {
		text, err := fn(ctx, mc, doc)
		if err != nil || text == "" {
			return doc, err
		}
		return appendContent(ctx, doc, text)
	})
}

// AppendText appends a fixed string.
func AppendText(text string) module.Module {
	return Append(func(context.Context, module.Context, *document.Document) (string, error) {
		return text, nil
	})
}

type appendModules struct {
	child Child
}

// AppendModules runs modules once against an empty document and appends the
// content of each result to every input, producing one output per input and result.
func AppendModules(modules ...module.Module) module.Module {
	return appendModules{child: ChildOfEmpty(modules...)}
}

func (a appendModules) Name() string { return "append" }

func (a appendModules) Execute(ctx context.Context, mc module.Context, inputs []*document.Document) ([]*document.Document, error) {
	results, err := a.child.Run(ctx, mc)
	if err != nil {
		return nil, err
	}
	texts, err := contents(ctx, mc, results)
	if err != nil {
		return nil, err
	}

	out := make([]*document.Document, 0, len(inputs)*len(texts))
	for _, in := range inputs {
		for _, text := range texts {
			d, err := appendContent(ctx, in, text)
			if err != nil {
				return nil, err
			}
			out = append(out, d)
		}
	}
	return out, nil
}

func appendContent(ctx context.Context, doc *document.Document, text string) (*document.Document, error) {
	body, err := doc.ContentString(ctx)
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	b.Grow(len(body) + len(text))
	b.WriteString(body)
	b.WriteString(text)
	return doc.CloneContent(document.FromString(b.String())), nil
}

type fromPipelines struct {
	names []string
}

// FromPipelines replaces the inputs with the completed outputs of the named
// pipelines, in the order the names are given.
func FromPipelines(names ...string) (module.Module, error) {
	if len(names) == 0 {
		return nil, ferrors.ConfigError("from_pipelines needs at least one pipeline").Build()
	}
	for _, n := range names {
		if n == "" {
			return nil, ferrors.ConfigError("from_pipelines received an empty pipeline name").Build()
		}
	}
	return fromPipelines{names: names}, nil
}

func (f fromPipelines) Name() string { return "from_pipelines" }

func (f fromPipelines) Execute(_ context.Context, mc module.Context, _ []*document.Document) ([]*document.Document, error) {
	return mc.Outputs().FromPipelines(f.names...)
}
