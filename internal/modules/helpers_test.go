package modules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docflow/internal/document"
	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
	"git.home.luguber.info/inful/docflow/internal/meta"
	"git.home.luguber.info/inful/docflow/internal/module"
)

type fakeOutputs map[string][]*document.Document

func (f fakeOutputs) FromPipelines(names ...string) ([]*document.Document, error) {
	var out []*document.Document
	for _, n := range names {
		docs, ok := f[n]
		if !ok {
			return nil, ferrors.ConfigError("unknown pipeline " + n).Build()
		}
		out = append(out, docs...)
	}
	return out, nil
}

func docs(contents ...string) []*document.Document {
	out := make([]*document.Document, len(contents))
	for i, c := range contents {
		out[i] = document.New(document.FromString(c), meta.Set("index", i))
	}
	return out
}

func execute(t *testing.T, m module.Module, outputs module.Outputs, inputs []*document.Document) ([]*document.Document, error) {
	t.Helper()
	mc := module.NewContext(module.Config{Pipeline: "test", Phase: "process", Outputs: outputs}, inputs)
	return module.RunChain(context.Background(), mc, []module.Module{m}, inputs)
}

func mustExecute(t *testing.T, m module.Module, inputs []*document.Document) []*document.Document {
	t.Helper()
	out, err := execute(t, m, nil, inputs)
	require.NoError(t, err)
	return out
}

func contentsOf(t *testing.T, in []*document.Document) []string {
	t.Helper()
	out := make([]string, len(in))
	for i, d := range in {
		s, err := d.ContentString(context.Background())
		require.NoError(t, err)
		out[i] = s
	}
	return out
}

// emit is a source module producing one document per content string.
func emit(contents ...string) module.Module {
	return module.Named("emit", func(_ context.Context, mc module.Context, _ []*document.Document) ([]*document.Document, error) {
		out := make([]*document.Document, len(contents))
		for i, c := range contents {
			out[i] = mc.GetDocument(document.FromString(c), nil)
		}
		return out, nil
	})
}
