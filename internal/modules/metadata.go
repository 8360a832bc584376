package modules

import (
	"context"

	"git.home.luguber.info/inful/docflow/internal/document"
	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
	"git.home.luguber.info/inful/docflow/internal/meta"
	"git.home.luguber.info/inful/docflow/internal/module"
)

type setMetadata struct {
	items meta.Items
}

// SetMetadata layers items on top of every input. Values may be meta.Value
// implementations, which resolve lazily against the receiving document.
func SetMetadata(items meta.Items) (module.Module, error) {
	for _, it := range items {
		if it.Key == "" {
			return nil, ferrors.ConfigError("set_metadata received an empty key").Build()
		}
	}
	return setMetadata{items: items}, nil
}

func (s setMetadata) Name() string { return "set_metadata" }

func (s setMetadata) Execute(_ context.Context, _ module.Context, inputs []*document.Document) ([]*document.Document, error) {
	out := make([]*document.Document, len(inputs))
	for i, in := range inputs {
		out[i] = in.Clone(s.items)
	}
	return out, nil
}
