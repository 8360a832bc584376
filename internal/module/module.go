// Package module defines the contract between the engine and transformation steps.
//
// A Module receives the current document batch and returns a new batch. It may fan
// documents out, synthesize documents from nothing, or reduce the batch to a single
// aggregate. Documents are immutable, so a module derives new documents with
// Clone/CloneContent/CloneWith instead of modifying its inputs.
package module

import (
	"context"
	"fmt"
	"strings"

	"git.home.luguber.info/inful/docflow/internal/document"
)

// Module transforms a batch of documents. Returning an error aborts the current
// phase for the whole batch and fails the owning pipeline.
type Module interface {
	Execute(ctx context.Context, mc Context, inputs []*document.Document) ([]*document.Document, error)
}

// Namer is implemented by modules that report a stable name for logs and metrics.
type Namer interface {
	Name() string
}

// NameOf returns the module's reported name, falling back to its type name.
func NameOf(m Module) string {
	if n, ok := m.(Namer); ok {
		if name := n.Name(); name != "" {
			return name
		}
	}
	name := strings.TrimPrefix(fmt.Sprintf("%T", m), "*")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// Func adapts a function to Module.
type Func func(ctx context.Context, mc Context, inputs []*document.Document) ([]*document.Document, error)

// Execute implements Module.
func (f Func) Execute(ctx context.Context, mc Context, inputs []*document.Document) ([]*document.Document, error) {
	return f(ctx, mc, inputs)
}

type namedFunc struct {
	name string
	fn   Func
}

func (n namedFunc) Name() string { return n.name }

func (n namedFunc) Execute(ctx context.Context, mc Context, inputs []*document.Document) ([]*document.Document, error) {
	return n.fn(ctx, mc, inputs)
}

// Named wraps fn in a Module that reports name.
func Named(name string, fn Func) Module {
	return namedFunc{name: name, fn: fn}
}
