package module

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/docflow/internal/document"
	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
	"git.home.luguber.info/inful/docflow/internal/logfields"
	"git.home.luguber.info/inful/docflow/internal/observability"
)

// RunChain executes modules in order, feeding each module the previous module's output.
// The first failure stops the chain. Module failures are returned as module category
// errors naming the pipeline, phase and module; cancellation is returned unchanged.
func RunChain(ctx context.Context, mc Context, modules []Module, inputs []*document.Document) ([]*document.Document, error) {
	docs := inputs
	for _, m := range modules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := NameOf(m)
		mctx := mc.ForModule(name, docs)
		start := time.Now()
		out, err := m.Execute(observability.WithModule(ctx, name), mctx, docs)
		elapsed := time.Since(start)
		mc.Recorder().ObserveModuleDuration(name, elapsed, err == nil)
		if err != nil {
			return nil, wrapModuleError(err, mc, name)
		}
		mctx.Logger().Debug("Module completed",
			logfields.Documents(len(out)),
			logfields.DurationMS(float64(elapsed.Microseconds())/1000))
		docs = out
	}
	return docs, nil
}

func wrapModuleError(err error, mc Context, name string) error {
	if IsCancellation(err) || ferrors.HasCategory(err, ferrors.CategoryModule) {
		return err
	}
	return ferrors.WrapError(err, ferrors.CategoryModule, "module execution failed").
		WithContext("pipeline", mc.Pipeline()).
		WithContext("phase", mc.Phase()).
		WithContext("module", name).
		Build()
}

// IsCancellation reports whether err stems from context cancellation or a deadline.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ParallelMap applies fn to every item with at most limit concurrent calls and returns
// the results in input order. The first error cancels the remaining work.
func ParallelMap[T, R any](ctx context.Context, limit int, items []T, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results, nil
	}
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := fn(gctx, item)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// DocumentFunc transforms one input document into zero or more outputs.
type DocumentFunc func(ctx context.Context, mc Context, doc *document.Document) ([]*document.Document, error)

type perDocument struct {
	name string
	fn   DocumentFunc
}

// PerDocument builds a module that runs fn for each input independently. Inputs are
// processed in parallel up to the context's concurrency and outputs keep input order.
func PerDocument(name string, fn DocumentFunc) Module {
	return perDocument{name: name, fn: fn}
}

func (p perDocument) Name() string { return p.name }

func (p perDocument) Execute(ctx context.Context, mc Context, inputs []*document.Document) ([]*document.Document, error) {
	batches, err := ParallelMap(ctx, mc.Concurrency(), inputs, func(ctx context.Context, doc *document.Document) ([]*document.Document, error) {
		return p.fn(ctx, mc, doc)
	})
	if err != nil {
		return nil, err
	}
	n := 0
	for _, b := range batches {
		n += len(b)
	}
	out := make([]*document.Document, 0, n)
	for _, b := range batches {
		out = append(out, b...)
	}
	return out, nil
}

// Map is PerDocument for one-to-one transforms. A nil result drops the document.
func Map(name string, fn func(ctx context.Context, mc Context, doc *document.Document) (*document.Document, error)) Module {
	return PerDocument(name, func(ctx context.Context, mc Context, doc *document.Document) ([]*document.Document, error) {
		out, err := fn(ctx, mc, doc)
		if err != nil || out == nil {
			return nil, err
		}
		return []*document.Document{out}, nil
	})
}
