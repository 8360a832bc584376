package incremental

import (
	"context"
	"log/slog"
	"sync"

	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
	"git.home.luguber.info/inful/docflow/internal/fsio"
	"git.home.luguber.info/inful/docflow/internal/logfields"
	"git.home.luguber.info/inful/docflow/internal/module"
	"git.home.luguber.info/inful/docflow/internal/pipeline"
	"git.home.luguber.info/inful/docflow/internal/storage"
)

const refPrefix = "pipelines/"

// Detector tracks pipeline input signatures in an object store.
type Detector struct {
	store       storage.ObjectStore
	src         fsio.Source
	salt        string
	concurrency int
	logger      *slog.Logger

	mu      sync.Mutex
	pending map[string]*Signature
}

// Option configures a Detector.
type Option func(*Detector)

// WithSalt mixes an extra value, typically a settings hash, into every signature.
func WithSalt(salt string) Option {
	return func(d *Detector) { d.salt = salt }
}

// WithConcurrency bounds how many files are hashed at once.
func WithConcurrency(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDetector creates a detector reading inputs from src.
func NewDetector(store storage.ObjectStore, src fsio.Source, opts ...Option) *Detector {
	d := &Detector{
		store:       store,
		src:         src,
		concurrency: module.DefaultConcurrency,
		logger:      slog.Default(),
		pending:     make(map[string]*Signature),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Changed reports whether the pipeline's signature differs from the last committed one.
// Pipelines without read patterns have no observable inputs and always count as changed.
func (d *Detector) Changed(ctx context.Context, name string, p *pipeline.Pipeline) (bool, error) {
	if len(p.ReadPatterns()) == 0 {
		return true, nil
	}

	sig, err := ComputeSignature(ctx, d.src, name, p, d.salt, d.concurrency)
	if err != nil {
		return true, err
	}
	data, err := sig.Encode()
	if err != nil {
		return true, err
	}

	d.mu.Lock()
	d.pending[name] = sig
	d.mu.Unlock()

	prev, err := d.store.GetRef(ctx, refPrefix+name)
	if err != nil {
		return true, ferrors.WrapError(err, ferrors.CategoryStorage, "failed to read pipeline signature").
			WithContext("pipeline", name).
			Build()
	}
	if len(prev) == 1 && prev[0] == storage.HashData(data) {
		return false, nil
	}

	if d.logger.Enabled(ctx, slog.LevelDebug) {
		d.logger.DebugContext(ctx, "Pipeline inputs changed",
			logfields.Pipeline(name),
			slog.Any("changed", Diff(d.previous(ctx, prev), sig)))
	}
	return true, nil
}

// Discard drops the signature observed by Changed for name. The engine calls it
// whenever a pipeline is skipped, fails or is canceled, so a later Commit never
// records inputs from an earlier run.
func (d *Detector) Discard(name string) {
	d.mu.Lock()
	delete(d.pending, name)
	d.mu.Unlock()
}

// Commit records the signature observed by Changed during the same run, or a
// fresh one, as the pipeline's baseline.
func (d *Detector) Commit(ctx context.Context, name string, p *pipeline.Pipeline) error {
	if len(p.ReadPatterns()) == 0 {
		return nil
	}

	d.mu.Lock()
	sig, ok := d.pending[name]
	delete(d.pending, name)
	d.mu.Unlock()

	if !ok {
		var err error
		sig, err = ComputeSignature(ctx, d.src, name, p, d.salt, d.concurrency)
		if err != nil {
			return err
		}
	}
	data, err := sig.Encode()
	if err != nil {
		return err
	}

	hash, err := d.store.Put(ctx, &storage.Object{
		Type: storage.ObjectTypeSourceManifest,
		Data: data,
		Metadata: storage.Metadata{
			Custom: map[string]string{"pipeline": name},
		},
	})
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryStorage, "failed to store pipeline signature").
			WithContext("pipeline", name).
			Build()
	}
	if err := d.store.SetRef(ctx, refPrefix+name, []string{hash}); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryStorage, "failed to update pipeline signature ref").
			WithContext("pipeline", name).
			Build()
	}
	return nil
}

// Prune removes signatures no pipeline references any more.
func (d *Detector) Prune(ctx context.Context) (int, error) {
	removed, err := storage.GC(ctx, d.store)
	if err != nil {
		return removed, ferrors.WrapError(err, ferrors.CategoryStorage, "failed to prune signatures").Build()
	}
	return removed, nil
}

func (d *Detector) previous(ctx context.Context, hashes []string) *Signature {
	if len(hashes) == 0 {
		return nil
	}
	obj, err := d.store.Get(ctx, hashes[0])
	if err != nil {
		return nil
	}
	sig, err := DecodeSignature(obj.Data)
	if err != nil {
		return nil
	}
	return sig
}
