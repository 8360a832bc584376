package commands

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docflow/internal/config"
	"git.home.luguber.info/inful/docflow/internal/engine"
	"git.home.luguber.info/inful/docflow/internal/events"
	"git.home.luguber.info/inful/docflow/internal/eventstore"
	"git.home.luguber.info/inful/docflow/internal/fsio"
	"git.home.luguber.info/inful/docflow/internal/incremental"
	"git.home.luguber.info/inful/docflow/internal/metrics"
	"git.home.luguber.info/inful/docflow/internal/modules"
	"git.home.luguber.info/inful/docflow/internal/storage"
)

// stack is everything a command needs to run pipelines, assembled from the
// configuration file.
type stack struct {
	cfg    *config.Config
	logger *slog.Logger
	engine *engine.Engine

	detector *incremental.Detector // nil when the cache is disabled
	registry *prom.Registry        // nil when metrics are disabled
	dlq      *events.DeadLetterQueue

	closers []func() error
}

func openStack(ctx context.Context, root *CLI) (*stack, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, err
	}
	s := &stack{cfg: cfg, logger: configureLogging(cfg.Logging, root.Verbose)}
	if err := s.assemble(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *stack) assemble(ctx context.Context) error {
	cfg := s.cfg
	src := fsio.NewLocal(cfg.Input.Directory)

	writer, err := s.writer(ctx)
	if err != nil {
		return err
	}
	col, err := cfg.BuildPipelines(modules.NewRegistry(modules.Env{Source: src, Writer: writer}))
	if err != nil {
		return err
	}

	opts := []engine.Option{
		engine.WithLogger(s.logger),
		engine.WithSettings(cfg.Settings()),
		engine.WithMaxParallel(cfg.Engine.MaxParallel),
		engine.WithConcurrency(cfg.Engine.Concurrency),
		engine.WithMaxLazyDepth(cfg.Engine.MaxLazyDepth),
	}

	if cfg.Metrics.Enabled {
		s.registry = prom.NewRegistry()
		opts = append(opts, engine.WithRecorder(metrics.NewPrometheusRecorder(s.registry)))
	}

	bus, err := s.bus()
	if err != nil {
		return err
	}
	opts = append(opts, engine.WithEventBus(bus))

	if !cfg.Cache.Disabled {
		var store storage.ObjectStore
		if cfg.Cache.Directory != "" {
			fsStore, err := storage.NewFSStore(cfg.Cache.Directory)
			if err != nil {
				return err
			}
			store = fsStore
		} else {
			store = storage.NewMemoryStore()
		}
		s.closers = append(s.closers, store.Close)
		s.detector = incremental.NewDetector(store, src,
			incremental.WithSalt(cfg.Cache.Salt),
			incremental.WithConcurrency(cfg.Engine.Concurrency),
			incremental.WithLogger(s.logger))
		opts = append(opts, engine.WithChangeDetector(s.detector))
	}

	s.engine = engine.New(col, opts...)
	return nil
}

func (s *stack) writer(ctx context.Context) (fsio.Writer, error) {
	mc := s.cfg.Output.MinIO
	if mc == nil {
		return fsio.NewLocalWriter(s.cfg.Output.Directory), nil
	}
	w, err := fsio.NewMinioWriter(*mc)
	if err != nil {
		return nil, err
	}
	if err := w.EnsureBucket(ctx, mc.Region); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *stack) bus() (*events.Bus, error) {
	ec := s.cfg.Events

	bus := events.NewBus()
	if ec.SQLite != "" {
		store, err := eventstore.NewSQLiteStore(ec.SQLite)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, store.Close)
		bus = events.NewBusWithEventStore(store)
	}

	if ec.NATS.URL != "" {
		pub, err := events.NewNATSPublisher(events.NATSConfig{
			URL:       ec.NATS.URL,
			Subject:   ec.NATS.Subject,
			JetStream: ec.NATS.JetStream,
			Timeout:   ec.NATS.Timeout,
		})
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() error { pub.Close(); return nil })
		s.dlq = events.NewDeadLetterQueue()
		bus.Subscribe(events.All, events.WithRetry(pub.Handler(), ec.NATS.Retry.Policy(), events.IsRetryable, s.dlq))
	}
	return bus, nil
}

// Close releases stores and connections in reverse order of creation.
func (s *stack) Close() error {
	if s.dlq != nil {
		if n := s.dlq.Count(); n > 0 {
			s.logger.Warn("Events could not be forwarded to NATS", slog.Int("count", n))
		}
	}
	var errs []error
	for _, c := range slices.Backward(s.closers) {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
