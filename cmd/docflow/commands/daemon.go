package commands

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/docflow/internal/daemon"
	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
	"git.home.luguber.info/inful/docflow/internal/metrics"
)

const shutdownTimeout = 30 * time.Second

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct{}

func (d *DaemonCmd) Run(_ *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	s, err := openStack(ctx, root)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	return runDaemon(ctx, s)
}

// runDaemon schedules runs until ctx is canceled. With metrics enabled the
// registry and the health endpoint are served alongside.
func runDaemon(ctx context.Context, s *stack) error {
	opts := []daemon.Option{daemon.WithLogger(s.logger)}
	if s.detector != nil {
		opts = append(opts, daemon.WithPruner(s.detector))
	}
	d := daemon.New(daemon.Config{
		Interval: s.cfg.Schedule.Interval,
		Cron:     s.cfg.Schedule.Cron,
		Prune:    s.cfg.Schedule.Prune,
	}, s.engine, opts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.Run(gctx) })

	if s.registry != nil {
		srv := &http.Server{
			Addr:              s.cfg.Metrics.Listen,
			Handler:           newMux(s, d),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			s.logger.Info("Serving metrics and health", slog.String("listen", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return ferrors.NetworkError("metrics server failed").
					WithCause(err).
					WithContext("listen", srv.Addr).
					Build()
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stopCancel()
			return srv.Shutdown(stopCtx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("Daemon stopped successfully")
	return nil
}

func newMux(s *stack, d *daemon.Daemon) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(s.cfg.Metrics.Path, metrics.HTTPHandler(s.registry))
	mux.Handle("/healthz", d.HealthHandler())
	return mux
}
