package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/docflow/internal/config"
	"git.home.luguber.info/inful/docflow/internal/eventstore"
	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int    `short:"n" help:"Number of runs to show (default: events.history_size)"`
	RunID string `name:"run" help:"Show the pipelines of a single run"`
	JSON  bool   `help:"Print JSON instead of a table"`
}

// Run rebuilds the run history from the SQLite event store.
func (cmd *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	configureLogging(cfg.Logging, root.Verbose)
	if cfg.Events.SQLite == "" {
		return ferrors.ConfigError("events.sqlite is not configured; no run history is recorded").Build()
	}

	store, err := eventstore.NewSQLiteStore(cfg.Events.SQLite)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	size := cfg.Events.HistorySize
	if cmd.Limit > 0 {
		size = cmd.Limit
	}
	proj := eventstore.NewRunHistoryProjection(store, size)
	if err := proj.Rebuild(context.Background()); err != nil {
		return err
	}

	out := g.stdout()
	if cmd.RunID != "" {
		run, ok := proj.GetRun(cmd.RunID)
		if !ok {
			return ferrors.NotFoundError("run not found").WithContext("run_id", cmd.RunID).Build()
		}
		if cmd.JSON {
			return writeJSON(out, run)
		}
		printRun(out, run)
		return nil
	}

	runs := proj.GetHistory()
	if active := proj.GetActiveRun(); active != nil {
		runs = append([]*eventstore.RunSummary{active}, runs...)
	}
	if cmd.JSON {
		return writeJSON(out, runs)
	}
	printHistory(out, runs)
	return nil
}

func printHistory(w io.Writer, runs []*eventstore.RunSummary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RUN\tSTARTED\tSTATUS\tPIPELINES\tDURATION")
	for _, r := range runs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			r.RunID, r.StartedAt.Local().Format(time.DateTime), r.Status, len(r.Pipelines), r.Duration.Round(time.Millisecond))
	}
	_ = tw.Flush()
}

func printRun(w io.Writer, r *eventstore.RunSummary) {
	_, _ = fmt.Fprintf(w, "run %s: %s\n", r.RunID, r.Status)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PIPELINE\tSTATUS\tDOCUMENTS\tDURATION\tDETAIL")
	for _, name := range r.Order {
		p, ok := r.Pipelines[name]
		if !ok {
			continue
		}
		detail := p.Error
		if p.Cause != "" {
			detail = "after " + p.Cause
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%dms\t%s\n", name, p.Status, p.Documents, p.DurationMS, detail)
	}
	_ = tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
