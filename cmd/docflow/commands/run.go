package commands

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/docflow/internal/engine"
)

// RunCmd implements the 'run' command.
type RunCmd struct {
	Quiet bool `short:"q" help:"Do not print the per-pipeline summary"`
}

// Run executes every pipeline once. Interrupting the process cancels the run.
func (cmd *RunCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	s, err := openStack(ctx, root)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	res, err := s.engine.Run(ctx)
	if res != nil && !cmd.Quiet {
		printResult(g.stdout(), res)
	}
	return err
}

func printResult(w io.Writer, res *engine.Result) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PIPELINE\tSTATUS\tDOCUMENTS\tDURATION\tDETAIL")
	for _, name := range res.Order {
		pr, ok := res.Get(name)
		if !ok {
			continue
		}
		detail := ""
		switch {
		case pr.Cause != "":
			detail = "after " + pr.Cause
		case pr.Err != nil:
			detail = pr.Err.Error()
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			name, pr.Status, len(pr.Documents), pr.Duration.Round(time.Millisecond), detail)
	}
	_ = tw.Flush()
	_, _ = fmt.Fprintf(w, "run %s: %s in %s\n", res.RunID, res.Outcome(), res.Duration.Round(time.Millisecond))
}
