package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"git.home.luguber.info/inful/docflow/internal/pipeline"
)

// PlanCmd implements the 'plan' command.
type PlanCmd struct {
	Format string `short:"f" help:"Output format: text, mermaid, dot" default:"text" enum:"text,mermaid,dot"`
	Output string `short:"o" help:"Output file path (optional, prints to stdout if not specified)"`
}

// Run prints the dependency plan without executing anything.
func (cmd *PlanCmd) Run(g *Global, root *CLI) error {
	s, err := openStack(context.Background(), root)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	plan, err := s.engine.Plan()
	if err != nil {
		return err
	}
	output, err := plan.Visualize(s.engine.Collection(), pipeline.VisualizationFormat(cmd.Format))
	if err != nil {
		return fmt.Errorf("failed to visualize plan: %w", err)
	}

	if cmd.Output != "" {
		if err := os.WriteFile(cmd.Output, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		slog.Info("Plan visualization written", "file", cmd.Output, "format", cmd.Format)
		return nil
	}
	_, err = fmt.Fprint(g.stdout(), output)
	return err
}
