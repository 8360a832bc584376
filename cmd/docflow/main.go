package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docflow/cmd/docflow/commands"
	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
	"git.home.luguber.info/inful/docflow/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("docflow"),
		kong.Description("Runs dependent content pipelines from a YAML configuration."),
		kong.Vars{"version": version.String()},
		kong.UsageOnError(),
	)

	err := parser.Run(&commands.Global{Logger: slog.Default()}, cli)
	if err != nil {
		os.Exit(ferrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).Report(err))
	}
}
