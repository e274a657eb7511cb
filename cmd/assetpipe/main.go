// Package main is the assetpipe command line.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/assetpipe/cmd/assetpipe/commands"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var cli commands.CLI
	g := &commands.Global{Stdout: stdout}
	parser, err := kong.New(&cli,
		kong.Name("assetpipe"),
		kong.Description("Bundles script, stylesheet and asset modules into chunked, shell-ready output."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Writers(stdout, stderr),
		kong.Bind(g, &cli),
	)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 10
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 2
	}
	if err := kctx.Run(); err != nil {
		adapter := ferrors.NewCLIErrorAdapter(cli.Verbose, g.Logger)
		if g.Logger != nil {
			g.Logger.Error("Command failed", "command", kctx.Command(), "error", err)
		}
		_, _ = fmt.Fprintln(stderr, adapter.FormatError(err))
		return adapter.ExitCodeFor(err)
	}
	return 0
}
