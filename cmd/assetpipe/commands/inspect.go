package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"git.home.luguber.info/inful/assetpipe/internal/build"
)

// InspectCmd implements the 'inspect' command.
type InspectCmd struct {
	Format string `short:"f" help:"Output format: text, json, dot" default:"text" enum:"text,json,dot"`
	Output string `short:"o" help:"Write to a file instead of stdout" type:"path"`
}

func (i *InspectCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	svc := build.NewBuildService(build.WithLogger(g.Logger))
	defer func() { _ = svc.Close() }()

	in, err := svc.Inspect(context.Background(), cfg)
	if err != nil {
		return err
	}

	w := stdout(g)
	if i.Output != "" {
		f, err := os.Create(i.Output)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	return i.write(in, w)
}

func (i *InspectCmd) write(in *build.Inspection, w io.Writer) error {
	switch i.Format {
	case "json":
		return in.WriteJSON(w)
	case "dot":
		return in.WriteDOT(w)
	default:
		return in.WriteText(w)
	}
}
