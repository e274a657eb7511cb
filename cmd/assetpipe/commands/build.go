package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/assetpipe/internal/build"
	"git.home.luguber.info/inful/assetpipe/internal/config"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Output  string `short:"o" help:"Override output.path" type:"path"`
	NoCache bool   `name:"no-cache" help:"Disable the transform cache for this build"`
	Hashing bool   `name:"hashing" help:"Insert content hashes into output filenames"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	b.apply(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc := build.NewBuildService(build.WithLogger(g.Logger))
	defer func() { _ = svc.Close() }()

	report, err := svc.Run(ctx, build.BuildRequest{Config: cfg, OutputDir: b.Output, Trigger: "cli"})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout(g), "Built %d artifacts, %d pages into %s in %s (%d cache hits)\n",
		len(report.Artifacts), len(report.Pages), report.OutputDir, report.Duration.Round(time.Millisecond), report.CacheHits)
	return nil
}

func (b *BuildCmd) apply(cfg *config.Config) {
	if b.NoCache {
		cfg.Cache.Enabled = false
	}
	if b.Hashing {
		cfg.Output.Hashing = true
	}
}
