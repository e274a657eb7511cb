package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/assetpipe/internal/build"
	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/devsession"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Host         string `help:"Override dev.host"`
	Port         int    `short:"p" help:"Override dev.port"`
	NoLiveReload bool   `name:"no-live-reload" help:"Disable live reload and script injection"`
	Metrics      bool   `help:"Expose Prometheus metrics at /metrics"`
}

func (s *ServeCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	s.apply(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	var opts []devsession.Option
	if cfg.Dev.Metrics {
		reg := metrics.NewRegistry()
		pr := metrics.NewPrometheusRecorder(reg)
		recorder = pr
		opts = append(opts, devsession.WithMetricsHandler(metrics.HTTPHandler(reg)))
	}
	opts = append(opts, devsession.WithRecorder(recorder), devsession.WithLogger(g.Logger))

	if cfg.Dev.NATSURL != "" {
		n, err := devsession.NewNATSNotifier(cfg.Dev.NATSURL, cfg.Dev.NATSSubject)
		if err != nil {
			return ferrors.DevSessionError("connect rebuild notifier").WithCause(err).
				WithContext("url", cfg.Dev.NATSURL).Retryable().Build()
		}
		opts = append(opts, devsession.WithNotifier(n))
	}

	svc := build.NewBuildService(build.WithLogger(g.Logger), build.WithRecorder(recorder))
	defer func() { _ = svc.Close() }()

	g.Logger.Info("Starting dev session", slog.String("config", root.Config))
	return devsession.New(cfg, svc, opts...).Run(ctx)
}

func (s *ServeCmd) apply(cfg *config.Config) {
	if s.Host != "" {
		cfg.Dev.Host = s.Host
	}
	if s.Port > 0 {
		cfg.Dev.Port = s.Port
	}
	if s.NoLiveReload {
		cfg.Dev.LiveReload = false
	}
	if s.Metrics {
		cfg.Dev.Metrics = true
	}
}
