package devsession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"git.home.luguber.info/inful/assetpipe/internal/build"
	"git.home.luguber.info/inful/assetpipe/internal/config"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
)

// Session couples serving, watching and rebuilding for one configuration.
type Session struct {
	cfg       *config.Config
	builder   build.BuildService
	hub       *LiveReloadHub
	status    *buildStatus
	coalescer *Coalescer
	notifiers []Notifier
	recorder  metrics.Recorder
	metrics   http.Handler
	logger    *slog.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithNotifier adds a notifier told about every promoted build.
func WithNotifier(n Notifier) Option {
	return func(s *Session) { s.notifiers = append(s.notifiers, n) }
}

// WithRecorder counts rebuild triggers.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Session) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Session) { s.metrics = h }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a dev session building with builder.
func New(cfg *config.Config, builder build.BuildService, opts ...Option) *Session {
	s := &Session{
		cfg:      cfg,
		builder:  builder,
		hub:      NewLiveReloadHub(),
		status:   &buildStatus{},
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.Dev.LiveReload {
		s.notifiers = append([]Notifier{hubNotifier{hub: s.hub}}, s.notifiers...)
	}
	s.coalescer = NewCoalescer(cfg.Dev.Debounce, s.rebuild)
	s.status.busy = s.coalescer.Running
	return s
}

// Hub returns the live-reload hub.
func (s *Session) Hub() *LiveReloadHub { return s.hub }

// Status returns the state of the last build.
func (s *Session) Status() Status { return s.status.snapshot() }

// Handler returns the HTTP surface of the session.
func (s *Session) Handler() http.Handler {
	return NewRouter(RouterOptions{
		OutputDir:  s.cfg.OutputDir(),
		PublicPath: s.cfg.Output.PublicPath,
		LiveReload: s.cfg.Dev.LiveReload,
		Metrics:    s.metrics,
		Logger:     s.logger,
	}, s.hub, s.status)
}

// Rebuild runs one build and notifies on success. It is what the watcher
// triggers through the coalescer.
func (s *Session) Rebuild(ctx context.Context, reason string) (*build.Report, error) {
	s.recorder.IncRebuildTrigger(reason)
	report, err := s.builder.Run(ctx, build.BuildRequest{Config: s.cfg, Trigger: reason})
	s.status.record(report, err)
	if err != nil {
		s.logger.Warn("Rebuild failed", slog.String("reason", reason), logfields.Error(err))
		return report, err
	}
	ev := eventFor(report)
	for _, n := range s.notifiers {
		if nerr := n.Notify(ctx, ev); nerr != nil {
			s.logger.Warn("Rebuild notification failed", logfields.BuildID(report.BuildID), logfields.Error(nerr))
		}
	}
	s.logger.Info("Rebuilt", logfields.BuildID(report.BuildID), slog.String("reason", reason),
		slog.Int("artifacts", len(report.Artifacts)), slog.Int("cache_hits", report.CacheHits))
	return report, nil
}

func (s *Session) rebuild(ctx context.Context, reason string) { _, _ = s.Rebuild(ctx, reason) }

// Trigger schedules a debounced rebuild.
func (s *Session) Trigger(reason string) { s.coalescer.Trigger(reason) }

// watchIgnored lists directories the session writes to itself.
func (s *Session) watchIgnored() []string {
	out := s.cfg.OutputDir()
	return []string{out, out + "_stage", out + ".prev", s.cfg.CacheDir()}
}

// Run performs the initial build, then serves and watches until ctx is done.
// A failing initial build does not end the session; the next change retries.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if _, err := s.Rebuild(ctx, "initial"); err != nil && ctx.Err() != nil {
		return nil
	}

	roots := make([]string, len(s.cfg.Dev.Watch))
	for i, p := range s.cfg.Dev.Watch {
		roots[i] = s.cfg.ResolvePath(p)
	}
	watcher, err := NewWatcher(roots, s.watchIgnored(), s.logger)
	if err != nil {
		return ferrors.DevSessionError("start watcher").WithCause(err).Build()
	}
	defer func() { _ = watcher.Close() }()

	addr := net.JoinHostPort(s.cfg.Dev.Host, strconv.Itoa(s.cfg.Dev.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return ferrors.DevSessionError("listen").WithCause(err).WithContext("addr", addr).UserAction().Build()
	}
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()
	s.logger.Info("Dev server listening", slog.String("url", fmt.Sprintf("http://%s%s", addr, mountPath(s.cfg.Output.PublicPath))))

	s.coalescer.Start(ctx)
	watchDone := make(chan error, 1)
	go func() {
		watchDone <- watcher.Run(ctx, func(string) { s.Trigger("change") })
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = ferrors.DevSessionError("serve").WithCause(err).Build()
		}
	case err := <-watchDone:
		if err != nil {
			runErr = ferrors.DevSessionError("watch").WithCause(err).Build()
		}
	}
	cancel()
	s.shutdown(srv)
	return runErr
}

func (s *Session) shutdown(srv *http.Server) {
	s.logger.Info("Shutting down dev server")
	s.coalescer.Wait()
	for _, n := range s.notifiers {
		if err := n.Close(); err != nil {
			s.logger.Warn("Notifier close failed", logfields.Error(err))
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("HTTP server shutdown error", logfields.Error(err))
	}
}
