package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/assetpipe/internal/builderr"
	"git.home.luguber.info/inful/assetpipe/internal/cache"
	"git.home.luguber.info/inful/assetpipe/internal/chunk"
	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/emit"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
	"git.home.luguber.info/inful/assetpipe/internal/module"
	"git.home.luguber.info/inful/assetpipe/internal/observability"
	"git.home.luguber.info/inful/assetpipe/internal/transform"
)

// ManifestFilename is the build report written into the output directory.
const ManifestFilename = "manifest.json"

// DefaultBuildService is the standard implementation of BuildService.
// It orchestrates the full pipeline: graph → chunks → artifacts → pages → promote.
//
// The transform cache store lives as long as the service so that repeated
// runs (dev session rebuilds) reuse transform results.
type DefaultBuildService struct {
	registry *transform.Registry
	recorder metrics.Recorder
	logger   *slog.Logger

	mu         sync.Mutex
	store      cache.Store
	storeOwned bool
}

// ServiceOption configures a DefaultBuildService.
type ServiceOption func(*DefaultBuildService)

// WithRegistry replaces the built-in transform registry.
func WithRegistry(r *transform.Registry) ServiceOption {
	return func(s *DefaultBuildService) {
		if r != nil {
			s.registry = r
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) ServiceOption {
	return func(s *DefaultBuildService) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *DefaultBuildService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCacheStore injects a transform cache store. The caller keeps ownership.
func WithCacheStore(store cache.Store) ServiceOption {
	return func(s *DefaultBuildService) { s.store = store }
}

// NewBuildService creates a new DefaultBuildService.
func NewBuildService(opts ...ServiceOption) *DefaultBuildService {
	s := &DefaultBuildService{
		registry: transform.DefaultRegistry(),
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close releases the cache store opened by the service.
func (s *DefaultBuildService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil || !s.storeOwned {
		return nil
	}
	err := s.store.Close()
	s.store = nil
	s.storeOwned = false
	return err
}

// cacheStore opens the configured store on first use. Opening a sqlite store
// drops entries older than cache.max_age.
func (s *DefaultBuildService) cacheStore(ctx context.Context, cfg *config.Config) (cache.Store, error) {
	if s.store != nil || !cfg.Cache.Enabled {
		return s.store, nil
	}
	switch cfg.Cache.Backend {
	case config.CacheBackendMemory:
		s.store = cache.NewMemoryStore()
	default:
		store, err := cache.OpenSQLite(cfg.CacheDir())
		if err != nil {
			return nil, ferrors.CacheError("open transform cache").WithCause(err).
				WithContext("dir", cfg.CacheDir()).Build()
		}
		if cfg.Cache.MaxAge > 0 {
			n, err := store.Prune(ctx, time.Now().Add(-cfg.Cache.MaxAge))
			if err != nil {
				_ = store.Close()
				return nil, ferrors.CacheError("prune transform cache").WithCause(err).Build()
			}
			if n > 0 {
				s.logger.Debug("Pruned transform cache", logfields.Count(int(n)), slog.Duration("max_age", cfg.Cache.MaxAge))
			}
		}
		s.store = store
	}
	s.storeOwned = true
	return s.store, nil
}

// Run executes the complete build pipeline. Builds on one service are
// serialized. On any error the staging directory is discarded and the
// previous output stays untouched.
func (s *DefaultBuildService) Run(ctx context.Context, req BuildRequest) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	startTime := time.Now()
	report := &Report{
		BuildID:        uuid.NewString(),
		Trigger:        req.Trigger,
		StartTime:      startTime,
		StageDurations: make(map[string]float64),
	}
	ctx = observability.WithBuildID(ctx, report.BuildID)
	if req.Trigger != "" {
		ctx = observability.WithTrigger(ctx, req.Trigger)
	}

	if req.Config == nil {
		return s.finish(ctx, report, ferrors.ConfigError("config required").Build())
	}
	cfg := req.Config
	report.OutputDir = req.OutputDir
	if report.OutputDir == "" {
		report.OutputDir = cfg.OutputDir()
	}
	if report.OutputDir == "" {
		return s.finish(ctx, report, ferrors.ConfigError("output path required").Build())
	}

	store, err := s.cacheStore(ctx, cfg)
	if err != nil {
		// A broken cache only costs speed.
		observability.WarnContext(ctx, s.logger, "Transform cache unavailable", logfields.Error(err))
		store = nil
	}

	stageDir, err := beginStaging(report.OutputDir)
	if err != nil {
		return s.finish(ctx, report, ferrors.WrapError(err, ferrors.CategoryFileSystem, "create staging directory").
			WithContext("path", report.OutputDir).Build())
	}
	bs := &buildState{cfg: cfg, report: report, outDir: report.OutputDir, stageDir: stageDir}

	observability.InfoContext(ctx, s.logger, "Starting build",
		logfields.Path(report.OutputDir), logfields.Count(len(cfg.Entries)))

	stages := []stageDef{
		{StageResolveGraph, s.stageResolveGraph(store)},
		{StagePlanChunks, s.stagePlanChunks},
		{StageEmitArtifacts, s.stageEmitArtifacts},
		{StageRenderPages, s.stageRenderPages},
		{StagePromoteOutput, s.stagePromoteOutput},
	}
	if err := runStages(ctx, bs, s.recorder, stages); err != nil {
		abortStaging(stageDir)
		return s.finish(ctx, report, err)
	}
	return s.finish(ctx, report, nil)
}

// finish stamps the terminal status and records build metrics.
func (s *DefaultBuildService) finish(ctx context.Context, report *Report, err error) (*Report, error) {
	report.EndTime = time.Now()
	report.Duration = report.EndTime.Sub(report.StartTime)
	s.recorder.ObserveBuildDuration(report.Duration)

	dur := logfields.DurationMS(float64(report.Duration.Microseconds()) / 1000)
	switch {
	case err == nil:
		report.Status = BuildStatusSuccess
		s.recorder.IncBuildOutcome(metrics.BuildOutcomeSuccess)
		observability.InfoContext(ctx, s.logger, "Build completed",
			dur, slog.Int("artifacts", len(report.Artifacts)), slog.Int("cache_hits", report.CacheHits))
		return report, nil
	case isCanceled(err):
		report.Status = BuildStatusCancelled
		s.recorder.IncBuildOutcome(metrics.BuildOutcomeCanceled)
		observability.WarnContext(ctx, s.logger, "Build canceled", dur)
	default:
		report.Status = BuildStatusFailed
		s.recorder.IncBuildOutcome(metrics.BuildOutcomeFailed)
		observability.ErrorContext(ctx, s.logger, "Build failed", dur, logfields.Error(err))
	}
	report.Error = err.Error()
	report.Artifacts = nil
	report.Pages = nil
	return report, err
}

func isCanceled(err error) bool {
	var se *StageError
	if errors.As(err, &se) && se.Kind == StageErrorCanceled {
		return true
	}
	return errors.Is(err, builderr.ErrBuildAborted) || isCancellation(err)
}

// newPipeline compiles the rule set. Relative provide specifiers are
// rewritten root-absolute so they resolve the same from every module.
func (s *DefaultBuildService) newPipeline(cfg *config.Config, resolver *module.Resolver, store cache.Store) (*transform.Pipeline, error) {
	table := make(map[string]string, len(cfg.Provide))
	targets := make(map[string]string, len(cfg.Provide))
	for ident, spec := range cfg.Provide {
		table[ident] = spec
		id, _, err := resolver.Resolve(cfg.Root(), spec)
		if err != nil {
			continue
		}
		targets[ident] = id
		if isRelative(spec) {
			table[ident] = "/" + id
		}
	}
	env := transform.Env{PublicPath: cfg.Output.PublicPath, HashLength: cfg.Output.HashLength}
	opts := []transform.PipelineOption{
		transform.WithRecorder(s.recorder),
		transform.WithLogger(s.logger),
		transform.WithProvide(table, targets),
	}
	if store != nil {
		opts = append(opts, transform.WithCache(store))
	}
	p, err := transform.NewPipeline(cfg.Rules, s.registry, env, opts...)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "compile rules").UserAction().Build()
	}
	return p, nil
}

func isRelative(spec string) bool {
	return len(spec) > 1 && spec[0] == '.' && (spec[1] == '/' || (spec[1] == '.' && len(spec) > 2 && spec[2] == '/'))
}

func (s *DefaultBuildService) stageResolveGraph(store cache.Store) Stage {
	return func(ctx context.Context, bs *buildState) error {
		cfg := bs.cfg
		resolver := module.NewResolver(cfg.Root(), cfg.Resolve.Extensions, cfg.Resolve.ModulesDir, cfg.Resolve.Alias)
		pipeline, err := s.newPipeline(cfg, resolver, store)
		if err != nil {
			return err
		}
		bs.pipeline = pipeline
		bs.builder = module.NewBuilder(resolver, pipeline,
			module.WithConcurrency(cfg.Build.Concurrency),
			module.WithAllowCycles(cfg.Resolve.CyclesAllowed()),
			module.WithLogger(s.logger),
		)
		entries := make([]module.EntryPoint, len(cfg.Entries))
		for i, e := range cfg.Entries {
			entries[i] = module.EntryPoint{Name: e.Name, ModulePath: e.Path}
		}
		g, err := bs.builder.Build(ctx, entries)
		if err != nil {
			return err
		}
		bs.graph = g
		stats := bs.builder.Stats(g)
		bs.report.Modules = stats.Modules
		bs.report.Processed = stats.Processed
		bs.report.CacheHits = stats.CacheHits
		s.recorder.SetGraphModules(stats.Modules)
		observability.DebugContext(ctx, s.logger, "Resolved module graph",
			logfields.Count(stats.Modules), slog.Int("cache_hits", stats.CacheHits))
		return nil
	}
}

func (s *DefaultBuildService) stagePlanChunks(ctx context.Context, bs *buildState) error {
	plan, err := chunk.New(bs.graph, chunkOptions(bs.cfg))
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "plan chunks").UserAction().Build()
	}
	bs.plan = plan
	bs.report.Chunks = chunkReports(plan)
	observability.DebugContext(ctx, s.logger, "Planned chunks", logfields.Count(len(bs.report.Chunks)))
	return nil
}

func chunkOptions(cfg *config.Config) chunk.Options {
	opts := chunk.Options{MinChunks: cfg.Commons.MinChunks}
	if cfg.Commons.Enabled() {
		opts.CommonName = cfg.Commons.Name
		opts.CommonChunks = cfg.Commons.Chunks
	}
	return opts
}

func (s *DefaultBuildService) stageEmitArtifacts(ctx context.Context, bs *buildState) error {
	cfg := bs.cfg
	bs.emitter = emit.New(emit.Options{
		PublicPath:    cfg.Output.PublicPath,
		Filename:      cfg.Output.Filename,
		ChunkFilename: cfg.Output.ChunkFilename,
		StyleFilename: cfg.Output.StyleFilename,
		Hashing:       cfg.Output.Hashing,
		HashLength:    cfg.Output.HashLength,
	}, cfg.Root(), emit.WithLogger(s.logger), emit.WithRecorder(s.recorder))
	res, err := bs.emitter.Emit(ctx, bs.graph, bs.plan, bs.stageDir)
	if err != nil {
		return err
	}
	bs.result = res
	return nil
}

func (s *DefaultBuildService) stageRenderPages(ctx context.Context, bs *buildState) error {
	commonName := ""
	if bs.cfg.Commons.Enabled() {
		commonName = bs.cfg.Commons.Name
	}
	pages, err := bs.emitter.RenderPages(ctx, bs.result, bs.plan, bs.cfg.Pages, commonName, bs.stageDir)
	if err != nil {
		return err
	}
	bs.pages = pages
	return nil
}

// stagePromoteOutput writes the manifest and swaps staging into place.
func (s *DefaultBuildService) stagePromoteOutput(ctx context.Context, bs *buildState) error {
	if err := s.claimManifest(bs); err != nil {
		return err
	}
	bs.report.Artifacts = bs.result.Artifacts
	bs.report.Pages = bs.pages
	bs.report.EndTime = time.Now()
	bs.report.Status = BuildStatusSuccess
	if err := writeReport(filepath.Join(bs.stageDir, ManifestFilename), bs.report); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "write manifest").Build()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := finalizeStaging(bs.stageDir, bs.outDir); err != nil {
		return ferrors.WrapError(fmt.Errorf("%w: %w", ErrPromote, err), ferrors.CategoryFileSystem, "promote output").
			WithContext("path", bs.outDir).Build()
	}
	observability.DebugContext(ctx, s.logger, "Promoted output", logfields.Path(bs.outDir))
	return nil
}

// claimManifest rejects artifacts or pages named like the build manifest.
func (s *DefaultBuildService) claimManifest(bs *buildState) error {
	for _, a := range bs.result.Artifacts {
		if a.Family != emit.FamilyPage && a.OutputPath == ManifestFilename {
			owner := "module " + a.Module
			if a.ChunkID != "" {
				owner = fmt.Sprintf("chunk %s (%s)", a.ChunkID, a.Family)
			}
			return &builderr.OutputCollisionError{Path: ManifestFilename, First: owner, Second: "build manifest"}
		}
	}
	for _, p := range bs.pages {
		if p.OutputPath == ManifestFilename {
			return &builderr.OutputCollisionError{Path: ManifestFilename, First: "page " + p.Template, Second: "build manifest"}
		}
	}
	return nil
}
