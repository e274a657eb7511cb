package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"git.home.luguber.info/inful/assetpipe/internal/builderr"
	"git.home.luguber.info/inful/assetpipe/internal/cache"
	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
	"git.home.luguber.info/inful/assetpipe/internal/module"
)

// Rule binds a chain to module IDs matching Test and not matching Exclude.
type Rule struct {
	Index   int
	Test    *regexp.Regexp
	Exclude *regexp.Regexp
	Chain   []Transform

	signature string
	// uncached is set when a transform in Chain opts out of caching.
	uncached bool
}

// Matches reports whether the rule applies to a module ID.
func (r *Rule) Matches(id string) bool {
	if !r.Test.MatchString(id) {
		return false
	}
	return r.Exclude == nil || !r.Exclude.MatchString(id)
}

// Pipeline runs matching rule chains over modules. It implements module.Processor.
type Pipeline struct {
	rules    []*Rule
	provide  *provider
	store    cache.Store
	recorder metrics.Recorder
	logger   *slog.Logger
	envSig   string
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithCache memoizes chain results in store.
func WithCache(store cache.Store) PipelineOption {
	return func(p *Pipeline) { p.store = store }
}

// WithRecorder reports transform and cache metrics.
func WithRecorder(r metrics.Recorder) PipelineOption {
	return func(p *Pipeline) {
		if r != nil {
			p.recorder = r
		}
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithProvide installs the identifier injection table. targets maps each
// identifier to the resolved module ID of its specifier so that the provided
// module itself is not rewritten; it may be nil.
func WithProvide(table map[string]string, targets map[string]string) PipelineOption {
	return func(p *Pipeline) { p.provide = newProvider(table, targets) }
}

// NewPipeline compiles rule configuration into a Pipeline. Unknown transform
// names, bad patterns and unknown option keys are configuration errors.
func NewPipeline(rules []config.RuleConfig, registry *Registry, env Env, opts ...PipelineOption) (*Pipeline, error) {
	if registry == nil {
		registry = DefaultRegistry()
	}
	p := &Pipeline{
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
		envSig:   fmt.Sprintf("%s|%d", env.PublicPath, env.HashLength),
	}
	for i, rc := range rules {
		test, err := regexp.Compile(rc.Test)
		if err != nil {
			return nil, fmt.Errorf("rules[%d]: invalid test: %w", i, err)
		}
		rule := &Rule{Index: i, Test: test}
		if rc.Exclude != "" {
			if rule.Exclude, err = regexp.Compile(rc.Exclude); err != nil {
				return nil, fmt.Errorf("rules[%d]: invalid exclude: %w", i, err)
			}
		}
		sig := []string{rc.Test, rc.Exclude}
		for j, u := range rc.Use {
			t, err := registry.New(u.Name, Options{Values: u.Options, Env: env})
			if err != nil {
				return nil, fmt.Errorf("rules[%d].use[%d]: %w", i, j, err)
			}
			rule.Chain = append(rule.Chain, t)
			if !isCacheable(t) {
				rule.uncached = true
			}
			optJSON, _ := json.Marshal(u.Options)
			sig = append(sig, u.Name+string(optJSON))
		}
		rule.signature = strings.Join(sig, "\x00")
		p.rules = append(p.rules, rule)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Rules returns the compiled rules in declaration order.
func (p *Pipeline) Rules() []*Rule { return p.rules }

// Matching returns the rules applying to a module ID in declaration order.
func (p *Pipeline) Matching(id string) []*Rule {
	var out []*Rule
	for _, r := range p.rules {
		if r.Matches(id) {
			out = append(out, r)
		}
	}
	return out
}

// Process implements module.Processor.
func (p *Pipeline) Process(ctx context.Context, src module.Source) (*module.Processed, error) {
	return p.Apply(ctx, src)
}

// Apply runs every matching chain, in rule order, then identifier injection.
// With no matching rule and no injection the content passes through unchanged.
func (p *Pipeline) Apply(ctx context.Context, src module.Source) (*module.Processed, error) {
	matched := p.Matching(src.ID)

	key := ""
	if p.store != nil && len(matched) > 0 && cacheable(matched) {
		key = cache.Key(src.ID, src.Raw, p.signature(matched))
		if out, ok := p.lookup(ctx, key, src.ID); ok {
			return out, nil
		}
	}

	state := Input{ID: src.ID, Path: src.Path, Bytes: src.Raw, Family: module.FamilyScript}
	var sides []module.SideArtifact
	for _, rule := range matched {
		for _, t := range rule.Chain {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			start := time.Now()
			out, err := t.Apply(ctx, state)
			p.recorder.IncTransform(t.Name(), err == nil)
			if err != nil {
				return nil, &builderr.TransformError{ModulePath: src.ID, RuleIndex: rule.Index, Transform: t.Name(), Cause: err}
			}
			p.logger.Debug("Applied transform",
				logfields.Module(src.ID), logfields.Rule(rule.Index), logfields.Transform(t.Name()),
				logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))
			sides = append(sides, out.SideArtifacts...)
			state = next(state, out)
		}
	}

	result := &module.Processed{
		Content:       state.Bytes,
		Family:        state.Family,
		Meta:          state.Meta,
		References:    state.References,
		SideArtifacts: sides,
	}
	if p.provide != nil && result.Family == module.FamilyScript {
		p.provide.apply(src.ID, result)
	}

	if key != "" {
		p.save(ctx, key, src.ID, result)
	}
	return result, nil
}

func cacheable(matched []*Rule) bool {
	for _, r := range matched {
		if r.uncached {
			return false
		}
	}
	return true
}

func next(in Input, out Output) Input {
	in.Bytes = out.Bytes
	if out.Family != "" {
		in.Family = out.Family
	}
	in.Meta = out.Meta
	in.References = out.References
	return in
}

// signature identifies the chain set and settings that produce a result.
func (p *Pipeline) signature(matched []*Rule) string {
	parts := make([]string, 0, len(matched)+2)
	for _, r := range matched {
		parts = append(parts, fmt.Sprintf("%d:%s", r.Index, r.signature))
	}
	parts = append(parts, p.envSig)
	if p.provide != nil {
		parts = append(parts, p.provide.signature())
	}
	return strings.Join(parts, "\x01")
}

func (p *Pipeline) lookup(ctx context.Context, key, id string) (*module.Processed, bool) {
	e, ok, err := p.store.Get(ctx, key)
	if err != nil {
		p.logger.Warn("Transform cache lookup failed", logfields.Module(id), logfields.Error(err))
		return nil, false
	}
	p.recorder.IncCacheLookup(ok)
	if !ok {
		return nil, false
	}
	var out module.Processed
	if err := json.Unmarshal(e.Value, &out); err != nil {
		p.logger.Warn("Discarding corrupt cache entry", logfields.Module(id), logfields.Error(err))
		return nil, false
	}
	out.Cached = true
	return &out, true
}

func (p *Pipeline) save(ctx context.Context, key, id string, out *module.Processed) {
	data, err := json.Marshal(out)
	if err == nil {
		err = p.store.Put(ctx, key, cache.Entry{Value: data, CreatedAt: time.Now()})
	}
	if err != nil {
		p.logger.Warn("Transform cache write failed", logfields.Module(id), logfields.Error(err))
	}
}

// Describe lists each rule as "index: test -> a, b" for inspection output.
func (p *Pipeline) Describe() []string {
	out := make([]string, 0, len(p.rules))
	for _, r := range p.rules {
		names := make([]string, len(r.Chain))
		for i, t := range r.Chain {
			names[i] = t.Name()
		}
		out = append(out, fmt.Sprintf("%d: %s -> %s", r.Index, r.Test.String(), strings.Join(names, ", ")))
	}
	return out
}
