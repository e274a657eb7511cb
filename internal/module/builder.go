package module

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/assetpipe/internal/builderr"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
)

// Processor turns a module's raw bytes into transformed content and references.
type Processor interface {
	Process(ctx context.Context, src Source) (*Processed, error)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, src Source) (*Processed, error)

func (f ProcessorFunc) Process(ctx context.Context, src Source) (*Processed, error) {
	return f(ctx, src)
}

// Identity is the Processor used when no transform rules apply.
var Identity = ProcessorFunc(func(_ context.Context, src Source) (*Processed, error) {
	return &Processed{Content: src.Raw, Family: FamilyScript}, nil
})

// Stats summarizes one graph build.
type Stats struct {
	Modules   int
	Processed int
	CacheHits int
}

// Builder resolves entry points into a linked Graph.
type Builder struct {
	resolver    *Resolver
	processor   Processor
	concurrency int
	allowCycles bool
	logger      *slog.Logger

	processed atomic.Int64
	cacheHits atomic.Int64
}

// Option configures a Builder.
type Option func(*Builder)

// WithConcurrency bounds the number of modules processed in parallel.
func WithConcurrency(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithAllowCycles toggles acceptance of cyclic sync dependencies.
func WithAllowCycles(allow bool) Option {
	return func(b *Builder) { b.allowCycles = allow }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBuilder creates a graph builder. A nil processor behaves as Identity.
func NewBuilder(resolver *Resolver, processor Processor, opts ...Option) *Builder {
	if processor == nil {
		processor = Identity
	}
	b := &Builder{
		resolver:    resolver,
		processor:   processor,
		concurrency: 4,
		allowCycles: true,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Stats returns counters of the last Build call.
func (b *Builder) Stats(g *Graph) Stats {
	s := Stats{Processed: int(b.processed.Load()), CacheHits: int(b.cacheHits.Load())}
	if g != nil {
		s.Modules = g.Len()
	}
	return s
}

// node tracks a module across the processing and linking phases.
type node struct {
	mod   *Module
	sides []*Module
}

// Build discovers every module reachable from entries. Modules are processed
// level by level on a bounded worker pool; linking and ordering happen
// afterwards on a single goroutine so the result does not depend on scheduling.
func (b *Builder) Build(ctx context.Context, entries []EntryPoint) (*Graph, error) {
	b.processed.Store(0)
	b.cacheHits.Store(0)

	nodes := make(map[string]*Module)
	var frontier []*node

	g := &Graph{modules: nodes}
	for _, e := range entries {
		id, abs, err := b.resolveEntry(e.ModulePath)
		if err != nil {
			return nil, &builderr.UnresolvedModuleError{Module: e.Name, Ref: e.ModulePath, Cause: err}
		}
		m, ok := nodes[id]
		if !ok {
			m = &Module{ID: id, Path: abs}
			nodes[id] = m
			frontier = append(frontier, &node{mod: m})
		}
		g.entries = append(g.entries, Entry{Name: e.Name, Module: m})
	}

	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", builderr.ErrBuildAborted, err)
		}
		if err := b.processLevel(ctx, frontier); err != nil {
			return nil, err
		}

		var next []*node
		discover := func(m *Module) {
			for _, ref := range m.refs {
				if _, seen := nodes[ref.targetID]; !seen {
					t := &Module{ID: ref.targetID, Path: ref.targetPath}
					nodes[t.ID] = t
					next = append(next, &node{mod: t})
				}
			}
		}
		for _, n := range frontier {
			for _, s := range n.sides {
				nodes[s.ID] = s
			}
			discover(n.mod)
			for _, s := range n.sides {
				discover(s)
			}
		}
		frontier = next
	}

	b.link(g)

	if !b.allowCycles {
		if cycle := g.FindCycle(); cycle != nil {
			return nil, &builderr.CyclicDependencyError{Cycle: cycle}
		}
	}
	b.logger.Debug("Module graph resolved", logfields.Count(g.Len()))
	return g, nil
}

func (b *Builder) resolveEntry(p string) (string, string, error) {
	spec := filepath.ToSlash(p)
	if !strings.HasPrefix(spec, "./") && !strings.HasPrefix(spec, "../") && !strings.HasPrefix(spec, "/") {
		if id, abs, err := b.resolver.Resolve(b.resolver.Root, "./"+spec); err == nil {
			return id, abs, nil
		}
	}
	return b.resolver.Resolve(b.resolver.Root, spec)
}

// processLevel runs the processor for every module of one level. The
// reported error is the first failure in level order.
func (b *Builder) processLevel(ctx context.Context, level []*node) error {
	errs := make([]error, len(level))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(b.concurrency)
	for i, n := range level {
		eg.Go(func() error {
			errs[i] = b.process(egCtx, n)
			return errs[i]
		})
	}
	waitErr := eg.Wait()
	if waitErr == nil {
		return nil
	}
	for _, err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", builderr.ErrBuildAborted, ctx.Err())
	}
	return waitErr
}

func (b *Builder) process(ctx context.Context, n *node) error {
	m := n.mod
	raw, err := os.ReadFile(m.Path)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "read module").
			WithContext("module", m.ID).Build()
	}
	m.Raw = raw

	out, err := b.processor.Process(ctx, Source{ID: m.ID, Path: m.Path, Raw: raw})
	if err != nil {
		return err
	}
	b.processed.Add(1)
	if out.Cached {
		b.cacheHits.Add(1)
	}

	m.Content = out.Content
	m.Family = out.Family
	if m.Family == "" {
		m.Family = FamilyScript
	}
	m.Meta = out.Meta
	m.Cached = out.Cached

	refs := out.References
	if m.Family == FamilyScript {
		if HasStaticModuleSyntax(m.Content) {
			return &builderr.TransformError{ModulePath: m.ID, RuleIndex: -1, Transform: "script", Cause: builderr.ErrStaticModuleSyntax}
		}
		refs = append(append([]Reference{}, refs...), ScanReferences(m.Content)...)
	}
	if err := b.resolveRefs(m, DedupeReferences(refs)); err != nil {
		return err
	}

	for _, sa := range out.SideArtifacts {
		side := &Module{
			ID:      SideModuleID(m.ID, sa.Name),
			Path:    m.Path,
			Content: sa.Content,
			Family:  sa.Family,
			Meta:    sa.Meta,
			Parent:  m,
			Cached:  out.Cached,
		}
		if side.Family == "" {
			side.Family = FamilyAsset
		}
		if err := b.resolveRefs(side, DedupeReferences(sa.References)); err != nil {
			return err
		}
		n.sides = append(n.sides, side)
		m.refs = append(m.refs, resolvedRef{
			Reference: Reference{Specifier: side.ID, Kind: DepSync},
			targetID:  side.ID,
		})
	}
	b.logger.Debug("Processed module", logfields.Module(m.ID), slog.String("family", string(m.Family)), slog.Int("refs", len(m.refs)))
	return nil
}

func (b *Builder) resolveRefs(m *Module, refs []Reference) error {
	dir := filepath.Dir(m.Path)
	for _, ref := range refs {
		id, abs, err := b.resolver.Resolve(dir, ref.Specifier)
		if err != nil {
			return &builderr.UnresolvedModuleError{Module: m.ID, Ref: ref.Specifier, Cause: err}
		}
		m.refs = append(m.refs, resolvedRef{Reference: ref, targetID: id, targetPath: abs})
	}
	return nil
}

// link wires Dependency targets and computes discovery order.
func (b *Builder) link(g *Graph) {
	for _, m := range g.modules {
		m.Dependencies = make([]Dependency, 0, len(m.refs))
		for _, r := range m.refs {
			m.Dependencies = append(m.Dependencies, Dependency{
				Specifier: r.Specifier,
				Kind:      r.Kind,
				Target:    g.modules[r.targetID],
			})
		}
		m.refs = nil
	}
	seen := make(map[string]bool, len(g.modules))
	for _, e := range g.entries {
		g.Walk(e.Module, false, func(m *Module) bool {
			if seen[m.ID] {
				return false
			}
			seen[m.ID] = true
			g.order = append(g.order, m)
			return true
		})
	}
}
