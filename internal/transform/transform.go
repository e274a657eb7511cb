// Package transform applies ordered transform chains to modules. Rules select
// chains by module ID; each chain threads the output of one transform into
// the next.
package transform

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/assetpipe/internal/module"
)

// Transform is one step of a chain.
type Transform interface {
	Name() string
	Apply(ctx context.Context, in Input) (Output, error)
}

// Cacheable is implemented by transforms whose output may depend on more
// than their input bytes. A chain containing a transform that reports false
// is never served from or written to the transform cache.
type Cacheable interface {
	Cacheable() bool
}

func isCacheable(t Transform) bool {
	c, ok := t.(Cacheable)
	return !ok || c.Cacheable()
}

// Input is the module state entering a transform.
type Input struct {
	ID         string
	Path       string
	Bytes      []byte
	Family     module.Family
	Meta       map[string]string
	References []module.Reference
}

// Output is the module state leaving a transform. It replaces the input
// state; SideArtifacts accumulate across the chain.
type Output struct {
	Bytes         []byte
	Family        module.Family
	Meta          map[string]string
	References    []module.Reference
	SideArtifacts []module.SideArtifact
}

// Pass returns an Output carrying the input state unchanged.
func (in Input) Pass() Output {
	meta := make(map[string]string, len(in.Meta))
	for k, v := range in.Meta {
		meta[k] = v
	}
	return Output{
		Bytes:      in.Bytes,
		Family:     in.Family,
		Meta:       meta,
		References: append([]module.Reference(nil), in.References...),
	}
}

// Env carries build-wide settings some transforms need.
type Env struct {
	PublicPath string
	HashLength int
}

// Options are the raw options of one `use` item plus the build environment.
type Options struct {
	Values map[string]any
	Env    Env
}

// Decode decodes the raw option values into out, rejecting unknown keys.
func (o Options) Decode(out any) error {
	if len(o.Values) == 0 {
		return nil
	}
	data, err := yaml.Marshal(o.Values)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}

// Factory builds a configured Transform.
type Factory func(opts Options) (Transform, error)

// Registry maps transform names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a new empty transform registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry holding every built-in transform.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for name, f := range builtins {
		_ = r.Register(name, f)
	}
	return r
}

// Register adds a factory. Returns an error if the name is taken.
func (r *Registry) Register(name string, f Factory) error {
	if f == nil {
		return fmt.Errorf("cannot register nil factory for %s", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("transform %s already registered", name)
	}
	r.factories[name] = f
	return nil
}

// New instantiates the named transform.
func (r *Registry) New(name string, opts Options) (Transform, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown transform %q (available: %v)", name, r.Names())
	}
	t, err := f(opts)
	if err != nil {
		return nil, fmt.Errorf("transform %s: %w", name, err)
	}
	return t, nil
}

// Names lists registered transform names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var builtins = map[string]Factory{
	"css":           newCSS,
	"extract-style": newExtractStyle,
	"html":          newHTML,
	"file":          newFile,
	"url":           newURL,
	"markdown":      newMarkdown,
	"json":          newJSON,
	"command":       newCommand,
	"raw":           newRaw,
}
