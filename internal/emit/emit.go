// Package emit serializes a chunk plan into output artifacts and renders the
// HTML shells that reference them. All writes go to the directory handed in
// by the caller, normally the build's staging directory.
package emit

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"

	"git.home.luguber.info/inful/assetpipe/internal/builderr"
	"git.home.luguber.info/inful/assetpipe/internal/chunk"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
	"git.home.luguber.info/inful/assetpipe/internal/module"
	"git.home.luguber.info/inful/assetpipe/internal/transform"
)

// Options controls artifact naming.
type Options struct {
	PublicPath    string
	Filename      string // entry and common scripts
	ChunkFilename string // async scripts
	StyleFilename string
	// Hashing inserts the content hash into names whose pattern lacks one.
	Hashing    bool
	HashLength int
}

// Artifact is one emitted file.
type Artifact struct {
	ChunkID     string        `json:"chunk,omitempty"`
	Module      string        `json:"module,omitempty"`
	Family      module.Family `json:"family"`
	OutputPath  string        `json:"path"`
	URL         string        `json:"url"`
	ContentHash string        `json:"hash"`
	Bytes       []byte        `json:"-"`
}

// Result lists the artifacts of one emit pass in emission order.
type Result struct {
	Artifacts []*Artifact

	byChunk  map[string][]*Artifact
	byModule map[string]*Artifact
	owners   map[string]string
}

// ForChunk returns the script and style artifacts of a chunk.
func (r *Result) ForChunk(id string) []*Artifact { return r.byChunk[id] }

// ForModule returns the asset artifact of a module.
func (r *Result) ForModule(id string) (*Artifact, bool) {
	a, ok := r.byModule[id]
	return a, ok
}

// Emitter writes artifacts for a plan.
type Emitter struct {
	opts     Options
	root     string
	logger   *slog.Logger
	recorder metrics.Recorder
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithLogger sets the emitter logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Emitter) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRecorder reports artifact sizes.
func WithRecorder(r metrics.Recorder) Option {
	return func(e *Emitter) {
		if r != nil {
			e.recorder = r
		}
	}
}

// New creates an Emitter. root is the project root page templates and
// favicons resolve from.
func New(opts Options, root string, options ...Option) *Emitter {
	if opts.HashLength <= 0 {
		opts.HashLength = 20
	}
	e := &Emitter{opts: opts, root: root, logger: slog.Default(), recorder: metrics.NoopRecorder{}}
	for _, o := range options {
		o(e)
	}
	return e
}

// Emit writes assets, async chunks, the common chunk and entry chunks, in
// that order, below dir.
func (e *Emitter) Emit(ctx context.Context, g *module.Graph, plan *chunk.Plan, dir string) (*Result, error) {
	res := &Result{
		byChunk:  make(map[string][]*Artifact),
		byModule: make(map[string]*Artifact),
		owners:   make(map[string]string),
	}

	for _, m := range g.Modules() {
		if m.Family != module.FamilyAsset {
			continue
		}
		a := e.assetArtifact(m, plan)
		dup, err := res.claim(a, "module "+m.ID)
		if err != nil {
			return nil, err
		}
		if dup {
			res.byModule[m.ID] = res.byPath(a.OutputPath)
			continue
		}
		res.byModule[m.ID] = a
		res.Artifacts = append(res.Artifacts, a)
	}

	chunks := plan.OfKind(chunk.KindAsync)
	if c := plan.Common(); c != nil {
		chunks = append(chunks, c)
	}
	chunks = append(chunks, plan.OfKind(chunk.KindEntry)...)
	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", builderr.ErrBuildAborted, err)
		}
		if err := e.emitChunk(c, plan, res); err != nil {
			return nil, err
		}
	}

	for _, a := range res.Artifacts {
		if err := writeFile(dir, a.OutputPath, a.Bytes); err != nil {
			return nil, err
		}
		e.recorder.ObserveArtifactBytes(string(a.Family), len(a.Bytes))
		e.logger.Debug("Wrote artifact", logfields.Path(a.OutputPath), logfields.Chunk(a.ChunkID), slog.Int("bytes", len(a.Bytes)))
	}
	return res, nil
}

func (e *Emitter) assetArtifact(m *module.Module, plan *chunk.Plan) *Artifact {
	hash := contentHash(m.Content, e.opts.HashLength)
	name := m.MetaValue(module.MetaOutputName)
	if name == "" {
		id := m.ID
		if m.IsSide() {
			id = m.Parent.ID
		}
		name = transform.ExpandAssetName(transform.DefaultAssetName, id, m.Content, e.opts.HashLength)
	}
	a := &Artifact{
		Module:      m.ID,
		Family:      module.FamilyAsset,
		OutputPath:  name,
		URL:         e.opts.PublicPath + name,
		ContentHash: hash,
		Bytes:       m.Content,
	}
	if cs := plan.ChunksOf(m.ID); len(cs) > 0 {
		a.ChunkID = cs[0].ID
	}
	return a
}

func (e *Emitter) emitChunk(c *chunk.Chunk, plan *chunk.Plan, res *Result) error {
	styles := orderStyles(c)
	if len(styles) > 0 {
		data, err := e.styleBytes(styles, res)
		if err != nil {
			return err
		}
		a := e.named(c, module.FamilyStyle, e.opts.StyleFilename, "css", data)
		if _, err := res.claim(a, "chunk "+c.ID+" (style)"); err != nil {
			return err
		}
		res.add(a)
	}

	pattern := e.opts.Filename
	if c.Kind == chunk.KindAsync {
		pattern = e.opts.ChunkFilename
	}
	data, err := e.scriptBytes(c, plan, res)
	if err != nil {
		return err
	}
	a := e.named(c, module.FamilyScript, pattern, "js", data)
	if _, err := res.claim(a, "chunk "+c.ID+" (script)"); err != nil {
		return err
	}
	res.add(a)
	return nil
}

func (e *Emitter) named(c *chunk.Chunk, family module.Family, pattern, ext string, data []byte) *Artifact {
	hash := contentHash(data, e.opts.HashLength)
	p := expandName(pattern, c.Name, c.ID, hash, ext, e.opts.Hashing)
	return &Artifact{
		ChunkID:     c.ID,
		Family:      family,
		OutputPath:  p,
		URL:         e.opts.PublicPath + p,
		ContentHash: hash,
		Bytes:       data,
	}
}

func (r *Result) add(a *Artifact) {
	r.Artifacts = append(r.Artifacts, a)
	r.byChunk[a.ChunkID] = append(r.byChunk[a.ChunkID], a)
}

func (r *Result) byPath(p string) *Artifact {
	for _, a := range r.Artifacts {
		if a.OutputPath == p {
			return a
		}
	}
	return nil
}

// claim reserves an output path. Identical asset bytes at the same path are
// the same artifact and reported as a duplicate instead of a collision.
func (r *Result) claim(a *Artifact, owner string) (bool, error) {
	first, taken := r.owners[a.OutputPath]
	if !taken {
		r.owners[a.OutputPath] = owner
		return false, nil
	}
	if prev := r.byPath(a.OutputPath); prev != nil && a.Family == module.FamilyAsset &&
		prev.Family == module.FamilyAsset && slices.Equal(prev.Bytes, a.Bytes) {
		return true, nil
	}
	return false, &builderr.OutputCollisionError{Path: a.OutputPath, First: first, Second: owner}
}

// urlFor returns the public URL a reference to m resolves to, if any.
func urlFor(m *module.Module, res *Result) string {
	if u := m.MetaValue(module.MetaURL); u != "" {
		return u
	}
	if a, ok := res.byModule[m.ID]; ok {
		return a.URL
	}
	for _, d := range m.Dependencies {
		if d.Target.IsSide() && d.Target.Parent == m && d.Target.Family == module.FamilyAsset {
			if a, ok := res.byModule[d.Target.ID]; ok {
				return a.URL
			}
		}
	}
	return ""
}

func writeFile(dir, rel string, data []byte) error {
	clean := path.Clean("/" + rel)[1:]
	if clean == "" {
		return ferrors.NewError(ferrors.CategoryEmit, "empty output path").Build()
	}
	full := filepath.Join(dir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return ferrors.FileSystemError("create output directory").WithCause(err).
			WithContext("path", rel).Build()
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return ferrors.FileSystemError("write artifact").WithCause(err).
			WithContext("path", rel).Build()
	}
	return nil
}
