// Package chunk partitions a module graph into entry, common and async chunks.
package chunk

import (
	"fmt"
	"path"
	"slices"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/assetpipe/internal/module"
)

// Kind classifies a chunk.
type Kind string

const (
	KindEntry  Kind = "entry"
	KindCommon Kind = "common"
	KindAsync  Kind = "async"
)

// Chunk is a set of modules emitted together.
type Chunk struct {
	ID            string
	Name          string
	Kind          Kind
	Members       []*module.Module
	OwningEntries []string
	// Requires lists chunk IDs that must be loaded before this chunk runs.
	Requires []string
	// Origin is the entry module of an entry chunk or the dynamically
	// imported target of an async chunk; nil for the common chunk.
	Origin *module.Module
}

// Has reports whether the chunk contains the module.
func (c *Chunk) Has(id string) bool {
	for _, m := range c.Members {
		if m.ID == id {
			return true
		}
	}
	return false
}

func (c *Chunk) require(id string) {
	if id != c.ID && !slices.Contains(c.Requires, id) {
		c.Requires = append(c.Requires, id)
	}
}

// Options controls common-chunk extraction.
type Options struct {
	// CommonName names the common chunk; empty disables extraction.
	CommonName string
	// CommonChunks restricts the entries counted for sharing; empty means all.
	CommonChunks []string
	// MinChunks is the number of distinct entries a module must be reachable
	// from to move into the common chunk. Values below 2 disable extraction.
	MinChunks int
}

func (o Options) commonsEnabled() bool { return o.CommonName != "" && o.MinChunks >= 2 }

// Plan is the chunk set of one build.
type Plan struct {
	chunks   []*Chunk
	byID     map[string]*Chunk
	async    map[string]*Chunk // dynamic import target ID -> async chunk
	byModule map[string][]*Chunk
}

// Chunks returns every chunk: the common chunk first, then entry chunks in
// declaration order, then async chunks in discovery order.
func (p *Plan) Chunks() []*Chunk { return slices.Clone(p.chunks) }

// Chunk looks up a chunk by ID.
func (p *Plan) Chunk(id string) (*Chunk, bool) {
	c, ok := p.byID[id]
	return c, ok
}

// Common returns the common chunk or nil.
func (p *Plan) Common() *Chunk {
	for _, c := range p.chunks {
		if c.Kind == KindCommon {
			return c
		}
	}
	return nil
}

// OfKind returns the chunks of one kind in plan order.
func (p *Plan) OfKind(k Kind) []*Chunk {
	var out []*Chunk
	for _, c := range p.chunks {
		if c.Kind == k {
			out = append(out, c)
		}
	}
	return out
}

// AsyncFor returns the async chunk loading a dynamically imported module.
// It is absent when the target is already loaded on every page importing it.
func (p *Plan) AsyncFor(targetID string) (*Chunk, bool) {
	c, ok := p.async[targetID]
	return c, ok
}

// ChunksOf returns the chunks containing a module in plan order.
func (p *Plan) ChunksOf(moduleID string) []*Chunk { return p.byModule[moduleID] }

func (p *Plan) add(c *Chunk) {
	p.chunks = append(p.chunks, c)
	p.byID[c.ID] = c
	for _, m := range c.Members {
		p.byModule[m.ID] = append(p.byModule[m.ID], c)
	}
}

// reachSet records which entries reach a module, in first-reached order.
type reachSet map[string][]string

func (r reachSet) add(id, entry string) {
	if !slices.Contains(r[id], entry) {
		r[id] = append(r[id], entry)
	}
}

// New partitions g. Entry chunks are seeded with the sync-reachable modules of
// each entry; modules shared by enough entries move to the common chunk in a
// single pass; each distinct dynamic import target gets an async chunk.
func New(g *module.Graph, opts Options) (*Plan, error) {
	entries := g.Entries()
	entryNames := make([]string, len(entries))
	for i, e := range entries {
		entryNames[i] = e.Name
	}
	for _, name := range opts.CommonChunks {
		if !slices.Contains(entryNames, name) {
			return nil, fmt.Errorf("commons chunk %q is not an entry", name)
		}
	}

	syncOrder := make(map[string][]*module.Module, len(entries))
	syncReach := reachSet{}
	allReach := reachSet{}
	var allOrder [][]*module.Module
	for _, e := range entries {
		g.Walk(e.Module, true, func(m *module.Module) bool {
			syncOrder[e.Name] = append(syncOrder[e.Name], m)
			syncReach.add(m.ID, e.Name)
			return true
		})
		var order []*module.Module
		g.Walk(e.Module, false, func(m *module.Module) bool {
			order = append(order, m)
			allReach.add(m.ID, e.Name)
			return true
		})
		allOrder = append(allOrder, order)
	}

	// Async-only modules count the entries that can load them on demand.
	reach := func(id string) []string {
		if r := syncReach[id]; len(r) > 0 {
			return r
		}
		return allReach[id]
	}

	p := &Plan{
		byID:     make(map[string]*Chunk),
		async:    make(map[string]*Chunk),
		byModule: make(map[string][]*Chunk),
	}

	shared := map[string]bool{}
	var common *Chunk
	if opts.commonsEnabled() {
		counted := opts.CommonChunks
		if len(counted) == 0 {
			counted = entryNames
		}
		qualifies := func(id string) bool {
			n := 0
			for _, e := range reach(id) {
				if slices.Contains(counted, e) {
					n++
				}
			}
			return n >= opts.MinChunks
		}
		common = &Chunk{ID: opts.CommonName, Name: opts.CommonName, Kind: KindCommon}
		collect := func(m *module.Module) {
			if !shared[m.ID] && qualifies(m.ID) {
				shared[m.ID] = true
				common.Members = append(common.Members, m)
			}
		}
		for _, name := range entryNames {
			for _, m := range syncOrder[name] {
				collect(m)
			}
		}
		for _, order := range allOrder {
			for _, m := range order {
				if len(syncReach[m.ID]) == 0 {
					collect(m)
				}
			}
		}
		if len(common.Members) == 0 {
			common = nil
		} else {
			for _, m := range common.Members {
				for _, e := range reach(m.ID) {
					if !slices.Contains(common.OwningEntries, e) {
						common.OwningEntries = append(common.OwningEntries, e)
					}
				}
			}
			common.OwningEntries = inEntryOrder(common.OwningEntries, entryNames)
			p.add(common)
		}
	}

	for _, e := range entries {
		c := &Chunk{ID: e.Name, Name: e.Name, Kind: KindEntry, OwningEntries: []string{e.Name}, Origin: e.Module}
		for _, m := range syncOrder[e.Name] {
			if shared[m.ID] {
				continue
			}
			c.Members = append(c.Members, m)
		}
		if common != nil && slices.Contains(common.OwningEntries, e.Name) {
			c.require(common.ID)
		}
		p.add(c)
	}

	// loaded reports whether every page of owners already has the module.
	loaded := func(id string, owners []string) bool {
		if shared[id] {
			return true
		}
		for _, o := range owners {
			if !p.byID[o].Has(id) {
				return false
			}
		}
		return true
	}

	seq := 0
	nextID := func() string {
		for {
			id := strconv.Itoa(seq)
			seq++
			if _, taken := p.byID[id]; !taken {
				return id
			}
		}
	}
	placed := map[string]*Chunk{}
	for _, site := range g.Modules() {
		for _, d := range site.Dependencies {
			if d.Kind != module.DepAsync {
				continue
			}
			if _, done := p.async[d.Target.ID]; done {
				continue
			}
			owners := allReach[d.Target.ID]
			c := &Chunk{Kind: KindAsync, Name: baseName(d.Target.ID), Origin: d.Target, OwningEntries: owners}
			g.Walk(d.Target, true, func(m *module.Module) bool {
				if loaded(m.ID, owners) {
					return true
				}
				if prev, ok := placed[m.ID]; ok {
					c.require(prev.ID)
					return true
				}
				c.Members = append(c.Members, m)
				return true
			})
			if len(c.Members) == 0 && len(c.Requires) == 0 {
				continue
			}
			c.ID = nextID()
			for _, m := range c.Members {
				placed[m.ID] = c
			}
			if common != nil && dependsOn(c, common) {
				c.require(common.ID)
			}
			p.async[d.Target.ID] = c
			p.add(c)
		}
	}
	return p, nil
}

// dependsOn reports whether any member of c has a sync dependency in other.
func dependsOn(c, other *Chunk) bool {
	for _, m := range c.Members {
		for _, d := range m.Dependencies {
			if d.Kind == module.DepSync && other.Has(d.Target.ID) {
				return true
			}
		}
	}
	return c.Origin != nil && other.Has(c.Origin.ID)
}

func inEntryOrder(names, order []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range order {
		if slices.Contains(names, n) {
			out = append(out, n)
		}
	}
	return out
}

func baseName(id string) string {
	base := path.Base(id)
	return strings.TrimSuffix(base, path.Ext(base))
}
