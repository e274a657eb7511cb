package chunk

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetpipe/internal/module"
)

func buildGraph(t *testing.T, files map[string]string, entries ...string) *module.Graph {
	t.Helper()
	root := t.TempDir()
	for p, content := range files {
		full := filepath.Join(root, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	eps := make([]module.EntryPoint, 0, len(entries)/2)
	for i := 0; i+1 < len(entries); i += 2 {
		eps = append(eps, module.EntryPoint{Name: entries[i], ModulePath: entries[i+1]})
	}
	g, err := module.NewBuilder(module.NewResolver(root, []string{".js"}, "", nil), nil).Build(context.Background(), eps)
	require.NoError(t, err)
	return g
}

func members(c *Chunk) []string {
	out := make([]string, len(c.Members))
	for i, m := range c.Members {
		out[i] = m.ID
	}
	return out
}

func chunkIDs(p *Plan) []string {
	var out []string
	for _, c := range p.Chunks() {
		out = append(out, c.ID)
	}
	return out
}

var vendors = Options{CommonName: "vendors", MinChunks: 2}

func TestPlan_SharedModuleMovesToCommon(t *testing.T) {
	g := buildGraph(t, map[string]string{
		"a.js":      `require("./shared");`,
		"b.js":      `require("./shared");`,
		"shared.js": ``,
	}, "index", "a.js", "about", "b.js")

	p, err := New(g, vendors)
	require.NoError(t, err)
	assert.Equal(t, []string{"vendors", "index", "about"}, chunkIDs(p))

	common := p.Common()
	require.NotNil(t, common)
	assert.Equal(t, []string{"shared.js"}, members(common))
	assert.Equal(t, []string{"index", "about"}, common.OwningEntries)

	index, _ := p.Chunk("index")
	about, _ := p.Chunk("about")
	assert.Equal(t, []string{"a.js"}, members(index))
	assert.Equal(t, []string{"b.js"}, members(about))
	assert.Equal(t, []string{"vendors"}, index.Requires)
	assert.Equal(t, []string{"vendors"}, about.Requires)
	assert.Equal(t, "a.js", index.Origin.ID)

	// Partition: every module lands in exactly one chunk
	for _, m := range g.Modules() {
		assert.Len(t, p.ChunksOf(m.ID), 1, m.ID)
	}
}

func TestPlan_CommonOrder(t *testing.T) {
	g := buildGraph(t, map[string]string{
		"index.js": `require("./a"); require("./b"); require("./own");`,
		"about.js": `require("./b"); require("./a"); require("./c");`,
		"admin.js": `require("./c");`,
		"a.js":     ``,
		"b.js":     ``,
		"c.js":     ``,
		"own.js":   ``,
	}, "index", "index.js", "about", "about.js", "admin", "admin.js")

	p, err := New(g, vendors)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.js", "b.js", "c.js"}, members(p.Common()))
	admin, _ := p.Chunk("admin")
	assert.Equal(t, []string{"admin.js"}, members(admin))
	assert.Equal(t, []string{"vendors"}, admin.Requires)

	// Three entries are required, only c is not shared widely enough
	p, err = New(g, Options{CommonName: "vendors", MinChunks: 3})
	require.NoError(t, err)
	assert.Nil(t, p.Common())
}

func TestPlan_CommonsRestrictedOrDisabled(t *testing.T) {
	g := buildGraph(t, map[string]string{
		"a.js":      `require("./shared");`,
		"b.js":      `require("./shared");`,
		"shared.js": ``,
	}, "index", "a.js", "about", "b.js")

	tests := []struct {
		name string
		opts Options
	}{
		{"disabled by empty name", Options{MinChunks: 2}},
		{"disabled by min chunks", Options{CommonName: "vendors", MinChunks: 1}},
		{"only one counted entry", Options{CommonName: "vendors", CommonChunks: []string{"index"}, MinChunks: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(g, tt.opts)
			require.NoError(t, err)
			assert.Nil(t, p.Common())
			index, _ := p.Chunk("index")
			about, _ := p.Chunk("about")
			// Below the sharing threshold shared modules are duplicated
			assert.Equal(t, []string{"a.js", "shared.js"}, members(index))
			assert.Equal(t, []string{"b.js", "shared.js"}, members(about))
			assert.Empty(t, index.Requires)
		})
	}

	_, err := New(g, Options{CommonName: "vendors", CommonChunks: []string{"missing"}, MinChunks: 2})
	require.Error(t, err)
}

func TestPlan_AsyncChunks(t *testing.T) {
	g := buildGraph(t, map[string]string{
		"index.js": `require("./util"); import("./lazy");`,
		"about.js": `import("./lazy");`,
		"lazy.js":  `require("./util"); require("./heavy");`,
		"heavy.js": `import("./later");`,
		"later.js": ``,
		"util.js":  ``,
	}, "index", "index.js", "about", "about.js")

	p, err := New(g, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"index", "about", "0", "1"}, chunkIDs(p))

	lazy, ok := p.AsyncFor("lazy.js")
	require.True(t, ok)
	assert.Equal(t, KindAsync, lazy.Kind)
	assert.Equal(t, "lazy", lazy.Name)
	// util is missing on the about page, so the async chunk carries it
	assert.Equal(t, []string{"lazy.js", "util.js", "heavy.js"}, members(lazy))
	assert.Equal(t, []string{"index", "about"}, lazy.OwningEntries)

	later, ok := p.AsyncFor("later.js")
	require.True(t, ok)
	assert.Equal(t, "1", later.ID)
	assert.Equal(t, []string{"later.js"}, members(later))

	index, _ := p.Chunk("index")
	assert.Equal(t, []string{"index.js", "util.js"}, members(index))
}

func TestPlan_AsyncRequiresEarlierAsync(t *testing.T) {
	g := buildGraph(t, map[string]string{
		"index.js": `import("./a"); import("./b");`,
		"a.js":     `require("./c");`,
		"b.js":     `require("./c");`,
		"c.js":     ``,
	}, "index", "index.js")

	p, err := New(g, vendors)
	require.NoError(t, err)
	a, _ := p.AsyncFor("a.js")
	b, _ := p.AsyncFor("b.js")
	assert.Equal(t, []string{"a.js", "c.js"}, members(a))
	assert.Equal(t, []string{"b.js"}, members(b))
	assert.Equal(t, []string{a.ID}, b.Requires)
}

func TestPlan_AsyncSharedByEntriesIsCommon(t *testing.T) {
	g := buildGraph(t, map[string]string{
		"index.js": `import("./lazy");`,
		"about.js": `import("./lazy");`,
		"lazy.js":  ``,
	}, "index", "index.js", "about", "about.js")

	p, err := New(g, vendors)
	require.NoError(t, err)
	assert.Equal(t, []string{"lazy.js"}, members(p.Common()))
	_, ok := p.AsyncFor("lazy.js")
	assert.False(t, ok, "target already loaded through the common chunk")
	assert.Empty(t, p.OfKind(KindAsync))
}
