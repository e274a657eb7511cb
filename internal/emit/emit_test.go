package emit

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetpipe/internal/builderr"
	"git.home.luguber.info/inful/assetpipe/internal/chunk"
	"git.home.luguber.info/inful/assetpipe/internal/config"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/module"
	"git.home.luguber.info/inful/assetpipe/internal/transform"
)

var projectFiles = map[string]string{
	"a.js":      `require("./shared"); require("./style.css"); button.onclick = function () { import("./lazy"); };`,
	"b.js":      `require("./shared");`,
	"shared.js": `module.exports = 1;`,
	"style.css": `@import "./base.css"; body { background: url(./bg.png) }`,
	"base.css":  `html { color: red }`,
	"bg.png":    "PNG",
	"lazy.js":   `module.exports = "lazy";`,
	"page.html": "<!DOCTYPE html><html><head><title>T</title><!-- note --></head><body>\n  <p>hi   there</p>\n</body></html>",
	"icon.ico":  "ICO",
}

type fixture struct {
	root  string
	graph *module.Graph
	plan  *chunk.Plan
}

func setup(t *testing.T, commons chunk.Options) *fixture {
	t.Helper()
	root := t.TempDir()
	for p, content := range projectFiles {
		if err := os.WriteFile(filepath.Join(root, p), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	rules := []config.RuleConfig{
		{Test: `\.css$`, Use: []config.UseConfig{{Name: "css"}, {Name: "extract-style"}}},
		{Test: `\.png$`, Use: []config.UseConfig{{Name: "file", Options: map[string]any{"name": "img/[name].[ext]"}}}},
	}
	p, err := transform.NewPipeline(rules, nil, transform.Env{PublicPath: "/", HashLength: 8})
	require.NoError(t, err)
	g, err := module.NewBuilder(module.NewResolver(root, []string{".js"}, "", nil), p).
		Build(context.Background(), []module.EntryPoint{{Name: "index", ModulePath: "a.js"}, {Name: "about", ModulePath: "b.js"}})
	require.NoError(t, err)
	plan, err := chunk.New(g, commons)
	require.NoError(t, err)
	return &fixture{root: root, graph: g, plan: plan}
}

var baseOptions = Options{
	PublicPath:    "/",
	Filename:      "js/[name].js",
	ChunkFilename: "js/[id].chunk.js",
	StyleFilename: "css/[name].css",
	HashLength:    8,
}

var vendors = chunk.Options{CommonName: "vendors", MinChunks: 2}

func paths(res *Result) []string {
	out := make([]string, len(res.Artifacts))
	for i, a := range res.Artifacts {
		out[i] = a.OutputPath
	}
	return out
}

func readOut(t *testing.T, dir, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("read %s: %v", rel, err)
	}
	return string(data)
}

func TestExpandName(t *testing.T) {
	assert.Equal(t, "js/index.js", expandName("js/[name].js", "index", "index", "abc", "js", false))
	assert.Equal(t, "js/index.abc.js", expandName("js/[name].js", "index", "index", "abc", "js", true))
	assert.Equal(t, "js/0.abc.js", expandName("./js/[id].[chunkhash].[ext]", "lazy", "0", "abc", "js", true))
}

func TestEmit_Artifacts(t *testing.T) {
	f := setup(t, vendors)
	dir := t.TempDir()
	res, err := New(baseOptions, f.root).Emit(context.Background(), f.graph, f.plan, dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"img/bg.png", "js/0.chunk.js", "js/vendors.js", "css/index.css", "js/index.js", "js/about.js"}, paths(res))
	assert.Equal(t, "PNG", readOut(t, dir, "img/bg.png"))

	css := readOut(t, dir, "css/index.css")
	assert.Contains(t, css, `url("/img/bg.png")`)
	assert.NotContains(t, css, "@import")
	assert.Less(t, strings.Index(css, "color: red"), strings.Index(css, "background"), "imported stylesheet comes first")

	index := readOut(t, dir, "js/index.js")
	assert.Contains(t, index, `ap.modules["a.js"] = [function (module, exports, require) {`)
	assert.Contains(t, index, `require.async("./lazy")`)
	assert.Contains(t, index, `ap.modules["bg.png"]`)
	assert.Contains(t, index, `module.exports = "/img/bg.png";`)
	assert.NotContains(t, index, `ap.modules["shared.js"]`)
	assert.NotContains(t, index, `ap.modules["style.css!style"]`)
	assert.Contains(t, index, `ap.manifest["vendors"] = {"url":"/js/vendors.js"};`)
	assert.Contains(t, index, `ap.manifest["0"] = {"url":"/js/0.chunk.js"};`)
	assert.Contains(t, index, `ap.targets["lazy.js"] = "0";`)
	assert.Contains(t, index, `ap.start(["vendors"], "a.js");`)
	assert.True(t, strings.HasPrefix(index, runtimeSource))

	common := readOut(t, dir, "js/vendors.js")
	assert.Contains(t, common, `ap.modules["shared.js"]`)
	assert.Contains(t, common, `ap.loaded["vendors"] = true;`)
	assert.NotContains(t, common, "ap.start(")

	lazy := readOut(t, dir, "js/0.chunk.js")
	assert.False(t, strings.HasPrefix(lazy, runtimeSource), "async chunks rely on the loaded runtime")
	assert.Contains(t, lazy, `ap.modules["lazy.js"]`)

	a, ok := res.ForModule("bg.png!file")
	require.True(t, ok)
	assert.Equal(t, "/img/bg.png", a.URL)
	assert.Len(t, res.ForChunk("index"), 2)
}

func TestEmit_HashingIsDeterministic(t *testing.T) {
	f := setup(t, vendors)
	opts := baseOptions
	opts.Hashing = true

	dirA, dirB := t.TempDir(), t.TempDir()
	first, err := New(opts, f.root).Emit(context.Background(), f.graph, f.plan, dirA)
	require.NoError(t, err)
	again := setup(t, vendors)
	second, err := New(opts, again.root).Emit(context.Background(), again.graph, again.plan, dirB)
	require.NoError(t, err)

	assert.Equal(t, paths(first), paths(second))
	for i, a := range first.Artifacts {
		assert.Equal(t, a.ContentHash, second.Artifacts[i].ContentHash, a.OutputPath)
		assert.Equal(t, readOut(t, dirA, a.OutputPath), readOut(t, dirB, a.OutputPath))
	}
	index := first.ForChunk("index")[1]
	assert.Equal(t, "js/index."+index.ContentHash+".js", index.OutputPath)
	assert.Len(t, index.ContentHash, 8)
}

func TestEmit_OutputCollision(t *testing.T) {
	f := setup(t, chunk.Options{})
	opts := baseOptions
	opts.Filename = "js/app.js"
	dir := t.TempDir()
	_, err := New(opts, f.root).Emit(context.Background(), f.graph, f.plan, dir)
	var oc *builderr.OutputCollisionError
	require.ErrorAs(t, err, &oc)
	assert.Equal(t, "js/app.js", oc.Path)
	assert.Equal(t, "chunk index (script)", oc.First)
	assert.Equal(t, "chunk about (script)", oc.Second)
	_, statErr := os.Stat(filepath.Join(dir, "js"))
	assert.True(t, os.IsNotExist(statErr), "nothing is written when naming fails")
}

func TestRenderPages(t *testing.T) {
	f := setup(t, vendors)
	dir := t.TempDir()
	e := New(baseOptions, f.root)
	res, err := e.Emit(context.Background(), f.graph, f.plan, dir)
	require.NoError(t, err)

	pages := []config.PageConfig{
		{Template: "page.html", Filename: "view/index.html", Favicon: "icon.ico", Inject: config.InjectBody, Hash: true,
			Chunks: []string{"vendors", "index"}, Minify: config.MinifyConfig{RemoveComments: true, CollapseWhitespace: true}},
		{Template: "page.html", Filename: "view/about.html", Inject: config.InjectHead, Chunks: []string{"vendors", "about"}},
		{Template: "page.html", Filename: "view/plain.html", Inject: config.InjectNone, Chunks: []string{"index"}},
	}
	shells, err := e.RenderPages(context.Background(), res, f.plan, pages, "vendors", dir)
	require.NoError(t, err)
	require.Len(t, shells, 3)

	index := readOut(t, dir, "view/index.html")
	assert.NotContains(t, index, "<!-- note -->")
	assert.Contains(t, index, "<p>hi there</p>")
	assert.Contains(t, index, `<link rel="icon" href="/icon.ico"/>`)
	assert.Equal(t, "ICO", readOut(t, dir, "icon.ico"))
	assert.NotContains(t, index, "about.js")
	body := strings.Index(index, "<body>")
	vendorsAt := strings.Index(index, `<script src="/js/vendors.js?`)
	indexAt := strings.Index(index, `<script src="/js/index.js?`)
	assert.Greater(t, vendorsAt, body)
	assert.Greater(t, indexAt, vendorsAt)
	assert.Less(t, strings.Index(index, `<link href="/css/index.css?`), strings.Index(index, "</head>"))
	require.Len(t, shells[0].Injected, 3)
	assert.True(t, strings.HasPrefix(shells[0].Injected[0], "/js/vendors.js?"))

	about := readOut(t, dir, "view/about.html")
	assert.Less(t, strings.Index(about, `<script src="/js/about.js"></script>`), strings.Index(about, "</head>"))
	assert.Contains(t, about, "<!-- note -->")
	assert.NotContains(t, about, "index.js")
	assert.NotContains(t, about, "index.css")

	plain := readOut(t, dir, "view/plain.html")
	assert.NotContains(t, plain, "<script")
	assert.Empty(t, shells[2].Injected)

	_, err = e.RenderPages(context.Background(), res, f.plan,
		[]config.PageConfig{{Template: "page.html", Filename: "x.html", Inject: config.InjectBody, Chunks: []string{"admin"}}}, "vendors", dir)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))

	_, err = e.RenderPages(context.Background(), res, f.plan,
		[]config.PageConfig{{Template: "page.html", Filename: "js/index.js", Inject: config.InjectBody, Chunks: []string{"index"}}}, "vendors", dir)
	var oc *builderr.OutputCollisionError
	require.ErrorAs(t, err, &oc)
}
