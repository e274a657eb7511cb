package transform

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/module"
)

func newBuiltin(t *testing.T, name string, opts map[string]any, env Env) Transform {
	t.Helper()
	tr, err := DefaultRegistry().New(name, Options{Values: opts, Env: env})
	if err != nil {
		t.Fatalf("new %s: %v", name, err)
	}
	return tr
}

func apply(t *testing.T, tr Transform, id, src string) Output {
	t.Helper()
	out, err := tr.Apply(context.Background(), Input{ID: id, Bytes: []byte(src), Family: module.FamilyScript})
	require.NoError(t, err)
	return out
}

func TestCSS_CollectsReferences(t *testing.T) {
	src := `@import "./base.css";
@import url(https://fonts.example/x.css);
@import '~normalize.css/normalize.css';
body { background: url('img/bg.png'); }
.a { background: url(data:image/png;base64,AAA); }
.b { background: url(#grad); }
`
	out := apply(t, newBuiltin(t, "css", nil, Env{}), "src/app.css", src)
	assert.Equal(t, module.FamilyStyle, out.Family)
	assert.Equal(t, []module.Reference{
		{Specifier: "./base.css", Kind: module.DepSync},
		{Specifier: "normalize.css/normalize.css", Kind: module.DepSync},
		{Specifier: "./img/bg.png", Kind: module.DepSync},
	}, out.References)

	css := string(out.Bytes)
	assert.NotContains(t, css, "base.css")
	assert.NotContains(t, css, "normalize.css")
	assert.Contains(t, css, "@import url(https://fonts.example/x.css);")
	assert.Contains(t, css, "url('img/bg.png')")
}

func TestCSS_Options(t *testing.T) {
	src := `@import "./base.css"; a { background: url(bg.png) }`
	out := apply(t, newBuiltin(t, "css", map[string]any{"keep_imports": true, "url": false}, Env{}), "a.css", src)
	assert.Empty(t, out.References)
	assert.Equal(t, src, string(out.Bytes))
}

func TestNormalizeReference(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"img/a.png", "./img/a.png", true},
		{"./a.png", "./a.png", true},
		{"../a.png", "../a.png", true},
		{"/abs.png", "/abs.png", true},
		{"~pkg/a.css", "pkg/a.css", true},
		{"https://x/a.png", "", false},
		{"//cdn/a.png", "", false},
		{"data:image/png;base64,AA", "", false},
		{"mailto:me@example.com", "", false},
		{"#frag", "", false},
		{"", "", false},
		{"{{ .Src }}", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeReference(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestExtractStyle(t *testing.T) {
	rules := []config.RuleConfig{{Test: `\.css$`, Use: []config.UseConfig{use("css", nil), use("extract-style", nil)}}}
	p, err := NewPipeline(rules, nil, Env{})
	require.NoError(t, err)

	src := "a { background: url(./bg.png) }"
	out, err := p.Apply(context.Background(), module.Source{ID: "a.css", Raw: []byte(src)})
	require.NoError(t, err)
	assert.Equal(t, module.FamilyScript, out.Family)
	assert.Equal(t, "style", out.Meta[module.MetaExtracted])
	assert.Empty(t, out.References)
	require.Len(t, out.SideArtifacts, 1)
	side := out.SideArtifacts[0]
	assert.Equal(t, "style", side.Name)
	assert.Equal(t, module.FamilyStyle, side.Family)
	assert.Equal(t, src, string(side.Content))
	assert.Equal(t, []module.Reference{{Specifier: "./bg.png", Kind: module.DepSync}}, side.References)

	_, err = newBuiltin(t, "extract-style", nil, Env{}).Apply(context.Background(), Input{ID: "a.css", Family: module.FamilyScript})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "css transform")
}

func TestHTML(t *testing.T) {
	src := `<div class="x"><img src="./a.png"><img src="https://x/y.png"><img data-src="b.png"></div>`

	out := apply(t, newBuiltin(t, "html", nil, Env{}), "tpl/a.html", src)
	js := string(out.Bytes)
	assert.True(t, strings.HasPrefix(js, `module.exports = "<div class=\"x\"><img src=\"" + require("./a.png") + "\"/>`), js)
	assert.Contains(t, js, `https://x/y.png`)
	assert.Contains(t, js, `data-src=\"b.png\"`)
	assert.NotContains(t, js, placeholderPrefix)

	out = apply(t, newBuiltin(t, "html", map[string]any{"attrs": []string{"img:src", "img:data-src"}}, Env{}), "tpl/a.html", src)
	refs := module.ScanReferences(out.Bytes)
	assert.Equal(t, []module.Reference{
		{Specifier: "./a.png", Kind: module.DepSync},
		{Specifier: "./b.png", Kind: module.DepSync},
	}, refs)

	_, err := DefaultRegistry().New("html", Options{Values: map[string]any{"attrs": []string{"src"}}})
	require.Error(t, err)
}

func TestHTML_Minimize(t *testing.T) {
	src := "<ul>\n  <!-- note -->\n  <li>a</li>\n</ul>\n"
	out := apply(t, newBuiltin(t, "html", map[string]any{"minimize": true}, Env{}), "a.html", src)
	assert.Equal(t, "module.exports = \"<ul><li>a</li></ul>\";\n", string(out.Bytes))
}

func TestMarkdown(t *testing.T) {
	src := "# Title\n\n![logo](./logo.png)\n\n| a | b |\n|---|---|\n| 1 | 2 |\n"
	out := apply(t, newBuiltin(t, "markdown", nil, Env{}), "docs/a.md", src)
	js := string(out.Bytes)
	assert.Contains(t, js, "<h1>Title</h1>")
	assert.Contains(t, js, "<table>")
	assert.Contains(t, js, `require("./logo.png")`)
	assert.Equal(t, []module.Reference{{Specifier: "./logo.png", Kind: module.DepSync}}, module.ScanReferences(out.Bytes))

	out = apply(t, newBuiltin(t, "markdown", map[string]any{"gfm": false, "images": false}, Env{}), "docs/a.md", src)
	assert.NotContains(t, string(out.Bytes), "<table>")
	assert.Empty(t, module.ScanReferences(out.Bytes))
}

func TestJSONAndRaw(t *testing.T) {
	out := apply(t, newBuiltin(t, "json", nil, Env{}), "a.json", `{ "a": [1, 2] }`)
	assert.Equal(t, "module.exports = {\"a\":[1,2]};\n", string(out.Bytes))

	_, err := newBuiltin(t, "json", nil, Env{}).Apply(context.Background(), Input{ID: "b.json", Bytes: []byte("{")})
	require.Error(t, err)

	_, err = DefaultRegistry().New("json", Options{Values: map[string]any{"x": 1}})
	require.Error(t, err)

	out = apply(t, newBuiltin(t, "raw", nil, Env{}), "a.txt", "hi \"x\"\n")
	assert.Equal(t, "module.exports = \"hi \\\"x\\\"\\n\";\n", string(out.Bytes))
}

func TestFile(t *testing.T) {
	sum := sha256.Sum256([]byte("PNG"))
	hash := hex.EncodeToString(sum[:])[:8]

	out := apply(t, newBuiltin(t, "file", map[string]any{"name": "img/[name]-[hash].[ext]"}, Env{PublicPath: "/static/", HashLength: 8}),
		"src/img/logo.png", "PNG")
	url := "/static/img/logo-" + hash + ".png"
	assert.Equal(t, module.FamilyScript, out.Family)
	assert.Equal(t, url, out.Meta[module.MetaURL])
	assert.Equal(t, "module.exports = \""+url+"\";\n", string(out.Bytes))
	require.Len(t, out.SideArtifacts, 1)
	side := out.SideArtifacts[0]
	assert.Equal(t, module.FamilyAsset, side.Family)
	assert.Equal(t, "PNG", string(side.Content))
	assert.Equal(t, "img/logo-"+hash+".png", side.Meta[module.MetaOutputName])
}

func TestExpandAssetName(t *testing.T) {
	assert.Equal(t, "src/a/b.svg", ExpandAssetName("[path][name].[ext]", "src/a/b.svg", nil, 0))
	assert.Equal(t, "b.svg", ExpandAssetName("./[path][name].[ext]", "b.svg", nil, 0))
	full := ExpandAssetName("[hash]", "b.svg", []byte("x"), 0)
	assert.Len(t, full, 64)
	assert.Equal(t, full[:12], ExpandAssetName("[hash]", "b.svg", []byte("x"), 12))
}

func TestURL(t *testing.T) {
	tr := newBuiltin(t, "url", map[string]any{"limit": 8, "name": "[name].[ext]"}, Env{PublicPath: "/"})

	out := apply(t, tr, "icons/x.svg", "abc")
	assert.Equal(t, "data:image/svg+xml;base64,YWJj", out.Meta[module.MetaURL])
	assert.Empty(t, out.SideArtifacts)

	out = apply(t, tr, "icons/big.svg", "0123456789")
	assert.Equal(t, "/big.svg", out.Meta[module.MetaURL])
	require.Len(t, out.SideArtifacts, 1)

	out = apply(t, newBuiltin(t, "url", map[string]any{"limit": 100, "mimetype": "image/x-test"}, Env{}), "a.bin", "z")
	assert.Equal(t, "data:image/x-test;base64,eg==", out.Meta[module.MetaURL])

	_, err := DefaultRegistry().New("url", Options{Values: map[string]any{"limit": -1}})
	require.Error(t, err)
}

func TestCommand(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	tr := newBuiltin(t, "command", map[string]any{"cmd": "sh", "args": []string{"-c", "tr a-z A-Z"}, "family": "style"}, Env{})
	out := apply(t, tr, "a.less", "body{}")
	assert.Equal(t, "BODY{}", string(out.Bytes))
	assert.Equal(t, module.FamilyStyle, out.Family)

	failing := newBuiltin(t, "command", map[string]any{"cmd": "sh", "args": []string{"-c", "echo oops >&2; exit 3"}}, Env{})
	_, err := failing.Apply(context.Background(), Input{ID: "a.less"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oops")

	slow := newBuiltin(t, "command", map[string]any{"cmd": "sh", "args": []string{"-c", "exec sleep 5"}, "timeout": "50ms"}, Env{})
	_, err = slow.Apply(context.Background(), Input{ID: "a.less"})
	require.Error(t, err)

	assert.False(t, isCacheable(tr), "command output may depend on files outside the module")
	cached := newBuiltin(t, "command", map[string]any{"cmd": "sh", "cache": true}, Env{})
	assert.True(t, isCacheable(cached))
	assert.True(t, isCacheable(newBuiltin(t, "raw", nil, Env{})))

	_, err = DefaultRegistry().New("command", Options{})
	require.Error(t, err)
	_, err = DefaultRegistry().New("command", Options{Values: map[string]any{"cmd": "x", "family": "video"}})
	require.Error(t, err)
}
