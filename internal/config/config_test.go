package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadConfig(t *testing.T) {
	configContent := "context: .\n" +
		"entries:\n" +
		"  index: ./src/js/page/index.js\n" +
		"  about: ./src/js/page/about.js\n" +
		"output:\n" +
		"  path: dist\n" +
		"  public_path: /dist\n" +
		"rules:\n" +
		"  - test: '\\.css$'\n" +
		"    use: [css, extract-style]\n" +
		"  - test: '\\.(png|jpg|gif)$'\n" +
		"    use:\n" +
		"      - name: url\n" +
		"        options: {limit: 8192, name: 'img/[hash].[ext]'}\n" +
		"provide: {$: jquery}\n" +
		"commons: {chunks: [index, about]}\n" +
		"pages:\n" +
		"  - template: ./src/view/index.html\n" +
		"    filename: view/index.html\n" +
		"    inject: true\n" +
		"    hash: true\n" +
		"    chunks: [vendors, index]\n" +
		"dev:\n" +
		"  watch: ./src\n" +
		"  debounce: 150ms\n" +
		"logging: {level: DEBUG}\n"

	cfg, err := Load(writeConfig(t, "assetpipe.yaml", configContent))
	require.NoError(t, err)

	// Entry declaration order survives decoding
	assert.Equal(t, []string{"index", "about"}, cfg.EntryNames())
	assert.Equal(t, "./src/js/page/about.js", cfg.Entries[1].Path)

	assert.Equal(t, "/dist/", cfg.Output.PublicPath)
	assert.Equal(t, "js/[name].js", cfg.Output.Filename)
	assert.Equal(t, 20, cfg.Output.HashLength)

	require.Len(t, cfg.Rules, 2)
	assert.Equal(t, []UseConfig{{Name: "css"}, {Name: "extract-style"}}, cfg.Rules[0].Use)
	assert.Equal(t, "url", cfg.Rules[1].Use[0].Name)
	assert.Equal(t, 8192, cfg.Rules[1].Use[0].Options["limit"])

	assert.Equal(t, "vendors", cfg.Commons.Name)
	assert.Equal(t, 2, cfg.Commons.MinChunks)
	assert.True(t, cfg.Commons.Enabled())

	require.Len(t, cfg.Pages, 1)
	assert.Equal(t, InjectBody, cfg.Pages[0].Inject)

	assert.Equal(t, StringList{"./src"}, cfg.Dev.Watch)
	assert.Equal(t, 150*time.Millisecond, cfg.Dev.Debounce)
	assert.Equal(t, DefaultCacheMaxAge, cfg.Cache.MaxAge)
	assert.Equal(t, LogLevelDebug, cfg.Logging.Level)
	assert.True(t, cfg.Resolve.CyclesAllowed())
	assert.Equal(t, filepath.Join(cfg.Root(), "dist"), cfg.OutputDir())
}

func TestLoadConfig_EntryList(t *testing.T) {
	content := "entries:\n" +
		"  - {name: b, path: ./b.js}\n" +
		"  - {name: a, path: ./a.js}\n"
	cfg, err := Load(writeConfig(t, "assetpipe.yaml", content))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, cfg.EntryNames())
}

func TestLoadConfig_RejectsUnknownKeys(t *testing.T) {
	cases := map[string]string{
		"top level":   "entries: {a: ./a.js}\nbogus: 1\n",
		"nested":      "entries: {a: ./a.js}\noutput: {paht: dist}\n",
		"use mapping": "entries: {a: ./a.js}\nrules:\n  - test: x\n    use: [{name: raw, opts: {}}]\n",
		"entry item":  "entries:\n  - {name: a, path: ./a.js, extra: 1}\n",
		"commons":     "entries: {a: ./a.js}\ncommons: {min_chunk: 2}\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "assetpipe.yaml", content))
			require.Error(t, err)
			assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig), "got %v", err)
		})
	}
}

func TestLoadConfig_ValidationErrors(t *testing.T) {
	cases := map[string]string{
		"no entries":       "output: {path: dist}\n",
		"unknown chunk":    "entries: {a: ./a.js}\npages:\n  - {template: t.html, chunks: [nope]}\n",
		"bad regexp":       "entries: {a: ./a.js}\nrules:\n  - {test: '(', use: [raw]}\n",
		"empty use":        "entries: {a: ./a.js}\nrules:\n  - {test: x, use: []}\n",
		"commons entry":    "entries: {a: ./a.js}\ncommons: {chunks: [b]}\n",
		"commons collide":  "entries: {vendors: ./a.js}\n",
		"bad provide":      "entries: {a: ./a.js}\nprovide: {'1x': jquery}\n",
		"negative max_age": "entries: {a: ./a.js}\ncache: {max_age: -1h}\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "assetpipe.yaml", content))
			require.Error(t, err)
			assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation), "got %v", err)
		})
	}
}

func TestLoadConfig_InvalidInject(t *testing.T) {
	content := "entries: {a: ./a.js}\npages:\n  - {template: t.html, inject: footer, chunks: [a]}\n"
	_, err := Load(writeConfig(t, "assetpipe.yaml", content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pages[0].inject")
}

func TestCommonsDisabled(t *testing.T) {
	cfg, err := ParseYAML([]byte("entries: {a: ./a.js, b: ./b.js}\ncommons: {name: ''}\n"))
	require.NoError(t, err)
	require.NoError(t, Finalize(cfg))
	assert.False(t, cfg.Commons.Enabled())

	cfg, err = ParseYAML([]byte("entries: {a: ./a.js}\ncommons: {min_chunks: 1}\n"))
	require.NoError(t, err)
	require.NoError(t, Finalize(cfg))
	assert.False(t, cfg.Commons.Enabled())

	cfg, err = ParseYAML([]byte("entries: {a: ./a.js}\ncommons: {disabled: true}\n"))
	require.NoError(t, err)
	require.NoError(t, Finalize(cfg))
	assert.False(t, cfg.Commons.Enabled())
}

func TestLoadConfig_TOML(t *testing.T) {
	content := `
[[entries]]
name = "index"
path = "./index.js"

[[entries]]
name = "about"
path = "./about.js"

[output]
path = "public"
hashing = true

[[rules]]
test = '\.json$'
use = ["json"]

[[pages]]
template = "page.html"
inject = false
chunks = ["index"]

[cache]
max_age = "48h"

[dev]
debounce = "1s"
`
	cfg, err := Load(writeConfig(t, "assetpipe.toml", content))
	require.NoError(t, err)
	assert.Equal(t, []string{"index", "about"}, cfg.EntryNames())
	assert.Equal(t, "public", cfg.Output.Path)
	assert.True(t, cfg.Output.Hashing)
	assert.Equal(t, InjectNone, cfg.Pages[0].Inject)
	assert.Equal(t, time.Second, cfg.Dev.Debounce)
	assert.Equal(t, 48*time.Hour, cfg.Cache.MaxAge)
}

func TestLoadConfig_TOMLUnknownKey(t *testing.T) {
	content := "[[entries]]\nname = \"a\"\npath = \"./a.js\"\n\n[output]\npaht = \"x\"\n"
	_, err := Load(writeConfig(t, "assetpipe.toml", content))
	require.Error(t, err)
}

func TestLoadConfig_EnvExpansion(t *testing.T) {
	p := writeConfig(t, "assetpipe.yaml", "entries: {a: ./a.js}\noutput: {path: ${ASSETPIPE_TEST_OUT}}\n")
	envContent := "ASSETPIPE_TEST_OUT=from-dotenv\n"
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(p), ".env"), []byte(envContent), 0o600))
	t.Setenv("ASSETPIPE_TEST_OUT", "")
	require.NoError(t, os.Unsetenv("ASSETPIPE_TEST_OUT"))

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Output.Path)
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestInitRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "assetpipe.yaml")
	require.NoError(t, Init(p, false))
	require.Error(t, Init(p, false), "existing file needs force")
	require.NoError(t, Init(p, true))

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"index", "about"}, cfg.EntryNames())
	assert.Len(t, cfg.Rules, 5)
	assert.Equal(t, "jquery", cfg.Provide["$"])
	assert.Equal(t, []string{"vendors", "about"}, cfg.Pages[1].Chunks)
	assert.Equal(t, 300*time.Millisecond, cfg.Dev.Debounce)
}

func TestDefaultApplier_Domains(t *testing.T) {
	applier := NewDefaultApplier()
	for _, d := range []string{"output", "resolve", "commons", "pages", "build", "cache", "dev", "logging"} {
		assert.NotNil(t, applier.GetApplierByDomain(d), d)
	}
	assert.Nil(t, applier.GetApplierByDomain("server"))
}
