package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Example returns the configuration written by `assetpipe init`: two pages
// sharing a vendors chunk, extracted stylesheets and inlined small images.
func Example() *Config {
	allow := true
	return &Config{
		Context: ".",
		Entries: Entries{
			{Name: "index", Path: "./src/js/page/index.js"},
			{Name: "about", Path: "./src/js/page/about.js"},
		},
		Output: OutputConfig{
			Path:          "dist",
			PublicPath:    "/dist/",
			Filename:      "js/[name].js",
			ChunkFilename: "js/[id].chunk.js",
			StyleFilename: "css/[name].css",
			HashLength:    20,
		},
		Resolve: ResolveConfig{
			Extensions:  []string{".js", ".json"},
			ModulesDir:  "node_modules",
			AllowCycles: &allow,
		},
		Rules: []RuleConfig{
			{Test: `\.css$`, Use: []UseConfig{{Name: "css"}, {Name: "extract-style"}}},
			{Test: `\.less$`, Use: []UseConfig{
				{Name: "command", Options: map[string]any{"cmd": "lessc", "args": []any{"-"}}},
				{Name: "css"},
				{Name: "extract-style"},
			}},
			{Test: `\.html$`, Exclude: `^src/view/`, Use: []UseConfig{
				{Name: "html", Options: map[string]any{"attrs": []any{"img:src", "img:data-src"}}},
			}},
			{Test: `\.(woff|woff2|ttf|eot|svg)$`, Use: []UseConfig{
				{Name: "file", Options: map[string]any{"name": "fonts/[name].[ext]"}},
			}},
			{Test: `\.(png|jpg|gif)$`, Use: []UseConfig{
				{Name: "url", Options: map[string]any{"limit": 8192, "name": "img/[hash].[ext]"}},
			}},
		},
		Provide: map[string]string{"$": "jquery"},
		Commons: CommonsConfig{Name: "vendors", Chunks: []string{"index", "about"}, MinChunks: 2},
		Pages: []PageConfig{
			{
				Template: "./src/view/index.html",
				Filename: "view/index.html",
				Favicon:  "./src/img/favicon.ico",
				Inject:   InjectBody,
				Hash:     true,
				Chunks:   []string{"vendors", "index"},
				Minify:   MinifyConfig{RemoveComments: true},
			},
			{
				Template: "./src/view/about.html",
				Filename: "view/about.html",
				Favicon:  "./src/img/favicon.ico",
				Inject:   InjectBody,
				Hash:     true,
				Chunks:   []string{"vendors", "about"},
				Minify:   MinifyConfig{RemoveComments: true},
			},
		},
		Build: BuildConfig{Concurrency: 4},
		Cache: CacheConfig{Enabled: true, Backend: CacheBackendSQLite, Dir: ".assetpipe-cache", MaxAge: DefaultCacheMaxAge},
		Dev: DevConfig{
			Host:        "localhost",
			Port:        9090,
			Watch:       StringList{"./src"},
			LiveReload:  true,
			Debounce:    300 * time.Millisecond,
			NATSSubject: "assetpipe.rebuild",
		},
		Logging: LoggingConfig{Level: LogLevelInfo, Format: LogFormatText},
	}
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	data, err := yaml.Marshal(Example())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
