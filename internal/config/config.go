package config

import (
	"path/filepath"
	"time"
)

// Config is the complete pipeline configuration loaded from assetpipe.yaml (or .toml).
type Config struct {
	// Context is the project root against which entries, rules and pages resolve.
	// Relative values are interpreted from the directory containing the config file.
	Context string            `yaml:"context"`
	Entries Entries           `yaml:"entries"`
	Output  OutputConfig      `yaml:"output"`
	Resolve ResolveConfig     `yaml:"resolve"`
	Rules   []RuleConfig      `yaml:"rules,omitempty"`
	Provide map[string]string `yaml:"provide,omitempty"`
	Commons CommonsConfig     `yaml:"commons"`
	Pages   []PageConfig      `yaml:"pages,omitempty"`
	Build   BuildConfig       `yaml:"build"`
	Cache   CacheConfig       `yaml:"cache"`
	Dev     DevConfig         `yaml:"dev"`
	Logging LoggingConfig     `yaml:"logging"`

	// baseDir is the directory of the loaded file; empty for in-memory configs.
	baseDir string
}

// OutputConfig controls artifact naming and placement.
type OutputConfig struct {
	Path          string `yaml:"path"`           // Output directory (promoted atomically)
	PublicPath    string `yaml:"public_path"`    // URL prefix artifacts are served under
	Filename      string `yaml:"filename"`       // Entry and common script chunks
	ChunkFilename string `yaml:"chunk_filename"` // Async script chunks
	StyleFilename string `yaml:"style_filename"` // Extracted stylesheets
	Hashing       bool   `yaml:"hashing"`
	HashLength    int    `yaml:"hash_length"`
}

// ResolveConfig controls how reference specifiers map to files.
type ResolveConfig struct {
	Extensions  []string          `yaml:"extensions"`
	ModulesDir  string            `yaml:"modules_dir"`
	Alias       map[string]string `yaml:"alias,omitempty"`
	AllowCycles *bool             `yaml:"allow_cycles,omitempty"`
}

// CyclesAllowed reports whether cyclic module graphs are accepted (default true).
func (r ResolveConfig) CyclesAllowed() bool {
	return r.AllowCycles == nil || *r.AllowCycles
}

// RuleConfig binds a transform chain to module IDs matching Test.
type RuleConfig struct {
	Test    string      `yaml:"test"`
	Exclude string      `yaml:"exclude,omitempty"`
	Use     []UseConfig `yaml:"use"`
}

// UseConfig names one transform of a chain with its options.
type UseConfig struct {
	Name    string         `yaml:"name"`
	Options map[string]any `yaml:"options,omitempty"`
}

// CommonsConfig controls shared-module extraction.
type CommonsConfig struct {
	Name      string   `yaml:"name"`
	Chunks    []string `yaml:"chunks,omitempty"`
	MinChunks int      `yaml:"min_chunks"`
	Disabled  bool     `yaml:"disabled,omitempty"`

	nameSpecified bool
}

// Enabled reports whether a common chunk may be produced.
func (c CommonsConfig) Enabled() bool {
	return !c.Disabled && c.Name != "" && c.MinChunks >= 2
}

// PageConfig describes one generated HTML shell.
type PageConfig struct {
	Template string         `yaml:"template"`
	Filename string         `yaml:"filename"`
	Favicon  string         `yaml:"favicon,omitempty"`
	Inject   InjectPosition `yaml:"inject"`
	Hash     bool           `yaml:"hash,omitempty"`
	Chunks   []string       `yaml:"chunks"`
	Minify   MinifyConfig   `yaml:"minify,omitempty"`
}

// MinifyConfig toggles HTML shell minification steps.
type MinifyConfig struct {
	RemoveComments     bool `yaml:"remove_comments,omitempty"`
	CollapseWhitespace bool `yaml:"collapse_whitespace,omitempty"`
}

// BuildConfig tunes the build run.
type BuildConfig struct {
	Concurrency int `yaml:"concurrency"` // Transform worker pool size
}

// CacheConfig controls the transform cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Backend CacheBackend  `yaml:"backend,omitempty"`
	Dir     string        `yaml:"dir"`
	MaxAge  time.Duration `yaml:"max_age"` // sqlite entries older than this are pruned on open
}

// DevConfig controls the dev session (serve command).
type DevConfig struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	Watch       StringList    `yaml:"watch"`
	LiveReload  bool          `yaml:"live_reload"`
	Debounce    time.Duration `yaml:"debounce"`
	NATSURL     string        `yaml:"nats_url,omitempty"`
	NATSSubject string        `yaml:"nats_subject,omitempty"`
	Metrics     bool          `yaml:"metrics,omitempty"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// BaseDir returns the directory the configuration was loaded from.
func (c *Config) BaseDir() string { return c.baseDir }

// SetBaseDir overrides the directory relative paths resolve from.
func (c *Config) SetBaseDir(dir string) { c.baseDir = dir }

// Root returns the absolute project root.
func (c *Config) Root() string {
	root := c.Context
	if root == "" {
		root = "."
	}
	if !filepath.IsAbs(root) {
		root = filepath.Join(c.baseDir, root)
	}
	if abs, err := filepath.Abs(root); err == nil {
		return abs
	}
	return filepath.Clean(root)
}

// ResolvePath makes p absolute relative to the project root.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root(), filepath.FromSlash(p))
}

// OutputDir returns the absolute output directory.
func (c *Config) OutputDir() string { return c.ResolvePath(c.Output.Path) }

// CacheDir returns the absolute transform cache directory.
func (c *Config) CacheDir() string { return c.ResolvePath(c.Cache.Dir) }

// EntryNames returns entry names in declaration order.
func (c *Config) EntryNames() []string {
	names := make([]string, len(c.Entries))
	for i, e := range c.Entries {
		names[i] = e.Name
	}
	return names
}
