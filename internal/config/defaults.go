package config

import (
	"fmt"
	"runtime"
	"time"
)

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// OutputDefaultApplier handles Output configuration defaults.
type OutputDefaultApplier struct{}

func (o *OutputDefaultApplier) Domain() string { return "output" }

func (o *OutputDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Output.Path == "" {
		cfg.Output.Path = "dist"
	}
	if cfg.Output.PublicPath == "" {
		cfg.Output.PublicPath = "/"
	}
	if cfg.Output.Filename == "" {
		cfg.Output.Filename = "js/[name].js"
	}
	if cfg.Output.ChunkFilename == "" {
		cfg.Output.ChunkFilename = "js/[id].chunk.js"
	}
	if cfg.Output.StyleFilename == "" {
		cfg.Output.StyleFilename = "css/[name].css"
	}
	if cfg.Output.HashLength == 0 {
		cfg.Output.HashLength = 20
	}
	return nil
}

// ResolveDefaultApplier handles module resolution defaults.
type ResolveDefaultApplier struct{}

func (r *ResolveDefaultApplier) Domain() string { return "resolve" }

func (r *ResolveDefaultApplier) ApplyDefaults(cfg *Config) error {
	if len(cfg.Resolve.Extensions) == 0 {
		cfg.Resolve.Extensions = []string{".js", ".json"}
	}
	if cfg.Resolve.ModulesDir == "" {
		cfg.Resolve.ModulesDir = "node_modules"
	}
	return nil
}

// CommonsDefaultApplier handles shared-chunk extraction defaults.
type CommonsDefaultApplier struct{}

func (c *CommonsDefaultApplier) Domain() string { return "commons" }

func (c *CommonsDefaultApplier) ApplyDefaults(cfg *Config) error {
	if !cfg.Commons.nameSpecified && cfg.Commons.Name == "" {
		cfg.Commons.Name = "vendors"
	}
	if cfg.Commons.MinChunks == 0 {
		cfg.Commons.MinChunks = 2
	}
	return nil
}

// PageDefaultApplier handles HTML shell defaults.
type PageDefaultApplier struct{}

func (p *PageDefaultApplier) Domain() string { return "pages" }

func (p *PageDefaultApplier) ApplyDefaults(cfg *Config) error {
	for i := range cfg.Pages {
		if cfg.Pages[i].Inject == "" {
			cfg.Pages[i].Inject = InjectBody
		}
		if cfg.Pages[i].Filename == "" {
			cfg.Pages[i].Filename = "index.html"
		}
	}
	return nil
}

// BuildDefaultApplier handles Build configuration defaults.
type BuildDefaultApplier struct{}

func (b *BuildDefaultApplier) Domain() string { return "build" }

func (b *BuildDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Build.Concurrency <= 0 {
		cfg.Build.Concurrency = min(runtime.NumCPU(), 8)
	}
	return nil
}

// DefaultCacheMaxAge bounds how long a persisted transform result is kept.
const DefaultCacheMaxAge = 7 * 24 * time.Hour

// CacheDefaultApplier handles transform cache defaults.
type CacheDefaultApplier struct{}

func (c *CacheDefaultApplier) Domain() string { return "cache" }

func (c *CacheDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = ".assetpipe-cache"
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = CacheBackendSQLite
	}
	if cfg.Cache.MaxAge == 0 {
		cfg.Cache.MaxAge = DefaultCacheMaxAge
	}
	return nil
}

// DevDefaultApplier handles dev session defaults.
type DevDefaultApplier struct{}

func (d *DevDefaultApplier) Domain() string { return "dev" }

func (d *DevDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Dev.Host == "" {
		cfg.Dev.Host = "localhost"
	}
	if cfg.Dev.Port == 0 {
		cfg.Dev.Port = 9090
	}
	if len(cfg.Dev.Watch) == 0 {
		cfg.Dev.Watch = StringList{"."}
	}
	if cfg.Dev.Debounce == 0 {
		cfg.Dev.Debounce = 300 * time.Millisecond
	}
	if cfg.Dev.NATSSubject == "" {
		cfg.Dev.NATSSubject = "assetpipe.rebuild"
	}
	return nil
}

// LoggingDefaultApplier handles logging defaults.
type LoggingDefaultApplier struct{}

func (l *LoggingDefaultApplier) Domain() string { return "logging" }

func (l *LoggingDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = LogFormatText
	}
	return nil
}

// CompositeDefaultApplier applies defaults across all configuration domains.
type CompositeDefaultApplier struct {
	appliers []DefaultApplier
}

// NewDefaultApplier creates a composite default applier with all domain appliers.
func NewDefaultApplier() *CompositeDefaultApplier {
	return &CompositeDefaultApplier{
		appliers: []DefaultApplier{
			&OutputDefaultApplier{},
			&ResolveDefaultApplier{},
			&CommonsDefaultApplier{},
			&PageDefaultApplier{},
			&BuildDefaultApplier{},
			&CacheDefaultApplier{},
			&DevDefaultApplier{},
			&LoggingDefaultApplier{},
		},
	}
}

// ApplyDefaults applies defaults for all configuration domains.
func (c *CompositeDefaultApplier) ApplyDefaults(cfg *Config) error {
	for _, applier := range c.appliers {
		if err := applier.ApplyDefaults(cfg); err != nil {
			return fmt.Errorf("applying defaults for %s: %w", applier.Domain(), err)
		}
	}
	return nil
}

// GetApplierByDomain returns a specific domain applier (useful for testing).
func (c *CompositeDefaultApplier) GetApplierByDomain(domain string) DefaultApplier {
	for _, applier := range c.appliers {
		if applier.Domain() == domain {
			return applier
		}
	}
	return nil
}
