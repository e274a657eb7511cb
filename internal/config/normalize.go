package config

import (
	"fmt"
	"strings"
)

// NormalizationResult captures adjustments & warnings from normalization pass.
type NormalizationResult struct{ Warnings []string }

// NormalizeConfig canonicalizes enumerated and bounded fields prior to default application.
// It mutates the provided config in-place. Unknown enum values are errors: a
// mistyped inject position silently falling back would hide scripts.
func NormalizeConfig(c *Config) (*NormalizationResult, error) {
	if c == nil {
		return nil, fmt.Errorf("config nil")
	}
	res := &NormalizationResult{}
	if err := normalizeLogging(&c.Logging, res); err != nil {
		return res, err
	}
	if err := normalizePages(c.Pages, res); err != nil {
		return res, err
	}
	if err := normalizeCache(&c.Cache, res); err != nil {
		return res, err
	}
	normalizeResolve(&c.Resolve, res)
	normalizeOutput(&c.Output, res)
	if c.Build.Concurrency < 0 {
		res.Warnings = append(res.Warnings, warnChanged("build.concurrency", c.Build.Concurrency, 0))
		c.Build.Concurrency = 0
	}
	for i := range c.Entries {
		c.Entries[i].Name = strings.TrimSpace(c.Entries[i].Name)
	}
	return res, nil
}

func normalizeLogging(l *LoggingConfig, res *NormalizationResult) error {
	lvl, err := NormalizeLogLevel(string(l.Level))
	if err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if l.Level != "" && l.Level != lvl {
		res.Warnings = append(res.Warnings, warnChanged("logging.level", l.Level, lvl))
	}
	l.Level = lvl

	f, err := NormalizeLogFormat(string(l.Format))
	if err != nil {
		return fmt.Errorf("logging.format: %w", err)
	}
	if l.Format != "" && l.Format != f {
		res.Warnings = append(res.Warnings, warnChanged("logging.format", l.Format, f))
	}
	l.Format = f
	return nil
}

func normalizePages(pages []PageConfig, res *NormalizationResult) error {
	for i := range pages {
		p := &pages[i]
		pos, err := NormalizeInjectPosition(string(p.Inject))
		if err != nil {
			return fmt.Errorf("pages[%d].inject: %w", i, err)
		}
		if p.Inject != "" && p.Inject != pos {
			res.Warnings = append(res.Warnings, warnChanged(fmt.Sprintf("pages[%d].inject", i), p.Inject, pos))
		}
		p.Inject = pos
	}
	return nil
}

func normalizeCache(c *CacheConfig, res *NormalizationResult) error {
	b, err := NormalizeCacheBackend(string(c.Backend))
	if err != nil {
		return fmt.Errorf("cache.backend: %w", err)
	}
	if c.Backend != "" && c.Backend != b {
		res.Warnings = append(res.Warnings, warnChanged("cache.backend", c.Backend, b))
	}
	c.Backend = b
	return nil
}

func normalizeResolve(r *ResolveConfig, res *NormalizationResult) {
	for i, ext := range r.Extensions {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			res.Warnings = append(res.Warnings, warnChanged(fmt.Sprintf("resolve.extensions[%d]", i), ext, "."+ext))
			r.Extensions[i] = "." + ext
		}
	}
}

func normalizeOutput(o *OutputConfig, res *NormalizationResult) {
	if o.PublicPath != "" && !strings.HasSuffix(o.PublicPath, "/") {
		res.Warnings = append(res.Warnings, warnChanged("output.public_path", o.PublicPath, o.PublicPath+"/"))
		o.PublicPath += "/"
	}
	if o.HashLength < 0 {
		o.HashLength = 0
	}
}

func warnChanged(field string, from, to any) string {
	return fmt.Sprintf("normalized %s from '%v' to '%v'", field, from, to)
}
