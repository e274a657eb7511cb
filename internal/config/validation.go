package config

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
)

// ValidateConfig validates the complete configuration structure.
func ValidateConfig(cfg *Config) error {
	validator := newConfigurationValidator(cfg)
	return validator.validate()
}

// configurationValidator coordinates validation across all configuration domains.
type configurationValidator struct {
	config *Config
}

func newConfigurationValidator(config *Config) *configurationValidator {
	return &configurationValidator{config: config}
}

// validate runs domain checks in dependency order: pages refer to entries and commons.
func (cv *configurationValidator) validate() error {
	if err := cv.validateEntries(); err != nil {
		return err
	}
	if err := cv.validateOutput(); err != nil {
		return err
	}
	if err := cv.validateRules(); err != nil {
		return err
	}
	if err := cv.validateProvide(); err != nil {
		return err
	}
	if err := cv.validateCommons(); err != nil {
		return err
	}
	if err := cv.validatePages(); err != nil {
		return err
	}
	if cv.config.Cache.MaxAge < 0 {
		return errors.New("cache.max_age cannot be negative")
	}
	return cv.validateDev()
}

func (cv *configurationValidator) validateEntries() error {
	if len(cv.config.Entries) == 0 {
		return errors.New("at least one entry must be configured")
	}
	seen := make(map[string]bool, len(cv.config.Entries))
	for _, e := range cv.config.Entries {
		if e.Name == "" {
			return errors.New("entry name cannot be empty")
		}
		if e.Path == "" {
			return fmt.Errorf("entry %s: path cannot be empty", e.Name)
		}
		if seen[e.Name] {
			return fmt.Errorf("duplicate entry name: %s", e.Name)
		}
		seen[e.Name] = true
	}
	return nil
}

func (cv *configurationValidator) validateOutput() error {
	o := cv.config.Output
	if o.Filename == "" || o.ChunkFilename == "" || o.StyleFilename == "" {
		return errors.New("output filename patterns cannot be empty")
	}
	if o.HashLength < 1 || o.HashLength > 64 {
		return fmt.Errorf("output.hash_length must be between 1 and 64, got %d", o.HashLength)
	}
	return nil
}

func (cv *configurationValidator) validateRules() error {
	for i, r := range cv.config.Rules {
		if r.Test == "" {
			return fmt.Errorf("rules[%d]: test cannot be empty", i)
		}
		if _, err := regexp.Compile(r.Test); err != nil {
			return fmt.Errorf("rules[%d]: invalid test pattern: %w", i, err)
		}
		if r.Exclude != "" {
			if _, err := regexp.Compile(r.Exclude); err != nil {
				return fmt.Errorf("rules[%d]: invalid exclude pattern: %w", i, err)
			}
		}
		if len(r.Use) == 0 {
			return fmt.Errorf("rules[%d]: use must name at least one transform", i)
		}
		for j, u := range r.Use {
			if u.Name == "" {
				return fmt.Errorf("rules[%d].use[%d]: transform name cannot be empty", i, j)
			}
		}
	}
	return nil
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

func (cv *configurationValidator) validateProvide() error {
	for ident, spec := range cv.config.Provide {
		if !identifierPattern.MatchString(ident) {
			return fmt.Errorf("provide: %q is not a valid identifier", ident)
		}
		if spec == "" {
			return fmt.Errorf("provide: %s must name a module", ident)
		}
	}
	return nil
}

func (cv *configurationValidator) validateCommons() error {
	c := cv.config.Commons
	if !c.Enabled() {
		return nil
	}
	names := cv.config.EntryNames()
	if slices.Contains(names, c.Name) {
		return fmt.Errorf("commons.name %s collides with an entry name", c.Name)
	}
	for _, ch := range c.Chunks {
		if !slices.Contains(names, ch) {
			return fmt.Errorf("commons.chunks: unknown entry %s", ch)
		}
	}
	return nil
}

func (cv *configurationValidator) validatePages() error {
	known := cv.config.EntryNames()
	if cv.config.Commons.Enabled() {
		known = append(known, cv.config.Commons.Name)
	}
	filenames := make(map[string]bool, len(cv.config.Pages))
	for i, p := range cv.config.Pages {
		if p.Template == "" {
			return fmt.Errorf("pages[%d]: template cannot be empty", i)
		}
		if filenames[p.Filename] {
			return fmt.Errorf("pages[%d]: duplicate filename %s", i, p.Filename)
		}
		filenames[p.Filename] = true
		for _, ch := range p.Chunks {
			if !slices.Contains(known, ch) {
				return fmt.Errorf("pages[%d]: unknown chunk %s (known: %v)", i, ch, known)
			}
		}
	}
	return nil
}

func (cv *configurationValidator) validateDev() error {
	d := cv.config.Dev
	if d.Port < 1 || d.Port > 65535 {
		return fmt.Errorf("dev.port must be between 1 and 65535, got %d", d.Port)
	}
	if d.Debounce < 0 {
		return fmt.Errorf("dev.debounce cannot be negative")
	}
	return nil
}
