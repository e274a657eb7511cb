package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

// DefaultFilename is looked up when no --config flag is given.
const DefaultFilename = "assetpipe.yaml"

// Load reads, expands, normalizes, defaults and validates a configuration file.
// Files ending in .toml are decoded as TOML, everything else as YAML.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "resolve config path").Build()
	}
	if _, err := os.Stat(absPath); errors.Is(err, os.ErrNotExist) {
		return nil, ferrors.ConfigError("configuration file not found").
			WithContext("path", configPath).Build()
	}

	dir := filepath.Dir(absPath)
	if loaded, envErr := loadEnvFiles(dir); envErr != nil {
		slog.Warn("Failed to load .env file", slog.String("error", envErr.Error()))
	} else {
		for _, f := range loaded {
			slog.Debug("Loaded environment variables", slog.String("path", f))
		}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to read config file").
			WithContext("path", configPath).Build()
	}

	// Expand environment variables in the raw content
	expanded := []byte(os.ExpandEnv(string(data)))

	var cfg *Config
	if strings.EqualFold(filepath.Ext(absPath), ".toml") {
		cfg, err = ParseTOML(expanded)
	} else {
		cfg, err = ParseYAML(expanded)
	}
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to parse config").
			WithContext("path", configPath).Fatal().UserAction().Build()
	}
	cfg.baseDir = dir

	if err := Finalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Finalize runs normalization, defaults and validation on a decoded config.
func Finalize(cfg *Config) error {
	// Normalization pass (case-fold enumerations, bounds, early coercions)
	nres, err := NormalizeConfig(cfg)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "normalize").Fatal().UserAction().Build()
	}
	for _, w := range nres.Warnings {
		slog.Warn("config normalization", slog.String("detail", w))
	}
	// Apply defaults (after normalization so canonical values drive defaults)
	if err := NewDefaultApplier().ApplyDefaults(cfg); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "failed to apply defaults").Build()
	}
	if err := ValidateConfig(cfg); err != nil {
		return ferrors.ValidationError("configuration validation failed").WithCause(err).Build()
	}
	return nil
}

// ParseYAML decodes YAML strictly: unknown keys are rejected.
func ParseYAML(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return &cfg, nil
}

// ParseTOML decodes TOML by re-encoding the document as YAML, so both formats
// share one strict schema. Entry order is only preserved for [[entries]] arrays.
func ParseTOML(data []byte) (*Config, error) {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("toml line %d column %d: %w", row, col, err)
		}
		return nil, err
	}
	if len(doc) == 0 {
		return &Config{}, nil
	}
	bridged, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("re-encode toml: %w", err)
	}
	return ParseYAML(bridged)
}
