package config

import (
	"log/slog"

	"git.home.luguber.info/inful/assetpipe/internal/foundation/normalization"
)

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var logLevelNormalizer = normalization.NewNormalizer(map[string]LogLevel{
	"debug":   LogLevelDebug,
	"info":    LogLevelInfo,
	"warn":    LogLevelWarn,
	"warning": LogLevelWarn,
	"error":   LogLevelError,
}, LogLevelInfo)

func NormalizeLogLevel(raw string) (LogLevel, error) {
	return logLevelNormalizer.NormalizeWithError(raw)
}

// SlogLevel maps the level onto log/slog.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

var logFormatNormalizer = normalization.NewNormalizer(map[string]LogFormat{
	"json": LogFormatJSON,
	"text": LogFormatText,
}, LogFormatText)

func NormalizeLogFormat(raw string) (LogFormat, error) {
	return logFormatNormalizer.NormalizeWithError(raw)
}

// InjectPosition says where script tags go in an HTML shell.
type InjectPosition string

const (
	InjectHead InjectPosition = "head"
	InjectBody InjectPosition = "body"
	InjectNone InjectPosition = "none"
)

var injectNormalizer = normalization.NewNormalizer(map[string]InjectPosition{
	"head":  InjectHead,
	"body":  InjectBody,
	"true":  InjectBody,
	"false": InjectNone,
	"none":  InjectNone,
}, InjectBody)

func NormalizeInjectPosition(raw string) (InjectPosition, error) {
	return injectNormalizer.NormalizeWithError(raw)
}

// CacheBackend selects the transform cache store.
type CacheBackend string

const (
	CacheBackendMemory CacheBackend = "memory"
	CacheBackendSQLite CacheBackend = "sqlite"
)

var cacheBackendNormalizer = normalization.NewNormalizer(map[string]CacheBackend{
	"memory": CacheBackendMemory,
	"sqlite": CacheBackendSQLite,
}, CacheBackendSQLite)

func NormalizeCacheBackend(raw string) (CacheBackend, error) {
	return cacheBackendNormalizer.NormalizeWithError(raw)
}
