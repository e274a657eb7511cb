package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeyEntry      = "entry"
	KeyModule     = "module"
	KeyChunk      = "chunk"
	KeyRule       = "rule"
	KeyTransform  = "transform"
	KeyPath       = "path"
	KeyPage       = "page"
	KeyCount      = "count"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Entry(name string) slog.Attr     { return slog.String(KeyEntry, name) }
func Module(id string) slog.Attr      { return slog.String(KeyModule, id) }
func Chunk(id string) slog.Attr       { return slog.String(KeyChunk, id) }
func Rule(index int) slog.Attr        { return slog.Int(KeyRule, index) }
func Transform(name string) slog.Attr { return slog.String(KeyTransform, name) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Page(p string) slog.Attr         { return slog.String(KeyPage, p) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
