package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"testing"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityFatal).
			WithContext("file", "assetpipe.yaml").
			Build()

		if err.Category() != CategoryConfig {
			t.Errorf("expected category %s, got %s", CategoryConfig, err.Category())
		}
		if err.Severity() != SeverityFatal {
			t.Errorf("expected severity %s, got %s", SeverityFatal, err.Severity())
		}
		file, exists := err.Context().GetString("file")
		if !exists || file != "assetpipe.yaml" {
			t.Errorf("expected context file=assetpipe.yaml, got %v", file)
		}
	})

	t.Run("Error string is stable", func(t *testing.T) {
		err := ValidationError("bad option").
			WithContext("rule", 2).
			WithContext("key", "limit").
			Build()
		want := "[validation:fatal] bad option (key=limit, rule=2)"
		if err.Error() != want {
			t.Errorf("expected %q, got %q", want, err.Error())
		}
	})

	t.Run("Detection through wrapping", func(t *testing.T) {
		inner := ConfigError("test error").Build()
		wrapped := fmt.Errorf("load: %w", inner)

		if !IsClassified(wrapped) {
			t.Error("expected wrapped error to be classified")
		}
		if !HasCategory(wrapped, CategoryConfig) {
			t.Error("expected error to have config category")
		}
		if inner.CanRetry() {
			t.Error("expected config error to not be retryable")
		}
		if GetCategory(errors.New("plain")) != CategoryInternal {
			t.Error("expected plain errors to fall back to internal")
		}
	})
}

func TestErrorBuilder(t *testing.T) {
	originalErr := errors.New("disk full")
	err := WrapError(originalErr, CategoryFileSystem, "write artifact").
		Retryable().
		WithContext("path", "dist/js/index.js").
		Build()

	if err.RetryStrategy() != RetryBackoff {
		t.Errorf("expected retry strategy %s, got %s", RetryBackoff, err.RetryStrategy())
	}
	if !errors.Is(err, originalErr) {
		t.Error("expected error to wrap original error")
	}

	tests := []struct {
		name     string
		builder  *ErrorBuilder
		category ErrorCategory
		severity ErrorSeverity
	}{
		{"ConfigError", ConfigError("x"), CategoryConfig, SeverityFatal},
		{"ValidationError", ValidationError("x"), CategoryValidation, SeverityFatal},
		{"FileSystemError", FileSystemError("x"), CategoryFileSystem, SeverityError},
		{"CacheError", CacheError("x"), CategoryCache, SeverityWarning},
		{"DevSessionError", DevSessionError("x"), CategoryDevSession, SeverityFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := tt.builder.Build()
			if e.Category() != tt.category || e.Severity() != tt.severity {
				t.Errorf("got %s/%s, want %s/%s", e.Category(), e.Severity(), tt.category, tt.severity)
			}
		})
	}
}

type categorizedErr struct{ cat ErrorCategory }

func (c categorizedErr) Error() string           { return "typed" }
func (c categorizedErr) Category() ErrorCategory { return c.cat }

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil", nil, 0},
		{"validation", ValidationError("x").Build(), 2},
		{"config", ConfigError("x").Build(), 7},
		{"typed resolve", categorizedErr{CategoryResolve}, 9},
		{"wrapped typed transform", fmt.Errorf("build: %w", categorizedErr{CategoryTransform}), 11},
		{"devsession", DevSessionError("x").Build(), 12},
		{"internal", NewError(CategoryInternal, "x").Fatal().Build(), 10},
		{"unclassified", errors.New("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.ExitCodeFor(tt.err); got != tt.expected {
				t.Errorf("expected exit code %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	quiet := NewCLIErrorAdapter(false, slog.Default())
	if got := quiet.FormatError(NewError(CategoryInternal, "secret").Fatal().Build()); got != "Internal error occurred (use -v for details)" {
		t.Errorf("unexpected quiet internal message: %s", got)
	}
	verbose := NewCLIErrorAdapter(true, slog.Default())
	if got := verbose.FormatError(NewError(CategoryInternal, "secret").Fatal().Build()); got != "Error: [internal:fatal] secret" {
		t.Errorf("unexpected verbose internal message: %s", got)
	}
}
