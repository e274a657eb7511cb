// Package errors provides foundational, type-safe error primitives used across assetpipe.
//
// Key features:
//   - ErrorCategory: Broad error classification (config, resolve, transform, emit, etc.)
//   - ErrorSeverity: Impact level (fatal, error, warning, info)
//   - RetryStrategy: Retry behavior hint for callers
//   - ClassifiedError: Structured error with category, severity, and context
//   - ErrorBuilder: Fluent API for creating classified errors
//   - CLI adapter for exit codes and presentation
//
// Example usage:
//
//	err := errors.NewError(errors.CategoryFileSystem, "read module failed").
//		WithContext("path", path).
//		WithCause(originalErr).
//		Build()
package errors
