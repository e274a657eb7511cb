// Package builderr defines the typed error taxonomy of a build run.
//
// Every error here is fatal to the build that produced it. Callers match on
// the concrete types with errors.As to recover the diagnostic context
// (module, reference, rule index, colliding artifacts).
package builderr

import (
	"errors"
	"fmt"
	"strings"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

var (
	// ErrBuildAborted marks a build stopped by context cancellation.
	ErrBuildAborted = errors.New("build aborted")
	// ErrStaticModuleSyntax marks a script left with import/export statements
	// that the bundle runtime cannot execute.
	ErrStaticModuleSyntax = errors.New("static import/export syntax is not supported; transpile the module with a command transform")
)

// UnresolvedModuleError reports a reference that could not be mapped to a file.
// Module is the referencing module ID, or the entry name for entry paths.
type UnresolvedModuleError struct {
	Module string
	Ref    string
	Cause  error
}

func (e *UnresolvedModuleError) Error() string {
	msg := fmt.Sprintf("unresolved module %q referenced from %q", e.Ref, e.Module)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *UnresolvedModuleError) Unwrap() error { return e.Cause }

// Category maps the error onto the foundation taxonomy.
func (e *UnresolvedModuleError) Category() ferrors.ErrorCategory { return ferrors.CategoryResolve }

// TransformError reports a failed step of a transform chain. RuleIndex is -1
// when the failure concerns the chain's output rather than one rule.
type TransformError struct {
	ModulePath string
	RuleIndex  int
	Transform  string
	Cause      error
}

func (e *TransformError) Error() string {
	name := e.Transform
	if name == "" {
		name = "transform"
	}
	if e.RuleIndex < 0 {
		return fmt.Sprintf("%s failed for %q: %v", name, e.ModulePath, e.Cause)
	}
	return fmt.Sprintf("%s failed for %q (rule %d): %v", name, e.ModulePath, e.RuleIndex, e.Cause)
}

func (e *TransformError) Unwrap() error { return e.Cause }

func (e *TransformError) Category() ferrors.ErrorCategory { return ferrors.CategoryTransform }

// OutputCollisionError reports two artifacts resolving to the same output path.
type OutputCollisionError struct {
	Path   string
	First  string
	Second string
}

func (e *OutputCollisionError) Error() string {
	return fmt.Sprintf("output collision at %q between %q and %q", e.Path, e.First, e.Second)
}

func (e *OutputCollisionError) Category() ferrors.ErrorCategory { return ferrors.CategoryEmit }

// CyclicDependencyError reports a dependency cycle when cycles are disallowed.
// Cycle lists module IDs in traversal order; the first element is repeated at the end.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return "cyclic dependency: " + strings.Join(e.Cycle, " -> ")
}

func (e *CyclicDependencyError) Category() ferrors.ErrorCategory { return ferrors.CategoryResolve }
