package builderr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

func TestTypedErrorsMatchThroughWrapping(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name     string
		err      error
		category ferrors.ErrorCategory
		contains string
	}{
		{"unresolved", &UnresolvedModuleError{Module: "src/a.js", Ref: "./missing"}, ferrors.CategoryResolve, `"./missing" referenced from "src/a.js"`},
		{"transform", &TransformError{ModulePath: "src/s.css", RuleIndex: 1, Transform: "css", Cause: cause}, ferrors.CategoryTransform, "css failed for \"src/s.css\" (rule 1): boom"},
		{"chain output", &TransformError{ModulePath: "a.js", RuleIndex: -1, Transform: "script", Cause: ErrStaticModuleSyntax}, ferrors.CategoryTransform, "script failed for \"a.js\": static import/export"},
		{"collision", &OutputCollisionError{Path: "js/a.js", First: "a", Second: "b"}, ferrors.CategoryEmit, `output collision at "js/a.js"`},
		{"cycle", &CyclicDependencyError{Cycle: []string{"a.js", "b.js", "a.js"}}, ferrors.CategoryResolve, "a.js -> b.js -> a.js"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("stage: %w", tt.err)
			var c ferrors.Categorized
			require.True(t, errors.As(wrapped, &c))
			assert.Equal(t, tt.category, c.Category())
			assert.Contains(t, wrapped.Error(), tt.contains)
		})
	}
}

func TestTransformErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("exit status 1")
	err := fmt.Errorf("build: %w", &TransformError{ModulePath: "a.less", Cause: cause})
	assert.ErrorIs(t, err, cause)

	var te *TransformError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "a.less", te.ModulePath)
}
