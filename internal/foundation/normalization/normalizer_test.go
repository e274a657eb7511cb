package normalization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type position string

const (
	posHead position = "head"
	posBody position = "body"
)

func newPositions() *Normalizer[position] {
	return NewNormalizer(map[string]position{"head": posHead, "body": posBody, "true": posBody}, posBody)
}

func TestNormalizer_Basic(t *testing.T) {
	n := newPositions()
	assert.Equal(t, posHead, n.Normalize("  HEAD "))
	assert.Equal(t, posBody, n.Normalize("true"))
	assert.Equal(t, posBody, n.Normalize("sideways"), "unknown values fall back to default")
}

func TestNormalizer_WithError(t *testing.T) {
	n := newPositions()

	v, err := n.NormalizeWithError("Head")
	require.NoError(t, err)
	assert.Equal(t, posHead, v)

	v, err = n.NormalizeWithError("")
	require.NoError(t, err)
	assert.Equal(t, posBody, v)

	_, err = n.NormalizeWithError("footer")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[body head true]")
}

func TestValidKeys(t *testing.T) {
	n := newPositions()
	keys := n.ValidKeys()
	assert.Equal(t, []string{"body", "head", "true"}, keys)
	keys[0] = "mutated"
	assert.Equal(t, "body", n.ValidKeys()[0], "ValidKeys returns a copy")
}
