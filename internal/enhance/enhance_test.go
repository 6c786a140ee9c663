package enhance

import (
	"testing"

	"github.com/coderag/engine/internal/ragquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnhance_FirstVariantIsOriginal(t *testing.T) {
	eq := Enhance("search function", ragquery.IntentImplement, nil)
	require.NotEmpty(t, eq.Variants)
	assert.Equal(t, "search function", eq.Variants[0])
}

func TestEnhance_BoundedAndDeduplicated(t *testing.T) {
	eq := Enhance("searchFunction", ragquery.IntentImplement, []string{"github.com/gin-gonic/gin"})
	assert.LessOrEqual(t, len(eq.Variants), MaxVariants)
	seen := make(map[string]bool)
	for _, v := range eq.Variants {
		key := v
		assert.False(t, seen[key], "duplicate variant %q", v)
		seen[key] = true
	}
}

func TestEnhance_IntentPrefix(t *testing.T) {
	eq := Enhance("cache layer", ragquery.IntentDebug, nil)
	found := false
	for _, v := range eq.Variants {
		if v == "error handling for cache layer" {
			found = true
		}
	}
	assert.True(t, found, "expected intent-prefixed variant, got %v", eq.Variants)
}

func TestEnhance_FrameworkVariant(t *testing.T) {
	eq := Enhance("router setup", ragquery.IntentImplement, []string{"github.com/gin-gonic/gin"})
	assert.Contains(t, eq.Frameworks, "gin")
}

func TestEnhance_EmptyImportsNoFrameworks(t *testing.T) {
	eq := Enhance("plain query", ragquery.IntentUnderstand, nil)
	assert.Empty(t, eq.Frameworks)
}
