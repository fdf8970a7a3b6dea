package topics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vipplay/articleforge/pkg/topics"
)

func TestExpand_Deterministic(t *testing.T) {
	first := topics.Expand("Fantasy Football", 3)
	second := topics.Expand("Fantasy Football", 3)

	require.Len(t, first, 3)
	assert.Equal(t, first, second)
}

func TestExpand_DistinctAndNonEmpty(t *testing.T) {
	out := topics.Expand("Fantasy Football", 3)

	seen := map[string]bool{}
	for _, v := range out {
		assert.NotEmpty(t, v)
		assert.False(t, seen[v], "duplicate variation: %s", v)
		seen[v] = true
	}
}

func TestExpand_ExactCount(t *testing.T) {
	for _, count := range []int{1, 5, 12, 13, 25, 50} {
		out := topics.Expand("EV battery tech", count)
		assert.Len(t, out, count, "count=%d", count)
	}
}

func TestExpand_BeyondVocabulary(t *testing.T) {
	// More variations than the angle vocabulary: numeric suffixes keep
	// every string distinct.
	out := topics.Expand("Sourdough Baking", 30)

	seen := map[string]bool{}
	for _, v := range out {
		require.NotEmpty(t, v)
		require.False(t, seen[v], "duplicate variation: %s", v)
		seen[v] = true
	}
}

func TestExpand_ZeroAndNegativeCount(t *testing.T) {
	assert.Empty(t, topics.Expand("anything", 0))
	assert.Empty(t, topics.Expand("anything", -3))
}

func TestVariation_ContainsSeed(t *testing.T) {
	v := topics.Variation("Fantasy Football", 0)
	assert.Contains(t, v, "Fantasy Football")
}
