package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchemaName(t *testing.T) {
	tests := []struct {
		repo string
		want string
	}{
		{"wrestling-game", "robomonkey_wrestling_game"},
		{"MyRepo", "robomonkey_myrepo"},
		{"a.b.c", "robomonkey_a_b_c"},
		{"weird  name!!", "robomonkey_weird_name"},
		{"already_snake", "robomonkey_already_snake"},
	}

	for _, tt := range tests {
		t.Run(tt.repo, func(t *testing.T) {
			assert.Equal(t, tt.want, SchemaName(tt.repo))
		})
	}
}

func TestLCSRatio_Identical(t *testing.T) {
	assert.InDelta(t, 1.0, lcsRatio("wrestling-game", "wrestling-game"), 0.001)
}

func TestLCSRatio_CaseInsensitive(t *testing.T) {
	assert.InDelta(t, 1.0, lcsRatio("Wrestling-Game", "wrestling-game"), 0.001)
}

func TestLCSRatio_Disjoint(t *testing.T) {
	assert.InDelta(t, 0.0, lcsRatio("abc", "xyz"), 0.001)
}

func TestLCSRatio_Empty(t *testing.T) {
	assert.InDelta(t, 1.0, lcsRatio("", ""), 0.001)
	assert.InDelta(t, 0.0, lcsRatio("abc", ""), 0.001)
}

// The suggestion scenario from the retrieval surface: a prefixed variant of
// a registered name must score above the 0.7 suggestion threshold.
func TestLCSRatio_PrefixedVariant(t *testing.T) {
	score := lcsRatio("yonk-redo-wrestling-game", "wrestling-game")

	assert.Greater(t, score, 0.7)
	assert.Less(t, score, 1.0)
}

func TestLCSRatio_Symmetric(t *testing.T) {
	a := lcsRatio("wrestling-game", "wrestling")
	b := lcsRatio("wrestling", "wrestling-game")

	assert.InDelta(t, a, b, 0.001)
}
