package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "vanderberg", NormalizeName(" Van  Der\tBerg\n"))
}

func TestMatchName(t *testing.T) {
	require.True(t, MatchName("Smith, John", []string{"smith"}, 0))
	require.True(t, MatchName("McQueen", []string{"McQeen"}, 0.9))
	require.False(t, MatchName("McQueen", []string{"McQeen"}, 0))
	require.False(t, MatchName("Johnson", []string{"Smith"}, 0.9))
	require.False(t, MatchName("Johnson", []string{" "}, 0.9))
}

func TestClosest(t *testing.T) {
	best, similarity := Closest("MATHS", []string{"CS", "MATH", "ME"})
	require.Equal(t, "MATH", best)
	require.Greater(t, similarity, 0.9)

	best, similarity = Closest("CS", nil)
	require.Empty(t, best)
	require.Zero(t, similarity)
}
