package randsrc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeedFromEnvRequiresFourWords(t *testing.T) {
	t.Setenv("EWOK_SEED", "1,2,3")
	_, ok := SeedFromEnv()
	assert.False(t, ok)
}

func TestSeedFromEnvParsesFourWords(t *testing.T) {
	t.Setenv("EWOK_SEED", "1,2,3,4")
	seed, ok := SeedFromEnv()
	assert.True(t, ok)

	seedAgain, _ := SeedFromEnv()
	assert.Equal(t, seed, seedAgain)
}

func TestSampleBoundsResult(t *testing.T) {
	s := New(42)
	idxs := s.Sample(5, 3)
	assert.Len(t, idxs, 3)
	for _, i := range idxs {
		assert.True(t, i >= 0 && i < 5)
	}
}
