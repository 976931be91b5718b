// Package randsrc wraps math/rand behind the handful of sampling
// operations the simulator needs, and resolves the seed from EWOK_SEED
// the way the original's weak RNG was seeded from the environment.
package randsrc

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"hash/fnv"
	mathrand "math/rand"
	"os"
	"strconv"
	"strings"
)

// Source is a seeded random source local to one simulation run.
type Source struct {
	rng *mathrand.Rand
}

// New returns a Source seeded with seed.
func New(seed int64) *Source {
	return &Source{rng: mathrand.New(mathrand.NewSource(seed))}
}

// Seed returns a fresh, unpredictable seed to log and use when EWOK_SEED
// is absent.
func Seed() int64 {
	var buf [8]byte
	if _, err := cryptorand.Read(buf[:]); err != nil {
		return int64(os.Getpid())
	}
	return int64(binary.BigEndian.Uint64(buf[:]))
}

// SeedFromEnv parses EWOK_SEED, a comma-separated list of four 32-bit
// integers matching the original XorShiftRng's four-word seed. Go's
// math/rand takes a single int64, so the four words are folded together
// with FNV mixing rather than truncated — this keeps all four words
// significant instead of silently discarding half of them.
//
// Returns the seed and true if EWOK_SEED was set and valid.
func SeedFromEnv() (int64, bool) {
	raw := os.Getenv("EWOK_SEED")
	if raw == "" {
		return 0, false
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return 0, false
	}

	h := fnv.New64a()
	var buf [4]byte
	for _, p := range parts {
		word, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return 0, false
		}
		binary.LittleEndian.PutUint32(buf[:], uint32(word))
		h.Write(buf[:])
	}
	return int64(h.Sum64()), true
}

// WithProbability returns true with probability p.
func (s *Source) WithProbability(p float64) bool {
	return s.rng.Float64() <= p
}

// Sample draws amount distinct indices from [0, n) without replacement,
// for the caller to use to index into its own slice.
func (s *Source) Sample(n, amount int) []int {
	if amount >= n {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	return s.rng.Perm(n)[:amount]
}

// SampleSingle draws one index from [0, n), or -1 if n == 0.
func (s *Source) SampleSingle(n int) int {
	if n == 0 {
		return -1
	}
	return s.rng.Intn(n)
}

// Intn returns a non-negative random number in [0, n).
func (s *Source) Intn(n int) int {
	return s.rng.Intn(n)
}

// Uint64 returns a random 64-bit value, used to draw names from the
// identifier namespace.
func (s *Source) Uint64() uint64 {
	return s.rng.Uint64()
}

// Shuffle randomizes the order of a slice of length n in place, using
// swap to exchange elements i and j.
func (s *Source) Shuffle(n int, swap func(i, j int)) {
	s.rng.Shuffle(n, swap)
}
