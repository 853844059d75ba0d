package gacha

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
)

// RandomSource abstracts the randomness behind draws so outcomes can be
// reproduced in tests with a seeded generator.
type RandomSource interface {
	// Float64 returns a uniform value in [0, 1).
	Float64() float64
	// IntN returns a uniform value in [0, n). n must be > 0.
	IntN(n int) int
}

type cryptoRNG struct{}

func (cryptoRNG) Float64() float64 {
	var buf [8]byte
	if _, err := cryptorand.Read(buf[:]); err != nil {
		return rand.Float64()
	}
	// top 53 bits give a uniform double in [0, 1)
	u := binary.BigEndian.Uint64(buf[:]) >> 11
	return float64(u) / (1 << 53)
}

func (c cryptoRNG) IntN(n int) int {
	if n <= 0 {
		panic("gacha: IntN called with n <= 0")
	}
	i := int(c.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}

// DefaultRNG is the production source, backed by crypto/rand.
func DefaultRNG() RandomSource { return cryptoRNG{} }

type seededRNG struct{ r *rand.Rand }

// NewSeededRNG returns a deterministic source for tests and simulations.
func NewSeededRNG(seed uint64) RandomSource {
	return &seededRNG{r: rand.New(rand.NewPCG(seed, 0))}
}

func (s *seededRNG) Float64() float64 { return s.r.Float64() }
func (s *seededRNG) IntN(n int) int   { return s.r.IntN(n) }
