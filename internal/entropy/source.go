// Package entropy provides the random sources the simulation draws from.
// Every stochastic rule in the game (market drift, wear, incidents, negotiation)
// takes a Source so tests can replay exact sequences.
package entropy

import (
	"math/rand"
	"sync"
)

// Source yields uniform floats in [0, 1).
type Source interface {
	Float() float64
}

// Seeded is a deterministic pseudo-random source.
type Seeded struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSeeded creates a source that repeats the same stream for the same seed.
func NewSeeded(seed int64) *Seeded {
	return &Seeded{rng: rand.New(rand.NewSource(seed))}
}

// Float returns the next value of the stream.
func (s *Seeded) Float() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// Sequence replays a scripted list of values, cycling when exhausted.
// An empty Sequence always returns 0.
type Sequence struct {
	values []float64
	next   int
}

// NewSequence creates a scripted source.
func NewSequence(values ...float64) *Sequence {
	return &Sequence{values: values}
}

// Float returns the next scripted value.
func (s *Sequence) Float() float64 {
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}

// Drawn reports how many values have been consumed.
func (s *Sequence) Drawn() int {
	return s.next
}

// Crypto draws from crypto/rand on every call.
type Crypto struct{}

// Float returns a crypto-grade uniform float.
func (Crypto) Float() float64 {
	return cryptoRandFloat()
}

// Intn returns an integer in [0, n). n <= 0 yields 0.
func Intn(src Source, n int) int {
	if n <= 0 {
		return 0
	}
	i := int(src.Float() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}

// Between returns an integer uniformly in [min, max], both inclusive.
func Between(src Source, min, max int) int {
	if max < min {
		min, max = max, min
	}
	return min + Intn(src, max-min+1)
}

// Chance reports whether a single draw lands below p.
func Chance(src Source, p float64) bool {
	return src.Float() < p
}

// Sign returns -1 or +1 with equal odds.
func Sign(src Source) float64 {
	if src.Float() < 0.5 {
		return -1
	}
	return 1
}
