// Package entropy supplies the random source behind stochastic engine
// decisions (work tier draws, duration jitter, message variants). The
// production source seeds math/rand from crypto/rand; tests inject a
// deterministic Sequence to assert exact outcomes.
package entropy

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"sync"
	"time"
)

// Source yields uniform random values. Implementations must be safe for use
// from a single goroutine at a time; callers serialize access.
type Source interface {
	// Float64 returns a uniform value in [0, 1).
	Float64() float64
	// Intn returns a uniform value in [0, n). Panics if n <= 0.
	Intn(n int) int
}

type seededSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSource returns a Source seeded from crypto/rand, falling back to the
// clock if the system entropy pool is unreadable.
func NewSource() Source {
	return &seededSource{rng: rand.New(rand.NewSource(cryptoSeed()))}
}

func (s *seededSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

func (s *seededSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

func cryptoSeed() int64 {
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(buf[:]))
}

// Jitter spreads base by ±variance uniformly: base * (1 ± variance).
// Variance 0 returns base unchanged.
func Jitter(src Source, base, variance float64) float64 {
	if variance <= 0 {
		return base
	}
	return base * (1 + (src.Float64()*2-1)*variance)
}

// Sequence is a deterministic Source that replays a fixed list of floats,
// cycling when exhausted. Zero values yield 0.
type Sequence struct {
	mu   sync.Mutex
	vals []float64
	next int
}

// NewSequence returns a Sequence over the given values.
func NewSequence(vals ...float64) *Sequence {
	return &Sequence{vals: vals}
}

func (s *Sequence) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.vals) == 0 {
		return 0
	}
	v := s.vals[s.next%len(s.vals)]
	s.next++
	return v
}

func (s *Sequence) Intn(n int) int {
	if n <= 0 {
		panic("entropy: Intn with non-positive n")
	}
	v := int(s.Float64() * float64(n))
	if v >= n {
		v = n - 1
	}
	return v
}
