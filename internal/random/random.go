// Package random provides the injectable randomness used by the simulators.
package random

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Source yields uniformly distributed values.
type Source interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// IntN returns a value in [0, n). n must be > 0.
	IntN(n int) int
}

// PCG is a goroutine-safe Source backed by math/rand/v2's PCG generator.
type PCG struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// New returns a deterministic source for seed. A zero seed is replaced by the current time.
func New(seed uint64) *PCG {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &PCG{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Float64 implements Source.
func (p *PCG) Float64() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rnd.Float64()
}

// IntN implements Source.
func (p *PCG) IntN(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rnd.IntN(n)
}

// Scripted replays a fixed list of floats in order, cycling when exhausted.
// IntN derives its result from the next float, so one script drives both kinds of draw.
// An empty script always yields 0.
type Scripted struct {
	mu     sync.Mutex
	values []float64
	next   int
}

// NewScripted returns a Scripted source over values.
func NewScripted(values ...float64) *Scripted {
	return &Scripted{values: values}
}

// Float64 implements Source.
func (s *Scripted) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}

// IntN implements Source.
func (s *Scripted) IntN(n int) int {
	i := int(s.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}

// Pick returns a uniformly chosen element of items. It panics on an empty slice.
func Pick[T any](src Source, items []T) T {
	return items[src.IntN(len(items))]
}

// Chance reports true with probability p.
func Chance(src Source, p float64) bool {
	return src.Float64() < p
}
