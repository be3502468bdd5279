package scorer

import (
	"math/rand/v2"
	"sync"
)

// Random yields uniform values in [0, 1).
type Random interface {
	Float64() float64
}

type globalRandom struct{}

func (globalRandom) Float64() float64 { return rand.Float64() }

// NewRandom returns the process-wide source. It is safe for concurrent use.
func NewRandom() Random {
	return globalRandom{}
}

// lockedRandom serializes access to a seeded generator, which on its own is
// not safe for concurrent use.
type lockedRandom struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (l *lockedRandom) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.Float64()
}

// NewSeededRandom returns a reproducible PCG source.
func NewSeededRandom(seed uint64) Random {
	return &lockedRandom{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func between(r Random, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}

// chance reports true with probability p.
func chance(r Random, p float64) bool {
	return r.Float64() > 1-p
}
