// Package simrng provides the simulator's deterministic random source.
// Determinism is sacred: the same seed must produce the same sequence on
// every platform, and the generator's entire state must be a single
// serializable integer so it can be checkpointed and resumed exactly.
//
// The generator is SplitMix64, chosen because its state transition is a
// single 64-bit integer with no internal buffer, which keeps snapshot and
// restore trivial and keeps it independent of math/rand's global state.
package simrng

// Manager is a SplitMix64 generator. Its entire state is the State field,
// which doubles as the seed accepted by NewManager: creating a manager from
// a previously observed state resumes the exact same sequence.
type Manager struct {
	state uint64
}

// NewManager creates a generator seeded with seed. State() immediately
// after construction equals seed.
func NewManager(seed uint64) *Manager {
	return &Manager{state: seed}
}

// State returns the generator's current internal state, suitable for
// checkpointing and for reconstructing an equivalent generator via
// NewManager.
func (m *Manager) State() uint64 {
	return m.state
}

// Next advances the state and returns the next pseudo-random uint64.
func (m *Manager) Next() uint64 {
	m.state += 0x9E3779B97F4A7C15
	return mix(m.state)
}

func mix(z uint64) uint64 {
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// Range returns a value in [lo, hi). hi must be strictly greater than lo.
func (m *Manager) Range(lo, hi int64) int64 {
	if hi <= lo {
		panic("range: hi must be greater than lo")
	}
	span := uint64(hi - lo)
	return lo + int64(m.Next()%span)
}

// Float64 returns a value in [0.0, 1.0).
func (m *Manager) Float64() float64 {
	return float64(m.Next()>>11) / (1 << 53)
}

// Bernoulli returns true with probability p (clamped to [0,1]).
func (m *Manager) Bernoulli(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return m.Float64() < p
}
