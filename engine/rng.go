package engine

import "math/rand"

// IDLength is the length of generated entity ids.
const IDLength = 24

const idAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// drawCounter is a rand.Source that counts the values it hands out.
type drawCounter struct {
	rand.Source
	drawn int64
}

func (d *drawCounter) Int63() int64 {
	d.drawn++
	return d.Source.Int63()
}

func (d *drawCounter) Seed(seed int64) {
	d.drawn = 0
	d.Source.Seed(seed)
}

// RNG is the world's only source of randomness: entity ids, names, spawn
// amounts, combat rolls and Lua's math.random all draw from it. A world
// saved with its seed and Position replays the same future after loading.
type RNG struct {
	seed int64
	src  *drawCounter
	r    *rand.Rand
}

// NewRNG returns an RNG seeded with seed.
func NewRNG(seed int64) *RNG {
	src := &drawCounter{Source: rand.NewSource(seed)}
	return &RNG{seed: seed, src: src, r: rand.New(src)}
}

// RestoreRNG returns the RNG a world seeded with seed had after drawing
// position values.
func RestoreRNG(seed, position int64) *RNG {
	rng := NewRNG(seed)
	for rng.src.drawn < position {
		rng.src.Int63()
	}
	return rng
}

func (r *RNG) Seed() int64 { return r.seed }

// Position is the number of values drawn since seeding.
func (r *RNG) Position() int64 { return r.src.drawn }

// Intn returns an int in [0, n), or 0 without drawing when n <= 0.
func (r *RNG) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return r.r.Intn(n)
}

// Roll throws a die with the given number of sides.
func (r *RNG) Roll(sides int) int {
	if sides < 1 {
		return 0
	}
	return 1 + r.Intn(sides)
}

// Range returns an int in [lo, hi], in either order of the bounds.
func (r *RNG) Range(lo, hi int) int {
	lo, hi = min(lo, hi), max(lo, hi)
	return lo + r.Intn(hi-lo+1)
}

func (r *RNG) Float64() float64 { return r.r.Float64() }

// Chance reports true with probability p.
func (r *RNG) Chance(p float64) bool {
	return p > 0 && r.Float64() < p
}

// Token returns n characters of [a-zA-Z0-9].
func (r *RNG) Token(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = idAlphabet[r.Intn(len(idAlphabet))]
	}
	return string(b)
}

// WeightedSelect picks an index of weights with probability proportional
// to its weight. Weights must be positive and there must be at least one.
func (r *RNG) WeightedSelect(weights []int) int {
	total := 0
	for _, w := range weights {
		total += w
	}
	roll := r.Intn(total)
	for i, w := range weights {
		if roll < w {
			return i
		}
		roll -= w
	}
	return len(weights) - 1
}
