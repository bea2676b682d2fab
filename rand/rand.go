// rand/rand.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package rand

import (
	"github.com/MichaelTJones/pcg"
)

///////////////////////////////////////////////////////////////////////////
// Random numbers.

// Rand is a deterministic PCG32 generator. Every stochastic decision in a
// simulation run draws from a Rand that was explicitly seeded so that
// runs are reproducible.
type Rand struct {
	r *pcg.PCG32
}

const pcgSequence = 0xda3e39cb94b95bdb

// New returns a generator seeded with the given value.
func New(seed int64) *Rand {
	r := &Rand{r: pcg.NewPCG32()}
	r.Seed(seed)
	return r
}

func (r *Rand) Seed(s int64) {
	r.r.Seed(uint64(s), pcgSequence)
}

// Intn returns a uniform value in [0, n). n must be in (0, 1<<32).
func (r *Rand) Intn(n int) int {
	return int(r.r.Bounded(uint32(n)))
}

// Float64 returns a uniform value in [0, 1) with 53 bits of precision,
// built from two consecutive 32-bit draws.
func (r *Rand) Float64() float64 {
	a, b := uint64(r.r.Random())>>5, uint64(r.r.Random())>>6
	return float64(a<<26|b) / (1 << 53)
}

// Bernoulli returns true with probability p.
func (r *Rand) Bernoulli(p float64) bool {
	return r.Float64() < p
}
