package fields

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Rand supplies the uniform draws the scenario strategies make. It wraps a single
// seeded source so that a seed reproduces a sequence of scenarios exactly.
// Rand is not safe for concurrent use; callers serialize generation.
type Rand struct {
	src  rand.Source
	unit distuv.Uniform
}

// NewRand returns a Rand seeded with seed.
func NewRand(seed uint64) *Rand {
	src := rand.NewSource(seed)
	return &Rand{
		src:  src,
		unit: distuv.Uniform{Min: 0, Max: 1, Src: src},
	}
}

// Float64 returns a uniform draw in [0, 1).
func (rng *Rand) Float64() float64 {
	return rng.unit.Rand()
}

// Between returns a uniform draw in [min, max).
func (rng *Rand) Between(min, max float64) float64 {
	return distuv.Uniform{Min: min, Max: max, Src: rng.src}.Rand()
}

// Intn returns a uniform integer in [0, n). n must be positive.
func (rng *Rand) Intn(n int) int {
	i := int(rng.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}
