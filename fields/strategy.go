package fields

import (
	"fieldviz/grid_world"
)

// Strategy is one scenario algorithm for a grid type G: a stable kind name, the
// share of draws that select it, and the function that fills the grid and names it.
type Strategy[G any] struct {
	Kind     string
	Weight   float64
	Generate func(geom grid_world.Geometry, rng *Rand) (grid G, label string)
}

// The cut points are cumulative: with weights .33/.33/.34 a draw below 0.33 selects
// the first strategy, below 0.66 the second, and anything else the last.
var (
	ScalarStrategies = []Strategy[ScalarGrid]{
		{Kind: "scalar/random", Weight: 0.33, Generate: randomTemperatures},
		{Kind: "scalar/gradient", Weight: 0.33, Generate: linearGradient},
		{Kind: "scalar/spot", Weight: 0.34, Generate: centralSpot},
	}

	VectorStrategies = []Strategy[VectorGrid]{
		{Kind: "vector/uniform", Weight: 0.33, Generate: uniformFlow},
		{Kind: "vector/rotational", Weight: 0.33, Generate: rotationalFlow},
		{Kind: "vector/radial", Weight: 0.34, Generate: radialFlow},
	}
)

// choose maps a uniform draw u in [0, 1) onto the table's cumulative weights.
// The last strategy absorbs any remainder, so the table never fails to select.
func choose[G any](table []Strategy[G], u float64) Strategy[G] {
	cut := 0.0
	for _, strategy := range table[:len(table)-1] {
		cut += strategy.Weight
		if u < cut {
			return strategy
		}
	}
	return table[len(table)-1]
}

// GenerateScalar draws a scalar scenario strategy and runs it.
func GenerateScalar(geom grid_world.Geometry, rng *Rand) *Scenario {
	strategy := choose(ScalarStrategies, rng.Float64())
	grid, label := strategy.Generate(geom, rng)
	return &Scenario{
		FieldType: Scalar,
		Label:     label,
		Kind:      strategy.Kind,
		Scalar:    grid,
	}
}

// GenerateVector draws a vector scenario strategy and runs it.
func GenerateVector(geom grid_world.Geometry, rng *Rand) *Scenario {
	strategy := choose(VectorStrategies, rng.Float64())
	grid, label := strategy.Generate(geom, rng)
	return &Scenario{
		FieldType: Vector,
		Label:     label,
		Kind:      strategy.Kind,
		Vector:    grid,
	}
}

// Generate returns a new scenario of the given field type. Generation is total:
// for any valid geometry it returns a fully populated, in-range grid.
func Generate(ft FieldType, geom grid_world.Geometry, rng *Rand) *Scenario {
	if ft == Vector {
		return GenerateVector(geom, rng)
	}
	return GenerateScalar(geom, rng)
}
