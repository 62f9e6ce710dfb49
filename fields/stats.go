package fields

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the spread of a scenario's values: temperatures for scalar
// fields, wind speeds of the present vectors for vector fields.
type Summary struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Mean    float64 `json:"mean"`
	Present int     `json:"present"`
}

// Summarize returns the summary of the scenario's values. A scenario with no
// values summarizes to zeros.
func (s *Scenario) Summarize() (sum Summary) {
	if s == nil {
		return
	}

	var values []float64
	switch s.FieldType {
	case Scalar:
		for _, row := range s.Scalar {
			values = append(values, row...)
		}
	case Vector:
		for _, row := range s.Vector {
			for _, w := range row {
				if w != nil {
					values = append(values, w.Magnitude)
				}
			}
		}
	}

	if len(values) == 0 {
		return
	}
	return Summary{
		Min:     floats.Min(values),
		Max:     floats.Max(values),
		Mean:    stat.Mean(values, nil),
		Present: len(values),
	}
}
