// fields generates the synthetic temperature and wind grids. Each field type has a
// small table of scenario strategies; one uniform draw picks a strategy, which then
// fills a fresh grid. Grids are never modified after they are returned.
package fields

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Temperature and wind bounds.
const (
	MIN_TEMP       = 0.0
	MAX_TEMP       = 40.0
	MAX_WIND_SPEED = 20.0
)

// FieldType selects which kind of field is generated and drawn.
type FieldType int

const (
	Scalar FieldType = iota
	Vector
)

// ErrUnknownFieldType is returned when parsing anything but "scalar" or "vector".
var ErrUnknownFieldType = errors.New("unknown field type")

func (ft FieldType) String() string {
	switch ft {
	case Scalar:
		return "scalar"
	case Vector:
		return "vector"
	}
	return fmt.Sprintf("FieldType(%d)", int(ft))
}

// ParseFieldType parses "scalar" or "vector", ignoring case and surrounding space.
func ParseFieldType(s string) (FieldType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "scalar":
		return Scalar, nil
	case "vector":
		return Vector, nil
	}
	return Scalar, fmt.Errorf("%w: %q", ErrUnknownFieldType, s)
}

func (ft FieldType) MarshalText() ([]byte, error) {
	if ft != Scalar && ft != Vector {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFieldType, int(ft))
	}
	return []byte(ft.String()), nil
}

func (ft *FieldType) UnmarshalText(text []byte) (err error) {
	*ft, err = ParseFieldType(string(text))
	return
}

// ScalarGrid is a dense [row][col] grid of temperatures.
type ScalarGrid [][]float64

// Wind is a single wind vector. Angle is in degrees in surface coordinates, where
// 0 points right and 90 points down.
type Wind struct {
	Magnitude float64 `json:"magnitude"`
	Angle     float64 `json:"angle"`
}

// VectorGrid is a [row][col] grid of wind vectors; nil entries have no wind.
type VectorGrid [][]*Wind

// Scenario is one complete generated dataset and its description. Exactly one of
// Scalar or Vector is populated, per FieldType.
type Scenario struct {
	FieldType   FieldType  `json:"fieldType"`
	Label       string     `json:"label"`
	Kind        string     `json:"kind"`
	Scalar      ScalarGrid `json:"scalar,omitempty"`
	Vector      VectorGrid `json:"vector,omitempty"`
	GeneratedAt time.Time  `json:"generatedAt"`
}

// LabelOr returns the scenario's label, or fallback for a nil scenario.
func (s *Scenario) LabelOr(fallback string) string {
	if s == nil {
		return fallback
	}
	return s.Label
}

// Format returns the tooltip text for a cell, or false when the cell is outside the
// grid or has no wind.
func (s *Scenario) Format(row, col int) (text string, ok bool) {
	if s == nil || row < 0 || col < 0 {
		return
	}

	switch s.FieldType {
	case Scalar:
		if row < len(s.Scalar) && col < len(s.Scalar[row]) {
			text, ok = fmt.Sprintf("Temp: %.1f°C", s.Scalar[row][col]), true
		}
	case Vector:
		if row < len(s.Vector) && col < len(s.Vector[row]) && s.Vector[row][col] != nil {
			w := s.Vector[row][col]
			text, ok = fmt.Sprintf("Wind: %.1f m/s, %.0f°", w.Magnitude, w.Angle), true
		}
	}
	return
}

func newScalarGrid(rows, cols int) ScalarGrid {
	grid := make(ScalarGrid, rows)
	for r := range grid {
		grid[r] = make([]float64, cols)
	}
	return grid
}

func newVectorGrid(rows, cols int) VectorGrid {
	grid := make(VectorGrid, rows)
	for r := range grid {
		grid[r] = make([]*Wind, cols)
	}
	return grid
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
