package grid_world

import (
	"errors"
	"fmt"
	"math"
)

// The fixed grid over which every field is generated and drawn. These are not
// user editable; the page, the exports and the terminal view all assume them.
const (
	GRID_ROWS      = 20
	GRID_COLS      = 20
	GRID_CELL_SIZE = 25 // pixels per cell side
)

// ErrInvalidGeometry is returned when a grid would have no cells or no pixels.
var ErrInvalidGeometry = errors.New("invalid grid geometry")

// Geometry is the immutable shape of the grid: rows by columns of square cells,
// each CellSize pixels wide. Row 0 is the top of the surface and column 0 the left,
// the same orientation as a canvas or svg coordinate system, so that [row][col]
// indexing and pixel math agree without any flipping.
type Geometry struct {
	Rows     int
	Cols     int
	CellSize int
}

// Rect is a pixel rectangle on the drawing surface, anchored at its top left.
type Rect struct {
	X, Y, W, H float64
}

// NewGeometry returns a geometry, or an error if any dimension is less than one.
func NewGeometry(rows, cols, cellSize int) (Geometry, error) {
	if rows < 1 || cols < 1 || cellSize < 1 {
		return Geometry{}, fmt.Errorf("%w: %dx%d cells of %dpx", ErrInvalidGeometry, rows, cols, cellSize)
	}
	return Geometry{Rows: rows, Cols: cols, CellSize: cellSize}, nil
}

// Default returns the 20x20 grid of 25px cells.
func Default() Geometry {
	return Geometry{Rows: GRID_ROWS, Cols: GRID_COLS, CellSize: GRID_CELL_SIZE}
}

// Width is the surface width in pixels.
func (g Geometry) Width() int {
	return g.Cols * g.CellSize
}

// Height is the surface height in pixels.
func (g Geometry) Height() int {
	return g.Rows * g.CellSize
}

// MaxExtent returns the larger of the row and column counts.
func (g Geometry) MaxExtent() int {
	if g.Rows > g.Cols {
		return g.Rows
	}
	return g.Cols
}

// Contains reports whether (row, col) addresses a cell of the grid.
func (g Geometry) Contains(row, col int) bool {
	return row >= 0 && row < g.Rows && col >= 0 && col < g.Cols
}

// CellAt maps a pixel position to the cell beneath it. Positions on or beyond the
// right/bottom edge, and negative positions, are outside the grid: ok is false.
func (g Geometry) CellAt(px, py float64) (row, col int, ok bool) {
	if math.IsNaN(px) || math.IsNaN(py) {
		return
	}
	size := float64(g.CellSize)
	c := math.Floor(px / size)
	r := math.Floor(py / size)
	// Compare as floats first so huge coordinates cannot overflow the int conversion.
	if r < 0 || c < 0 || r >= float64(g.Rows) || c >= float64(g.Cols) {
		return
	}
	return int(r), int(c), true
}

// CellRect returns the pixel rectangle covered by a cell.
func (g Geometry) CellRect(row, col int) Rect {
	size := float64(g.CellSize)
	return Rect{
		X: float64(col) * size,
		Y: float64(row) * size,
		W: size,
		H: size,
	}
}

// CellCenter returns the pixel center of a cell.
func (g Geometry) CellCenter(row, col int) (x, y float64) {
	size := float64(g.CellSize)
	x = float64(col)*size + size/2
	y = float64(row)*size + size/2
	return
}

// Visit calls fn for every cell, row-major from the top left.
func (g Geometry) Visit(fn func(row, col int)) {
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			fn(r, c)
		}
	}
}
