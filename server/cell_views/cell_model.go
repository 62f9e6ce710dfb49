// cell_views contains views derived from the Frame view-model.
package cell_views

import (
	"fmt"

	"fieldviz/fields"
	"fieldviz/grid_world"
	"fieldviz/render"

	"gonum.org/v1/plot/vg"
)

// Frame is a scenario converted into plain view parameters, ready to be dropped
// into templates or ele-updates without any further math in the views.
type Frame struct {
	Label     string
	FieldType string
	Summary   string
	Width     int
	Height    int
	// Cells is indexed [row][col], row 0 at the top, the same as svg coordinates.
	Cells [][]Cell
}

// Cell is one grid cell's view parameters. As a rule of thumb, Cell fields should be
// immediately usable as view parameters; arbitrary calculated fields can be added as
// desired.
type Cell struct {
	Row, Col int
	// The inset rectangle painted for scalar fields.
	X, Y, Size int
	Fill       string
	// Arrow is an svg path, empty when the cell has no visible arrow.
	Arrow      string
	ArrowWidth string
	// Level is the cell's value scaled to [0, 1] over its field's range.
	Level float64
}

const (
	// Fill of cells that are not heat-mapped, so the background shows through.
	NO_FILL = "none"
	inset   = 1
)

// NewConverter returns the function converting scenarios to frames for geom. A nil
// scenario converts to an empty grid.
func NewConverter(geom grid_world.Geometry) func(*fields.Scenario) Frame {
	return func(sc *fields.Scenario) (frame Frame) {
		frame = Frame{
			Label:  sc.LabelOr("N/A"),
			Width:  geom.Width(),
			Height: geom.Height(),
			Cells:  make([][]Cell, geom.Rows),
		}
		for r := range frame.Cells {
			frame.Cells[r] = make([]Cell, geom.Cols)
		}

		geom.Visit(func(r, c int) {
			rect := geom.CellRect(r, c)
			frame.Cells[r][c] = Cell{
				Row:        r,
				Col:        c,
				X:          int(rect.X) + inset,
				Y:          int(rect.Y) + inset,
				Size:       geom.CellSize - 2*inset,
				Fill:       NO_FILL,
				ArrowWidth: "0",
			}
		})
		if sc == nil {
			return
		}

		frame.FieldType = sc.FieldType.String()
		frame.Summary = summarize(sc)
		switch sc.FieldType {
		case fields.Scalar:
			setScalar(geom, frame.Cells, sc.Scalar)
		case fields.Vector:
			setVector(geom, frame.Cells, sc.Vector)
		}
		return
	}
}

func setScalar(geom grid_world.Geometry, cells [][]Cell, grid fields.ScalarGrid) {
	for r, row := range grid {
		for c, temp := range row {
			if !geom.Contains(r, c) {
				continue
			}
			cells[r][c].Fill = render.CSS(render.TemperatureColor(temp))
			cells[r][c].Level = (temp - fields.MIN_TEMP) / (fields.MAX_TEMP - fields.MIN_TEMP)
		}
	}
}

func setVector(geom grid_world.Geometry, cells [][]Cell, grid fields.VectorGrid) {
	for r, row := range grid {
		for c, wind := range row {
			if wind == nil || !geom.Contains(r, c) {
				continue
			}
			cells[r][c].Level = wind.Magnitude / fields.MAX_WIND_SPEED

			cx, cy := geom.CellCenter(r, c)
			arrow, ok := render.ArrowGeometry(
				vg.Point{X: vg.Length(cx), Y: vg.Length(cy)},
				wind.Magnitude,
				wind.Angle,
				fields.MAX_WIND_SPEED,
				float64(geom.CellSize))
			if ok {
				cells[r][c].Arrow = arrow.SVGPath()
				cells[r][c].ArrowWidth = fmt.Sprintf("%.2f", float64(arrow.Thickness))
			}
		}
	}
}

func summarize(sc *fields.Scenario) string {
	sum := sc.Summarize()
	if sum.Present == 0 {
		return ""
	}
	unit := "°C"
	if sc.FieldType == fields.Vector {
		unit = " m/s"
	}
	return fmt.Sprintf("min %.1f%s, mean %.1f%s, max %.1f%s",
		sum.Min, unit, sum.Mean, unit, sum.Max, unit)
}
