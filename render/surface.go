package render

import (
	"fmt"
	"image/color"
	"io"

	"fieldviz/fields"
	"fieldviz/grid_world"

	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgsvg"
)

// Raster exports use 72 dpi so that one vg point is exactly one pixel.
const PIXEL_DPI = 72

var (
	BACKGROUND_COLOR = color.RGBA{R: 0xf9, G: 0xf9, B: 0xf9, A: 0xff}
	GRID_COLOR       = color.RGBA{R: 0xe0, G: 0xe0, B: 0xe0, A: 0xff}
	ARROW_COLOR      = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}
	GRID_LINE_WIDTH  = vg.Length(0.5)
	// Scalar cells are inset by this much on every side, leaving the grid visible.
	CELL_INSET = vg.Length(1)
)

// Surface draws scenarios for a single grid geometry. Drawing coordinates are
// surface pixels with the origin at the top left.
type Surface struct {
	geom grid_world.Geometry
}

func NewSurface(geom grid_world.Geometry) *Surface {
	return &Surface{geom: geom}
}

// Size returns the surface width and height.
func (s *Surface) Size() (w, h vg.Length) {
	return vg.Length(s.geom.Width()), vg.Length(s.geom.Height())
}

// Draw paints the background, the grid, and then the scenario's cells or arrows.
// A nil scenario draws only the empty grid.
func (s *Surface) Draw(c vg.Canvas, sc *fields.Scenario) {
	w, h := s.Size()

	c.Push()
	defer c.Pop()
	// vg's origin is the bottom left; flip it so rows run downward.
	c.Translate(vg.Point{Y: h})
	c.Scale(1, -1)

	c.SetColor(BACKGROUND_COLOR)
	c.Fill(rectPath(0, 0, w, h))

	s.drawGrid(c)
	if sc == nil {
		return
	}

	switch sc.FieldType {
	case fields.Scalar:
		s.drawScalar(c, sc.Scalar)
	case fields.Vector:
		s.drawVector(c, sc.Vector)
	}
}

func (s *Surface) drawGrid(c vg.Canvas) {
	w, h := s.Size()
	size := vg.Length(s.geom.CellSize)

	c.SetColor(GRID_COLOR)
	c.SetLineWidth(GRID_LINE_WIDTH)
	for r := 0; r <= s.geom.Rows; r++ {
		y := vg.Length(r) * size
		c.Stroke(linePath(vg.Point{X: 0, Y: y}, vg.Point{X: w, Y: y}))
	}
	for col := 0; col <= s.geom.Cols; col++ {
		x := vg.Length(col) * size
		c.Stroke(linePath(vg.Point{X: x, Y: 0}, vg.Point{X: x, Y: h}))
	}
}

func (s *Surface) drawScalar(c vg.Canvas, grid fields.ScalarGrid) {
	inner := vg.Length(s.geom.CellSize) - 2*CELL_INSET
	for r, row := range grid {
		for col, temp := range row {
			if !s.geom.Contains(r, col) {
				continue
			}
			rect := s.geom.CellRect(r, col)
			c.SetColor(TemperatureColor(temp))
			c.Fill(rectPath(
				vg.Length(rect.X)+CELL_INSET,
				vg.Length(rect.Y)+CELL_INSET,
				inner,
				inner))
		}
	}
}

func (s *Surface) drawVector(c vg.Canvas, grid fields.VectorGrid) {
	c.SetColor(ARROW_COLOR)
	for r, row := range grid {
		for col, wind := range row {
			if wind == nil || !s.geom.Contains(r, col) {
				continue
			}
			cx, cy := s.geom.CellCenter(r, col)
			arrow, ok := ArrowGeometry(
				vg.Point{X: vg.Length(cx), Y: vg.Length(cy)},
				wind.Magnitude,
				wind.Angle,
				fields.MAX_WIND_SPEED,
				float64(s.geom.CellSize))
			if !ok {
				continue
			}
			shaft, head := arrow.Paths()
			c.SetLineWidth(arrow.Thickness)
			c.Stroke(shaft)
			c.Stroke(head)
		}
	}
}

// PNG writes the scenario as a png image of the surface's pixel size.
func (s *Surface) PNG(out io.Writer, sc *fields.Scenario) (err error) {
	w, h := s.Size()
	canvas := vgimg.NewWith(vgimg.UseWH(w, h), vgimg.UseDPI(PIXEL_DPI))
	s.Draw(canvas, sc)
	if _, err = (vgimg.PngCanvas{Canvas: canvas}).WriteTo(out); err != nil {
		err = fmt.Errorf("writing png: %w", err)
	}
	return
}

// SVG writes the scenario as an svg document.
func (s *Surface) SVG(out io.Writer, sc *fields.Scenario) (err error) {
	w, h := s.Size()
	canvas := vgsvg.New(w, h)
	s.Draw(canvas, sc)
	if _, err = canvas.WriteTo(out); err != nil {
		err = fmt.Errorf("writing svg: %w", err)
	}
	return
}

func rectPath(x, y, w, h vg.Length) (p vg.Path) {
	p.Move(vg.Point{X: x, Y: y})
	p.Line(vg.Point{X: x + w, Y: y})
	p.Line(vg.Point{X: x + w, Y: y + h})
	p.Line(vg.Point{X: x, Y: y + h})
	p.Close()
	return
}

func linePath(from, to vg.Point) (p vg.Path) {
	p.Move(from)
	p.Line(to)
	return
}
