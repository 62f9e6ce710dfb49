package cell_views

import (
	"fmt"
	"html/template"
	"math"

	"fieldviz/grid_world"
	"fieldviz/render"
	"fieldviz/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// Relief provides a 3d view of the active field as a 2d isometric projection of
// (col, row, level): temperatures for scalar fields, wind speed for vector fields.
type Relief struct {
	id      string
	width   float64 // view size in pixels
	height  float64
	xyscale float64 // pixels per row or col
	zscale  float64 // pixels per unit of level
	updates <-chan []fastview.EleUpdate
}

const (
	RELIEF_CELL_DIM = 16.0
	// ang could easily be a dynamic parameter for a fixed set of view angles (30, 45, etc.)
	ang = math.Pi / 6 // angle of x, y axes (e.g. =30°)
)

var sinAng, cosAng = math.Sin(ang), math.Cos(ang)

func NewRelief(
	done <-chan struct{},
	geom grid_world.Geometry,
	frames <-chan Frame,
) (rv *Relief) {
	rv = &Relief{
		id:      "relief",
		width:   float64(geom.Cols) * RELIEF_CELL_DIM * 2,
		height:  float64(geom.Rows) * RELIEF_CELL_DIM * 1.5,
		xyscale: RELIEF_CELL_DIM,
		zscale:  RELIEF_CELL_DIM * 5,
	}
	rv.updates = channerics.Convert(done, frames, rv.Update)
	return
}

func (rv *Relief) Updates() <-chan []fastview.EleUpdate {
	return rv.updates
}

// project applies an isometric projection to the passed point.
func (rv *Relief) project(x, y, z float64) (float64, float64) {
	sx := (x - y) * cosAng * rv.xyscale
	sy := (x+y)*sinAng*rv.xyscale - z*rv.zscale
	return sx, sy
}

// Cell-A is bottom left, Cell-B is top left, Cell-C is top right, and Cell-D is bottom right.
// The polygon is projected into 2d using the lissajous transformation described in The Go Programming Language.
func (rv *Relief) makePolygon(
	cellA Cell,
	cellB Cell,
	cellC Cell,
	cellD Cell,
) (fp *funcPolygon) {
	fp = &funcPolygon{
		Id: fmt.Sprintf("%d-%d-relief-polygon", cellB.Row, cellB.Col),
	}
	fp.ax, fp.ay = rv.project(float64(cellA.Col), float64(cellA.Row), cellA.Level)
	fp.bx, fp.by = rv.project(float64(cellB.Col), float64(cellB.Row), cellB.Level)
	fp.cx, fp.cy = rv.project(float64(cellC.Col), float64(cellC.Row), cellC.Level)
	fp.dx, fp.dy = rv.project(float64(cellD.Col), float64(cellD.Row), cellD.Level)
	fp.Fill = render.CSS(render.MapColor(
		avg(cellA.Level, cellB.Level, cellC.Level, cellD.Level), 0, 1))
	return
}

type funcPolygon struct {
	Id     string
	Fill   string
	ax, ay float64
	bx, by float64
	cx, cy float64
	dx, dy float64
}

// Points returns a string suitable for the svg-polygon 'points' attribute.
// The values are truncated to ints, which is a bit of premature svg-optimization.
func (fp *funcPolygon) Points() string {
	return fmt.Sprintf("%d,%d %d,%d %d,%d %d,%d",
		int(fp.ax), int(fp.ay),
		int(fp.bx), int(fp.by),
		int(fp.cx), int(fp.cy),
		int(fp.dx), int(fp.dy),
	)
}

func minFour(f1, f2, f3, f4 float64) float64 {
	return math.Min(
		math.Min(f1, f2),
		math.Min(f3, f4),
	)
}

func maxFour(f1, f2, f3, f4 float64) float64 {
	return math.Max(
		math.Max(f1, f2),
		math.Max(f3, f4),
	)
}

func (fp *funcPolygon) MinX() float64 {
	return minFour(fp.ax, fp.bx, fp.cx, fp.dx)
}

func (fp *funcPolygon) MinY() float64 {
	return minFour(fp.ay, fp.by, fp.cy, fp.dy)
}

func (fp *funcPolygon) MaxX() float64 {
	return maxFour(fp.ax, fp.bx, fp.cx, fp.dx)
}

func (fp *funcPolygon) MaxY() float64 {
	return maxFour(fp.ay, fp.by, fp.cy, fp.dy)
}

func avg(f ...float64) float64 {
	n, sum := 0.0, 0.0
	for _, fn := range f {
		sum += fn
		n++
	}
	return sum / n
}

// layout builds the polygons in drawing order and the group transform that fits
// them into the view. The order forms a nice visual surface by letting nearer
// polygons obscure farther ones: rows top-down, columns right to left.
func (rv *Relief) layout(frame Frame) (polygons []*funcPolygon, transform string) {
	cells := frame.Cells
	xmin, ymin := math.MaxFloat64, math.MaxFloat64
	xmax, ymax := -math.MaxFloat64, -math.MaxFloat64

	for ri := 0; ri < len(cells)-1; ri++ {
		for ci := len(cells[ri]) - 2; ci >= 0; ci-- {
			polygon := rv.makePolygon(
				cells[ri+1][ci],
				cells[ri][ci],
				cells[ri][ci+1],
				cells[ri+1][ci+1],
			)
			polygons = append(polygons, polygon)

			xmin = math.Min(xmin, polygon.MinX())
			xmax = math.Max(xmax, polygon.MaxX())
			ymin = math.Min(ymin, polygon.MinY())
			ymax = math.Max(ymax, polygon.MaxY())
		}
	}

	if len(polygons) == 0 {
		return nil, "translate(0 0)"
	}

	// Shift everything by the min x and y, and scale down only when needed to fit.
	scaler := math.Min(
		math.Min(
			math.Abs(rv.width/(xmax-xmin)),
			math.Abs(rv.height/(ymax-ymin)),
		),
		1.0,
	)
	transform = fmt.Sprintf("scale(%f) translate(%d %d)", scaler, int(-xmin), int(-ymin))
	return
}

// Update returns the set of view updates needed for the view to reflect the frame.
func (rv *Relief) Update(frame Frame) (ops []fastview.EleUpdate) {
	polygons, transform := rv.layout(frame)
	for _, polygon := range polygons {
		ops = append(ops, fastview.EleUpdate{
			EleId: polygon.Id,
			Ops: []fastview.Op{
				{Key: "points", Value: polygon.Points()},
				{Key: "fill", Value: polygon.Fill},
			},
		})
	}

	ops = append(ops, fastview.EleUpdate{
		EleId: rv.id + "-group",
		Ops: []fastview.Op{
			{Key: "transform", Value: transform},
		},
	})
	return
}

// Parse returns an svg of polygons plotting the field's surface as a 2D projection.
func (rv *Relief) Parse(t *template.Template) (name string, err error) {
	name = rv.id
	_, err = t.Funcs(template.FuncMap{
		"reliefLayout": func(frame Frame) []*funcPolygon {
			polygons, _ := rv.layout(frame)
			return polygons
		},
		"reliefTransform": func(frame Frame) string {
			_, transform := rv.layout(frame)
			return transform
		},
	}).Parse(`{{ define "` + name + `" }}
		<div style="padding:20px;">
			<svg id="` + rv.id + `" xmlns='http://www.w3.org/2000/svg'
				width="` + fmt.Sprintf("%d", int(rv.width)) + `px"
				height="` + fmt.Sprintf("%d", int(rv.height)) + `px"
				style="stroke: lightgrey; stroke-opacity: 1.0; stroke-width: 0.5;">
				<g id="` + rv.id + `-group" transform="{{ reliefTransform . }}">
				{{ range $polygon := reliefLayout . }}
					<polygon id="{{ $polygon.Id }}"
						fill="{{ $polygon.Fill }}" fill-opacity="1.0"
						points="{{ $polygon.Points }}" />
				{{ end }}
				</g>
			</svg>
		</div>
		{{ end }}`)
	return
}
