package cell_views

import (
	"fmt"
	"html/template"
	"image/color"

	"fieldviz/grid_world"
	"fieldviz/render"
	"fieldviz/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// FieldGrid is the svg drawing surface: background, grid lines, and per cell an
// inset heat-map rect and a wind arrow path. Only the rect fills and arrow paths
// change between frames.
type FieldGrid struct {
	id      string
	lines   []gridLine
	updates <-chan []fastview.EleUpdate
}

type gridLine struct {
	X1, Y1, X2, Y2 int
}

func NewFieldGrid(
	done <-chan struct{},
	geom grid_world.Geometry,
	frames <-chan Frame,
) (fg *FieldGrid) {
	fg = &FieldGrid{
		id:    "fieldgrid",
		lines: gridLines(geom),
	}
	fg.updates = channerics.Convert(done, frames, fg.Update)
	return
}

// gridLines returns the rows+1 horizontal and cols+1 vertical cell boundaries.
func gridLines(geom grid_world.Geometry) (lines []gridLine) {
	w, h, size := geom.Width(), geom.Height(), geom.CellSize
	for r := 0; r <= geom.Rows; r++ {
		lines = append(lines, gridLine{X1: 0, Y1: r * size, X2: w, Y2: r * size})
	}
	for c := 0; c <= geom.Cols; c++ {
		lines = append(lines, gridLine{X1: c * size, Y1: 0, X2: c * size, Y2: h})
	}
	return
}

func (fg *FieldGrid) Updates() <-chan []fastview.EleUpdate {
	return fg.updates
}

func hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func rectId(cell Cell) string {
	return fmt.Sprintf("%d-%d-cell-rect", cell.Row, cell.Col)
}

func arrowId(cell Cell) string {
	return fmt.Sprintf("%d-%d-cell-arrow", cell.Row, cell.Col)
}

// Update returns the set of view updates needed for the view to reflect the frame.
func (fg *FieldGrid) Update(frame Frame) (ops []fastview.EleUpdate) {
	for _, row := range frame.Cells {
		for _, cell := range row {
			ops = append(ops,
				fastview.EleUpdate{
					EleId: rectId(cell),
					Ops: []fastview.Op{
						{Key: "fill", Value: cell.Fill},
					},
				},
				fastview.EleUpdate{
					EleId: arrowId(cell),
					Ops: []fastview.Op{
						{Key: "d", Value: cell.Arrow},
						{Key: "stroke-width", Value: cell.ArrowWidth},
					},
				})
		}
	}
	return
}

// Parse defines the svg surface template. The page script attaches the pointer
// handlers to the element with the view's id.
func (fg *FieldGrid) Parse(t *template.Template) (name string, err error) {
	name = fg.id
	_, err = t.Funcs(template.FuncMap{
		"fieldgridLines": func() []gridLine { return fg.lines },
		"fieldgridRectId": rectId,
		"fieldgridArrowId": arrowId,
	}).Parse(`{{ define "` + name + `" }}
		<svg id="` + fg.id + `" xmlns='http://www.w3.org/2000/svg'
			width="{{ .Width }}px"
			height="{{ .Height }}px"
			style="shape-rendering: crispEdges;">
			<rect x="0" y="0" width="{{ .Width }}" height="{{ .Height }}" fill="` + hex(render.BACKGROUND_COLOR) + `"/>
			<g stroke="` + hex(render.GRID_COLOR) + `" stroke-width="` + fmt.Sprintf("%.1f", float64(render.GRID_LINE_WIDTH)) + `">
			{{ range $line := fieldgridLines }}
				<line x1="{{ $line.X1 }}" y1="{{ $line.Y1 }}" x2="{{ $line.X2 }}" y2="{{ $line.Y2 }}"/>
			{{ end }}
			</g>
			{{ range $row := .Cells }}
				{{ range $cell := $row }}
				<rect id="{{ fieldgridRectId $cell }}"
					x="{{ $cell.X }}" y="{{ $cell.Y }}"
					width="{{ $cell.Size }}" height="{{ $cell.Size }}"
					fill="{{ $cell.Fill }}"/>
				<path id="{{ fieldgridArrowId $cell }}"
					d="{{ $cell.Arrow }}"
					fill="none"
					stroke="` + hex(render.ARROW_COLOR) + `"
					stroke-width="{{ $cell.ArrowWidth }}"
					stroke-linecap="round"/>
				{{ end }}
			{{ end }}
		</svg>
		{{ end }}`)
	return
}
