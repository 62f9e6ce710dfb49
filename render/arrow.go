package render

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/plot/vg"
)

const (
	// Length of each arrow head stroke, in pixels.
	ARROW_HEAD_SIZE = 6
	// Arrows shorter than this many pixels are not drawn.
	MIN_ARROW_LENGTH = 1.0
	// Wind speeds at or below this are treated as calm.
	MIN_ARROW_MAGNITUDE = 0.01
)

var headSpread = math.Pi / 6

// Arrow is the geometry of one wind arrow in surface pixels, where y grows downward:
// a shaft from the cell center to the tip plus two head strokes ending at Heads.
type Arrow struct {
	Start     vg.Point
	Tip       vg.Point
	Heads     [2]vg.Point
	Thickness vg.Length
}

// ArrowGeometry computes the arrow for a vector centered at center. Its length
// scales with magnitude up to 40% of the cell size. The second return is false
// when the vector is too weak or too short to be worth drawing.
func ArrowGeometry(
	center vg.Point,
	magnitude float64,
	angleDeg float64,
	maxMagnitude float64,
	cellSize float64,
) (arrow Arrow, ok bool) {
	if magnitude <= MIN_ARROW_MAGNITUDE || maxMagnitude <= 0 {
		return
	}

	scale := magnitude / maxMagnitude
	length := 0.4 * cellSize * scale
	if length < MIN_ARROW_LENGTH {
		return
	}

	theta := angleDeg * math.Pi / 180
	tip := vg.Point{
		X: center.X + vg.Length(length*math.Cos(theta)),
		Y: center.Y + vg.Length(length*math.Sin(theta)),
	}
	arrow = Arrow{
		Start: center,
		Tip:   tip,
		Heads: [2]vg.Point{
			headPoint(tip, theta-headSpread),
			headPoint(tip, theta+headSpread),
		},
		Thickness: vg.Length(math.Max(1, math.Min(3, scale*3))),
	}
	return arrow, true
}

func headPoint(tip vg.Point, theta float64) vg.Point {
	return vg.Point{
		X: tip.X - vg.Length(ARROW_HEAD_SIZE*math.Cos(theta)),
		Y: tip.Y - vg.Length(ARROW_HEAD_SIZE*math.Sin(theta)),
	}
}

// Paths returns the shaft and the head as separate open paths, in the same
// coordinates as the arrow.
func (a Arrow) Paths() (shaft, head vg.Path) {
	shaft.Move(a.Start)
	shaft.Line(a.Tip)

	head.Move(a.Heads[0])
	head.Line(a.Tip)
	head.Line(a.Heads[1])
	return
}

// SVGPath returns the arrow as an svg path "d" attribute.
func (a Arrow) SVGPath() string {
	var sb strings.Builder
	moveLine := func(pts ...vg.Point) {
		for i, pt := range pts {
			op := "L"
			if i == 0 {
				op = "M"
			}
			fmt.Fprintf(&sb, "%s%.2f %.2f ", op, float64(pt.X), float64(pt.Y))
		}
	}
	moveLine(a.Start, a.Tip)
	moveLine(a.Heads[0], a.Tip, a.Heads[1])
	return strings.TrimSpace(sb.String())
}

// Glyphs for the eight compass sectors, starting at 0° (right) and turning
// clockwise on screen, since y grows downward.
var arrowGlyphs = []rune("→↘↓↙←↖↑↗")

// ArrowGlyph returns the single-character arrow closest to angleDeg.
func ArrowGlyph(angleDeg float64) rune {
	sector := int(math.Round(angleDeg/45)) % 8
	if sector < 0 {
		sector += 8
	}
	return arrowGlyphs[sector]
}
