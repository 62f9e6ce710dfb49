// render draws scenarios onto a gonum/plot vg.Canvas: the heat-map cells of a
// scalar field, the arrows of a vector field, and the grid that frames them.
// The same drawing code backs the PNG and SVG exports.
package render

import (
	"fmt"
	"image/color"
	"math"

	"fieldviz/fields"
)

// MapColor maps a value in [min, max] onto a four-segment blue-cyan-green-yellow-red
// ramp. Values outside the range are clamped to its ends, and a degenerate range
// maps everything to blue.
func MapColor(value, min, max float64) color.RGBA {
	var t float64
	if max != min {
		t = (value - min) / (max - min)
	}
	if math.IsNaN(t) {
		t = 0
	}
	t = math.Max(0, math.Min(1, t))

	var r, g, b float64
	switch {
	case t < 0.25:
		r, g, b = 0, 255*t/0.25, 255
	case t < 0.5:
		r, g, b = 0, 255, 255*(1-(t-0.25)/0.25)
	case t < 0.75:
		r, g, b = 255*(t-0.5)/0.25, 255, 0
	default:
		r, g, b = 255, 255*(1-(t-0.75)/0.25), 0
	}

	return color.RGBA{R: channel(r), G: channel(g), B: channel(b), A: 255}
}

// TemperatureColor is MapColor over the fixed temperature range.
func TemperatureColor(temp float64) color.RGBA {
	return MapColor(temp, fields.MIN_TEMP, fields.MAX_TEMP)
}

// CSS formats c as an rgb() color for svg and html attributes.
func CSS(c color.RGBA) string {
	return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B)
}

func channel(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Floor(v))))
}
