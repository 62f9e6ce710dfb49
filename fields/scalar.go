package fields

import (
	"math"

	"fieldviz/grid_world"
)

const (
	tempRange = MAX_TEMP - MIN_TEMP
	// How far the spot departs from the base temperature.
	spotStrength = 0.8 * tempRange
)

// randomTemperatures draws every cell independently from [MIN_TEMP, MAX_TEMP).
func randomTemperatures(geom grid_world.Geometry, rng *Rand) (ScalarGrid, string) {
	grid := newScalarGrid(geom.Rows, geom.Cols)
	geom.Visit(func(r, c int) {
		grid[r][c] = rng.Between(MIN_TEMP, MAX_TEMP)
	})
	return grid, "Random Temperature Distribution"
}

// linearGradient picks an orientation and a rising start/end pair, both starting
// in the lower half of the temperature range.
func linearGradient(geom grid_world.Geometry, rng *Rand) (ScalarGrid, string) {
	horizontal := rng.Float64() < 0.5
	startTemp := MIN_TEMP + rng.Float64()*(tempRange/2)
	endTemp := startTemp + rng.Float64()*(tempRange/2)

	label := "Linear Temperature Gradient (Vertical)"
	if horizontal {
		label = "Linear Temperature Gradient (Horizontal)"
	}
	return gradientGrid(geom, horizontal, startTemp, endTemp), label
}

// gradientGrid interpolates from start at the first row/column to end at the last.
func gradientGrid(
	geom grid_world.Geometry,
	horizontal bool,
	startTemp, endTemp float64,
) (grid ScalarGrid) {
	grid = newScalarGrid(geom.Rows, geom.Cols)
	geom.Visit(func(r, c int) {
		var progress float64
		if horizontal {
			progress = progressAlong(c, geom.Cols)
		} else {
			progress = progressAlong(r, geom.Rows)
		}
		grid[r][c] = clamp(startTemp+(endTemp-startTemp)*progress, MIN_TEMP, MAX_TEMP)
	})
	return
}

// progressAlong is index/(extent-1), defined as 0 for a single row or column.
func progressAlong(index, extent int) float64 {
	if extent <= 1 {
		return 0
	}
	return float64(index) / float64(extent-1)
}

// centralSpot places a hot or cold spot on the center cell over a cool base.
func centralSpot(geom grid_world.Geometry, rng *Rand) (ScalarGrid, string) {
	hot := rng.Float64() < 0.5
	baseTemp := MIN_TEMP + tempRange*0.3*rng.Float64()

	label := "Central Cold Spot"
	if hot {
		label = "Central Hot Spot"
	}
	return spotGrid(geom, hot, baseTemp), label
}

// spotGrid falls off linearly from the center cell out to a third of the larger
// grid extent; beyond that radius every cell sits at the base (hot) or base plus
// strength (cold).
func spotGrid(geom grid_world.Geometry, hot bool, baseTemp float64) (grid ScalarGrid) {
	grid = newScalarGrid(geom.Rows, geom.Cols)
	centerR, centerC := geom.Rows/2, geom.Cols/2
	maxRadius := float64(geom.MaxExtent()) / 3

	geom.Visit(func(r, c int) {
		distance := math.Hypot(float64(r-centerR), float64(c-centerC))
		influence := math.Max(0, 1-distance/maxRadius)

		var temp float64
		if hot {
			temp = baseTemp + influence*spotStrength
		} else {
			temp = (baseTemp + spotStrength) - influence*spotStrength
		}
		grid[r][c] = clamp(temp, MIN_TEMP, MAX_TEMP)
	})
	return
}
