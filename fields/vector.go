package fields

import (
	"math"

	"fieldviz/grid_world"
)

// Cells closer than this to a flow's center get a zero vector; the direction
// there is undefined.
const centerEpsilon = 0.1

// uniformFlow blows one moderate wind, in one random direction, across every cell.
func uniformFlow(geom grid_world.Geometry, rng *Rand) (VectorGrid, string) {
	angle := rng.Between(0, 360)
	magnitude := rng.Float64()*MAX_WIND_SPEED*0.5 + MAX_WIND_SPEED*0.2
	return uniformGrid(geom, angle, magnitude), "Uniform Wind Flow"
}

func uniformGrid(geom grid_world.Geometry, angle, magnitude float64) (grid VectorGrid) {
	grid = newVectorGrid(geom.Rows, geom.Cols)
	geom.Visit(func(r, c int) {
		grid[r][c] = &Wind{Magnitude: magnitude, Angle: angle}
	})
	return
}

// rotationalFlow is a vortex around the geometric center of the grid.
func rotationalFlow(geom grid_world.Geometry, rng *Rand) (VectorGrid, string) {
	if rng.Float64() < 0.5 {
		return vortexGrid(geom, true), "Rotational Flow (CCW)"
	}
	return vortexGrid(geom, false), "Rotational Flow (CW)"
}

// vortexGrid orients every vector tangentially, +90° from the radial direction when
// ccw is set and -90° otherwise. The center lies between cells on even grids, so
// only odd grids have a cell at the center. Speed grows linearly with distance.
func vortexGrid(geom grid_world.Geometry, ccw bool) (grid VectorGrid) {
	grid = newVectorGrid(geom.Rows, geom.Cols)
	direction := -1.0
	if ccw {
		direction = 1.0
	}
	centerR := float64(geom.Rows)/2 - 0.5
	centerC := float64(geom.Cols)/2 - 0.5
	maxDist := float64(geom.MaxExtent()) / 2

	geom.Visit(func(r, c int) {
		dy := float64(r) - centerR
		dx := float64(c) - centerC
		dist := math.Hypot(dx, dy)
		if dist < centerEpsilon {
			grid[r][c] = &Wind{}
			return
		}

		angle := normalizeDegrees(degrees(math.Atan2(dy, dx)) + 90*direction)
		magnitude := math.Min(MAX_WIND_SPEED, dist/maxDist*MAX_WIND_SPEED*0.8)
		grid[r][c] = &Wind{Magnitude: magnitude, Angle: angle}
	})
	return
}

// radialFlow converges on, or diverges from, a random cell.
func radialFlow(geom grid_world.Geometry, rng *Rand) (VectorGrid, string) {
	converging := rng.Float64() < 0.5
	centerR := rng.Intn(geom.Rows)
	centerC := rng.Intn(geom.Cols)

	label := "Diverging Wind Flow"
	if converging {
		label = "Converging Wind Flow"
	}
	return radialGrid(geom, converging, centerR, centerC), label
}

// radialGrid points every vector at (converging) or away from (diverging) the center
// cell, weakening with distance; the center cell itself is calm.
func radialGrid(
	geom grid_world.Geometry,
	converging bool,
	centerR, centerC int,
) (grid VectorGrid) {
	grid = newVectorGrid(geom.Rows, geom.Cols)
	extent := float64(geom.MaxExtent())

	geom.Visit(func(r, c int) {
		dy := float64(r - centerR)
		dx := float64(c - centerC)
		dist := math.Hypot(dx, dy)
		if dist < centerEpsilon {
			grid[r][c] = &Wind{}
			return
		}

		var rad float64
		if converging {
			rad = math.Atan2(-dy, -dx)
		} else {
			rad = math.Atan2(dy, dx)
		}
		magnitude := math.Min(MAX_WIND_SPEED, MAX_WIND_SPEED*(1-dist/extent)*0.9)
		grid[r][c] = &Wind{
			Magnitude: math.Max(0, magnitude),
			Angle:     normalizeDegrees(degrees(rad)),
		}
	})
	return
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// normalizeDegrees wraps an angle in [-360, 720) into [0, 360).
func normalizeDegrees(deg float64) float64 {
	if deg == 0 {
		// atan2 of a negated zero offset is -0, which would format as "-0°".
		return 0
	}
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg -= 360
	}
	return deg
}
