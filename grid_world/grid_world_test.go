package grid_world

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestGeometry(t *testing.T) {
	Convey("When building a geometry", t, func() {
		Convey("Degenerate dimensions are rejected", func() {
			for _, dims := range [][3]int{{0, 5, 10}, {5, 0, 10}, {5, 5, 0}, {-1, 5, 10}} {
				_, err := NewGeometry(dims[0], dims[1], dims[2])
				So(errors.Is(err, ErrInvalidGeometry), ShouldBeTrue)
			}
		})

		Convey("A single cell grid is valid", func() {
			geom, err := NewGeometry(1, 1, 1)
			So(err, ShouldBeNil)
			So(geom.Width(), ShouldEqual, 1)
			So(geom.Height(), ShouldEqual, 1)
		})

		Convey("The default grid is 20x20 cells of 25px", func() {
			geom := Default()
			So(geom.Rows, ShouldEqual, 20)
			So(geom.Cols, ShouldEqual, 20)
			So(geom.Width(), ShouldEqual, 500)
			So(geom.Height(), ShouldEqual, 500)
			So(geom.MaxExtent(), ShouldEqual, 20)
		})
	})

	Convey("When mapping pixels to cells", t, func() {
		geom := Default()

		Convey("The origin is the top left cell", func() {
			row, col, ok := geom.CellAt(0, 0)
			So(ok, ShouldBeTrue)
			So(row, ShouldEqual, 0)
			So(col, ShouldEqual, 0)
		})

		Convey("x selects the column and y selects the row", func() {
			row, col, ok := geom.CellAt(60, 499.9)
			So(ok, ShouldBeTrue)
			So(row, ShouldEqual, 19)
			So(col, ShouldEqual, 2)
		})

		Convey("The far boundary is outside the grid", func() {
			_, _, ok := geom.CellAt(500, 500)
			So(ok, ShouldBeFalse)
			_, _, ok = geom.CellAt(500, 10)
			So(ok, ShouldBeFalse)
			_, _, ok = geom.CellAt(10, 500)
			So(ok, ShouldBeFalse)
		})

		Convey("Negative positions are outside the grid", func() {
			_, _, ok := geom.CellAt(-0.5, 10)
			So(ok, ShouldBeFalse)
			_, _, ok = geom.CellAt(10, -1)
			So(ok, ShouldBeFalse)
		})
	})

	Convey("When mapping cells to pixels", t, func() {
		geom := Default()

		Convey("Rects tile the surface", func() {
			So(geom.CellRect(0, 0), ShouldResemble, Rect{X: 0, Y: 0, W: 25, H: 25})
			So(geom.CellRect(2, 3), ShouldResemble, Rect{X: 75, Y: 50, W: 25, H: 25})
		})

		Convey("Centers are half a cell in", func() {
			x, y := geom.CellCenter(2, 3)
			So(x, ShouldEqual, 87.5)
			So(y, ShouldEqual, 62.5)
			row, col, ok := geom.CellAt(x, y)
			So(ok, ShouldBeTrue)
			So(row, ShouldEqual, 2)
			So(col, ShouldEqual, 3)
		})

		Convey("Visit walks every cell once, row-major", func() {
			small, _ := NewGeometry(2, 3, 10)
			var visited [][2]int
			small.Visit(func(row, col int) {
				visited = append(visited, [2]int{row, col})
			})
			So(visited, ShouldResemble, [][2]int{{0, 0}, {0, 1}, {0, 2}, {1, 0}, {1, 1}, {1, 2}})
		})
	})
}
