package controller

import (
	"sync"
	"testing"
	"time"

	"fieldviz/fields"
	"fieldviz/grid_world"
	"fieldviz/observability"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func newTestController(ft fields.FieldType) (*Controller, *observability.Metrics, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	metrics := observability.NewMetricsForTesting()
	ctl := New(Options{
		Geometry:  grid_world.Default(),
		Seed:      11,
		FieldType: ft,
		Clock:     clock,
		Metrics:   metrics,
	})
	return ctl, metrics, clock
}

func TestController(t *testing.T) {
	Convey("When the controller has not generated anything", t, func() {
		ctl, _, _ := newTestController(fields.Scalar)

		So(ctl.Current(), ShouldBeNil)
		So(ctl.Label(), ShouldEqual, NO_LABEL)
		_, ok := ctl.Query(10, 10)
		So(ok, ShouldBeFalse)
	})

	Convey("When regenerating scalar scenarios", t, func() {
		ctl, metrics, clock := newTestController(fields.Scalar)

		Convey("Every grid is complete and in range", func() {
			for i := 0; i < 1000; i++ {
				scenario := ctl.Regenerate()
				So(len(scenario.Scalar), ShouldEqual, grid_world.GRID_ROWS)
				for _, row := range scenario.Scalar {
					if len(row) != grid_world.GRID_COLS {
						t.Fatalf("row of %d cells", len(row))
					}
					for _, v := range row {
						if v < fields.MIN_TEMP || v > fields.MAX_TEMP {
							t.Fatalf("temperature %v out of range", v)
						}
					}
				}
			}
		})

		Convey("The active scenario, label and timestamp follow the latest generation", func() {
			scenario := ctl.Regenerate()
			So(ctl.Current(), ShouldEqual, scenario)
			So(ctl.Label(), ShouldEqual, scenario.Label)
			So(scenario.GeneratedAt.Equal(clock.Now()), ShouldBeTrue)
			So(testutil.ToFloat64(metrics.ScenariosGenerated.WithLabelValues(scenario.Kind)), ShouldEqual, 1)
		})

		Convey("Pointer queries format the cell under the pixel", func() {
			scenario := ctl.Regenerate()

			text, ok := ctl.Query(0, 0)
			So(ok, ShouldBeTrue)
			expected, _ := scenario.Format(0, 0)
			So(text, ShouldEqual, expected)

			text, ok = ctl.Query(60, 499.9)
			So(ok, ShouldBeTrue)
			expected, _ = scenario.Format(19, 2)
			So(text, ShouldEqual, expected)

			_, ok = ctl.Query(500, 500)
			So(ok, ShouldBeFalse)
			_, ok = ctl.Query(-1, 10)
			So(ok, ShouldBeFalse)

			So(testutil.ToFloat64(metrics.PointerQueries.WithLabelValues("hit")), ShouldEqual, 2)
			So(testutil.ToFloat64(metrics.PointerQueries.WithLabelValues("miss")), ShouldEqual, 2)
		})
	})

	Convey("When switching field types", t, func() {
		ctl, _, _ := newTestController(fields.Scalar)
		ctl.Regenerate()

		Convey("Vector mode produces vector scenarios", func() {
			scenario := ctl.SetFieldType(fields.Vector)
			So(ctl.FieldType(), ShouldEqual, fields.Vector)
			So(scenario.FieldType, ShouldEqual, fields.Vector)
			So(scenario.Scalar, ShouldBeNil)
			So(len(scenario.Vector), ShouldEqual, grid_world.GRID_ROWS)

			Convey("Later regenerations stay in vector mode", func() {
				So(ctl.Regenerate().FieldType, ShouldEqual, fields.Vector)
			})
		})

		Convey("Selecting the same type still regenerates", func() {
			before := ctl.Current()
			after := ctl.SetFieldType(fields.Scalar)
			So(after, ShouldNotEqual, before)
			So(ctl.Current(), ShouldEqual, after)
		})
	})

	Convey("When consuming updates", t, func() {
		ctl, _, _ := newTestController(fields.Vector)

		Convey("Only the most recent unconsumed scenario is delivered", func() {
			ctl.Regenerate()
			ctl.Regenerate()
			latest := ctl.Regenerate()

			So(<-ctl.Updates(), ShouldEqual, latest)
			select {
			case <-ctl.Updates():
				t.Fatal("stale scenario delivered")
			default:
			}
		})

		Convey("Concurrent mutators never block and readers never see partial grids", func() {
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					for j := 0; j < 50; j++ {
						if (i+j)%3 == 0 {
							ctl.SetFieldType(fields.FieldType((i + j) % 2))
						} else {
							ctl.Regenerate()
						}
						if current := ctl.Current(); current != nil {
							ctl.Query(12, 12)
						}
					}
				}(i)
			}
			wg.Wait()

			current := ctl.Current()
			So(current, ShouldNotBeNil)
			So(current.FieldType, ShouldEqual, ctl.FieldType())
			So(<-ctl.Updates(), ShouldEqual, current)
		})
	})
}
