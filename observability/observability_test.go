package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLogger(t *testing.T) {
	Convey("When building a logger", t, func() {
		Convey("Json output carries the fields", func() {
			var buf bytes.Buffer
			logger, err := NewLogger("debug", "json", &buf)
			So(err, ShouldBeNil)

			logger.WithField("kind", "scalar/spot").Debug("generated")
			var entry map[string]interface{}
			So(json.Unmarshal(buf.Bytes(), &entry), ShouldBeNil)
			So(entry["kind"], ShouldEqual, "scalar/spot")
			So(entry["msg"], ShouldEqual, "generated")
		})

		Convey("Levels below the threshold are dropped", func() {
			var buf bytes.Buffer
			logger, err := NewLogger("warn", "text", &buf)
			So(err, ShouldBeNil)
			logger.Info("quiet")
			So(buf.Len(), ShouldEqual, 0)
		})

		Convey("Bad levels and formats are rejected", func() {
			_, err := NewLogger("chatty", "text", &bytes.Buffer{})
			So(err, ShouldNotBeNil)
			_, err = NewLogger("info", "xml", &bytes.Buffer{})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestMetrics(t *testing.T) {
	Convey("When registering metrics", t, func() {
		reg := prometheus.NewRegistry()
		m := NewMetrics(reg)

		m.ScenariosGenerated.WithLabelValues("vector/radial").Inc()
		m.PointerQueries.WithLabelValues("hit").Add(2)

		So(testutil.ToFloat64(m.ScenariosGenerated.WithLabelValues("vector/radial")), ShouldEqual, 1)
		So(testutil.ToFloat64(m.PointerQueries.WithLabelValues("hit")), ShouldEqual, 2)

		Convey("A second registration on the same registry panics", func() {
			So(func() { NewMetrics(reg) }, ShouldPanic)
		})

		Convey("Test metrics never collide", func() {
			So(func() {
				NewMetricsForTesting()
				NewMetricsForTesting()
			}, ShouldNotPanic)
		})
	})
}
