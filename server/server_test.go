package server

import (
	"context"
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fieldviz/controller"
	"fieldviz/fields"
	"fieldviz/grid_world"
	"fieldviz/observability"
	"fieldviz/server/cell_views"
	"fieldviz/server/fastview"
	"fieldviz/server/root_view"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	ctl *controller.Controller
	ts  *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	ctl := controller.New(controller.Options{
		Geometry:  grid_world.Default(),
		Seed:      42,
		FieldType: fields.Scalar,
		Metrics:   metrics,
	})
	ctl.Regenerate()

	srv, err := NewServer(ctx, Options{
		Controller:        ctl,
		Metrics:           metrics,
		Gatherer:          reg,
		PublishResolution: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		cancel()
		ts.Close()
	})
	return &fixture{ctl: ctl, ts: ts}
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(f.ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func (f *fixture) post(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Post(f.ts.URL+path, "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestNewServer_RequiresController(t *testing.T) {
	_, err := NewServer(context.Background(), Options{})
	assert.ErrorIs(t, err, ErrNoController)
}

func TestIndex(t *testing.T) {
	f := newFixture(t)

	resp, body := f.get(t, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, body, `id="fieldgrid"`)
	assert.Contains(t, body, `id="`+cell_views.FIELD_TYPE_SELECT_ID+`"`)
	assert.Contains(t, body, `id="`+root_view.TOOLTIP_ID+`"`)
	assert.Contains(t, body, f.ctl.Label())
}

func TestUnknownRouteAndMethod(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.get(t, "/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.get(t, "/api/regenerate")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestSurfaceExports(t *testing.T) {
	f := newFixture(t)

	t.Run("png", func(t *testing.T) {
		resp, err := http.Get(f.ts.URL + "/surface.png")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

		img, err := png.Decode(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, 500, img.Bounds().Dx())
		assert.Equal(t, 500, img.Bounds().Dy())
	})

	t.Run("svg", func(t *testing.T) {
		resp, body := f.get(t, "/surface.svg")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
		assert.Contains(t, body, "<svg")
	})
}

func TestScenarioAPI(t *testing.T) {
	f := newFixture(t)

	resp, body := f.get(t, "/api/scenario")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var scenario fields.Scenario
	require.NoError(t, json.Unmarshal([]byte(body), &scenario))
	assert.Equal(t, fields.Scalar, scenario.FieldType)
	assert.Equal(t, f.ctl.Label(), scenario.Label)
	assert.Len(t, scenario.Scalar, grid_world.GRID_ROWS)
}

func TestScenarioAPI_BeforeGeneration(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctl := controller.New(controller.Options{Geometry: grid_world.Default()})
	srv, err := NewServer(ctx, Options{Controller: ctl, Gatherer: prometheus.NewRegistry()})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scenario", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// The exports and the page still render the empty grid.
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/surface.svg", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), controller.NO_LABEL)
}

func TestRegenerateAPI(t *testing.T) {
	f := newFixture(t)
	before := f.ctl.Current()

	resp, body := f.post(t, "/api/regenerate")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotSame(t, before, f.ctl.Current())
	assert.Contains(t, body, `"fieldType":"scalar"`)

	resp, body = f.post(t, "/api/regenerate?type=vector")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"fieldType":"vector"`)
	assert.Equal(t, fields.Vector, f.ctl.FieldType())

	current := f.ctl.Current()
	resp, _ = f.post(t, "/api/regenerate?type=pressure")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Same(t, current, f.ctl.Current())
	assert.Equal(t, fields.Vector, f.ctl.FieldType())
}

func TestQueryAPI(t *testing.T) {
	f := newFixture(t)

	t.Run("hit", func(t *testing.T) {
		resp, body := f.get(t, "/api/query?x=10&y=60")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		want, ok := f.ctl.Current().Format(2, 0)
		require.True(t, ok)
		assert.JSONEq(t, `{"text":`+strings.TrimSpace(mustJSON(t, want))+`}`, body)
	})

	t.Run("off the grid", func(t *testing.T) {
		for _, q := range []string{"x=500&y=10", "x=-1&y=10", "x=10&y=500"} {
			resp, body := f.get(t, "/api/query?"+q)
			assert.Equal(t, http.StatusNoContent, resp.StatusCode, q)
			assert.Empty(t, body, q)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		for _, q := range []string{"", "x=1", "x=a&y=1", "x=1&y="} {
			resp, _ := f.get(t, "/api/query?"+q)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
		}
	})
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)
	f.get(t, "/api/query?x=10&y=10")

	resp, body := f.get(t, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "fieldviz_scenarios_generated_total")
	assert.Contains(t, body, `fieldviz_pointer_queries_total{outcome="hit"} 1`)
}

// readUntil reads ele-update batches until one satisfies match.
func readUntil(
	t *testing.T,
	conn *websocket.Conn,
	match func(map[string]fastview.EleUpdate) bool,
) map[string]fastview.EleUpdate {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var batch []fastview.EleUpdate
		require.NoError(t, conn.ReadJSON(&batch))
		byId := map[string]fastview.EleUpdate{}
		for _, update := range batch {
			byId[update.EleId] = update
		}
		if match(byId) {
			return byId
		}
	}
}

func opValue(update fastview.EleUpdate, key string) string {
	for _, op := range update.Ops {
		if op.Key == key {
			return op.Value
		}
	}
	return ""
}

func TestWebsocket(t *testing.T) {
	f := newFixture(t)

	url := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The first message brings the page up to date.
	var greeting []fastview.EleUpdate
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&greeting))
	labels := map[string]string{}
	for _, update := range greeting {
		labels[update.EleId] = opValue(update, "textContent")
	}
	assert.Equal(t, f.ctl.Label(), labels["scenariolabel-text"])
	assert.Contains(t, labels, "19-19-cell-rect")

	t.Run("hover queries are answered with the tooltip", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(fastview.ClientMessage{Type: fastview.MSG_QUERY, X: 30, Y: 5}))
		updates := readUntil(t, conn, func(m map[string]fastview.EleUpdate) bool {
			_, ok := m[root_view.TOOLTIP_ID]
			return ok
		})
		want, _ := f.ctl.Current().Format(0, 1)
		assert.Equal(t, want, opValue(updates[root_view.TOOLTIP_ID], "textContent"))
		assert.Equal(t, "tooltip visible", opValue(updates[root_view.TOOLTIP_ID], "class"))

		require.NoError(t, conn.WriteJSON(fastview.ClientMessage{Type: fastview.MSG_LEAVE}))
		updates = readUntil(t, conn, func(m map[string]fastview.EleUpdate) bool {
			tooltip, ok := m[root_view.TOOLTIP_ID]
			return ok && opValue(tooltip, "class") == "tooltip"
		})
		assert.Empty(t, opValue(updates[root_view.TOOLTIP_ID], "textContent"))
	})

	t.Run("switching field type pushes the new scenario", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(fastview.ClientMessage{Type: fastview.MSG_FIELD_TYPE, Value: "vector"}))
		readUntil(t, conn, func(m map[string]fastview.EleUpdate) bool {
			sel, ok := m[cell_views.FIELD_TYPE_SELECT_ID]
			return ok && opValue(sel, "value") == "vector"
		})
		assert.Equal(t, fields.Vector, f.ctl.FieldType())
	})

	t.Run("bad messages change nothing", func(t *testing.T) {
		current := f.ctl.Current()
		require.NoError(t, conn.WriteJSON(fastview.ClientMessage{Type: fastview.MSG_FIELD_TYPE, Value: "humidity"}))
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
		require.NoError(t, conn.WriteJSON(fastview.ClientMessage{Type: "dance"}))

		// A query still gets its reply, so the socket survived.
		require.NoError(t, conn.WriteJSON(fastview.ClientMessage{Type: fastview.MSG_QUERY, X: 5, Y: 5}))
		readUntil(t, conn, func(m map[string]fastview.EleUpdate) bool {
			_, ok := m[root_view.TOOLTIP_ID]
			return ok
		})
		assert.Same(t, current, f.ctl.Current())
	})
}
