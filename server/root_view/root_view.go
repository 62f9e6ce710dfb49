package root_view

import (
	"context"
	"html/template"
	"time"

	"fieldviz/fields"
	"fieldviz/grid_world"
	"fieldviz/server/cell_views"
	"fieldviz/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

const (
	// The window within which updates for the same element are collapsed into one.
	BATCH_RATE = time.Millisecond * 20
	TOOLTIP_ID = "tooltip"
)

// RootView is the main page's index.html, which is the container for all the
// view components, the wiring for their channels, etc.
type RootView struct {
	views   []fastview.ViewComponent
	updates <-chan []fastview.EleUpdate
	convert func(*fields.Scenario) cell_views.Frame
	// One per view, in view order: the updates that bring a fresh page to a frame.
	snapshots []func(cell_views.Frame) []fastview.EleUpdate
}

// NewRootView creates the main page and the views it contains. The views' channels
// are closed when ctx is cancelled.
func NewRootView(
	ctx context.Context,
	geom grid_world.Geometry,
	scenarios <-chan *fields.Scenario,
) (rv *RootView, err error) {
	rv = &RootView{
		convert: cell_views.NewConverter(geom),
	}

	// Build all of the views up front; each page gets the same set and only the
	// ele-updates differ over time.
	rv.views, err = fastview.NewViewBuilder[*fields.Scenario, cell_views.Frame]().
		WithContext(ctx).
		WithModel(scenarios, rv.convert).
		WithView(func(
			done <-chan struct{},
			frames <-chan cell_views.Frame) fastview.ViewComponent {
			sl := cell_views.NewScenarioLabel(done, frames)
			rv.snapshots = append(rv.snapshots, sl.Update)
			return sl
		}).
		WithView(func(
			done <-chan struct{},
			frames <-chan cell_views.Frame) fastview.ViewComponent {
			fg := cell_views.NewFieldGrid(done, geom, frames)
			rv.snapshots = append(rv.snapshots, fg.Update)
			return fg
		}).
		WithView(func(
			done <-chan struct{},
			frames <-chan cell_views.Frame) fastview.ViewComponent {
			relief := cell_views.NewRelief(done, geom, frames)
			rv.snapshots = append(rv.snapshots, relief.Update)
			return relief
		}).
		Build()
	if err != nil {
		return nil, err
	}

	rv.updates = fanIn(ctx.Done(), rv.views, BATCH_RATE)
	return
}

// Updates returns the main ele-update channel for all the views.
func (rv *RootView) Updates() <-chan []fastview.EleUpdate {
	return rv.updates
}

// Frame converts a scenario into the view-model the page template executes against.
func (rv *RootView) Frame(sc *fields.Scenario) cell_views.Frame {
	return rv.convert(sc)
}

// Snapshot returns every update needed to bring any page, however stale, to the
// passed scenario. Sent to each page when its websocket opens.
func (rv *RootView) Snapshot(sc *fields.Scenario) (updates []fastview.EleUpdate) {
	frame := rv.convert(sc)
	for _, snapshot := range rv.snapshots {
		updates = append(updates, snapshot(frame)...)
	}
	return
}

// TooltipUpdate shows the tooltip with text, or hides it when ok is false.
func TooltipUpdate(text string, ok bool) []fastview.EleUpdate {
	class := "tooltip"
	if ok {
		class = "tooltip visible"
	}
	return []fastview.EleUpdate{
		{
			EleId: TOOLTIP_ID,
			Ops: []fastview.Op{
				{Key: "textContent", Value: text},
				{Key: "class", Value: class},
			},
		},
	}
}

// Parse builds the main page's template, with websocket bootstrap code, and returns its name.
// It also sets up the func-map that child components may depend on.
func (rv *RootView) Parse(
	parent *template.Template,
) (name string, err error) {
	rt := parent.Funcs(
		template.FuncMap{
			"add":  func(i, j int) int { return i + j },
			"sub":  func(i, j int) int { return i - j },
			"mult": func(i, j int) int { return i * j },
			"div":  func(i, j int) int { return i / j },
			"max": func(i, j int) int {
				if i > j {
					return i
				}
				return j
			},
		})

	viewTemplates := []string{}
	for _, vc := range rv.views {
		tname, parseErr := vc.Parse(rt)
		if parseErr != nil {
			err = parseErr
			return
		}
		viewTemplates = append(viewTemplates, tname)
	}

	// The label sits above the controls, the surface and the relief side by side below.
	var bodySpec string
	for i, tname := range viewTemplates {
		if i == 1 {
			bodySpec += controls
		}
		bodySpec += `<div class="view">{{ template "` + tname + `" . }}</div>`
	}

	// The main template bootstraps the rest: sets up client websocket and updates, aggregates views.
	name = "mainpage"
	indexTemplate := `
	{{ define "` + name + `" }}
	<!DOCTYPE html>
	<html>
		<head>
			<title>fieldviz</title>
			<link rel="icon" href="data:,">
			<style>
				body { font-family: sans-serif; background: #ffffff; color: #333333; }
				.view { display: inline-block; vertical-align: top; margin: 10px; }
				.label { font-size: 1.2em; }
				.summary { display: block; font-size: 0.8em; color: #777777; }
				.controls { margin: 10px; }
				.tooltip { display: none; position: fixed; pointer-events: none;
					background: rgba(0, 0, 0, 0.75); color: #ffffff;
					padding: 4px 8px; border-radius: 4px; font-size: 0.8em; }
				.tooltip.visible { display: block; }
			</style>
			<!--This is the client bootstrap code by which the server pushes new data to the view via websocket.-->
			<script>
				const scheme = location.protocol === "https:" ? "wss://" : "ws://";
				const ws = new WebSocket(scheme + location.host + "/ws");
				ws.onopen = function (event) {
					console.log("Web socket opened")
				};

				// Listen for errors
				ws.onerror = function (event) {
					console.log('WebSocket error: ', event);
				};

				function send(msg) {
					if (ws.readyState === WebSocket.OPEN) {
						ws.send(JSON.stringify(msg));
					}
				}

				// The meat: when the server pushes view updates, find these eles and update them.
				ws.onmessage = function (event) {
					const items = JSON.parse(event.data);
					for (const update of items) {
						const ele = document.getElementById(update.EleId);
						if (!ele) {
							continue;
						}
						for (const op of update.Ops) {
							if (op.Key === "textContent" || op.Key === "value") {
								ele[op.Key] = op.Value;
							} else {
								ele.setAttribute(op.Key, op.Value);
							}
						}
					}
				};

				// User actions go back up the same socket; the server owns all state.
				document.addEventListener("DOMContentLoaded", function () {
					document.getElementById("regenerate-button").addEventListener("click", function () {
						send({ type: "regenerate" });
					});
					document.getElementById("` + cell_views.FIELD_TYPE_SELECT_ID + `").addEventListener("change", function (event) {
						send({ type: "fieldType", value: event.target.value });
					});

					const grid = document.getElementById("fieldgrid");
					const tooltip = document.getElementById("` + TOOLTIP_ID + `");
					grid.addEventListener("mousemove", function (event) {
						const bounds = grid.getBoundingClientRect();
						tooltip.style.left = (event.clientX + 12) + "px";
						tooltip.style.top = (event.clientY + 12) + "px";
						send({ type: "query", x: event.clientX - bounds.left, y: event.clientY - bounds.top });
					});
					grid.addEventListener("mouseleave", function () {
						send({ type: "leave" });
					});
				});
			</script>
		</head>
		<body>
		` + bodySpec + `
		<div id="` + TOOLTIP_ID + `" class="tooltip"></div>
		</body></html>
	{{ end }}
	`

	_, err = rt.Parse(indexTemplate)
	return
}

// The field type selector, regenerate button and export links.
const controls = `
	<div class="controls">
		<select id="` + cell_views.FIELD_TYPE_SELECT_ID + `">
			<option value="scalar" {{ if eq .FieldType "scalar" }}selected{{ end }}>Temperature</option>
			<option value="vector" {{ if eq .FieldType "vector" }}selected{{ end }}>Wind</option>
		</select>
		<button id="regenerate-button" type="button">Regenerate</button>
		<a href="/surface.png">png</a>
		<a href="/surface.svg">svg</a>
	</div>`

// fanIn aggregates the views' ele-update channels into a single channel,
// and batches its output.
func fanIn(
	done <-chan struct{},
	views []fastview.ViewComponent,
	rate time.Duration,
) <-chan []fastview.EleUpdate {
	inputs := make([]<-chan []fastview.EleUpdate, len(views))
	for i, view := range views {
		inputs[i] = view.Updates()
	}
	return batchify(
		done,
		channerics.Merge(done, inputs...),
		rate)
}

// batchify batches within the passed time frame before sending, over-writing previously
// received values for the same ele-id. This ensures that redundant updates for the
// same ele-id are not sent, and only the latest values are sent. A batch is flushed
// on the next tick after its first update, so a lone update is never held back
// waiting for another. Whatever remains when source closes is flushed before the
// output is closed.
func batchify(
	done <-chan struct{},
	source <-chan []fastview.EleUpdate,
	rate time.Duration,
) <-chan []fastview.EleUpdate {
	output := make(chan []fastview.EleUpdate)

	go func() {
		defer close(output)

		data := map[string]fastview.EleUpdate{}
		flush := func() bool {
			if len(data) == 0 {
				return true
			}
			select {
			case output <- slicedVals(data):
				data = map[string]fastview.EleUpdate{}
				return true
			case <-done:
				return false
			}
		}

		ticker := channerics.NewTicker(done, rate)
		for {
			select {
			case <-done:
				return
			case updates, ok := <-source:
				if !ok {
					flush()
					return
				}
				// Intentionally overwrites pre-exisiting values for an ele-id within this batch's time frame.
				for _, update := range updates {
					data[update.EleId] = update
				}
			case <-ticker:
				if !flush() {
					return
				}
			}
		}
	}()

	return output
}

// returns the values of a map as a slice
func slicedVals[T1 comparable, T2 any](mp map[T1]T2) (sliced []T2) {
	for _, v := range mp {
		sliced = append(sliced, v)
	}
	return
}
