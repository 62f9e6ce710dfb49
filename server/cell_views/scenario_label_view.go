package cell_views

import (
	"html/template"

	"fieldviz/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// The page's field type selector, kept in step with the active scenario so that
// every open page shows the same mode.
const FIELD_TYPE_SELECT_ID = "fieldtype-select"

// ScenarioLabel shows the active scenario's description and a one-line summary
// of its values.
type ScenarioLabel struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewScenarioLabel(
	done <-chan struct{},
	frames <-chan Frame,
) (sl *ScenarioLabel) {
	sl = &ScenarioLabel{id: "scenariolabel"}
	sl.updates = channerics.Convert(done, frames, sl.Update)
	return
}

func (sl *ScenarioLabel) Updates() <-chan []fastview.EleUpdate {
	return sl.updates
}

func (sl *ScenarioLabel) Update(frame Frame) []fastview.EleUpdate {
	ops := []fastview.EleUpdate{
		{
			EleId: sl.id + "-text",
			Ops:   []fastview.Op{{Key: "textContent", Value: frame.Label}},
		},
		{
			EleId: sl.id + "-summary",
			Ops:   []fastview.Op{{Key: "textContent", Value: frame.Summary}},
		},
	}
	if frame.FieldType != "" {
		ops = append(ops, fastview.EleUpdate{
			EleId: FIELD_TYPE_SELECT_ID,
			Ops:   []fastview.Op{{Key: "value", Value: frame.FieldType}},
		})
	}
	return ops
}

func (sl *ScenarioLabel) Parse(t *template.Template) (name string, err error) {
	name = sl.id
	_, err = t.Parse(`{{ define "` + name + `" }}
		<div id="` + sl.id + `" class="label">
			<span id="` + sl.id + `-text">{{ .Label }}</span>
			<span id="` + sl.id + `-summary" class="summary">{{ .Summary }}</span>
		</div>
		{{ end }}`)
	return
}
