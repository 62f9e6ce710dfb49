// fastview implements a builder pattern for simple server-side views:
// given an input data format, apply a transformation to a view-model,
// and then multiplex that data to one or more views, whose element updates
// are pushed to browsers over a websocket.
package fastview

import (
	"html/template"
)

// EleUpdate is an element identifier and a set of operations to apply to its attributes/content.
type EleUpdate struct {
	// The id by which to find the element
	EleId string
	// Op keys are attrib keys or one of the reserved property keys, values are the strings
	// to which these are set. Example: ('x','123') means 'set attribute x to 123'.
	// 'textContent' and 'value' are reserved: ('textContent','abc') means 'set ele.textContent to abc'.
	Ops []Op
}

// Op is a key and value. For example an html attribute and its new value.
type Op struct {
	Key   string
	Value string
}

// ViewComponent implements server side views: Parse to add their initial form to
// the page template, and Updates to obtain the chan by which ele-updates are notified.
type ViewComponent interface {
	Updates() <-chan []EleUpdate
	// Parse parses the view-component and adds it to the passed parent template, thus
	// inheriting or possibly extending its definition (func-map, etc). It returns the
	// name of the defined template.
	// TODO: a child may rely on the parent's func-map and only fail at Execute(); each
	// view should register every func it needs.
	Parse(*template.Template) (string, error)
}

// Message types a page may send over its websocket.
const (
	MSG_REGENERATE = "regenerate"
	MSG_FIELD_TYPE = "fieldType"
	MSG_QUERY      = "query"
	MSG_LEAVE      = "leave"
)

// ClientMessage is a user action sent by the page. Value is set for fieldType
// messages and X/Y, in surface pixels, for queries.
type ClientMessage struct {
	Type  string  `json:"type"`
	Value string  `json:"value,omitempty"`
	X     float64 `json:"x,omitempty"`
	Y     float64 `json:"y,omitempty"`
}

// MergeUpdates folds newer into older: ops are keyed by element id and op key, and
// the newer value wins. Elements keep the order in which they first appeared, so
// applying the result leaves a page in the same state as applying older then newer.
func MergeUpdates(older, newer []EleUpdate) (merged []EleUpdate) {
	index := map[string]int{}
	add := func(update EleUpdate) {
		i, seen := index[update.EleId]
		if !seen {
			index[update.EleId] = len(merged)
			merged = append(merged, EleUpdate{
				EleId: update.EleId,
				Ops:   append([]Op(nil), update.Ops...),
			})
			return
		}
		for _, op := range update.Ops {
			merged[i].Ops = setOp(merged[i].Ops, op)
		}
	}

	for _, update := range older {
		add(update)
	}
	for _, update := range newer {
		add(update)
	}
	return
}

func setOp(ops []Op, op Op) []Op {
	for i := range ops {
		if ops[i].Key == op.Key {
			ops[i].Value = op.Value
			return ops
		}
	}
	return append(ops, op)
}
