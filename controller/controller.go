// controller owns the active scenario. It is the single entry point for the user
// actions every front end supports: regenerate, switch field type, and query the
// cell under the pointer.
package controller

import (
	"sync"
	"sync/atomic"

	"fieldviz/fields"
	"fieldviz/grid_world"
	"fieldviz/observability"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// Returned by Label before anything has been generated.
const NO_LABEL = "N/A"

type Options struct {
	Geometry  grid_world.Geometry
	Seed      uint64
	FieldType fields.FieldType
	Clock     clockwork.Clock
	Logger    logrus.FieldLogger
	Metrics   *observability.Metrics
}

// Controller is a two-state machine, scalar-mode and vector-mode, holding the
// most recently generated scenario. Mutators are serialized; readers see the
// active scenario through an atomic pointer and so only ever observe complete,
// immutable grids.
type Controller struct {
	geom    grid_world.Geometry
	clock   clockwork.Clock
	log     logrus.FieldLogger
	metrics *observability.Metrics

	// mu guards the fields below it and serializes generation.
	mu        sync.Mutex
	rng       *fields.Rand
	fieldType fields.FieldType

	active  atomic.Pointer[fields.Scenario]
	updates chan *fields.Scenario
}

// New returns a controller with no active scenario. Call Regenerate to produce
// the first one.
func New(opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = observability.Discard()
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewMetricsForTesting()
	}

	return &Controller{
		geom:      opts.Geometry,
		clock:     opts.Clock,
		log:       opts.Logger,
		metrics:   opts.Metrics,
		rng:       fields.NewRand(opts.Seed),
		fieldType: opts.FieldType,
		// Holds only the latest scenario; a slow consumer skips stale ones.
		updates: make(chan *fields.Scenario, 1),
	}
}

// Regenerate replaces the active scenario with a new one of the current field
// type and publishes it on the updates channel.
func (ctl *Controller) Regenerate() *fields.Scenario {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()

	return ctl.regenerate()
}

// SetFieldType switches mode and always regenerates, even when the type is
// unchanged.
func (ctl *Controller) SetFieldType(ft fields.FieldType) *fields.Scenario {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()

	if ft != ctl.fieldType {
		ctl.log.WithFields(logrus.Fields{
			"from": ctl.fieldType,
			"to":   ft,
		}).Info("field type changed")
	}
	ctl.fieldType = ft
	return ctl.regenerate()
}

// regenerate must be called with mu held.
func (ctl *Controller) regenerate() *fields.Scenario {
	start := ctl.clock.Now()
	scenario := fields.Generate(ctl.fieldType, ctl.geom, ctl.rng)
	scenario.GeneratedAt = ctl.clock.Now()

	ctl.active.Store(scenario)
	ctl.metrics.GenerationDuration.Observe(ctl.clock.Since(start).Seconds())
	ctl.metrics.ScenariosGenerated.WithLabelValues(scenario.Kind).Inc()
	ctl.log.WithFields(logrus.Fields{
		"kind":  scenario.Kind,
		"label": scenario.Label,
	}).Debug("scenario generated")

	// Replace any scenario the consumer has not picked up yet. Only mutators send,
	// and they hold mu, so the send after the drain cannot block.
	select {
	case <-ctl.updates:
	default:
	}
	ctl.updates <- scenario

	return scenario
}

// FieldType returns the current mode.
func (ctl *Controller) FieldType() fields.FieldType {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	return ctl.fieldType
}

// Current returns the active scenario, or nil before the first generation.
func (ctl *Controller) Current() *fields.Scenario {
	return ctl.active.Load()
}

// Label returns the active scenario's description.
func (ctl *Controller) Label() string {
	return ctl.active.Load().LabelOr(NO_LABEL)
}

// Query returns the tooltip text for the cell under pixel (px, py) of the
// surface, or false when the pixel is off the grid or the cell has no data.
func (ctl *Controller) Query(px, py float64) (text string, ok bool) {
	row, col, inside := ctl.geom.CellAt(px, py)
	if inside {
		text, ok = ctl.active.Load().Format(row, col)
	}

	outcome := "miss"
	if ok {
		outcome = "hit"
	}
	ctl.metrics.PointerQueries.WithLabelValues(outcome).Inc()
	return
}

// Updates delivers each newly generated scenario. Only the latest is buffered.
func (ctl *Controller) Updates() <-chan *fields.Scenario {
	return ctl.updates
}

func (ctl *Controller) Geometry() grid_world.Geometry {
	return ctl.geom
}
