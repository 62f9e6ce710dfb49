// tui shows the active scenario in a terminal: one cell per grid cell, two
// columns wide, colored by temperature or drawn as a wind arrow, with the value
// under the mouse on the status line.
package tui

import (
	"context"
	"fmt"
	"image/color"

	"fieldviz/controller"
	"fieldviz/fields"
	"fieldviz/render"

	"github.com/gdamore/tcell/v2"
	"github.com/sirupsen/logrus"
)

const (
	// Screen row of the grid's first cell row; the label sits above it.
	GRID_TOP = 2
	// Terminal columns per grid cell, which keeps cells roughly square.
	CELL_WIDTH = 2
	CALM_GLYPH = '·'
	HELP_TEXT  = "r regenerate  s scalar  v vector  t toggle  q quit"
)

type App struct {
	screen tcell.Screen
	ctl    *controller.Controller
	log    logrus.FieldLogger
	// status is the tooltip for the cell under the mouse, empty when there is none.
	status string
}

// NewApp returns an app drawing on screen, which the caller must have initialized.
func NewApp(screen tcell.Screen, ctl *controller.Controller, logger logrus.FieldLogger) *App {
	return &App{
		screen: screen,
		ctl:    ctl,
		log:    logger,
	}
}

// Run draws and handles events until the user quits or ctx is cancelled.
func (app *App) Run(ctx context.Context) error {
	app.screen.EnableMouse()
	app.screen.HideCursor()

	// PollEvent blocks, so it gets its own goroutine feeding the loop below. It
	// returns nil once the screen is finalized.
	events := make(chan tcell.Event, 64)
	go func() {
		for {
			ev := app.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	app.Draw()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if quit := app.HandleEvent(ev); quit {
				return nil
			}
			app.Draw()
		}
	}
}

// HandleEvent applies one terminal event and reports whether the user asked to quit.
func (app *App) HandleEvent(ev tcell.Event) (quit bool) {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return true
		case tcell.KeyRune:
			return app.handleRune(ev.Rune())
		}
	case *tcell.EventMouse:
		x, y := ev.Position()
		app.hover(x, y)
	case *tcell.EventResize:
		app.screen.Sync()
	}
	return false
}

func (app *App) handleRune(r rune) (quit bool) {
	switch r {
	case 'q':
		return true
	case 'r':
		app.ctl.Regenerate()
	case 's':
		app.ctl.SetFieldType(fields.Scalar)
	case 'v':
		app.ctl.SetFieldType(fields.Vector)
	case 't':
		next := fields.Vector
		if app.ctl.FieldType() == fields.Vector {
			next = fields.Scalar
		}
		app.ctl.SetFieldType(next)
	default:
		return false
	}
	// The cell under the mouse now holds a different value.
	app.status = ""
	app.log.WithField("label", app.ctl.Label()).Debug("scenario changed")
	return false
}

// hover sets the status line for the terminal cell at (x, y), by asking the
// controller about the center of the grid cell beneath it.
func (app *App) hover(x, y int) {
	app.status = ""
	geom := app.ctl.Geometry()
	row, col := y-GRID_TOP, x/CELL_WIDTH
	if x < 0 || !geom.Contains(row, col) {
		return
	}
	px, py := geom.CellCenter(row, col)
	if text, ok := app.ctl.Query(px, py); ok {
		app.status = text
	}
}

// Draw redraws the whole screen from the active scenario.
func (app *App) Draw() {
	app.screen.Clear()
	geom := app.ctl.Geometry()
	scenario := app.ctl.Current()

	header := app.ctl.Label()
	if scenario != nil {
		header = fmt.Sprintf("%s [%s]", header, scenario.FieldType)
	}
	app.text(0, 0, header, tcell.StyleDefault.Bold(true))

	grid := tcell.StyleDefault.Background(rgb(render.BACKGROUND_COLOR)).Foreground(rgb(render.ARROW_COLOR))
	geom.Visit(func(row, col int) {
		glyph, style := ' ', grid
		if scenario != nil {
			glyph, style = cellContent(scenario, row, col, grid)
		}
		x, y := col*CELL_WIDTH, GRID_TOP+row
		app.screen.SetContent(x, y, glyph, nil, style)
		for i := 1; i < CELL_WIDTH; i++ {
			app.screen.SetContent(x+i, y, ' ', nil, style)
		}
	})

	statusRow := GRID_TOP + geom.Rows + 1
	app.text(0, statusRow, app.status, tcell.StyleDefault)
	app.text(0, statusRow+1, HELP_TEXT, tcell.StyleDefault.Dim(true))
	app.screen.Show()
}

// cellContent returns the glyph and style of one grid cell: a heat-mapped blank
// for temperatures, a compass arrow colored by speed for wind.
func cellContent(sc *fields.Scenario, row, col int, base tcell.Style) (rune, tcell.Style) {
	switch sc.FieldType {
	case fields.Scalar:
		if row < len(sc.Scalar) && col < len(sc.Scalar[row]) {
			return ' ', base.Background(rgb(render.TemperatureColor(sc.Scalar[row][col])))
		}
	case fields.Vector:
		if row < len(sc.Vector) && col < len(sc.Vector[row]) {
			wind := sc.Vector[row][col]
			if wind == nil || wind.Magnitude <= render.MIN_ARROW_MAGNITUDE {
				return CALM_GLYPH, base
			}
			speed := render.MapColor(wind.Magnitude, 0, fields.MAX_WIND_SPEED)
			return render.ArrowGlyph(wind.Angle), base.Foreground(rgb(speed)).Bold(true)
		}
	}
	return ' ', base
}

func (app *App) text(x, y int, s string, style tcell.Style) {
	for _, r := range s {
		app.screen.SetContent(x, y, r, nil, style)
		x++
	}
}

func rgb(c color.RGBA) tcell.Color {
	return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
}
