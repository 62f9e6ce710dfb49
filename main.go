/*
Fieldviz generates synthetic weather fields over a fixed grid, temperatures or
winds, and shows them: in the browser as an svg grid kept live over a websocket,
in the terminal, or exported as png/svg. Each scenario is drawn at random from a
handful of simple generators (gradients, hot spots, vortices, and so on); none of
it is physics, it only has to look plausible. Hovering over a cell shows its value.

	fieldviz serve                      # http://localhost:8080
	fieldviz tui
	fieldviz render --type vector --out wind.svg
	fieldviz generate --count 3
*/
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"fieldviz/config"
	"fieldviz/controller"
	"fieldviz/grid_world"
	"fieldviz/observability"
	"fieldviz/render"
	"fieldviz/server"
	"fieldviz/tui"

	"github.com/gdamore/tcell/v2"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const DEFAULT_CONFIG_PATH = "./config.yaml"

// app is everything a command needs, built from the config and the flags.
type app struct {
	cfg     *config.AppConfig
	log     *logrus.Logger
	reg     *prometheus.Registry
	metrics *observability.Metrics
	ctl     *controller.Controller
}

// flags are the persistent and per-command flag values; any flag the user sets
// overrides the config file.
type flags struct {
	configPath  string
	seed        uint64
	fieldType   string
	logLevel    string
	logFormat   string
	host        string
	port        int
	publishRate time.Duration
	format      string
	out         string
	count       int
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	fl := &flags{}

	root := &cobra.Command{
		Use:   "fieldviz",
		Short: "Generate and visualize synthetic temperature and wind fields.",
		Long: `fieldviz generates random scalar (temperature) and vector (wind) fields over a
20x20 grid and shows them in the browser, the terminal, or as png/svg files.

Settings are read from a yaml config file (see config.yaml); flags override it.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&fl.configPath, "config", DEFAULT_CONFIG_PATH, "path to the yaml config file")
	pf.Uint64Var(&fl.seed, "seed", 0, "random seed; 0 seeds from the clock")
	pf.StringVar(&fl.fieldType, "type", "", "field type: scalar or vector")
	pf.StringVar(&fl.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	pf.StringVar(&fl.logFormat, "log-format", "", "log format: text or json")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the interactive page.",
		Long: `serve runs the web front end: the page at /, its websocket at /ws, surface
exports at /surface.png and /surface.svg, a json api under /api, and prometheus
metrics at /metrics. It runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, fl, stderr)
			if err != nil {
				return err
			}
			return a.serve(cmd.Context())
		},
	}
	serveCmd.Flags().StringVar(&fl.host, "host", "", "listen host")
	serveCmd.Flags().IntVar(&fl.port, "port", 0, "listen port")
	serveCmd.Flags().DurationVar(&fl.publishRate, "publish-rate", 0, "minimum interval between pushes to a page")

	tuiCmd := &cobra.Command{
		Use:   "tui",
		Short: "Show the fields in the terminal.",
		Long: `tui draws the active scenario in the terminal. Hover with the mouse to read
a cell's value; r regenerates, s/v/t switch field type, q quits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Log lines would tear through the screen.
			a, err := newApp(cmd, fl, io.Discard)
			if err != nil {
				return err
			}
			return a.runTUI(cmd.Context())
		},
	}

	renderCmd := &cobra.Command{
		Use:   "render",
		Short: "Render one scenario to a png or svg file.",
		Long: `render generates one scenario and writes its surface to --out, or to stdout
when --out is "-". The format follows --format, or else the file extension.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, fl, stderr)
			if err != nil {
				return err
			}
			return a.render(fl.format, fl.out, cmd.OutOrStdout())
		},
	}
	renderCmd.Flags().StringVar(&fl.format, "format", "", "png or svg; defaults to the --out extension, else png")
	renderCmd.Flags().StringVar(&fl.out, "out", "surface.png", `output file, or "-" for stdout`)

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Print generated scenarios as json lines.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, fl, stderr)
			if err != nil {
				return err
			}
			return a.generate(fl.count, cmd.OutOrStdout())
		},
	}
	generateCmd.Flags().IntVar(&fl.count, "count", 1, "number of scenarios")

	root.AddCommand(serveCmd, tuiCmd, renderCmd, generateCmd)
	return root
}

// loadConfig reads the config file over the defaults, then applies the flags the
// user set. A missing file is fine only when --config was not given.
func loadConfig(cmd *cobra.Command, fl *flags) (cfg *config.AppConfig, err error) {
	cfg, err = config.FromYaml(fl.configPath)
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	changed := cmd.Flags().Changed
	if changed("seed") {
		cfg.Generator.Seed = fl.seed
	}
	if changed("type") {
		cfg.Generator.FieldType = fl.fieldType
	}
	if changed("log-level") {
		cfg.Log.Level = fl.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = fl.logFormat
	}
	if changed("host") {
		cfg.Server.Host = fl.host
	}
	if changed("port") {
		cfg.Server.Port = fl.port
	}
	if changed("publish-rate") {
		cfg.Server.PublishRate = fl.publishRate
	}

	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return
}

func newApp(cmd *cobra.Command, fl *flags, logOut io.Writer) (a *app, err error) {
	cfg, err := loadConfig(cmd, fl)
	if err != nil {
		return
	}
	logger, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Format, logOut)
	if err != nil {
		return
	}

	clock := clockwork.NewRealClock()
	seed := cfg.Seed(clock.Now())
	// Metrics are served from their own registry, alongside the go runtime collectors.
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)
	ctl := controller.New(controller.Options{
		Geometry:  grid_world.Default(),
		Seed:      seed,
		FieldType: cfg.FieldType(),
		Clock:     clock,
		Logger:    logger,
		Metrics:   metrics,
	})
	ctl.Regenerate()

	logger.WithFields(logrus.Fields{
		"seed":      seed,
		"fieldType": cfg.FieldType(),
		"label":     ctl.Label(),
	}).Debug("controller ready")

	a = &app{cfg: cfg, log: logger, reg: reg, metrics: metrics, ctl: ctl}
	return
}

// serve runs the web server until SIGINT or SIGTERM, then shuts it down gracefully.
func (a *app) serve(ctx context.Context) (err error) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var srv *server.Server
	if srv, err = server.NewServer(ctx, server.Options{
		Addr:              a.cfg.Addr(),
		Controller:        a.ctl,
		Logger:            a.log,
		Metrics:           a.metrics,
		Gatherer:          a.reg,
		PublishResolution: a.cfg.Server.PublishRate,
	}); err != nil {
		return
	}

	errs := make(chan error, 1)
	go func() { errs <- srv.Serve() }()

	select {
	case err = <-errs:
		return
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err = srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errs
}

func (a *app) runTUI(ctx context.Context) (err error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("creating screen: %w", err)
	}
	if err = screen.Init(); err != nil {
		return fmt.Errorf("initializing screen: %w", err)
	}
	defer screen.Fini()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM)
	defer stop()
	return tui.NewApp(screen, a.ctl, a.log).Run(ctx)
}

var ErrUnknownFormat = errors.New("unknown format, expected png or svg")

// exportFormat picks the format from the flag, else the file extension, else png.
func exportFormat(format, out string) (string, error) {
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(out)), ".")
		if format != "svg" {
			format = "png"
		}
	}
	switch format {
	case "png", "svg":
		return format, nil
	}
	return "", fmt.Errorf("%q: %w", format, ErrUnknownFormat)
}

func (a *app) render(format, out string, stdout io.Writer) (err error) {
	if format, err = exportFormat(format, out); err != nil {
		return
	}
	surface := render.NewSurface(a.ctl.Geometry())
	write := surface.PNG
	if format == "svg" {
		write = surface.SVG
	}

	if out == "-" {
		return write(stdout, a.ctl.Current())
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("closing output: %w", closeErr)
		}
	}()

	if err = write(f, a.ctl.Current()); err != nil {
		return
	}
	a.log.WithFields(logrus.Fields{
		"out":   out,
		"label": a.ctl.Label(),
	}).Info("surface written")
	return
}

// generate prints count scenarios as json, one per line. The first is the one
// generated at startup.
func (a *app) generate(count int, stdout io.Writer) error {
	enc := json.NewEncoder(stdout)
	for i := 0; i < count; i++ {
		scenario := a.ctl.Current()
		if i > 0 {
			scenario = a.ctl.Regenerate()
		}
		if err := enc.Encode(scenario); err != nil {
			return fmt.Errorf("writing scenario: %w", err)
		}
	}
	return nil
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		logrus.WithError(err).Error("fieldviz failed")
		os.Exit(1)
	}
}
