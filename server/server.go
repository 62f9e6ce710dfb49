package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"fieldviz/controller"
	"fieldviz/fields"
	"fieldviz/observability"
	"fieldviz/render"
	"fieldviz/server/fastview"
	"fieldviz/server/root_view"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const (
	readHeaderTimeout = 5 * time.Second
)

type Options struct {
	Addr       string
	Controller *controller.Controller
	Logger     logrus.FieldLogger
	Metrics    *observability.Metrics
	// Gatherer backs /metrics; defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	Clock    clockwork.Clock
	// PublishResolution is the minimum interval between two pushes to one page.
	PublishResolution time.Duration
}

// Server serves the page, its websocket, and the exports and api over the
// controller's active scenario. Every open page shares the same root view: the
// view pipeline runs once and its ele-updates are fanned out to each websocket
// through a hub.
type Server struct {
	ctx      context.Context
	opts     Options
	ctl      *controller.Controller
	log      logrus.FieldLogger
	metrics  *observability.Metrics
	rootView *root_view.RootView
	hub      *fastview.Hub[[]fastview.EleUpdate]
	surface  *render.Surface
	router   *mux.Router
	http     *http.Server
}

var ErrNoController = errors.New("server requires a controller")

// NewServer initializes all of the views and returns a server. The view pipeline
// consumes the controller's updates until ctx is cancelled.
func NewServer(
	ctx context.Context,
	opts Options,
) (server *Server, err error) {
	if opts.Controller == nil {
		return nil, ErrNoController
	}
	if opts.Logger == nil {
		opts.Logger = observability.Discard()
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewMetricsForTesting()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	ctl := opts.Controller
	rootView, err := root_view.NewRootView(ctx, ctl.Geometry(), ctl.Updates())
	if err != nil {
		return nil, fmt.Errorf("building views: %w", err)
	}

	server = &Server{
		ctx:      ctx,
		opts:     opts,
		ctl:      ctl,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		rootView: rootView,
		hub:      fastview.NewHub(fastview.MergeUpdates),
		surface:  render.NewSurface(ctl.Geometry()),
	}
	go server.hub.Run(ctx.Done(), rootView.Updates())

	server.router = server.routes()
	server.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           server.router,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}
	return
}

func (server *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.Use(server.logRequests)

	router.HandleFunc("/", server.serveIndex).Methods(http.MethodGet)
	router.HandleFunc("/ws", server.serveWebsocket).Methods(http.MethodGet)
	router.HandleFunc("/surface.png", server.serveSurface("png", "image/png", server.surface.PNG)).
		Methods(http.MethodGet)
	router.HandleFunc("/surface.svg", server.serveSurface("svg", "image/svg+xml", server.surface.SVG)).
		Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/scenario", server.serveScenario).Methods(http.MethodGet)
	api.HandleFunc("/regenerate", server.serveRegenerate).Methods(http.MethodPost)
	api.HandleFunc("/query", server.serveQuery).Methods(http.MethodGet)

	router.Handle("/metrics", promhttp.HandlerFor(server.opts.Gatherer, promhttp.HandlerOpts{})).
		Methods(http.MethodGet)
	return router
}

// ServeHTTP lets the server be mounted or tested without listening.
func (server *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	server.router.ServeHTTP(w, r)
}

// Serve listens on the configured address until Shutdown is called, after which
// it returns nil.
func (server *Server) Serve() (err error) {
	server.log.WithField("addr", server.opts.Addr).Info("serving")
	if err = server.http.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		err = fmt.Errorf("serve: %w", err)
	}
	return
}

// Shutdown stops accepting connections and waits for in-flight requests, up to ctx.
// Websocket clients end when the context passed to NewServer is cancelled.
func (server *Server) Shutdown(ctx context.Context) error {
	return server.http.Shutdown(ctx)
}

func (server *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.log.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Debug("request")
		next.ServeHTTP(w, r)
	})
}

// serveWebsocket keeps one page in sync until it disconnects: a snapshot of the
// active scenario first, then every batch of ele-updates, and direct replies to
// the page's own hover queries.
func (server *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	log := server.log.WithField("remote", r.RemoteAddr)
	updates, unsubscribe := server.hub.Subscribe()
	defer unsubscribe()

	cli, err := fastview.NewClient(
		server.ctx,
		updates,
		w,
		r,
		fastview.ClientOptions[[]fastview.EleUpdate]{
			Handler: server.handleMessage(log),
			Greeting: func() ([]fastview.EleUpdate, bool) {
				return server.rootView.Snapshot(server.ctl.Current()), true
			},
			Merge:             fastview.MergeUpdates,
			PublishResolution: server.opts.PublishResolution,
			Clock:             server.opts.Clock,
			Logger:            log,
		})
	if err != nil {
		log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	server.metrics.WebsocketClients.Inc()
	defer server.metrics.WebsocketClients.Dec()
	log.Debug("websocket client connected")

	if err = cli.Sync(); err != nil {
		log.WithError(err).Warn("websocket client failed")
		return
	}
	log.Debug("websocket client disconnected")
}

// handleMessage applies a page's user action. Regeneration reaches every page
// through the view pipeline; tooltip replies go only to the page that asked.
func (server *Server) handleMessage(
	log logrus.FieldLogger,
) fastview.MessageHandler[[]fastview.EleUpdate] {
	return func(msg fastview.ClientMessage) ([]fastview.EleUpdate, bool) {
		switch msg.Type {
		case fastview.MSG_REGENERATE:
			server.ctl.Regenerate()
		case fastview.MSG_FIELD_TYPE:
			ft, err := fields.ParseFieldType(msg.Value)
			if err != nil {
				log.WithError(err).Warn("ignoring field type change")
				return nil, false
			}
			server.ctl.SetFieldType(ft)
		case fastview.MSG_QUERY:
			return root_view.TooltipUpdate(server.ctl.Query(msg.X, msg.Y)), true
		case fastview.MSG_LEAVE:
			return root_view.TooltipUpdate("", false), true
		default:
			log.WithField("type", msg.Type).Warn("unknown client message")
		}
		return nil, false
	}
}

// Serve the index.html main page.
func (server *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := renderTemplate(&buf, server.rootView, server.rootView.Frame(server.ctl.Current())); err != nil {
		server.log.WithError(err).Error("page render failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func renderTemplate(
	w io.Writer,
	vc fastview.ViewComponent,
	data interface{},
) (err error) {
	t := template.New("index.html")
	var tname string
	if tname, err = vc.Parse(t); err != nil {
		return
	}
	if _, err = t.Parse(`{{ template "` + tname + `" . }}`); err != nil {
		return
	}

	err = t.Execute(w, data)
	return
}

// serveSurface exports the active scenario through write.
func (server *Server) serveSurface(
	format string,
	contentType string,
	write func(io.Writer, *fields.Scenario) error,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		timer := prometheus.NewTimer(server.metrics.RenderDuration.WithLabelValues(format))
		var buf bytes.Buffer
		err := write(&buf, server.ctl.Current())
		timer.ObserveDuration()
		if err != nil {
			server.log.WithError(err).WithField("format", format).Error("export failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "no-store")
		_, _ = buf.WriteTo(w)
	}
}

func (server *Server) serveScenario(w http.ResponseWriter, r *http.Request) {
	scenario := server.ctl.Current()
	if scenario == nil {
		writeError(w, http.StatusNotFound, "no scenario generated yet")
		return
	}
	writeJSON(w, http.StatusOK, scenario)
}

// serveRegenerate regenerates the active scenario, switching field type first when
// the type parameter is passed.
func (server *Server) serveRegenerate(w http.ResponseWriter, r *http.Request) {
	typeParam := r.URL.Query().Get("type")
	if typeParam == "" {
		writeJSON(w, http.StatusOK, server.ctl.Regenerate())
		return
	}

	ft, err := fields.ParseFieldType(typeParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, server.ctl.SetFieldType(ft))
}

type queryResponse struct {
	Text string `json:"text"`
}

// serveQuery answers the tooltip text for a surface pixel, or 204 when there is none.
func (server *Server) serveQuery(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	x, xErr := strconv.ParseFloat(query.Get("x"), 64)
	y, yErr := strconv.ParseFloat(query.Get("y"), 64)
	if err := errors.Join(xErr, yErr); err != nil {
		writeError(w, http.StatusBadRequest, "x and y must be numbers")
		return
	}

	text, ok := server.ctl.Query(x, y)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{Text: text})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
