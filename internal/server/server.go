// Package server implements the dashboard HTTP/WebSocket surface
// (spec.md §6): plan listing/creation, the events/queues/statistics
// telemetry streams, and the binary /channel/{topic} stream — built the
// way the teacher's server.go/routes.go wires gorilla/mux and
// gorilla/handlers, minus the GraphQL/templating/auth surface this repo
// has no analogue for.
package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/data-tracks/DataTracks/internal/plan"
	"github.com/data-tracks/DataTracks/internal/telemetry"
	"github.com/data-tracks/DataTracks/pkg/log"
)

// Server owns the dashboard's HTTP listener and routing. It does not own
// the engine pool, WAL, or station runtimes — those are wired in by
// cmd/datatracks via the OnPlanCreated hook.
type Server struct {
	addr     string
	router   *mux.Router
	httpSrv  *http.Server
	listener net.Listener

	plans    *PlanRegistry
	bus      *telemetry.Bus
	channels *ChannelHub
	metrics  *prometheus.Registry

	onPlanCreated func(name string, p *plan.Plan)
}

// New builds a Server bound to addr, backed by plans, bus and the
// Prometheus registry bus was built against (used for `/metrics`).
// channels may be nil if no fabric line has been tapped for dashboard
// streaming yet; handleChannel still works, it simply has nothing to fan
// out until lines call SetObserver(channels).
func New(addr string, plans *PlanRegistry, bus *telemetry.Bus, metrics *prometheus.Registry, channels *ChannelHub) *Server {
	if channels == nil {
		channels = NewChannelHub()
	}
	s := &Server{addr: addr, plans: plans, bus: bus, metrics: metrics, channels: channels}
	s.router = s.buildRouter()
	return s
}

// Channels exposes the hub so callers can call queue.Line.SetObserver(hub)
// for every line worth tapping before starting station runtimes.
func (s *Server) Channels() *ChannelHub { return s.channels }

// OnPlanCreated registers a callback invoked after a plan is validated and
// persisted by POST /plans/create, letting cmd/datatracks schedule the
// plan's stations/ingress without this package depending on the runtime.
func (s *Server) OnPlanCreated(fn func(name string, p *plan.Plan)) {
	s.onPlanCreated = fn
}

func (s *Server) buildRouter() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/plans", s.handleListPlans).Methods(http.MethodGet)
	r.HandleFunc("/plans/create", s.handleCreatePlan).Methods(http.MethodPost)
	r.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	r.HandleFunc("/queues", s.handleQueues).Methods(http.MethodGet)
	r.HandleFunc("/statistics", s.handleStatistics).Methods(http.MethodGet)
	r.HandleFunc("/channel/{topic}", s.handleChannel).Methods(http.MethodGet)
	r.Handle("/metrics", telemetry.MetricsHandler(s.metrics))

	r.Use(handlers.CompressHandler)
	r.Use(handlers.CORS(
		handlers.AllowedHeaders([]string{"Content-Type"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost}),
		handlers.AllowedOrigins([]string{"*"})))

	return r
}

func (s *Server) loggingHandler() http.Handler {
	return handlers.CustomLoggingHandler(log.InfoWriter, s.router, func(w io.Writer, params handlers.LogFormatterParams) {
		log.Finfof(w, "%s %s (Response: %d, Size: %d)", params.Request.Method, params.URL.RequestURI(), params.StatusCode, params.Size)
	})
}

// Start binds the listener and begins serving in a background goroutine.
// Start returns once the socket is bound; the caller waits on Shutdown or
// process exit to stop serving.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.addr, err)
	}
	s.listener = listener

	s.httpSrv = &http.Server{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		Handler:      s.loggingHandler(),
	}

	go func() {
		if err := s.httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Errorf("server: serve: %v", err)
		}
	}()

	log.Infof("dashboard listening at %s", s.addr)
	return nil
}

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
