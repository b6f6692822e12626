package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/swaprouter/config"
	"github.com/michaelpento.lv/swaprouter/dex"
	"github.com/michaelpento.lv/swaprouter/gas"
	"github.com/michaelpento.lv/swaprouter/routing"
	"github.com/michaelpento.lv/swaprouter/types"
	"github.com/michaelpento.lv/swaprouter/utils/monitor"
)

const (
	// GasRefreshInterval is roughly one block
	GasRefreshInterval = 12 * time.Second

	metricsNamespace = "swaprouter"
	maxRequestBytes  = 1 << 20
	shutdownTimeout  = 5 * time.Second
)

// Server exposes the routing engine over HTTP
type Server struct {
	cfg       *config.Config
	engine    *routing.Engine
	estimator gas.ConditionsProvider
	refresher *gas.Estimator
	registry  *prometheus.Registry
	runtime   *monitor.RuntimeMonitor
	http      *http.Server
	metrics   *http.Server
	logger    *zap.Logger
	wg        sync.WaitGroup
}

// RouteResponse is the body returned for a routing request
type RouteResponse struct {
	Routes []*types.Route `json:"routes"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// New creates a server. chain may be nil, in which case routing runs on
// quotes only and requests must carry their own market conditions.
func New(cfg *config.Config, chain *Chain, addr string, logger *zap.Logger, extra ...dex.PoolSource) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := prometheus.NewRegistry()

	var sources dex.MultiSource
	if chain != nil && chain.Pools != nil {
		sources = append(sources, chain.Pools)
	}
	sources = append(sources, extra...)

	opts := []routing.Option{
		routing.WithLogger(logger),
		routing.WithRegisterer(registry),
	}
	if len(sources) > 0 {
		opts = append(opts, routing.WithPoolSource(sources))
	}

	engine, err := routing.NewEngine(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create routing engine: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		engine:   engine,
		registry: registry,
		runtime:  monitor.NewRuntimeMonitor(metricsNamespace, registry, logger),
		logger:   logger,
	}
	if chain != nil && chain.Estimator != nil {
		s.estimator = chain.Estimator
		s.refresher = chain.Estimator
	}

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	if cfg.PrometheusEnabled && cfg.PrometheusEndpoint != "" && cfg.PrometheusEndpoint != addr {
		r := chi.NewRouter()
		r.Handle("/metrics", s.metricsHandler())
		s.metrics = &http.Server{
			Addr:              cfg.PrometheusEndpoint,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return s, nil
}

// Engine returns the underlying routing engine
func (s *Server) Engine() *routing.Engine {
	return s.engine
}

// Registry returns the registry holding the engine metrics
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// Handler returns the HTTP routes of the server
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.MethodNotAllowed(s.handleMethodNotAllowed)
	r.Post("/route", s.handleRoute)
	r.Get("/stats", s.handleStats)
	if s.cfg.PrometheusEnabled {
		r.Handle("/metrics", s.metricsHandler())
	}
	return r
}

func (s *Server) metricsHandler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// Start runs the gas refresher and the HTTP listener in the background
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting swap router", zap.String("addr", s.http.Addr))

	s.runtime.Start(ctx, monitor.DefaultInterval)

	if s.refresher != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.refresher.Start(ctx, GasRefreshInterval)
		}()
	}

	s.serve(s.http)
	if s.metrics != nil {
		s.logger.Info("Serving metrics", zap.String("addr", s.metrics.Addr))
		s.serve(s.metrics)
	}
	return nil
}

func (s *Server) serve(srv *http.Server) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", zap.String("addr", srv.Addr), zap.Error(err))
		}
	}()
}

// Stop shuts the listener down and waits for background work. The context
// passed to Start must be canceled for the gas refresher to exit.
func (s *Server) Stop() error {
	s.logger.Info("Stopping swap router...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.http.Shutdown(ctx)
	if s.metrics != nil {
		err = multierr.Append(err, s.metrics.Shutdown(ctx))
	}
	s.runtime.Stop()
	s.wg.Wait()
	return multierr.Append(err, s.engine.Close())
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	var req routing.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	if req.Conditions == nil && s.estimator != nil {
		conditions, err := s.estimator.Conditions(r.Context())
		if err != nil {
			s.logger.Warn("Routing without market conditions", zap.Error(err))
		} else {
			req.Conditions = conditions
		}
	}

	routes, err := s.engine.Route(r.Context(), &req)
	if err != nil {
		s.writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
		return
	}
	if routes == nil {
		routes = []*types.Route{}
	}
	s.writeJSON(w, http.StatusOK, RouteResponse{Routes: routes})
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: fmt.Sprintf("method %s not allowed", r.Method)})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.GetPerformanceStats())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Debug("Failed to write response", zap.Error(err))
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, routing.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, routing.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusInternalServerError
	}
}
