// Package api exposes the prediction engine over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"wastewater-ai/internal/common"
	"wastewater-ai/internal/engine"
	"wastewater-ai/internal/optimizer"
	"wastewater-ai/internal/storage"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Store is the persistence the API writes results and readings to.
type Store interface {
	SavePrediction(rec *storage.PredictionRecord) error
	SaveSensorReading(r *storage.SensorReading) error
	RecentPredictions(n int) ([]storage.PredictionRecord, error)
	RecentSensors(n int) ([]storage.SensorReading, error)
	ExportSensorsCSV(w io.Writer) (int, error)
}

// MetricsInterface is the subset of metrics the API reports itself.
type MetricsInterface interface {
	ErrorsInc()
	SensorReadingsAdd(n int)
}

type noopMetrics struct{}

func (noopMetrics) ErrorsInc()            {}
func (noopMetrics) SensorReadingsAdd(int) {}

// Config holds the server settings. RateLimitRPS is the per-client request
// rate; 0 disables limiting.
type Config struct {
	Port           int
	RequestTimeout time.Duration
	RecentLimit    int
	DefaultTarget  optimizer.Tier
	RateLimitRPS   float64
	RateLimitBurst int
}

// Server serves the HTTP API.
type Server struct {
	engine   *engine.Engine
	store    Store
	metrics  MetricsInterface
	gatherer prometheus.Gatherer
	cfg      Config
	limiter  *rateLimiter
	router   *mux.Router
	server   *http.Server
	now      func() time.Time
}

// NewServer builds a server. store may be nil to disable persistence and
// gatherer may be nil to disable the /metrics route.
func NewServer(eng *engine.Engine, store Store, m MetricsInterface, gatherer prometheus.Gatherer, cfg Config) *Server {
	if m == nil {
		m = noopMetrics{}
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = common.DefaultRequestTimeoutSec * time.Second
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = common.DefaultRecentLimit
	}
	if cfg.DefaultTarget == "" {
		cfg.DefaultTarget = optimizer.TierEnvironmental
	}

	s := &Server{
		engine:   eng,
		store:    store,
		metrics:  m,
		gatherer: gatherer,
		cfg:      cfg,
		now:      time.Now,
	}
	if cfg.RateLimitRPS > 0 {
		s.limiter = newRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	s.router = s.routes()
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(withRequestID, withLogging, s.withRateLimit)

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/predict", s.handlePredict).Methods("POST")
	v1.HandleFunc("/optimize", s.handleOptimize).Methods("POST")
	v1.HandleFunc("/models", s.handleModels).Methods("GET")
	v1.HandleFunc("/models/select", s.handleSelect).Methods("POST")
	v1.HandleFunc("/models/{family}/versions", s.handleVersions).Methods("GET")
	v1.HandleFunc("/models/{family}/rollback", s.handleRollback).Methods("POST")
	v1.HandleFunc("/ingest", s.handleIngest).Methods("POST")
	v1.HandleFunc("/sensors/recent", s.handleRecentSensors).Methods("GET")
	v1.HandleFunc("/sensors/export", s.handleExportSensors).Methods("GET")
	v1.HandleFunc("/predictions/recent", s.handleRecentPredictions).Methods("GET")

	return r
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves in the background until Shutdown is called.
func (s *Server) Start() {
	log.Info().Str("addr", s.server.Addr).Msg("Starting API server")
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("API server error")
		}
	}()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Stopping API server")
	return s.server.Shutdown(ctx)
}
