package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/PolicyEngine/obr-forecast/auth"
	"github.com/PolicyEngine/obr-forecast/cache"
	"github.com/PolicyEngine/obr-forecast/forecast"
	"github.com/PolicyEngine/obr-forecast/health"
	"github.com/PolicyEngine/obr-forecast/job"
	"github.com/PolicyEngine/obr-forecast/observe"
	"github.com/PolicyEngine/obr-forecast/resilience"
	"github.com/PolicyEngine/obr-forecast/runner"
)

// Namespace is the cache and job namespace of impact computations.
const Namespace = "forecast_impact"

// Banner is the message served at the root.
const Banner = "OBR Forecast Impact Estimator API"

const maxBodyBytes = 1 << 20

// Service is the part of runner.Runner the API drives.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Submit must not block on the computation.
type Service interface {
	Submit(ctx context.Context, namespace string, params any, ttl time.Duration) (job.ID, error)
	Poll(id string) (runner.Status, error)
	ClearCache()
	CacheStats(ctx context.Context) runner.StatsReport
}

// Config wires a Server.
type Config struct {
	Service Service

	// Limiter throttles impact submissions. Nil disables throttling.
	Limiter *resilience.RateLimiter

	// Admin authenticates cache administration. Nil closes those routes.
	Admin auth.Authenticator

	// Health, when set, is served at /healthz, /readyz and /health.
	Health *health.Aggregator

	// Metrics, when set, is served at /metrics.
	Metrics http.Handler

	// StaticDir, when set, is served for GET paths no route claims.
	StaticDir string

	Logger observe.Logger
}

// Server routes HTTP requests to a Service.
type Server struct {
	config  Config
	logger  observe.Logger
	handler http.Handler
}

// New builds a Server.
func New(config Config) (*Server, error) {
	if config.Service == nil {
		return nil, ErrNilService
	}

	s := &Server{config: config, logger: config.Logger}
	if s.logger == nil {
		s.logger = observe.NopLogger()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /forecasts", s.handleForecasts)
	mux.HandleFunc("GET /forecasts/{$}", s.handleForecasts)
	mux.HandleFunc("POST /forecasts/impact", s.handleImpact)
	mux.HandleFunc("GET /jobs/{id}", s.handleJob)

	admin := auth.RequireRole(config.Admin, auth.RoleAdmin)
	mux.Handle("DELETE /cache", admin(http.HandlerFunc(s.handleClearCache)))
	mux.Handle("GET /cache/stats", admin(http.HandlerFunc(s.handleCacheStats)))

	if config.Health != nil {
		health.RegisterHandlers(mux, config.Health)
	}
	if config.Metrics != nil {
		mux.Handle("GET /metrics", config.Metrics)
	}
	if config.StaticDir != "" {
		mux.Handle("GET /", spaHandler(config.StaticDir))
	}

	s.handler = withCORS(withRequestLog(s.logger, mux))
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": Banner})
}

type forecastsResponse struct {
	Forecasts []forecast.Forecast `json:"forecasts"`
}

func (s *Server) handleForecasts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, forecastsResponse{Forecasts: forecast.Catalog()})
}

// ImpactRequest is the body of POST /forecasts/impact.
type ImpactRequest struct {
	ForecastID string               `json:"forecast_id"`
	Parameters forecast.GrowthRates `json:"parameters,omitempty"`
	Metrics    []forecast.Metric    `json:"metrics,omitempty"`

	// TTLSeconds overrides the cache lifetime of the result. Zero or
	// absent selects the server default.
	TTLSeconds int `json:"ttl_seconds,omitempty"`
}

type submitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

func (s *Server) handleImpact(w http.ResponseWriter, r *http.Request) {
	if lim := s.config.Limiter; lim != nil && !lim.Allow() {
		secs := int(math.Ceil(lim.RetryAfter().Seconds()))
		w.Header().Set("Retry-After", fmt.Sprint(max(secs, 1)))
		writeError(w, http.StatusTooManyRequests, resilience.ErrRateLimitExceeded)
		return
	}

	var body ImpactRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	if body.TTLSeconds < 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: ttl_seconds must not be negative", ErrBadRequest))
		return
	}

	req := forecast.Request{
		ForecastID: body.ForecastID,
		Parameters: body.Parameters,
		Metrics:    body.Metrics,
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req = req.Normalize()

	id, err := s.config.Service.Submit(r.Context(), Namespace, req, cache.TTLSeconds(body.TTLSeconds))
	if err != nil {
		s.submitFailed(w, r, err)
		return
	}

	w.Header().Set("Location", "/jobs/"+id.String())

	st, err := s.config.Service.Poll(id.String())
	if err == nil && st.ServedFromCache {
		w.Header().Set("X-Cache-Hit", "hit")
		writeJSON(w, http.StatusOK, st)
		return
	}

	w.Header().Set("X-Cache-Hit", "miss")
	writeJSON(w, http.StatusAccepted, submitResponse{JobID: id.String(), Status: runner.StateComputing})
}

func (s *Server) submitFailed(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, runner.ErrClosed) {
		w.Header().Set("Retry-After", "5")
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	s.logger.Error(r.Context(), "submit failed", observe.F("error", err))
	writeError(w, http.StatusInternalServerError, errors.New("api: could not submit job"))
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	st, err := s.config.Service.Poll(r.PathValue("id"))
	switch {
	case errors.Is(err, runner.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		s.logger.Error(r.Context(), "poll failed", observe.F("error", err))
		writeError(w, http.StatusInternalServerError, errors.New("api: could not read job"))
	default:
		writeJSON(w, http.StatusOK, st)
	}
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.config.Service.ClearCache()
	s.logger.Info(r.Context(), "cache cleared", observe.F("principal", auth.PrincipalFromContext(r.Context())))
	writeJSON(w, http.StatusOK, map[string]string{"message": "cache cleared"})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.config.Service.CacheStats(r.Context()))
}

var (
	_ Service      = (*runner.Runner)(nil)
	_ http.Handler = (*Server)(nil)
)
