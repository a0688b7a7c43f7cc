// Package chi serves run status over HTTP: health, metrics, coverage and a
// stop endpoint.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/monkeys/internal/domain"
	logpkg "github.com/kailas-cloud/monkeys/internal/logger"
	"github.com/kailas-cloud/monkeys/internal/usecase/controller"
	healthuc "github.com/kailas-cloud/monkeys/internal/usecase/health"
)

// ErrorCode is the machine-readable error class of an error response.
type ErrorCode string

// Error codes.
const (
	CodeUnauthorized  ErrorCode = "unauthorized"
	CodeNotFound      ErrorCode = "not_found"
	CodeConflict      ErrorCode = "conflict"
	CodeUnavailable   ErrorCode = "unavailable"
	CodeInternalError ErrorCode = "internal_error"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// WorkCoverage is one work's coverage.
type WorkCoverage struct {
	Work      string  `json:"work"`
	Found     int     `json:"found"`
	Total     int     `json:"total"`
	Remaining int     `json:"remaining"`
	Percent   float64 `json:"percent"`
}

// CoverageResponse is the body of GET /v1/coverage.
type CoverageResponse struct {
	State          string         `json:"state"`
	RunID          string         `json:"run_id,omitempty"`
	Iterations     uint64         `json:"iterations"`
	LastCheckpoint *time.Time     `json:"last_checkpoint,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at"`
	Works          []WorkCoverage `json:"works"`
}

// StopResponse is the body of POST /v1/stop.
type StopResponse struct {
	Status string `json:"status"`
}

// StatusSource publishes run status snapshots.
type StatusSource interface {
	Status() controller.Status
}

// Stopper accepts stop requests.
type Stopper interface {
	RequestStop() error
}

// Server handles status requests.
type Server struct {
	health  *healthuc.Service
	status  StatusSource
	stopper Stopper
	logger  *zap.Logger
}

// NewServer creates a status server. status and stopper may be nil; their
// routes then answer 503.
func NewServer(health *healthuc.Service, status StatusSource, stopper Stopper, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{health: health, status: status, stopper: stopper, logger: logger}
}

// Routes registers the handlers on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/healthz", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/coverage", s.GetCoverage)
		r.Get("/coverage/{work}", s.GetWorkCoverage)
		r.Post("/stop", s.Stop)
	})
}

// HealthCheck handles GET /healthz.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// GetCoverage handles GET /v1/coverage.
func (s *Server) GetCoverage(w http.ResponseWriter, _ *http.Request) {
	if s.status == nil {
		writeError(w, http.StatusServiceUnavailable, CodeUnavailable, "no run in progress")
		return
	}
	writeJSON(w, http.StatusOK, coverageToResponse(s.status.Status()))
}

// GetWorkCoverage handles GET /v1/coverage/{work}.
func (s *Server) GetWorkCoverage(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		writeError(w, http.StatusServiceUnavailable, CodeUnavailable, "no run in progress")
		return
	}
	name := chi.URLParam(r, "work")
	for _, c := range s.status.Status().Coverage {
		if c.Work == name || domain.Slug(c.Work) == name {
			writeJSON(w, http.StatusOK, workToResponse(c))
			return
		}
	}
	writeError(w, http.StatusNotFound, CodeNotFound, domain.ErrWorkNotFound.Error())
}

// Stop handles POST /v1/stop.
func (s *Server) Stop(w http.ResponseWriter, r *http.Request) {
	if s.stopper == nil {
		writeError(w, http.StatusServiceUnavailable, CodeUnavailable, "no run in progress")
		return
	}
	if err := s.stopper.RequestStop(); err != nil {
		if errors.Is(err, domain.ErrStopped) {
			writeError(w, http.StatusConflict, CodeConflict, "run already stopped")
			return
		}
		logpkg.FromContext(r.Context()).Error("stop request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
		return
	}
	s.logger.Info("Stop requested over HTTP")
	writeJSON(w, http.StatusAccepted, StopResponse{Status: "stopping"})
}

func coverageToResponse(st controller.Status) CoverageResponse {
	resp := CoverageResponse{
		State:      string(st.State),
		RunID:      st.RunID,
		Iterations: st.Iterations,
		UpdatedAt:  st.UpdatedAt,
		Works:      make([]WorkCoverage, 0, len(st.Coverage)),
	}
	if !st.LastCheckpoint.IsZero() {
		t := st.LastCheckpoint
		resp.LastCheckpoint = &t
	}
	for _, c := range st.Coverage {
		resp.Works = append(resp.Works, workToResponse(c))
	}
	return resp
}

func workToResponse(c domain.Coverage) WorkCoverage {
	return WorkCoverage{
		Work:      c.Work,
		Found:     c.Found,
		Total:     c.Total,
		Remaining: c.Remaining(),
		Percent:   c.Percent(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
