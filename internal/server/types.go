package server

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fukidashi-ocr/fukidashi/internal/pipeline"
	"github.com/fukidashi-ocr/fukidashi/internal/task"
)

// pipelineRunner is what the server needs from a pipeline.
type pipelineRunner interface {
	Run(ctx context.Context, data []byte) ([]pipeline.Bubble, error)
}

// Server holds the HTTP surface and its collaborators. The pipeline,
// registry, and scheduler are constructed at startup and injected; the
// server only creates tasks and reads snapshots.
type Server struct {
	pipeline    pipelineRunner
	registry    *task.Registry
	scheduler   *task.Scheduler
	corsOrigin  string
	maxUploadMB int64
	rateLimiter *RateLimiter
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
	TaskTTL     time.Duration
	RateLimit   RateLimitConfig
	Workers     int
	QueueSize   int
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time,omitempty"`
}

// SubmitResponse is the 202 body returned by POST /translate-manga.
type SubmitResponse struct {
	TaskID string `json:"task_id"`
}

// ErrorResponse is the JSON error body for every failure path.
type ErrorResponse struct {
	Error string `json:"error"`
}

// processingResponse, doneResponse, and errorResponse mirror the three
// poll bodies; done always carries a bubbles array, even when empty.
type processingResponse struct {
	Status string `json:"status"`
}

type doneResponse struct {
	Status  string            `json:"status"`
	Bubbles []pipeline.Bubble `json:"bubbles"`
}

type errorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// New creates a server instance around injected collaborators.
func New(cfg Config, pl pipelineRunner, registry *task.Registry, scheduler *task.Scheduler) *Server {
	s := &Server{
		pipeline:    pl,
		registry:    registry,
		scheduler:   scheduler,
		corsOrigin:  cfg.CORSOrigin,
		maxUploadMB: cfg.MaxUploadMB,
	}
	if cfg.RateLimit.Enabled {
		s.rateLimiter = NewRateLimiter(cfg.RateLimit.RequestsPerMinute)
	}
	return s
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/translate-manga", s.corsMiddleware(s.rateLimitMiddleware(s.submitHandler)))
	mux.HandleFunc("/result", s.corsMiddleware(s.resultHandler))
	mux.Handle("/metrics", promhttp.Handler())
}
