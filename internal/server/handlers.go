package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fukidashi-ocr/fukidashi/internal/pipeline"
	"github.com/fukidashi-ocr/fukidashi/internal/task"
)

// healthHandler reports service liveness.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// submitHandler accepts a manga page upload, creates a task, and hands
// the work to the scheduler. It returns 202 with the task id before any
// detection or translation starts.
func (s *Server) submitHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	maxBytes := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, "File too large", http.StatusRequestEntityTooLarge)
			return
		}
		s.writeError(w, "Failed to parse form data", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, "No image file provided", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, "Failed to read image data", http.StatusInternalServerError)
		return
	}
	if len(data) == 0 {
		s.writeError(w, "Empty image file", http.StatusBadRequest)
		return
	}
	uploadSizeBytes.Observe(float64(len(data)))

	id := s.registry.Create()
	slog.Info("task submitted", "task_id", id, "filename", header.Filename, "bytes", len(data))

	err = s.scheduler.Submit(task.Job{ID: id, Run: func(ctx context.Context) {
		s.runTask(ctx, id, data)
	}})
	if err != nil {
		// The entry already exists; finish it so pollers see a terminal
		// state instead of a task that never ran.
		s.registry.Fail(id, "server is overloaded, try again later")
		tasksTotal.WithLabelValues(string(task.StatusError)).Inc()
		s.writeError(w, "Server busy", http.StatusServiceUnavailable)
		return
	}

	s.writeJSON(w, http.StatusAccepted, SubmitResponse{TaskID: id})
}

// runTask executes the pipeline for one submission and publishes the
// terminal state exactly once.
func (s *Server) runTask(ctx context.Context, id string, data []byte) {
	start := time.Now()
	bubbles, err := s.pipeline.Run(ctx, data)
	if err != nil {
		slog.Error("task failed", "task_id", id, "error", err)
		s.registry.Fail(id, err.Error())
		tasksTotal.WithLabelValues(string(task.StatusError)).Inc()
		return
	}

	s.registry.Complete(id, bubbles)
	tasksTotal.WithLabelValues(string(task.StatusDone)).Inc()
	taskDuration.Observe(time.Since(start).Seconds())
	bubblesPerTask.Observe(float64(len(bubbles)))
	slog.Info("task completed", "task_id", id,
		"bubbles", len(bubbles), "duration_ms", time.Since(start).Milliseconds())
}

// resultHandler serves task status lookups.
func (s *Server) resultHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		s.writeError(w, "Missing id parameter", http.StatusBadRequest)
		return
	}

	t, ok := s.registry.Get(id)
	if !ok {
		s.writeError(w, "Task not found", http.StatusNotFound)
		return
	}

	switch t.Status {
	case task.StatusDone:
		bubbles := t.Bubbles
		if bubbles == nil {
			bubbles = []pipeline.Bubble{}
		}
		s.writeJSON(w, http.StatusOK, doneResponse{Status: string(t.Status), Bubbles: bubbles})
	case task.StatusError:
		s.writeJSON(w, http.StatusOK, errorResponse{Status: string(t.Status), Error: t.Err})
	default:
		s.writeJSON(w, http.StatusOK, processingResponse{Status: string(t.Status)})
	}
}

// writeJSON writes a JSON response body with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, message string, code int) {
	s.writeJSON(w, code, ErrorResponse{Error: message})
}
