package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fukidashi-ocr/fukidashi/internal/pipeline"
	"github.com/fukidashi-ocr/fukidashi/internal/task"
)

// fakePipeline returns canned bubbles or a canned error.
type fakePipeline struct {
	bubbles []pipeline.Bubble
	err     error
}

func (f *fakePipeline) Run(_ context.Context, _ []byte) ([]pipeline.Bubble, error) {
	return f.bubbles, f.err
}

func newTestServer(t *testing.T, pl pipelineRunner) *Server {
	t.Helper()

	registry := task.NewRegistry(0)
	scheduler := task.NewScheduler(context.Background(), task.SchedulerConfig{Workers: 1, QueueSize: 8}, slog.Default())
	t.Cleanup(func() {
		scheduler.Stop()
		registry.Close()
	})

	return New(Config{CORSOrigin: "*", MaxUploadMB: 10}, pl, registry, scheduler)
}

// multipartUpload builds a multipart body with a single "file" field.
func multipartUpload(t *testing.T, field string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, "page.png")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return body, writer.FormDataContentType()
}

func TestServer_HealthHandler(t *testing.T) {
	server := newTestServer(t, &fakePipeline{})

	tests := []struct {
		name           string
		method         string
		expectedStatus int
		checkResponse  bool
	}{
		{
			name:           "GET request success",
			method:         "GET",
			expectedStatus: http.StatusOK,
			checkResponse:  true,
		},
		{
			name:           "POST request not allowed",
			method:         "POST",
			expectedStatus: http.StatusMethodNotAllowed,
			checkResponse:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/health", nil)
			w := httptest.NewRecorder()

			server.healthHandler(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.checkResponse {
				var response HealthResponse
				err := json.Unmarshal(w.Body.Bytes(), &response)
				require.NoError(t, err)

				assert.Equal(t, "ok", response.Status)
				assert.NotEmpty(t, response.Time)
				assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			}
		})
	}
}

func TestServer_SubmitHandler(t *testing.T) {
	t.Run("accepted with task id", func(t *testing.T) {
		server := newTestServer(t, &fakePipeline{bubbles: []pipeline.Bubble{
			{OriginalText: "こんにちは", TranslatedText: "Hello", Confidence: 0.95},
		}})

		body, contentType := multipartUpload(t, "file", []byte("fake image data"))
		req := httptest.NewRequest("POST", "/translate-manga", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()

		server.submitHandler(w, req)

		require.Equal(t, http.StatusAccepted, w.Code)

		var response SubmitResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.NotEmpty(t, response.TaskID)

		// The task is visible immediately, then reaches done.
		_, ok := server.registry.Get(response.TaskID)
		assert.True(t, ok)

		assert.Eventually(t, func() bool {
			tk, ok := server.registry.Get(response.TaskID)
			return ok && tk.Status == task.StatusDone
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("method not allowed", func(t *testing.T) {
		server := newTestServer(t, &fakePipeline{})

		req := httptest.NewRequest("GET", "/translate-manga", nil)
		w := httptest.NewRecorder()

		server.submitHandler(w, req)

		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})

	t.Run("missing file field", func(t *testing.T) {
		server := newTestServer(t, &fakePipeline{})

		body, contentType := multipartUpload(t, "document", []byte("fake image data"))
		req := httptest.NewRequest("POST", "/translate-manga", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()

		server.submitHandler(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "No image file provided", response.Error)
	})

	t.Run("empty file", func(t *testing.T) {
		server := newTestServer(t, &fakePipeline{})

		body, contentType := multipartUpload(t, "file", nil)
		req := httptest.NewRequest("POST", "/translate-manga", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()

		server.submitHandler(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("not multipart", func(t *testing.T) {
		server := newTestServer(t, &fakePipeline{})

		req := httptest.NewRequest("POST", "/translate-manga", bytes.NewReader([]byte("raw bytes")))
		w := httptest.NewRecorder()

		server.submitHandler(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("pipeline failure reaches error state", func(t *testing.T) {
		server := newTestServer(t, &fakePipeline{err: errors.New("detection blew up")})

		body, contentType := multipartUpload(t, "file", []byte("fake image data"))
		req := httptest.NewRequest("POST", "/translate-manga", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()

		server.submitHandler(w, req)

		require.Equal(t, http.StatusAccepted, w.Code)

		var response SubmitResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))

		assert.Eventually(t, func() bool {
			tk, ok := server.registry.Get(response.TaskID)
			return ok && tk.Status == task.StatusError
		}, 2*time.Second, 10*time.Millisecond)

		tk, _ := server.registry.Get(response.TaskID)
		assert.Contains(t, tk.Err, "detection blew up")
	})

	t.Run("scheduler rejection returns 503", func(t *testing.T) {
		registry := task.NewRegistry(0)
		scheduler := task.NewScheduler(context.Background(), task.SchedulerConfig{Workers: 1, QueueSize: 1}, slog.Default())
		scheduler.Stop()
		t.Cleanup(registry.Close)

		server := New(Config{CORSOrigin: "*", MaxUploadMB: 10}, &fakePipeline{}, registry, scheduler)

		body, contentType := multipartUpload(t, "file", []byte("fake image data"))
		req := httptest.NewRequest("POST", "/translate-manga", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()

		server.submitHandler(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		// The rejected task is still visible with a terminal error state.
		assert.Equal(t, 1, registry.Len())
	})
}

func TestServer_ResultHandler(t *testing.T) {
	t.Run("missing id", func(t *testing.T) {
		server := newTestServer(t, &fakePipeline{})

		req := httptest.NewRequest("GET", "/result", nil)
		w := httptest.NewRecorder()

		server.resultHandler(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		server := newTestServer(t, &fakePipeline{})

		req := httptest.NewRequest("GET", "/result?id=nonexistent", nil)
		w := httptest.NewRecorder()

		server.resultHandler(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)

		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "Task not found", response.Error)
	})

	t.Run("processing task", func(t *testing.T) {
		server := newTestServer(t, &fakePipeline{})
		id := server.registry.Create()

		req := httptest.NewRequest("GET", "/result?id="+id, nil)
		w := httptest.NewRecorder()

		server.resultHandler(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var response map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "processing", response["status"])
		assert.NotContains(t, response, "bubbles")
		assert.NotContains(t, response, "error")
	})

	t.Run("done task carries bubbles", func(t *testing.T) {
		server := newTestServer(t, &fakePipeline{})
		id := server.registry.Create()
		server.registry.Complete(id, []pipeline.Bubble{
			{OriginalText: "ありがとう", TranslatedText: "Thank you", Confidence: 0.9},
		})

		req := httptest.NewRequest("GET", "/result?id="+id, nil)
		w := httptest.NewRecorder()

		server.resultHandler(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var response doneResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "done", response.Status)
		require.Len(t, response.Bubbles, 1)
		assert.Equal(t, "Thank you", response.Bubbles[0].TranslatedText)
	})

	t.Run("done task with no bubbles renders empty array", func(t *testing.T) {
		server := newTestServer(t, &fakePipeline{})
		id := server.registry.Create()
		server.registry.Complete(id, nil)

		req := httptest.NewRequest("GET", "/result?id="+id, nil)
		w := httptest.NewRecorder()

		server.resultHandler(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"bubbles":[]`)
	})

	t.Run("failed task", func(t *testing.T) {
		server := newTestServer(t, &fakePipeline{})
		id := server.registry.Create()
		server.registry.Fail(id, "decode image: unknown format")

		req := httptest.NewRequest("GET", "/result?id="+id, nil)
		w := httptest.NewRecorder()

		server.resultHandler(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var response errorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "error", response.Status)
		assert.Contains(t, response.Error, "decode image")
	})
}

func TestServer_SetupRoutes(t *testing.T) {
	server := newTestServer(t, &fakePipeline{})
	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest("GET", "/metrics", nil)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
