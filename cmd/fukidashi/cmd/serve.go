package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fukidashi-ocr/fukidashi/internal/detect"
	"github.com/fukidashi-ocr/fukidashi/internal/pipeline"
	"github.com/fukidashi-ocr/fukidashi/internal/server"
	"github.com/fukidashi-ocr/fukidashi/internal/task"
	"github.com/fukidashi-ocr/fukidashi/internal/translate"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP translation API",
	Long: `Start an HTTP server that accepts manga page uploads and translates
the text found on them asynchronously.

The server provides the following endpoints:
  POST /translate-manga - Submit a page for translation
  GET  /result          - Poll translation status by task id
  GET  /health          - Health check endpoint
  GET  /metrics         - Prometheus metrics

Examples:
  fukidashi serve
  fukidashi serve --port 8080
  fukidashi serve --host 0.0.0.0 --port 3000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		host := cfg.Server.Host
		if cmd.Flags().Changed("host") {
			host, _ = cmd.Flags().GetString("host")
		}

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}

		corsOrigin := cfg.Server.CORSOrigin
		if cmd.Flags().Changed("cors-origin") {
			corsOrigin, _ = cmd.Flags().GetString("cors-origin")
		}

		maxUploadSize := cfg.Server.MaxUploadMB
		if cmd.Flags().Changed("max-upload-size") {
			maxUploadSize, _ = cmd.Flags().GetInt("max-upload-size")
		}

		timeout := cfg.Server.TimeoutSec
		if cmd.Flags().Changed("timeout") {
			timeout, _ = cmd.Flags().GetInt("timeout")
		}

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if cmd.Flags().Changed("shutdown-timeout") {
			shutdownTimeout, _ = cmd.Flags().GetInt("shutdown-timeout")
		}

		workers := cfg.Server.Workers
		if cmd.Flags().Changed("workers") {
			workers, _ = cmd.Flags().GetInt("workers")
		}

		queueSize := cfg.Server.QueueSize
		if cmd.Flags().Changed("queue-size") {
			queueSize, _ = cmd.Flags().GetInt("queue-size")
		}

		taskTTL := cfg.TaskTTL()
		if cmd.Flags().Changed("task-ttl") {
			ttlMin, _ := cmd.Flags().GetInt("task-ttl")
			taskTTL = time.Duration(ttlMin) * time.Minute
		}

		rateLimitEnabled := cfg.Server.RateLimitEnabled
		if cmd.Flags().Changed("rate-limit-enabled") {
			rateLimitEnabled, _ = cmd.Flags().GetBool("rate-limit-enabled")
		}

		requestsPerMinute := cfg.Server.RateLimitPerMinute
		if cmd.Flags().Changed("requests-per-minute") {
			requestsPerMinute, _ = cmd.Flags().GetInt("requests-per-minute")
		}

		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", port)
		}

		detCfg := cfg.ToDetectConfig()
		if cmd.Flags().Changed("det-model") {
			detCfg.DetModelPath, _ = cmd.Flags().GetString("det-model")
		}
		if cmd.Flags().Changed("rec-model") {
			detCfg.RecModelPath, _ = cmd.Flags().GetString("rec-model")
		}
		if cmd.Flags().Changed("dict") {
			detCfg.DictPath, _ = cmd.Flags().GetString("dict")
		}
		if cmd.Flags().Changed("onnx-lib") {
			detCfg.LibraryPath, _ = cmd.Flags().GetString("onnx-lib")
		}

		plCfg := cfg.ToPipelineConfig()
		if cmd.Flags().Changed("min-confidence") {
			plCfg.MinConfidence, _ = cmd.Flags().GetFloat64("min-confidence")
		}

		trCfg := cfg.ToTranslateConfig()
		if trCfg.APIKey == "" {
			trCfg.APIKey = os.Getenv("GEMINI_API_KEY")
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		detector, err := detect.NewONNX(detCfg)
		if err != nil {
			return fmt.Errorf("failed to initialize detector: %w", err)
		}

		translator, err := translate.NewGemini(ctx, slog.Default(), trCfg)
		if err != nil {
			_ = detector.Close()
			return fmt.Errorf("failed to initialize translator: %w", err)
		}

		pl, err := pipeline.New(plCfg, detector, translator)
		if err != nil {
			_ = detector.Close()
			return fmt.Errorf("failed to initialize pipeline: %w", err)
		}
		defer func() { _ = pl.Close() }()

		registry := task.NewRegistry(taskTTL)
		defer registry.Close()

		scheduler := task.NewScheduler(ctx, task.SchedulerConfig{
			Workers:   workers,
			QueueSize: queueSize,
		}, slog.Default())

		srv := server.New(server.Config{
			Host:        host,
			Port:        port,
			CORSOrigin:  corsOrigin,
			MaxUploadMB: int64(maxUploadSize),
			TimeoutSec:  timeout,
			TaskTTL:     taskTTL,
			RateLimit: server.RateLimitConfig{
				Enabled:           rateLimitEnabled,
				RequestsPerMinute: requestsPerMinute,
			},
			Workers:   workers,
			QueueSize: queueSize,
		}, pl, registry, scheduler)

		mux := http.NewServeMux()
		srv.SetupRoutes(mux)

		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       time.Duration(timeout) * time.Second,
			WriteTimeout:      time.Duration(timeout) * time.Second,
		}

		go func() {
			slog.Info("Starting translation server", "host", host, "port", port)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("Server error", "error", err)
				cancel()
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig.String())
		case <-ctx.Done():
			slog.Info("Context cancelled, initiating shutdown")
		}

		slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", shutdownTimeout))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
			time.Duration(shutdownTimeout)*time.Second)
		defer shutdownCancel()

		slog.Info("Shutting down HTTP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server shutdown completed")
		}

		// Let queued tasks drain before tearing down the pipeline.
		slog.Info("Draining task scheduler")
		scheduler.Stop()

		slog.Info("Graceful shutdown completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 20, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 30, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().Int("workers", 0, "translation worker count (0 uses all CPUs)")
	serveCmd.Flags().Int("queue-size", 64, "pending task queue size")
	serveCmd.Flags().Int("task-ttl", 60, "minutes to keep finished task results (0 keeps forever)")
	// Pipeline customization flags
	serveCmd.Flags().String("det-model", "", "override detection model path")
	serveCmd.Flags().String("rec-model", "", "override recognition model path")
	serveCmd.Flags().String("dict", "", "override recognition dictionary path")
	serveCmd.Flags().String("onnx-lib", "", "override ONNX Runtime shared library path")
	serveCmd.Flags().Float64("min-confidence", 0.2, "drop detected regions below this confidence (0..1)")
	// Rate limiting flags
	serveCmd.Flags().Bool("rate-limit-enabled", false, "enable rate limiting")
	serveCmd.Flags().Int("requests-per-minute", 30, "maximum requests per minute per client")
}
