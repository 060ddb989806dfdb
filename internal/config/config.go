package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fukidashi-ocr/fukidashi/internal/detect"
	"github.com/fukidashi-ocr/fukidashi/internal/pipeline"
	"github.com/fukidashi-ocr/fukidashi/internal/translate"
)

// Config represents the complete configuration for the fukidashi service.
// It includes settings for all commands (serve, image) and supports
// loading from configuration files, environment variables, and
// command-line flags.
type Config struct {
	// Global settings
	ModelsDir string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Detection and recognition pipeline
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`

	// Translation backend
	Translate TranslateConfig `mapstructure:"translate" yaml:"translate" json:"translate"`

	// HTTP server (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// PipelineConfig contains detection, recognition, and filtering settings.
type PipelineConfig struct {
	Detector   DetectorConfig   `mapstructure:"detector" yaml:"detector" json:"detector"`
	Recognizer RecognizerConfig `mapstructure:"recognizer" yaml:"recognizer" json:"recognizer"`

	// MinConfidence drops detected regions below this detection score.
	MinConfidence float64 `mapstructure:"min_confidence" yaml:"min_confidence" json:"min_confidence"`

	// OnnxLibrary overrides the ONNX Runtime shared library location.
	OnnxLibrary string `mapstructure:"onnx_library" yaml:"onnx_library" json:"onnx_library"`
}

// DetectorConfig contains text detection settings.
type DetectorConfig struct {
	ModelPath    string  `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	DbThresh     float32 `mapstructure:"db_thresh" yaml:"db_thresh" json:"db_thresh"`
	BoxThresh    float32 `mapstructure:"box_thresh" yaml:"box_thresh" json:"box_thresh"`
	MaxImageSize int     `mapstructure:"max_image_size" yaml:"max_image_size" json:"max_image_size"`
	NumThreads   int     `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
}

// RecognizerConfig contains text recognition settings.
type RecognizerConfig struct {
	ModelPath   string `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	DictPath    string `mapstructure:"dict_path" yaml:"dict_path" json:"dict_path"`
	ImageHeight int    `mapstructure:"image_height" yaml:"image_height" json:"image_height"`
}

// TranslateConfig contains translation backend settings.
type TranslateConfig struct {
	APIKey     string `mapstructure:"api_key" yaml:"api_key" json:"-"`
	Model      string `mapstructure:"model" yaml:"model" json:"model"`
	SourceLang string `mapstructure:"source_lang" yaml:"source_lang" json:"source_lang"`
	TargetLang string `mapstructure:"target_lang" yaml:"target_lang" json:"target_lang"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host               string `mapstructure:"host" yaml:"host" json:"host"`
	Port               int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin         string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB        int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec         int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout    int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	Workers            int    `mapstructure:"workers" yaml:"workers" json:"workers"`
	QueueSize          int    `mapstructure:"queue_size" yaml:"queue_size" json:"queue_size"`
	TaskTTLMin         int    `mapstructure:"task_ttl_min" yaml:"task_ttl_min" json:"task_ttl_min"`
	RateLimitEnabled   bool   `mapstructure:"rate_limit_enabled" yaml:"rate_limit_enabled" json:"rate_limit_enabled"`
	RateLimitPerMinute int    `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute" json:"rate_limit_per_minute"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	detCfg := detect.DefaultConfig()
	trCfg := translate.DefaultGeminiConfig()
	plCfg := pipeline.DefaultConfig()

	return Config{
		ModelsDir: "models",
		LogLevel:  "info",
		Verbose:   false,
		Pipeline: PipelineConfig{
			Detector: DetectorConfig{
				DbThresh:     detCfg.DbThresh,
				BoxThresh:    detCfg.BoxThresh,
				MaxImageSize: detCfg.MaxImageSize,
			},
			Recognizer: RecognizerConfig{
				ImageHeight: detCfg.RecHeight,
			},
			MinConfidence: plCfg.MinConfidence,
		},
		Translate: TranslateConfig{
			Model:      trCfg.Model,
			SourceLang: trCfg.SourceLang,
			TargetLang: trCfg.TargetLang,
		},
		Server: ServerConfig{
			Host:               "localhost",
			Port:               8080,
			CORSOrigin:         "*",
			MaxUploadMB:        20,
			TimeoutSec:         30,
			ShutdownTimeout:    10,
			Workers:            0,
			QueueSize:          64,
			TaskTTLMin:         60,
			RateLimitEnabled:   false,
			RateLimitPerMinute: 30,
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if err := validateThreshold(float64(c.Pipeline.Detector.DbThresh), "pipeline.detector.db_thresh"); err != nil {
		return err
	}
	if err := validateThreshold(float64(c.Pipeline.Detector.BoxThresh), "pipeline.detector.box_thresh"); err != nil {
		return err
	}
	if err := validateThreshold(c.Pipeline.MinConfidence, "pipeline.min_confidence"); err != nil {
		return err
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.QueueSize <= 0 {
		return fmt.Errorf("invalid queue size: %d (must be positive)", c.Server.QueueSize)
	}
	if c.Server.TaskTTLMin < 0 {
		return fmt.Errorf("invalid task TTL: %d (must not be negative)", c.Server.TaskTTLMin)
	}

	return nil
}

// ToDetectConfig converts the config to the detection backend format.
func (c *Config) ToDetectConfig() detect.Config {
	cfg := detect.DefaultConfig()
	cfg.DetModelPath = c.Pipeline.Detector.ModelPath
	cfg.RecModelPath = c.Pipeline.Recognizer.ModelPath
	cfg.DictPath = c.Pipeline.Recognizer.DictPath
	cfg.LibraryPath = c.Pipeline.OnnxLibrary
	if c.Pipeline.Detector.DbThresh > 0 {
		cfg.DbThresh = c.Pipeline.Detector.DbThresh
	}
	if c.Pipeline.Detector.BoxThresh > 0 {
		cfg.BoxThresh = c.Pipeline.Detector.BoxThresh
	}
	if c.Pipeline.Detector.MaxImageSize > 0 {
		cfg.MaxImageSize = c.Pipeline.Detector.MaxImageSize
	}
	if c.Pipeline.Recognizer.ImageHeight > 0 {
		cfg.RecHeight = c.Pipeline.Recognizer.ImageHeight
	}
	cfg.NumThreads = c.Pipeline.Detector.NumThreads
	return cfg
}

// ToPipelineConfig converts the config to the internal pipeline format.
func (c *Config) ToPipelineConfig() pipeline.Config {
	return pipeline.Config{
		MinConfidence: c.Pipeline.MinConfidence,
	}
}

// ToTranslateConfig converts the config to the Gemini translator format.
func (c *Config) ToTranslateConfig() translate.GeminiConfig {
	cfg := translate.DefaultGeminiConfig()
	cfg.APIKey = c.Translate.APIKey
	if c.Translate.Model != "" {
		cfg.Model = c.Translate.Model
	}
	if c.Translate.SourceLang != "" {
		cfg.SourceLang = c.Translate.SourceLang
	}
	if c.Translate.TargetLang != "" {
		cfg.TargetLang = c.Translate.TargetLang
	}
	return cfg
}

// TaskTTL returns the registry eviction TTL; zero disables eviction.
func (c *Config) TaskTTL() time.Duration {
	return time.Duration(c.Server.TaskTTLMin) * time.Minute
}

// contains checks if a slice contains a string.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}
