package detect

import "errors"

// Config holds configuration for the ONNX detection backend.
type Config struct {
	DetModelPath string  // DB-style detection model
	RecModelPath string  // CTC recognition model
	DictPath     string  // recognition dictionary, one token per line
	LibraryPath  string  // ONNX Runtime shared library (optional, system path used when empty)
	DbThresh     float32 // probability-map binarization threshold
	BoxThresh    float32 // minimum mean probability for a region to survive
	MaxImageSize int     // longest side fed to the detection model
	RecHeight    int     // input height of the recognition model
	NumThreads   int     // intra-op threads, 0 for runtime default
}

// DefaultConfig returns detector defaults tuned for manga pages.
func DefaultConfig() Config {
	return Config{
		DbThresh:     0.3,
		BoxThresh:    0.5,
		MaxImageSize: 960,
		RecHeight:    48,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.DetModelPath == "" {
		return errors.New("detection model path is empty")
	}
	if c.RecModelPath == "" {
		return errors.New("recognition model path is empty")
	}
	if c.DictPath == "" {
		return errors.New("recognition dictionary path is empty")
	}
	if c.MaxImageSize <= 0 {
		return errors.New("max image size must be > 0")
	}
	if c.RecHeight <= 0 {
		return errors.New("recognition height must be > 0")
	}
	return nil
}
