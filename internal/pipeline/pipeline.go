// Package pipeline orchestrates one manga page through detection,
// per-region filtering, and per-region translation, producing an ordered
// list of translated bubbles.
package pipeline

import (
	"errors"

	"github.com/fukidashi-ocr/fukidashi/internal/detect"
	"github.com/fukidashi-ocr/fukidashi/internal/textclean"
	"github.com/fukidashi-ocr/fukidashi/internal/translate"
)

// Bubble is one translated text region, in detection order.
type Bubble struct {
	OriginalText   string  `json:"original_text"`
	TranslatedText string  `json:"translated_text"`
	Confidence     float64 `json:"confidence"`
}

// Config holds pipeline tuning knobs.
type Config struct {
	// MinConfidence is the detection confidence below which regions are
	// dropped as noise. Zero means the package default.
	MinConfidence float64
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	return Config{MinConfidence: textclean.DefaultMinConfidence}
}

// Pipeline wires the detector and translator together. Both collaborators
// are constructed once at startup and injected; the pipeline owns no
// model state of its own and is safe for concurrent use.
type Pipeline struct {
	cfg        Config
	detector   detect.Detector
	translator translate.Translator
	filter     textclean.Filter
}

// New creates a pipeline over the given collaborators.
func New(cfg Config, detector detect.Detector, translator translate.Translator) (*Pipeline, error) {
	if detector == nil {
		return nil, errors.New("detector is required")
	}
	if translator == nil {
		return nil, errors.New("translator is required")
	}
	return &Pipeline{
		cfg:        cfg,
		detector:   detector,
		translator: translator,
		filter:     textclean.NewFilter(cfg.MinConfidence),
	}, nil
}

// Config returns a copy of the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Close releases the detector's resources.
func (p *Pipeline) Close() error {
	if p.detector != nil {
		return p.detector.Close()
	}
	return nil
}
