package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"runtime"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/fukidashi-ocr/fukidashi/internal/textclean"
	"github.com/fukidashi-ocr/fukidashi/internal/translate"
)

// Run decodes the uploaded image bytes and processes the page. It is the
// task-level entry point: decode and detection failures abort the run,
// per-region translation failures do not.
func (p *Pipeline) Run(ctx context.Context, data []byte) ([]Bubble, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	slog.Debug("image decoded", "format", format, "bytes", len(data))
	return p.ProcessImage(ctx, img)
}

// ProcessImage runs detection and per-region translation over an already
// decoded page. Bubbles come back in detection order; regions rejected by
// the filter leave no trace in the result.
func (p *Pipeline) ProcessImage(ctx context.Context, img image.Image) ([]Bubble, error) {
	if img == nil {
		return nil, fmt.Errorf("input image is nil")
	}

	start := time.Now()
	regions, err := p.detector.Detect(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("text detection: %w", err)
	}
	slog.Debug("detection finished", "regions", len(regions))
	regionsDetected.Observe(float64(len(regions)))

	bubbles := make([]Bubble, 0, len(regions))
	for i, region := range regions {
		cleaned := textclean.Clean(region.Text)
		if !p.filter.Keep(cleaned, region.Confidence) {
			slog.Debug("region dropped",
				"index", i, "confidence", region.Confidence, "cleaned_len", len(cleaned))
			regionsDropped.Inc()
			continue
		}

		translated, err := p.translator.Translate(ctx, cleaned)
		if err != nil {
			// Per-region isolation: record the sentinel and keep going.
			slog.Warn("translation failed for region",
				"index", i, "error", err)
			translationFailures.Inc()
			translated = translate.Sentinel
		}

		bubbles = append(bubbles, Bubble{
			OriginalText:   cleaned,
			TranslatedText: translated,
			Confidence:     region.Confidence,
		})
	}

	logResources("page processed", start, len(regions), len(bubbles))
	return bubbles, nil
}

// logResources emits a debug line with timing and process memory usage.
func logResources(stage string, start time.Time, detected, kept int) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	heapBytes.Set(float64(ms.HeapAlloc))
	slog.Debug(stage,
		"duration_ms", time.Since(start).Milliseconds(),
		"regions_detected", detected,
		"bubbles", kept,
		"heap_mb", ms.HeapAlloc/(1024*1024))
}
