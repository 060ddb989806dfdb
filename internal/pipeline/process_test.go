package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fukidashi-ocr/fukidashi/internal/detect"
	"github.com/fukidashi-ocr/fukidashi/internal/translate"
)

// fakeDetector returns canned regions or an error.
type fakeDetector struct {
	regions []detect.Region
	err     error
	calls   int
}

func (f *fakeDetector) Detect(_ context.Context, _ image.Image) ([]detect.Region, error) {
	f.calls++
	return f.regions, f.err
}

func (f *fakeDetector) Close() error { return nil }

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range 8 {
		img.Set(i, i, color.Black)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func echoTranslator() translate.Translator {
	return translate.Func(func(_ context.Context, text string) (string, error) {
		return "tr:" + text, nil
	})
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(DefaultConfig(), nil, echoTranslator())
	assert.Error(t, err)

	_, err = New(DefaultConfig(), &fakeDetector{}, nil)
	assert.Error(t, err)

	p, err := New(DefaultConfig(), &fakeDetector{}, echoTranslator())
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestRunDecodeFailure(t *testing.T) {
	p, err := New(DefaultConfig(), &fakeDetector{}, echoTranslator())
	require.NoError(t, err)

	_, err = p.Run(context.Background(), []byte("not an image"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode image")
}

func TestRunDetectionFailureAbortsTask(t *testing.T) {
	det := &fakeDetector{err: errors.New("model exploded")}
	p, err := New(DefaultConfig(), det, echoTranslator())
	require.NoError(t, err)

	_, err = p.Run(context.Background(), pngBytes(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "text detection")
}

func TestRunZeroDetections(t *testing.T) {
	p, err := New(DefaultConfig(), &fakeDetector{}, echoTranslator())
	require.NoError(t, err)

	bubbles, err := p.Run(context.Background(), pngBytes(t))
	require.NoError(t, err)
	assert.Empty(t, bubbles)
	assert.NotNil(t, bubbles, "zero detections is success, not an error")
}

func TestRunFilteringScenario(t *testing.T) {
	// Three detections: kept, dropped for confidence, dropped for empty text.
	det := &fakeDetector{regions: []detect.Region{
		{Text: "こんにちは", Confidence: 0.9},
		{Text: "ok", Confidence: 0.1},
		{Text: "!!!", Confidence: 0.5},
	}}
	p, err := New(DefaultConfig(), det, echoTranslator())
	require.NoError(t, err)

	bubbles, err := p.Run(context.Background(), pngBytes(t))
	require.NoError(t, err)
	require.Len(t, bubbles, 1)
	assert.Equal(t, "こんにちは", bubbles[0].OriginalText)
	assert.Equal(t, "tr:こんにちは", bubbles[0].TranslatedText)
	assert.InDelta(t, 0.9, bubbles[0].Confidence, 1e-9)
}

func TestRunPerRegionTranslationIsolation(t *testing.T) {
	det := &fakeDetector{regions: []detect.Region{
		{Text: "ひとつ", Confidence: 0.9},
		{Text: "ふたつ", Confidence: 0.8},
		{Text: "みっつ", Confidence: 0.7},
	}}

	// Fail only the middle region.
	tr := translate.Func(func(_ context.Context, text string) (string, error) {
		if text == "ふたつ" {
			return "", errors.New("timeout")
		}
		return "en:" + text, nil
	})

	p, err := New(DefaultConfig(), det, tr)
	require.NoError(t, err)

	bubbles, err := p.Run(context.Background(), pngBytes(t))
	require.NoError(t, err, "translation failure must not fail the task")
	require.Len(t, bubbles, 3)
	assert.Equal(t, "en:ひとつ", bubbles[0].TranslatedText)
	assert.Equal(t, translate.Sentinel, bubbles[1].TranslatedText)
	assert.Equal(t, "en:みっつ", bubbles[2].TranslatedText)
}

func TestRunAllTranslationsFail(t *testing.T) {
	det := &fakeDetector{regions: []detect.Region{
		{Text: "あ", Confidence: 0.9},
		{Text: "い", Confidence: 0.9},
	}}
	tr := translate.Func(func(context.Context, string) (string, error) {
		return "", errors.New("backend down")
	})

	p, err := New(DefaultConfig(), det, tr)
	require.NoError(t, err)

	bubbles, err := p.Run(context.Background(), pngBytes(t))
	require.NoError(t, err)
	require.Len(t, bubbles, 2)
	for _, b := range bubbles {
		assert.Equal(t, translate.Sentinel, b.TranslatedText)
	}
}

func TestRunPreservesDetectionOrder(t *testing.T) {
	det := &fakeDetector{regions: []detect.Region{
		{Text: "一", Confidence: 0.9},
		{Text: "二", Confidence: 0.05}, // dropped
		{Text: "三", Confidence: 0.8},
		{Text: "四", Confidence: 0.7},
	}}
	p, err := New(DefaultConfig(), det, echoTranslator())
	require.NoError(t, err)

	bubbles, err := p.Run(context.Background(), pngBytes(t))
	require.NoError(t, err)
	require.Len(t, bubbles, 3)
	assert.Equal(t, "一", bubbles[0].OriginalText)
	assert.Equal(t, "三", bubbles[1].OriginalText)
	assert.Equal(t, "四", bubbles[2].OriginalText)
}

func TestRunCleansBeforeTranslating(t *testing.T) {
	det := &fakeDetector{regions: []detect.Region{
		{Text: "Hello! こんにちは、世界！#@", Confidence: 0.9},
	}}

	var got string
	tr := translate.Func(func(_ context.Context, text string) (string, error) {
		got = text
		return "x", nil
	})

	p, err := New(DefaultConfig(), det, tr)
	require.NoError(t, err)

	bubbles, err := p.Run(context.Background(), pngBytes(t))
	require.NoError(t, err)
	require.Len(t, bubbles, 1)
	assert.Equal(t, "Hello こんにちは世界", got)
	assert.Equal(t, "Hello こんにちは世界", bubbles[0].OriginalText)
}

func TestRunResultNotLargerThanDetections(t *testing.T) {
	det := &fakeDetector{regions: []detect.Region{
		{Text: "あ", Confidence: 0.9},
		{Text: "", Confidence: 0.9},
		{Text: "い", Confidence: 0.01},
	}}
	p, err := New(DefaultConfig(), det, echoTranslator())
	require.NoError(t, err)

	bubbles, err := p.Run(context.Background(), pngBytes(t))
	require.NoError(t, err)
	assert.LessOrEqual(t, len(bubbles), len(det.regions))
}
