package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

// GeminiConfig holds settings for the Gemini-backed translator.
type GeminiConfig struct {
	APIKey     string
	Model      string
	SourceLang string // e.g. "Japanese"
	TargetLang string // e.g. "English"
}

// DefaultGeminiConfig returns defaults for the ja→en pair the detection
// models are configured for.
func DefaultGeminiConfig() GeminiConfig {
	return GeminiConfig{
		Model:      "gemini-2.0-flash",
		SourceLang: "Japanese",
		TargetLang: "English",
	}
}

// Gemini translates text through the Gemini API. The language pair is
// fixed at construction. There is no retry logic; a failed call is the
// caller's to absorb.
type Gemini struct {
	client *genai.Client
	cfg    GeminiConfig
	logger *slog.Logger
}

// NewGemini creates the translator and its API client once at startup.
func NewGemini(ctx context.Context, logger *slog.Logger, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key cannot be empty")
	}
	if cfg.Model == "" {
		return nil, errors.New("gemini model name cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Gemini{client: client, cfg: cfg, logger: logger}, nil
}

// Translate converts a single cleaned text fragment to the target
// language. One attempt per call.
func (g *Gemini) Translate(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", nil
	}

	prompt := g.buildPrompt(text)

	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini call failed: %w", err)
	}

	translated, err := extractText(resp)
	if err != nil {
		return "", err
	}

	g.logger.DebugContext(ctx, "translated fragment",
		"source_len", len(text), "target_len", len(translated))
	return translated, nil
}

// extractText joins the text parts of the first candidate.
func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini returned no content")
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			out.WriteString(part.Text)
		}
	}
	translated := strings.TrimSpace(out.String())
	if translated == "" {
		return "", errors.New("gemini returned empty translation")
	}
	return translated, nil
}

func (g *Gemini) buildPrompt(text string) string {
	return fmt.Sprintf(
		"Translate the following %s manga dialogue to %s. "+
			"Reply with only the translation, no commentary.\n\n%s",
		g.cfg.SourceLang, g.cfg.TargetLang, text)
}
