package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/fukidashi-ocr/fukidashi/internal/detect"
	"github.com/fukidashi-ocr/fukidashi/internal/pipeline"
	"github.com/fukidashi-ocr/fukidashi/internal/translate"
)

const (
	outputFormatJSON = "json"
	outputFormatText = "text"
)

// imageCmd represents the image command.
var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Translate manga pages from the command line",
	Long: `Process one or more manga page images and print the detected speech
bubbles with their translations.

Supported formats: JPEG, PNG, BMP, TIFF, WebP

Examples:
  fukidashi image page.png
  fukidashi image *.jpg --format json
  fukidashi image page.png --target-lang German`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("no input files provided")
		}

		cfg := GetConfig()

		format, _ := cmd.Flags().GetString("format")
		if format != outputFormatJSON && format != outputFormatText {
			return fmt.Errorf("invalid output format: %s (must be text or json)", format)
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
		if cmd.Flags().Changed("target-lang") {
			trCfg.TargetLang, _ = cmd.Flags().GetString("target-lang")
		}
		if trCfg.APIKey == "" {
			trCfg.APIKey = os.Getenv("GEMINI_API_KEY")
		}

		ctx := context.Background()

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

		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}

			bubbles, err := pl.Run(ctx, data)
			if err != nil {
				return fmt.Errorf("failed to process %s: %w", path, err)
			}

			if err := printBubbles(cmd, path, bubbles, format, len(args) > 1); err != nil {
				return err
			}
		}

		return nil
	},
}

// printBubbles writes translation results for one page to stdout.
func printBubbles(cmd *cobra.Command, path string, bubbles []pipeline.Bubble, format string, multi bool) error {
	out := cmd.OutOrStdout()

	if format == outputFormatJSON {
		if bubbles == nil {
			bubbles = []pipeline.Bubble{}
		}
		payload := map[string]any{"file": path, "bubbles": bubbles}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}

	if multi {
		fmt.Fprintf(out, "== %s ==\n", path)
	}
	if len(bubbles) == 0 {
		fmt.Fprintln(out, "(no text found)")
		return nil
	}
	for i, b := range bubbles {
		fmt.Fprintf(out, "[%d] %s\n    %s (confidence %.2f)\n", i+1, b.OriginalText, b.TranslatedText, b.Confidence)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(imageCmd)
	imageCmd.Flags().StringP("format", "f", outputFormatText, "output format (text, json)")
	imageCmd.Flags().String("det-model", "", "override detection model path")
	imageCmd.Flags().String("rec-model", "", "override recognition model path")
	imageCmd.Flags().String("dict", "", "override recognition dictionary path")
	imageCmd.Flags().String("onnx-lib", "", "override ONNX Runtime shared library path")
	imageCmd.Flags().Float64("min-confidence", 0.2, "drop detected regions below this confidence (0..1)")
	imageCmd.Flags().String("target-lang", "", "override translation target language")
}
