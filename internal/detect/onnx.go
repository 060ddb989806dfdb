package detect

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXDetector runs a DB-style detection model and a CTC recognition
// model through ONNX Runtime. Safe for concurrent use; the underlying
// sessions serialize access internally.
type ONNXDetector struct {
	cfg	Config
	det	*ort.DynamicAdvancedSession
	rec	*ort.DynamicAdvancedSession
	cs	*charset
	detIn	string
	detOut	string
	recIn	string
	recOut	string
	mu	sync.Mutex
	closed	bool
}

// NewONNX loads both models and the recognition dictionary. The ONNX
// Runtime environment is initialized once per process.
func NewONNX(cfg Config) (*ONNXDetector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, p := range []string{cfg.DetModelPath, cfg.RecModelPath, cfg.DictPath} {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("model file not found: %s", p)
		}
	}

	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	cs, err := loadCharset(cfg.DictPath)
	if err != nil {
		return nil, err
	}

	d := &ONNXDetector{cfg: cfg, cs: cs}
	d.det, d.detIn, d.detOut, err = newSession(cfg.DetModelPath, cfg.NumThreads)
	if err != nil {
		return nil, fmt.Errorf("init detection session: %w", err)
	}
	d.rec, d.recIn, d.recOut, err = newSession(cfg.RecModelPath, cfg.NumThreads)
	if err != nil {
		_ = d.det.Destroy()
		return nil, fmt.Errorf("init recognition session: %w", err)
	}

	slog.Debug("ONNX detector initialized",
		"det_model", cfg.DetModelPath,
		"rec_model", cfg.RecModelPath,
		"dict_tokens", len(cs.tokens))
	return d, nil
}

func newSession(modelPath string, threads int) (*ort.DynamicAdvancedSession, string, string, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, "", "", fmt.Errorf("inspect model %s: %w", modelPath, err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, "", "", fmt.Errorf("model %s: expected 1 input and 1 output, got %d/%d",
			modelPath, len(inputs), len(outputs))
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, "", "", fmt.Errorf("create session options: %w", err)
	}
	defer func() { _ = opts.Destroy() }()
	if threads > 0 {
		if err := opts.SetIntraOpNumThreads(threads); err != nil {
			return nil, "", "", fmt.Errorf("set thread count: %w", err)
		}
	}

	sess, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, opts)
	if err != nil {
		return nil, "", "", fmt.Errorf("create session: %w", err)
	}
	return sess, inputs[0].Name, outputs[0].Name, nil
}

// Detect finds text regions and recognizes their raw text, returned in
// labelling order (top-to-bottom, left-to-right component discovery).
func (d *ONNXDetector) Detect(ctx context.Context, img image.Image) ([]Region, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	ob := img.Bounds()

	resized := fitForDetection(img, d.cfg.MaxImageSize)
	prob, mapW, mapH, err := d.runDetection(resized)
	if err != nil {
		return nil, err
	}

	stats := probMapRegions(prob, mapW, mapH, d.cfg.DbThresh, d.cfg.BoxThresh)
	regions := make([]Region, 0, len(stats))
	for _, st := range stats {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		box := scaleToOriginal(st, mapW, mapH, ob.Dx(), ob.Dy())
		text, err := d.runRecognition(img, box)
		if err != nil {
			return nil, fmt.Errorf("recognize region at (%d,%d): %w", box.X, box.Y, err)
		}
		regions = append(regions, Region{
			Box:        box,
			Text:       text,
			Confidence: st.probSum / float64(st.count),
		})
	}

	slog.Debug("detection completed",
		"regions", len(regions),
		"duration_ms", time.Since(start).Milliseconds())
	return regions, nil
}

func (d *ONNXDetector) runDetection(img image.Image) ([]float32, int, int, error) {
	data, w, h := tensorize(img)
	out, shape, err := d.run(d.det, data, []int64{1, 3, int64(h), int64(w)})
	if err != nil {
		return nil, 0, 0, fmt.Errorf("detection inference: %w", err)
	}
	// Output is [1, 1, H', W']; the map usually matches the input size.
	mapH, mapW := h, w
	if len(shape) == 4 {
		mapH, mapW = int(shape[2]), int(shape[3])
	}
	if len(out) < mapH*mapW {
		return nil, 0, 0, fmt.Errorf("detection output too small: %d < %d", len(out), mapH*mapW)
	}
	return out[:mapH*mapW], mapW, mapH, nil
}

func (d *ONNXDetector) runRecognition(img image.Image, box Box) (string, error) {
	crop := cropForRecognition(img, box, d.cfg.RecHeight)
	data, w, h := tensorize(crop)
	out, shape, err := d.run(d.rec, data, []int64{1, 3, int64(h), int64(w)})
	if err != nil {
		return "", fmt.Errorf("recognition inference: %w", err)
	}
	if len(shape) != 3 {
		return "", fmt.Errorf("unexpected recognition output rank %d", len(shape))
	}
	// [1, T, C]
	return greedyCTCDecode(out, int(shape[1]), int(shape[2]), d.cs), nil
}

// run executes one session call and copies out the float32 results.
func (d *ONNXDetector) run(sess *ort.DynamicAdvancedSession, data []float32, dims []int64) ([]float32, []int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, nil, errors.New("detector is closed")
	}

	input, err := ort.NewTensor(ort.NewShape(dims...), data)
	if err != nil {
		return nil, nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer func() { _ = input.Destroy() }()

	outputs := []ort.Value{nil}
	if err := sess.Run([]ort.Value{input}, outputs); err != nil {
		return nil, nil, fmt.Errorf("inference failed: %w", err)
	}
	defer func() { _ = outputs[0].Destroy() }()

	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, nil, errors.New("output tensor is not float32")
	}
	shape := tensor.GetShape()
	src := tensor.GetData()
	out := make([]float32, len(src))
	copy(out, src)
	return out, append([]int64(nil), shape...), nil
}

// Close destroys both ONNX sessions. The shared environment is left
// alive for the remainder of the process.
func (d *ONNXDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	var firstErr error
	if d.rec != nil {
		if err := d.rec.Destroy(); err != nil {
			firstErr = err
		}
		d.rec = nil
	}
	if d.det != nil {
		if err := d.det.Destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
		d.det = nil
	}
	return firstErr
}
