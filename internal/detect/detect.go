// Package detect provides text region detection for manga pages. The
// pipeline treats detection as a black box behind the Detector interface;
// the ONNX implementation in this package runs a DB-style detection model
// plus a CTC recognition model to produce per-region raw text.
package detect

import (
	"context"
	"image"
)

// Box is an axis-aligned bounding box in original image coordinates.
type Box struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Region is one detected text region: its location, the raw recognized
// text, and the detector's confidence that the region contains text.
type Region struct {
	Box        Box     `json:"box"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Detector finds text regions in an image. Implementations must return
// regions in a stable detection order; callers rely on it.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Region, error)
	Close() error
}
