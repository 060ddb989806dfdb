package textclean

// DefaultMinConfidence is the detection confidence below which a region
// is treated as noise and dropped.
const DefaultMinConfidence = 0.2

// Filter decides whether a detected region is worth translating.
type Filter struct {
	MinConfidence float64
}

// NewFilter returns a filter with the given confidence threshold.
// A non-positive threshold falls back to DefaultMinConfidence.
func NewFilter(minConfidence float64) Filter {
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}
	return Filter{MinConfidence: minConfidence}
}

// Keep reports whether a region with the given cleaned text and detection
// confidence should be translated. Empty text and low confidence are
// independent gates; either one discards the region.
func (f Filter) Keep(cleaned string, confidence float64) bool {
	if cleaned == "" {
		return false
	}
	return confidence >= f.MinConfidence
}
