package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gridProb(w, h int, hot map[[2]int]float32) []float32 {
	prob := make([]float32, w*h)
	for pt, v := range hot {
		prob[pt[1]*w+pt[0]] = v
	}
	return prob
}

func TestProbMapRegionsSingleComponent(t *testing.T) {
	// 3x2 block of high probability in an 8x8 map.
	hot := map[[2]int]float32{}
	for y := 2; y < 4; y++ {
		for x := 1; x < 4; x++ {
			hot[[2]int{x, y}] = 0.9
		}
	}
	regions := probMapRegions(gridProb(8, 8, hot), 8, 8, 0.3, 0.5)
	require.Len(t, regions, 1)

	st := regions[0]
	assert.Equal(t, 6, st.count)
	assert.Equal(t, 1, st.minX)
	assert.Equal(t, 3, st.maxX)
	assert.Equal(t, 2, st.minY)
	assert.Equal(t, 3, st.maxY)
	assert.InDelta(t, 0.9, st.probSum/float64(st.count), 1e-6)
}

func TestProbMapRegionsSeparateComponents(t *testing.T) {
	hot := map[[2]int]float32{
		{0, 0}: 0.8, {1, 0}: 0.8, // component A
		{5, 5}: 0.7, {5, 6}: 0.7, // component B (not 4-connected to A)
	}
	regions := probMapRegions(gridProb(8, 8, hot), 8, 8, 0.3, 0.5)
	assert.Len(t, regions, 2)
}

func TestProbMapRegionsBoxThreshFilters(t *testing.T) {
	hot := map[[2]int]float32{{2, 2}: 0.35, {3, 2}: 0.35}
	// Above binarization threshold but mean 0.35 < box threshold 0.5.
	regions := probMapRegions(gridProb(8, 8, hot), 8, 8, 0.3, 0.5)
	assert.Empty(t, regions)
}

func TestProbMapRegionsEmptyAndInvalid(t *testing.T) {
	assert.Nil(t, probMapRegions(nil, 8, 8, 0.3, 0.5))
	assert.Nil(t, probMapRegions(make([]float32, 10), 8, 8, 0.3, 0.5))
	assert.Empty(t, probMapRegions(make([]float32, 64), 8, 8, 0.3, 0.5))
}

func TestScaleToOriginal(t *testing.T) {
	st := regionStats{minX: 2, minY: 4, maxX: 5, maxY: 7, count: 1}
	box := scaleToOriginal(st, 100, 100, 200, 400)
	assert.Equal(t, Box{X: 4, Y: 16, W: 8, H: 16}, box)
}

func TestScaleToOriginalClampsToImage(t *testing.T) {
	st := regionStats{minX: 98, minY: 98, maxX: 99, maxY: 99, count: 1}
	box := scaleToOriginal(st, 100, 100, 100, 100)
	assert.LessOrEqual(t, box.X+box.W, 100)
	assert.LessOrEqual(t, box.Y+box.H, 100)
}

func TestSnap32(t *testing.T) {
	assert.Equal(t, 32, snap32(5))
	assert.Equal(t, 32, snap32(63))
	assert.Equal(t, 64, snap32(64))
	assert.Equal(t, 960, snap32(991))
}

func TestGreedyCTCDecode(t *testing.T) {
	cs := &charset{tokens: []string{"a", "b", "c"}}

	// Timesteps argmax: a a blank b b c -> "abc"
	logits := []float32{
		0, 9, 0, 0, // a
		0, 9, 0, 0, // a (repeat, collapsed)
		9, 0, 0, 0, // blank
		0, 0, 9, 0, // b
		0, 0, 9, 0, // b (repeat, collapsed)
		0, 0, 0, 9, // c
	}
	assert.Equal(t, "abc", greedyCTCDecode(logits, 6, 4, cs))
}

func TestGreedyCTCDecodeBlankSeparatesRepeats(t *testing.T) {
	cs := &charset{tokens: []string{"a"}}
	// a blank a -> "aa"
	logits := []float32{
		0, 9,
		9, 0,
		0, 9,
	}
	assert.Equal(t, "aa", greedyCTCDecode(logits, 3, 2, cs))
}

func TestGreedyCTCDecodeInvalidInput(t *testing.T) {
	cs := &charset{tokens: []string{"a"}}
	assert.Equal(t, "", greedyCTCDecode(nil, 0, 0, cs))
	assert.Equal(t, "", greedyCTCDecode([]float32{1}, 2, 2, cs))
}
