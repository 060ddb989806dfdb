package detect

import (
	"image"

	"github.com/disintegration/imaging"
)

// cropForRecognition cuts a region out of the page and scales it to the
// recognition model's input height, preserving aspect ratio.
func cropForRecognition(img image.Image, box Box, recHeight int) image.Image {
	b := img.Bounds()
	rect := image.Rect(b.Min.X+box.X, b.Min.Y+box.Y, b.Min.X+box.X+box.W, b.Min.Y+box.Y+box.H)
	crop := imaging.Crop(img, rect)

	cb := crop.Bounds()
	if cb.Dy() == 0 || cb.Dx() == 0 {
		return crop
	}
	w := cb.Dx() * recHeight / cb.Dy()
	if w < 1 {
		w = 1
	}
	return imaging.Resize(crop, w, recHeight, imaging.Lanczos)
}

// greedyCTCDecode collapses per-timestep argmax classes into text:
// repeats are merged and the blank class (0) is dropped. Logit layout is
// [T, C] flattened; the charset decides how many classes carry tokens.
func greedyCTCDecode(logits []float32, timesteps, classes int, cs *charset) string {
	if timesteps <= 0 || classes <= 0 || len(logits) < timesteps*classes {
		return ""
	}
	var out []rune
	prev := -1
	for t := 0; t < timesteps; t++ {
		row := logits[t*classes : (t+1)*classes]
		best := 0
		for c := 1; c < classes; c++ {
			if row[c] > row[best] {
				best = c
			}
		}
		if best != 0 && best != prev {
			out = append(out, []rune(cs.token(best))...)
		}
		prev = best
	}
	return string(out)
}
