package detect

import (
	"image"

	"github.com/disintegration/imaging"
)

// fitForDetection scales the image to fit within maxSize while keeping
// aspect ratio, then snaps both dimensions down to multiples of 32 as the
// DB model architecture requires.
func fitForDetection(img image.Image, maxSize int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > maxSize || h > maxSize {
		img = imaging.Fit(img, maxSize, maxSize, imaging.Lanczos)
		b = img.Bounds()
		w, h = b.Dx(), b.Dy()
	}

	sw := snap32(w)
	sh := snap32(h)
	if sw != w || sh != h {
		img = imaging.Resize(img, sw, sh, imaging.Lanczos)
	}
	return img
}

func snap32(v int) int {
	s := (v / 32) * 32
	if s < 32 {
		s = 32
	}
	return s
}

// tensorize converts an image to a normalized NCHW float32 tensor
// ([1,3,H,W], channel order RGB, values scaled to [0,1]).
func tensorize(img image.Image) ([]float32, int, int) {
	nrgba := imaging.Clone(img)
	b := nrgba.Bounds()
	w, h := b.Dx(), b.Dy()

	data := make([]float32, 3*h*w)
	plane := h * w
	for y := range h {
		for x := range w {
			r, g, bl, _ := nrgba.At(x+b.Min.X, y+b.Min.Y).RGBA()
			i := y*w + x
			data[i] = float32(r>>8) / 255.0
			data[plane+i] = float32(g>>8) / 255.0
			data[2*plane+i] = float32(bl>>8) / 255.0
		}
	}
	return data, w, h
}
