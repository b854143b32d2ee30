// Package imgproc implements the grayscale image operations behind template
// creation. All arithmetic is integer fixed point so that identical input
// yields identical output on every platform.
package imgproc

import (
	"image"

	"golang.org/x/exp/constraints"
)

// Border maps an out-of-range coordinate back into [0, n).
type Border func(i, n int) int

// Reflect101 mirrors around the edge pixel without repeating it (gfedcb|abcdefgh|gfedcba).
func Reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		} else {
			i = 2*n - 2 - i
		}
	}
	return i
}

// Replicate repeats the edge pixel (aaaaaa|abcdefgh|hhhhhhh).
func Replicate(i, n int) int {
	return clamp(i, 0, n-1)
}

func clamp[T constraints.Integer](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalize returns img, or a packed copy of it, with bounds at the origin
// and Stride equal to the width.
func normalize(img *image.Gray) *image.Gray {
	b := img.Bounds()
	if b.Min == (image.Point{}) && img.Stride == b.Dx() {
		return img
	}
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		copy(out.Pix[y*out.Stride:y*out.Stride+b.Dx()], img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):])
	}
	return out
}
