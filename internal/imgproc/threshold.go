package imgproc

import (
	"image"

	"github.com/pkg/errors"
)

// AdaptiveThreshold binarises src against the Gaussian-weighted mean of its
// block×block neighbourhood (Replicate borders). A pixel is foreground when
// src-mean > -offset; with invert the output is 0 for foreground and 255
// otherwise.
func AdaptiveThreshold(src *image.Gray, block, offset int, invert bool) (*image.Gray, error) {
	if block < 3 || block%2 == 0 {
		return nil, errors.Errorf("block size must be odd and at least 3, got %d", block)
	}
	kernel, err := GaussianKernel(block, 0)
	if err != nil {
		return nil, err
	}
	src = normalize(src)
	mean := convolveSeparable(src, kernel, Replicate)

	var on, off uint8 = 255, 0
	if invert {
		on, off = 0, 255
	}
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewGray(src.Rect)
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w]
		m := mean.Pix[y*mean.Stride:]
		d := dst.Pix[y*dst.Stride:]
		for x, v := range row {
			if int(v)-int(m[x]) > -offset {
				d[x] = on
			} else {
				d[x] = off
			}
		}
	}
	return dst, nil
}
