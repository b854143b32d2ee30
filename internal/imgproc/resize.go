package imgproc

import (
	"image"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// Resamplers maps the configured resampling policy to its scaler.
var Resamplers = map[string]draw.Scaler{
	"bilinear": draw.BiLinear,
	"nearest":  draw.NearestNeighbor,
}

// Resize scales src to exactly w×h.
func Resize(src *image.Gray, w, h int, policy string) (*image.Gray, error) {
	scaler, ok := Resamplers[policy]
	if !ok {
		return nil, errors.Errorf("unknown resampling policy %q", policy)
	}
	if w <= 0 || h <= 0 {
		return nil, errors.Errorf("invalid target size %dx%d", w, h)
	}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	scaler.Scale(dst, dst.Rect, src, src.Bounds(), draw.Src, nil)
	return dst, nil
}
