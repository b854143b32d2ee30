package imgproc

import (
	"image"
	"math"

	"github.com/pkg/errors"
)

// kernelBits is the fixed-point precision of one kernel dimension.
const kernelBits = 12

// Fixed binomial kernels used for sigma <= 0 with small apertures, scaled
// to sum to 256.
var smallKernels = map[int][]int64{
	1: {256},
	3: {64, 128, 64},
	5: {16, 64, 96, 64, 16},
	7: {8, 28, 56, 72, 56, 28, 8},
}

// GaussianKernel returns a 1D kernel of odd size k summing to 1<<kernelBits.
// A non-positive sigma is derived from k as 0.3*((k-1)/2-1)+0.8.
func GaussianKernel(k int, sigma float64) ([]int64, error) {
	if k <= 0 || k%2 == 0 {
		return nil, errors.Errorf("kernel size must be odd and positive, got %d", k)
	}
	if sigma <= 0 {
		if fixed, ok := smallKernels[k]; ok {
			out := make([]int64, k)
			for i, v := range fixed {
				out[i] = v << (kernelBits - 8)
			}
			return out, nil
		}
		sigma = 0.3*(float64(k-1)*0.5-1) + 0.8
	}

	weights := make([]float64, k)
	total := 0.0
	c := k / 2
	for i := range weights {
		d := float64(i - c)
		weights[i] = math.Exp(-(d * d) / (2 * sigma * sigma))
		total += weights[i]
	}
	out := make([]int64, k)
	var sum int64
	for i, w := range weights {
		out[i] = int64(math.Round(w / total * (1 << kernelBits)))
		sum += out[i]
	}
	// Keep the kernel normalised after rounding.
	out[c] += (1 << kernelBits) - sum
	return out, nil
}

// GaussianBlur smooths src with a k×k Gaussian using Reflect101 borders.
func GaussianBlur(src *image.Gray, k int) (*image.Gray, error) {
	kernel, err := GaussianKernel(k, 0)
	if err != nil {
		return nil, err
	}
	return convolveSeparable(normalize(src), kernel, Reflect101), nil
}

func convolveSeparable(src *image.Gray, kernel []int64, border Border) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	r := len(kernel) / 2

	rows := make([]int64, w*h)
	for y := 0; y < h; y++ {
		line := src.Pix[y*src.Stride : y*src.Stride+w]
		for x := 0; x < w; x++ {
			var acc int64
			for i, kv := range kernel {
				acc += kv * int64(line[border(x+i-r, w)])
			}
			rows[y*w+x] = acc
		}
	}

	dst := image.NewGray(src.Rect)
	const half = int64(1) << (2*kernelBits - 1)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc int64
			for i, kv := range kernel {
				acc += kv * rows[border(y+i-r, h)*w+x]
			}
			dst.Pix[y*dst.Stride+x] = uint8(clamp((acc+half)>>(2*kernelBits), 0, 255))
		}
	}
	return dst
}
