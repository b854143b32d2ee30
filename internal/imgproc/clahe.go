package imgproc

import (
	"image"

	"github.com/pkg/errors"
)

// EqualizeAdaptive applies contrast limited adaptive histogram equalization.
// The image is split into grid×grid tiles (padded with Reflect101 when the
// size does not divide evenly); each tile gets a clipped histogram LUT and
// every pixel is bilinearly interpolated between the four nearest tile LUTs.
func EqualizeAdaptive(src *image.Gray, clipLimit float64, grid int) (*image.Gray, error) {
	if grid <= 0 {
		return nil, errors.Errorf("tile grid must be positive, got %d", grid)
	}
	src = normalize(src)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	if w == 0 || h == 0 {
		return nil, errors.New("empty image")
	}

	tw := (w + grid - 1) / grid
	th := (h + grid - 1) / grid
	area := tw * th

	clip := 0
	if clipLimit > 0 {
		clip = int(clipLimit * float64(area) / 256)
		if clip < 1 {
			clip = 1
		}
	}

	luts := make([][256]uint8, grid*grid)
	for ty := 0; ty < grid; ty++ {
		for tx := 0; tx < grid; tx++ {
			var hist [256]int
			for y := ty * th; y < (ty+1)*th; y++ {
				row := Reflect101(y, h) * src.Stride
				for x := tx * tw; x < (tx+1)*tw; x++ {
					hist[src.Pix[row+Reflect101(x, w)]]++
				}
			}
			if clip > 0 {
				clipHistogram(&hist, clip)
			}
			lut := &luts[ty*grid+tx]
			sum := 0
			for i := range hist {
				sum += hist[i]
				lut[i] = uint8(clamp((sum*255*2+area)/(2*area), 0, 255))
			}
		}
	}

	dst := image.NewGray(src.Rect)
	// Positions are measured in half-pixels relative to tile centres:
	// pos = 2x-tw, tile = floor(pos / 2tw), weight = pos mod 2tw.
	sx, sy := 2*tw, 2*th
	for y := 0; y < h; y++ {
		py := 2*y - th
		ty1 := floorDiv(py, sy)
		ya := py - ty1*sy
		ty2 := clamp(ty1+1, 0, grid-1)
		ty1 = clamp(ty1, 0, grid-1)
		for x := 0; x < w; x++ {
			px := 2*x - tw
			tx1 := floorDiv(px, sx)
			xa := px - tx1*sx
			tx2 := clamp(tx1+1, 0, grid-1)
			tx1 = clamp(tx1, 0, grid-1)

			v := src.Pix[y*src.Stride+x]
			top := int(luts[ty1*grid+tx1][v])*(sx-xa) + int(luts[ty1*grid+tx2][v])*xa
			bottom := int(luts[ty2*grid+tx1][v])*(sx-xa) + int(luts[ty2*grid+tx2][v])*xa
			den := sx * sy
			res := (top*(sy-ya) + bottom*ya + den/2) / den
			dst.Pix[y*dst.Stride+x] = uint8(clamp(res, 0, 255))
		}
	}
	return dst, nil
}

// clipHistogram caps every bin at limit and spreads the excess evenly, the
// remainder going to bins at a regular stride from zero.
func clipHistogram(hist *[256]int, limit int) {
	clipped := 0
	for i := range hist {
		if hist[i] > limit {
			clipped += hist[i] - limit
			hist[i] = limit
		}
	}
	batch := clipped / 256
	residual := clipped - batch*256
	for i := range hist {
		hist[i] += batch
	}
	if residual > 0 {
		step := 256 / residual
		if step < 1 {
			step = 1
		}
		for i := 0; i < 256 && residual > 0; i += step {
			hist[i]++
			residual--
		}
	}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
