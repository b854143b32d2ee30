package palmscan

import (
	"bytes"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/jtejido/go-wsq"
	"github.com/pkg/errors"
	"github.com/spakin/netpbm"
)

// Image is a single-channel capture with intensities 0-255.
type Image struct {
	gray *image.Gray
}

// LoadImage reads and decodes the image file at path.
func LoadImage(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ImageLoadError{Source: path, Err: err}
	}
	img, err := LoadImageFromBytes(data)
	if err != nil {
		var le *ImageLoadError
		if errors.As(err, &le) {
			le.Source = path
		}
		return nil, err
	}
	return img, nil
}

// LoadImageFromBytes decodes PNG, JPEG, GIF, WSQ or Netpbm data.
func LoadImageFromBytes(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, &ImageLoadError{Err: ErrEmptyImage}
	}

	var img image.Image
	var err error
	switch {
	case isWSQ(data):
		img, err = wsq.Decode(bytes.NewReader(data))
	case isNetpbm(data):
		img, err = netpbm.Decode(bytes.NewReader(data), &netpbm.DecodeOptions{
			Target:      netpbm.PGM,
			PBMMaxValue: 255,
		})
	default:
		img, _, err = image.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return nil, &ImageLoadError{Err: errors.Wrap(err, "unsupported or corrupt image")}
	}
	return FromImage(img)
}

// FromImage converts any image to grayscale.
func FromImage(img image.Image) (*Image, error) {
	if g, ok := img.(*image.Gray); ok {
		return NewFromGray(g)
	}
	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x-bounds.Min.X, y-bounds.Min.Y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return NewFromGray(gray)
}

// NewFromGray wraps gray without copying it.
func NewFromGray(gray *image.Gray) (*Image, error) {
	if gray == nil || gray.Bounds().Empty() {
		return nil, &ImageLoadError{Err: ErrEmptyImage}
	}
	return &Image{gray: gray}, nil
}

func (i *Image) Width() int  { return i.gray.Bounds().Dx() }
func (i *Image) Height() int { return i.gray.Bounds().Dy() }

// Gray exposes the underlying pixels; callers must not modify them.
func (i *Image) Gray() *image.Gray { return i.gray }

func isNetpbm(data []byte) bool {
	return len(data) >= 2 && data[0] == 'P' && data[1] >= '1' && data[1] <= '7'
}

// isWSQ reports whether data starts with the WSQ SOI marker.
func isWSQ(data []byte) bool {
	return len(data) >= 2 && data[0] == 0xFF && data[1] == 0xA0
}
