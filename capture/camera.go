//go:build gocv

package capture

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Camera previews an OpenCV video device in a window.
type Camera struct {
	cap *gocv.VideoCapture
	win *gocv.Window
	mat gocv.Mat
	key rune
}

// OpenCamera returns an Opener for the given device index.
func OpenCamera(device int, title string) Opener {
	return func() (Device, error) {
		vc, err := gocv.OpenVideoCapture(device)
		if err != nil {
			return nil, err
		}
		if !vc.IsOpened() {
			vc.Close()
			return nil, errors.New("camera not detected")
		}
		return &Camera{cap: vc, win: gocv.NewWindow(title), mat: gocv.NewMat()}, nil
	}
}

func (c *Camera) ReadFrame() (image.Image, error) {
	if ok := c.cap.Read(&c.mat); !ok || c.mat.Empty() {
		return nil, errors.New("camera read failed")
	}
	c.win.IMShow(c.mat)
	if k := c.win.WaitKey(1); k >= 0 {
		c.key = rune(k & 0xFF)
	}
	return c.mat.ToImage()
}

func (c *Camera) Key() rune {
	k := c.key
	c.key = 0
	return k
}

func (c *Camera) Close() error {
	c.mat.Close()
	c.win.Close()
	return c.cap.Close()
}
