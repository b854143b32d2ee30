//go:build !gocv

package capture

import "github.com/pkg/errors"

// OpenCamera always fails; build with -tags gocv for OpenCV camera support.
func OpenCamera(device int, title string) Opener {
	return func() (Device, error) {
		return nil, errors.New("built without camera support (use -tags gocv)")
	}
}
