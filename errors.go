package palmscan

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrEmptyImage is reported when a decoded image has no pixels.
var ErrEmptyImage = errors.New("image is empty")

// ImageLoadError reports an image that could not be read or decoded.
type ImageLoadError struct {
	Source string
	Err    error
}

func (e *ImageLoadError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("cannot load image: %v", e.Err)
	}
	return fmt.Sprintf("cannot load image %s: %v", e.Source, e.Err)
}

func (e *ImageLoadError) Unwrap() error { return e.Err }
