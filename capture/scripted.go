package capture

import (
	"image"

	"github.com/pkg/errors"
)

// Step is one tick of a ScriptedDevice: the frame it yields and the key
// pressed during that tick.
type Step struct {
	Frame image.Image
	Key   rune
	Err   error
}

// ScriptedDevice replays fixed steps; reading past the end fails.
type ScriptedDevice struct {
	Steps  []Step
	pos    int
	key    rune
	Closed bool
}

func (d *ScriptedDevice) ReadFrame() (image.Image, error) {
	if d.pos >= len(d.Steps) {
		return nil, errors.New("script exhausted")
	}
	s := d.Steps[d.pos]
	d.pos++
	d.key = s.Key
	return s.Frame, s.Err
}

func (d *ScriptedDevice) Key() rune {
	k := d.key
	d.key = 0
	return k
}

func (d *ScriptedDevice) Close() error {
	d.Closed = true
	return nil
}

// Still returns an Opener for a device that shows img once and presses the
// capture key, for captures sourced from a file or upload.
func Still(img image.Image, keys Keys) Opener {
	return func() (Device, error) {
		return &ScriptedDevice{Steps: []Step{{Frame: img, Key: keys.Capture}}}, nil
	}
}
