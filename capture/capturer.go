package capture

import (
	"context"
	"fmt"
	"image"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ErrUserCancelled marks an explicit cancel. It is a normal outcome, not a
// failure.
var ErrUserCancelled = errors.New("capture cancelled by user")

// CameraUnavailableError means the device could not be opened or read.
type CameraUnavailableError struct {
	Device int
	Err    error
}

func (e *CameraUnavailableError) Error() string {
	return fmt.Sprintf("camera %d unavailable: %v", e.Device, e.Err)
}

func (e *CameraUnavailableError) Unwrap() error { return e.Err }

// Device is a frame source with its preview window.
type Device interface {
	// ReadFrame returns the next preview frame.
	ReadFrame() (image.Image, error)
	// Key returns the key pressed since the previous call, or 0.
	Key() rune
	Close() error
}

// Opener opens a fresh Device for one capture session.
type Opener func() (Device, error)

// Capturer runs one Machine per Capture call.
type Capturer struct {
	open   Opener
	keys   Keys
	device int
}

func NewCapturer(open Opener, keys Keys, device int) *Capturer {
	return &Capturer{open: open, keys: keys, device: device}
}

// Capture previews frames until the capture key is pressed and returns the
// frame shown at that moment. Cancelling returns ErrUserCancelled.
func (c *Capturer) Capture(ctx context.Context) (image.Image, error) {
	dev, err := c.open()
	if err != nil {
		return nil, &CameraUnavailableError{Device: c.device, Err: err}
	}
	defer func() {
		if err := dev.Close(); err != nil {
			log.WithError(err).Warn("Failed to release camera")
		}
	}()

	m := NewMachine(c.keys)
	if _, err := m.Fire(Start()); err != nil {
		return nil, err
	}
	log.WithField("device", c.device).Infof("Press '%c' to capture, '%c' to cancel", c.keys.Capture, c.keys.Cancel)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame, err := dev.ReadFrame()
		if err != nil {
			return nil, &CameraUnavailableError{Device: c.device, Err: errors.Wrap(err, "read failed")}
		}
		if _, err := m.Fire(Frame(frame)); err != nil {
			return nil, err
		}
		if k := dev.Key(); k != 0 {
			if _, err := m.Fire(Key(k)); err != nil {
				return nil, err
			}
		}

		switch m.State() {
		case Captured:
			log.Info("Frame captured")
			return m.Frame(), nil
		case Cancelled:
			log.Warn("Capture cancelled")
			return nil, ErrUserCancelled
		}
	}
}
