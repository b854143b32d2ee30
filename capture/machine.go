// Package capture turns a stream of preview frames and key presses into a
// single captured frame, or a cancellation.
package capture

import (
	"fmt"
	"image"

	"github.com/pkg/errors"
)

type State int

const (
	Idle State = iota
	Previewing
	Captured
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Previewing:
		return "previewing"
	case Captured:
		return "captured"
	case Cancelled:
		return "cancelled"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further events are accepted.
func (s State) Terminal() bool { return s == Captured || s == Cancelled }

type EventKind int

const (
	EventStart EventKind = iota
	EventFrame
	EventKey
)

// Event is one input to the machine.
type Event struct {
	Kind  EventKind
	Frame image.Image
	Key   rune
}

func Start() Event                { return Event{Kind: EventStart} }
func Frame(img image.Image) Event { return Event{Kind: EventFrame, Frame: img} }
func Key(k rune) Event            { return Event{Kind: EventKey, Key: k} }

// Keys binds the capture and cancel actions.
type Keys struct {
	Capture rune
	Cancel  rune
}

// DefaultKeys are 'c' to capture and 'q' to cancel.
var DefaultKeys = Keys{Capture: 'c', Cancel: 'q'}

// ErrTerminal is returned for events delivered after capture or cancel.
var ErrTerminal = errors.New("capture already finished")

// Machine tracks the capture session:
//
//	Idle --start--> Previewing --frame--> Previewing
//	Previewing --capture key (after a frame)--> Captured
//	Previewing --cancel key--> Cancelled
//
// Other keys and a capture key before any frame are ignored.
type Machine struct {
	keys  Keys
	state State
	last  image.Image
}

func NewMachine(keys Keys) *Machine {
	return &Machine{keys: keys}
}

func (m *Machine) State() State { return m.state }

// Frame returns the captured frame once the machine is in Captured.
func (m *Machine) Frame() image.Image {
	if m.state != Captured {
		return nil
	}
	return m.last
}

// Fire applies ev and returns the new state.
func (m *Machine) Fire(ev Event) (State, error) {
	if m.state.Terminal() {
		return m.state, ErrTerminal
	}
	switch ev.Kind {
	case EventStart:
		if m.state == Idle {
			m.state = Previewing
		}
	case EventFrame:
		if m.state != Previewing {
			return m.state, errors.Errorf("frame received while %s", m.state)
		}
		if ev.Frame != nil {
			m.last = ev.Frame
		}
	case EventKey:
		if m.state != Previewing {
			return m.state, errors.Errorf("key received while %s", m.state)
		}
		switch {
		case ev.Key == m.keys.Cancel:
			m.state = Cancelled
			m.last = nil
		case ev.Key == m.keys.Capture && m.last != nil:
			m.state = Captured
		}
	default:
		return m.state, errors.Errorf("unknown event kind %d", ev.Kind)
	}
	return m.state, nil
}
