// Package joystick reads a Linux joystick device (/dev/input/js*) and keeps the
// driver's stick and button state for the control loop.
package joystick

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

// DualShock 4 numbering as reported by the hid-sony driver.  Stick axes run from
// -32767 (up or left) to 32767 (down or right).
const (
	ButtonSquare  = 3
	ButtonL1      = 4
	ButtonR1      = 5
	ButtonShare   = 8
	ButtonOptions = 9

	AxisLStickX = 0
	AxisLStickY = 1
	AxisRStickX = 3
)

type EventType uint8

const (
	EventButton EventType = 0x01
	EventAxis   EventType = 0x02

	// eventInit is or'ed into the type of the synthetic events the driver sends on open
	// to describe the current state.
	eventInit = 0x80
	eventSize = 8
)

func (e EventType) String() string {
	switch e {
	case EventAxis:
		return "axis"
	case EventButton:
		return "button"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(e))
	}
}

type Event struct {
	Type   EventType
	Number uint8
	Value  int16
	// Init marks the state snapshot sent when the device is opened.
	Init bool
}

func (e Event) String() string {
	return fmt.Sprintf("%v(%v)=%v", e.Type, e.Number, e.Value)
}

// decodeEvent unpacks one js_event: u32 timestamp (unused), s16 value, u8 type, u8
// number.
func decodeEvent(buf []byte) Event {
	return Event{
		Value:  int16(binary.LittleEndian.Uint16(buf[4:6])),
		Type:   EventType(buf[6] &^ eventInit),
		Init:   buf[6]&eventInit != 0,
		Number: buf[7],
	}
}

type Device struct {
	r   io.ReadCloser
	buf [eventSize]byte
}

func Open(path string) (*Device, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open joystick %s", path)
	}
	return &Device{r: f}, nil
}

func (d *Device) ReadEvent() (Event, error) {
	if _, err := io.ReadFull(d.r, d.buf[:]); err != nil {
		return Event{}, errors.Wrap(err, "failed to read joystick event")
	}
	return decodeEvent(d.buf[:]), nil
}

func (d *Device) Close() error {
	return d.r.Close()
}
