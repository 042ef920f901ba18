package joystick

import (
	"context"
	"math"
	"sync"

	"github.com/tigerbot-team/swervebot/pkg/log"
)

const axisMax = 32767

// Sticks is a snapshot of the driver's input, already shaped for the drivetrain: X is
// forwards, Y is left and Rot is anticlockwise, each in [-1, 1].
type Sticks struct {
	X, Y, Rot float64

	RobotRelative bool // L1 held
	Lock          bool // Square held
}

// Gamepad tracks the state of a joystick from its event stream.  Button presses that
// the control loop should act on once are queued as edges.
type Gamepad struct {
	deadband float64

	lock    sync.Mutex
	axes    map[uint8]int16
	buttons map[uint8]bool
	pressed []uint8
}

func NewGamepad(deadband float64) *Gamepad {
	return &Gamepad{
		deadband: deadband,
		axes:     map[uint8]int16{},
		buttons:  map[uint8]bool{},
	}
}

// Apply folds one event into the state.  A button already held when the device was
// opened does not count as a press.
func (g *Gamepad) Apply(e Event) {
	g.lock.Lock()
	defer g.lock.Unlock()
	switch e.Type {
	case EventAxis:
		g.axes[e.Number] = e.Value
	case EventButton:
		down := e.Value != 0
		if down && !e.Init && !g.buttons[e.Number] {
			g.pressed = append(g.pressed, e.Number)
		}
		g.buttons[e.Number] = down
	}
}

func (g *Gamepad) Sticks() Sticks {
	g.lock.Lock()
	defer g.lock.Unlock()
	// Stick axes read negative for up and left.
	return Sticks{
		X:             -g.axis(AxisLStickY),
		Y:             -g.axis(AxisLStickX),
		Rot:           -g.axis(AxisRStickX),
		RobotRelative: g.buttons[ButtonL1],
		Lock:          g.buttons[ButtonSquare],
	}
}

// TakePresses returns the buttons pressed since the last call.
func (g *Gamepad) TakePresses() []uint8 {
	g.lock.Lock()
	defer g.lock.Unlock()
	p := g.pressed
	g.pressed = nil
	return p
}

func (g *Gamepad) axis(n uint8) float64 {
	v := float64(g.axes[n]) / axisMax
	v = math.Max(-1, math.Min(1, v))
	if math.Abs(v) < g.deadband {
		return 0
	}
	// Rescale so that output starts from zero at the edge of the deadband.
	return math.Copysign((math.Abs(v)-g.deadband)/(1-g.deadband), v)
}

// LoopReadingEvents feeds events from d into g until reading fails.  Closing d ends
// the loop.
func (g *Gamepad) LoopReadingEvents(ctx context.Context, d *Device, l log.Logger) {
	for ctx.Err() == nil {
		e, err := d.ReadEvent()
		if err != nil {
			if ctx.Err() == nil {
				l.Errorf("Joystick read failed: %v", err)
			}
			return
		}
		g.Apply(e)
	}
}
