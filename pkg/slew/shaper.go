package slew

import (
	"time"

	"github.com/tigerbot-team/swervebot/pkg/kinematics"
)

// Shaper owns a State and applies Step to it on each call.  Like the rest of the
// control loop it has a single writer and does no locking.
type Shaper struct {
	params Params
	state  State
}

func NewShaper(params Params, now time.Time) *Shaper {
	return &Shaper{
		params: params,
		state:  State{LastTimestamp: now},
	}
}

// Shape rate-limits the request (xSpeed, ySpeed, rot in [-1, 1]) over dt seconds and
// returns the resulting chassis velocity.
func (s *Shaper) Shape(xSpeed, ySpeed, rot, dt, maxAngularSpeed, maxLinearSpeed float64) kinematics.ChassisVelocity {
	s.state = Step(s.state, Input{X: xSpeed, Y: ySpeed, Rot: rot}, dt, s.params)
	return s.state.Velocity(maxAngularSpeed, maxLinearSpeed)
}

// ShapeAt is Shape with dt measured since the previous ShapeAt call.
func (s *Shaper) ShapeAt(now time.Time, xSpeed, ySpeed, rot, maxAngularSpeed, maxLinearSpeed float64) kinematics.ChassisVelocity {
	dt := now.Sub(s.state.LastTimestamp).Seconds()
	s.state.LastTimestamp = now
	return s.Shape(xSpeed, ySpeed, rot, dt, maxAngularSpeed, maxLinearSpeed)
}

func (s *Shaper) State() State {
	return s.state
}

func (s *Shaper) Params() Params {
	return s.params
}

// Reset brings the shaper to rest, as if the vehicle had been stationary.
func (s *Shaper) Reset(now time.Time) {
	s.state = State{LastTimestamp: now}
}
