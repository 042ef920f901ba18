package slew

import (
	"math"
	"time"

	"github.com/tigerbot-team/swervebot/pkg/angle"
	"github.com/tigerbot-team/swervebot/pkg/kinematics"
)

const (
	// Direction slew rate used when stationary; large enough that the first step
	// always reaches the requested direction.
	stationaryDirectionSlewRate = 500.0

	// Below this magnitude a requested reversal is allowed to flip direction.
	magnitudeEpsilon = 1e-4

	sameDirectionThreshold = 0.45 * math.Pi
	reversalThreshold      = 0.85 * math.Pi
)

// Params are the acceleration limits applied to joystick-style input.
type Params struct {
	// DirectionSlewRate is the turn rate of the translation direction at full
	// magnitude, in radians per second.  At lower magnitudes the direction is
	// allowed to change proportionally faster.
	DirectionSlewRate float64
	// MagnitudeSlewRate limits the rate of change of translation magnitude, in
	// units of full scale per second.
	MagnitudeSlewRate float64
	// RotationalSlewRate limits the rate of change of the rotation input, in units
	// of full scale per second.
	RotationalSlewRate float64
}

func DefaultParams() Params {
	return Params{
		DirectionSlewRate:  1.2,
		MagnitudeSlewRate:  1.8,
		RotationalSlewRate: 2.0,
	}
}

// State is the memory carried between ticks.  Direction is in [0, 2pi), Magnitude in
// [0, 1] and Rotation in [-1, 1].
type State struct {
	Direction     float64
	Magnitude     float64
	Rotation      float64
	LastTimestamp time.Time
}

// Input is a raw request, each component normalised to [-1, 1].
type Input struct {
	X, Y, Rot float64
}

// Limiter bounds the rate of change of a value.
type Limiter struct {
	Rate float64 // units per second
}

// Calculate moves current towards input by no more than Rate*dt.
func (l Limiter) Calculate(current, input, dt float64) float64 {
	return angle.StepTowards(current, input, l.Rate*dt)
}

// Step advances the state by dt seconds towards the requested input.
func Step(s State, in Input, dt float64, p Params) State {
	if !(dt > 0) {
		dt = 0
	}
	x, y, rot := clamp(in.X), clamp(in.Y), clamp(in.Rot)

	inputDirection := math.Atan2(y, x)
	inputMagnitude := math.Min(math.Hypot(x, y), 1)

	directionSlewRate := stationaryDirectionSlewRate
	if s.Magnitude != 0 {
		directionSlewRate = math.Abs(p.DirectionSlewRate / s.Magnitude)
	}
	magLimiter := Limiter{Rate: p.MagnitudeSlewRate}

	angleDiff := angle.Difference(inputDirection, s.Direction)
	switch {
	case angleDiff < sameDirectionThreshold:
		s.Direction = angle.StepTowardsCircular(s.Direction, inputDirection, directionSlewRate*dt)
		s.Magnitude = magLimiter.Calculate(s.Magnitude, inputMagnitude, dt)
	case angleDiff > reversalThreshold:
		if s.Magnitude > magnitudeEpsilon {
			// Brake before turning round; direction is held.
			s.Magnitude = magLimiter.Calculate(s.Magnitude, 0, dt)
		} else {
			s.Direction = angle.WrapRadians(s.Direction + math.Pi)
			s.Magnitude = magLimiter.Calculate(s.Magnitude, inputMagnitude, dt)
		}
	default:
		// Part way round: keep turning but slow down rather than commit.
		s.Direction = angle.StepTowardsCircular(s.Direction, inputDirection, directionSlewRate*dt)
		s.Magnitude = magLimiter.Calculate(s.Magnitude, 0, dt)
	}

	s.Rotation = Limiter{Rate: p.RotationalSlewRate}.Calculate(s.Rotation, rot, dt)
	return s
}

// Velocity scales the state up to a chassis velocity.
func (s State) Velocity(maxAngularSpeed, maxLinearSpeed float64) kinematics.ChassisVelocity {
	sin, cos := math.Sincos(s.Direction)
	return kinematics.ChassisVelocity{
		VX:    s.Magnitude * cos * maxLinearSpeed,
		VY:    s.Magnitude * sin * maxLinearSpeed,
		Omega: s.Rotation * maxAngularSpeed,
	}
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-1, math.Min(1, v))
}
