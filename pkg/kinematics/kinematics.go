// Package kinematics converts between chassis velocities and per-module swerve
// setpoints.
//
// Angles are in radians, anticlockwise positive, with x pointing forwards and y to
// the left of the vehicle.
package kinematics

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/tigerbot-team/swervebot/pkg/chassis"
)

// ChassisVelocity is the velocity of the whole vehicle.  The frame that VX and VY are
// expressed in is chosen by whoever consumes it.
type ChassisVelocity struct {
	VX, VY float64 // metres per second
	Omega  float64 // radians per second
}

func (v ChassisVelocity) String() string {
	return fmt.Sprintf("vx=%.3f vy=%.3f omega=%.3f", v.VX, v.VY, v.Omega)
}

// ModuleSetpoint is the speed and steering angle for one module.  Speed may be
// negative.
type ModuleSetpoint struct {
	Speed float64
	Angle float64
}

type Frame int

const (
	RobotRelative Frame = iota
	FieldRelative
)

func (f Frame) String() string {
	switch f {
	case RobotRelative:
		return "robot-relative"
	case FieldRelative:
		return "field-relative"
	default:
		return fmt.Sprintf("unknown(%d)", int(f))
	}
}

// FromFieldRelative converts a velocity expressed in the field frame into the frame of
// a vehicle whose heading (radians) is given.
func FromFieldRelative(v ChassisVelocity, heading float64) ChassisVelocity {
	sin, cos := math.Sincos(heading)
	return ChassisVelocity{
		VX:    v.VX*cos + v.VY*sin,
		VY:    -v.VX*sin + v.VY*cos,
		Omega: v.Omega,
	}
}

// Solver maps chassis velocities onto the four modules of a fixed geometry.
//
// The solver remembers the last module angles it produced so that a zero velocity
// command leaves the wheels where they are rather than snapping them to zero.  It
// is not safe for concurrent use.
type Solver struct {
	geometry chassis.Geometry
	maxSpeed float64

	// forward is the least-squares pseudo-inverse of the inverse kinematics matrix;
	// it maps the eight module velocity components back to (vx, vy, omega).
	forward *mat.Dense

	lastAngles [chassis.NumModules]float64
}

func NewSolver(geometry chassis.Geometry, maxSpeed float64) (*Solver, error) {
	if err := geometry.Validate(); err != nil {
		return nil, err
	}
	if !(maxSpeed > 0) || math.IsInf(maxSpeed, 0) {
		return nil, errors.Errorf("max module speed must be positive and finite, not %v", maxSpeed)
	}

	inverse := mat.NewDense(2*chassis.NumModules, 3, nil)
	for i, m := range geometry {
		inverse.Set(2*i, 0, 1)
		inverse.Set(2*i, 2, -m.Y)
		inverse.Set(2*i+1, 1, 1)
		inverse.Set(2*i+1, 2, m.X)
	}

	var normal, normalInv mat.Dense
	normal.Mul(inverse.T(), inverse)
	if err := normalInv.Inverse(&normal); err != nil {
		return nil, errors.Wrapf(chassis.ErrDegenerate, "forward kinematics not solvable: %v", err)
	}
	forward := &mat.Dense{}
	forward.Mul(&normalInv, inverse.T())

	return &Solver{
		geometry: geometry,
		maxSpeed: maxSpeed,
		forward:  forward,
	}, nil
}

func (s *Solver) Geometry() chassis.Geometry {
	return s.geometry
}

func (s *Solver) MaxSpeed() float64 {
	return s.maxSpeed
}

// Solve converts a chassis velocity into desaturated module setpoints, ready to be
// sent to the modules.  heading is only used for FieldRelative velocities.
func (s *Solver) Solve(v ChassisVelocity, frame Frame, heading float64) [chassis.NumModules]ModuleSetpoint {
	if frame == FieldRelative {
		v = FromFieldRelative(v, heading)
	}
	states := s.ChassisSetpoints(v)
	return s.ToModuleFrame(Desaturate(states, s.maxSpeed))
}

// ChassisSetpoints does the raw rigid-body inverse kinematics: each module's velocity
// is the chassis velocity plus omega x r.  Angles are in the chassis frame and
// speeds are not limited.
func (s *Solver) ChassisSetpoints(v ChassisVelocity) [chassis.NumModules]ModuleSetpoint {
	var states [chassis.NumModules]ModuleSetpoint
	if v.VX == 0 && v.VY == 0 && v.Omega == 0 {
		for i := range states {
			states[i].Angle = s.lastAngles[i]
		}
		return states
	}
	for i, m := range s.geometry {
		mv := r2.Add(r2.Vec{X: v.VX, Y: v.VY}, r2.Vec{X: -v.Omega * m.Y, Y: v.Omega * m.X})
		states[i] = ModuleSetpoint{
			Speed: r2.Norm(mv),
			Angle: math.Atan2(mv.Y, mv.X),
		}
		s.lastAngles[i] = states[i].Angle
	}
	return states
}

// Hold records chassis-frame states sent without going through ChassisSetpoints, so
// that a following zero velocity keeps the wheels where those states put them.
func (s *Solver) Hold(states [chassis.NumModules]ModuleSetpoint) {
	for i, st := range states {
		s.lastAngles[i] = st.Angle
	}
}

// ToModuleFrame adds each module's calibration offset to the chassis-frame angles.
func (s *Solver) ToModuleFrame(states [chassis.NumModules]ModuleSetpoint) [chassis.NumModules]ModuleSetpoint {
	for i := range states {
		states[i].Angle += s.geometry[i].AngularOffset
	}
	return states
}

// FromModuleFrame converts an angle reported by module i into the chassis frame.
func (s *Solver) FromModuleFrame(i int, moduleAngle float64) float64 {
	return moduleAngle - s.geometry[i].AngularOffset
}

// ToChassisVelocity is the forward kinematics: the least-squares chassis velocity that
// best explains the given chassis-frame module states.  Passing per-module distance
// deltas in place of speeds gives the chassis displacement instead.
func (s *Solver) ToChassisVelocity(states [chassis.NumModules]ModuleSetpoint) ChassisVelocity {
	components := mat.NewVecDense(2*chassis.NumModules, nil)
	for i, st := range states {
		sin, cos := math.Sincos(st.Angle)
		components.SetVec(2*i, st.Speed*cos)
		components.SetVec(2*i+1, st.Speed*sin)
	}
	var out mat.VecDense
	out.MulVec(s.forward, components)
	return ChassisVelocity{VX: out.AtVec(0), VY: out.AtVec(1), Omega: out.AtVec(2)}
}

// Desaturate scales all module speeds by the same factor so that the fastest module is
// at maxSpeed, preserving the ratios between modules.  It is a no-op when no module
// exceeds maxSpeed.
func Desaturate(states [chassis.NumModules]ModuleSetpoint, maxSpeed float64) [chassis.NumModules]ModuleSetpoint {
	var fastest float64
	for _, st := range states {
		fastest = math.Max(fastest, math.Abs(st.Speed))
	}
	if fastest <= maxSpeed {
		return states
	}
	scale := maxSpeed / fastest
	for i := range states {
		states[i].Speed *= scale
	}
	return states
}

// LockFormation returns the stationary "X" pattern: every wheel at zero speed and
// turned 45 degrees towards the centre line so the vehicle resists being pushed.
// The angles are in the chassis frame.
func LockFormation() [chassis.NumModules]ModuleSetpoint {
	const quarter = math.Pi / 4
	return [chassis.NumModules]ModuleSetpoint{
		chassis.FrontLeft:  {Speed: 0, Angle: quarter},
		chassis.FrontRight: {Speed: 0, Angle: -quarter},
		chassis.RearLeft:   {Speed: 0, Angle: -quarter},
		chassis.RearRight:  {Speed: 0, Angle: quarter},
	}
}
