// Package drivetrain is the control core of the vehicle.  Each drive call shapes the
// request, solves it into module setpoints and sends them to the modules; Tick updates
// the pose estimate and publishes telemetry.
//
// A Drivetrain has a single writer: all calls must come from the control loop.
package drivetrain

import (
	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/tigerbot-team/swervebot/pkg/angle"
	"github.com/tigerbot-team/swervebot/pkg/chassis"
	"github.com/tigerbot-team/swervebot/pkg/kinematics"
	"github.com/tigerbot-team/swervebot/pkg/log"
	"github.com/tigerbot-team/swervebot/pkg/odometry"
	"github.com/tigerbot-team/swervebot/pkg/slew"
	"github.com/tigerbot-team/swervebot/pkg/telemetry"
)

const (
	TelemRawHeading = "heading/raw"
	TelemHeading    = "heading"
	TelemTurnRate   = "heading/rate"
	TelemInputX     = "input/x"
	TelemInputY     = "input/y"
	TelemInputRot   = "input/rot"
	TelemVelocityX  = "velocity/x"
	TelemVelocityY  = "velocity/y"
	TelemOmega      = "velocity/omega"
	TelemPoseX      = "pose/x"
	TelemPoseY      = "pose/y"
	TelemPoseHead   = "pose/heading"
	TelemWaiting    = "auto/waiting"
)

type Config struct {
	Geometry       chassis.Geometry
	MaxModuleSpeed float64
	Slew           slew.Params
	// HeadingReversed flips the sign of the heading source.
	HeadingReversed bool
}

type Option func(*Drivetrain)

func WithLogger(l log.Logger) Option {
	return func(d *Drivetrain) { d.log = l }
}

func WithClock(c clock.Clock) Option {
	return func(d *Drivetrain) { d.clock = c }
}

func WithTelemetry(s telemetry.Sink) Option {
	return func(d *Drivetrain) { d.telemetry = s }
}

type Drivetrain struct {
	log       log.Logger
	clock     clock.Clock
	telemetry telemetry.Sink

	headingSource HeadingSource
	headingSign   float64
	modules       [chassis.NumModules]Module

	solver    *kinematics.Solver
	shaper    *slew.Shaper
	estimator *odometry.Estimator

	lastInput     slew.Input
	lastVelocity  kinematics.ChassisVelocity
	lastSetpoints [chassis.NumModules]kinematics.ModuleSetpoint
	waiting       bool
}

func New(cfg Config, heading HeadingSource, modules [chassis.NumModules]Module, opts ...Option) (*Drivetrain, error) {
	if heading == nil {
		return nil, errors.New("heading source is required")
	}
	for i, m := range modules {
		if m == nil {
			return nil, errors.Errorf("%s module is missing", chassis.ModuleNames[i])
		}
	}
	solver, err := kinematics.NewSolver(cfg.Geometry, cfg.MaxModuleSpeed)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create kinematics solver")
	}

	d := &Drivetrain{
		log:           log.Discard(),
		clock:         clock.New(),
		telemetry:     telemetry.Discard{},
		headingSource: heading,
		headingSign:   1,
		modules:       modules,
		solver:        solver,
	}
	if cfg.HeadingReversed {
		d.headingSign = -1
	}
	for _, o := range opts {
		o(d)
	}

	d.shaper = slew.NewShaper(cfg.Slew, d.clock.Now())
	d.estimator = odometry.NewEstimator(solver, d.Heading(), d.modulePositions(), odometry.Pose2D{})
	d.log.Infof("Drivetrain created: max module speed %.2f, slew %+v, heading reversed %v",
		cfg.MaxModuleSpeed, cfg.Slew, cfg.HeadingReversed)
	return d, nil
}

// DriveFieldRelative drives with x forwards and y left relative to the field, where
// "forwards" is the direction the vehicle faced when the heading was last zeroed.
// x, y and rot are in [-1, 1] and are scaled by the given maximum speeds after shaping.
func (d *Drivetrain) DriveFieldRelative(x, y, rot, maxAngularSpeed, maxLinearSpeed float64) {
	d.drive(kinematics.FieldRelative, x, y, rot, maxAngularSpeed, maxLinearSpeed)
}

// DriveRobotRelative is DriveFieldRelative with x and y relative to the vehicle itself.
func (d *Drivetrain) DriveRobotRelative(x, y, rot, maxAngularSpeed, maxLinearSpeed float64) {
	d.drive(kinematics.RobotRelative, x, y, rot, maxAngularSpeed, maxLinearSpeed)
}

func (d *Drivetrain) drive(frame kinematics.Frame, x, y, rot, maxAngularSpeed, maxLinearSpeed float64) {
	d.lastInput = slew.Input{X: x, Y: y, Rot: rot}
	v := d.shaper.ShapeAt(d.clock.Now(), x, y, rot, maxAngularSpeed, maxLinearSpeed)
	d.lastVelocity = v
	d.send(d.solver.Solve(v, frame, d.Heading().Radians()))
}

// LockFormation stops the vehicle with its wheels in an X so that it's hard to push.
// The shaper is reset so that driving afterwards ramps up from rest.
func (d *Drivetrain) LockFormation() {
	d.shaper.Reset(d.clock.Now())
	d.lastVelocity = kinematics.ChassisVelocity{}
	lock := kinematics.LockFormation()
	d.solver.Hold(lock)
	d.send(d.solver.ToModuleFrame(lock))
}

// SetModuleStates sends the given chassis-frame setpoints straight to the modules,
// bypassing the shaper.  They are still desaturated.
func (d *Drivetrain) SetModuleStates(states [chassis.NumModules]kinematics.ModuleSetpoint) {
	limited := kinematics.Desaturate(states, d.solver.MaxSpeed())
	if limited != states {
		d.log.Debugf("Desaturated module states %v to %v", states, limited)
	}
	d.lastVelocity = d.solver.ToChassisVelocity(limited)
	d.solver.Hold(limited)
	d.send(d.solver.ToModuleFrame(limited))
}

func (d *Drivetrain) send(states [chassis.NumModules]kinematics.ModuleSetpoint) {
	for i, m := range d.modules {
		m.SetDesiredState(states[i])
	}
	d.lastSetpoints = states
}

// Setpoints returns the module-frame setpoints most recently sent.
func (d *Drivetrain) Setpoints() [chassis.NumModules]kinematics.ModuleSetpoint {
	return d.lastSetpoints
}

func (d *Drivetrain) StopModules() {
	for _, m := range d.modules {
		m.Stop()
	}
	d.shaper.Reset(d.clock.Now())
	d.lastVelocity = kinematics.ChassisVelocity{}
}

// ResetEncoders zeroes the module distance counters.  The pose estimate is re-anchored
// so that it doesn't jump.
func (d *Drivetrain) ResetEncoders() {
	for _, m := range d.modules {
		m.ResetEncoders()
	}
	d.estimator.Reset(d.estimator.Pose(), d.Heading(), d.modulePositions())
}

func (d *Drivetrain) Pose() odometry.Pose2D {
	return d.estimator.Pose()
}

func (d *Drivetrain) ResetPose(pose odometry.Pose2D) {
	d.log.Infof("Resetting pose to %v", pose)
	d.estimator.Reset(pose, d.Heading(), d.modulePositions())
}

// Heading returns the heading source reading with the configured sign applied.
func (d *Drivetrain) Heading() angle.PlusMinus180 {
	return angle.FromFloat(d.headingSource.Heading() * d.headingSign)
}

// TurnRate returns degrees per second, anticlockwise positive.
func (d *Drivetrain) TurnRate() float64 {
	return d.headingSource.Rate() * d.headingSign
}

// ZeroHeading makes the current direction "forwards" for field-relative driving.  The
// pose keeps its position and takes on the new zero heading.
func (d *Drivetrain) ZeroHeading() {
	d.log.Infof("Zeroing heading (was %.1f)", d.Heading().Float())
	d.headingSource.Reset()
	pose := d.estimator.Pose()
	pose.Heading = angle.PlusMinus180{}
	d.estimator.Reset(pose, d.Heading(), d.modulePositions())
}

func (d *Drivetrain) CalibrateHeading() error {
	d.log.Infof("Calibrating heading source")
	return errors.Wrap(d.headingSource.Calibrate(), "heading calibration failed")
}

// SetWaiting records whether an autonomous sequence is waiting to go.  It's published
// for the sequencer's benefit; the drivetrain itself ignores it.
func (d *Drivetrain) SetWaiting(waiting bool) {
	d.waiting = waiting
}

func (d *Drivetrain) Waiting() bool {
	return d.waiting
}

// Tick is the periodic update: it folds the latest module positions and heading into
// the pose estimate and publishes telemetry.
func (d *Drivetrain) Tick() {
	heading := d.Heading()
	pose := d.estimator.Update(heading, d.modulePositions())

	t := d.telemetry
	t.PutNumber(TelemRawHeading, d.headingSource.Heading())
	t.PutNumber(TelemHeading, heading.Float())
	t.PutNumber(TelemTurnRate, d.TurnRate())
	t.PutNumber(TelemInputX, d.lastInput.X)
	t.PutNumber(TelemInputY, d.lastInput.Y)
	t.PutNumber(TelemInputRot, d.lastInput.Rot)
	t.PutNumber(TelemVelocityX, d.lastVelocity.VX)
	t.PutNumber(TelemVelocityY, d.lastVelocity.VY)
	t.PutNumber(TelemOmega, d.lastVelocity.Omega)
	t.PutNumber(TelemPoseX, pose.X)
	t.PutNumber(TelemPoseY, pose.Y)
	t.PutNumber(TelemPoseHead, pose.Heading.Float())
	t.PutBool(TelemWaiting, d.waiting)
	telemetry.Flush(t)
}

func (d *Drivetrain) modulePositions() odometry.Positions {
	var p odometry.Positions
	for i, m := range d.modules {
		p[i] = m.Position()
	}
	return p
}
