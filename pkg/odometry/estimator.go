// Package odometry dead-reckons the vehicle pose from module feedback.  Position comes
// from the wheels; heading is taken straight from the heading source since wheel-derived
// rotation drifts badly once the wheels slip.
package odometry

import (
	"github.com/tigerbot-team/swervebot/pkg/angle"
	"github.com/tigerbot-team/swervebot/pkg/chassis"
	"github.com/tigerbot-team/swervebot/pkg/kinematics"
)

type Positions = [chassis.NumModules]ModulePosition

// Estimator integrates module distance deltas into a pose.  It has a single writer, the
// control tick.
type Estimator struct {
	solver *kinematics.Solver

	pose Pose2D
	// headingOffset converts a heading source reading into the pose frame.
	headingOffset   angle.PlusMinus180
	previousHeading angle.PlusMinus180
	previous        Positions
}

func NewEstimator(solver *kinematics.Solver, heading angle.PlusMinus180, positions Positions, initial Pose2D) *Estimator {
	e := &Estimator{solver: solver}
	e.Reset(initial, heading, positions)
	return e
}

// Reset re-anchors the estimate so that the vehicle is at pose now, given the current
// heading source reading and module positions.
func (e *Estimator) Reset(pose Pose2D, heading angle.PlusMinus180, positions Positions) {
	e.pose = pose
	e.headingOffset = pose.Heading.Sub(heading)
	e.previousHeading = pose.Heading
	e.previous = positions
}

// Update folds in the motion since the previous call and returns the new pose.
func (e *Estimator) Update(heading angle.PlusMinus180, positions Positions) Pose2D {
	var deltas [chassis.NumModules]kinematics.ModuleSetpoint
	for i, p := range positions {
		deltas[i] = kinematics.ModuleSetpoint{
			Speed: p.Distance - e.previous[i].Distance,
			Angle: e.solver.FromModuleFrame(i, p.Angle),
		}
	}
	displacement := e.solver.ToChassisVelocity(deltas)

	newHeading := heading.Add(e.headingOffset)
	twist := Twist2D{
		DX:     displacement.VX,
		DY:     displacement.VY,
		DTheta: newHeading.Sub(e.previousHeading).Radians(),
	}
	pose := e.pose.Exp(twist)
	pose.Heading = newHeading

	e.pose = pose
	e.previousHeading = newHeading
	e.previous = positions
	return pose
}

func (e *Estimator) Pose() Pose2D {
	return e.pose
}
