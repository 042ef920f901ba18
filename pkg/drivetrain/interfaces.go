package drivetrain

import (
	"github.com/tigerbot-team/swervebot/pkg/kinematics"
	"github.com/tigerbot-team/swervebot/pkg/odometry"
)

// HeadingSource supplies the absolute heading of the vehicle.
type HeadingSource interface {
	// Heading returns degrees, anticlockwise positive.  The value need not be wrapped.
	Heading() float64
	// Rate returns the turn rate in degrees per second.
	Rate() float64
	// Reset makes the current heading read as zero.
	Reset()
	Calibrate() error
}

// Module is one swerve module.  The module is expected to optimise the setpoint itself
// so that it never turns more than 90 degrees to reach it.
type Module interface {
	// SetDesiredState takes a setpoint whose angle is in the module's own frame.
	SetDesiredState(state kinematics.ModuleSetpoint)
	Position() odometry.ModulePosition
	ResetEncoders()
	Stop()
}
