package swervemodule

import (
	"math"

	"github.com/tigerbot-team/swervebot/pkg/angle"
	"github.com/tigerbot-team/swervebot/pkg/kinematics"
)

// Optimize returns the setpoint that reaches the desired wheel velocity with the least
// steering: if the desired angle is more than 90 degrees from where the wheel points,
// steer to the opposite angle and drive backwards.  The result's angle is in (-pi, pi].
func Optimize(desired kinematics.ModuleSetpoint, currentAngle float64) kinematics.ModuleSetpoint {
	target := angle.WrapPlusMinusPi(desired.Angle)
	if angle.Difference(target, currentAngle) > math.Pi/2 {
		return kinematics.ModuleSetpoint{
			Speed: -desired.Speed,
			Angle: angle.WrapPlusMinusPi(target + math.Pi),
		}
	}
	return kinematics.ModuleSetpoint{Speed: desired.Speed, Angle: target}
}
