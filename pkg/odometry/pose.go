package odometry

import (
	"fmt"
	"math"

	"github.com/tigerbot-team/swervebot/pkg/angle"
)

// Pose2D is a position (metres) and heading in the frame fixed at the last reset.
type Pose2D struct {
	X, Y    float64
	Heading angle.PlusMinus180
}

func (p Pose2D) String() string {
	return fmt.Sprintf("(%.3f, %.3f) %.1fdeg", p.X, p.Y, p.Heading.Float())
}

// Twist2D is a small motion expressed in the vehicle's own frame at the start of the
// motion.  DTheta is in radians.
type Twist2D struct {
	DX, DY, DTheta float64
}

// Exp applies the twist to the pose, assuming the motion followed a constant-curvature
// arc rather than a straight line.
func (p Pose2D) Exp(t Twist2D) Pose2D {
	var s, c float64
	if math.Abs(t.DTheta) < 1e-9 {
		s = 1 - t.DTheta*t.DTheta/6
		c = 0.5 * t.DTheta
	} else {
		s = math.Sin(t.DTheta) / t.DTheta
		c = (1 - math.Cos(t.DTheta)) / t.DTheta
	}
	// Displacement in the starting vehicle frame.
	dx := t.DX*s - t.DY*c
	dy := t.DX*c + t.DY*s

	sin, cos := math.Sincos(p.Heading.Radians())
	return Pose2D{
		X:       p.X + dx*cos - dy*sin,
		Y:       p.Y + dx*sin + dy*cos,
		Heading: p.Heading.AddFloat(t.DTheta * 180 / math.Pi),
	}
}

// ModulePosition is the feedback from one module: cumulative distance driven (metres)
// and the steering angle (radians) as reported by the module.
type ModulePosition struct {
	Distance float64
	Angle    float64
}
