package chassis

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r2"
)

const (
	FrontLeft = iota
	FrontRight
	RearLeft
	RearRight

	NumModules
)

var ModuleNames = [NumModules]string{"front-left", "front-right", "rear-left", "rear-right"}

var ErrDegenerate = errors.New("degenerate module geometry")

// Defaults for a MAXSwerve-style chassis: 26.5in square wheel base, modules mounted
// with their zero angle pointing outwards.
const (
	InchesToMetres = 0.0254

	DefaultWheelBase  = 26.5 * InchesToMetres
	DefaultTrackWidth = 26.5 * InchesToMetres
)

var DefaultAngularOffsets = [NumModules]float64{-math.Pi / 2, 0, math.Pi, math.Pi / 2}

// Module is the fixed mounting of one swerve module: its position relative to the
// centre of the vehicle (x forwards, y to the left, metres) and the angle that the
// module reports when its wheel points straight ahead.
type Module struct {
	X, Y          float64
	AngularOffset float64
}

func (m Module) Position() r2.Vec {
	return r2.Vec{X: m.X, Y: m.Y}
}

// Geometry holds the four modules in FrontLeft, FrontRight, RearLeft, RearRight order.
type Geometry [NumModules]Module

// Rectangular lays the modules out at the corners of a wheelBase x trackWidth rectangle.
func Rectangular(wheelBase, trackWidth float64, offsets [NumModules]float64) Geometry {
	halfBase := wheelBase / 2
	halfTrack := trackWidth / 2
	return Geometry{
		FrontLeft:  {X: halfBase, Y: halfTrack, AngularOffset: offsets[FrontLeft]},
		FrontRight: {X: halfBase, Y: -halfTrack, AngularOffset: offsets[FrontRight]},
		RearLeft:   {X: -halfBase, Y: halfTrack, AngularOffset: offsets[RearLeft]},
		RearRight:  {X: -halfBase, Y: -halfTrack, AngularOffset: offsets[RearRight]},
	}
}

func Default() Geometry {
	return Rectangular(DefaultWheelBase, DefaultTrackWidth, DefaultAngularOffsets)
}

// Validate checks for layouts that can't be driven: non-finite values or two modules
// sharing a position.  Collinear layouts are caught later by the kinematics solver.
func (g Geometry) Validate() error {
	for i, m := range g {
		for _, v := range []float64{m.X, m.Y, m.AngularOffset} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.Wrapf(ErrDegenerate, "%s module has non-finite value", ModuleNames[i])
			}
		}
		for j := i + 1; j < NumModules; j++ {
			if r2.Norm(r2.Sub(m.Position(), g[j].Position())) < 1e-6 {
				return errors.Wrapf(ErrDegenerate, "%s and %s modules share a position",
					ModuleNames[i], ModuleNames[j])
			}
		}
	}
	return nil
}

// Radius returns the distance from the centre to the furthest module.
func (g Geometry) Radius() float64 {
	var r float64
	for _, m := range g {
		r = math.Max(r, r2.Norm(m.Position()))
	}
	return r
}

// TurningCircle is the distance travelled by the furthest module in one full
// rotation in place.
func (g Geometry) TurningCircle() float64 {
	return 2 * math.Pi * g.Radius()
}
