package chassis

import (
	"math"
	"testing"

	"github.com/pkg/errors"
)

func TestRectangularLayout(t *testing.T) {
	g := Rectangular(0.6, 0.4, [NumModules]float64{})
	if g[FrontLeft].X != 0.3 || g[FrontLeft].Y != 0.2 {
		t.Fatalf("front-left at %v", g[FrontLeft])
	}
	if g[FrontRight].X != 0.3 || g[FrontRight].Y != -0.2 {
		t.Fatalf("front-right at %v", g[FrontRight])
	}
	if g[RearLeft].X != -0.3 || g[RearLeft].Y != 0.2 {
		t.Fatalf("rear-left at %v", g[RearLeft])
	}
	if g[RearRight].X != -0.3 || g[RearRight].Y != -0.2 {
		t.Fatalf("rear-right at %v", g[RearRight])
	}
	if err := g.Validate(); err != nil {
		t.Fatalf("valid geometry rejected: %v", err)
	}
	if r := g.Radius(); math.Abs(r-math.Hypot(0.3, 0.2)) > 1e-12 {
		t.Fatalf("radius %v", r)
	}
}

func TestDefaultOffsets(t *testing.T) {
	g := Default()
	for i, m := range g {
		if m.AngularOffset != DefaultAngularOffsets[i] {
			t.Errorf("%s offset %v", ModuleNames[i], m.AngularOffset)
		}
	}
}

func TestValidateRejectsDegenerate(t *testing.T) {
	g := Rectangular(0, 0, [NumModules]float64{})
	err := g.Validate()
	if errors.Cause(err) != ErrDegenerate {
		t.Fatalf("expected ErrDegenerate, got %v", err)
	}

	g = Default()
	g[RearRight].Y = math.NaN()
	if errors.Cause(g.Validate()) != ErrDegenerate {
		t.Fatalf("NaN position should be rejected")
	}
}
