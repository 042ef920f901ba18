package slew

import (
	"math"
	"testing"
	"time"

	"github.com/tigerbot-team/swervebot/pkg/kinematics"
)

const (
	eps = 1e-9
	dt  = 0.02
)

func converge(t *testing.T, s State, in Input, p Params, ticks int) State {
	t.Helper()
	for i := 0; i < ticks; i++ {
		s = Step(s, in, dt, p)
	}
	return s
}

func TestConvergesForward(t *testing.T) {
	p := DefaultParams()
	var s State
	prev := s.Magnitude
	for i := 0; i < 200; i++ {
		s = Step(s, Input{X: 1}, dt, p)
		if s.Magnitude < prev-eps {
			t.Fatalf("tick %d: magnitude went down from %v to %v", i, prev, s.Magnitude)
		}
		if s.Magnitude-prev > p.MagnitudeSlewRate*dt+eps {
			t.Fatalf("tick %d: magnitude jumped from %v to %v", i, prev, s.Magnitude)
		}
		if s.Magnitude > 1+eps {
			t.Fatalf("tick %d: magnitude %v overshot input", i, s.Magnitude)
		}
		prev = s.Magnitude
	}
	if math.Abs(s.Magnitude-1) > eps {
		t.Errorf("magnitude %v, expected 1", s.Magnitude)
	}
	if math.Abs(s.Direction) > eps {
		t.Errorf("direction %v, expected 0", s.Direction)
	}
}

func TestPartialInputConverges(t *testing.T) {
	p := DefaultParams()
	s := converge(t, State{}, Input{X: 0.3, Y: 0.4}, p, 200)
	if math.Abs(s.Magnitude-0.5) > eps {
		t.Errorf("magnitude %v, expected 0.5", s.Magnitude)
	}
	if math.Abs(s.Direction-math.Atan2(0.4, 0.3)) > eps {
		t.Errorf("direction %v", s.Direction)
	}
}

func TestIdempotentAtZeroDt(t *testing.T) {
	p := DefaultParams()
	in := Input{X: 0.2, Y: -0.7, Rot: 0.4}
	s := converge(t, State{}, in, p, 10)
	for i := 0; i < 5; i++ {
		next := Step(s, in, 0, p)
		if next != s {
			t.Fatalf("state changed at dt=0: %+v -> %+v", s, next)
		}
	}
}

func TestHardReversalBrakesFirst(t *testing.T) {
	p := DefaultParams()
	s := converge(t, State{}, Input{X: 1}, p, 200)

	prevVX := s.Velocity(1, 1).VX
	sawDecay := false
	flipped := false
	for i := 0; i < 200; i++ {
		s = Step(s, Input{X: -1}, dt, p)
		vx := s.Velocity(1, 1).VX
		if prevVX > eps && vx < -eps {
			t.Fatalf("tick %d: velocity flipped from %v to %v without stopping", i, prevVX, vx)
		}
		if !flipped && math.Abs(s.Direction) < eps && s.Magnitude < 1 {
			sawDecay = true
		}
		if math.Abs(s.Direction-math.Pi) < eps {
			flipped = true
		}
		prevVX = vx
	}
	if !sawDecay {
		t.Errorf("never saw magnitude decay before the flip")
	}
	if !flipped {
		t.Fatalf("direction never flipped")
	}
	if math.Abs(s.Magnitude-1) > eps || math.Abs(prevVX+1) > 1e-6 {
		t.Errorf("expected full reverse, got %+v vx=%v", s, prevVX)
	}
}

func TestReversalFromRestIsImmediate(t *testing.T) {
	p := DefaultParams()
	s := Step(State{}, Input{X: -1}, dt, p)
	if math.Abs(s.Direction-math.Pi) > eps {
		t.Errorf("direction %v, expected pi", s.Direction)
	}
	if math.Abs(s.Magnitude-p.MagnitudeSlewRate*dt) > eps {
		t.Errorf("magnitude %v", s.Magnitude)
	}
}

func TestAmbiguousBandSlowsDown(t *testing.T) {
	p := DefaultParams()
	s := State{Direction: 0, Magnitude: 0.5}
	s = Step(s, Input{Y: 1}, dt, p)

	expectedDir := math.Abs(p.DirectionSlewRate/0.5) * dt
	if math.Abs(s.Direction-expectedDir) > eps {
		t.Errorf("direction %v, expected %v", s.Direction, expectedDir)
	}
	if math.Abs(s.Magnitude-(0.5-p.MagnitudeSlewRate*dt)) > eps {
		t.Errorf("magnitude %v should ramp towards zero", s.Magnitude)
	}
}

func TestDirectionRateScalesWithSpeed(t *testing.T) {
	p := DefaultParams()
	target := 0.3 * math.Pi
	in := Input{X: math.Cos(target), Y: math.Sin(target)}

	fast := Step(State{Magnitude: 1}, in, dt, p)
	if math.Abs(fast.Direction-p.DirectionSlewRate*dt) > eps {
		t.Errorf("at full speed direction moved to %v", fast.Direction)
	}
	slow := Step(State{Magnitude: 0.25}, in, dt, p)
	if math.Abs(slow.Direction-4*p.DirectionSlewRate*dt) > eps {
		t.Errorf("at quarter speed direction moved to %v", slow.Direction)
	}
}

func TestDirectionWrapsAcrossSeam(t *testing.T) {
	p := DefaultParams()
	s := State{Direction: 6.2, Magnitude: 1}
	s = Step(s, Input{X: math.Cos(0.1), Y: math.Sin(0.1)}, 0.1, p)
	expected := 6.2 + 0.12 - 2*math.Pi
	if math.Abs(s.Direction-expected) > 1e-9 {
		t.Errorf("direction %v, expected %v", s.Direction, expected)
	}
}

func TestRotationRamp(t *testing.T) {
	p := DefaultParams()
	s := Step(State{}, Input{Rot: 1}, 0.1, p)
	if math.Abs(s.Rotation-0.2) > eps {
		t.Errorf("rotation %v, expected 0.2", s.Rotation)
	}
	s = converge(t, s, Input{Rot: -1}, p, 200)
	if s.Rotation != -1 {
		t.Errorf("rotation %v, expected -1", s.Rotation)
	}
}

func TestInputsClamped(t *testing.T) {
	p := DefaultParams()
	s := converge(t, State{}, Input{X: 5, Y: 5, Rot: -9}, p, 200)
	if s.Magnitude > 1 {
		t.Errorf("magnitude %v above 1", s.Magnitude)
	}
	if s.Rotation != -1 {
		t.Errorf("rotation %v", s.Rotation)
	}
	bad := Step(s, Input{X: math.NaN(), Rot: math.NaN()}, math.NaN(), p)
	if bad != s {
		t.Errorf("NaN dt should not move the state: %+v", bad)
	}
}

func TestShaperScalesAndMeasuresDt(t *testing.T) {
	start := time.Unix(1000, 0)
	sh := NewShaper(DefaultParams(), start)

	now := start
	var v kinematics.ChassisVelocity
	for i := 0; i < 100; i++ {
		now = now.Add(20 * time.Millisecond)
		v = sh.ShapeAt(now, 0, 1, 1, 2*math.Pi, 4.8)
	}
	if math.Abs(v.VY-4.8) > 1e-6 || math.Abs(v.VX) > 1e-6 {
		t.Errorf("expected vy=4.8, got %v", v)
	}
	if math.Abs(v.Omega-2*math.Pi) > 1e-6 {
		t.Errorf("omega %v", v.Omega)
	}
	if !sh.State().LastTimestamp.Equal(now) {
		t.Errorf("timestamp not recorded")
	}

	sh.Reset(now)
	if st := sh.State(); st.Magnitude != 0 || st.Rotation != 0 {
		t.Errorf("reset left %+v", st)
	}
}

func TestLimiter(t *testing.T) {
	l := Limiter{Rate: 2}
	if v := l.Calculate(0, 1, 0.1); math.Abs(v-0.2) > eps {
		t.Errorf("got %v", v)
	}
	if v := l.Calculate(0.95, 1, 0.1); v != 1 {
		t.Errorf("should land exactly on target, got %v", v)
	}
	if v := l.Calculate(0, -1, 0.1); math.Abs(v+0.2) > eps {
		t.Errorf("got %v", v)
	}
}
