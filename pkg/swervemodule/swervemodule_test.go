package swervemodule

import (
	"context"
	"math"
	"testing"

	"github.com/go-daq/canbus"
	"github.com/pkg/errors"

	"github.com/tigerbot-team/swervebot/pkg/kinematics"
	"github.com/tigerbot-team/swervebot/pkg/log"
)

const eps = 1e-9

func TestOptimize(t *testing.T) {
	for _, tc := range []struct {
		desired     kinematics.ModuleSetpoint
		current     float64
		expectSpeed float64
		expectAngle float64
	}{
		{kinematics.ModuleSetpoint{Speed: 1, Angle: 0.2}, 0, 1, 0.2},
		{kinematics.ModuleSetpoint{Speed: 1, Angle: math.Pi}, 0, -1, 0},
		{kinematics.ModuleSetpoint{Speed: 2, Angle: -3 * math.Pi / 4}, math.Pi / 4, -2, math.Pi / 4},
		{kinematics.ModuleSetpoint{Speed: 1, Angle: 3 * math.Pi / 2}, -math.Pi / 2, 1, -math.Pi / 2},
		{kinematics.ModuleSetpoint{Speed: 1, Angle: 3.0}, -3.0, 1, 3.0},
	} {
		got := Optimize(tc.desired, tc.current)
		if math.Abs(got.Speed-tc.expectSpeed) > eps || math.Abs(got.Angle-tc.expectAngle) > 1e-9 {
			t.Errorf("Optimize(%+v, %v) = %+v, expected speed %v angle %v",
				tc.desired, tc.current, got, tc.expectSpeed, tc.expectAngle)
		}
	}
}

func TestDistanceTrackerWraps(t *testing.T) {
	var d DistanceTracker
	d.Update(32000)
	d.Update(32700)
	d.Update(-32500) // wrapped forwards by 336
	if d.Counts() != 700+336 {
		t.Errorf("counts %d, expected %d", d.Counts(), 700+336)
	}
	d.Update(-32767)
	d.Update(32000) // wrapped backwards
	if d.Counts() != 700+336-267-769 {
		t.Errorf("counts %d", d.Counts())
	}
	d.Zero()
	// The module restarts its count too; the first value after a zero is a baseline.
	d.Update(0)
	if d.Counts() != 0 {
		t.Errorf("counts %d after zero", d.Counts())
	}
	d.Update(5)
	if d.Counts() != 5 {
		t.Errorf("counts %d, expected 5", d.Counts())
	}
}

func TestCommandFrameRoundTrip(t *testing.T) {
	f := EncodeCommand(0x201, kinematics.ModuleSetpoint{Speed: -1.234, Angle: 3*math.Pi/2}, FlagEnable)
	if f.ID != 0x201 || len(f.Data) != 8 {
		t.Fatalf("frame %+v", f)
	}
	state, flags, err := DecodeCommand(f)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if flags != FlagEnable {
		t.Errorf("flags %x", flags)
	}
	if math.Abs(state.Speed+1.234) > SpeedScale/2 {
		t.Errorf("speed %v", state.Speed)
	}
	// 3pi/2 goes out as -pi/2.
	if math.Abs(state.Angle+math.Pi/2) > AngleScale {
		t.Errorf("angle %v", state.Angle)
	}

	saturated := EncodeCommand(1, kinematics.ModuleSetpoint{Speed: 100}, 0)
	if s, _, _ := DecodeCommand(saturated); math.Abs(s.Speed-32.767) > eps {
		t.Errorf("speed should saturate, got %v", s.Speed)
	}

	if _, err := DecodeFeedback(canbus.Frame{Data: []byte{1, 2}}); err == nil {
		t.Errorf("expected error for short frame")
	}
}

type recordingBus struct {
	frames []canbus.Frame
	fail   bool
}

func (b *recordingBus) Send(f canbus.Frame) (int, error) {
	if b.fail {
		return 0, errors.New("bus off")
	}
	b.frames = append(b.frames, f)
	return len(f.Data), nil
}

type scriptedReceiver struct {
	frames []canbus.Frame
}

func (r *scriptedReceiver) Recv() (canbus.Frame, error) {
	if len(r.frames) == 0 {
		return canbus.Frame{}, errors.New("closed")
	}
	f := r.frames[0]
	r.frames = r.frames[1:]
	return f, nil
}

func TestBankDispatchesFeedback(t *testing.T) {
	bus := &recordingBus{}
	const metresPerCount = 0.001
	b := newBank(bus, 0x200, metresPerCount, log.Discard())

	fl := b.Modules[0]
	rr := b.Modules[3]
	rx := &scriptedReceiver{frames: []canbus.Frame{
		EncodeFeedback(fl.FeedbackID(), Feedback{RawCounts: 100, Angle: 1}),
		EncodeFeedback(fl.FeedbackID(), Feedback{RawCounts: 600, Angle: 1.5, Velocity: 0.5}),
		{ID: 0x7ff, Data: []byte{1, 2, 3}}, // someone else's frame
		{ID: rr.FeedbackID(), Data: []byte{1}},
		EncodeFeedback(rr.FeedbackID(), Feedback{RawCounts: -5, Angle: 2*math.Pi - 0.1}),
	}}
	b.receive(context.Background(), rx)
	<-b.Stopped()

	pos := fl.Position()
	if math.Abs(pos.Distance-0.5) > eps || math.Abs(pos.Angle-1.5) > AngleScale {
		t.Errorf("front-left position %+v", pos)
	}
	if v := fl.LastFeedback().Velocity; math.Abs(v-0.5) > eps {
		t.Errorf("velocity %v", v)
	}
	if a := rr.Position().Angle; math.Abs(a-(2*math.Pi-0.1)) > AngleScale {
		t.Errorf("rear-right angle %v", a)
	}

	// With the wheel at 1.5 rad, asking for the opposite direction flips the speed.
	fl.SetDesiredState(kinematics.ModuleSetpoint{Speed: 1, Angle: 1.5 - math.Pi})
	state, flags, err := DecodeCommand(bus.frames[len(bus.frames)-1])
	if err != nil {
		t.Fatal(err)
	}
	if flags&FlagEnable == 0 || math.Abs(state.Speed+1) > eps || math.Abs(state.Angle-1.5) > AngleScale {
		t.Errorf("sent %+v flags %x", state, flags)
	}

	fl.ResetEncoders()
	if fl.Position().Distance != 0 {
		t.Errorf("distance not zeroed")
	}
	_, flags, _ = DecodeCommand(bus.frames[len(bus.frames)-1])
	if flags&FlagResetEncoders == 0 {
		t.Errorf("reset flag not sent")
	}
	// The module's count restarts at zero; a stationary wheel must not appear to move.
	fl.handleFeedback(Feedback{RawCounts: 0, Angle: 1.5})
	if d := fl.Position().Distance; d != 0 {
		t.Errorf("stationary wheel reports distance %v after encoder reset", d)
	}
	fl.handleFeedback(Feedback{RawCounts: 40, Angle: 1.5})
	if d := fl.Position().Distance; math.Abs(d-40*metresPerCount) > eps {
		t.Errorf("distance %v after reset, expected %v", d, 40*metresPerCount)
	}

	fl.Stop()
	state, flags, _ = DecodeCommand(bus.frames[len(bus.frames)-1])
	if flags != 0 || state.Speed != 0 {
		t.Errorf("stop sent %+v flags %x", state, flags)
	}

	bus.fail = true
	fl.SetDesiredState(kinematics.ModuleSetpoint{Speed: 1})
}

func TestSim(t *testing.T) {
	s := NewSim()
	s.SetDesiredState(kinematics.ModuleSetpoint{Speed: 2, Angle: 0.5})
	s.Advance(0.25)
	if p := s.Position(); math.Abs(p.Distance-0.5) > eps || p.Angle != 0.5 {
		t.Errorf("position %+v", p)
	}
	// Reversing is done by driving backwards rather than turning round.
	s.SetDesiredState(kinematics.ModuleSetpoint{Speed: 2, Angle: 0.5 + math.Pi})
	if st := s.State(); math.Abs(st.Speed+2) > eps || math.Abs(st.Angle-0.5) > eps {
		t.Errorf("state %+v", st)
	}
	s.Advance(0.25)
	if p := s.Position(); math.Abs(p.Distance) > eps {
		t.Errorf("distance %v", p.Distance)
	}
	s.Stop()
	if !s.Stopped() || s.State().Speed != 0 {
		t.Errorf("not stopped")
	}
	s.ResetEncoders()
}
