package sim

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/tigerbot-team/swervebot/pkg/config"
	"github.com/tigerbot-team/swervebot/pkg/log"
	"github.com/tigerbot-team/swervebot/pkg/telemetry"
)

func TestParseScript(t *testing.T) {
	s, err := ParseScript([]byte(`
segments:
  - name: forwards
    x: 1
    duration: 2s
  - name: spin
    rot: -0.5
    duration: 500ms
    robotrelative: true
    profile: low
`))
	if err != nil {
		t.Fatalf("ParseScript failed: %v", err)
	}
	if s.Step != DefaultStep {
		t.Errorf("step %v, expected the default", s.Step)
	}
	if len(s.Segments) != 2 {
		t.Fatalf("got %d segments", len(s.Segments))
	}
	if s.Segments[0].Duration != 2*time.Second || s.Segments[0].X != 1 {
		t.Errorf("bad first segment %+v", s.Segments[0])
	}
	if !s.Segments[1].RobotRelative || s.Segments[1].Profile != "low" || s.Segments[1].Rot != -0.5 {
		t.Errorf("bad second segment %+v", s.Segments[1])
	}
}

func TestParseScriptErrors(t *testing.T) {
	for _, tc := range []struct {
		name, data, want string
	}{
		{"unknown field", "segments: [{x: 1, duration: 1s, speed: 3}]", "parse"},
		{"no segments", "step: 10ms", "no segments"},
		{"no duration", "segments: [{name: a, x: 1}]", "no duration"},
		{"bad step", "step: -1s\nsegments: [{x: 1, duration: 1s}]", "step"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseScript([]byte(tc.data))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func newRunner(t *testing.T) (*Runner, *telemetry.Table) {
	t.Helper()
	table := telemetry.NewTable()
	r, err := NewRunner(config.Default(), log.Discard(), table)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	return r, table
}

func TestDriveForwards(t *testing.T) {
	r, table := newRunner(t)
	poses, err := r.Run(Script{Step: DefaultStep, Segments: []Segment{
		{Name: "forwards", X: 1, Duration: 2 * time.Second, Profile: "low"},
	}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(poses) != 101 {
		t.Errorf("got %d poses, expected one per step plus the start", len(poses))
	}
	final := poses[len(poses)-1]
	// Ramping up costs a little distance against 2s at full speed.
	if final.X < 2.5 || final.X > 3.2 || math.Abs(final.Y) > 1e-6 || math.Abs(final.Heading.Float()) > 1e-6 {
		t.Errorf("final pose %v", final)
	}
	for i := 1; i < len(poses); i++ {
		if poses[i].X < poses[i-1].X {
			t.Fatalf("went backwards at step %d: %v then %v", i, poses[i-1], poses[i])
		}
	}
	if x, ok := table.Number("pose/x"); !ok || x != final.X {
		t.Errorf("telemetry pose/x %v (%v), expected %v", x, ok, final.X)
	}
}

func TestSpinOnTheSpot(t *testing.T) {
	r, _ := newRunner(t)
	poses, err := r.Run(Script{Step: DefaultStep, Segments: []Segment{
		{Name: "spin", Rot: 1, Duration: 500 * time.Millisecond, Profile: "low"},
	}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	final := poses[len(poses)-1]
	if h := final.Heading.Float(); h < 30 || h > 60 {
		t.Errorf("heading %v after half a second of ramping rotation", h)
	}
	if math.Abs(final.X) > 1e-6 || math.Abs(final.Y) > 1e-6 {
		t.Errorf("moved while spinning: %v", final)
	}
	if math.Abs(r.heading.Heading()-final.Heading.Float()) > 1e-6 {
		t.Errorf("pose heading %v disagrees with the gyro %v", final.Heading, r.heading.Heading())
	}
}

func TestLockHoldsStill(t *testing.T) {
	r, _ := newRunner(t)
	poses, err := r.Run(Script{Step: DefaultStep, Segments: []Segment{
		{Name: "lock", Lock: true, Duration: time.Second},
	}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for _, p := range poses {
		if p.X != 0 || p.Y != 0 || p.Heading.Float() != 0 {
			t.Fatalf("locked vehicle moved to %v", p)
		}
	}
	for i, m := range r.modules {
		if !m.Stopped() {
			t.Errorf("module %d not stopped at the end of the run", i)
		}
	}
}

func TestUnknownProfile(t *testing.T) {
	r, _ := newRunner(t)
	if _, err := r.Run(Script{Step: DefaultStep, Segments: []Segment{
		{Name: "fast", X: 1, Duration: time.Second, Profile: "ludicrous"},
	}}); err == nil {
		t.Errorf("expected an error for an unknown profile")
	}
}

func TestHeadingReset(t *testing.T) {
	var h Heading
	h.Advance(math.Pi, 0.5)
	if math.Abs(h.Heading()-90) > 1e-9 || math.Abs(h.Rate()-180) > 1e-9 {
		t.Errorf("heading %v rate %v", h.Heading(), h.Rate())
	}
	h.Reset()
	if h.Heading() != 0 {
		t.Errorf("heading %v after reset", h.Heading())
	}
}
