// Package sim drives the drivetrain against ideal simulated modules and a simulated
// heading source, from a script of held stick inputs.
package sim

import (
	"io/ioutil"
	"time"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

const DefaultStep = 20 * time.Millisecond

// Segment holds the sticks in one position for Duration.
type Segment struct {
	Name          string
	X, Y, Rot     float64
	Duration      time.Duration
	RobotRelative bool
	Lock          bool
	// Profile names a speed profile from the config; empty means the default.
	Profile string
}

type Script struct {
	// Step is the control period to simulate.
	Step     time.Duration
	Segments []Segment
}

func LoadScript(path string) (Script, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return Script{}, errors.Wrap(err, "failed to read script")
	}
	s, err := ParseScript(data)
	return s, errors.Wrapf(err, "bad script %s", path)
}

func ParseScript(data []byte) (Script, error) {
	s := Script{Step: DefaultStep}
	if err := yaml.UnmarshalStrict(data, &s); err != nil {
		return s, errors.Wrap(err, "failed to parse script")
	}
	if s.Step <= 0 {
		return s, errors.Errorf("step must be positive, not %v", s.Step)
	}
	if len(s.Segments) == 0 {
		return s, errors.New("script has no segments")
	}
	for i, seg := range s.Segments {
		if seg.Duration <= 0 {
			return s, errors.Errorf("segment %d (%s) has no duration", i, seg.Name)
		}
	}
	return s, nil
}
