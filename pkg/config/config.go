// Package config loads the controller configuration from YAML.  Anything missing from
// the file keeps its default value.
package config

import (
	"io/ioutil"
	"math"
	"time"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/tigerbot-team/swervebot/pkg/chassis"
	"github.com/tigerbot-team/swervebot/pkg/slew"
)

const (
	HeadingBNO08x  = "bno08x"
	HeadingGyroSPI = "gyro-spi"
	HeadingGyroI2C = "gyro-i2c"
	HeadingSim     = "sim"
)

type Config struct {
	Chassis   ChassisConfig
	Slew      SlewConfig
	Speeds    SpeedConfig
	Heading   HeadingConfig
	Control   ControlConfig
	Modules   ModulesConfig
	Telemetry TelemetryConfig
	Log       LogConfig
}

type ChassisConfig struct {
	WheelBase  float64 // metres, front to back
	TrackWidth float64 // metres, left to right
	// AngularOffsets are the module calibration offsets in radians, in front-left,
	// front-right, rear-left, rear-right order.
	AngularOffsets []float64
}

type SlewConfig struct {
	DirectionSlewRate  float64
	MagnitudeSlewRate  float64
	RotationalSlewRate float64
}

type SpeedProfile struct {
	Name       string
	MaxLinear  float64 // metres per second
	MaxAngular float64 // radians per second
}

type SpeedConfig struct {
	// MaxModuleSpeed is the desaturation ceiling for any one module.
	MaxModuleSpeed float64
	Profiles       []SpeedProfile
	DefaultProfile string
}

type HeadingConfig struct {
	Source     string
	Reversed   bool
	SerialPort string
	BaudRate   int
	SPIDevice  string
	I2CDevice  string
	I2CAddress int
}

type ControlConfig struct {
	Period        time.Duration
	Deadband      float64
	FieldRelative bool
}

type ModulesConfig struct {
	Interface string
	// CANBaseID is the command ID of the front-left module; the others follow on.
	CANBaseID      uint32
	MetresPerCount float64
}

type TelemetryConfig struct {
	LogEvery int
	Screen   bool
}

type LogConfig struct {
	Level string
	Dir   string
}

func Default() Config {
	offsets := chassis.DefaultAngularOffsets
	params := slew.DefaultParams()
	return Config{
		Chassis: ChassisConfig{
			WheelBase:      chassis.DefaultWheelBase,
			TrackWidth:     chassis.DefaultTrackWidth,
			AngularOffsets: offsets[:],
		},
		Slew: SlewConfig{
			DirectionSlewRate:  params.DirectionSlewRate,
			MagnitudeSlewRate:  params.MagnitudeSlewRate,
			RotationalSlewRate: params.RotationalSlewRate,
		},
		Speeds: SpeedConfig{
			MaxModuleSpeed: 4.8,
			Profiles: []SpeedProfile{
				{Name: "low", MaxLinear: 1.6, MaxAngular: math.Pi},
				{Name: "medium", MaxLinear: 3.2, MaxAngular: 1.5 * math.Pi},
				{Name: "high", MaxLinear: 4.8, MaxAngular: 2 * math.Pi},
			},
			DefaultProfile: "medium",
		},
		Heading: HeadingConfig{
			Source:     HeadingBNO08x,
			SerialPort: "/dev/ttyAMA0",
			BaudRate:   115200,
			SPIDevice:  "/dev/spidev0.1",
			I2CDevice:  "/dev/i2c-1",
			I2CAddress: 0x68,
		},
		Control: ControlConfig{
			Period:        20 * time.Millisecond,
			Deadband:      0.05,
			FieldRelative: true,
		},
		Modules: ModulesConfig{
			Interface:      "can0",
			CANBaseID:      0x200,
			MetresPerCount: 0.0762 * math.Pi / 4096,
		},
		Telemetry: TelemetryConfig{
			LogEvery: 50,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the file at path over the defaults.
func Load(path string) (Config, error) {
	c := Default()
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return c, errors.Wrap(err, "failed to read config")
	}
	if err := Parse(data, &c); err != nil {
		return c, errors.Wrapf(err, "bad config file %s", path)
	}
	return c, nil
}

// Parse unmarshals data over c and validates the result.
func Parse(data []byte, c *Config) error {
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return errors.Wrap(err, "failed to parse config")
	}
	return c.Validate()
}

// SaveInUse writes out the configuration actually in use, so that it's easy to see
// what the defaults filled in.
func (c Config) SaveInUse(path string) error {
	data, err := yaml.Marshal(&c)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	return errors.Wrap(ioutil.WriteFile(path, data, 0666), "failed to write config")
}

func (c Config) Validate() error {
	if len(c.Chassis.AngularOffsets) != chassis.NumModules {
		return errors.Errorf("need %d angular offsets, got %d", chassis.NumModules, len(c.Chassis.AngularOffsets))
	}
	if err := c.Geometry().Validate(); err != nil {
		return err
	}
	for name, v := range map[string]float64{
		"direction slew rate":  c.Slew.DirectionSlewRate,
		"magnitude slew rate":  c.Slew.MagnitudeSlewRate,
		"rotational slew rate": c.Slew.RotationalSlewRate,
		"max module speed":     c.Speeds.MaxModuleSpeed,
	} {
		if !(v > 0) || math.IsInf(v, 0) {
			return errors.Errorf("%s must be positive, not %v", name, v)
		}
	}
	if len(c.Speeds.Profiles) == 0 {
		return errors.New("no speed profiles")
	}
	for _, p := range c.Speeds.Profiles {
		if !(p.MaxLinear > 0) || !(p.MaxAngular > 0) {
			return errors.Errorf("speed profile %q must have positive limits", p.Name)
		}
	}
	if _, err := c.Profile(c.Speeds.DefaultProfile); err != nil {
		return err
	}
	switch c.Heading.Source {
	case HeadingBNO08x, HeadingGyroSPI, HeadingGyroI2C, HeadingSim:
	default:
		return errors.Errorf("unknown heading source %q", c.Heading.Source)
	}
	if c.Control.Period <= 0 {
		return errors.Errorf("control period must be positive, not %v", c.Control.Period)
	}
	if c.Control.Deadband < 0 || c.Control.Deadband >= 1 {
		return errors.Errorf("deadband must be in [0, 1), not %v", c.Control.Deadband)
	}
	return nil
}

func (c Config) Geometry() chassis.Geometry {
	var offsets [chassis.NumModules]float64
	copy(offsets[:], c.Chassis.AngularOffsets)
	return chassis.Rectangular(c.Chassis.WheelBase, c.Chassis.TrackWidth, offsets)
}

func (c Config) SlewParams() slew.Params {
	return slew.Params{
		DirectionSlewRate:  c.Slew.DirectionSlewRate,
		MagnitudeSlewRate:  c.Slew.MagnitudeSlewRate,
		RotationalSlewRate: c.Slew.RotationalSlewRate,
	}
}

func (c Config) Profile(name string) (SpeedProfile, error) {
	for _, p := range c.Speeds.Profiles {
		if p.Name == name {
			return p, nil
		}
	}
	return SpeedProfile{}, errors.Errorf("no speed profile %q", name)
}
