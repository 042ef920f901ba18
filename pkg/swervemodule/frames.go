package swervemodule

import (
	"encoding/binary"
	"math"

	"github.com/go-daq/canbus"
	"github.com/pkg/errors"

	"github.com/tigerbot-team/swervebot/pkg/angle"
	"github.com/tigerbot-team/swervebot/pkg/kinematics"
)

// CAN IDs: commands go to baseID+module, feedback comes back on
// baseID+FeedbackOffset+module.
const FeedbackOffset = 0x10

// Fixed-point scales used on the wire.
const (
	SpeedScale = 0.001  // m/s per LSB
	AngleScale = 0.0001 // rad per LSB
)

const (
	FlagEnable        = 1 << 0
	FlagResetEncoders = 1 << 1
)

// EncodeCommand builds the command frame for one module:
//
//	bytes 0-1  speed, int16 LE, mm/s
//	bytes 2-3  angle, int16 LE, 0.0001 rad, in (-pi, pi]
//	byte  4    flags
//	bytes 5-7  reserved
func EncodeCommand(id uint32, state kinematics.ModuleSetpoint, flags uint8) canbus.Frame {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint16(data[0:2], uint16(toFixed(state.Speed, SpeedScale)))
	binary.LittleEndian.PutUint16(data[2:4], uint16(toFixed(angle.WrapPlusMinusPi(state.Angle), AngleScale)))
	data[4] = flags
	return canbus.Frame{ID: id, Data: data, Kind: canbus.SFF}
}

// DecodeCommand is the inverse of EncodeCommand.
func DecodeCommand(f canbus.Frame) (kinematics.ModuleSetpoint, uint8, error) {
	if len(f.Data) < 5 {
		return kinematics.ModuleSetpoint{}, 0, errors.Errorf("short command frame (%d bytes)", len(f.Data))
	}
	return kinematics.ModuleSetpoint{
		Speed: float64(int16(binary.LittleEndian.Uint16(f.Data[0:2]))) * SpeedScale,
		Angle: float64(int16(binary.LittleEndian.Uint16(f.Data[2:4]))) * AngleScale,
	}, f.Data[4], nil
}

// Feedback is the periodic status report from a module.
type Feedback struct {
	RawCounts int16   // wrapping drive encoder count
	Angle     float64 // radians, [0, 2pi)
	Velocity  float64 // m/s
}

// DecodeFeedback parses a feedback frame:
//
//	bytes 0-1  drive encoder count, int16 LE, wraps
//	bytes 2-3  steering angle, uint16 LE, 0.0001 rad
//	bytes 4-5  drive velocity, int16 LE, mm/s
func DecodeFeedback(f canbus.Frame) (Feedback, error) {
	if len(f.Data) < 6 {
		return Feedback{}, errors.Errorf("short feedback frame (%d bytes)", len(f.Data))
	}
	return Feedback{
		RawCounts: int16(binary.LittleEndian.Uint16(f.Data[0:2])),
		Angle:     float64(binary.LittleEndian.Uint16(f.Data[2:4])) * AngleScale,
		Velocity:  float64(int16(binary.LittleEndian.Uint16(f.Data[4:6]))) * SpeedScale,
	}, nil
}

// EncodeFeedback builds a feedback frame; used by the module firmware simulator and tests.
func EncodeFeedback(id uint32, fb Feedback) canbus.Frame {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint16(data[0:2], uint16(fb.RawCounts))
	binary.LittleEndian.PutUint16(data[2:4], uint16(math.Round(angle.WrapRadians(fb.Angle)/AngleScale)))
	binary.LittleEndian.PutUint16(data[4:6], uint16(toFixed(fb.Velocity, SpeedScale)))
	return canbus.Frame{ID: id, Data: data, Kind: canbus.SFF}
}

func toFixed(v, scale float64) int16 {
	f := math.Round(v / scale)
	return int16(math.Max(math.MinInt16, math.Min(math.MaxInt16, f)))
}
