// Package swervemodule drives swerve modules over CAN.  Each module runs its own
// closed-loop firmware; this side only sends (speed, angle) setpoints and tracks the
// feedback it reports.
package swervemodule

import (
	"context"
	"sync"

	"github.com/go-daq/canbus"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/tigerbot-team/swervebot/pkg/chassis"
	"github.com/tigerbot-team/swervebot/pkg/kinematics"
	"github.com/tigerbot-team/swervebot/pkg/log"
	"github.com/tigerbot-team/swervebot/pkg/odometry"
)

// Sender is the transmit side of a CAN socket.
type Sender interface {
	Send(f canbus.Frame) (int, error)
}

// Receiver is the receive side of a CAN socket.
type Receiver interface {
	Recv() (canbus.Frame, error)
}

// CANModule is one module on the bus.
type CANModule struct {
	name           string
	id             uint32
	metresPerCount float64
	bus            Sender
	log            log.Logger

	lock     sync.Mutex
	tracker  DistanceTracker
	feedback Feedback
}

func NewCANModule(name string, id uint32, metresPerCount float64, bus Sender, l log.Logger) *CANModule {
	return &CANModule{
		name:           name,
		id:             id,
		metresPerCount: metresPerCount,
		bus:            bus,
		log:            l.WithField("module", name),
	}
}

func (m *CANModule) FeedbackID() uint32 {
	return m.id + FeedbackOffset
}

// SetDesiredState sends the setpoint, first optimising it against the last reported
// steering angle.
func (m *CANModule) SetDesiredState(state kinematics.ModuleSetpoint) {
	m.lock.Lock()
	current := m.feedback.Angle
	m.lock.Unlock()
	m.send(Optimize(state, current), FlagEnable)
}

func (m *CANModule) Position() odometry.ModulePosition {
	m.lock.Lock()
	defer m.lock.Unlock()
	return odometry.ModulePosition{
		Distance: float64(m.tracker.Counts()) * m.metresPerCount,
		Angle:    m.feedback.Angle,
	}
}

func (m *CANModule) ResetEncoders() {
	m.lock.Lock()
	m.tracker.Zero()
	current := m.feedback.Angle
	m.lock.Unlock()
	m.send(kinematics.ModuleSetpoint{Angle: current}, FlagEnable|FlagResetEncoders)
}

// Stop drops the drive to zero and lets the module go idle where it is.
func (m *CANModule) Stop() {
	m.lock.Lock()
	current := m.feedback.Angle
	m.lock.Unlock()
	m.send(kinematics.ModuleSetpoint{Angle: current}, 0)
}

func (m *CANModule) send(state kinematics.ModuleSetpoint, flags uint8) {
	if _, err := m.bus.Send(EncodeCommand(m.id, state, flags)); err != nil {
		// Best effort; the next tick sends a fresh setpoint.
		m.log.Warnf("CAN send failed: %v", err)
	}
}

func (m *CANModule) handleFeedback(fb Feedback) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.tracker.Update(fb.RawCounts)
	m.feedback = fb
}

func (m *CANModule) LastFeedback() Feedback {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.feedback
}

// Bank is the four modules of the vehicle sharing one CAN interface.
type Bank struct {
	Modules [chassis.NumModules]*CANModule

	log     log.Logger
	tx, rx  *canbus.Socket
	byID    map[uint32]*CANModule
	stopped chan struct{}
}

// OpenBank binds send and receive sockets on iface.  Module i takes command ID
// baseID+i.
func OpenBank(iface string, baseID uint32, metresPerCount float64, l log.Logger) (*Bank, error) {
	tx, err := canbus.New()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create CAN socket")
	}
	if err := tx.Bind(iface); err != nil {
		tx.Close()
		return nil, errors.Wrapf(err, "failed to bind to %s", iface)
	}

	rx, err := canbus.New()
	if err != nil {
		tx.Close()
		return nil, errors.Wrap(err, "failed to create CAN socket")
	}

	b := newBank(tx, baseID, metresPerCount, l)
	b.tx, b.rx = tx, rx
	var filters []unix.CanFilter
	for _, m := range b.Modules {
		filters = append(filters, unix.CanFilter{Id: m.FeedbackID(), Mask: unix.CAN_SFF_MASK})
	}
	if err := rx.SetFilters(filters); err != nil {
		tx.Close()
		rx.Close()
		return nil, errors.Wrap(err, "failed to set CAN filters")
	}
	if err := rx.Bind(iface); err != nil {
		tx.Close()
		rx.Close()
		return nil, errors.Wrapf(err, "failed to bind to %s", iface)
	}
	return b, nil
}

func newBank(tx Sender, baseID uint32, metresPerCount float64, l log.Logger) *Bank {
	b := &Bank{
		log:     l,
		byID:    map[uint32]*CANModule{},
		stopped: make(chan struct{}),
	}
	for i := range b.Modules {
		m := NewCANModule(chassis.ModuleNames[i], baseID+uint32(i), metresPerCount, tx, l)
		b.Modules[i] = m
		b.byID[m.FeedbackID()] = m
	}
	return b
}

// LoopReceivingFeedback dispatches feedback frames to the modules until ctx is done
// or the receiver fails.  Close the bank to unblock it.
func (b *Bank) LoopReceivingFeedback(ctx context.Context) {
	b.receive(ctx, b.rx)
}

func (b *Bank) receive(ctx context.Context, rx Receiver) {
	defer close(b.stopped)
	for ctx.Err() == nil {
		frame, err := rx.Recv()
		if err != nil {
			if ctx.Err() == nil {
				b.log.Errorf("CAN receive failed: %v", err)
			}
			return
		}
		m, ok := b.byID[frame.ID]
		if !ok {
			continue
		}
		fb, err := DecodeFeedback(frame)
		if err != nil {
			m.log.Warnf("Bad feedback: %v", err)
			continue
		}
		m.handleFeedback(fb)
	}
}

// Stopped is closed when the receive loop exits.
func (b *Bank) Stopped() <-chan struct{} {
	return b.stopped
}

func (b *Bank) Close() error {
	var firstErr error
	for _, s := range []*canbus.Socket{b.tx, b.rx} {
		if s == nil {
			continue
		}
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
