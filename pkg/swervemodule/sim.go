package swervemodule

import (
	"sync"

	"github.com/tigerbot-team/swervebot/pkg/kinematics"
	"github.com/tigerbot-team/swervebot/pkg/odometry"
)

// Sim is an ideal module: it steers instantly and holds the commanded speed exactly.
// Advance moves simulated time on.
type Sim struct {
	lock     sync.Mutex
	state    kinematics.ModuleSetpoint
	distance float64
	stopped  bool
}

func NewSim() *Sim {
	return &Sim{}
}

func (s *Sim) SetDesiredState(state kinematics.ModuleSetpoint) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.state = Optimize(state, s.state.Angle)
	s.stopped = false
}

func (s *Sim) Position() odometry.ModulePosition {
	s.lock.Lock()
	defer s.lock.Unlock()
	return odometry.ModulePosition{Distance: s.distance, Angle: s.state.Angle}
}

func (s *Sim) ResetEncoders() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.distance = 0
}

func (s *Sim) Stop() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.state.Speed = 0
	s.stopped = true
}

// State returns the setpoint the module is holding, after optimisation.
func (s *Sim) State() kinematics.ModuleSetpoint {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state
}

func (s *Sim) Stopped() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.stopped
}

// Advance drives the wheel for dt seconds at the current speed.
func (s *Sim) Advance(dt float64) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.distance += s.state.Speed * dt
}
