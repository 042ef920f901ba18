package sim

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/tigerbot-team/swervebot/pkg/chassis"
	"github.com/tigerbot-team/swervebot/pkg/config"
	"github.com/tigerbot-team/swervebot/pkg/drivetrain"
	"github.com/tigerbot-team/swervebot/pkg/kinematics"
	"github.com/tigerbot-team/swervebot/pkg/log"
	"github.com/tigerbot-team/swervebot/pkg/odometry"
	"github.com/tigerbot-team/swervebot/pkg/swervemodule"
	"github.com/tigerbot-team/swervebot/pkg/telemetry"
)

type Runner struct {
	cfg     config.Config
	log     log.Logger
	clock   *clock.Mock
	heading *Heading
	modules [chassis.NumModules]*swervemodule.Sim
	solver  *kinematics.Solver

	Drivetrain *drivetrain.Drivetrain
}

func NewRunner(cfg config.Config, l log.Logger, sink telemetry.Sink) (*Runner, error) {
	solver, err := kinematics.NewSolver(cfg.Geometry(), cfg.Speeds.MaxModuleSpeed)
	if err != nil {
		return nil, err
	}
	r := &Runner{
		cfg:     cfg,
		log:     l,
		clock:   clock.NewMock(),
		heading: &Heading{},
		solver:  solver,
	}
	var modules [chassis.NumModules]drivetrain.Module
	for i := range r.modules {
		r.modules[i] = swervemodule.NewSim()
		modules[i] = r.modules[i]
	}
	r.Drivetrain, err = drivetrain.New(drivetrain.Config{
		Geometry:       cfg.Geometry(),
		MaxModuleSpeed: cfg.Speeds.MaxModuleSpeed,
		Slew:           cfg.SlewParams(),
	}, r.heading, modules, drivetrain.WithLogger(l), drivetrain.WithClock(r.clock), drivetrain.WithTelemetry(sink))
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Run plays the script and returns the estimated pose after every step.
func (r *Runner) Run(s Script) ([]odometry.Pose2D, error) {
	poses := []odometry.Pose2D{r.Drivetrain.Pose()}
	for _, seg := range s.Segments {
		name := seg.Profile
		if name == "" {
			name = r.cfg.Speeds.DefaultProfile
		}
		profile, err := r.cfg.Profile(name)
		if err != nil {
			return poses, errors.Wrapf(err, "segment %s", seg.Name)
		}
		r.log.Infof("Segment %s: %+v", seg.Name, seg)
		for elapsed := time.Duration(0); elapsed < seg.Duration; elapsed += s.Step {
			r.step(seg, profile, s.Step)
			poses = append(poses, r.Drivetrain.Pose())
		}
		r.log.Infof("Segment %s done at %v", seg.Name, r.Drivetrain.Pose())
	}
	r.Drivetrain.StopModules()
	return poses, nil
}

func (r *Runner) step(seg Segment, profile config.SpeedProfile, step time.Duration) {
	r.clock.Add(step)
	switch {
	case seg.Lock:
		r.Drivetrain.LockFormation()
	case seg.RobotRelative:
		r.Drivetrain.DriveRobotRelative(seg.X, seg.Y, seg.Rot, profile.MaxAngular, profile.MaxLinear)
	default:
		r.Drivetrain.DriveFieldRelative(seg.X, seg.Y, seg.Rot, profile.MaxAngular, profile.MaxLinear)
	}

	dt := step.Seconds()
	var states [chassis.NumModules]kinematics.ModuleSetpoint
	for i, m := range r.modules {
		m.Advance(dt)
		states[i] = m.State()
		states[i].Angle = r.solver.FromModuleFrame(i, states[i].Angle)
	}
	r.heading.Advance(r.solver.ToChassisVelocity(states).Omega, dt)
	r.Drivetrain.Tick()
}
