package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/tigerbot-team/swervebot/pkg/chassis"
	"github.com/tigerbot-team/swervebot/pkg/config"
	"github.com/tigerbot-team/swervebot/pkg/drivetrain"
	"github.com/tigerbot-team/swervebot/pkg/joystick"
	"github.com/tigerbot-team/swervebot/pkg/log"
	"github.com/tigerbot-team/swervebot/pkg/odometry"
	"github.com/tigerbot-team/swervebot/pkg/screen"
	"github.com/tigerbot-team/swervebot/pkg/swervemodule"
	"github.com/tigerbot-team/swervebot/pkg/telemetry"
)

var CLI struct {
	Config   string `help:"Config file." default:"/cfg/swerve.yaml" type:"path"`
	InUse    string `help:"Where to write the config actually in use." default:"/cfg/swerve-in-use.yaml"`
	LogLevel string `help:"Log level, overrides the config file."`
	LogDir   string `help:"Directory for log files, overrides the config file."`
	Joystick string `help:"Joystick device." default:"/dev/input/js0" env:"JOYSTICK_DEVICE"`
}

func main() {
	kong.Parse(&CLI, kong.Description("Swerve drive controller."))

	fmt.Println("---- swerved ----")
	fmt.Println("GOMAXPROCS", runtime.GOMAXPROCS(0))

	cfg, cfgErr := config.Load(CLI.Config)
	if CLI.LogLevel != "" {
		cfg.Log.Level = CLI.LogLevel
	}
	if CLI.LogDir != "" {
		cfg.Log.Dir = CLI.LogDir
	}
	logger, err := log.NewLogrusLogger(cfg.Log.Level, cfg.Log.Dir)
	if err != nil {
		fmt.Println("Failed to create logger:", err)
		os.Exit(1)
	}
	if cfgErr != nil {
		if !os.IsNotExist(errors.Cause(cfgErr)) {
			logger.Fatalf("Bad config: %v", cfgErr)
		}
		logger.Warnf("No config file, using defaults: %v", cfgErr)
	}
	if err := cfg.SaveInUse(CLI.InUse); err != nil {
		logger.Warnf("Failed to write in-use config: %v", err)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatalf("Controller failed: %v", err)
	}
}

func run(cfg config.Config, logger log.Logger) error {
	// Our global context, we cancel it to trigger shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	registerSignalHandlers(cancel, logger)

	clk := clock.New()

	heading, err := openHeadingSource(ctx, cfg.Heading, clk, logger)
	if err != nil {
		return err
	}

	bank, err := swervemodule.OpenBank(cfg.Modules.Interface, cfg.Modules.CANBaseID, cfg.Modules.MetresPerCount, logger)
	if err != nil {
		return err
	}
	defer bank.Close()
	go bank.LoopReceivingFeedback(ctx)

	sinks := telemetry.Multi{telemetry.NewLogSink(logger, cfg.Telemetry.LogEvery)}
	if cfg.Telemetry.Screen {
		s := screen.New(logger)
		sinks = append(sinks, s)
		go s.LoopUpdatingScreen(ctx, screen.DefaultDevice, clk)
	}

	var modules [chassis.NumModules]drivetrain.Module
	for i, m := range bank.Modules {
		modules[i] = m
	}
	dt, err := drivetrain.New(drivetrain.Config{
		Geometry:        cfg.Geometry(),
		MaxModuleSpeed:  cfg.Speeds.MaxModuleSpeed,
		Slew:            cfg.SlewParams(),
		HeadingReversed: cfg.Heading.Reversed,
	}, heading, modules, drivetrain.WithLogger(logger), drivetrain.WithClock(clk), drivetrain.WithTelemetry(sinks))
	if err != nil {
		return err
	}
	defer func() {
		logger.Infof("Stopping modules for shut down")
		dt.StopModules()
		time.Sleep(100 * time.Millisecond)
	}()

	if err := dt.CalibrateHeading(); err != nil {
		return err
	}
	dt.ZeroHeading()

	gamepad := joystick.NewGamepad(cfg.Control.Deadband)
	if err := startJoystick(ctx, cancel, gamepad, CLI.Joystick, logger); err != nil {
		return err
	}

	return controlLoop(ctx, cfg, dt, gamepad, clk, logger)
}

func controlLoop(ctx context.Context, cfg config.Config, dt *drivetrain.Drivetrain, gamepad *joystick.Gamepad, clk clock.Clock, logger log.Logger) error {
	profileIdx := 0
	for i, p := range cfg.Speeds.Profiles {
		if p.Name == cfg.Speeds.DefaultProfile {
			profileIdx = i
		}
	}
	logger.Infof("Speed profile %s", cfg.Speeds.Profiles[profileIdx].Name)

	ticker := clk.Ticker(cfg.Control.Period)
	defer ticker.Stop()
	watchdog := clk.Ticker(5 * time.Second)
	defer watchdog.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Infof("Context done, shutting down")
			return nil
		case <-watchdog.C:
			logger.Debugf("Control loop still running, pose %v", dt.Pose())
		case <-ticker.C:
		}

		for _, b := range gamepad.TakePresses() {
			switch b {
			case joystick.ButtonOptions:
				dt.ZeroHeading()
			case joystick.ButtonShare:
				dt.ResetPose(odometry.Pose2D{})
			case joystick.ButtonR1:
				profileIdx = (profileIdx + 1) % len(cfg.Speeds.Profiles)
				logger.Infof("Speed profile %s", cfg.Speeds.Profiles[profileIdx].Name)
			}
		}

		sticks := gamepad.Sticks()
		profile := cfg.Speeds.Profiles[profileIdx]
		switch {
		case sticks.Lock:
			dt.LockFormation()
		case sticks.RobotRelative || !cfg.Control.FieldRelative:
			dt.DriveRobotRelative(sticks.X, sticks.Y, sticks.Rot, profile.MaxAngular, profile.MaxLinear)
		default:
			dt.DriveFieldRelative(sticks.X, sticks.Y, sticks.Rot, profile.MaxAngular, profile.MaxLinear)
		}
		dt.Tick()
	}
}

// startJoystick waits for the joystick to appear and then feeds it into the gamepad in
// the background.  Losing the joystick shuts the controller down.
func startJoystick(ctx context.Context, cancel context.CancelFunc, g *joystick.Gamepad, device string, logger log.Logger) error {
	firstLog := true
	for {
		j, err := joystick.Open(device)
		if err == nil {
			logger.Infof("Opened joystick %s", device)
			go func() {
				defer cancel()
				defer j.Close()
				g.LoopReadingEvents(ctx, j, logger)
			}()
			return nil
		}
		if firstLog {
			logger.Warnf("Waiting for joystick: %v", err)
			firstLog = false
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

func registerSignalHandlers(cancelFunc context.CancelFunc, logger log.Logger) {
	// Hook Ctrl-C to cause shut down.
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		s := <-signals
		logger.Infof("Signal: %v", s)
		cancelFunc()
		time.Sleep(2 * time.Second)
		os.Exit(0)
	}()
}
