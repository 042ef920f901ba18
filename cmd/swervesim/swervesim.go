package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/tigerbot-team/swervebot/pkg/config"
	"github.com/tigerbot-team/swervebot/pkg/log"
	"github.com/tigerbot-team/swervebot/pkg/screen"
	"github.com/tigerbot-team/swervebot/pkg/sim"
	"github.com/tigerbot-team/swervebot/pkg/telemetry"
)

var CLI struct {
	Script   string `arg:"" help:"Script of stick inputs to play." type:"existingfile"`
	Config   string `help:"Config file; defaults are used if not given." type:"existingfile"`
	PNG      string `help:"Write the estimated path to this PNG file."`
	Size     int    `help:"Size of the PNG in pixels." default:"512"`
	LogLevel string `help:"Log level." default:"info"`
	LogEvery int    `help:"Log telemetry every N steps." default:"25"`
}

func main() {
	kong.Parse(&CLI, kong.Description("Plays a script of stick inputs against simulated swerve modules."))

	logger, err := log.NewLogrusLogger(CLI.LogLevel, "")
	if err != nil {
		fmt.Println("Failed to create logger:", err)
		os.Exit(1)
	}

	cfg := config.Default()
	if CLI.Config != "" {
		cfg, err = config.Load(CLI.Config)
		if err != nil {
			logger.Fatalf("Bad config: %v", err)
		}
	}
	script, err := sim.LoadScript(CLI.Script)
	if err != nil {
		logger.Fatalf("%v", err)
	}

	runner, err := sim.NewRunner(cfg, logger, telemetry.NewLogSink(logger, CLI.LogEvery))
	if err != nil {
		logger.Fatalf("Failed to create simulation: %v", err)
	}
	poses, err := runner.Run(script)
	if err != nil {
		logger.Fatalf("Simulation failed: %v", err)
	}
	fmt.Println("Final pose:", poses[len(poses)-1])

	if CLI.PNG != "" {
		if err := screen.RenderPath(poses, CLI.Size, CLI.PNG); err != nil {
			logger.Fatalf("Failed to render path: %v", err)
		}
		logger.Infof("Path written to %s", CLI.PNG)
	}
}
