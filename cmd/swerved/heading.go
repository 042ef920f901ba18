package main

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/tigerbot-team/swervebot/pkg/bno08x"
	"github.com/tigerbot-team/swervebot/pkg/config"
	"github.com/tigerbot-team/swervebot/pkg/drivetrain"
	"github.com/tigerbot-team/swervebot/pkg/gyro"
	"github.com/tigerbot-team/swervebot/pkg/log"
)

func openHeadingSource(ctx context.Context, cfg config.HeadingConfig, clk clock.Clock, logger log.Logger) (drivetrain.HeadingSource, error) {
	switch cfg.Source {
	case config.HeadingBNO08x:
		b := bno08x.New(bno08x.Config{Device: cfg.SerialPort, BaudRate: cfg.BaudRate}, logger, clk)
		go b.LoopReadingReports(ctx)
		return b, nil
	case config.HeadingGyroSPI, config.HeadingGyroI2C:
		var g *gyro.Gyro
		var err error
		if cfg.Source == config.HeadingGyroSPI {
			g, err = gyro.NewSPI(cfg.SPIDevice, logger)
		} else {
			g, err = gyro.NewI2C(cfg.I2CDevice, cfg.I2CAddress, logger)
		}
		if err != nil {
			return nil, err
		}
		if err := g.Configure(); err != nil {
			return nil, errors.Wrap(err, "failed to configure gyro")
		}
		go g.LoopReadingFIFO(ctx, clk)
		return g, nil
	default:
		return nil, errors.Errorf("heading source %q not supported on hardware", cfg.Source)
	}
}
