package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/open-teleop/motion-controller/domain/robot"
	"github.com/open-teleop/motion-controller/pkg/api"
	"github.com/open-teleop/motion-controller/pkg/config"
	customlog "github.com/open-teleop/motion-controller/pkg/log"
	"github.com/open-teleop/motion-controller/pkg/motion"
)

// loadBootstrap reads the bootstrap config and builds the logger it describes.
func loadBootstrap(c *cli.Context) (*config.BootstrapConfig, customlog.Logger, error) {
	cfg, err := config.LoadBootstrapConfig(c.String(flagConfigDir))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load bootstrap config: %w", err)
	}
	if level := c.String(flagLogLevel); level != "" {
		cfg.Logging.Level = level
	}

	logger, err := customlog.NewLogrusLogger(cfg.Logging.Level, cfg.Logging.LogPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

// withRuntime runs fn against a fully wired runtime and closes it afterwards.
func withRuntime(c *cli.Context, fn func(rt *controllerRuntime) error) (err error) {
	cfg, logger, err := loadBootstrap(c)
	if err != nil {
		return err
	}
	rt, err := newRuntime(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.Close(); cerr != nil {
			logger.Errorf("Error during shutdown: %v", cerr)
			if err == nil {
				err = cerr
			}
		}
	}()
	return fn(rt)
}

// waitForHeading gives telemetry a moment to arrive before a one-shot command.
func waitForHeading(r robot.Robot, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := r.Rotation(); err == nil {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func serveAction(c *cli.Context) error {
	return withRuntime(c, func(rt *controllerRuntime) error {
		app := newServer(rt, c.Bool(flagAccessLog))
		addr := fmt.Sprintf(":%d", rt.cfg.Server.HTTPPort)

		// Start server in a goroutine
		listenErr := make(chan error, 1)
		go func() {
			rt.logger.Infof("Server starting on %s", addr)
			listenErr <- app.Listen(addr)
		}()

		// Set up graceful shutdown
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case err := <-listenErr:
			return fmt.Errorf("failed to start server: %w", err)
		case <-quit:
		}
		rt.logger.Infof("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		rt.logger.Infof("Server exited properly")
		return nil
	})
}

func moveAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("move needs a direction and a duration in seconds")
	}
	direction, err := robot.ParseDirection(c.Args().Get(0))
	if err != nil {
		return err
	}
	seconds, err := strconv.ParseFloat(c.Args().Get(1), 64)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", c.Args().Get(1), err)
	}

	return withRuntime(c, func(rt *controllerRuntime) error {
		if err := rt.robot.Move(direction, time.Duration(seconds*float64(time.Second))); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "moved %s for %gs\n", direction, seconds)
		return nil
	})
}

func rotateAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("rotate needs an angle in degrees")
	}
	angle, err := strconv.ParseFloat(c.Args().First(), 64)
	if err != nil {
		return fmt.Errorf("invalid angle %q: %w", c.Args().First(), err)
	}

	return withRuntime(c, func(rt *controllerRuntime) error {
		waitForHeading(rt.robot, 2*time.Second)
		result, err := rt.robot.Rotate(angle)
		if result.StateName == "" {
			return err
		}
		fmt.Fprintf(c.App.Writer, "rotation %s: final heading %.1f deg, error %.2f deg, %d commands in %v\n",
			result.StateName, motion.Degrees(result.FinalHeading), motion.Degrees(result.FinalErrorRad),
			result.Commands, result.Elapsed.Round(time.Millisecond))
		return err
	})
}

func rotationAction(c *cli.Context) error {
	return withRuntime(c, func(rt *controllerRuntime) error {
		waitForHeading(rt.robot, 2*time.Second)
		heading, err := rt.robot.Rotation()
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%.2f\n", heading)
		return nil
	})
}

func snapshotAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("snapshot needs an output file")
	}
	out := c.Args().First()

	return withRuntime(c, func(rt *controllerRuntime) error {
		snap, err := rt.robot.CameraSnapshot()
		if err != nil {
			return err
		}
		if dir := filepath.Dir(out); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}
		}
		if err := os.WriteFile(out, snap.PNG, 0644); err != nil {
			return fmt.Errorf("failed to write snapshot: %w", err)
		}
		fmt.Fprintf(c.App.Writer, "wrote %dx%d %s snapshot to %s\n", snap.Width, snap.Height, snap.Camera, out)
		return nil
	})
}

func tokenAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("token needs a subject")
	}
	cfg, err := config.LoadBootstrapConfig(c.String(flagConfigDir))
	if err != nil {
		return fmt.Errorf("failed to load bootstrap config: %w", err)
	}
	if cfg.Server.AuthSecret == "" {
		return fmt.Errorf("server.auth_secret is not set; authentication is disabled")
	}

	token, err := api.IssueToken(cfg.Server.AuthSecret, c.Args().First(), c.Duration(flagTTL))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, token)
	return nil
}
