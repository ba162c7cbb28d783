package robot

import (
	"context"
	"fmt"
	"sync"

	"github.com/open-teleop/motion-controller/pkg/camera"
	"github.com/open-teleop/motion-controller/pkg/config"
	customlog "github.com/open-teleop/motion-controller/pkg/log"
	"github.com/open-teleop/motion-controller/pkg/motion"
	"github.com/open-teleop/motion-controller/pkg/sim"
	"github.com/open-teleop/motion-controller/pkg/telemetry"
	"github.com/open-teleop/motion-controller/pkg/zeromq"
)

// Options are the dependencies a backend is built from.
type Options struct {
	Bootstrap *config.BootstrapConfig
	Speeds    SpeedSource
	// ZeroMQ carries commands, telemetry and frames for the unitree backend.
	ZeroMQ *zeromq.ZeroMQService
	Logger customlog.Logger
}

// New builds the backend selected by opts.Bootstrap.Robot.Backend.
func New(opts Options) (Robot, error) {
	cfg := opts.Bootstrap
	if opts.Speeds == nil {
		opts.Speeds = StaticSpeeds(config.DefaultTuning)
	}

	switch cfg.Robot.Backend {
	case config.BackendUnitree:
		if opts.ZeroMQ == nil {
			return nil, fmt.Errorf("unitree backend needs a ZeroMQ service")
		}
		return NewUnitree(opts)
	case config.BackendSim:
		r, _ := NewSim(opts, sim.Options{})
		return r, nil
	case config.BackendFake:
		return NewFakeRobot(cfg.Robot.Description, opts.Logger), nil
	}
	return nil, fmt.Errorf("unknown robot backend %q", cfg.Robot.Backend)
}

func controllerOptions(cfg *config.BootstrapConfig) motion.Options {
	opts := motion.DefaultOptions()
	opts.CommandTopic = cfg.ZeroMQ.CommandTopic
	opts.DefaultHeight = cfg.Motion.DefaultHeight
	opts.RateHz = cfg.Motion.RateHz
	opts.ToleranceDeg = cfg.Motion.ToleranceDeg
	opts.MaxSampleAge = cfg.Motion.MaxSampleAge()
	return opts
}

// NewUnitree builds the backend that talks to the robot bridge over ZeroMQ:
// commands on the service's PUB socket, attitude and camera frames on SUB sockets.
func NewUnitree(opts Options) (*ControllerRobot, error) {
	cfg := opts.Bootstrap
	svc := opts.ZeroMQ

	controller := motion.NewController(svc, controllerOptions(cfg), opts.Logger)

	attitude := telemetry.NewHandler(controller.OnTelemetry, opts.Logger)
	if _, err := svc.Subscribe(cfg.ZeroMQ.TelemetryAddress, []string{cfg.ZeroMQ.TelemetryTopic}, attitude); err != nil {
		return nil, fmt.Errorf("subscribe to telemetry: %w", err)
	}

	var snapshotter *camera.Snapshotter
	if cfg.ZeroMQ.CameraAddress != "" {
		frames := zeromq.NewFrameClient(zeromq.DefaultCameras, nil)
		if _, err := svc.Subscribe(cfg.ZeroMQ.CameraAddress, zeromq.DefaultCameras, frames); err != nil {
			return nil, fmt.Errorf("subscribe to camera frames: %w", err)
		}
		poller := camera.NewPoller(frames, cfg.Camera.Name, cfg.Camera.PollInterval(), nil, opts.Logger)
		snapshotter = camera.NewSnapshotter(poller)
	}

	if err := svc.Start(); err != nil {
		return nil, fmt.Errorf("start zeromq service: %w", err)
	}

	return NewControllerRobot(config.BackendUnitree, cfg.Robot.Description, controller, snapshotter,
		cfg.Camera.Deadline(), opts.Speeds, opts.Logger), nil
}

// NewSim builds a backend around an in-process simulator that runs until Close.
func NewSim(opts Options, simOpts sim.Options) (*ControllerRobot, *sim.Simulator) {
	cfg := opts.Bootstrap
	simulator := sim.New(simOpts, opts.Logger)

	controller := motion.NewController(simulator, controllerOptions(cfg), opts.Logger)
	attitude := telemetry.NewHandler(controller.OnTelemetry, opts.Logger)
	simulator.OnTelemetry(attitude.HandleMessage)

	poller := camera.NewPoller(simulator, cfg.Camera.Name, cfg.Camera.PollInterval(), nil, opts.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := simulator.Run(ctx); err != nil {
			opts.Logger.Errorf("Simulator exited: %v", err)
		}
	}()

	stop := func() error {
		cancel()
		wg.Wait()
		return nil
	}
	return NewControllerRobot(config.BackendSim, cfg.Robot.Description, controller, camera.NewSnapshotter(poller),
		cfg.Camera.Deadline(), opts.Speeds, opts.Logger, stop), simulator
}
