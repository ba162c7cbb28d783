package main

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/open-teleop/motion-controller/domain/robot"
	"github.com/open-teleop/motion-controller/pkg/config"
	customlog "github.com/open-teleop/motion-controller/pkg/log"
	"github.com/open-teleop/motion-controller/pkg/processing"
	"github.com/open-teleop/motion-controller/pkg/zeromq"
	"github.com/open-teleop/motion-controller/services"
)

// controllerRuntime is everything a command needs, built from the bootstrap config.
type controllerRuntime struct {
	cfg      *config.BootstrapConfig
	logger   customlog.Logger
	registry *processing.TopicRegistry
	tuning   services.TuningConfigService
	zmq      *zeromq.ZeroMQService
	robot    robot.Robot
}

// newRuntime wires logging, tuning, transport and the robot backend.
func newRuntime(cfg *config.BootstrapConfig, logger customlog.Logger) (*controllerRuntime, error) {
	rt := &controllerRuntime{
		cfg:      cfg,
		logger:   logger,
		registry: processing.NewTopicRegistry(logger),
	}

	tuning, err := services.NewTuningConfigService(cfg.Data.TuningConfigPath(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create tuning service: %w", err)
	}
	rt.tuning = tuning
	tuning.OnUpdate(rt.registry.LoadFromConfig)

	if cfg.Robot.Backend == config.BackendUnitree {
		svc, err := zeromq.NewZeroMQService(cfg.ZeroMQ, rt.registry, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create ZeroMQ service: %w", err)
		}
		rt.zmq = svc
		tuning.SetPublisher(zeromq.NewConfigPublisher(svc, cfg.ZeroMQ.NotifyTopic, logger))
	}

	r, err := robot.New(robot.Options{
		Bootstrap: cfg,
		Speeds:    tuning,
		ZeroMQ:    rt.zmq,
		Logger:    logger,
	})
	if err != nil {
		if rt.zmq != nil {
			err = multierr.Append(err, rt.zmq.Stop())
		}
		return nil, fmt.Errorf("failed to create %s robot: %w", cfg.Robot.Backend, err)
	}
	rt.robot = r

	logger.Infof("Robot backend %q ready: %s", cfg.Robot.Backend, r.Description())
	return rt, nil
}

// Close stops the robot first so its final stop still has a transport.
func (rt *controllerRuntime) Close() error {
	err := rt.robot.Close()
	if rt.zmq != nil {
		err = multierr.Append(err, rt.zmq.Stop())
	}
	return err
}
