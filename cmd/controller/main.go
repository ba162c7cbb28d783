package main

import (
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"
)

const (
	// Flags.
	flagConfigDir = "config-dir"
	flagLogLevel  = "log-level"
	flagTTL       = "ttl"
	flagAccessLog = "access-log"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatalf("controller: %v", err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "controller",
		Usage: "closed-loop motion controller for a walking robot",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfigDir,
				Aliases: []string{"c"},
				Value:   "config",
				EnvVars: []string{"OPENTELEOP_CONFIG_DIR"},
				Usage:   "load controller_config.yaml from `DIR`",
			},
			&cli.StringFlag{
				Name:  flagLogLevel,
				Usage: "override the configured log level",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP capability API until interrupted",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  flagAccessLog,
						Value: true,
						Usage: "log every HTTP request",
					},
				},
				Action: serveAction,
			},
			{
				Name:      "move",
				Usage:     "walk in a direction for a number of seconds",
				ArgsUsage: "<forward|backward|left|right> <seconds>",
				Action:    moveAction,
			},
			{
				Name:      "rotate",
				Usage:     "turn in place by an angle in degrees, positive is counter-clockwise",
				ArgsUsage: "<degrees>",
				Action:    rotateAction,
			},
			{
				Name:   "rotation",
				Usage:  "print the current heading in degrees",
				Action: rotationAction,
			},
			{
				Name:      "snapshot",
				Usage:     "save a camera frame as PNG",
				ArgsUsage: "<out.png>",
				Action:    snapshotAction,
			},
			{
				Name:      "token",
				Usage:     "print a bearer token signed with the configured auth secret",
				ArgsUsage: "<subject>",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  flagTTL,
						Value: 24 * time.Hour,
						Usage: "token lifetime",
					},
				},
				Action: tokenAction,
			},
		},
	}
}
