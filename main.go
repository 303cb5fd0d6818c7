package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/querykit/querykit-cli/internal/commands"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "0.2.0"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	short := commit
	if len(commit) > 7 {
		short = commit[:7]
	}

	return fmt.Sprintf("%s (%s) %s", version, short, date)
}

func main() {
	ctrl := &commands.Controller{
		Flags: &commands.Flags{},
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	app := &cli.Command{
		Name:      "querykit",
		Usage:     "Generate QueryKit attribute extensions from a Core Data model",
		ArgsUsage: "<model> <output-directory>",
		Version:   build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "template",
				Usage:       "path to a custom template (defaults to the built-in Swift template)",
				Destination: &ctrl.Flags.Template,
			},
			&cli.StringFlag{
				Name:        "extension",
				Usage:       "file extension of generated files (default: swift)",
				Destination: &ctrl.Flags.Extension,
			},
			&cli.StringFlag{
				Name:        "config",
				Usage:       "path to a querykit.json or querykit.yaml file",
				Destination: &ctrl.Flags.Config,
			},
			&cli.BoolFlag{
				Name:        "watch",
				Usage:       "regenerate whenever the model or template changes",
				Destination: &ctrl.Flags.Watch,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("QUERYKIT_LOG_LEVEL"),
				Value:       "warn",
				Destination: &ctrl.Flags.LogLevel,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			level, err := zerolog.ParseLevel(c.String("log-level"))
			if err != nil {
				return ctx, fmt.Errorf("failed to parse log level: %w", err)
			}

			log.Logger = log.Level(level)

			return ctx, nil
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 2 {
				cli.ShowAppHelp(c)
				return cli.Exit("", 1)
			}
			return ctrl.Generate(ctx, c.Args().Get(0), c.Args().Get(1))
		},
		Commands: []*cli.Command{
			{
				Name:      "compile",
				Usage:     "Compile a Core Data model into the format read by the generator",
				ArgsUsage: "<source> <destination>",
				Action: func(ctx context.Context, c *cli.Command) error {
					if c.Args().Len() != 2 {
						cli.ShowSubcommandHelp(c)
						return cli.Exit("", 1)
					}
					return ctrl.Compile(ctx, c.Args().Get(0), c.Args().Get(1))
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
