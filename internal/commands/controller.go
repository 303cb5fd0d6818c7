// Package commands contains the CLI commands for the application
package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/querykit/querykit-cli/internal/build"
	"github.com/querykit/querykit-cli/internal/codegen"
	"github.com/querykit/querykit-cli/internal/config"
)

type Flags struct {
	LogLevel  string
	Template  string
	Extension string
	Config    string
	Watch     bool
}

type Controller struct {
	Flags *Flags

	// Out receives the per-entity progress lines. Defaults to os.Stdout.
	Out io.Writer
}

// settings is the effective configuration after merging flags, config file and defaults
type settings struct {
	template  string
	extension string
	config    *config.Config
}

func (c *Controller) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

func (c *Controller) logger(component string) zerolog.Logger {
	return log.Logger.With().Str("command", component).Logger()
}

// loadSettings resolves the configuration. Flags win over the config file,
// which wins over built-in defaults.
func (c *Controller) loadSettings() (*settings, error) {
	var (
		cfg *config.Config
		err error
	)

	if c.Flags.Config != "" {
		cfg, err = config.LoadConfigFromPath(c.Flags.Config)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
	} else {
		wd, wdErr := os.Getwd()
		if wdErr != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", wdErr)
		}
		cfg, _, err = config.LoadConfig(wd)
		switch {
		case errors.Is(err, config.ErrNotFound):
			cfg = config.Default()
		case err != nil:
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
	}

	s := &settings{
		template:  cfg.Template,
		extension: cfg.Extension,
		config:    cfg,
	}
	if c.Flags.Template != "" {
		s.template = c.Flags.Template
	}
	if c.Flags.Extension != "" {
		s.extension = c.Flags.Extension
	}
	if s.extension == "" {
		s.extension = codegen.DefaultExtension
	}

	return s, nil
}

// compiler returns the configured model compiler
func (s *settings) compiler(logger zerolog.Logger) (build.Compiler, error) {
	if len(s.config.Compiler.Command) == 0 {
		return build.NewNativeCompiler(logger), nil
	}
	return build.NewExecCompiler(s.config.Compiler.Command, logger)
}

// report prints one line per entity of a generation run
func (c *Controller) report(result *codegen.Result) {
	out := c.out()
	arrow := color.New(color.FgGreen).Sprint("->")
	failed := color.New(color.FgRed)

	for _, e := range result.Entities {
		switch e.Status {
		case codegen.StatusSkipped:
			fmt.Fprintf(out, "-> Skipping entity '%s', doesn't use a custom class.\n", e.EntityName)
		case codegen.StatusGenerated:
			fmt.Fprintf(out, "%s Generated '%s' '%s'\n", arrow, e.ClassName, e.Path)
		case codegen.StatusFailed:
			failed.Fprintf(out, "-> Failed '%s': %v\n", e.ClassName, e.Err)
		}
	}
}
