package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/querykit/querykit-cli/internal/schema"
	"github.com/rs/zerolog"
)

// Compiler turns a model source bundle into a compiled artifact at destination
type Compiler interface {
	Compile(ctx context.Context, source, destination string) error
}

// NativeCompiler compiles models in-process from their XML contents
type NativeCompiler struct {
	logger zerolog.Logger
}

// NewNativeCompiler creates the built-in compiler
func NewNativeCompiler(logger zerolog.Logger) *NativeCompiler {
	return &NativeCompiler{
		logger: logger.With().Str("component", "native-compiler").Logger(),
	}
}

// Compile parses the source bundle and writes the compiled artifact
func (c *NativeCompiler) Compile(ctx context.Context, source, destination string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	model, err := schema.ParseDataModel(source)
	if err != nil {
		return err
	}

	c.logger.Debug().
		Str("source", source).
		Int("entity_count", len(model.Entities)).
		Msg("parsed model source")

	if err := os.MkdirAll(filepath.Dir(destination), 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	if err := schema.WriteModel(destination, model); err != nil {
		return fmt.Errorf("failed to write compiled model: %w", err)
	}

	c.logger.Debug().Str("destination", destination).Msg("wrote compiled model")
	return nil
}

// ExecCompiler runs an external compiler as "<command...> <source> <destination>"
type ExecCompiler struct {
	command []string
	logger  zerolog.Logger
	stdout  io.Writer
	stderr  io.Writer
}

// NewExecCompiler creates a compiler backed by an external command
func NewExecCompiler(command []string, logger zerolog.Logger) (*ExecCompiler, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("compiler command is empty")
	}
	if _, err := exec.LookPath(command[0]); err != nil {
		return nil, fmt.Errorf("compiler %q not found in PATH: %w", command[0], err)
	}

	return &ExecCompiler{
		command: command,
		logger:  logger.With().Str("component", "exec-compiler").Logger(),
		stdout:  os.Stderr,
		stderr:  os.Stderr,
	}, nil
}

// Compile runs the external compiler and waits for it to exit. A non-zero exit
// status is only logged; the loader decides whether the artifact is usable.
func (c *ExecCompiler) Compile(ctx context.Context, source, destination string) error {
	src, err := filepath.Abs(source)
	if err != nil {
		return err
	}
	dst, err := filepath.Abs(destination)
	if err != nil {
		return err
	}

	args := append(append([]string{}, c.command[1:]...), src, dst)
	cmd := exec.CommandContext(ctx, c.command[0], args...)
	cmd.Stdout = c.stdout
	cmd.Stderr = c.stderr

	c.logger.Debug().
		Str("command", cmd.String()).
		Msg("running model compiler")

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return fmt.Errorf("failed to run compiler: %w", err)
		}
		c.logger.Warn().
			Int("exit_code", exitErr.ExitCode()).
			Str("command", c.command[0]).
			Msg("model compiler exited with non-zero status")
	}

	return nil
}
