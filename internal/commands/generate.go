package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/querykit/querykit-cli/internal/build"
	"github.com/querykit/querykit-cli/internal/codegen"
	"github.com/querykit/querykit-cli/internal/watch"
)

// Generate renders one file per custom-class entity of the model at modelPath
// into outputPath. With the watch flag set it keeps regenerating on change
// until ctx is cancelled.
func (c *Controller) Generate(ctx context.Context, modelPath, outputPath string) error {
	s, err := c.loadSettings()
	if err != nil {
		return err
	}

	modelPath = filepath.Clean(modelPath)
	if err := build.ValidateModelPath(modelPath); err != nil {
		return err
	}

	if err := c.generate(ctx, s, modelPath, outputPath); err != nil {
		return err
	}

	if !c.Flags.Watch {
		return nil
	}
	return c.watch(ctx, s, modelPath, outputPath)
}

// generate performs a single load-and-render pass
func (c *Controller) generate(ctx context.Context, s *settings, modelPath, outputPath string) error {
	logger := c.logger("generate")

	renderer, err := codegen.LoadTemplate(s.template)
	if err != nil {
		return err
	}

	compiler, err := s.compiler(logger)
	if err != nil {
		return fmt.Errorf("%w: %v", build.ErrCompilationFailure, err)
	}

	model, err := build.NewLoader(compiler, logger).Load(ctx, modelPath)
	if err != nil {
		return err
	}

	generator := codegen.NewGenerator(renderer, codegen.Options{
		OutputPath: outputPath,
		Extension:  s.extension,
	}, logger)

	result, err := generator.Generate(model)
	if err != nil {
		return err
	}

	c.report(result)
	return nil
}

// watch regenerates whenever the model or the template changes
func (c *Controller) watch(ctx context.Context, s *settings, modelPath, outputPath string) error {
	logger := c.logger("watch")

	regenerate := func(ctx context.Context) {
		logger.Info().Str("model", modelPath).Msg("change detected, regenerating")
		if err := c.generate(ctx, s, modelPath, outputPath); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("regeneration failed")
		}
	}

	w, err := watch.NewWatcher(time.Duration(s.config.Watch.Debounce), s.config.Watch.Exclude, regenerate, logger)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(modelPath); err != nil {
		return err
	}
	if s.template != "" {
		if err := w.Add(s.template); err != nil {
			return err
		}
	}

	logger.Info().Str("model", modelPath).Msg("watching for changes")
	// Cancellation is the normal way out of watch mode
	if err := w.Start(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
