// Package build compiles data model bundles and loads the compiled models
package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/querykit/querykit-cli/internal/schema"
	"github.com/rs/zerolog"
)

var (
	// ErrInvalidInput is returned for model paths that cannot be used
	ErrInvalidInput = errors.New("invalid input")
	// ErrCompilationFailure is returned when no usable compiled model was produced
	ErrCompilationFailure = errors.New("compilation failure")
)

// KeepBuildDirEnv preserves the temporary compile directory when set to any non-empty value
const KeepBuildDirEnv = "QUERYKIT_KEEP_BUILD_DIR"

// Loader compiles a model bundle into a temporary directory and opens the result
type Loader struct {
	compiler Compiler
	logger   zerolog.Logger
}

// NewLoader creates a loader that compiles with the given compiler
func NewLoader(compiler Compiler, logger zerolog.Logger) *Loader {
	return &Loader{
		compiler: compiler,
		logger:   logger.With().Str("component", "model-loader").Logger(),
	}
}

// ValidateModelPath checks that path names a readable .xcdatamodel or .xcdatamodeld bundle
func ValidateModelPath(path string) error {
	ext := strings.TrimPrefix(filepath.Ext(filepath.Clean(path)), ".")
	if ext != schema.ModelExtension && ext != schema.VersionedModelExtension {
		return fmt.Errorf("%w: '%s' is not a Core Data model", ErrInvalidInput, path)
	}
	return ValidateReadable(path)
}

// ValidateReadable checks that path exists and can be opened
func ValidateReadable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: '%s' does not exist or is not readable", ErrInvalidInput, path)
	}
	return f.Close()
}

// CompiledPath returns the artifact path for source inside dir. Versioned
// bundles compile to .momd, single models to .mom.
func CompiledPath(dir, source string) string {
	ext := filepath.Ext(source)
	name := strings.TrimSuffix(filepath.Base(source), ext)
	if strings.HasSuffix(ext, "d") {
		return filepath.Join(dir, name+".momd")
	}
	return filepath.Join(dir, name+".mom")
}

// Load validates source, compiles it and opens the compiled model
func (l *Loader) Load(ctx context.Context, source string) (*schema.Model, error) {
	source = filepath.Clean(source)
	if err := ValidateModelPath(source); err != nil {
		return nil, err
	}

	tmpDir, err := os.MkdirTemp("", "querykit-model-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() {
		if os.Getenv(KeepBuildDirEnv) != "" {
			l.logger.Info().
				Str("path", tmpDir).
				Msg(KeepBuildDirEnv + " is set - preserving compiled model directory")
			return
		}
		os.RemoveAll(tmpDir)
	}()

	destination := CompiledPath(tmpDir, source)
	l.logger.Debug().
		Str("source", source).
		Str("destination", destination).
		Msg("compiling model")

	if err := l.compiler.Compile(ctx, source, destination); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrCompilationFailure, err)
	}

	model, err := schema.LoadModel(destination)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load compiled model for '%s': %v", ErrCompilationFailure, source, err)
	}

	l.logger.Debug().
		Int("entity_count", len(model.Entities)).
		Msg("loaded compiled model")

	return model, nil
}
