package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/querykit/querykit-cli/internal/build"
)

// Compile compiles a model bundle into the artifact the generator loads. It
// accepts the same arguments as the external compiler command, so it can be
// configured as one.
func (c *Controller) Compile(ctx context.Context, source, destination string) error {
	source = filepath.Clean(source)
	if err := build.ValidateModelPath(source); err != nil {
		return err
	}

	compiler := build.NewNativeCompiler(c.logger("compile"))
	if err := compiler.Compile(ctx, source, destination); err != nil {
		return fmt.Errorf("%w: %v", build.ErrCompilationFailure, err)
	}

	return nil
}
