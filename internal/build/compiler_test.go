package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/querykit/querykit-cli/internal/schema"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNativeCompiler_Compile(t *testing.T) {
	source := writeBundle(t, t.TempDir(), "People.xcdatamodel", testContents)
	destination := filepath.Join(t.TempDir(), "nested", "People.mom")

	err := NewNativeCompiler(zerolog.Nop()).Compile(context.Background(), source, destination)
	require.NoError(t, err)

	model, err := schema.LoadModel(destination)
	require.NoError(t, err)
	require.Len(t, model.Entities, 2)

	pets := model.Entities[0].Property("pets").(*schema.Relationship)
	assert.Equal(t, "Pet", model.Entity(pets.Destination).Name)
}

func TestNativeCompiler_Compile_BadSource(t *testing.T) {
	source := writeBundle(t, t.TempDir(), "Broken.xcdatamodel", "<model><entity")
	destination := filepath.Join(t.TempDir(), "Broken.mom")

	err := NewNativeCompiler(zerolog.Nop()).Compile(context.Background(), source, destination)
	require.Error(t, err)

	_, statErr := os.Stat(destination)
	assert.True(t, os.IsNotExist(statErr))
}

func TestNativeCompiler_Compile_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewNativeCompiler(zerolog.Nop()).Compile(ctx, "unused", "unused")
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewExecCompiler(t *testing.T) {
	_, err := NewExecCompiler(nil, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compiler command is empty")

	_, err = NewExecCompiler([]string{"querykit-definitely-not-installed"}, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found in PATH")
}

func TestExecCompiler_NonZeroExitIsNotFatal(t *testing.T) {
	compiler, err := NewExecCompiler([]string{"false"}, zerolog.Nop())
	if err != nil {
		t.Skip("false not available")
	}

	err = compiler.Compile(context.Background(), "In.xcdatamodel", filepath.Join(t.TempDir(), "In.mom"))
	assert.NoError(t, err)
}

func TestLoader_Load_ExecCompilerWithoutArtifact(t *testing.T) {
	compiler, err := NewExecCompiler([]string{"true"}, zerolog.Nop())
	if err != nil {
		t.Skip("true not available")
	}

	source := writeBundle(t, t.TempDir(), "People.xcdatamodel", testContents)
	_, err = NewLoader(compiler, zerolog.Nop()).Load(context.Background(), source)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCompilationFailure))
}
