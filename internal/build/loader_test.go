package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test plan:
// 1. Path validation (extension, existence)
// 2. Compiled artifact naming (.mom / .momd)
// 3. Native compile + load of a model bundle
// 4. Compiler errors and missing artifacts become ErrCompilationFailure
// 5. External compiler exit status handling

const testContents = `<model>
    <entity name="Person" representedClassName=".Person">
        <attribute name="isActive" attributeType="Boolean"/>
        <relationship name="pets" toMany="YES" destinationEntity="Pet"/>
    </entity>
    <entity name="Pet" representedClassName="Pet">
        <attribute name="name" attributeType="String"/>
    </entity>
</model>`

func writeBundle(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(path, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "contents"), []byte(contents), 0644))
	return path
}

type mockCompiler struct {
	err   error
	calls []struct{ source, destination string }
	write []byte
}

func (m *mockCompiler) Compile(ctx context.Context, source, destination string) error {
	m.calls = append(m.calls, struct{ source, destination string }{source, destination})
	if m.write != nil {
		if err := os.WriteFile(destination, m.write, 0644); err != nil {
			return err
		}
	}
	return m.err
}

func TestValidateModelPath(t *testing.T) {
	dir := t.TempDir()
	model := writeBundle(t, dir, "People.xcdatamodel", testContents)
	versioned := filepath.Join(dir, "People.xcdatamodeld")
	require.NoError(t, os.MkdirAll(versioned, 0755))
	text := filepath.Join(dir, "People.txt")
	require.NoError(t, os.WriteFile(text, []byte("hello"), 0644))

	tests := []struct {
		name        string
		path        string
		wantErr     bool
		errContains string
	}{
		{name: "model bundle", path: model},
		{name: "model bundle with trailing slash", path: model + string(filepath.Separator)},
		{name: "versioned bundle", path: versioned},
		{name: "wrong extension", path: text, wantErr: true, errContains: "is not a Core Data model"},
		{name: "missing bundle", path: filepath.Join(dir, "Missing.xcdatamodel"), wantErr: true, errContains: "does not exist or is not readable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateModelPath(tt.path)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidInput))
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestCompiledPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/tmp/x", "People.mom"), CompiledPath("/tmp/x", "/src/People.xcdatamodel"))
	assert.Equal(t, filepath.Join("/tmp/x", "People.momd"), CompiledPath("/tmp/x", "/src/People.xcdatamodeld"))
}

func TestLoader_Load_Native(t *testing.T) {
	source := writeBundle(t, t.TempDir(), "People.xcdatamodel", testContents)
	loader := NewLoader(NewNativeCompiler(zerolog.Nop()), zerolog.Nop())

	model, err := loader.Load(context.Background(), source)
	require.NoError(t, err)
	require.Len(t, model.Entities, 2)
	assert.Equal(t, "Person", model.Entities[0].ClassName())
	assert.Len(t, model.Entities[0].Properties, 2)
}

func TestLoader_Load_InvalidInput(t *testing.T) {
	dir := t.TempDir()
	text := filepath.Join(dir, "model.txt")
	require.NoError(t, os.WriteFile(text, []byte("x"), 0644))

	compiler := &mockCompiler{}
	loader := NewLoader(compiler, zerolog.Nop())

	_, err := loader.Load(context.Background(), text)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Empty(t, compiler.calls, "compiler must not run for invalid input")
}

func TestLoader_Load_CompilerError(t *testing.T) {
	source := writeBundle(t, t.TempDir(), "People.xcdatamodel", testContents)
	compiler := &mockCompiler{err: errors.New("boom")}
	loader := NewLoader(compiler, zerolog.Nop())

	_, err := loader.Load(context.Background(), source)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCompilationFailure))
	assert.Contains(t, err.Error(), "boom")

	// Test: destination is a fresh temp location named after the source
	require.Len(t, compiler.calls, 1)
	assert.Equal(t, source, compiler.calls[0].source)
	assert.Equal(t, "People.mom", filepath.Base(compiler.calls[0].destination))
	assert.NotEqual(t, filepath.Dir(source), filepath.Dir(compiler.calls[0].destination))
}

func TestLoader_Load_UnreadableArtifact(t *testing.T) {
	source := writeBundle(t, t.TempDir(), "People.xcdatamodel", testContents)

	tests := []struct {
		name     string
		compiler *mockCompiler
	}{
		{name: "no artifact", compiler: &mockCompiler{}},
		{name: "garbage artifact", compiler: &mockCompiler{write: []byte("\xff\xff\xff")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := NewLoader(tt.compiler, zerolog.Nop())
			_, err := loader.Load(context.Background(), source)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrCompilationFailure))
		})
	}
}

func TestLoader_Load_RemovesTempDir(t *testing.T) {
	t.Setenv(KeepBuildDirEnv, "")
	source := writeBundle(t, t.TempDir(), "People.xcdatamodel", testContents)
	recorder := &recordingCompiler{inner: NewNativeCompiler(zerolog.Nop())}

	loader := NewLoader(recorder, zerolog.Nop())
	_, err := loader.Load(context.Background(), source)
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Dir(recorder.destination))
	assert.True(t, os.IsNotExist(statErr))
}

type recordingCompiler struct {
	inner       Compiler
	destination string
}

func (r *recordingCompiler) Compile(ctx context.Context, source, destination string) error {
	r.destination = destination
	return r.inner.Compile(ctx, source, destination)
}
