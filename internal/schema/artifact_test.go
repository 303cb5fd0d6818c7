package schema

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestWriteModel_LoadModel(t *testing.T) {
	// Test: a parsed model survives compilation with references resolved by index
	parsed, err := ParseContents([]byte(peopleContents))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "People.mom")
	require.NoError(t, WriteModel(path, parsed))

	loaded, err := LoadModel(path)
	require.NoError(t, err)
	require.Len(t, loaded.Entities, len(parsed.Entities))

	employee := loaded.EntityByName("Employee")
	require.NotNil(t, employee)
	assert.Equal(t, "Person", loaded.Superentity(employee).Name)
	assert.Len(t, employee.Properties, 6)

	reports := employee.Property("reports").(*Relationship)
	assert.Equal(t, "Employee", loaded.Entity(reports.Destination).Name)
	assert.True(t, reports.Ordered)

	pet := loaded.EntityByName("Pet")
	assert.True(t, pet.Abstract)
	assert.Equal(t, "UIImage", pet.Property("photo").(*Attribute).ValueClassName)
	assert.Equal(t, AttributeTypeTransformable, pet.Property("photo").(*Attribute).Type)

	assert.Equal(t, ".Person", loaded.EntityByName("Person").RepresentedClass)
	assert.Equal(t, NoEntity, loaded.EntityByName("Log").Superentity)
}

func TestMarshalModel_Deterministic(t *testing.T) {
	parsed, err := ParseContents([]byte(peopleContents))
	require.NoError(t, err)

	first, err := MarshalModel(parsed)
	require.NoError(t, err)
	second, err := MarshalModel(parsed)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestLoadModel_MissingFile(t *testing.T) {
	_, err := LoadModel(filepath.Join(t.TempDir(), "nope.mom"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read compiled model")
}

func TestUnmarshalModel_Errors(t *testing.T) {
	encode := func(t *testing.T, v map[string]any) []byte {
		s, err := structpb.NewStruct(v)
		require.NoError(t, err)
		data, err := proto.Marshal(s)
		require.NoError(t, err)
		return data
	}

	t.Run("garbage", func(t *testing.T) {
		_, err := UnmarshalModel([]byte("not a protobuf \xff\xff"))
		require.Error(t, err)
	})

	t.Run("wrong format", func(t *testing.T) {
		_, err := UnmarshalModel(encode(t, map[string]any{"format": "other/v9"}))
		assert.True(t, errors.Is(err, ErrUnknownFormat))
	})

	t.Run("dangling superentity", func(t *testing.T) {
		data := encode(t, map[string]any{
			"format": ArtifactFormat,
			"entities": []any{
				map[string]any{"name": "A", "className": "A", "superentity": "Missing"},
			},
		})
		_, err := UnmarshalModel(data)
		assert.True(t, errors.Is(err, ErrDanglingRef))
	})

	t.Run("cycle", func(t *testing.T) {
		data := encode(t, map[string]any{
			"format": ArtifactFormat,
			"entities": []any{
				map[string]any{"name": "A", "className": "A", "superentity": "B"},
				map[string]any{"name": "B", "className": "B", "superentity": "A"},
			},
		})
		_, err := UnmarshalModel(data)
		assert.True(t, errors.Is(err, ErrInheritanceLoop))
	})

	t.Run("unknown property kind", func(t *testing.T) {
		data := encode(t, map[string]any{
			"format": ArtifactFormat,
			"entities": []any{
				map[string]any{
					"name": "A", "className": "A",
					"properties": []any{map[string]any{"kind": "fetched", "name": "x"}},
				},
			},
		})
		_, err := UnmarshalModel(data)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown property kind")
	})
}
