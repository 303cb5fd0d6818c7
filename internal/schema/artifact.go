package schema

import (
	"errors"
	"fmt"
	"os"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ArtifactFormat identifies the compiled model encoding
const ArtifactFormat = "querykit.model/v1"

const (
	kindAttribute    = "attribute"
	kindRelationship = "relationship"
)

var (
	ErrUnknownFormat   = errors.New("unknown compiled model format")
	ErrDanglingRef     = errors.New("reference to unknown entity")
	ErrInheritanceLoop = errors.New("inheritance cycle")
)

// MarshalModel encodes a model as a compiled artifact
func MarshalModel(m *Model) ([]byte, error) {
	entities := make([]*structpb.Value, 0, len(m.Entities))
	for i := range m.Entities {
		e := &m.Entities[i]

		props := make([]*structpb.Value, 0, len(e.Properties))
		for _, p := range e.Properties {
			fields := map[string]*structpb.Value{
				"name": structpb.NewStringValue(p.PropertyName()),
			}
			switch p := p.(type) {
			case *Attribute:
				fields["kind"] = structpb.NewStringValue(kindAttribute)
				fields["attributeType"] = structpb.NewStringValue(string(p.Type))
				fields["valueClassName"] = structpb.NewStringValue(p.ValueClassName)
			case *Relationship:
				fields["kind"] = structpb.NewStringValue(kindRelationship)
				if dest := m.Entity(p.Destination); dest != nil {
					fields["destination"] = structpb.NewStringValue(dest.Name)
				}
				fields["toMany"] = structpb.NewBoolValue(p.ToMany)
				fields["ordered"] = structpb.NewBoolValue(p.Ordered)
			}
			props = append(props, structpb.NewStructValue(&structpb.Struct{Fields: fields}))
		}

		fields := map[string]*structpb.Value{
			"name":       structpb.NewStringValue(e.Name),
			"className":  structpb.NewStringValue(e.RepresentedClass),
			"abstract":   structpb.NewBoolValue(e.Abstract),
			"properties": structpb.NewListValue(&structpb.ListValue{Values: props}),
		}
		if parent := m.Superentity(e); parent != nil {
			fields["superentity"] = structpb.NewStringValue(parent.Name)
		}
		entities = append(entities, structpb.NewStructValue(&structpb.Struct{Fields: fields}))
	}

	root := &structpb.Struct{Fields: map[string]*structpb.Value{
		"format":   structpb.NewStringValue(ArtifactFormat),
		"entities": structpb.NewListValue(&structpb.ListValue{Values: entities}),
	}}

	return proto.MarshalOptions{Deterministic: true}.Marshal(root)
}

// UnmarshalModel decodes a compiled artifact
func UnmarshalModel(data []byte) (*Model, error) {
	var root structpb.Struct
	if err := proto.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to decode compiled model: %w", err)
	}

	if format := root.GetFields()["format"].GetStringValue(); format != ArtifactFormat {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	raw := root.GetFields()["entities"].GetListValue().GetValues()
	model := &Model{Entities: make([]Entity, len(raw))}
	index := make(map[string]int, len(raw))
	for i, v := range raw {
		name := v.GetStructValue().GetFields()["name"].GetStringValue()
		index[name] = i
	}

	lookup := func(name string) (int, error) {
		if name == "" {
			return NoEntity, nil
		}
		i, ok := index[name]
		if !ok {
			return NoEntity, fmt.Errorf("%w: %q", ErrDanglingRef, name)
		}
		return i, nil
	}

	for i, v := range raw {
		fields := v.GetStructValue().GetFields()
		superentity, err := lookup(fields["superentity"].GetStringValue())
		if err != nil {
			return nil, err
		}

		entity := Entity{
			Name:             fields["name"].GetStringValue(),
			RepresentedClass: fields["className"].GetStringValue(),
			Abstract:         fields["abstract"].GetBoolValue(),
			Superentity:      superentity,
		}

		for _, pv := range fields["properties"].GetListValue().GetValues() {
			pf := pv.GetStructValue().GetFields()
			switch kind := pf["kind"].GetStringValue(); kind {
			case kindAttribute:
				entity.Properties = append(entity.Properties, &Attribute{
					Name:           pf["name"].GetStringValue(),
					Type:           AttributeType(pf["attributeType"].GetStringValue()),
					ValueClassName: pf["valueClassName"].GetStringValue(),
				})
			case kindRelationship:
				destination, err := lookup(pf["destination"].GetStringValue())
				if err != nil {
					return nil, err
				}
				entity.Properties = append(entity.Properties, &Relationship{
					Name:        pf["name"].GetStringValue(),
					Destination: destination,
					ToMany:      pf["toMany"].GetBoolValue(),
					Ordered:     pf["ordered"].GetBoolValue(),
				})
			default:
				return nil, fmt.Errorf("entity %q: unknown property kind %q", entity.Name, kind)
			}
		}

		model.Entities[i] = entity
	}

	if err := checkAcyclic(model); err != nil {
		return nil, err
	}

	return model, nil
}

// WriteModel writes the compiled artifact for m to path
func WriteModel(path string, m *Model) error {
	data, err := MarshalModel(m)
	if err != nil {
		return fmt.Errorf("failed to encode compiled model: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// LoadModel opens a compiled artifact
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read compiled model: %w", err)
	}
	return UnmarshalModel(data)
}

func checkAcyclic(m *Model) error {
	for i := range m.Entities {
		steps := 0
		for idx := m.Entities[i].Superentity; idx != NoEntity; idx = m.Entities[idx].Superentity {
			steps++
			if steps > len(m.Entities) {
				return fmt.Errorf("%w involving entity %q", ErrInheritanceLoop, m.Entities[i].Name)
			}
		}
	}
	return nil
}
