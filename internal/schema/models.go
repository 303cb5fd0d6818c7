package schema

import "strings"

// BaseObjectClass is the class name of entities that do not declare a custom class
const BaseObjectClass = "NSManagedObject"

// NoEntity marks an absent entity reference (no superentity, no destination)
const NoEntity = -1

// currentModuleMarker prefixes class names that live in the "current module"
const currentModuleMarker = "."

// Model is the root of a compiled data model
type Model struct {
	Entities []Entity
}

// Entity represents a single entity of the model. RepresentedClass is the class
// name as declared, possibly carrying the current module marker.
// Superentity is an index into Model.Entities, or NoEntity.
type Entity struct {
	Name             string
	RepresentedClass string
	Abstract         bool
	Superentity      int
	Properties       []Property
}

// AttributeType is the declared scalar type of an attribute
type AttributeType string

const (
	AttributeTypeUndefined     AttributeType = "Undefined"
	AttributeTypeInteger16     AttributeType = "Integer 16"
	AttributeTypeInteger32     AttributeType = "Integer 32"
	AttributeTypeInteger64     AttributeType = "Integer 64"
	AttributeTypeDecimal       AttributeType = "Decimal"
	AttributeTypeDouble        AttributeType = "Double"
	AttributeTypeFloat         AttributeType = "Float"
	AttributeTypeString        AttributeType = "String"
	AttributeTypeBoolean       AttributeType = "Boolean"
	AttributeTypeDate          AttributeType = "Date"
	AttributeTypeBinary        AttributeType = "Binary"
	AttributeTypeTransformable AttributeType = "Transformable"
	AttributeTypeUUID          AttributeType = "UUID"
	AttributeTypeURI           AttributeType = "URI"
	AttributeTypeObjectID      AttributeType = "ObjectID"
)

// Property is either an *Attribute or a *Relationship
type Property interface {
	PropertyName() string
	isProperty()
}

// Attribute is a scalar-typed property
type Attribute struct {
	Name           string
	Type           AttributeType
	ValueClassName string
}

// Relationship links an entity to another entity.
// Destination is an index into Model.Entities, or NoEntity.
type Relationship struct {
	Name        string
	Destination int
	ToMany      bool
	Ordered     bool
}

func (a *Attribute) PropertyName() string    { return a.Name }
func (r *Relationship) PropertyName() string { return r.Name }

func (*Attribute) isProperty()    {}
func (*Relationship) isProperty() {}

// ClassName returns the entity's class name without the current module marker.
// Only one leading marker is stripped.
func (e *Entity) ClassName() string {
	return StripModuleMarker(e.RepresentedClass)
}

// StripModuleMarker strips exactly one leading "current module" marker
func StripModuleMarker(className string) string {
	return strings.TrimPrefix(className, currentModuleMarker)
}

// UsesCustomClass reports whether the entity declares a class other than the base object type
func (e *Entity) UsesCustomClass() bool {
	return e.ClassName() != BaseObjectClass
}

// Property returns the property with the given name, or nil
func (e *Entity) Property(name string) Property {
	for _, p := range e.Properties {
		if p.PropertyName() == name {
			return p
		}
	}
	return nil
}

// Entity returns the entity at index i, or nil when i is out of range
func (m *Model) Entity(i int) *Entity {
	if i < 0 || i >= len(m.Entities) {
		return nil
	}
	return &m.Entities[i]
}

// EntityByName returns the entity with the given name, or nil
func (m *Model) EntityByName(name string) *Entity {
	if i := m.indexOf(name); i != NoEntity {
		return &m.Entities[i]
	}
	return nil
}

// Superentity returns the parent of e, or nil
func (m *Model) Superentity(e *Entity) *Entity {
	return m.Entity(e.Superentity)
}

// HasSuperProperty reports whether an ancestor of e with a custom class already
// declares a property called name. Ancestors using the base object type are
// passed over but the walk continues above them.
func (m *Model) HasSuperProperty(e *Entity, name string) bool {
	seen := make(map[int]bool)
	for idx := e.Superentity; idx != NoEntity && !seen[idx]; {
		seen[idx] = true
		parent := m.Entity(idx)
		if parent == nil {
			return false
		}
		if parent.UsesCustomClass() && parent.Property(name) != nil {
			return true
		}
		idx = parent.Superentity
	}
	return false
}

func (m *Model) indexOf(name string) int {
	for i := range m.Entities {
		if m.Entities[i].Name == name {
			return i
		}
	}
	return NoEntity
}
