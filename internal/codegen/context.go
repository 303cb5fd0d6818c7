package codegen

import (
	"fmt"

	"github.com/querykit/querykit-cli/internal/schema"
)

// OrderedSetType is the platform type used for ordered to-many relationships
const OrderedSetType = "NSOrderedSet"

// unknownEntityName is used for entities without a name
const unknownEntityName = "Unknown"

// attributeTypeNames overrides the value class of some attribute types
var attributeTypeNames = map[schema.AttributeType]string{
	schema.AttributeTypeBoolean: "Bool",
	schema.AttributeTypeString:  "String",
}

// AttributeDescription is a single accessor exposed to the template
type AttributeDescription struct {
	Name string
	Type string
}

// Context is the template context for one entity
type Context struct {
	ClassName  string
	IsAbstract bool
	EntityName string
	Attributes []AttributeDescription
}

// Values returns the name/value mapping handed to templates
func (c Context) Values() map[string]any {
	attributes := make([]map[string]string, 0, len(c.Attributes))
	for _, a := range c.Attributes {
		attributes = append(attributes, map[string]string{
			"name": a.Name,
			"type": a.Type,
		})
	}

	return map[string]any{
		"className":  c.ClassName,
		"isAbstract": c.IsAbstract,
		"entityName": c.EntityName,
		"attributes": attributes,
	}
}

// BuildContext assembles the template context for entity e of model m.
// Properties already declared by a custom-class ancestor are left out.
func BuildContext(m *schema.Model, e *schema.Entity) Context {
	ctx := Context{
		ClassName:  e.ClassName(),
		IsAbstract: e.Abstract,
		EntityName: e.Name,
		Attributes: []AttributeDescription{},
	}
	if ctx.EntityName == "" {
		ctx.EntityName = unknownEntityName
	}

	for _, p := range e.Properties {
		if m.HasSuperProperty(e, p.PropertyName()) {
			continue
		}
		if desc, ok := describe(m, p); ok {
			ctx.Attributes = append(ctx.Attributes, desc)
		}
	}

	return ctx
}

// describe maps a property to its rendered name and type. Attributes without a
// value class and relationships without a destination have no description.
func describe(m *schema.Model, p schema.Property) (AttributeDescription, bool) {
	switch p := p.(type) {
	case *schema.Attribute:
		typ, ok := AttributeTypeName(p)
		return AttributeDescription{Name: p.Name, Type: typ}, ok
	case *schema.Relationship:
		typ, ok := RelationshipTypeName(m, p)
		return AttributeDescription{Name: p.Name, Type: typ}, ok
	default:
		return AttributeDescription{}, false
	}
}

// AttributeTypeName returns the rendered type of an attribute
func AttributeTypeName(a *schema.Attribute) (string, bool) {
	if name, ok := attributeTypeNames[a.Type]; ok {
		return name, true
	}
	return a.ValueClassName, a.ValueClassName != ""
}

// RelationshipTypeName returns the rendered type of a relationship. Ordered
// to-many relationships use OrderedSetType instead of the Set wrapper.
func RelationshipTypeName(m *schema.Model, r *schema.Relationship) (string, bool) {
	dest := m.Entity(r.Destination)
	if dest == nil {
		return "", false
	}

	typ := dest.ClassName()
	if r.ToMany {
		typ = fmt.Sprintf("Set<%s>", typ)
		if r.Ordered {
			typ = OrderedSetType
		}
	}

	return typ, true
}
