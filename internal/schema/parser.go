package schema

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// ModelExtension is the extension of a single-version model bundle
	ModelExtension = "xcdatamodel"
	// VersionedModelExtension is the extension of a versioned model bundle
	VersionedModelExtension = "xcdatamodeld"

	contentsFile       = "contents"
	currentVersionFile = ".xccurrentversion"
	currentVersionKey  = "_XCCurrentVersionName"
)

// valueClassNames maps attribute types to the value class the platform reports for them
var valueClassNames = map[AttributeType]string{
	AttributeTypeInteger16: "NSNumber",
	AttributeTypeInteger32: "NSNumber",
	AttributeTypeInteger64: "NSNumber",
	AttributeTypeDecimal:   "NSDecimalNumber",
	AttributeTypeDouble:    "NSNumber",
	AttributeTypeFloat:     "NSNumber",
	AttributeTypeString:    "NSString",
	AttributeTypeBoolean:   "NSNumber",
	AttributeTypeDate:      "NSDate",
	AttributeTypeBinary:    "NSData",
	AttributeTypeUUID:      "NSUUID",
	AttributeTypeURI:       "NSURL",
	AttributeTypeObjectID:  "NSManagedObjectID",
}

type xmlModel struct {
	XMLName  xml.Name    `xml:"model"`
	Entities []xmlEntity `xml:"entity"`
}

type xmlEntity struct {
	Name                 string        `xml:"name,attr"`
	RepresentedClassName string        `xml:"representedClassName,attr"`
	ParentEntity         string        `xml:"parentEntity,attr"`
	IsAbstract           string        `xml:"isAbstract,attr"`
	Elements             []xmlProperty `xml:",any"`
}

// xmlProperty captures attributes and relationships in document order
type xmlProperty struct {
	XMLName           xml.Name
	Name              string `xml:"name,attr"`
	AttributeType     string `xml:"attributeType,attr"`
	CustomClassName   string `xml:"customClassName,attr"`
	DestinationEntity string `xml:"destinationEntity,attr"`
	ToMany            string `xml:"toMany,attr"`
	Ordered           string `xml:"ordered,attr"`
}

type xmlPlist struct {
	Dict struct {
		Items []struct {
			XMLName xml.Name
			Value   string `xml:",chardata"`
		} `xml:",any"`
	} `xml:"dict"`
}

// ParseDataModel reads a .xcdatamodel or .xcdatamodeld bundle into a Model.
// For versioned bundles the current version is used.
func ParseDataModel(path string) (*Model, error) {
	contentsPath := filepath.Join(path, contentsFile)
	if strings.TrimPrefix(filepath.Ext(path), ".") == VersionedModelExtension {
		version, err := currentVersion(path)
		if err != nil {
			return nil, err
		}
		contentsPath = filepath.Join(path, version, contentsFile)
	}

	data, err := os.ReadFile(contentsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model contents: %w", err)
	}

	return ParseContents(data)
}

// ParseContents parses a model "contents" document. Each entity's property list
// contains its inherited properties followed by its own, as in a compiled model.
func ParseContents(data []byte) (*Model, error) {
	var doc xmlModel
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse model contents: %w", err)
	}

	model := &Model{Entities: make([]Entity, len(doc.Entities))}
	index := make(map[string]int, len(doc.Entities))
	for i, e := range doc.Entities {
		if e.Name == "" {
			return nil, fmt.Errorf("entity #%d has no name", i)
		}
		if _, dup := index[e.Name]; dup {
			return nil, fmt.Errorf("duplicate entity %q", e.Name)
		}
		index[e.Name] = i
	}

	for i, e := range doc.Entities {
		className := e.RepresentedClassName
		if className == "" {
			className = BaseObjectClass
		}

		superentity := NoEntity
		if e.ParentEntity != "" {
			parent, ok := index[e.ParentEntity]
			if !ok {
				return nil, fmt.Errorf("entity %q: %w: %q", e.Name, ErrDanglingRef, e.ParentEntity)
			}
			superentity = parent
		}

		model.Entities[i] = Entity{
			Name:             e.Name,
			RepresentedClass: className,
			Abstract:         parseBool(e.IsAbstract),
			Superentity:      superentity,
		}
	}

	own := make([][]Property, len(doc.Entities))
	for i, e := range doc.Entities {
		for _, el := range e.Elements {
			switch el.XMLName.Local {
			case "attribute":
				own[i] = append(own[i], newAttribute(el))
			case "relationship":
				destination := NoEntity
				if d, ok := index[el.DestinationEntity]; ok {
					destination = d
				}
				own[i] = append(own[i], &Relationship{
					Name:        el.Name,
					Destination: destination,
					ToMany:      parseBool(el.ToMany),
					Ordered:     parseBool(el.Ordered),
				})
			}
		}
	}

	resolved := make([]bool, len(model.Entities))
	for i := range model.Entities {
		if err := inheritProperties(model, own, resolved, i, nil); err != nil {
			return nil, err
		}
	}

	return model, nil
}

func newAttribute(el xmlProperty) *Attribute {
	typ := AttributeType(el.AttributeType)
	if typ == "" {
		typ = AttributeTypeUndefined
	}

	valueClass := valueClassNames[typ]
	if typ == AttributeTypeTransformable {
		valueClass = el.CustomClassName
	}

	return &Attribute{Name: el.Name, Type: typ, ValueClassName: valueClass}
}

// inheritProperties fills in the property list of entity i after its ancestors
func inheritProperties(m *Model, own [][]Property, resolved []bool, i int, chain []int) error {
	if resolved[i] {
		return nil
	}
	for _, c := range chain {
		if c == i {
			return fmt.Errorf("%w involving entity %q", ErrInheritanceLoop, m.Entities[i].Name)
		}
	}

	entity := &m.Entities[i]
	var props []Property
	if entity.Superentity != NoEntity {
		if err := inheritProperties(m, own, resolved, entity.Superentity, append(chain, i)); err != nil {
			return err
		}
		props = append(props, m.Entities[entity.Superentity].Properties...)
	}

	for _, p := range own[i] {
		replaced := false
		for j := range props {
			if props[j].PropertyName() == p.PropertyName() {
				props[j] = p
				replaced = true
				break
			}
		}
		if !replaced {
			props = append(props, p)
		}
	}

	entity.Properties = props
	resolved[i] = true
	return nil
}

// currentVersion returns the version bundle name to use inside a .xcdatamodeld
func currentVersion(path string) (string, error) {
	if data, err := os.ReadFile(filepath.Join(path, currentVersionFile)); err == nil {
		var plist xmlPlist
		if err := xml.Unmarshal(data, &plist); err != nil {
			return "", fmt.Errorf("failed to parse %s: %w", currentVersionFile, err)
		}
		items := plist.Dict.Items
		for i := 0; i+1 < len(items); i++ {
			if items[i].XMLName.Local == "key" && items[i].Value == currentVersionKey {
				return items[i+1].Value, nil
			}
		}
	}

	matches, err := filepath.Glob(filepath.Join(path, "*."+ModelExtension))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no model versions found in %s", path)
	}
	sort.Strings(matches)
	return filepath.Base(matches[len(matches)-1]), nil
}

func parseBool(s string) bool {
	return s == "YES" || s == "true"
}
