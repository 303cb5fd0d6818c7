// Package codegen turns a compiled model into one rendered file per entity
package codegen

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/querykit/querykit-cli/internal/schema"
	"github.com/rs/zerolog"
)

// DefaultExtension is the extension of generated files when none is configured
const DefaultExtension = "swift"

// fileSuffix is appended to the class name of every generated file
const fileSuffix = "+QueryKit"

// ErrDirectoryCreation is returned when the output directory cannot be created
var ErrDirectoryCreation = errors.New("failed to create output directory")

// Status is the outcome for a single entity
type Status int

const (
	StatusGenerated Status = iota
	StatusSkipped
	StatusFailed
)

// EntityResult records what happened to one entity
type EntityResult struct {
	EntityName string
	ClassName  string
	Path       string
	Status     Status
	Err        error
}

// Result summarizes a generation run
type Result struct {
	Entities []EntityResult
}

// Count returns the number of entities with the given status
func (r *Result) Count(status Status) int {
	n := 0
	for _, e := range r.Entities {
		if e.Status == status {
			n++
		}
	}
	return n
}

// Options configures a Generator
type Options struct {
	// OutputPath is the directory generated files are written to
	OutputPath string

	// Extension is the file extension of generated files, without the dot
	Extension string
}

// Generator renders every entity of a model into OutputPath
type Generator struct {
	renderer Renderer
	options  Options
	logger   zerolog.Logger
}

// NewGenerator creates a generator
func NewGenerator(renderer Renderer, options Options, logger zerolog.Logger) *Generator {
	if options.Extension == "" {
		options.Extension = DefaultExtension
	}
	options.Extension = strings.TrimPrefix(options.Extension, ".")

	return &Generator{
		renderer: renderer,
		options:  options,
		logger:   logger.With().Str("component", "generator").Logger(),
	}
}

// OutputFileName returns the generated file name for a class
func OutputFileName(className, extension string) string {
	return className + fileSuffix + "." + strings.TrimPrefix(extension, ".")
}

// Generate renders one file per entity that uses a custom class. A failure on
// one entity is recorded in the result and does not stop the others; only a
// failure to create the output directory is returned as an error.
func (g *Generator) Generate(m *schema.Model) (*Result, error) {
	if err := os.MkdirAll(g.options.OutputPath, 0755); err != nil {
		return nil, fmt.Errorf("%w: '%s': %v", ErrDirectoryCreation, g.options.OutputPath, err)
	}

	result := &Result{Entities: make([]EntityResult, 0, len(m.Entities))}
	for i := range m.Entities {
		entity := &m.Entities[i]
		result.Entities = append(result.Entities, g.generateEntity(m, entity))
	}

	g.logger.Debug().
		Int("generated", result.Count(StatusGenerated)).
		Int("skipped", result.Count(StatusSkipped)).
		Int("failed", result.Count(StatusFailed)).
		Msg("generation finished")

	return result, nil
}

func (g *Generator) generateEntity(m *schema.Model, entity *schema.Entity) EntityResult {
	res := EntityResult{
		EntityName: entity.Name,
		ClassName:  entity.ClassName(),
	}
	if res.EntityName == "" {
		res.EntityName = unknownEntityName
	}

	if !entity.UsesCustomClass() {
		g.logger.Debug().Str("entity", res.EntityName).Msg("skipping entity without custom class")
		res.Status = StatusSkipped
		return res
	}

	res.Path = filepath.Join(g.options.OutputPath, OutputFileName(res.ClassName, g.options.Extension))

	ctx := BuildContext(m, entity)
	g.logger.Debug().
		Str("entity", res.EntityName).
		Int("attribute_count", len(ctx.Attributes)).
		Msg("built template context")

	content, err := g.renderer.Render(ctx)
	if err != nil {
		res.Status = StatusFailed
		res.Err = fmt.Errorf("%w: failed to render '%s': %v", ErrRenderFailure, res.EntityName, err)
		return res
	}

	if err := os.WriteFile(res.Path, content, 0644); err != nil {
		res.Status = StatusFailed
		res.Err = fmt.Errorf("%w: failed to write '%s': %v", ErrRenderFailure, res.Path, err)
		return res
	}

	res.Status = StatusGenerated
	return res
}
