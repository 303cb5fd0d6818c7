package codegen

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"unicode"
	"unicode/utf8"
)

//go:embed templates/*
var templatesFS embed.FS

// DefaultTemplateName is the embedded template used when no template path is configured
const DefaultTemplateName = "templates/querykit.swift.tmpl"

var (
	// ErrInvalidTemplate is returned when a template cannot be read or parsed
	ErrInvalidTemplate = errors.New("invalid template")
	// ErrRenderFailure is returned when rendering a single entity fails
	ErrRenderFailure = errors.New("render failure")
)

// Renderer renders a template context into file contents
type Renderer interface {
	Render(ctx Context) ([]byte, error)
}

// TemplateRenderer renders contexts with a text/template
type TemplateRenderer struct {
	name string
	tmpl *template.Template
}

// templateFuncs mirrors the filters commonly used by entity templates
var templateFuncs = template.FuncMap{
	"capitalize": capitalize,
	"lowercase":  strings.ToLower,
	"uppercase":  strings.ToUpper,
	"join": func(sep string, items []string) string {
		return strings.Join(items, sep)
	},
}

// LoadTemplate reads and parses the template at path. An empty path selects
// the embedded default template.
func LoadTemplate(path string) (*TemplateRenderer, error) {
	if path == "" {
		data, err := templatesFS.ReadFile(DefaultTemplateName)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
		}
		return NewTemplateRenderer(filepath.Base(DefaultTemplateName), string(data))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: template '%s' is not readable", ErrInvalidTemplate, path)
	}
	return NewTemplateRenderer(filepath.Base(path), string(data))
}

// NewTemplateRenderer parses text as a template called name
func NewTemplateRenderer(name, text string) (*TemplateRenderer, error) {
	tmpl, err := template.New(name).
		Option("missingkey=error").
		Funcs(templateFuncs).
		Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	return &TemplateRenderer{name: name, tmpl: tmpl}, nil
}

// Name returns the template name
func (r *TemplateRenderer) Name() string {
	return r.name
}

// Render executes the template with ctx.Values()
func (r *TemplateRenderer) Render(ctx Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, ctx.Values()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
