// Package cli renders command results as text, JSON or markdown.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

// Format represents an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formats lists the accepted format names.
var Formats = []string{string(FormatText), string(FormatJSON), string(FormatMarkdown)}

// ParseFormat parses a format string, defaulting to text.
func ParseFormat(s string) Format {
	switch s {
	case "json":
		return FormatJSON
	case "markdown", "md":
		return FormatMarkdown
	default:
		return FormatText
	}
}

// Meta describes a rendered result.
type Meta struct {
	Type      string    `json:"type" yaml:"type"`
	Version   string    `json:"version,omitempty" yaml:"version,omitempty"`
	Generated time.Time `json:"generated" yaml:"generated"`
	Backend   string    `json:"backend,omitempty" yaml:"backend,omitempty"`
}

// NewMeta creates metadata with the given type and current timestamp.
func NewMeta(resultType string) Meta {
	return Meta{
		Type:      resultType,
		Version:   "v1",
		Generated: time.Now().UTC(),
	}
}

// Renderable can render itself in multiple formats.
type Renderable interface {
	Meta() Meta
	RenderText(w io.Writer) error
	RenderJSON() any
	RenderMarkdown(w io.Writer) error
}

// Output handles formatted rendering with automatic envelope/frontmatter.
type Output struct {
	format   Format
	w        io.Writer
	backend  string
	renderer *lipgloss.Renderer
}

// NewOutput creates an output renderer for the given format. Status styling
// is colored only when w is a terminal.
func NewOutput(format Format, w io.Writer) *Output {
	return &Output{format: format, w: w, renderer: lipgloss.NewRenderer(w)}
}

// WithBackend tags every rendered result with the backend name.
func (o *Output) WithBackend(name string) *Output {
	o.backend = name
	return o
}

// Format returns the configured output format.
func (o *Output) Format() Format {
	return o.format
}

func (o *Output) newMeta(resultType string) Meta {
	m := NewMeta(resultType)
	m.Backend = o.backend
	return m
}

// Table creates a new table renderer attached to this output.
func (o *Output) Table(resultType string, headers ...string) *Table {
	return &Table{
		out:     o,
		meta:    o.newMeta(resultType),
		headers: headers,
	}
}

// KV creates a new key-value renderer attached to this output.
func (o *Output) KV(resultType string) *KV {
	return &KV{
		out:  o,
		meta: o.newMeta(resultType),
	}
}

// Report creates a status report renderer attached to this output.
func (o *Output) Report(resultType, message string) *Report {
	return &Report{
		out:     o,
		meta:    o.newMeta(resultType),
		status:  StatusOK,
		message: message,
	}
}

// Error creates a new error renderer attached to this output.
func (o *Output) Error(resultType string, err error) *Error {
	return &Error{
		out:  o,
		meta: o.newMeta(resultType + "-error"),
		err:  err,
	}
}

// Render outputs the renderable in the configured format.
func (o *Output) Render(r Renderable) error {
	switch o.format {
	case FormatJSON:
		return o.renderJSON(r)
	case FormatMarkdown:
		return o.renderMarkdown(r)
	default:
		return r.RenderText(o.w)
	}
}

func (o *Output) renderJSON(r Renderable) error {
	envelope := struct {
		Meta Meta `json:"meta"`
		Data any  `json:"data"`
	}{
		Meta: r.Meta(),
		Data: r.RenderJSON(),
	}

	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(envelope)
}

func (o *Output) renderMarkdown(r Renderable) error {
	meta := r.Meta()
	if _, err := fmt.Fprintln(o.w, "---"); err != nil {
		return err
	}

	enc := yaml.NewEncoder(o.w)
	enc.SetIndent(2)
	if err := enc.Encode(meta); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}

	if _, err := fmt.Fprintln(o.w, "---"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(o.w); err != nil {
		return err
	}

	return r.RenderMarkdown(o.w)
}
