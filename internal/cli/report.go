package cli

import (
	"fmt"
	"io"
)

// Report is a status line followed by ordered details and warnings.
// Created via Output.Report().
type Report struct {
	out      *Output
	meta     Meta
	status   Status
	message  string
	details  []kvPair
	warnings []string
}

// Status sets the report outcome.
func (r *Report) Status(s Status) *Report {
	r.status = s
	return r
}

// With adds a detail key-value pair. Details keep insertion order.
func (r *Report) With(key string, value any) *Report {
	r.details = append(r.details, kvPair{key: key, value: value})
	return r
}

// Warn records a warning and downgrades an ok report to warn.
func (r *Report) Warn(format string, args ...any) *Report {
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
	if r.status == StatusOK {
		r.status = StatusWarn
	}
	return r
}

// Render outputs the report in the configured format.
func (r *Report) Render() error {
	return r.out.Render(r)
}

// Meta returns the metadata.
func (r *Report) Meta() Meta {
	return r.meta
}

// RenderText writes the status line, aligned details and warnings.
func (r *Report) RenderText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%s %s\n", r.out.badge(r.status), r.message); err != nil {
		return err
	}

	maxLen := 0
	for _, d := range r.details {
		if len(d.key) > maxLen {
			maxLen = len(d.key)
		}
	}
	for _, d := range r.details {
		if _, err := fmt.Fprintf(w, "  %-*s  %v\n", maxLen+1, d.key+":", d.value); err != nil {
			return err
		}
	}

	for _, msg := range r.warnings {
		if _, err := fmt.Fprintf(w, "  %s %s\n", r.out.dim("warning:"), msg); err != nil {
			return err
		}
	}
	return nil
}

// RenderJSON returns status, message, details and warnings as one object.
func (r *Report) RenderJSON() any {
	result := make(map[string]any, len(r.details)+3)
	result["status"] = string(r.status)
	result["message"] = r.message
	for _, d := range r.details {
		result[toJSONKey(d.key)] = d.value
	}
	warnings := r.warnings
	if warnings == nil {
		warnings = []string{}
	}
	result["warnings"] = warnings
	return result
}

// RenderMarkdown writes the report as a bold heading and bullet lists.
func (r *Report) RenderMarkdown(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "**%s** (%s)\n\n", r.message, r.status); err != nil {
		return err
	}
	for _, d := range r.details {
		if _, err := fmt.Fprintf(w, "- **%s:** %s\n", d.key, formatMarkdownValue(d.value)); err != nil {
			return err
		}
	}
	if len(r.warnings) > 0 {
		if _, err := fmt.Fprintln(w, "\n### Warnings"); err != nil {
			return err
		}
		for _, msg := range r.warnings {
			if _, err := fmt.Fprintf(w, "- %s\n", formatMarkdownValue(msg)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Error is a structured error result.
// Created via Output.Error().
type Error struct {
	out     *Output
	meta    Meta
	err     error
	code    string
	details []kvPair
}

// WithCode sets an error code.
func (e *Error) WithCode(code string) *Error {
	e.code = code
	return e
}

// With adds a detail key-value pair.
func (e *Error) With(key string, value any) *Error {
	e.details = append(e.details, kvPair{key: key, value: value})
	return e
}

// Render outputs the error in the configured format.
func (e *Error) Render() error {
	return e.out.Render(e)
}

// Meta returns the metadata.
func (e *Error) Meta() Meta {
	return e.meta
}

// RenderText writes "error: <msg>" with an optional code.
func (e *Error) RenderText(w io.Writer) error {
	if e.code != "" {
		if _, err := fmt.Fprintf(w, "error [%s]: %v\n", e.code, e.err); err != nil {
			return err
		}
	} else {
		if _, err := fmt.Fprintf(w, "error: %v\n", e.err); err != nil {
			return err
		}
	}

	for _, d := range e.details {
		if _, err := fmt.Fprintf(w, "  %s: %v\n", d.key, d.value); err != nil {
			return err
		}
	}
	return nil
}

// RenderJSON returns error as object.
func (e *Error) RenderJSON() any {
	result := map[string]any{
		"error": e.err.Error(),
	}
	if e.code != "" {
		result["code"] = e.code
	}
	for _, d := range e.details {
		result[toJSONKey(d.key)] = d.value
	}
	return result
}

// RenderMarkdown writes the error in markdown.
func (e *Error) RenderMarkdown(w io.Writer) error {
	if e.code != "" {
		if _, err := fmt.Fprintf(w, "> **Error [%s]:** %v\n", e.code, e.err); err != nil {
			return err
		}
	} else {
		if _, err := fmt.Fprintf(w, "> **Error:** %v\n", e.err); err != nil {
			return err
		}
	}

	if len(e.details) > 0 {
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
		for _, d := range e.details {
			if _, err := fmt.Fprintf(w, "- %s: %v\n", d.key, d.value); err != nil {
				return err
			}
		}
	}
	return nil
}
