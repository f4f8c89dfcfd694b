// Package cel filters object inventories with CEL expressions over the
// variables name, kind, digest (strings) and size (int).
package cel

import (
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/gezibash/scs/internal/cas"
)

// ErrInvalidExpression wraps parse, type-check and program errors.
var ErrInvalidExpression = errors.New("invalid CEL expression")

// Filter is a compiled CEL expression that matches inventory objects.
type Filter struct {
	expr    string
	program cel.Program
}

// Compile parses and type-checks expr. The expression must be boolean.
func Compile(expr string) (*Filter, error) {
	env, err := cel.NewEnv(
		cel.Variable("name", cel.StringType),
		cel.Variable("kind", cel.StringType),
		cel.Variable("digest", cel.StringType),
		cel.Variable("size", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w: %q yields %s, want bool", ErrInvalidExpression, expr, ast.OutputType())
	}

	prog, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}

	return &Filter{expr: expr, program: prog}, nil
}

// String returns the source expression.
func (f *Filter) String() string { return f.expr }

// Match evaluates the filter against obj. Evaluation errors (for example
// a failing string function) count as no match.
func (f *Filter) Match(obj cas.Object) bool {
	out, _, err := f.program.Eval(map[string]any{
		"name":   obj.Name,
		"kind":   string(obj.Kind),
		"digest": obj.Digest,
		"size":   obj.Size,
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

// Apply returns the objects that match, preserving order.
func (f *Filter) Apply(objects []cas.Object) []cas.Object {
	out := make([]cas.Object, 0, len(objects))
	for _, obj := range objects {
		if f.Match(obj) {
			out = append(out, obj)
		}
	}
	return out
}
