package querygraph

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// Document is a parsed request: the fields of one operation with variables
// substituted.
type Document struct {
	// Mutation reports if the operation is a mutation.
	Mutation bool
	Fields   []Field
}

// ParseDocument parses a GraphQL request and returns the fields of the
// operation named name, or of the only operation when name is empty.
// Fragments are inlined and the @skip and @include directives applied.
func ParseDocument(src, name string, variables map[string]any) (*Document, error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: "request", Input: src})
	if err != nil {
		return nil, fmt.Errorf("querygraph: parse document: %w", err)
	}
	var op *ast.OperationDefinition
	switch {
	case name != "":
		if op = doc.Operations.ForName(name); op == nil {
			return nil, inputErrorf("", "unknown operation %q", name)
		}
	case len(doc.Operations) == 1:
		op = doc.Operations[0]
	default:
		return nil, inputErrorf("", "expected one operation, got %d", len(doc.Operations))
	}
	if op.Operation == ast.Subscription {
		return nil, inputErrorf("", "subscriptions are not supported")
	}
	vars := make(map[string]any, len(op.VariableDefinitions))
	for _, def := range op.VariableDefinitions {
		v, ok := variables[def.Variable]
		switch {
		case ok:
			vars[def.Variable] = v
		case def.DefaultValue != nil:
			dv, err := def.DefaultValue.Value(nil)
			if err != nil {
				return nil, inputErrorf("$"+def.Variable, "%v", err)
			}
			vars[def.Variable] = dv
		case def.Type != nil && def.Type.NonNull:
			return nil, inputErrorf("$"+def.Variable, "missing value for required variable")
		}
	}
	c := &converter{doc: doc, vars: vars}
	fields, err := c.selection(op.SelectionSet, 0)
	if err != nil {
		return nil, err
	}
	return &Document{Mutation: op.Operation == ast.Mutation, Fields: fields}, nil
}

type converter struct {
	doc  *ast.QueryDocument
	vars map[string]any
}

// maxFragmentDepth bounds fragment spreads referencing each other.
const maxFragmentDepth = 32

func (c *converter) selection(set ast.SelectionSet, depth int) ([]Field, error) {
	if depth > maxFragmentDepth {
		return nil, inputErrorf("", "fragments nested too deep")
	}
	var fields []Field
	for _, s := range set {
		switch s := s.(type) {
		case *ast.Field:
			ok, err := c.included(s.Directives)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			f, err := c.field(s, depth)
			if err != nil {
				return nil, err
			}
			fields = append(fields, f)
		case *ast.InlineFragment:
			ok, err := c.included(s.Directives)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			fs, err := c.selection(s.SelectionSet, depth+1)
			if err != nil {
				return nil, err
			}
			fields = append(fields, fs...)
		case *ast.FragmentSpread:
			ok, err := c.included(s.Directives)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			def := c.doc.Fragments.ForName(s.Name)
			if def == nil {
				return nil, inputErrorf("", "unknown fragment %q", s.Name)
			}
			fs, err := c.selection(def.SelectionSet, depth+1)
			if err != nil {
				return nil, err
			}
			fields = append(fields, fs...)
		}
	}
	return fields, nil
}

func (c *converter) field(s *ast.Field, depth int) (Field, error) {
	f := Field{Name: s.Name}
	if s.Alias != s.Name {
		f.Alias = s.Alias
	}
	if len(s.Arguments) > 0 {
		f.Arguments = make(map[string]any, len(s.Arguments))
		for _, a := range s.Arguments {
			v, err := a.Value.Value(c.vars)
			if err != nil {
				return f, inputErrorf(f.Key()+"."+a.Name, "%v", err)
			}
			f.Arguments[a.Name] = v
		}
	}
	sel, err := c.selection(s.SelectionSet, depth)
	if err != nil {
		return f, err
	}
	f.Selection = sel
	return f, nil
}

// included applies the @skip and @include directives.
func (c *converter) included(dirs ast.DirectiveList) (bool, error) {
	for _, d := range dirs {
		if d.Name != "skip" && d.Name != "include" {
			continue
		}
		arg := d.Arguments.ForName("if")
		if arg == nil {
			return false, inputErrorf("@"+d.Name, "missing if argument")
		}
		v, err := arg.Value.Value(c.vars)
		if err != nil {
			return false, inputErrorf("@"+d.Name, "%v", err)
		}
		b, ok := v.(bool)
		if !ok {
			return false, inputErrorf("@"+d.Name, "expected a boolean, got %T", v)
		}
		if b == (d.Name == "skip") {
			return false, nil
		}
	}
	return true, nil
}
