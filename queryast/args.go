package queryast

import (
	"maps"
	"slices"

	ql "github.com/syssam/veloxq/querylanguage"
	"github.com/syssam/veloxq/schema"
)

// Args holds the scalar values written by a create or an update, keyed by
// field name.
type Args map[string]any

// Set sets the value of a field and returns the receiver.
func (a Args) Set(field string, v any) Args {
	a[field] = v
	return a
}

// Has reports if a value is set for the field.
func (a Args) Has(field string) bool {
	_, ok := a[field]
	return ok
}

// Fields returns the scalar fields of m that have a value, in declaration
// order. Unknown names are ignored.
func (a Args) Fields(m *schema.Model) []*schema.Field {
	var fields []*schema.Field
	for _, f := range m.ScalarFields() {
		if a.Has(f.Name) {
			fields = append(fields, f)
		}
	}
	return fields
}

// Clone returns a shallow copy of the args.
func (a Args) Clone() Args {
	if a == nil {
		return Args{}
	}
	return maps.Clone(a)
}

// ListArg replaces the values of a scalar list field.
type ListArg struct {
	Field  *schema.Field
	Values []any
}

// OrderBy orders records by a scalar field.
type OrderBy struct {
	Field      *schema.Field
	Descending bool
}

// QueryArguments filter, order and paginate a read.
type QueryArguments struct {
	Skip    *int
	First   *int
	Last    *int
	After   *ql.RecordID
	Before  *ql.RecordID
	OrderBy *OrderBy
	Filter  ql.Filter
}

// IsWithPagination reports if the arguments slice the result. Related
// record reads pick their statement strategy from it.
func (a QueryArguments) IsWithPagination() bool {
	return a.Skip != nil || a.First != nil || a.Last != nil || a.After != nil || a.Before != nil
}

// Where returns a copy of the arguments with f added to the filter.
func (a QueryArguments) Where(f ql.Filter) QueryArguments {
	if ql.IsEmpty(a.Filter) {
		a.Filter = f
	} else {
		a.Filter = ql.And(a.Filter, f)
	}
	return a
}

// SelectedFields is the projection of a read.
type SelectedFields struct {
	Scalars []*schema.Field
}

// SelectAll returns the projection of every scalar field of m.
func SelectAll(m *schema.Model) SelectedFields {
	return SelectedFields{Scalars: slices.Clone(m.Fields)}
}

// Columns returns the fields stored on the model table. The id is always
// part of it.
func (s SelectedFields) Columns(m *schema.Model) []*schema.Field {
	fields := []*schema.Field{m.ID()}
	for _, f := range s.Scalars {
		if !f.IsList && !f.IsID {
			fields = append(fields, f)
		}
	}
	return fields
}

// Lists returns the selected scalar list fields.
func (s SelectedFields) Lists() []*schema.Field {
	var fields []*schema.Field
	for _, f := range s.Scalars {
		if f.IsList {
			fields = append(fields, f)
		}
	}
	return fields
}

// Names returns the names of the column fields, aligned with the values of
// the records read with the projection.
func (s SelectedFields) Names(m *schema.Model) []string {
	cols := s.Columns(m)
	names := make([]string, len(cols))
	for i, f := range cols {
		names[i] = f.Name
	}
	return names
}
