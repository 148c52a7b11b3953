// Package querylanguage holds the values that identify records: record ids,
// unique finders and filters.
package querylanguage

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/syssam/veloxq/schema"
)

// Filter is a predicate over the records of a model. Filters are immutable
// values built per request.
type Filter interface {
	fmt.Stringer
	filter()
}

// ScalarCondition is the comparison applied by a ScalarFilter.
type ScalarCondition int

// Scalar conditions.
const (
	CondEquals ScalarCondition = iota
	CondNotEquals
	CondLessThan
	CondLessThanOrEquals
	CondGreaterThan
	CondGreaterThanOrEquals
	CondIn
	CondNotIn
	CondContains
	CondNotContains
	CondStartsWith
	CondNotStartsWith
	CondEndsWith
	CondNotEndsWith
)

var binaryOps = map[ScalarCondition]string{
	CondEquals:              "==",
	CondNotEquals:           "!=",
	CondLessThan:            "<",
	CondLessThanOrEquals:    "<=",
	CondGreaterThan:         ">",
	CondGreaterThanOrEquals: ">=",
	CondIn:                  "in",
	CondNotIn:               "not in",
}

var callOps = map[ScalarCondition]struct {
	name    string
	negated bool
}{
	CondContains:      {"contains", false},
	CondNotContains:   {"contains", true},
	CondStartsWith:    {"has_prefix", false},
	CondNotStartsWith: {"has_prefix", true},
	CondEndsWith:      {"has_suffix", false},
	CondNotEndsWith:   {"has_suffix", true},
}

// ScalarFilter compares a scalar field with a value. For CondIn and CondNotIn
// the value is a []any.
type ScalarFilter struct {
	Field     *schema.Field
	Condition ScalarCondition
	Value     any
}

func (*ScalarFilter) filter() {}

func (f *ScalarFilter) String() string {
	if op, ok := binaryOps[f.Condition]; ok {
		return f.Field.Name + " " + op + " " + formatValue(f.Value)
	}
	call := callOps[f.Condition]
	s := fmt.Sprintf("%s(%s, %s)", call.name, f.Field.Name, formatValue(f.Value))
	if call.negated {
		return "!(" + s + ")"
	}
	return s
}

// ListCondition is the test applied by a ScalarListFilter.
type ListCondition int

// Scalar list conditions.
const (
	ListContainsElement ListCondition = iota
	ListContainsEvery
	ListContainsSome
)

// ScalarListFilter matches records by the values of a scalar list field.
type ScalarListFilter struct {
	Field     *schema.Field
	Condition ListCondition
	Values    []any
}

func (*ScalarListFilter) filter() {}

func (f *ScalarListFilter) String() string {
	switch f.Condition {
	case ListContainsEvery:
		return fmt.Sprintf("contains_every(%s, %s)", f.Field.Name, formatValue(f.Values))
	case ListContainsSome:
		return fmt.Sprintf("contains_some(%s, %s)", f.Field.Name, formatValue(f.Values))
	}
	var v any
	if len(f.Values) > 0 {
		v = f.Values[0]
	}
	return fmt.Sprintf("contains_element(%s, %s)", f.Field.Name, formatValue(v))
}

// RelationCondition is the quantifier of a RelationFilter.
type RelationCondition int

// Relation conditions.
const (
	RelEvery RelationCondition = iota
	RelSome
	RelNone
	RelToOne
)

var relationOps = [...]string{
	RelEvery: "every",
	RelSome:  "some",
	RelNone:  "none",
	RelToOne: "has_edge",
}

// RelationFilter matches records by their related records.
type RelationFilter struct {
	Field     *schema.RelationField
	Condition RelationCondition
	Nested    Filter
}

func (*RelationFilter) filter() {}

func (f *RelationFilter) String() string {
	if f.Nested == nil || IsEmpty(f.Nested) {
		return fmt.Sprintf("%s(%s)", relationOps[f.Condition], f.Field.Name)
	}
	return fmt.Sprintf("%s(%s, %s)", relationOps[f.Condition], f.Field.Name, f.Nested)
}

// JunctionKind is the logical operator of a Junction.
type JunctionKind int

// Junction kinds.
const (
	JunctionAnd JunctionKind = iota
	JunctionOr
)

// Junction combines filters with AND or OR. An empty AND matches every
// record, an empty OR none.
type Junction struct {
	Kind    JunctionKind
	Filters []Filter
}

func (*Junction) filter() {}

func (f *Junction) String() string {
	op, empty := " && ", "true"
	if f.Kind == JunctionOr {
		op, empty = " || ", "false"
	}
	switch len(f.Filters) {
	case 0:
		return empty
	case 1:
		return f.Filters[0].String()
	}
	parts := make([]string, len(f.Filters))
	for i, c := range f.Filters {
		parts[i] = c.String()
	}
	if len(parts) == 2 {
		return strings.Join(parts, op)
	}
	return "(" + strings.Join(parts, op) + ")"
}

// NotFilter negates a filter.
type NotFilter struct {
	Filter Filter
}

func (*NotFilter) filter() {}

func (f *NotFilter) String() string { return "!(" + f.Filter.String() + ")" }

// BoolFilter matches every record or none.
type BoolFilter bool

func (BoolFilter) filter() {}

func (f BoolFilter) String() string { return strconv.FormatBool(bool(f)) }

// Equals returns a filter matching records whose field equals v.
func Equals(f *schema.Field, v any) Filter { return scalar(f, CondEquals, v) }

// NotEquals returns a filter matching records whose field differs from v.
func NotEquals(f *schema.Field, v any) Filter { return scalar(f, CondNotEquals, v) }

// LessThan returns a filter matching records whose field is less than v.
func LessThan(f *schema.Field, v any) Filter { return scalar(f, CondLessThan, v) }

// LessThanOrEquals returns a filter matching records whose field is less than or equal to v.
func LessThanOrEquals(f *schema.Field, v any) Filter { return scalar(f, CondLessThanOrEquals, v) }

// GreaterThan returns a filter matching records whose field is greater than v.
func GreaterThan(f *schema.Field, v any) Filter { return scalar(f, CondGreaterThan, v) }

// GreaterThanOrEquals returns a filter matching records whose field is greater than or equal to v.
func GreaterThanOrEquals(f *schema.Field, v any) Filter {
	return scalar(f, CondGreaterThanOrEquals, v)
}

// In returns a filter matching records whose field is one of vs.
func In(f *schema.Field, vs ...any) Filter { return scalar(f, CondIn, vs) }

// NotIn returns a filter matching records whose field is none of vs.
func NotIn(f *schema.Field, vs ...any) Filter { return scalar(f, CondNotIn, vs) }

// Contains returns a filter matching records whose field contains s.
func Contains(f *schema.Field, s string) Filter { return scalar(f, CondContains, s) }

// StartsWith returns a filter matching records whose field starts with s.
func StartsWith(f *schema.Field, s string) Filter { return scalar(f, CondStartsWith, s) }

// EndsWith returns a filter matching records whose field ends with s.
func EndsWith(f *schema.Field, s string) Filter { return scalar(f, CondEndsWith, s) }

// Scalar returns a scalar filter with the given condition.
func Scalar(f *schema.Field, cond ScalarCondition, v any) Filter { return scalar(f, cond, v) }

func scalar(f *schema.Field, cond ScalarCondition, v any) Filter {
	return &ScalarFilter{Field: f, Condition: cond, Value: v}
}

// IDIn returns a filter matching the records with the given ids.
func IDIn(m *schema.Model, ids ...RecordID) Filter {
	return In(m.ID(), IDValues(ids)...)
}

// ListContains returns a filter on a scalar list field.
func ListContains(f *schema.Field, cond ListCondition, vs ...any) Filter {
	return &ScalarListFilter{Field: f, Condition: cond, Values: vs}
}

// Some returns a filter matching records with at least one related record
// matching nested.
func Some(rf *schema.RelationField, nested Filter) Filter { return relation(rf, RelSome, nested) }

// Every returns a filter matching records whose related records all match nested.
func Every(rf *schema.RelationField, nested Filter) Filter { return relation(rf, RelEvery, nested) }

// None returns a filter matching records with no related record matching nested.
func None(rf *schema.RelationField, nested Filter) Filter { return relation(rf, RelNone, nested) }

// ToOne returns a filter matching records whose single related record
// matches nested.
func ToOne(rf *schema.RelationField, nested Filter) Filter { return relation(rf, RelToOne, nested) }

func relation(rf *schema.RelationField, cond RelationCondition, nested Filter) Filter {
	if nested == nil {
		nested = Empty()
	}
	return &RelationFilter{Field: rf, Condition: cond, Nested: nested}
}

// And returns a filter matching records that match all fs.
func And(fs ...Filter) Filter { return &Junction{Kind: JunctionAnd, Filters: fs} }

// Or returns a filter matching records that match any of fs.
func Or(fs ...Filter) Filter { return &Junction{Kind: JunctionOr, Filters: fs} }

// Not returns a filter matching records that do not match all of fs.
func Not(fs ...Filter) Filter {
	if len(fs) == 1 {
		return &NotFilter{Filter: fs[0]}
	}
	return &NotFilter{Filter: And(fs...)}
}

// Bool returns a filter matching every record or none.
func Bool(b bool) Filter { return BoolFilter(b) }

// Empty returns the filter matching every record.
func Empty() Filter { return &Junction{Kind: JunctionAnd} }

// IsEmpty reports if f matches every record without testing anything.
func IsEmpty(f Filter) bool {
	switch f := f.(type) {
	case nil:
		return true
	case *Junction:
		return f.Kind == JunctionAnd && len(f.Filters) == 0
	case BoolFilter:
		return bool(f)
	}
	return false
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "nil"
	case string:
		return strconv.Quote(v)
	case []byte:
		return strconv.Quote(string(v))
	case time.Time:
		return strconv.Quote(v.UTC().Format(time.RFC3339Nano))
	case RecordID:
		return v.String()
	case []any:
		parts := make([]string, len(v))
		for i := range v {
			parts[i] = formatValue(v[i])
		}
		return "[" + strings.Join(parts, ",") + "]"
	case fmt.Stringer:
		return strconv.Quote(v.String())
	}
	return fmt.Sprint(v)
}
