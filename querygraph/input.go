package querygraph

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/veloxq/queryast"
	ql "github.com/syssam/veloxq/querylanguage"
	"github.com/syssam/veloxq/schema"
)

// InputError reports a request argument that does not fit the schema.
type InputError struct {
	Path string
	Msg  string
}

func (e *InputError) Error() string {
	if e.Path == "" {
		return "querygraph: " + e.Msg
	}
	return fmt.Sprintf("querygraph: %s: %s", e.Path, e.Msg)
}

func inputErrorf(path, format string, args ...any) *InputError {
	return &InputError{Path: path, Msg: fmt.Sprintf(format, args...)}
}

// coerce converts a request value into the value of a scalar of field f.
// Request values come from a GraphQL document or JSON variables, so numbers
// arrive as int64 or float64 and dates as strings.
func coerce(path string, f *schema.Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch f.Type {
	case schema.TypeInt:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			if n == math.Trunc(n) {
				return int64(n), nil
			}
		}
	case schema.TypeFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int64:
			return float64(n), nil
		case int:
			return float64(n), nil
		}
	case schema.TypeString, schema.TypeEnum:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case schema.TypeBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case schema.TypeDateTime:
		switch t := v.(type) {
		case time.Time:
			return t, nil
		case string:
			if p, err := time.Parse(time.RFC3339Nano, t); err == nil {
				return p, nil
			}
			if p, err := time.Parse(time.DateOnly, t); err == nil {
				return p, nil
			}
		}
	case schema.TypeUUID:
		switch u := v.(type) {
		case uuid.UUID:
			return u, nil
		case string:
			if p, err := uuid.Parse(u); err == nil {
				return p, nil
			}
		}
	case schema.TypeJSON:
		return v, nil
	}
	return nil, inputErrorf(path, "invalid %s value %v", f.Type, v)
}

func coerceList(path string, f *schema.Field, v any) ([]any, error) {
	vs, ok := v.([]any)
	if !ok {
		vs = []any{v}
	}
	out := make([]any, len(vs))
	for i := range vs {
		c, err := coerce(fmt.Sprintf("%s[%d]", path, i), f, vs[i])
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// inputMap asserts v is an input object.
func inputMap(path string, v any) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, inputErrorf(path, "expected an object, got %T", v)
	}
	return m, nil
}

// inputMaps accepts an object or a list of objects.
func inputMaps(path string, v any) ([]map[string]any, error) {
	switch v := v.(type) {
	case map[string]any:
		return []map[string]any{v}, nil
	case []any:
		ms := make([]map[string]any, len(v))
		for i := range v {
			m, err := inputMap(fmt.Sprintf("%s[%d]", path, i), v[i])
			if err != nil {
				return nil, err
			}
			ms[i] = m
		}
		return ms, nil
	}
	return nil, inputErrorf(path, "expected an object or a list of objects, got %T", v)
}

// sortedKeys returns the keys of an input object in a stable order.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// parseFinder reads a where unique input: exactly one unique field set to a
// non null value.
func parseFinder(path string, m *schema.Model, v any) (*ql.RecordFinder, error) {
	in, err := inputMap(path, v)
	if err != nil {
		return nil, err
	}
	var finder *ql.RecordFinder
	for _, k := range sortedKeys(in) {
		if in[k] == nil {
			continue
		}
		f := m.Field(k)
		if f == nil || !(f.IsID || f.IsUnique) || f.IsList {
			return nil, inputErrorf(path, "%q is not a unique field of %s", k, m.Name)
		}
		if finder != nil {
			return nil, inputErrorf(path, "expected exactly one unique field, got %q and %q", finder.Field.Name, k)
		}
		cv, err := coerce(path+"."+k, f, in[k])
		if err != nil {
			return nil, err
		}
		if f.IsID {
			id, err := ql.ParseID(f.Type, cv)
			if err != nil {
				return nil, inputErrorf(path+"."+k, "%v", err)
			}
			cv = id.Value()
		}
		finder = ql.NewRecordFinder(f, cv)
	}
	if finder == nil {
		return nil, inputErrorf(path, "expected exactly one unique field of %s", m.Name)
	}
	return finder, nil
}

// parseID reads a record id of m.
func parseID(path string, m *schema.Model, v any) (*ql.RecordID, error) {
	cv, err := coerce(path, m.ID(), v)
	if err != nil {
		return nil, err
	}
	id, err := ql.ParseID(m.ID().Type, cv)
	if err != nil {
		return nil, inputErrorf(path, "%v", err)
	}
	return &id, nil
}

type filterSuffix struct {
	suffix string
	cond   ql.ScalarCondition
}

// scalarSuffixes are tried longest first so _not_in is not read as _in.
var scalarSuffixes = func() []filterSuffix {
	s := []filterSuffix{
		{"_not", ql.CondNotEquals},
		{"_in", ql.CondIn},
		{"_not_in", ql.CondNotIn},
		{"_lt", ql.CondLessThan},
		{"_lte", ql.CondLessThanOrEquals},
		{"_gt", ql.CondGreaterThan},
		{"_gte", ql.CondGreaterThanOrEquals},
		{"_contains", ql.CondContains},
		{"_not_contains", ql.CondNotContains},
		{"_starts_with", ql.CondStartsWith},
		{"_not_starts_with", ql.CondNotStartsWith},
		{"_ends_with", ql.CondEndsWith},
		{"_not_ends_with", ql.CondNotEndsWith},
	}
	slices.SortStableFunc(s, func(a, b filterSuffix) int { return len(b.suffix) - len(a.suffix) })
	return s
}()

var listSuffixes = []struct {
	suffix string
	cond   ql.ListCondition
}{
	{"_contains_every", ql.ListContainsEvery},
	{"_contains_some", ql.ListContainsSome},
	{"_contains", ql.ListContainsElement},
}

var relationSuffixes = []struct {
	suffix string
	cond   ql.RelationCondition
}{
	{"_every", ql.RelEvery},
	{"_some", ql.RelSome},
	{"_none", ql.RelNone},
}

// parseFilter reads a where input into a filter on m. Conditions of one
// object are joined with AND.
func parseFilter(path string, m *schema.Model, v any) (ql.Filter, error) {
	if v == nil {
		return ql.Empty(), nil
	}
	in, err := inputMap(path, v)
	if err != nil {
		return nil, err
	}
	filters := make([]ql.Filter, 0, len(in))
	for _, k := range sortedKeys(in) {
		f, err := parseCondition(path+"."+k, m, k, in[k])
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	switch len(filters) {
	case 0:
		return ql.Empty(), nil
	case 1:
		return filters[0], nil
	}
	return ql.And(filters...), nil
}

func parseCondition(path string, m *schema.Model, key string, v any) (ql.Filter, error) {
	switch key {
	case "AND", "OR", "NOT":
		ins, err := inputMaps(path, v)
		if err != nil {
			return nil, err
		}
		fs := make([]ql.Filter, len(ins))
		for i, in := range ins {
			if fs[i], err = parseFilter(fmt.Sprintf("%s[%d]", path, i), m, in); err != nil {
				return nil, err
			}
		}
		switch key {
		case "AND":
			return ql.And(fs...), nil
		case "OR":
			return ql.Or(fs...), nil
		}
		return ql.Not(fs...), nil
	}
	if f := m.Field(key); f != nil && !f.IsList {
		cv, err := coerce(path, f, v)
		if err != nil {
			return nil, err
		}
		return ql.Equals(f, cv), nil
	}
	if rf := m.RelationField(key); rf != nil {
		if rf.IsList {
			return nil, inputErrorf(path, "list relation %q needs a _some, _every or _none condition", key)
		}
		if v == nil {
			return ql.Not(ql.ToOne(rf, ql.Empty())), nil
		}
		nested, err := parseFilter(path, rf.RelatedModel(), v)
		if err != nil {
			return nil, err
		}
		return ql.ToOne(rf, nested), nil
	}
	for _, s := range listSuffixes {
		name, ok := strings.CutSuffix(key, s.suffix)
		if f := m.Field(name); ok && f != nil && f.IsList {
			vs, err := coerceList(path, f, v)
			if err != nil {
				return nil, err
			}
			return ql.ListContains(f, s.cond, vs...), nil
		}
	}
	for _, s := range relationSuffixes {
		name, ok := strings.CutSuffix(key, s.suffix)
		if rf := m.RelationField(name); ok && rf != nil && rf.IsList {
			nested, err := parseFilter(path, rf.RelatedModel(), v)
			if err != nil {
				return nil, err
			}
			switch s.cond {
			case ql.RelEvery:
				return ql.Every(rf, nested), nil
			case ql.RelSome:
				return ql.Some(rf, nested), nil
			}
			return ql.None(rf, nested), nil
		}
	}
	for _, s := range scalarSuffixes {
		name, ok := strings.CutSuffix(key, s.suffix)
		f := m.Field(name)
		if !ok || f == nil || f.IsList {
			continue
		}
		if s.cond == ql.CondIn || s.cond == ql.CondNotIn {
			vs, err := coerceList(path, f, v)
			if err != nil {
				return nil, err
			}
			return ql.Scalar(f, s.cond, vs), nil
		}
		cv, err := coerce(path, f, v)
		if err != nil {
			return nil, err
		}
		return ql.Scalar(f, s.cond, cv), nil
	}
	return nil, inputErrorf(path, "unknown filter %q on %s", key, m.Name)
}

// parseQueryArguments reads the where, orderBy and pagination arguments of
// a read on m.
func parseQueryArguments(path string, m *schema.Model, args map[string]any) (queryast.QueryArguments, error) {
	var (
		qa  queryast.QueryArguments
		err error
	)
	for _, k := range sortedKeys(args) {
		v, p := args[k], path+"."+k
		if v == nil {
			continue
		}
		switch k {
		case "where":
			qa.Filter, err = parseFilter(p, m, v)
		case "orderBy":
			qa.OrderBy, err = parseOrderBy(p, m, v)
		case "skip":
			qa.Skip, err = parseCount(p, v)
		case "first":
			qa.First, err = parseCount(p, v)
		case "last":
			qa.Last, err = parseCount(p, v)
		case "after":
			qa.After, err = parseID(p, m, v)
		case "before":
			qa.Before, err = parseID(p, m, v)
		default:
			err = inputErrorf(p, "unknown argument")
		}
		if err != nil {
			return queryast.QueryArguments{}, err
		}
	}
	return qa, nil
}

func parseOrderBy(path string, m *schema.Model, v any) (*queryast.OrderBy, error) {
	s, ok := v.(string)
	if !ok {
		return nil, inputErrorf(path, "expected an enum value, got %T", v)
	}
	name, desc := s, false
	switch {
	case strings.HasSuffix(s, "_ASC"):
		name = strings.TrimSuffix(s, "_ASC")
	case strings.HasSuffix(s, "_DESC"):
		name, desc = strings.TrimSuffix(s, "_DESC"), true
	default:
		return nil, inputErrorf(path, "invalid order %q", s)
	}
	f := m.Field(name)
	if f == nil || f.IsList {
		return nil, inputErrorf(path, "%q is not a scalar field of %s", name, m.Name)
	}
	return &queryast.OrderBy{Field: f, Descending: desc}, nil
}

func parseCount(path string, v any) (*int, error) {
	var n int64
	switch c := v.(type) {
	case int64:
		n = c
	case int:
		n = int64(c)
	case float64:
		if c != math.Trunc(c) {
			return nil, inputErrorf(path, "expected an integer, got %v", c)
		}
		n = int64(c)
	default:
		return nil, inputErrorf(path, "expected an integer, got %T", v)
	}
	if n < 0 {
		return nil, inputErrorf(path, "must not be negative, got %d", n)
	}
	i := int(n)
	return &i, nil
}

// writeData is a create or update data input split by field kind.
type writeData struct {
	args   queryast.Args
	lists  []queryast.ListArg
	nested []nestedData
}

// nestedData holds the nested writes of one relation field.
type nestedData struct {
	field *schema.RelationField
	ops   map[string]any
}

// parseData reads a data input of m. Scalar lists are given as a list or as
// an object with a set key.
func parseData(path string, m *schema.Model, v any) (*writeData, error) {
	if v == nil {
		v = map[string]any{}
	}
	in, err := inputMap(path, v)
	if err != nil {
		return nil, err
	}
	d := &writeData{args: queryast.Args{}}
	seen := 0
	for _, f := range m.Fields {
		v, ok := in[f.Name]
		if !ok {
			continue
		}
		seen++
		p := path + "." + f.Name
		if !f.IsList {
			cv, err := coerce(p, f, v)
			if err != nil {
				return nil, err
			}
			d.args.Set(f.Name, cv)
			continue
		}
		if set, ok := v.(map[string]any); ok {
			if len(set) != 1 || !hasKey(set, "set") {
				return nil, inputErrorf(p, "expected an object with a single set key")
			}
			v, p = set["set"], p+".set"
		}
		var vs []any
		if v != nil {
			if vs, err = coerceList(p, f, v); err != nil {
				return nil, err
			}
		}
		d.lists = append(d.lists, queryast.ListArg{Field: f, Values: vs})
	}
	for _, rf := range m.RelationFields {
		v, ok := in[rf.Name]
		if !ok {
			continue
		}
		seen++
		ops, err := inputMap(path+"."+rf.Name, v)
		if err != nil {
			return nil, err
		}
		d.nested = append(d.nested, nestedData{field: rf, ops: ops})
	}
	if seen != len(in) {
		for _, k := range sortedKeys(in) {
			if m.Field(k) == nil && m.RelationField(k) == nil {
				return nil, inputErrorf(path+"."+k, "unknown field of %s", m.Name)
			}
		}
	}
	return d, nil
}

func hasKey(m map[string]any, k string) bool {
	_, ok := m[k]
	return ok
}
