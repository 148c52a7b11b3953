package sql

import (
	"fmt"
	"strconv"

	ql "github.com/syssam/veloxq/querylanguage"
	"github.com/syssam/veloxq/schema"
)

// FilterPredicate lowers a filter on the records of m, read through the
// table view t, into a predicate. Relation and list filters become
// sub-selects.
func FilterPredicate(dialect string, t *TableView, m *schema.Model, f ql.Filter) *Predicate {
	l := &filterLowering{dialect: dialect}
	return l.lower(t, m, f)
}

type filterLowering struct {
	dialect string
	n       int
}

func (l *filterLowering) alias() string {
	l.n++
	return "f" + strconv.Itoa(l.n)
}

func (l *filterLowering) lower(t *TableView, m *schema.Model, f ql.Filter) *Predicate {
	switch f := f.(type) {
	case nil:
		return True()
	case ql.BoolFilter:
		if f {
			return True()
		}
		return False()
	case *ql.Junction:
		preds := make([]*Predicate, 0, len(f.Filters))
		for _, c := range f.Filters {
			preds = append(preds, l.lower(t, m, c))
		}
		if f.Kind == ql.JunctionOr {
			return Or(preds...)
		}
		return And(preds...)
	case *ql.NotFilter:
		return Not(l.lower(t, m, f.Filter))
	case *ql.ScalarFilter:
		return scalarPredicate(t.C(f.Field.Column), f)
	case *ql.ScalarListFilter:
		return l.list(t, m, f)
	case *ql.RelationFilter:
		return l.relation(t, m, f)
	}
	panic(fmt.Sprintf("dialect/sql: unexpected filter type %T", f))
}

func scalarPredicate(col string, f *ql.ScalarFilter) *Predicate {
	v := BindValue(f.Field, f.Value)
	switch f.Condition {
	case ql.CondEquals:
		if v == nil {
			return IsNull(col)
		}
		return EQ(col, v)
	case ql.CondNotEquals:
		if v == nil {
			return NotNull(col)
		}
		return NEQ(col, v)
	case ql.CondLessThan:
		return LT(col, v)
	case ql.CondLessThanOrEquals:
		return LTE(col, v)
	case ql.CondGreaterThan:
		return GT(col, v)
	case ql.CondGreaterThanOrEquals:
		return GTE(col, v)
	case ql.CondIn:
		return In(col, bindValues(f.Field, f.Value)...)
	case ql.CondNotIn:
		return NotIn(col, bindValues(f.Field, f.Value)...)
	case ql.CondContains:
		return Like(col, "%"+fmt.Sprint(v)+"%")
	case ql.CondNotContains:
		return NotLike(col, "%"+fmt.Sprint(v)+"%")
	case ql.CondStartsWith:
		return Like(col, fmt.Sprint(v)+"%")
	case ql.CondNotStartsWith:
		return NotLike(col, fmt.Sprint(v)+"%")
	case ql.CondEndsWith:
		return Like(col, "%"+fmt.Sprint(v))
	case ql.CondNotEndsWith:
		return NotLike(col, "%"+fmt.Sprint(v))
	}
	panic(fmt.Sprintf("dialect/sql: unexpected scalar condition %d", f.Condition))
}

func bindValues(f *schema.Field, v any) []any {
	vs, _ := v.([]any)
	out := make([]any, len(vs))
	for i := range vs {
		out[i] = BindValue(f, vs[i])
	}
	return out
}

func (l *filterLowering) list(t *TableView, m *schema.Model, f *ql.ScalarListFilter) *Predicate {
	id := t.C(m.ID().Column)
	sub := func(p func(lt *TableView) *Predicate) *Predicate {
		lt := Table(f.Field.ScalarListTable()).As(l.alias())
		s := Dialect(l.dialect).Select(lt.C(schema.ListNodeIDColumn)).From(lt).Where(p(lt))
		return InSelect(id, s)
	}
	values := bindValues(f.Field, f.Values)
	switch f.Condition {
	case ql.ListContainsEvery:
		preds := make([]*Predicate, len(values))
		for i, v := range values {
			preds[i] = sub(func(lt *TableView) *Predicate { return EQ(lt.C(schema.ListValueColumn), v) })
		}
		return And(preds...)
	case ql.ListContainsSome:
		return sub(func(lt *TableView) *Predicate { return In(lt.C(schema.ListValueColumn), values...) })
	}
	if len(values) == 0 {
		return False()
	}
	return sub(func(lt *TableView) *Predicate { return EQ(lt.C(schema.ListValueColumn), values[0]) })
}

func (l *filterLowering) relation(t *TableView, m *schema.Model, f *ql.RelationFilter) *Predicate {
	src := NewRelatedSource(f.Field, l.alias())
	s := src.Select(l.dialect, src.ParentColumn()).Where(NotNull(src.ParentColumn()))
	child := f.Field.RelatedModel()
	id := t.C(m.ID().Column)
	if f.Condition == ql.RelEvery {
		if ql.IsEmpty(f.Nested) {
			return True()
		}
		return NotInSelect(id, s.Where(Not(l.lower(src.Table(), child, f.Nested))))
	}
	if !ql.IsEmpty(f.Nested) {
		s.Where(l.lower(src.Table(), child, f.Nested))
	}
	if f.Condition == ql.RelNone {
		return NotInSelect(id, s)
	}
	return InSelect(id, s)
}
