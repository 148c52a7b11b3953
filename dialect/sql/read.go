package sql

import (
	"github.com/syssam/veloxq/queryast"
	ql "github.com/syssam/veloxq/querylanguage"
	"github.com/syssam/veloxq/schema"
)

// RecordSelect returns the statement reading the columns of the record
// identified by the finder.
func RecordSelect(d string, finder *ql.RecordFinder, columns []*schema.Field) *Selector {
	m := finder.Model()
	t := Table(m.Table)
	return Dialect(d).Select(qualify(t, columns)...).
		From(t).
		Where(FilterPredicate(d, t, m, finder.Filter())).
		Limit(1)
}

// RecordsSelect returns the statement reading the columns of the records of
// m matching the query arguments. With Last the order is reversed and the
// rows must be reversed back by the reader.
func RecordsSelect(d string, m *schema.Model, args queryast.QueryArguments, columns []*schema.Field) *Selector {
	t := Table(m.Table)
	s := Dialect(d).Select(qualify(t, columns)...).From(t)
	applyArguments(d, s, t, m, args)
	return s
}

// IDsSelect returns the statement reading the ids of the records of m
// matching filter.
func IDsSelect(d string, m *schema.Model, filter ql.Filter) *Selector {
	t := Table(m.Table)
	s := Dialect(d).Select(t.C(m.ID().Column)).From(t)
	if !ql.IsEmpty(filter) {
		s.Where(FilterPredicate(d, t, m, filter))
	}
	return s
}

// CountSelect returns the statement counting the records of m matching the
// query arguments. Pagination arguments are applied before counting.
func CountSelect(d string, m *schema.Model, args queryast.QueryArguments) *Selector {
	if !args.IsWithPagination() && args.After == nil && args.Before == nil {
		t := Table(m.Table)
		s := Dialect(d).Select().SelectExpr(Count()).From(t)
		if !ql.IsEmpty(args.Filter) {
			s.Where(FilterPredicate(d, t, m, args.Filter))
		}
		return s
	}
	inner := RecordsSelect(d, m, args, []*schema.Field{m.ID()})
	return Dialect(d).Select().SelectExpr(Count()).From(SubSelect(inner, "c"))
}

// CountTable returns the statement counting all rows of a table.
func CountTable(d, table string) *Selector {
	return Dialect(d).Select().SelectExpr(Count()).From(Table(table))
}

func qualify(t *TableView, columns []*schema.Field) []string {
	cols := make([]string, len(columns))
	for i, f := range columns {
		cols[i] = t.C(f.Column)
	}
	return cols
}

func applyArguments(d string, s *Selector, t *TableView, m *schema.Model, args queryast.QueryArguments) {
	if !ql.IsEmpty(args.Filter) {
		s.Where(FilterPredicate(d, t, m, args.Filter))
	}
	if p := cursorPredicate(d, t, m, args); p != nil {
		s.Where(p)
	}
	s.OrderBy(sqlOrder(t, m, args)...)
	if n := take(args); n != nil {
		s.Limit(*n)
	}
	if args.Skip != nil && *args.Skip > 0 {
		s.Offset(*args.Skip)
	}
}

// orderField returns the field and direction the records are sorted by.
func orderField(m *schema.Model, args queryast.QueryArguments) (*schema.Field, bool) {
	if args.OrderBy != nil && args.OrderBy.Field != nil {
		return args.OrderBy.Field, args.OrderBy.Descending
	}
	return m.ID(), false
}

// sqlOrder returns the ORDER BY terms of a read. The id breaks ties in the
// direction of the order field. Last reads the end of the set, so the
// direction is flipped.
func sqlOrder(t *TableView, m *schema.Model, args queryast.QueryArguments) []Order {
	f, desc := orderField(m, args)
	if args.Last != nil {
		desc = !desc
	}
	var order []Order
	if f != m.ID() {
		order = append(order, Order{Column: t.C(f.Column), Desc: desc})
	}
	return append(order, Order{Column: t.C(m.ID().Column), Desc: desc})
}

// cursorPredicate returns the predicate keeping the records after (or
// before) the cursor records in the read order, or nil.
func cursorPredicate(d string, t *TableView, m *schema.Model, args queryast.QueryArguments) *Predicate {
	var preds []*Predicate
	if args.After != nil {
		preds = append(preds, cursor(d, t, m, args, *args.After, true))
	}
	if args.Before != nil {
		preds = append(preds, cursor(d, t, m, args, *args.Before, false))
	}
	if len(preds) == 0 {
		return nil
	}
	return And(preds...)
}

func cursor(d string, t *TableView, m *schema.Model, args queryast.QueryArguments, id ql.RecordID, after bool) *Predicate {
	f, desc := orderField(m, args)
	op := ">"
	if desc == after {
		op = "<"
	}
	idCol := t.C(m.ID().Column)
	if f == m.ID() {
		return binary(idCol, op, id.Value())
	}
	ct := Table(m.Table).As("cursor")
	sub := func() *Selector {
		return Dialect(d).Select(ct.C(f.Column)).From(ct).Where(EQ(ct.C(m.ID().Column), id.Value()))
	}
	col := t.C(f.Column)
	return Or(
		CompareSelect(col, op, sub()),
		And(CompareSelect(col, "=", sub()), binary(idCol, op, id.Value())),
	)
}
