package sql

import (
	"strconv"

	"github.com/syssam/veloxq/dialect"
	"github.com/syssam/veloxq/queryast"
	ql "github.com/syssam/veloxq/querylanguage"
	"github.com/syssam/veloxq/schema"
)

// ParentIDColumn is the name under which related record reads return the
// id of the parent each row belongs to.
const ParentIDColumn = "__relation_parent_id"

const rowNumberColumn = "__relation_row_number"

// RelatedSource joins the records of a relation field's related model to the
// ids of their parents. When the relation is stored on the related model's
// table no join is needed.
type RelatedSource struct {
	field  *schema.RelationField
	table  *TableView
	rel    *TableView
	parent string
}

// NewRelatedSource returns the source of rf's related records, reading the
// related model table under alias. An empty alias reads it under its name.
func NewRelatedSource(rf *schema.RelationField, alias string) *RelatedSource {
	child := rf.RelatedModel()
	src := &RelatedSource{field: rf, table: Table(child.Table)}
	if alias != "" {
		src.table.As(alias)
	}
	if rf.RelationTable() == child.Table && rf.OppositeColumn() == child.ID().Column {
		src.parent = src.table.C(rf.RelationColumn())
		return src
	}
	relAlias := "rel"
	if alias != "" {
		relAlias = alias + "_rel"
	}
	src.rel = Table(rf.RelationTable()).As(relAlias)
	src.parent = src.rel.C(rf.RelationColumn())
	return src
}

// Table returns the view of the related model table.
func (s *RelatedSource) Table() *TableView { return s.table }

// ParentColumn returns the qualified column holding the parent ids.
func (s *RelatedSource) ParentColumn() string { return s.parent }

// ChildColumn returns the qualified id column of the related records.
func (s *RelatedSource) ChildColumn() string {
	return s.table.C(s.field.RelatedModel().ID().Column)
}

// Select returns a selector of columns over the source.
func (s *RelatedSource) Select(d string, columns ...string) *Selector {
	sel := Dialect(d).Select(columns...).From(s.table)
	if s.rel != nil {
		sel.Join(s.rel).On(s.rel.C(s.field.OppositeColumn()), s.ChildColumn())
	}
	return sel
}

// RelatedRecordsQuery describes a read of the records related to a set of
// parents.
type RelatedRecordsQuery struct {
	Field     *schema.RelationField
	ParentIDs []ql.RecordID
	Args      queryast.QueryArguments
	Columns   []*schema.Field
}

// RelatedRecordsBuilder builds related record reads. Every row returned by
// its statements carries the parent id in the ParentIDColumn column.
type RelatedRecordsBuilder interface {
	// WithPagination builds a read slicing the records of every parent
	// independently.
	WithPagination(d string, q RelatedRecordsQuery) *Selector
	// WithoutPagination builds a read of all related records.
	WithoutPagination(d string, q RelatedRecordsQuery) *Selector
}

// NewRelatedRecordsBuilder returns the strategy supported by caps.
func NewRelatedRecordsBuilder(caps dialect.Capabilities) RelatedRecordsBuilder {
	if caps.RowNumber {
		return RowNumberBuilder{}
	}
	return UnionAllBuilder{}
}

// RowNumberBuilder paginates with a ROW_NUMBER() window partitioned by
// parent.
type RowNumberBuilder struct{}

// WithoutPagination implements RelatedRecordsBuilder.
func (RowNumberBuilder) WithoutPagination(d string, q RelatedRecordsQuery) *Selector {
	return relatedBase(d, q, q.ParentIDs, true)
}

// WithPagination implements RelatedRecordsBuilder.
func (RowNumberBuilder) WithPagination(d string, q RelatedRecordsQuery) *Selector {
	src := NewRelatedSource(q.Field, "")
	inner := relatedBase(d, q, q.ParentIDs, false)
	order := sqlOrder(src.Table(), q.Field.RelatedModel(), q.Args)
	inner.AppendSelectExprAs(RowNumber(src.ParentColumn(), order...), rowNumberColumn)

	t := SubSelect(inner, "t")
	cols := make([]string, 0, len(q.Columns)+1)
	for _, f := range q.Columns {
		cols = append(cols, t.C(f.Column))
	}
	cols = append(cols, t.C(ParentIDColumn))
	outer := Dialect(d).Select(cols...).From(t)
	skip := 0
	if q.Args.Skip != nil {
		skip = *q.Args.Skip
	}
	outer.Where(GT(t.C(rowNumberColumn), skip))
	if n := take(q.Args); n != nil {
		outer.Where(LTE(t.C(rowNumberColumn), skip+*n))
	}
	return outer.OrderBy(Asc(t.C(ParentIDColumn)), Asc(t.C(rowNumberColumn)))
}

// UnionAllBuilder paginates with one sub-select per parent combined with
// UNION ALL.
type UnionAllBuilder struct{}

// WithoutPagination implements RelatedRecordsBuilder.
func (UnionAllBuilder) WithoutPagination(d string, q RelatedRecordsQuery) *Selector {
	return relatedBase(d, q, q.ParentIDs, true)
}

// WithPagination implements RelatedRecordsBuilder.
func (UnionAllBuilder) WithPagination(d string, q RelatedRecordsQuery) *Selector {
	if len(q.ParentIDs) == 0 {
		return relatedBase(d, q, nil, true)
	}
	var union *Selector
	for i, id := range q.ParentIDs {
		part := relatedBase(d, q, []ql.RecordID{id}, true)
		if q.Args.Skip != nil {
			part.Offset(*q.Args.Skip)
		}
		if n := take(q.Args); n != nil {
			part.Limit(*n)
		}
		wrapped := Dialect(d).Select("*").From(SubSelect(part, "p"+strconv.Itoa(i)))
		if union == nil {
			union = wrapped
		} else {
			union.UnionAll(wrapped)
		}
	}
	return union
}

// relatedBase selects the related columns with the parent id of every row,
// filtered by the query arguments.
func relatedBase(d string, q RelatedRecordsQuery, parents []ql.RecordID, ordered bool) *Selector {
	src := NewRelatedSource(q.Field, "")
	child := q.Field.RelatedModel()
	cols := make([]string, len(q.Columns))
	for i, f := range q.Columns {
		cols[i] = src.Table().C(f.Column)
	}
	s := src.Select(d, cols...).AppendSelectExprAs(Ident(src.ParentColumn()), ParentIDColumn)
	s.Where(In(src.ParentColumn(), ql.IDValues(parents)...))
	if !ql.IsEmpty(q.Args.Filter) {
		s.Where(FilterPredicate(d, src.Table(), child, q.Args.Filter))
	}
	if p := cursorPredicate(d, src.Table(), child, q.Args); p != nil {
		s.Where(p)
	}
	if ordered {
		s.OrderBy(sqlOrder(src.Table(), child, q.Args)...)
	}
	return s
}

// take returns the number of records to read per parent.
func take(args queryast.QueryArguments) *int {
	if args.Last != nil {
		return args.Last
	}
	return args.First
}
