package sql

import (
	"strconv"
	"strings"

	"github.com/syssam/veloxq/dialect"
)

// Querier wraps the Query method implemented by every statement builder.
type Querier interface {
	// Query returns the statement text and its arguments.
	Query() (string, []any)
}

// Builder writes statement text for one dialect. It quotes identifiers and
// numbers placeholders; nested statements share the builder of their parent
// so Postgres placeholders stay sequential.
type Builder struct {
	sb      strings.Builder
	dialect string
	args    []any
}

// NewBuilder returns an empty builder for the dialect.
func NewBuilder(dialect string) *Builder {
	return &Builder{dialect: dialect}
}

// Dialect returns the dialect of the builder.
func (b *Builder) Dialect() string { return b.dialect }

// String returns the accumulated statement text.
func (b *Builder) String() string { return b.sb.String() }

// Args returns the accumulated arguments.
func (b *Builder) Args() []any { return b.args }

// WriteString writes raw text.
func (b *Builder) WriteString(s string) *Builder {
	b.sb.WriteString(s)
	return b
}

// Byte writes a raw byte.
func (b *Builder) Byte(c byte) *Builder {
	b.sb.WriteByte(c)
	return b
}

// Ident writes a possibly qualified identifier ("table.column") quoted for
// the dialect. "*" parts are written as is.
func (b *Builder) Ident(s string) *Builder {
	for i, part := range strings.Split(s, ".") {
		if i > 0 {
			b.sb.WriteByte('.')
		}
		if part == "*" {
			b.sb.WriteByte('*')
			continue
		}
		b.sb.WriteString(b.Quote(part))
	}
	return b
}

// IdentComma writes identifiers separated by commas.
func (b *Builder) IdentComma(idents ...string) *Builder {
	for i, s := range idents {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.Ident(s)
	}
	return b
}

// Quote quotes a single identifier.
func (b *Builder) Quote(ident string) string {
	if b.dialect == dialect.Postgres {
		return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
	}
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

// Arg writes a placeholder for v and records the argument.
func (b *Builder) Arg(v any) *Builder {
	b.args = append(b.args, v)
	if b.dialect == dialect.Postgres {
		b.sb.WriteByte('$')
		b.sb.WriteString(strconv.Itoa(len(b.args)))
		return b
	}
	b.sb.WriteByte('?')
	return b
}

// ArgList writes comma separated placeholders for vs.
func (b *Builder) ArgList(vs ...any) *Builder {
	for i, v := range vs {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.Arg(v)
	}
	return b
}

// Nested writes a parenthesized sub-statement sharing the builder arguments.
func (b *Builder) Nested(w interface{ writeTo(*Builder) }) *Builder {
	b.sb.WriteByte('(')
	w.writeTo(b)
	b.sb.WriteByte(')')
	return b
}

// DialectBuilder creates statements for one dialect.
type DialectBuilder struct {
	dialect string
}

// Dialect returns a DialectBuilder for the given dialect name.
func Dialect(name string) *DialectBuilder {
	return &DialectBuilder{dialect: name}
}

// Select returns a Selector of the given columns.
func (d *DialectBuilder) Select(columns ...string) *Selector {
	return &Selector{dialect: d.dialect, columns: selectColumns(columns)}
}

// Insert returns an InsertBuilder for the table.
func (d *DialectBuilder) Insert(table string) *InsertBuilder {
	return &InsertBuilder{dialect: d.dialect, table: table}
}

// Update returns an UpdateBuilder for the table.
func (d *DialectBuilder) Update(table string) *UpdateBuilder {
	return &UpdateBuilder{dialect: d.dialect, table: table}
}

// Delete returns a DeleteBuilder for the table.
func (d *DialectBuilder) Delete(table string) *DeleteBuilder {
	return &DeleteBuilder{dialect: d.dialect, table: table}
}

// TableView is a table or an aliased sub-select used in FROM and JOIN.
type TableView struct {
	name  string
	as    string
	inner *Selector
}

// Table returns a table view of the named table.
func Table(name string) *TableView { return &TableView{name: name} }

// As sets the alias of the table.
func (t *TableView) As(alias string) *TableView {
	t.as = alias
	return t
}

// C returns the column qualified with the table alias or name.
func (t *TableView) C(column string) string {
	if t.as != "" {
		return t.as + "." + column
	}
	return t.name + "." + column
}

// Name returns the alias if set, otherwise the table name.
func (t *TableView) Name() string {
	if t.as != "" {
		return t.as
	}
	return t.name
}

func (t *TableView) writeTo(b *Builder) {
	if t.inner != nil {
		b.Nested(t.inner)
	} else {
		b.Ident(t.name)
	}
	if t.as != "" {
		b.WriteString(" AS ").Ident(t.as)
	}
}

// SubSelect returns the selector as a table view with the given alias.
func SubSelect(s *Selector, alias string) *TableView {
	return &TableView{inner: s, as: alias}
}

// Expr is a fragment written into a statement.
type Expr func(*Builder)

// Raw returns an expression writing s as is.
func Raw(s string) Expr { return func(b *Builder) { b.WriteString(s) } }

// Ident returns an expression writing a quoted identifier.
func Ident(s string) Expr { return func(b *Builder) { b.Ident(s) } }

// Count returns the COUNT(*) expression.
func Count() Expr { return Raw("COUNT(*)") }

// RowNumber returns a ROW_NUMBER() window ranking the rows of each partition.
func RowNumber(partition string, order ...Order) Expr {
	return func(b *Builder) {
		b.WriteString("ROW_NUMBER() OVER (PARTITION BY ").Ident(partition)
		if len(order) > 0 {
			b.WriteString(" ORDER BY ")
			writeOrder(b, order)
		}
		b.Byte(')')
	}
}

type column struct {
	expr Expr
	as   string
}

func selectColumns(names []string) []column {
	cols := make([]column, len(names))
	for i, n := range names {
		cols[i] = column{expr: Ident(n)}
	}
	return cols
}

// Order is one term of an ORDER BY clause.
type Order struct {
	Column string
	Desc   bool
}

// Asc returns an ascending order term.
func Asc(column string) Order { return Order{Column: column} }

// Desc returns a descending order term.
func Desc(column string) Order { return Order{Column: column, Desc: true} }

func writeOrder(b *Builder, order []Order) {
	for i, o := range order {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Ident(o.Column)
		if o.Desc {
			b.WriteString(" DESC")
		} else {
			b.WriteString(" ASC")
		}
	}
}

type join struct {
	table *TableView
	on    *Predicate
}

// Selector builds a SELECT statement.
type Selector struct {
	dialect  string
	distinct bool
	columns  []column
	from     *TableView
	joins    []join
	where    *Predicate
	order    []Order
	limit    *int
	offset   *int
	unionAll []*Selector
}

// SetDialect sets the dialect of the selector.
func (s *Selector) SetDialect(name string) *Selector {
	s.dialect = name
	return s
}

// Dialect returns the dialect of the selector.
func (s *Selector) Dialect() string { return s.dialect }

// Distinct adds DISTINCT to the selection.
func (s *Selector) Distinct() *Selector {
	s.distinct = true
	return s
}

// AppendSelect appends column identifiers to the selection.
func (s *Selector) AppendSelect(columns ...string) *Selector {
	s.columns = append(s.columns, selectColumns(columns)...)
	return s
}

// AppendSelectExprAs appends an aliased expression to the selection.
func (s *Selector) AppendSelectExprAs(e Expr, as string) *Selector {
	s.columns = append(s.columns, column{expr: e, as: as})
	return s
}

// SelectExpr replaces the selection with expressions.
func (s *Selector) SelectExpr(exprs ...Expr) *Selector {
	s.columns = s.columns[:0]
	for _, e := range exprs {
		s.columns = append(s.columns, column{expr: e})
	}
	return s
}

// From sets the source of the selection.
func (s *Selector) From(t *TableView) *Selector {
	s.from = t
	return s
}

// Join adds an inner join.
func (s *Selector) Join(t *TableView) *Selector {
	s.joins = append(s.joins, join{table: t})
	return s
}

// On sets the condition of the last join to the equality of two columns.
func (s *Selector) On(c1, c2 string) *Selector {
	s.joins[len(s.joins)-1].on = ColumnsEQ(c1, c2)
	return s
}

// Where appends a predicate with AND.
func (s *Selector) Where(p *Predicate) *Selector {
	if p == nil {
		return s
	}
	if s.where == nil {
		s.where = p
	} else {
		s.where = And(s.where, p)
	}
	return s
}

// OrderBy appends order terms.
func (s *Selector) OrderBy(order ...Order) *Selector {
	s.order = append(s.order, order...)
	return s
}

// Limit sets the LIMIT of the statement.
func (s *Selector) Limit(n int) *Selector {
	s.limit = &n
	return s
}

// Offset sets the OFFSET of the statement.
func (s *Selector) Offset(n int) *Selector {
	s.offset = &n
	return s
}

// UnionAll appends selectors combined with UNION ALL.
func (s *Selector) UnionAll(others ...*Selector) *Selector {
	s.unionAll = append(s.unionAll, others...)
	return s
}

// Query returns the statement and its arguments.
func (s *Selector) Query() (string, []any) {
	b := NewBuilder(s.dialect)
	s.writeTo(b)
	return b.String(), b.args
}

func (s *Selector) writeTo(b *Builder) {
	b.WriteString("SELECT ")
	if s.distinct {
		b.WriteString("DISTINCT ")
	}
	if len(s.columns) == 0 {
		b.Byte('*')
	}
	for i, c := range s.columns {
		if i > 0 {
			b.WriteString(", ")
		}
		c.expr(b)
		if c.as != "" {
			b.WriteString(" AS ").Ident(c.as)
		}
	}
	if s.from != nil {
		b.WriteString(" FROM ")
		s.from.writeTo(b)
	}
	for _, j := range s.joins {
		b.WriteString(" JOIN ")
		j.table.writeTo(b)
		if j.on != nil {
			b.WriteString(" ON ")
			j.on.writeTo(b)
		}
	}
	if s.where != nil {
		b.WriteString(" WHERE ")
		s.where.writeTo(b)
	}
	for _, u := range s.unionAll {
		b.WriteString(" UNION ALL ")
		u.writeTo(b)
	}
	if len(s.order) > 0 {
		b.WriteString(" ORDER BY ")
		writeOrder(b, s.order)
	}
	switch {
	case s.limit != nil:
		b.WriteString(" LIMIT ").WriteString(strconv.Itoa(*s.limit))
	case s.offset != nil && b.dialect == dialect.SQLite:
		b.WriteString(" LIMIT -1")
	case s.offset != nil && b.dialect == dialect.MySQL:
		b.WriteString(" LIMIT 18446744073709551615")
	}
	if s.offset != nil {
		b.WriteString(" OFFSET ").WriteString(strconv.Itoa(*s.offset))
	}
}

// InsertBuilder builds an INSERT statement.
type InsertBuilder struct {
	dialect   string
	table     string
	columns   []string
	values    [][]any
	returning []string
}

// Columns sets the inserted columns.
func (i *InsertBuilder) Columns(columns ...string) *InsertBuilder {
	i.columns = columns
	return i
}

// Values appends a row of values aligned with the columns.
func (i *InsertBuilder) Values(values ...any) *InsertBuilder {
	i.values = append(i.values, values)
	return i
}

// Returning sets the RETURNING clause. It is ignored by dialects that do
// not support it.
func (i *InsertBuilder) Returning(columns ...string) *InsertBuilder {
	i.returning = columns
	return i
}

// Query returns the statement and its arguments.
func (i *InsertBuilder) Query() (string, []any) {
	b := NewBuilder(i.dialect)
	b.WriteString("INSERT INTO ").Ident(i.table)
	switch {
	case len(i.columns) == 0 && i.dialect == dialect.MySQL:
		b.WriteString(" () VALUES ()")
	case len(i.columns) == 0:
		b.WriteString(" DEFAULT VALUES")
	default:
		b.WriteString(" (").IdentComma(i.columns...).WriteString(") VALUES ")
		for j, row := range i.values {
			if j > 0 {
				b.WriteString(", ")
			}
			b.Byte('(').ArgList(row...).Byte(')')
		}
	}
	if len(i.returning) > 0 && dialect.CapabilitiesOf(i.dialect).Returning {
		b.WriteString(" RETURNING ").IdentComma(i.returning...)
	}
	return b.String(), b.args
}

// UpdateBuilder builds an UPDATE statement.
type UpdateBuilder struct {
	dialect string
	table   string
	columns []string
	values  []any
	where   *Predicate
}

// Set sets a column to a value.
func (u *UpdateBuilder) Set(column string, v any) *UpdateBuilder {
	u.columns = append(u.columns, column)
	u.values = append(u.values, v)
	return u
}

// Empty reports if no column is set.
func (u *UpdateBuilder) Empty() bool { return len(u.columns) == 0 }

// Where appends a predicate with AND.
func (u *UpdateBuilder) Where(p *Predicate) *UpdateBuilder {
	if u.where == nil {
		u.where = p
	} else {
		u.where = And(u.where, p)
	}
	return u
}

// Query returns the statement and its arguments.
func (u *UpdateBuilder) Query() (string, []any) {
	b := NewBuilder(u.dialect)
	b.WriteString("UPDATE ").Ident(u.table).WriteString(" SET ")
	for i, c := range u.columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Ident(c).WriteString(" = ").Arg(u.values[i])
	}
	if u.where != nil {
		b.WriteString(" WHERE ")
		u.where.writeTo(b)
	}
	return b.String(), b.args
}

// DeleteBuilder builds a DELETE statement.
type DeleteBuilder struct {
	dialect string
	table   string
	where   *Predicate
}

// Where appends a predicate with AND.
func (d *DeleteBuilder) Where(p *Predicate) *DeleteBuilder {
	if d.where == nil {
		d.where = p
	} else {
		d.where = And(d.where, p)
	}
	return d
}

// Query returns the statement and its arguments.
func (d *DeleteBuilder) Query() (string, []any) {
	b := NewBuilder(d.dialect)
	b.WriteString("DELETE FROM ").Ident(d.table)
	if d.where != nil {
		b.WriteString(" WHERE ")
		d.where.writeTo(b)
	}
	return b.String(), b.args
}

var (
	_ Querier = (*Selector)(nil)
	_ Querier = (*InsertBuilder)(nil)
	_ Querier = (*UpdateBuilder)(nil)
	_ Querier = (*DeleteBuilder)(nil)
)
