package sql

// Predicate is a boolean expression used in WHERE and ON clauses.
type Predicate struct {
	write func(*Builder)
}

func (p *Predicate) writeTo(b *Builder) { p.write(b) }

// P returns a predicate written by fn.
func P(fn func(*Builder)) *Predicate { return &Predicate{write: fn} }

func binary(col, op string, v any) *Predicate {
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" " + op + " ").Arg(v)
	})
}

// EQ returns a "col = v" predicate.
func EQ(col string, v any) *Predicate { return binary(col, "=", v) }

// NEQ returns a "col <> v" predicate.
func NEQ(col string, v any) *Predicate { return binary(col, "<>", v) }

// LT returns a "col < v" predicate.
func LT(col string, v any) *Predicate { return binary(col, "<", v) }

// LTE returns a "col <= v" predicate.
func LTE(col string, v any) *Predicate { return binary(col, "<=", v) }

// GT returns a "col > v" predicate.
func GT(col string, v any) *Predicate { return binary(col, ">", v) }

// GTE returns a "col >= v" predicate.
func GTE(col string, v any) *Predicate { return binary(col, ">=", v) }

// Like returns a "col LIKE pattern" predicate.
func Like(col, pattern string) *Predicate { return binary(col, "LIKE", pattern) }

// NotLike returns a "col NOT LIKE pattern" predicate.
func NotLike(col, pattern string) *Predicate { return binary(col, "NOT LIKE", pattern) }

// ColumnsEQ returns a "c1 = c2" predicate.
func ColumnsEQ(c1, c2 string) *Predicate {
	return P(func(b *Builder) { b.Ident(c1).WriteString(" = ").Ident(c2) })
}

// In returns a "col IN (vs)" predicate. An empty list matches nothing.
func In(col string, vs ...any) *Predicate {
	if len(vs) == 0 {
		return False()
	}
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" IN (").ArgList(vs...).Byte(')')
	})
}

// NotIn returns a "col NOT IN (vs)" predicate. An empty list matches
// everything.
func NotIn(col string, vs ...any) *Predicate {
	if len(vs) == 0 {
		return True()
	}
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" NOT IN (").ArgList(vs...).Byte(')')
	})
}

// InSelect returns a "col IN (SELECT ...)" predicate.
func InSelect(col string, s *Selector) *Predicate {
	return P(func(b *Builder) { b.Ident(col).WriteString(" IN ").Nested(s) })
}

// NotInSelect returns a "col NOT IN (SELECT ...)" predicate.
func NotInSelect(col string, s *Selector) *Predicate {
	return P(func(b *Builder) { b.Ident(col).WriteString(" NOT IN ").Nested(s) })
}

// CompareSelect returns a "col op (SELECT ...)" predicate. The selector must
// return at most one row.
func CompareSelect(col, op string, s *Selector) *Predicate {
	return P(func(b *Builder) { b.Ident(col).WriteString(" " + op + " ").Nested(s) })
}

// IsNull returns a "col IS NULL" predicate.
func IsNull(col string) *Predicate {
	return P(func(b *Builder) { b.Ident(col).WriteString(" IS NULL") })
}

// NotNull returns a "col IS NOT NULL" predicate.
func NotNull(col string) *Predicate {
	return P(func(b *Builder) { b.Ident(col).WriteString(" IS NOT NULL") })
}

// True returns a predicate matching every row.
func True() *Predicate { return P(func(b *Builder) { b.WriteString("1 = 1") }) }

// False returns a predicate matching no row.
func False() *Predicate { return P(func(b *Builder) { b.WriteString("1 = 0") }) }

func junction(op string, preds []*Predicate) *Predicate {
	return P(func(b *Builder) {
		b.Byte('(')
		for i, p := range preds {
			if i > 0 {
				b.WriteString(" " + op + " ")
			}
			p.writeTo(b)
		}
		b.Byte(')')
	})
}

// And returns the conjunction of predicates. An empty list matches every row.
func And(preds ...*Predicate) *Predicate {
	switch len(preds) {
	case 0:
		return True()
	case 1:
		return preds[0]
	}
	return junction("AND", preds)
}

// Or returns the disjunction of predicates. An empty list matches no row.
func Or(preds ...*Predicate) *Predicate {
	switch len(preds) {
	case 0:
		return False()
	case 1:
		return preds[0]
	}
	return junction("OR", preds)
}

// Not negates a predicate.
func Not(p *Predicate) *Predicate {
	return P(func(b *Builder) {
		b.WriteString("NOT (")
		p.writeTo(b)
		b.Byte(')')
	})
}
