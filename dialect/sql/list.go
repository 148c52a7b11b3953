package sql

import (
	ql "github.com/syssam/veloxq/querylanguage"
	"github.com/syssam/veloxq/schema"
)

// ListPositionStep is the gap between the positions of consecutive scalar
// list values.
const ListPositionStep = 1000

// ListValuesSelect returns the statement reading the values of a scalar list
// field for the given records, in list order.
func ListValuesSelect(d string, f *schema.Field, ids []ql.RecordID) *Selector {
	t := Table(f.ScalarListTable())
	return Dialect(d).Select(t.C(schema.ListNodeIDColumn), t.C(schema.ListValueColumn)).
		From(t).
		Where(In(t.C(schema.ListNodeIDColumn), ql.IDValues(ids)...)).
		OrderBy(Asc(t.C(schema.ListNodeIDColumn)), Asc(t.C(schema.ListPositionColumn)))
}

// ListValuesDelete returns the statement removing the values of a scalar
// list field for the given records.
func ListValuesDelete(d string, f *schema.Field, ids []ql.RecordID) *DeleteBuilder {
	return Dialect(d).Delete(f.ScalarListTable()).
		Where(In(schema.ListNodeIDColumn, ql.IDValues(ids)...))
}

// ListValuesInsert returns the statement storing values as the scalar list
// of every given record, or nil if there is nothing to insert.
func ListValuesInsert(d string, f *schema.Field, ids []ql.RecordID, values []any) *InsertBuilder {
	if len(ids) == 0 || len(values) == 0 {
		return nil
	}
	ins := Dialect(d).Insert(f.ScalarListTable()).
		Columns(schema.ListNodeIDColumn, schema.ListPositionColumn, schema.ListValueColumn)
	for _, id := range ids {
		for i, v := range values {
			ins.Values(id.Value(), (i+1)*ListPositionStep, BindValue(f, v))
		}
	}
	return ins
}
