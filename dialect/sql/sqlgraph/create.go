package sqlgraph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/veloxq/dialect/sql"
	"github.com/syssam/veloxq/queryast"
	ql "github.com/syssam/veloxq/querylanguage"
	"github.com/syssam/veloxq/schema"
)

// CreateRecord inserts a record and its scalar lists and returns its id.
// Ids of UUID and String models are generated when not given, autoincrement
// ids are read back from the database. The createdAt and updatedAt fields
// are stamped unless set by the args.
func CreateRecord(ctx context.Context, tx Transaction, q *queryast.CreateRecord) (ql.RecordID, error) {
	m := q.Target
	args, err := createArgs(m, q.Args)
	if err != nil {
		return ql.RecordID{}, err
	}
	fields := args.Fields(m)
	columns := make([]string, len(fields))
	values := make([]any, len(fields))
	for i, f := range fields {
		columns[i] = f.Column
		values[i] = sql.BindValue(f, args[f.Name])
	}
	ins := sql.Dialect(tx.Dialect()).Insert(m.Table)
	if len(columns) > 0 {
		ins.Columns(columns...).Values(values...)
	}
	id, err := tx.Insert(ctx, m, ins)
	if err != nil {
		return ql.RecordID{}, err
	}
	if !m.ID().IsAutoIncrement {
		if id, err = ql.ParseID(m.ID().Type, args[m.ID().Name]); err != nil {
			return ql.RecordID{}, err
		}
	}
	for _, l := range q.ListArgs {
		if ins := sql.ListValuesInsert(tx.Dialect(), l.Field, []ql.RecordID{id}, l.Values); ins != nil {
			if _, err := tx.Insert(ctx, nil, ins); err != nil {
				return ql.RecordID{}, err
			}
		}
	}
	return id, nil
}

func createArgs(m *schema.Model, in queryast.Args) (queryast.Args, error) {
	args := in.Clone()
	idf := m.ID()
	if !idf.IsAutoIncrement && !args.Has(idf.Name) {
		switch idf.Type {
		case schema.TypeUUID:
			args.Set(idf.Name, uuid.New())
		case schema.TypeString:
			args.Set(idf.Name, uuid.NewString())
		default:
			return nil, fmt.Errorf("sqlgraph: create %s: missing value for id field %q", m.Name, idf.Name)
		}
	}
	now := time.Now()
	for _, f := range m.ScalarFields() {
		if f.IsTimestamp() && !args.Has(f.Name) {
			args.Set(f.Name, now)
		}
	}
	return args, nil
}
