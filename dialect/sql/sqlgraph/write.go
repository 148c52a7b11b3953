package sqlgraph

import (
	"context"
	"fmt"
	"time"

	"github.com/syssam/veloxq/dialect/sql"
	"github.com/syssam/veloxq/queryast"
	ql "github.com/syssam/veloxq/querylanguage"
	"github.com/syssam/veloxq/schema"
)

// Execute runs a single write query on tx and returns its result. Creates
// and updates report the written id, bulk writes the number of records
// written and DeleteRecord the image of the deleted record.
func Execute(ctx context.Context, tx Transaction, q queryast.WriteQuery) (*queryast.WriteResult, error) {
	switch q := q.(type) {
	case *queryast.CreateRecord:
		id, err := CreateRecord(ctx, tx, q)
		if err != nil {
			return nil, err
		}
		return &queryast.WriteResult{Kind: queryast.ResultID, ID: id}, nil
	case *queryast.UpdateRecord:
		var (
			id  ql.RecordID
			err error
		)
		if q.Scope != nil {
			id, err = UpdateRecordNested(ctx, tx, q.Scope, q.Where, q.Args, q.ListArgs)
		} else {
			id, err = UpdateRecord(ctx, tx, q.Where, q.Args, q.ListArgs)
		}
		if err != nil {
			return nil, err
		}
		return &queryast.WriteResult{Kind: queryast.ResultID, ID: id}, nil
	case *queryast.UpdateManyRecords:
		var (
			n   int
			err error
		)
		if q.Scope != nil {
			n, err = UpdateManyRecordsNested(ctx, tx, q.Scope, q.Filter, q.Args, q.ListArgs)
		} else {
			n, err = UpdateManyRecords(ctx, tx, q.Target, q.Filter, q.Args, q.ListArgs)
		}
		if err != nil {
			return nil, err
		}
		return &queryast.WriteResult{Kind: queryast.ResultCount, Count: n}, nil
	case *queryast.DeleteRecord:
		if q.Scope != nil {
			if err := DeleteRecordNested(ctx, tx, q.Scope, q.Where); err != nil {
				return nil, err
			}
			return &queryast.WriteResult{Kind: queryast.ResultUnit}, nil
		}
		rec, err := DeleteRecord(ctx, tx, q.Where)
		if err != nil {
			return nil, err
		}
		id, err := rec.ID(q.Target)
		if err != nil {
			return nil, err
		}
		return &queryast.WriteResult{Kind: queryast.ResultRecord, ID: id, Record: rec}, nil
	case *queryast.DeleteManyRecords:
		n, err := DeleteManyRecords(ctx, tx, q.Target, q.Filter, q.Scope)
		if err != nil {
			return nil, err
		}
		return &queryast.WriteResult{Kind: queryast.ResultCount, Count: n}, nil
	case *queryast.ConnectRecords:
		if err := ConnectRecords(ctx, tx, q.Field, q.Parent, q.Child); err != nil {
			return nil, err
		}
		return &queryast.WriteResult{Kind: queryast.ResultUnit}, nil
	case *queryast.DisconnectRecords:
		if err := DisconnectRecords(ctx, tx, q.Field, q.Parent, q.Child); err != nil {
			return nil, err
		}
		return &queryast.WriteResult{Kind: queryast.ResultUnit}, nil
	}
	return nil, fmt.Errorf("sqlgraph: unexpected write query %T", q)
}

// updateStatement returns the statement writing the scalar args to the
// records of m with the given ids, or nil if there is nothing to write.
// When stamp is set, the updatedAt field is refreshed unless the args set it.
func updateStatement(d string, m *schema.Model, ids []ql.RecordID, args queryast.Args, stamp bool) *sql.UpdateBuilder {
	u := sql.Dialect(d).Update(m.Table)
	for _, f := range args.Fields(m) {
		u.Set(f.Column, sql.BindValue(f, args[f.Name]))
	}
	if stamp {
		if f := m.Field(schema.UpdatedAtField); f != nil && f.IsTimestamp() && !args.Has(f.Name) {
			u.Set(f.Column, sql.BindValue(f, time.Now()))
		}
	}
	if u.Empty() {
		return nil
	}
	return u.Where(sql.In(m.ID().Column, ql.IDValues(ids)...))
}

// connectionSelect returns the statement reading the id of child if it is
// connected to parent through rf.
func connectionSelect(d string, rf *schema.RelationField, parent, child ql.RecordID) *sql.Selector {
	src := sql.NewRelatedSource(rf, "")
	return src.Select(d, src.ChildColumn()).
		Where(sql.EQ(src.ParentColumn(), parent.Value())).
		Where(sql.EQ(src.ChildColumn(), child.Value())).
		Limit(1)
}
