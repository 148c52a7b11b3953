package sqlgraph

import (
	"context"

	"github.com/syssam/veloxq/dialect/sql"
	"github.com/syssam/veloxq/queryast"
	ql "github.com/syssam/veloxq/querylanguage"
	"github.com/syssam/veloxq/schema"
)

// UpdateRecord updates the record located by finder with the scalar args
// and replaces its scalar lists. It returns the id of the record and fails
// with a veloxq.NotFoundError if the finder matches nothing.
func UpdateRecord(ctx context.Context, tx Transaction, finder *ql.RecordFinder, args queryast.Args, lists []queryast.ListArg) (ql.RecordID, error) {
	m := finder.Model()
	id, err := tx.FindID(ctx, finder)
	if err != nil {
		return ql.RecordID{}, err
	}
	ids := []ql.RecordID{id}
	if u := updateStatement(tx.Dialect(), m, ids, args, len(args) > 0 || len(lists) > 0); u != nil {
		if _, err := tx.Update(ctx, u); err != nil {
			return ql.RecordID{}, err
		}
	}
	if err := UpdateListArgs(ctx, tx, ids, lists); err != nil {
		return ql.RecordID{}, err
	}
	return id, nil
}

// UpdateRecordNested updates a record connected to the scope parent. The
// finder is optional for to-one relations. When given it must match an
// existing record, and that record must be connected to the parent.
func UpdateRecordNested(ctx context.Context, tx Transaction, scope *queryast.NestedScope, finder *ql.RecordFinder, args queryast.Args, lists []queryast.ListArg) (ql.RecordID, error) {
	if finder != nil {
		if _, err := tx.FindID(ctx, finder); err != nil {
			return ql.RecordID{}, err
		}
	}
	id, err := findIDInScope(ctx, tx, scope, finder)
	if err != nil {
		return ql.RecordID{}, err
	}
	return UpdateRecord(ctx, tx, ql.FinderForID(scope.Field.RelatedModel(), id), args, lists)
}

// UpdateManyRecords updates every record of m matching filter and returns
// their number. Nothing is written when no record matches.
func UpdateManyRecords(ctx context.Context, tx Transaction, m *schema.Model, filter ql.Filter, args queryast.Args, lists []queryast.ListArg) (int, error) {
	ids, err := tx.FilterIDs(ctx, m, filter)
	if err != nil {
		return 0, err
	}
	return updateIDs(ctx, tx, m, ids, args, lists)
}

// UpdateManyRecordsNested updates the records connected to the scope parent
// and matching filter, and returns their number.
func UpdateManyRecordsNested(ctx context.Context, tx Transaction, scope *queryast.NestedScope, filter ql.Filter, args queryast.Args, lists []queryast.ListArg) (int, error) {
	ids, err := tx.FilterIDsByParents(ctx, scope.Field, []ql.RecordID{scope.ParentID}, filter)
	if err != nil {
		return 0, err
	}
	return updateIDs(ctx, tx, scope.Field.RelatedModel(), ids, args, lists)
}

func updateIDs(ctx context.Context, tx Transaction, m *schema.Model, ids []ql.RecordID, args queryast.Args, lists []queryast.ListArg) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if u := updateStatement(tx.Dialect(), m, ids, args, len(args) > 0 || len(lists) > 0); u != nil {
		if _, err := tx.Update(ctx, u); err != nil {
			return 0, err
		}
	}
	if err := UpdateListArgs(ctx, tx, ids, lists); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// UpdateListArgs replaces the values of each scalar list of the records with
// the given ids. The old values of every record are deleted first, then the
// new ones are inserted once for the whole id set.
func UpdateListArgs(ctx context.Context, tx Transaction, ids []ql.RecordID, lists []queryast.ListArg) error {
	if len(ids) == 0 {
		return nil
	}
	for _, l := range lists {
		if _, err := tx.Delete(ctx, sql.ListValuesDelete(tx.Dialect(), l.Field, ids)); err != nil {
			return err
		}
		if ins := sql.ListValuesInsert(tx.Dialect(), l.Field, ids, l.Values); ins != nil {
			if _, err := tx.Insert(ctx, nil, ins); err != nil {
				return err
			}
		}
	}
	return nil
}
