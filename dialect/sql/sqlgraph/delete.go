package sqlgraph

import (
	"context"
	"errors"

	"github.com/syssam/veloxq"
	"github.com/syssam/veloxq/dialect/sql"
	"github.com/syssam/veloxq/queryast"
	ql "github.com/syssam/veloxq/querylanguage"
	"github.com/syssam/veloxq/schema"
)

// DeleteRecord deletes the record located by finder and returns its image
// as read before the delete. It fails with a veloxq.NotFoundError if the
// finder matches nothing, and with a veloxq.RelationViolationError if a
// required relation points at the record.
func DeleteRecord(ctx context.Context, tx Transaction, finder *ql.RecordFinder) (*queryast.SingleRecord, error) {
	m := finder.Model()
	rec, err := tx.FindRecord(ctx, finder, m.ScalarFields())
	if err != nil {
		return nil, err
	}
	id, err := rec.ID(m)
	if err != nil {
		return nil, err
	}
	ids := []ql.RecordID{id}
	if err := CheckRelationViolations(ctx, tx.Dialect(), m, ids, Selector(tx)); err != nil {
		return nil, err
	}
	if _, err := deleteIDs(ctx, tx, m, ids); err != nil {
		return nil, err
	}
	return rec, nil
}

// DeleteRecordNested deletes a record connected to the scope parent. The
// finder is optional for to-one relations. When given it must match an
// existing record, and that record must be connected to the parent.
func DeleteRecordNested(ctx context.Context, tx Transaction, scope *queryast.NestedScope, finder *ql.RecordFinder) error {
	if finder != nil {
		if _, err := tx.FindID(ctx, finder); err != nil {
			return err
		}
	}
	rf := scope.Field
	parent := ql.FinderForID(rf.Model(), scope.ParentID).Info()
	id, err := findIDInScope(ctx, tx, scope, finder)
	if err != nil {
		return err
	}
	found, err := tx.SelectIDs(ctx, connectionSelect(tx.Dialect(), rf, scope.ParentID, id), rf.RelatedModel().ID().Type)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		return veloxq.NewRecordsNotConnectedError(rf.Relation().Name, rf.Model().Name, rf.RelatedModel().Name, finder.Info()).
			WithParent(parent)
	}
	child := rf.RelatedModel()
	ids := []ql.RecordID{id}
	if err := CheckRelationViolations(ctx, tx.Dialect(), child, ids, Selector(tx)); err != nil {
		return err
	}
	_, err = deleteIDs(ctx, tx, child, ids)
	return err
}

// findIDInScope returns the id of the record connected to the scope parent
// and matching finder. A missing connection is reported with the parent
// locator.
func findIDInScope(ctx context.Context, tx Transaction, scope *queryast.NestedScope, finder *ql.RecordFinder) (ql.RecordID, error) {
	id, err := tx.FindIDByParent(ctx, scope.Field, scope.ParentID, finder)
	var nc *veloxq.RecordsNotConnectedError
	if errors.As(err, &nc) {
		return ql.RecordID{}, nc.WithParent(ql.FinderForID(scope.Field.Model(), scope.ParentID).Info())
	}
	return id, err
}

// DeleteManyRecords deletes every record of m matching filter and returns
// their number. With a scope only the records connected to the scope parent
// are considered. No record is deleted if any of them is required by a
// relation.
func DeleteManyRecords(ctx context.Context, tx Transaction, m *schema.Model, filter ql.Filter, scope *queryast.NestedScope) (int, error) {
	var (
		ids []ql.RecordID
		err error
	)
	if scope != nil {
		ids, err = tx.FilterIDsByParents(ctx, scope.Field, []ql.RecordID{scope.ParentID}, filter)
	} else {
		ids, err = tx.FilterIDs(ctx, m, filter)
	}
	if err != nil || len(ids) == 0 {
		return 0, err
	}
	if err := CheckRelationViolations(ctx, tx.Dialect(), m, ids, Selector(tx)); err != nil {
		return 0, err
	}
	return deleteIDs(ctx, tx, m, ids)
}

// deleteIDs removes the records of m with the given ids. Their scalar list
// values and join table rows are deleted first, and optional inline
// references to them are set to NULL.
func deleteIDs(ctx context.Context, tx Transaction, m *schema.Model, ids []ql.RecordID) (int, error) {
	for _, d := range DeleteStatements(tx.Dialect(), m, ids) {
		if _, err := tx.Delete(ctx, d); err != nil {
			return 0, err
		}
	}
	for _, u := range detachStatements(tx.Dialect(), m, ids) {
		if _, err := tx.Update(ctx, u); err != nil {
			return 0, err
		}
	}
	return tx.Delete(ctx, sql.Dialect(tx.Dialect()).Delete(m.Table).
		Where(sql.In(m.ID().Column, ql.IDValues(ids)...)))
}

// DeleteStatements returns the statements removing the scalar list values
// and the join table rows of the records of m with the given ids.
func DeleteStatements(d string, m *schema.Model, ids []ql.RecordID) []*sql.DeleteBuilder {
	var stmts []*sql.DeleteBuilder
	for _, f := range m.ListFields() {
		stmts = append(stmts, sql.ListValuesDelete(d, f, ids))
	}
	for _, rel := range m.Registry().Relations() {
		if rel.JoinTable == nil {
			continue
		}
		for _, s := range []schema.Side{schema.SideA, schema.SideB} {
			if rel.Model(s) == m {
				stmts = append(stmts, sql.Dialect(d).Delete(rel.Table()).
					Where(sql.In(rel.ColumnFor(s), ql.IDValues(ids)...)))
			}
		}
	}
	return stmts
}

func detachStatements(d string, m *schema.Model, ids []ql.RecordID) []*sql.UpdateBuilder {
	var stmts []*sql.UpdateBuilder
	for _, rel := range m.Registry().Relations() {
		if rel.Inline == nil || rel.Model(rel.HolderSide().Opposite()) != m {
			continue
		}
		stmts = append(stmts, sql.Dialect(d).Update(rel.Table()).
			Set(rel.Inline.Column, nil).
			Where(sql.In(rel.Inline.Column, ql.IDValues(ids)...)))
	}
	return stmts
}
