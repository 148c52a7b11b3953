package sqlgraph

import (
	"context"

	"github.com/syssam/veloxq"
	"github.com/syssam/veloxq/dialect/sql"
	ql "github.com/syssam/veloxq/querylanguage"
	"github.com/syssam/veloxq/schema"
)

// ConnectRecords connects child to parent through rf, a relation field of
// the parent model. On a to-one end the previous connection is replaced;
// this fails with a veloxq.RelationViolationError if the record losing its
// connection requires it. Connecting records that are already connected is
// a no-op.
func ConnectRecords(ctx context.Context, tx Transaction, rf *schema.RelationField, parent, child ql.RecordID) error {
	if err := releaseToOne(ctx, tx, rf, parent, child); err != nil {
		return err
	}
	d := tx.Dialect()
	table := rf.RelationTable()
	switch rel := rf.Relation(); {
	case rel.Inline != nil && rf.Side() == rel.HolderSide():
		_, err := tx.Update(ctx, sql.Dialect(d).Update(table).
			Set(rf.OppositeColumn(), child.Value()).
			Where(sql.EQ(rf.RelationColumn(), parent.Value())))
		return err
	case rel.Inline != nil:
		_, err := tx.Update(ctx, sql.Dialect(d).Update(table).
			Set(rf.RelationColumn(), parent.Value()).
			Where(sql.EQ(rf.OppositeColumn(), child.Value())))
		return err
	}
	found, err := tx.SelectIDs(ctx, connectionSelect(d, rf, parent, child), rf.RelatedModel().ID().Type)
	if err != nil || len(found) > 0 {
		return err
	}
	_, err = tx.Insert(ctx, nil, sql.Dialect(d).Insert(table).
		Columns(rf.RelationColumn(), rf.OppositeColumn()).
		Values(parent.Value(), child.Value()))
	return err
}

// releaseToOne removes the connections that connecting parent and child
// would duplicate on a to-one end of the relation.
func releaseToOne(ctx context.Context, tx Transaction, rf *schema.RelationField, parent, child ql.RecordID) error {
	back := rf.RelatedField()
	// The parent holds at most one child. Its other children lose their
	// parent.
	if !rf.IsList {
		if err := release(ctx, tx, rf, back, rf.RelationColumn(), parent, rf.OppositeColumn(), child); err != nil {
			return err
		}
	}
	// The child holds at most one parent. Its other parents lose their
	// child.
	if back != nil && !back.IsList {
		if err := release(ctx, tx, rf, rf, rf.OppositeColumn(), child, rf.RelationColumn(), parent); err != nil {
			return err
		}
	}
	return nil
}

// release disconnects the rows of the relation table where column keep
// holds id and column other holds anything but except. The records in
// column other lose their connection, which fails if loser, their relation
// field, is required.
func release(ctx context.Context, tx Transaction, rf, loser *schema.RelationField, keep string, id ql.RecordID, other string, except ql.RecordID) error {
	d := tx.Dialect()
	rel := rf.Relation()
	match := sql.And(
		sql.EQ(keep, id.Value()),
		sql.NotNull(other),
		sql.NEQ(other, except.Value()),
	)
	if loser != nil && loser.IsRequired {
		n, err := tx.FindInt(ctx, sql.Dialect(d).Select().SelectExpr(sql.Count()).From(sql.Table(rel.Table())).Where(match))
		if err != nil {
			return err
		}
		if n > 0 {
			return veloxq.NewRelationViolationError(rel.Name, rel.ModelA().Name, rel.ModelB().Name)
		}
	}
	switch {
	case rel.Inline == nil:
		_, err := tx.Delete(ctx, sql.Dialect(d).Delete(rel.Table()).Where(match))
		return err
	case other == rel.Inline.Column:
		// The row keeps a single reference, overwritten by the connect.
		return nil
	}
	_, err := tx.Update(ctx, sql.Dialect(d).Update(rel.Table()).Set(rel.Inline.Column, nil).Where(match))
	return err
}

// DisconnectRecords removes the connection between parent and child. It
// fails with a veloxq.RelationViolationError if either end of the relation
// is required, and with a veloxq.RecordsNotConnectedError if the records are
// not connected.
func DisconnectRecords(ctx context.Context, tx Transaction, rf *schema.RelationField, parent, child ql.RecordID) error {
	rel := rf.Relation()
	if rel.IsRequired() {
		return veloxq.NewRelationViolationError(rel.Name, rel.ModelA().Name, rel.ModelB().Name)
	}
	d := tx.Dialect()
	table := rf.RelationTable()
	match := sql.And(
		sql.EQ(rf.RelationColumn(), parent.Value()),
		sql.EQ(rf.OppositeColumn(), child.Value()),
	)
	var (
		n   int
		err error
	)
	if rel.Inline == nil {
		n, err = tx.Delete(ctx, sql.Dialect(d).Delete(table).Where(match))
	} else {
		n, err = tx.Update(ctx, sql.Dialect(d).Update(table).Set(rel.Inline.Column, nil).Where(match))
	}
	if err != nil {
		return err
	}
	if n == 0 {
		return veloxq.NewRecordsNotConnectedError(rel.Name, rf.Model().Name, rf.RelatedModel().Name, ql.FinderForID(rf.RelatedModel(), child).Info()).
			WithParent(ql.FinderForID(rf.Model(), parent).Info())
	}
	return nil
}
