package sqlgraph

import (
	"context"

	"github.com/syssam/veloxq"
	"github.com/syssam/veloxq/dialect/sql"
	ql "github.com/syssam/veloxq/querylanguage"
	"github.com/syssam/veloxq/schema"
)

// SelectExecutor runs a selection of ids. The relation checks take it
// instead of a Transaction so they can run on any connection.
type SelectExecutor func(ctx context.Context, s *sql.Selector, t schema.Type) ([]ql.RecordID, error)

// CheckRelationViolations fails with a veloxq.RelationViolationError if
// removing the records of m with the given ids would leave a record whose
// required relation field points at one of them. It must complete before
// any delete of the records is issued.
func CheckRelationViolations(ctx context.Context, d string, m *schema.Model, ids []ql.RecordID, exec SelectExecutor) error {
	if len(ids) == 0 {
		return nil
	}
	for _, rf := range m.Registry().FieldsRequiringModel(m) {
		t := sql.Table(rf.RelationTable())
		s := sql.Dialect(d).Select(t.C(rf.OppositeColumn())).
			From(t).
			Where(sql.In(t.C(rf.OppositeColumn()), ql.IDValues(ids)...)).
			Where(sql.NotNull(t.C(rf.RelationColumn()))).
			Limit(1)
		found, err := exec(ctx, s, m.ID().Type)
		if err != nil {
			return err
		}
		if len(found) > 0 {
			rel := rf.Relation()
			return veloxq.NewRelationViolationError(rel.Name, rel.ModelA().Name, rel.ModelB().Name)
		}
	}
	return nil
}

// Selector returns the transaction as a SelectExecutor.
func Selector(tx Transaction) SelectExecutor {
	return func(ctx context.Context, s *sql.Selector, t schema.Type) ([]ql.RecordID, error) {
		return tx.SelectIDs(ctx, s, t)
	}
}
