package sqlgraph

import (
	"context"
	"fmt"

	"github.com/syssam/veloxq"
	"github.com/syssam/veloxq/dialect"
	"github.com/syssam/veloxq/dialect/sql"
	"github.com/syssam/veloxq/queryast"
	ql "github.com/syssam/veloxq/querylanguage"
	"github.com/syssam/veloxq/schema"
)

// Transaction is the set of primitive operations the write orchestration
// and the readers run within one atomic scope. Every error is returned to
// the caller; none is swallowed.
type Transaction interface {
	// Dialect returns the dialect statements are built for.
	Dialect() string
	// Find reads the single row of a selection. It fails with a
	// veloxq.NotFoundError if the selection is empty.
	Find(ctx context.Context, s *sql.Selector, fields []*schema.Field) (queryast.Record, error)
	// Filter reads all rows of a selection. When parentID is set, each row
	// carries the id of its parent record.
	Filter(ctx context.Context, s *sql.Selector, fields []*schema.Field, parentID *schema.Field) ([]queryast.Record, error)
	// FindInt reads the integer of a one row, one column selection.
	FindInt(ctx context.Context, s *sql.Selector) (int, error)
	// FindRecord reads the fields of the record located by finder.
	FindRecord(ctx context.Context, finder *ql.RecordFinder, fields []*schema.Field) (*queryast.SingleRecord, error)
	// FindID resolves a finder to the id of the record it locates.
	FindID(ctx context.Context, finder *ql.RecordFinder) (ql.RecordID, error)
	// FindIDByParent resolves the id of a record connected to parentID
	// through rf, a relation field of the parent model. With a finder the
	// record must also match it. It fails with a
	// veloxq.RecordsNotConnectedError if no such record exists.
	FindIDByParent(ctx context.Context, rf *schema.RelationField, parentID ql.RecordID, finder *ql.RecordFinder) (ql.RecordID, error)
	// Insert runs an insert of a row of m. When m ids are generated by the
	// database the id of the inserted row is returned, otherwise the zero id.
	Insert(ctx context.Context, m *schema.Model, ins *sql.InsertBuilder) (ql.RecordID, error)
	// Update runs an update and returns the number of affected rows.
	Update(ctx context.Context, u *sql.UpdateBuilder) (int, error)
	// Delete runs a delete and returns the number of affected rows.
	Delete(ctx context.Context, d *sql.DeleteBuilder) (int, error)
	// SelectIDs reads the first column of a statement result as ids of
	// type t.
	SelectIDs(ctx context.Context, s sql.Querier, t schema.Type) ([]ql.RecordID, error)
	// FilterIDs returns the ids of the records of m matching filter.
	FilterIDs(ctx context.Context, m *schema.Model, filter ql.Filter) ([]ql.RecordID, error)
	// FilterIDsByParents returns the ids of the records connected through rf
	// to one of parentIDs and matching filter.
	FilterIDsByParents(ctx context.Context, rf *schema.RelationField, parentIDs []ql.RecordID, filter ql.Filter) ([]ql.RecordID, error)
}

// Tx implements Transaction over a dialect.ExecQuerier. It runs within a
// database transaction when built over a dialect.Tx, and statement by
// statement when built over a dialect.Driver.
type Tx struct {
	ex      dialect.ExecQuerier
	dialect string
	caps    dialect.Capabilities
}

// NewTx returns a Transaction running statements of the dialect on ex.
func NewTx(ex dialect.ExecQuerier, d string) *Tx {
	return &Tx{ex: ex, dialect: d, caps: dialect.CapabilitiesOf(d)}
}

// Dialect implements Transaction.
func (tx *Tx) Dialect() string { return tx.dialect }

// Capabilities returns the capabilities of the transaction dialect.
func (tx *Tx) Capabilities() dialect.Capabilities { return tx.caps }

func (tx *Tx) query(ctx context.Context, q sql.Querier, scan func(*sql.Rows) error) error {
	query, args := q.Query()
	var rows sql.Rows
	if err := tx.ex.Query(ctx, query, args, &rows); err != nil {
		return classify(err)
	}
	defer rows.Close()
	return scan(&rows)
}

func (tx *Tx) exec(ctx context.Context, q sql.Querier) (sql.Result, error) {
	query, args := q.Query()
	var res sql.Result
	if err := tx.ex.Exec(ctx, query, args, &res); err != nil {
		return nil, classify(err)
	}
	return res, nil
}

// Filter implements Transaction.
func (tx *Tx) Filter(ctx context.Context, s *sql.Selector, fields []*schema.Field, parentID *schema.Field) ([]queryast.Record, error) {
	var records []queryast.Record
	err := tx.query(ctx, s, func(rows *sql.Rows) (err error) {
		records, err = sql.ScanRecords(rows, fields, parentID)
		return err
	})
	return records, err
}

// Find implements Transaction.
func (tx *Tx) Find(ctx context.Context, s *sql.Selector, fields []*schema.Field) (queryast.Record, error) {
	records, err := tx.Filter(ctx, s, fields, nil)
	if err != nil {
		return queryast.Record{}, err
	}
	if len(records) == 0 {
		label := "record"
		if len(fields) > 0 {
			label = fields[0].Model().Name
		}
		return queryast.Record{}, veloxq.NewNotFoundError(label)
	}
	return records[0], nil
}

// FindInt implements Transaction.
func (tx *Tx) FindInt(ctx context.Context, s *sql.Selector) (int, error) {
	var n int
	err := tx.query(ctx, s, func(rows *sql.Rows) (err error) {
		n, err = sql.ScanInt(rows)
		return err
	})
	return n, err
}

// FindRecord implements Transaction.
func (tx *Tx) FindRecord(ctx context.Context, finder *ql.RecordFinder, fields []*schema.Field) (*queryast.SingleRecord, error) {
	records, err := tx.Filter(ctx, sql.RecordSelect(tx.dialect, finder, fields), fields, nil)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, veloxq.NewNotFoundErrorWhere(finder.Model().Name, finder.Info())
	}
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return &queryast.SingleRecord{Record: records[0], FieldNames: names}, nil
}

// FindID implements Transaction.
func (tx *Tx) FindID(ctx context.Context, finder *ql.RecordFinder) (ql.RecordID, error) {
	m := finder.Model()
	ids, err := tx.SelectIDs(ctx, sql.RecordSelect(tx.dialect, finder, []*schema.Field{m.ID()}), m.ID().Type)
	if err != nil {
		return ql.RecordID{}, err
	}
	if len(ids) == 0 {
		return ql.RecordID{}, veloxq.NewNotFoundErrorWhere(m.Name, finder.Info())
	}
	return ids[0], nil
}

// FindIDByParent implements Transaction.
func (tx *Tx) FindIDByParent(ctx context.Context, rf *schema.RelationField, parentID ql.RecordID, finder *ql.RecordFinder) (ql.RecordID, error) {
	var filter ql.Filter
	if finder != nil {
		filter = finder.Filter()
	}
	ids, err := tx.FilterIDsByParents(ctx, rf, []ql.RecordID{parentID}, filter)
	if err != nil {
		return ql.RecordID{}, err
	}
	if len(ids) == 0 {
		return ql.RecordID{}, veloxq.NewRecordsNotConnectedError(rf.Relation().Name, rf.Model().Name, rf.RelatedModel().Name, finder.Info())
	}
	return ids[0], nil
}

// Insert implements Transaction.
func (tx *Tx) Insert(ctx context.Context, m *schema.Model, ins *sql.InsertBuilder) (ql.RecordID, error) {
	if m == nil || !m.ID().IsAutoIncrement {
		_, err := tx.exec(ctx, ins)
		return ql.RecordID{}, err
	}
	if tx.caps.Returning {
		ids, err := tx.SelectIDs(ctx, ins.Returning(m.ID().Column), m.ID().Type)
		if err != nil {
			return ql.RecordID{}, err
		}
		if len(ids) != 1 {
			return ql.RecordID{}, fmt.Errorf("sqlgraph: insert into %q returned %d ids", m.Table, len(ids))
		}
		return ids[0], nil
	}
	res, err := tx.exec(ctx, ins)
	if err != nil {
		return ql.RecordID{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return ql.RecordID{}, fmt.Errorf("sqlgraph: read id of %s: %w", m.Name, err)
	}
	return ql.IntID(id), nil
}

// Update implements Transaction.
func (tx *Tx) Update(ctx context.Context, u *sql.UpdateBuilder) (int, error) {
	return tx.affected(tx.exec(ctx, u))
}

// Delete implements Transaction.
func (tx *Tx) Delete(ctx context.Context, d *sql.DeleteBuilder) (int, error) {
	return tx.affected(tx.exec(ctx, d))
}

func (*Tx) affected(res sql.Result, err error) (int, error) {
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// SelectIDs implements Transaction.
func (tx *Tx) SelectIDs(ctx context.Context, s sql.Querier, t schema.Type) ([]ql.RecordID, error) {
	var ids []ql.RecordID
	err := tx.query(ctx, s, func(rows *sql.Rows) (err error) {
		ids, err = sql.ScanIDs(rows, t)
		return err
	})
	return ids, err
}

// FilterIDs implements Transaction.
func (tx *Tx) FilterIDs(ctx context.Context, m *schema.Model, filter ql.Filter) ([]ql.RecordID, error) {
	return tx.SelectIDs(ctx, sql.IDsSelect(tx.dialect, m, filter), m.ID().Type)
}

// FilterIDsByParents implements Transaction.
func (tx *Tx) FilterIDsByParents(ctx context.Context, rf *schema.RelationField, parentIDs []ql.RecordID, filter ql.Filter) ([]ql.RecordID, error) {
	child := rf.RelatedModel()
	src := sql.NewRelatedSource(rf, "")
	s := src.Select(tx.dialect, src.ChildColumn()).
		Where(sql.In(src.ParentColumn(), ql.IDValues(parentIDs)...))
	if !ql.IsEmpty(filter) {
		s.Where(sql.FilterPredicate(tx.dialect, src.Table(), child, filter))
	}
	s.OrderBy(sql.Asc(src.ChildColumn()))
	return tx.SelectIDs(ctx, s, child.ID().Type)
}

var _ Transaction = (*Tx)(nil)
