package connector

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/veloxq"
	"github.com/syssam/veloxq/dialect"
	"github.com/syssam/veloxq/dialect/sql"
	"github.com/syssam/veloxq/dialect/sql/sqlgraph"
	"github.com/syssam/veloxq/queryast"
	ql "github.com/syssam/veloxq/querylanguage"
	"github.com/syssam/veloxq/schema"
)

// ManagedDatabaseReader reads records of one database. Reads never modify
// the database.
type ManagedDatabaseReader interface {
	// GetSingleRecord reads the selected fields of the record located by
	// finder. It returns nil if there is no such record.
	GetSingleRecord(ctx context.Context, finder *ql.RecordFinder, selected queryast.SelectedFields) (*queryast.SingleRecord, error)
	// GetManyRecords reads the selected fields of the records of m
	// matching args, in the order of args.
	GetManyRecords(ctx context.Context, m *schema.Model, args queryast.QueryArguments, selected queryast.SelectedFields) (*queryast.ManyRecords, error)
	// GetRelatedRecords reads the records related through rf to parentIDs.
	// Pagination arguments apply to each parent independently and every
	// record carries the id of its parent.
	GetRelatedRecords(ctx context.Context, rf *schema.RelationField, parentIDs []ql.RecordID, args queryast.QueryArguments, selected queryast.SelectedFields) (*queryast.ManyRecords, error)
	// CountByModel counts the records of m matching args.
	CountByModel(ctx context.Context, m *schema.Model, args queryast.QueryArguments) (int, error)
	// CountByTable counts the rows of a table.
	CountByTable(ctx context.Context, table string) (int, error)
	// GetScalarListValuesByRecordIDs reads the values of the list field f
	// of the given records. Records without values are left out.
	GetScalarListValuesByRecordIDs(ctx context.Context, f *schema.Field, ids []ql.RecordID) ([]queryast.ScalarListValues, error)
}

// reader implements ManagedDatabaseReader over an ExecQuerier: the
// database driver for plain reads or a transaction for the reads of a
// graph with writes.
type reader struct {
	db    *Database
	ex    dialect.ExecQuerier
	tx    *sqlgraph.Tx
	cache veloxq.Cache
	ttl   time.Duration
}

func newReader(db *Database, ex dialect.ExecQuerier) *reader {
	return &reader{db: db, ex: ex, tx: sqlgraph.NewTx(ex, db.Dialect())}
}

// cached returns a reader of the same source caching its results.
func (r *reader) cached(c veloxq.Cache, ttl time.Duration) *reader {
	if c == nil || ttl <= 0 {
		return r
	}
	cp := *r
	cp.cache, cp.ttl = c, ttl
	return &cp
}

func (r *reader) dialect() string { return r.db.Dialect() }

// GetSingleRecord implements ManagedDatabaseReader.
func (r *reader) GetSingleRecord(ctx context.Context, finder *ql.RecordFinder, selected queryast.SelectedFields) (*queryast.SingleRecord, error) {
	m := finder.Model()
	columns := selected.Columns(m)
	key := r.key(m.Table, "one", finder.String(), "", columns, 1, 0)
	records, err := r.load(ctx, key, columns, func() (*queryast.ManyRecords, error) {
		records, err := r.tx.Filter(ctx, sql.RecordSelect(r.dialect(), finder, columns), columns, nil)
		if err != nil {
			return nil, err
		}
		return &queryast.ManyRecords{Records: records, FieldNames: selected.Names(m)}, nil
	})
	if err != nil {
		return nil, veloxq.NewQueryError(m.Name, "single", err)
	}
	if records.Len() == 0 {
		return nil, nil
	}
	return records.At(0), nil
}

// GetManyRecords implements ManagedDatabaseReader.
func (r *reader) GetManyRecords(ctx context.Context, m *schema.Model, args queryast.QueryArguments, selected queryast.SelectedFields) (*queryast.ManyRecords, error) {
	columns := selected.Columns(m)
	limit, offset := 0, 0
	if args.First != nil {
		limit = *args.First
	}
	if args.Skip != nil {
		offset = *args.Skip
	}
	key := r.key(m.Table, "many", argumentsKey(args), orderKey(args), columns, limit, offset)
	records, err := r.load(ctx, key, columns, func() (*queryast.ManyRecords, error) {
		records, err := r.tx.Filter(ctx, sql.RecordsSelect(r.dialect(), m, args, columns), columns, nil)
		if err != nil {
			return nil, err
		}
		many := &queryast.ManyRecords{Records: records, FieldNames: selected.Names(m)}
		if args.Last != nil {
			many.Reverse()
		}
		return many, nil
	})
	if err != nil {
		return nil, veloxq.NewQueryError(m.Name, "many", err)
	}
	return records, nil
}

// GetRelatedRecords implements ManagedDatabaseReader.
func (r *reader) GetRelatedRecords(ctx context.Context, rf *schema.RelationField, parentIDs []ql.RecordID, args queryast.QueryArguments, selected queryast.SelectedFields) (*queryast.ManyRecords, error) {
	child := rf.RelatedModel()
	columns := selected.Columns(child)
	many := &queryast.ManyRecords{FieldNames: selected.Names(child)}
	if len(parentIDs) == 0 {
		return many, nil
	}
	q := sql.RelatedRecordsQuery{Field: rf, ParentIDs: parentIDs, Args: args, Columns: columns}
	var s *sql.Selector
	if args.IsWithPagination() {
		s = r.db.related.WithPagination(r.dialect(), q)
	} else {
		s = r.db.related.WithoutPagination(r.dialect(), q)
	}
	parentID := rf.Model().ID()
	records, err := r.tx.Filter(ctx, s, columns, parentID)
	if err != nil {
		return nil, veloxq.NewQueryError(child.Name, "related", err)
	}
	many.Records = records
	if args.Last != nil {
		reverseGroups(many.Records)
	}
	return many, nil
}

// reverseGroups reverses the records of every parent in place. The records
// of a parent are contiguous.
func reverseGroups(records []queryast.Record) {
	for i := 0; i < len(records); {
		j := i + 1
		for j < len(records) && sameParent(records[i], records[j]) {
			j++
		}
		for a, b := i, j-1; a < b; a, b = a+1, b-1 {
			records[a], records[b] = records[b], records[a]
		}
		i = j
	}
}

func sameParent(a, b queryast.Record) bool {
	if a.ParentID == nil || b.ParentID == nil {
		return a.ParentID == b.ParentID
	}
	return *a.ParentID == *b.ParentID
}

// CountByModel implements ManagedDatabaseReader.
func (r *reader) CountByModel(ctx context.Context, m *schema.Model, args queryast.QueryArguments) (int, error) {
	key := r.key(m.Table, "count", argumentsKey(args), orderKey(args), nil, 0, 0)
	n, err := r.count(ctx, key, sql.CountSelect(r.dialect(), m, args))
	if err != nil {
		return 0, veloxq.NewQueryError(m.Name, "count", err)
	}
	return n, nil
}

// CountByTable implements ManagedDatabaseReader.
func (r *reader) CountByTable(ctx context.Context, table string) (int, error) {
	n, err := r.count(ctx, r.key(table, "count", "", "", nil, 0, 0), sql.CountTable(r.dialect(), table))
	if err != nil {
		return 0, veloxq.NewQueryError(table, "count", err)
	}
	return n, nil
}

func (r *reader) count(ctx context.Context, key *veloxq.CacheKey, s *sql.Selector) (int, error) {
	if r.cache != nil && key != nil {
		if b, err := r.cache.Get(ctx, key.String()); err == nil && b != nil {
			var n int
			if err := msgpack.Unmarshal(b, &n); err == nil {
				return n, nil
			}
		}
	}
	n, err := r.tx.FindInt(ctx, s)
	if err != nil {
		return 0, err
	}
	if r.cache != nil && key != nil {
		if b, err := msgpack.Marshal(n); err == nil {
			_ = r.cache.Set(ctx, key.String(), b, r.ttl)
		}
	}
	return n, nil
}

// GetScalarListValuesByRecordIDs implements ManagedDatabaseReader.
func (r *reader) GetScalarListValuesByRecordIDs(ctx context.Context, f *schema.Field, ids []ql.RecordID) ([]queryast.ScalarListValues, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args := sql.ListValuesSelect(r.dialect(), f, ids).Query()
	var rows sql.Rows
	if err := r.ex.Query(ctx, query, args, &rows); err != nil {
		return nil, veloxq.NewQueryError(f.Model().Name, "list", err)
	}
	defer rows.Close()
	values, err := sql.ScanListValues(&rows, f)
	if err != nil {
		return nil, veloxq.NewQueryError(f.Model().Name, "list", err)
	}
	out := make([]queryast.ScalarListValues, 0, len(values))
	for _, id := range ql.SortIDs(ids) {
		if vs, ok := values[id]; ok {
			out = append(out, queryast.ScalarListValues{RecordID: id, Values: vs})
		}
	}
	return out, nil
}

// load reads records through the cache when the reader has one.
func (r *reader) load(ctx context.Context, key *veloxq.CacheKey, columns []*schema.Field, fetch func() (*queryast.ManyRecords, error)) (*queryast.ManyRecords, error) {
	if r.cache == nil || key == nil {
		return fetch()
	}
	if b, err := r.cache.Get(ctx, key.String()); err == nil && b != nil {
		if records, err := decodeRecords(b, columns); err == nil {
			return records, nil
		}
	}
	records, err := fetch()
	if err != nil {
		return nil, err
	}
	if b, err := encodeRecords(records); err == nil {
		_ = r.cache.Set(ctx, key.String(), b, r.ttl)
	}
	return records, nil
}

func (r *reader) key(table, op, predicates, order string, columns []*schema.Field, limit, offset int) *veloxq.CacheKey {
	if r.cache == nil {
		return nil
	}
	names := make([]string, len(columns))
	for i, f := range columns {
		names[i] = f.Column
	}
	return &veloxq.CacheKey{
		Database:   r.db.Name(),
		Table:      table,
		Operation:  op,
		Predicates: predicates,
		OrderBy:    order,
		Fields:     names,
		Limit:      limit,
		Offset:     offset,
	}
}

// argumentsKey renders the arguments selecting records, pagination
// included.
func argumentsKey(args queryast.QueryArguments) string {
	var sb strings.Builder
	if !ql.IsEmpty(args.Filter) {
		sb.WriteString(args.Filter.String())
	}
	for _, p := range []struct {
		name string
		id   *ql.RecordID
	}{{"after", args.After}, {"before", args.Before}} {
		if p.id != nil {
			fmt.Fprintf(&sb, ";%s=%s", p.name, p.id)
		}
	}
	for _, p := range []struct {
		name string
		n    *int
	}{{"skip", args.Skip}, {"first", args.First}, {"last", args.Last}} {
		if p.n != nil {
			sb.WriteString(";" + p.name + "=" + strconv.Itoa(*p.n))
		}
	}
	return sb.String()
}

func orderKey(args queryast.QueryArguments) string {
	if args.OrderBy == nil || args.OrderBy.Field == nil {
		return ""
	}
	if args.OrderBy.Descending {
		return args.OrderBy.Field.Column + " DESC"
	}
	return args.OrderBy.Field.Column
}

var _ ManagedDatabaseReader = (*reader)(nil)
