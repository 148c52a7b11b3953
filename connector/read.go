package connector

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/veloxq"
	"github.com/syssam/veloxq/queryast"
	ql "github.com/syssam/veloxq/querylanguage"
)

// resolver runs read queries with their nested relation reads and scalar
// lists on a reader.
type resolver struct {
	r ManagedDatabaseReader
	// check is called before every read, nested ones included.
	check func(context.Context, queryast.ReadQuery) error
	// concurrency bounds the sibling nested reads run in parallel.
	// Reads within a transaction are sequential.
	concurrency int
}

func (rs *resolver) read(ctx context.Context, q queryast.ReadQuery) (*queryast.ReadResult, error) {
	if rs.check != nil {
		if err := rs.check(ctx, q); err != nil {
			return nil, err
		}
	}
	switch q := q.(type) {
	case *queryast.ReadOneRecord:
		res := &queryast.ReadResult{
			Key:     q.Key(),
			Model:   q.Target,
			Records: queryast.ManyRecords{FieldNames: q.Selected.Names(q.Target)},
		}
		if q.Finder == nil {
			return res, nil
		}
		rec, err := rs.r.GetSingleRecord(ctx, q.Finder, q.Selected)
		switch {
		case err != nil:
			return nil, err
		case rec == nil && q.MustExist:
			return nil, veloxq.NewNotFoundErrorWhere(q.Target.Name, q.Finder.Info())
		case rec == nil:
			return res, nil
		}
		res.Records.Records = []queryast.Record{rec.Record}
		return res, rs.resolve(ctx, res, q.Selected, q.Nested)
	case *queryast.ReadManyRecords:
		records, err := rs.r.GetManyRecords(ctx, q.Target, q.Args, q.Selected)
		if err != nil {
			return nil, err
		}
		res := &queryast.ReadResult{Key: q.Key(), Model: q.Target, Many: true, Records: *records}
		return res, rs.resolve(ctx, res, q.Selected, q.Nested)
	case *queryast.ReadRelatedRecords:
		records, err := rs.r.GetRelatedRecords(ctx, q.Field, q.ParentIDs, q.Args, q.Selected)
		if err != nil {
			return nil, err
		}
		if q.MustExist && records.Len() == 0 {
			return nil, notConnected(q)
		}
		res := &queryast.ReadResult{Key: q.Key(), Model: q.Model(), Many: q.Field.IsList, Records: *records}
		return res, rs.resolve(ctx, res, q.Selected, q.Nested)
	case *queryast.CountRecords:
		n, err := rs.r.CountByModel(ctx, q.Target, q.Args)
		if err != nil {
			return nil, err
		}
		return &queryast.ReadResult{Key: q.Key(), Model: q.Target, Count: &n}, nil
	default:
		return nil, veloxq.NewAssertionError("unknown read query %T", q)
	}
}

// notConnected reports a related read that found no record connected to
// its parents.
func notConnected(q *queryast.ReadRelatedRecords) error {
	rf := q.Field
	err := veloxq.NewRecordsNotConnectedError(rf.Relation().Name, rf.Model().Name, rf.RelatedModel().Name, nil)
	if len(q.ParentIDs) == 1 {
		return err.WithParent(ql.FinderForID(rf.Model(), q.ParentIDs[0]).Info())
	}
	return err
}

// resolve reads the scalar lists and the nested relations of the records
// of res.
func (rs *resolver) resolve(ctx context.Context, res *queryast.ReadResult, selected queryast.SelectedFields, nested []*queryast.ReadRelatedRecords) error {
	lists := selected.Lists()
	if res.Records.Len() == 0 || len(lists)+len(nested) == 0 {
		for _, n := range nested {
			res.Nested = append(res.Nested, &queryast.ReadResult{Key: n.Key(), Model: n.Model(), Many: n.Field.IsList})
		}
		return nil
	}
	ids, err := res.IDs()
	if err != nil {
		return err
	}
	var (
		listValues = make([]map[ql.RecordID][]any, len(lists))
		results    = make([]*queryast.ReadResult, len(nested))
		g, gctx    = errgroup.WithContext(ctx)
	)
	if rs.concurrency > 1 {
		g.SetLimit(rs.concurrency)
	} else {
		g.SetLimit(1)
	}
	for i, f := range lists {
		g.Go(func() error {
			values, err := rs.r.GetScalarListValuesByRecordIDs(gctx, f, ids)
			if err != nil {
				return err
			}
			listValues[i] = make(map[ql.RecordID][]any, len(values))
			for _, v := range values {
				listValues[i][v.RecordID] = v.Values
			}
			return nil
		})
	}
	for i, n := range nested {
		g.Go(func() error {
			q := *n
			q.ParentIDs = ids
			child, err := rs.read(gctx, &q)
			if err != nil {
				return err
			}
			results[i] = child
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if len(lists) > 0 {
		res.Lists = make(map[string]map[ql.RecordID][]any, len(lists))
		for i, f := range lists {
			res.Lists[f.Name] = listValues[i]
		}
	}
	res.Nested = results
	return nil
}
