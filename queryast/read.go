package queryast

import (
	"fmt"

	ql "github.com/syssam/veloxq/querylanguage"
	"github.com/syssam/veloxq/schema"
)

// ReadQuery is one read. The concrete types are ReadOneRecord,
// ReadManyRecords, ReadRelatedRecords and CountRecords.
type ReadQuery interface {
	fmt.Stringer
	// Model returns the model read from.
	Model() *schema.Model
	// Key returns the name the result is reported under.
	Key() string
	readQuery()
}

// Projection is embedded in reads that return records.
type Projection struct {
	Name     string
	Alias    string
	Selected SelectedFields
	Nested   []*ReadRelatedRecords
}

// Key returns the alias if set, otherwise the name.
func (p *Projection) Key() string {
	if p.Alias != "" {
		return p.Alias
	}
	return p.Name
}

// ReadOneRecord reads the record found by Finder. A missing record reads
// as an empty result unless MustExist is set.
type ReadOneRecord struct {
	Projection
	Target    *schema.Model
	Finder    *ql.RecordFinder
	MustExist bool
}

// ReadManyRecords reads the records selected by Args.
type ReadManyRecords struct {
	Projection
	Target *schema.Model
	Args   QueryArguments
}

// ReadRelatedRecords reads the records related through Field to the records
// with ParentIDs. With MustExist an empty result is an error.
type ReadRelatedRecords struct {
	Projection
	Field     *schema.RelationField
	ParentIDs []ql.RecordID
	Args      QueryArguments
	MustExist bool
}

// CountRecords counts the records selected by Args.
type CountRecords struct {
	Name   string
	Alias  string
	Target *schema.Model
	Args   QueryArguments
}

func (*ReadOneRecord) readQuery()      {}
func (*ReadManyRecords) readQuery()    {}
func (*ReadRelatedRecords) readQuery() {}
func (*CountRecords) readQuery()       {}

func (q *ReadOneRecord) Model() *schema.Model      { return q.Target }
func (q *ReadManyRecords) Model() *schema.Model    { return q.Target }
func (q *ReadRelatedRecords) Model() *schema.Model { return q.Field.RelatedModel() }
func (q *CountRecords) Model() *schema.Model       { return q.Target }

// Key returns the alias if set, otherwise the name.
func (q *CountRecords) Key() string {
	if q.Alias != "" {
		return q.Alias
	}
	return q.Name
}

// Where restricts the read to records matching f. It is used by policies.
func (q *ReadManyRecords) Where(f ql.Filter) { q.Args = q.Args.Where(f) }

// Where restricts the read to records matching f.
func (q *ReadRelatedRecords) Where(f ql.Filter) { q.Args = q.Args.Where(f) }

// Where restricts the count to records matching f.
func (q *CountRecords) Where(f ql.Filter) { q.Args = q.Args.Where(f) }

func (q *ReadOneRecord) String() string {
	finder := "<ids>"
	if q.Finder != nil {
		finder = q.Finder.String()
	}
	return fmt.Sprintf("ReadOneRecord(%s where %s)", q.Target.Name, finder)
}

func (q *ReadManyRecords) String() string {
	return fmt.Sprintf("ReadManyRecords(%s where %s)", q.Target.Name, filterString(q.Args.Filter))
}

func (q *ReadRelatedRecords) String() string {
	return fmt.Sprintf("ReadRelatedRecords(%s.%s, %d parents)", q.Field.Model().Name, q.Field.Name, len(q.ParentIDs))
}

func (q *CountRecords) String() string {
	return fmt.Sprintf("CountRecords(%s where %s)", q.Target.Name, filterString(q.Args.Filter))
}
