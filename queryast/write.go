package queryast

import (
	"fmt"

	ql "github.com/syssam/veloxq/querylanguage"
	"github.com/syssam/veloxq/schema"
)

// WriteQuery is one primitive write. The concrete types are CreateRecord,
// UpdateRecord, UpdateManyRecords, DeleteRecord, DeleteManyRecords,
// ConnectRecords and DisconnectRecords.
type WriteQuery interface {
	fmt.Stringer
	// Model returns the model written to.
	Model() *schema.Model
	// Op returns the operation of the query.
	Op() Op
	writeQuery()
}

// NestedScope restricts a nested write to the children of one parent record.
// Field is the relation field on the parent model.
type NestedScope struct {
	Field    *schema.RelationField
	ParentID ql.RecordID
}

func (s *NestedScope) String() string {
	if s == nil {
		return ""
	}
	return fmt.Sprintf(" under %s.%s(%s)", s.Field.Model().Name, s.Field.Name, s.ParentID)
}

// CreateRecord inserts one record.
type CreateRecord struct {
	Target   *schema.Model
	Args     Args
	ListArgs []ListArg
}

// UpdateRecord updates the record found by Where. When Scope is set, the
// record must be connected to the scope parent and Where may be nil for
// to-one relations.
type UpdateRecord struct {
	Target   *schema.Model
	Where    *ql.RecordFinder
	Args     Args
	ListArgs []ListArg
	Scope    *NestedScope
}

// UpdateManyRecords updates every record matching Filter.
type UpdateManyRecords struct {
	Target   *schema.Model
	Filter   ql.Filter
	Args     Args
	ListArgs []ListArg
	Scope    *NestedScope
}

// DeleteRecord deletes the record found by Where.
type DeleteRecord struct {
	Target *schema.Model
	Where  *ql.RecordFinder
	Scope  *NestedScope
}

// DeleteManyRecords deletes every record matching Filter.
type DeleteManyRecords struct {
	Target *schema.Model
	Filter ql.Filter
	Scope  *NestedScope
}

// ConnectRecords connects Parent and Child through Field, a relation field
// of the parent model.
type ConnectRecords struct {
	Field  *schema.RelationField
	Parent ql.RecordID
	Child  ql.RecordID
}

// DisconnectRecords removes the connection between Parent and Child.
type DisconnectRecords struct {
	Field  *schema.RelationField
	Parent ql.RecordID
	Child  ql.RecordID
}

func (*CreateRecord) writeQuery()      {}
func (*UpdateRecord) writeQuery()      {}
func (*UpdateManyRecords) writeQuery() {}
func (*DeleteRecord) writeQuery()      {}
func (*DeleteManyRecords) writeQuery() {}
func (*ConnectRecords) writeQuery()    {}
func (*DisconnectRecords) writeQuery() {}

func (q *CreateRecord) Model() *schema.Model      { return q.Target }
func (q *UpdateRecord) Model() *schema.Model      { return q.Target }
func (q *UpdateManyRecords) Model() *schema.Model { return q.Target }
func (q *DeleteRecord) Model() *schema.Model      { return q.Target }
func (q *DeleteManyRecords) Model() *schema.Model { return q.Target }
func (q *ConnectRecords) Model() *schema.Model    { return q.Field.Model() }
func (q *DisconnectRecords) Model() *schema.Model { return q.Field.Model() }

func (*CreateRecord) Op() Op      { return OpCreate }
func (*UpdateRecord) Op() Op      { return OpUpdate }
func (*UpdateManyRecords) Op() Op { return OpUpdateMany }
func (*DeleteRecord) Op() Op      { return OpDelete }
func (*DeleteManyRecords) Op() Op { return OpDeleteMany }
func (*ConnectRecords) Op() Op    { return OpConnect }
func (*DisconnectRecords) Op() Op { return OpDisconnect }

func (q *CreateRecord) String() string {
	return fmt.Sprintf("CreateRecord(%s, %d args)", q.Target.Name, len(q.Args)+len(q.ListArgs))
}

func (q *UpdateRecord) String() string {
	return fmt.Sprintf("UpdateRecord(%s where %v%s)", q.Target.Name, finderString(q.Where), q.Scope)
}

func (q *UpdateManyRecords) String() string {
	return fmt.Sprintf("UpdateManyRecords(%s where %v%s)", q.Target.Name, filterString(q.Filter), q.Scope)
}

func (q *DeleteRecord) String() string {
	return fmt.Sprintf("DeleteRecord(%s where %v%s)", q.Target.Name, finderString(q.Where), q.Scope)
}

func (q *DeleteManyRecords) String() string {
	return fmt.Sprintf("DeleteManyRecords(%s where %v%s)", q.Target.Name, filterString(q.Filter), q.Scope)
}

func (q *ConnectRecords) String() string {
	return fmt.Sprintf("ConnectRecords(%s.%s %s -> %s)", q.Field.Model().Name, q.Field.Name, q.Parent, q.Child)
}

func (q *DisconnectRecords) String() string {
	return fmt.Sprintf("DisconnectRecords(%s.%s %s -> %s)", q.Field.Model().Name, q.Field.Name, q.Parent, q.Child)
}

// Where adds f to the filter of the query. It is used by policies to scope
// bulk writes.
func (q *UpdateManyRecords) Where(f ql.Filter) { q.Filter = and(q.Filter, f) }

// Where adds f to the filter of the query.
func (q *DeleteManyRecords) Where(f ql.Filter) { q.Filter = and(q.Filter, f) }

func and(a, b ql.Filter) ql.Filter {
	if ql.IsEmpty(a) {
		return b
	}
	return ql.And(a, b)
}

func finderString(f *ql.RecordFinder) string {
	if f == nil {
		return "<scope>"
	}
	return f.String()
}

func filterString(f ql.Filter) string {
	if f == nil {
		return ql.Empty().String()
	}
	return f.String()
}

// ResultKind is the shape of a WriteResult.
type ResultKind int

// Write result kinds.
const (
	ResultUnit ResultKind = iota
	ResultID
	ResultCount
	ResultRecord
)

// WriteResult is the outcome of a write. Creates and updates return the id
// of the written record, bulk writes a count and deletes the record image
// read before the delete.
type WriteResult struct {
	Kind   ResultKind
	ID     ql.RecordID
	Count  int
	Record *SingleRecord
}

// IDs returns the record ids produced by the write.
func (r *WriteResult) IDs() []ql.RecordID {
	if r == nil || r.ID.IsZero() {
		return nil
	}
	return []ql.RecordID{r.ID}
}
