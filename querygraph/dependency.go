package querygraph

import (
	"fmt"
	"strconv"

	"github.com/syssam/veloxq"
	"github.com/syssam/veloxq/queryast"
	ql "github.com/syssam/veloxq/querylanguage"
)

// DependencyKind tells what an edge carries.
type DependencyKind int

// Dependency kinds.
const (
	// DepExecutionOrder only orders the two nodes.
	DepExecutionOrder DependencyKind = iota
	// DepParentIDs feeds the ids produced by the parent into the child
	// through a Transform.
	DepParentIDs
)

// Dependency is the label of an edge.
type Dependency struct {
	Kind      DependencyKind
	Transform Transform
}

// ExecutionOrder returns a dependency that only orders two nodes.
func ExecutionOrder() Dependency {
	return Dependency{Kind: DepExecutionOrder}
}

// ParentIDs returns a dependency feeding the parent ids into the child.
func ParentIDs(t Transform) Dependency {
	return Dependency{Kind: DepParentIDs, Transform: t}
}

func (d Dependency) String() string {
	if d.Kind == DepExecutionOrder {
		return "ExecutionOrder"
	}
	return "ParentIDs(" + d.Transform.String() + ")"
}

// TransformKind names the slot of the child query a transform writes to.
type TransformKind int

// Transform kinds.
const (
	// SetParent sets the parent id of a connect or a disconnect.
	SetParent TransformKind = iota
	// SetChild sets the child id of a connect or a disconnect.
	SetChild
	// SetNestedParent sets the scope parent of a nested write, or the
	// parent ids of a related records read.
	SetNestedParent
	// SetFinder locates the record of a single record read, update or
	// delete by id.
	SetFinder
	// SetFilterIDs restricts a many records read, a count or a bulk write
	// to the given ids.
	SetFilterIDs
	// Forward passes the ids to a flow control node.
	Forward
)

var transformNames = [...]string{
	SetParent:       "SetParent",
	SetChild:        "SetChild",
	SetNestedParent: "SetNestedParent",
	SetFinder:       "SetFinder",
	SetFilterIDs:    "SetFilterIDs",
	Forward:         "Forward",
}

func (k TransformKind) String() string {
	if int(k) < len(transformNames) {
		return transformNames[k]
	}
	return "TransformKind(" + strconv.Itoa(int(k)) + ")"
}

// Arity is the number of ids a transform accepts.
type Arity int

// Arities.
const (
	ExactlyOne Arity = iota
	AtLeastOne
	Any
)

func (a Arity) String() string {
	switch a {
	case ExactlyOne:
		return "ExactlyOne"
	case AtLeastOne:
		return "AtLeastOne"
	}
	return "Any"
}

// Transform writes the ids produced by a parent node into a slot of the
// child query. Transforms are plain values so graphs can be inspected and
// printed.
type Transform struct {
	Kind  TransformKind
	Arity Arity
}

func (t Transform) String() string {
	return t.Kind.String() + "/" + t.Arity.String()
}

// check enforces the arity of the transform.
func (t Transform) check(ids []ql.RecordID, n Node) error {
	label := "parent"
	switch t.Kind {
	case SetChild:
		label = "child"
	case SetFinder, SetFilterIDs, Forward:
		label = "record"
	}
	switch {
	case t.Arity == ExactlyOne && len(ids) != 1:
		return veloxq.NewAssertionError("Required exactly one %s ID to be present for %s query, found %s.", label, queryName(n), found(len(ids)))
	case t.Arity == AtLeastOne && len(ids) == 0:
		return veloxq.NewAssertionError("Required at least one %s ID to be present for %s query, found none.", label, queryName(n))
	}
	return nil
}

func found(n int) string {
	if n == 0 {
		return "none"
	}
	return strconv.Itoa(n)
}

// apply checks the arity of the transform and writes ids into the query of
// n. Flow control nodes receive their ids from the executor.
func (t Transform) apply(ids []ql.RecordID, n Node) error {
	if err := t.check(ids, n); err != nil {
		return err
	}
	if _, ok := n.(*IfNode); ok && t.Kind == Forward {
		return nil
	}
	var first ql.RecordID
	if len(ids) > 0 {
		first = ids[0]
	}
	ok := false
	switch t.Kind {
	case SetParent:
		switch q := query(n).(type) {
		case *queryast.ConnectRecords:
			q.Parent, ok = first, true
		case *queryast.DisconnectRecords:
			q.Parent, ok = first, true
		}
	case SetChild:
		switch q := query(n).(type) {
		case *queryast.ConnectRecords:
			q.Child, ok = first, true
		case *queryast.DisconnectRecords:
			q.Child, ok = first, true
		}
	case SetNestedParent:
		switch q := query(n).(type) {
		case *queryast.ReadRelatedRecords:
			q.ParentIDs, ok = ids, true
		case *queryast.UpdateRecord:
			ok = setScope(q.Scope, first)
		case *queryast.UpdateManyRecords:
			ok = setScope(q.Scope, first)
		case *queryast.DeleteRecord:
			ok = setScope(q.Scope, first)
		case *queryast.DeleteManyRecords:
			ok = setScope(q.Scope, first)
		}
	case SetFinder:
		if len(ids) == 0 {
			// Only reachable with arity Any; the query keeps its finder.
			return nil
		}
		switch q := query(n).(type) {
		case *queryast.ReadOneRecord:
			q.Finder, ok = ql.FinderForID(q.Target, first), true
		case *queryast.UpdateRecord:
			q.Where, ok = ql.FinderForID(q.Target, first), true
		case *queryast.DeleteRecord:
			q.Where, ok = ql.FinderForID(q.Target, first), true
		}
	case SetFilterIDs:
		switch q := query(n).(type) {
		case *queryast.ReadManyRecords:
			q.Where(ql.IDIn(q.Target, ids...))
			ok = true
		case *queryast.CountRecords:
			q.Where(ql.IDIn(q.Target, ids...))
			ok = true
		case *queryast.UpdateManyRecords:
			q.Where(ql.IDIn(q.Target, ids...))
			ok = true
		case *queryast.DeleteManyRecords:
			q.Where(ql.IDIn(q.Target, ids...))
			ok = true
		}
	}
	if !ok {
		return veloxq.NewAssertionError("transform %s does not apply to %s", t, n)
	}
	return nil
}

func setScope(s *queryast.NestedScope, id ql.RecordID) bool {
	if s == nil {
		return false
	}
	s.ParentID = id
	return true
}

// query returns the query of a read or write node.
func query(n Node) any {
	switch n := n.(type) {
	case *ReadNode:
		return n.Query
	case *WriteNode:
		return n.Query
	}
	return nil
}

// queryName names the query of n in assertion messages.
func queryName(n Node) string {
	switch q := query(n).(type) {
	case *queryast.CreateRecord:
		return "create"
	case *queryast.UpdateRecord:
		return "update"
	case *queryast.UpdateManyRecords:
		return "updateMany"
	case *queryast.DeleteRecord:
		return "delete"
	case *queryast.DeleteManyRecords:
		return "deleteMany"
	case *queryast.ConnectRecords:
		return "connect"
	case *queryast.DisconnectRecords:
		return "disconnect"
	case *queryast.CountRecords:
		return "count"
	case queryast.ReadQuery:
		return "read"
	case nil:
		if _, ok := n.(*IfNode); ok {
			return "if"
		}
	default:
		return fmt.Sprintf("%T", q)
	}
	return "unknown"
}
