package querygraph

import (
	"context"

	"github.com/syssam/veloxq/queryast"
	ql "github.com/syssam/veloxq/querylanguage"
)

// Interpreter runs the queries of a graph, usually inside one transaction.
type Interpreter interface {
	Read(ctx context.Context, q queryast.ReadQuery) (*queryast.ReadResult, error)
	Write(ctx context.Context, q queryast.WriteQuery) (*queryast.WriteResult, error)
}

// Outcome is the result of a node flagged as a result. Exactly one of Read
// and Write is set, unless the node was skipped by a flow control node.
type Outcome struct {
	Node    NodeRef
	Read    *queryast.ReadResult
	Write   *queryast.WriteResult
	Skipped bool
}

// Order returns the nodes in topological order. Among the nodes ready to
// run, the one created first comes first.
func (g *QueryGraph) Order() []NodeRef {
	indegree := make([]int, len(g.nodes))
	for _, e := range g.edges {
		indegree[e.To]++
	}
	done := make([]bool, len(g.nodes))
	order := make([]NodeRef, 0, len(g.nodes))
	for len(order) < len(g.nodes) {
		next := NodeRef(-1)
		for i := range g.nodes {
			if !done[i] && indegree[i] == 0 {
				next = NodeRef(i)
				break
			}
		}
		if next < 0 {
			// Unreachable, CreateEdge keeps the graph acyclic.
			break
		}
		done[next] = true
		order = append(order, next)
		for _, e := range g.edges {
			if e.From == next {
				indegree[e.To]--
			}
		}
	}
	return order
}

// Execute runs the nodes of g in topological order and returns the outcomes
// of the result nodes in flagging order. It stops at the first failure.
//
// Before a node runs, the ids produced by its parents are written into its
// query by the edge transforms, so a graph can only be executed once. A node
// whose parents were all skipped, or whose parent is an IfNode with a false
// condition, is skipped too; edges from skipped parents are ignored.
func Execute(ctx context.Context, g *QueryGraph, in Interpreter) ([]Outcome, error) {
	var (
		outputs  = make(map[NodeRef][]ql.RecordID, len(g.nodes))
		skipped  = make([]bool, len(g.nodes))
		reads    = make(map[NodeRef]*queryast.ReadResult)
		writes   = make(map[NodeRef]*queryast.WriteResult)
		incoming = make([][]Edge, len(g.nodes))
	)
	for _, e := range g.edges {
		incoming[e.To] = append(incoming[e.To], e)
	}
	for _, ref := range g.Order() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var live []Edge
		for _, e := range incoming[ref] {
			if !skipped[e.From] {
				live = append(live, e)
			}
		}
		if len(incoming[ref]) > 0 && len(live) == 0 {
			skipped[ref] = true
			continue
		}
		n := g.nodes[ref]
		var forwarded []ql.RecordID
		for _, e := range live {
			if e.Dependency.Kind != DepParentIDs {
				continue
			}
			if err := e.Dependency.Transform.apply(outputs[e.From], n); err != nil {
				return nil, err
			}
			if e.Dependency.Transform.Kind == Forward {
				forwarded = append(forwarded, outputs[e.From]...)
			}
		}
		switch n := n.(type) {
		case *IfNode:
			holds := len(forwarded) > 0
			if n.Condition == IfNotExists {
				holds = !holds
			}
			if !holds {
				skipped[ref] = true
				continue
			}
			outputs[ref] = forwarded
		case *ReadNode:
			res, err := in.Read(ctx, n.Query)
			if err != nil {
				return nil, err
			}
			var ids []ql.RecordID
			if res != nil {
				if ids, err = res.IDs(); err != nil {
					return nil, err
				}
			}
			reads[ref], outputs[ref] = res, ids
		case *WriteNode:
			res, err := in.Write(ctx, n.Query)
			if err != nil {
				return nil, err
			}
			writes[ref], outputs[ref] = res, res.IDs()
		}
	}
	outcomes := make([]Outcome, 0, len(g.results))
	for _, ref := range g.results {
		outcomes = append(outcomes, Outcome{
			Node:    ref,
			Read:    reads[ref],
			Write:   writes[ref],
			Skipped: skipped[ref],
		})
	}
	return outcomes, nil
}
