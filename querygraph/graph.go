package querygraph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/syssam/veloxq"
	"github.com/syssam/veloxq/queryast"
)

// NodeRef identifies a node of a QueryGraph. Refs are assigned in creation
// order and are only meaningful for the graph that created them.
type NodeRef int

func (r NodeRef) String() string { return fmt.Sprintf("n%d", int(r)) }

// Node is a vertex of the graph: a read query, a write query or a flow
// control marker.
type Node interface {
	fmt.Stringer
	node()
}

// ReadNode runs a read query.
type ReadNode struct {
	Query queryast.ReadQuery
}

// WriteNode runs a write query.
type WriteNode struct {
	Query queryast.WriteQuery
}

// Condition is the test of an IfNode.
type Condition int

// If conditions.
const (
	IfExists Condition = iota
	IfNotExists
)

func (c Condition) String() string {
	if c == IfNotExists {
		return "IfNotExists"
	}
	return "IfExists"
}

// IfNode forwards the ids it receives when its condition holds. When it does
// not, every node depending only on the branch is skipped.
type IfNode struct {
	Condition Condition
}

func (*ReadNode) node()  {}
func (*WriteNode) node() {}
func (*IfNode) node()    {}

func (n *ReadNode) String() string  { return n.Query.String() }
func (n *WriteNode) String() string { return n.Query.String() }
func (n *IfNode) String() string    { return "If(" + n.Condition.String() + ")" }

// Read returns a node running q.
func Read(q queryast.ReadQuery) *ReadNode { return &ReadNode{Query: q} }

// Write returns a node running q.
func Write(q queryast.WriteQuery) *WriteNode { return &WriteNode{Query: q} }

// If returns a flow control node testing c.
func If(c Condition) *IfNode { return &IfNode{Condition: c} }

// Edge connects two nodes. The child node runs after the parent node, and
// the dependency tells how the parent output flows into the child.
type Edge struct {
	From, To   NodeRef
	Dependency Dependency
}

func (e Edge) String() string {
	return fmt.Sprintf("%s -> %s %s", e.From, e.To, e.Dependency)
}

// QueryGraph is a directed acyclic graph of queries. The zero value is not
// usable, create graphs with New.
type QueryGraph struct {
	nodes   []Node
	edges   []Edge
	results []NodeRef
}

// New returns an empty graph.
func New() *QueryGraph {
	return &QueryGraph{}
}

// CreateNode adds a node to the graph and returns its ref.
func (g *QueryGraph) CreateNode(n Node) NodeRef {
	g.nodes = append(g.nodes, n)
	return NodeRef(len(g.nodes) - 1)
}

// CreateEdge adds an edge from the parent node to the child node. It fails
// with a veloxq.GraphError if a node is unknown, if the edge is a self edge
// or if it closes a cycle.
func (g *QueryGraph) CreateEdge(from, to NodeRef, dep Dependency) error {
	switch {
	case !g.valid(from):
		return veloxq.NewGraphError("unknown parent node %s", from)
	case !g.valid(to):
		return veloxq.NewGraphError("unknown child node %s", to)
	case from == to:
		return veloxq.NewGraphError("self edge on node %s", from)
	case g.reaches(to, from):
		return veloxq.NewGraphError("edge %s -> %s closes a cycle", from, to)
	}
	g.edges = append(g.edges, Edge{From: from, To: to, Dependency: dep})
	return nil
}

// AddResultNode flags a node as producing a result. Results are reported in
// flagging order. Flagging a node twice has no effect.
func (g *QueryGraph) AddResultNode(ref NodeRef) error {
	if !g.valid(ref) {
		return veloxq.NewGraphError("unknown result node %s", ref)
	}
	if !slices.Contains(g.results, ref) {
		g.results = append(g.results, ref)
	}
	return nil
}

// Node returns the node with the given ref, or nil.
func (g *QueryGraph) Node(ref NodeRef) Node {
	if !g.valid(ref) {
		return nil
	}
	return g.nodes[ref]
}

// Len returns the number of nodes.
func (g *QueryGraph) Len() int { return len(g.nodes) }

// Edges returns the edges in creation order.
func (g *QueryGraph) Edges() []Edge { return slices.Clone(g.edges) }

// Results returns the result nodes in flagging order.
func (g *QueryGraph) Results() []NodeRef { return slices.Clone(g.results) }

// IsResult reports if the node is flagged as a result.
func (g *QueryGraph) IsResult(ref NodeRef) bool { return slices.Contains(g.results, ref) }

// Incoming returns the edges pointing at the node, in creation order.
func (g *QueryGraph) Incoming(ref NodeRef) []Edge {
	var edges []Edge
	for _, e := range g.edges {
		if e.To == ref {
			edges = append(edges, e)
		}
	}
	return edges
}

// Outgoing returns the edges leaving the node, in creation order.
func (g *QueryGraph) Outgoing(ref NodeRef) []Edge {
	var edges []Edge
	for _, e := range g.edges {
		if e.From == ref {
			edges = append(edges, e)
		}
	}
	return edges
}

func (g *QueryGraph) valid(ref NodeRef) bool {
	return ref >= 0 && int(ref) < len(g.nodes)
}

// reaches reports if there is a path from src to dst.
func (g *QueryGraph) reaches(src, dst NodeRef) bool {
	visited := make([]bool, len(g.nodes))
	stack := []NodeRef{src}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == dst {
			return true
		}
		if visited[n] {
			continue
		}
		visited[n] = true
		for _, e := range g.edges {
			if e.From == n && !visited[e.To] {
				stack = append(stack, e.To)
			}
		}
	}
	return false
}

// String renders the nodes and edges of the graph, one per line.
func (g *QueryGraph) String() string {
	var b strings.Builder
	for i, n := range g.nodes {
		ref := NodeRef(i)
		fmt.Fprintf(&b, "%s: %s", ref, n)
		if g.IsResult(ref) {
			b.WriteString(" [result]")
		}
		b.WriteByte('\n')
	}
	for _, e := range g.edges {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	return b.String()
}
