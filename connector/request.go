package connector

import (
	"context"
	"fmt"

	"github.com/syssam/veloxq/querygraph"
)

// Request runs a GraphQL document on the named database and returns the
// data of its selected operation keyed by response name. Every top level
// field is lowered to its own graph. Mutation fields run one after the
// other, each in its own transaction, and the first failure stops the
// request.
func (c *Connector) Request(ctx context.Context, db, document, operation string, variables map[string]any) (map[string]any, error) {
	doc, err := querygraph.ParseDocument(document, operation, variables)
	if err != nil {
		return nil, err
	}
	data := make(map[string]any, len(doc.Fields))
	for _, f := range doc.Fields {
		if !doc.Mutation && c.builder.IsMutation(f) {
			return nil, fmt.Errorf("connector: %s: mutation in a query", f.Key())
		}
		g, err := c.builder.Build(f)
		if err != nil {
			return nil, err
		}
		c.logger.DebugContext(ctx, "query graph built", "database", db, "field", f.Key(), "graph", g.String())
		outcomes, err := c.ExecuteGraph(ctx, db, g)
		if err != nil {
			return nil, fmt.Errorf("connector: %s: %w", f.Key(), err)
		}
		data[f.Key()] = serialize(outcomes)
	}
	return data, nil
}

// serialize renders the first result of a graph that was executed.
func serialize(outcomes []querygraph.Outcome) any {
	for _, o := range outcomes {
		switch {
		case o.Skipped:
		case o.Read != nil:
			return o.Read.Serialize()
		case o.Write != nil:
			return map[string]any{"count": o.Write.Count}
		}
	}
	return nil
}
