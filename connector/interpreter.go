package connector

import (
	"context"
	"log/slog"
	"time"

	"github.com/syssam/veloxq"
	"github.com/syssam/veloxq/dialect/sql/sqlgraph"
	"github.com/syssam/veloxq/privacy"
	"github.com/syssam/veloxq/queryast"
	"github.com/syssam/veloxq/querygraph"
)

// interpreter runs the nodes of a query graph on one database. Writes run
// on tx; without a transaction the graph must be read only.
type interpreter struct {
	db     *Database
	tx     sqlgraph.Transaction
	reads  *resolver
	policy privacy.QueryMutationRule
	logger *slog.Logger
}

// Read implements querygraph.Interpreter.
func (in *interpreter) Read(ctx context.Context, q queryast.ReadQuery) (*queryast.ReadResult, error) {
	start := time.Now()
	res, err := in.reads.read(ctx, q)
	in.log(ctx, q.String(), start, err)
	return res, err
}

// Write implements querygraph.Interpreter.
func (in *interpreter) Write(ctx context.Context, q queryast.WriteQuery) (*queryast.WriteResult, error) {
	if in.tx == nil {
		return nil, veloxq.NewAssertionError("write %s outside of a transaction", q)
	}
	if err := in.checkMutation(ctx, q); err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := sqlgraph.Execute(ctx, in.tx, q)
	in.log(ctx, q.String(), start, err)
	return res, err
}

func (in *interpreter) checkQuery(ctx context.Context, q queryast.ReadQuery) error {
	if in.policy == nil {
		return nil
	}
	if err := in.policy.EvalQuery(ctx, q); err != nil {
		return veloxq.NewPrivacyError(q.Model().Name, "query", err)
	}
	return nil
}

func (in *interpreter) checkMutation(ctx context.Context, q queryast.WriteQuery) error {
	if in.policy == nil {
		return nil
	}
	if err := in.policy.EvalMutation(ctx, q); err != nil {
		return veloxq.NewPrivacyError(q.Model().Name, q.Op().String(), err)
	}
	return nil
}

func (in *interpreter) log(ctx context.Context, node string, start time.Time, err error) {
	if err != nil {
		in.logger.DebugContext(ctx, "graph node failed", "database", in.db.Name(), "node", node, "error", err)
		return
	}
	in.logger.DebugContext(ctx, "graph node executed", "database", in.db.Name(), "node", node, "duration", time.Since(start))
}

var _ querygraph.Interpreter = (*interpreter)(nil)
