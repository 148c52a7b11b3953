// Package dialect defines the contracts between the connectors and the
// relational databases they run on.
//
// # Supported Dialects
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//
// # Interfaces
//
// ExecQuerier is implemented by both Driver and Tx:
//
//	type ExecQuerier interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	}
//
// A Driver opens transactions; every write request runs in exactly one of
// them. Reads that are not part of a write run on the Driver directly.
//
// # Capabilities
//
// Dialects differ in how related records can be paginated. Postgres ranks
// related rows with ROW_NUMBER() in one statement, the others combine one
// sub-select per parent with UNION ALL. The strategy is selected once from
// Capabilities when a database is opened.
//
// # Sub-packages
//
//   - dialect/sql: driver wrappers, statement builder and row scanning
//   - dialect/sql/sqlgraph: transactions, integrity checks and write
//     orchestration
package dialect
