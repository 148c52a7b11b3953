package dialect

import (
	"context"
	"database/sql/driver"
)

// Dialect names for external usage.
const (
	MySQL    = "mysql"
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// ExecQuerier wraps the two database operations.
type ExecQuerier interface {
	// Exec executes a query that does not return records. For example, in SQL,
	// INSERT or UPDATE. It scans the result into the pointer v. For SQL drivers,
	// it is dialect/sql.Result.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a query that returns rows, typically a SELECT in SQL.
	// It scans the result into the pointer v. For SQL drivers, it is
	// *dialect/sql.Rows.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the interface that wraps all necessary operations for the
// connectors.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	Tx(context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx wraps the Exec and Query operations in transaction.
type Tx interface {
	ExecQuerier
	driver.Tx
}

// Capabilities mark the statement strategies a dialect supports. They are
// resolved once per database and never per request.
type Capabilities struct {
	// RowNumber reports if related records can be paginated with a single
	// ROW_NUMBER() window query. Without it, one sub-select per parent is
	// combined with UNION ALL.
	RowNumber bool
	// Returning reports if INSERT statements can return the generated id.
	Returning bool
}

// CapabilitiesOf returns the capabilities of a dialect.
func CapabilitiesOf(name string) Capabilities {
	switch name {
	case Postgres:
		return Capabilities{RowNumber: true, Returning: true}
	default:
		return Capabilities{}
	}
}
