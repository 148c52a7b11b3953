package connector

import (
	"fmt"
	"log/slog"
	"time"

	// Database drivers of the supported dialects, registered under the
	// dialect names.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/syssam/veloxq/dialect"
	"github.com/syssam/veloxq/dialect/sql"
)

// Database is a named connection pool of one dialect.
type Database struct {
	name    string
	schema  string
	base    *sql.Driver
	drv     dialect.Driver
	stats   *sql.StatsDriver
	related sql.RelatedRecordsBuilder
}

// OpenDatabase opens the database described by cfg.
func OpenDatabase(cfg DatabaseConfig, logger *slog.Logger) (*Database, error) {
	drv, err := sql.Open(cfg.Dialect, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connector: open %q: %w", cfg.Name, err)
	}
	if cfg.MaxOpenConns > 0 {
		drv.DB().SetMaxOpenConns(cfg.MaxOpenConns)
	}
	return NewDatabase(cfg, drv, logger), nil
}

// NewDatabase wraps an open driver. Statements are logged when cfg.Debug
// is set, otherwise statement statistics are collected and slow statements
// are logged. A zero slow threshold keeps the driver default.
func NewDatabase(cfg DatabaseConfig, drv *sql.Driver, logger *slog.Logger) *Database {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("database", cfg.Name)
	db := &Database{
		name:    cfg.Name,
		schema:  cfg.Schema,
		base:    drv,
		related: sql.NewRelatedRecordsBuilder(drv.Capabilities()),
	}
	if cfg.Debug {
		db.drv = sql.NewDebugDriver(drv, logger)
	} else {
		opts := []sql.StatsOption{sql.WithSlowQueryLog(logger)}
		if cfg.SlowThreshold > 0 {
			opts = append(opts, sql.WithSlowThreshold(cfg.SlowThreshold))
		}
		db.stats = sql.NewStatsDriver(drv, opts...)
		db.drv = db.stats
	}
	if cfg.Schema != "" {
		db.drv = sql.NewScopedDriver(db.drv, [2]string{"search_path", cfg.Schema})
	}
	return db
}

// Name returns the name of the database.
func (db *Database) Name() string { return db.name }

// Dialect returns the dialect of the database.
func (db *Database) Dialect() string { return db.base.Dialect() }

// Driver returns the driver statements are run on.
func (db *Database) Driver() dialect.Driver { return db.drv }

// Stats returns the query statistics, or nil for debug databases.
func (db *Database) Stats() *sql.QueryStats {
	if db.stats == nil {
		return nil
	}
	return db.stats.QueryStats()
}

// SetSlowThreshold changes the duration above which queries are reported
// as slow. It has no effect on debug databases.
func (db *Database) SetSlowThreshold(d time.Duration) {
	if db.stats != nil && d > 0 {
		db.stats.SetSlowThreshold(d)
	}
}

// Close closes the connection pool.
func (db *Database) Close() error { return db.base.Close() }
