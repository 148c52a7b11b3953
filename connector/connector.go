package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/syssam/veloxq"
	"github.com/syssam/veloxq/dialect"
	"github.com/syssam/veloxq/dialect/sql"
	"github.com/syssam/veloxq/dialect/sql/sqlgraph"
	"github.com/syssam/veloxq/privacy"
	"github.com/syssam/veloxq/queryast"
	"github.com/syssam/veloxq/querygraph"
	"github.com/syssam/veloxq/schema"
)

// UnmanagedDatabaseWriter runs writes on a named database. Every call runs
// in its own transaction.
type UnmanagedDatabaseWriter interface {
	// ExecuteRaw runs a raw statement and returns its rows as a JSON array
	// of objects keyed by column name.
	ExecuteRaw(ctx context.Context, db, query string) (json.RawMessage, error)
	// Execute runs a single write query.
	Execute(ctx context.Context, db string, q queryast.WriteQuery) (*queryast.WriteResult, error)
}

// Option configures a Connector.
type Option func(*Connector)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Connector) {
		c.logger = l
	}
}

// WithPolicy sets the policy evaluated before every node of a graph. Nested
// relation reads are checked too. Any decision other than Allow or Skip
// fails the graph with a veloxq.PrivacyError.
func WithPolicy(p privacy.QueryMutationRule) Option {
	return func(c *Connector) {
		c.policy = privacy.Policies{p}
	}
}

// WithCache enables caching of reads run outside of transactions. Cached
// reads of a database are dropped by every write committed on it.
func WithCache(cache veloxq.Cache, ttl time.Duration) Option {
	return func(c *Connector) {
		c.cache, c.ttl = cache, ttl
	}
}

// WithReadConcurrency bounds the nested reads run in parallel outside of
// transactions.
func WithReadConcurrency(n int) Option {
	return func(c *Connector) {
		c.concurrency = n
	}
}

// Connector runs query graphs of a schema registry on named databases.
type Connector struct {
	registry    *schema.Registry
	builder     *querygraph.Builder
	logger      *slog.Logger
	policy      privacy.QueryMutationRule
	cache       veloxq.Cache
	ttl         time.Duration
	concurrency int

	mu        sync.RWMutex
	databases map[string]*Database
}

// New returns a connector for the registry without databases.
func New(reg *schema.Registry, opts ...Option) *Connector {
	c := &Connector{
		registry:  reg,
		builder:   querygraph.NewBuilder(reg),
		logger:    slog.Default(),
		databases: make(map[string]*Database),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open returns a connector with the databases and the reader settings of
// cfg. A memory cache is used when cfg enables caching and no cache option
// is given.
func Open(reg *schema.Registry, cfg *Config, opts ...Option) (*Connector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base := []Option{WithReadConcurrency(cfg.Reader.Concurrency)}
	if cfg.Cache.TTL > 0 {
		base = append(base, WithCache(NewMemoryCache(), cfg.Cache.TTL))
	}
	c := New(reg, append(base, opts...)...)
	for _, dc := range cfg.Databases {
		db, err := OpenDatabase(dc, c.logger)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Register(db)
	}
	return c, nil
}

// Register adds a database, replacing any database with the same name.
func (c *Connector) Register(db *Database) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.databases[db.Name()]; ok && old != db {
		if err := old.Close(); err != nil {
			c.logger.Warn("closing replaced database", "database", db.Name(), "error", err)
		}
	}
	c.databases[db.Name()] = db
}

// Database returns the named database.
func (c *Connector) Database(name string) (*Database, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	db, ok := c.databases[name]
	if !ok {
		return nil, fmt.Errorf("connector: unknown database %q", name)
	}
	return db, nil
}

// Databases returns the names of the registered databases, sorted.
func (c *Connector) Databases() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.databases))
	for name := range c.databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reader returns the reader of the database named after the registry.
func (c *Connector) Reader() (ManagedDatabaseReader, error) {
	db, err := c.Database(c.registry.DBName)
	if err != nil {
		return nil, err
	}
	return c.reader(db), nil
}

func (c *Connector) reader(db *Database) *reader {
	return newReader(db, db.Driver()).cached(c.cache, c.ttl)
}

// Watch applies the slow query thresholds of the configuration file at path
// to the registered databases every time it changes.
func (c *Connector) Watch(ctx context.Context, path string) error {
	return WatchConfig(ctx, path, c.logger, func(cfg *Config) {
		for _, dc := range cfg.Databases {
			if db, err := c.Database(dc.Name); err == nil {
				db.SetSlowThreshold(dc.SlowThreshold)
			}
		}
	})
}

// Close closes all databases.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for name, db := range c.databases {
		errs = append(errs, db.Close())
		delete(c.databases, name)
	}
	return errors.Join(errs...)
}

// ExecuteRaw implements UnmanagedDatabaseWriter.
func (c *Connector) ExecuteRaw(ctx context.Context, name, query string) (json.RawMessage, error) {
	db, err := c.Database(name)
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	err = c.inTx(ctx, db, func(tx *sqlgraph.Tx, ex dialect.ExecQuerier) error {
		var rows sql.Rows
		if err := ex.Query(ctx, query, []any{}, &rows); err != nil {
			return err
		}
		defer rows.Close()
		out, err = scanRaw(&rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []map[string]any{}
	}
	return json.Marshal(out)
}

// Execute implements UnmanagedDatabaseWriter.
func (c *Connector) Execute(ctx context.Context, name string, q queryast.WriteQuery) (*queryast.WriteResult, error) {
	db, err := c.Database(name)
	if err != nil {
		return nil, err
	}
	var res *queryast.WriteResult
	err = c.inTx(ctx, db, func(tx *sqlgraph.Tx, ex dialect.ExecQuerier) error {
		in := c.interpreter(db, tx, ex)
		res, err = in.Write(ctx, q)
		return err
	})
	return res, err
}

// ExecuteGraph runs a graph on the named database. Graphs with writes run
// in one transaction, committed when every node succeeded and rolled back
// otherwise. Read only graphs run without a transaction.
func (c *Connector) ExecuteGraph(ctx context.Context, name string, g *querygraph.QueryGraph) ([]querygraph.Outcome, error) {
	db, err := c.Database(name)
	if err != nil {
		return nil, err
	}
	if !hasWrites(g) {
		r := c.reader(db)
		in := &interpreter{db: db, policy: c.policy, logger: c.logger}
		in.reads = &resolver{r: r, check: in.checkQuery, concurrency: c.concurrency}
		return querygraph.Execute(ctx, g, in)
	}
	var outcomes []querygraph.Outcome
	err = c.inTx(ctx, db, func(tx *sqlgraph.Tx, ex dialect.ExecQuerier) error {
		outcomes, err = querygraph.Execute(ctx, g, c.interpreter(db, tx, ex))
		return err
	})
	if err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (c *Connector) interpreter(db *Database, tx *sqlgraph.Tx, ex dialect.ExecQuerier) *interpreter {
	in := &interpreter{db: db, tx: tx, policy: c.policy, logger: c.logger}
	in.reads = &resolver{r: newReader(db, ex), check: in.checkQuery}
	return in
}

func hasWrites(g *querygraph.QueryGraph) bool {
	for i := range g.Len() {
		if _, ok := g.Node(querygraph.NodeRef(i)).(*querygraph.WriteNode); ok {
			return true
		}
	}
	return false
}

// inTx runs fn in a transaction of db. The cached reads of db are dropped
// once the transaction is committed.
func (c *Connector) inTx(ctx context.Context, db *Database, fn func(*sqlgraph.Tx, dialect.ExecQuerier) error) error {
	tx, err := db.Driver().Tx(ctx)
	if err != nil {
		return fmt.Errorf("connector: begin transaction on %q: %w", db.Name(), err)
	}
	if err := fn(sqlgraph.NewTx(tx, db.Dialect()), tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			c.logger.ErrorContext(ctx, "rollback failed", "database", db.Name(), "error", rerr)
			return errors.Join(err, &veloxq.RollbackError{Err: rerr})
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("connector: commit on %q: %w", db.Name(), err)
	}
	if c.cache != nil {
		if err := c.cache.DeletePrefix(ctx, db.Name()+":"); err != nil {
			c.logger.WarnContext(ctx, "cache invalidation failed", "database", db.Name(), "error", err)
		}
	}
	return nil
}

// scanRaw reads all rows as maps keyed by column name. Text returned as
// bytes is converted to strings.
func scanRaw(rows sql.ColumnScanner) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, name := range columns {
			if b, ok := values[i].([]byte); ok {
				row[name] = string(b)
			} else {
				row[name] = values[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

var _ UnmanagedDatabaseWriter = (*Connector)(nil)
