package connector

import (
	"context"
	"fmt"

	"ariga.io/atlas/sql/migrate"
	"ariga.io/atlas/sql/mysql"
	"ariga.io/atlas/sql/postgres"
	atlas "ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/sqlite"

	"github.com/syssam/veloxq/dialect"
	sqlschema "github.com/syssam/veloxq/dialect/sql/schema"
)

// Provision creates the tables storing the registry on the named database:
// model tables, scalar list tables and join tables. Existing tables are
// left untouched, but they must hold every column of the registry.
func (c *Connector) Provision(ctx context.Context, name string) error {
	db, err := c.Database(name)
	if err != nil {
		return err
	}
	s, err := c.registry.AtlasSchema(db.Dialect())
	if err != nil {
		return err
	}
	if err := sqlschema.ValidateSchema(s.Tables).Err(); err != nil {
		return fmt.Errorf("connector: provision %q: %w", name, err)
	}
	drv, err := atlasDriver(db)
	if err != nil {
		return fmt.Errorf("connector: provision %q: %w", name, err)
	}
	current, err := drv.InspectSchema(ctx, db.schema, nil)
	if err != nil {
		return fmt.Errorf("connector: provision %q: inspect: %w", name, err)
	}
	res := sqlschema.ValidateExisting(current.Tables, s.Tables)
	for _, w := range res.Warnings {
		c.logger.WarnContext(ctx, "schema drift", "database", name, "table", w.Table, "column", w.Column, "message", w.Message)
	}
	if err := res.Err(); err != nil {
		return fmt.Errorf("connector: provision %q: %w", name, err)
	}
	var changes []atlas.Change
	for _, t := range s.Tables {
		if _, ok := current.Table(t.Name); !ok {
			changes = append(changes, &atlas.AddTable{T: t})
		}
	}
	if len(changes) == 0 {
		c.logger.DebugContext(ctx, "database up to date", "database", name)
		return nil
	}
	qualifier := func(o *migrate.PlanOptions) {
		o.SchemaQualifier = &db.schema
	}
	if err := drv.ApplyChanges(ctx, changes, qualifier); err != nil {
		return fmt.Errorf("connector: provision %q: %w", name, err)
	}
	c.logger.InfoContext(ctx, "database provisioned", "database", name, "tables", len(changes))
	return nil
}

func atlasDriver(db *Database) (migrate.Driver, error) {
	conn := db.base.DB()
	switch db.Dialect() {
	case dialect.Postgres:
		return postgres.Open(conn)
	case dialect.MySQL:
		return mysql.Open(conn)
	case dialect.SQLite:
		return sqlite.Open(conn)
	default:
		return nil, fmt.Errorf("unsupported dialect %q", db.Dialect())
	}
}
