// Package sql builds and runs the statements of the SQL connectors.
//
// # Builder Types
//
//   - Builder: low-level statement writer with identifier quoting and placeholders
//   - Selector: SELECT builder with joins, predicates, ordering and UNION ALL
//   - InsertBuilder: INSERT builder with RETURNING on dialects supporting it
//   - UpdateBuilder: UPDATE builder with SET and WHERE clauses
//   - DeleteBuilder: DELETE builder with WHERE predicates
//
// # Dialect Support
//
// Statements adapt to the dialect they are built for:
//
//	// SELECT "users"."id" FROM "users" WHERE "users"."name" = $1
//	t := sql.Table("users")
//	sql.Dialect(dialect.Postgres).Select(t.C("id")).From(t).Where(sql.EQ(t.C("name"), "a8m"))
//
//	// SELECT `users`.`id` FROM `users` WHERE `users`.`name` = ?
//	sql.Dialect(dialect.SQLite).Select(t.C("id")).From(t).Where(sql.EQ(t.C("name"), "a8m"))
//
// # Model Statements
//
// Record reads, counts and scalar list statements are built from schema
// metadata (RecordSelect, RecordsSelect, CountSelect, ListValuesSelect).
// Filters are lowered with FilterPredicate. Records related to a set of
// parents are read by a RelatedRecordsBuilder picked from the dialect
// capabilities: RowNumberBuilder ranks the rows of every parent with a window
// function, UnionAllBuilder issues one sub-select per parent. Every related
// row carries its parent id in the ParentIDColumn column.
//
// # Drivers
//
// Driver wraps a database/sql pool. StatsDriver and DebugDriver decorate it
// with statistics, slow query logging and statement logging.
package sql
