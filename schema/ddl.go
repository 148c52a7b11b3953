package schema

import (
	"fmt"

	"ariga.io/atlas/sql/mysql"
	"ariga.io/atlas/sql/postgres"
	atlas "ariga.io/atlas/sql/schema"

	"github.com/syssam/veloxq/dialect"
)

// AtlasSchema returns the tables needed to store the registry on the given
// dialect: one table per model, one per scalar list field and one per join
// table relation.
func (r *Registry) AtlasSchema(name string) (*atlas.Schema, error) {
	switch name {
	case dialect.Postgres, dialect.MySQL, dialect.SQLite:
	default:
		return nil, fmt.Errorf("schema: unsupported dialect %q", name)
	}
	s := atlas.New(r.DBName)
	for _, m := range r.models {
		s.AddTables(modelTable(name, m))
		for _, f := range m.ListFields() {
			s.AddTables(listTable(name, f))
		}
	}
	for _, rel := range r.Relations() {
		if rel.JoinTable != nil {
			s.AddTables(joinTable(name, rel))
		}
	}
	return s, nil
}

func modelTable(d string, m *Model) *atlas.Table {
	t := atlas.NewTable(m.Table)
	var pk *atlas.Column
	for _, f := range m.ScalarFields() {
		c := atlas.NewColumn(f.Column).SetType(columnType(d, f.Type)).SetNull(!f.IsRequired)
		if f.IsID {
			pk = c
			if f.IsAutoIncrement {
				autoIncrement(d, c)
			}
		}
		t.AddColumns(c)
		if f.IsUnique && !f.IsID {
			t.AddIndexes(atlas.NewUniqueIndex(m.Table + "_" + f.Column + "_key").AddColumns(c))
		}
	}
	for _, rel := range m.registry.Relations() {
		if rel.Inline == nil || rel.holder != m {
			continue
		}
		ref := rel.Model(rel.HolderSide().Opposite()).ID()
		t.AddColumns(atlas.NewColumn(rel.Inline.Column).SetType(columnType(d, ref.Type)).SetNull(true))
	}
	return t.SetPrimaryKey(atlas.NewPrimaryKey(pk))
}

func listTable(d string, f *Field) *atlas.Table {
	node := atlas.NewColumn(ListNodeIDColumn).SetType(columnType(d, f.model.ID().Type))
	pos := atlas.NewColumn(ListPositionColumn).SetType(&atlas.IntegerType{T: "integer"})
	value := atlas.NewColumn(ListValueColumn).SetType(columnType(d, f.Type))
	return atlas.NewTable(f.ScalarListTable()).
		AddColumns(node, pos, value).
		SetPrimaryKey(atlas.NewPrimaryKey(node, pos))
}

func joinTable(d string, rel *Relation) *atlas.Table {
	a := atlas.NewColumn(rel.JoinTable.ColumnA).SetType(columnType(d, rel.modelA.ID().Type))
	b := atlas.NewColumn(rel.JoinTable.ColumnB).SetType(columnType(d, rel.modelB.ID().Type))
	return atlas.NewTable(rel.JoinTable.Table).
		AddColumns(a, b).
		SetPrimaryKey(atlas.NewPrimaryKey(a, b))
}

func autoIncrement(d string, c *atlas.Column) {
	switch d {
	case dialect.Postgres:
		c.SetType(&postgres.SerialType{T: "bigserial"})
	case dialect.MySQL:
		c.AddAttrs(&mysql.AutoIncrement{})
	}
	// SQLite assigns rowids to INTEGER primary keys.
}

func columnType(d string, t Type) atlas.Type {
	switch t {
	case TypeInt:
		if d == dialect.SQLite {
			return &atlas.IntegerType{T: "integer"}
		}
		return &atlas.IntegerType{T: "bigint"}
	case TypeFloat:
		switch d {
		case dialect.Postgres:
			return &atlas.FloatType{T: "double precision"}
		case dialect.MySQL:
			return &atlas.FloatType{T: "double"}
		}
		return &atlas.FloatType{T: "real"}
	case TypeBoolean:
		if d == dialect.MySQL {
			return &atlas.BoolType{T: "bool"}
		}
		return &atlas.BoolType{T: "boolean"}
	case TypeDateTime:
		if d == dialect.Postgres {
			return &atlas.TimeType{T: "timestamp"}
		}
		return &atlas.TimeType{T: "datetime"}
	case TypeUUID:
		switch d {
		case dialect.Postgres:
			return &atlas.UUIDType{T: "uuid"}
		case dialect.MySQL:
			return &atlas.StringType{T: "char", Size: 36}
		}
		return &atlas.StringType{T: "text"}
	case TypeJSON:
		switch d {
		case dialect.Postgres:
			return &atlas.JSONType{T: "jsonb"}
		case dialect.MySQL:
			return &atlas.JSONType{T: "json"}
		}
		return &atlas.StringType{T: "text"}
	}
	if d == dialect.MySQL {
		return &atlas.StringType{T: "varchar", Size: 191}
	}
	return &atlas.StringType{T: "text"}
}
