package schema

import (
	"slices"
	"time"

	"golang.org/x/text/cases"
)

// Type is the scalar type of a field.
type Type string

// Scalar field types.
const (
	TypeString   Type = "String"
	TypeInt      Type = "Int"
	TypeFloat    Type = "Float"
	TypeBoolean  Type = "Boolean"
	TypeDateTime Type = "DateTime"
	TypeUUID     Type = "UUID"
	TypeEnum     Type = "Enum"
	TypeJSON     Type = "Json"
)

// Valid reports if t is a known scalar type.
func (t Type) Valid() bool {
	switch t {
	case TypeString, TypeInt, TypeFloat, TypeBoolean, TypeDateTime, TypeUUID, TypeEnum, TypeJSON:
		return true
	}
	return false
}

// Field names stamped automatically on create and update when present.
const (
	CreatedAtField = "createdAt"
	UpdatedAtField = "updatedAt"
)

// Field is a scalar field of a model.
type Field struct {
	Name            string
	Column          string
	Type            Type
	IsList          bool
	IsUnique        bool
	IsRequired      bool
	IsID            bool
	IsAutoIncrement bool

	model *Model
}

// Model returns the model the field belongs to.
func (f *Field) Model() *Model { return f.model }

// ScalarListTable returns the auxiliary table storing the values of a list
// field.
func (f *Field) ScalarListTable() string {
	return f.model.Table + "_" + f.Name
}

// IsTimestamp reports if the field is stamped by the engine.
func (f *Field) IsTimestamp() bool {
	return f.Type == TypeDateTime && (f.Name == CreatedAtField || f.Name == UpdatedAtField)
}

// Scalar list table columns.
const (
	ListNodeIDColumn   = "nodeId"
	ListPositionColumn = "position"
	ListValueColumn    = "value"
)

// Side is one of the two ends of a relation.
type Side int

// Relation sides.
const (
	SideA Side = iota
	SideB
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

func (s Side) String() string {
	if s == SideA {
		return "A"
	}
	return "B"
}

// RelationField is a field pointing at records of another (or the same) model.
type RelationField struct {
	Name       string
	IsList     bool
	IsRequired bool

	model    *Model
	related  *Model
	relation *Relation
	side     Side
}

// Model returns the model declaring the field.
func (f *RelationField) Model() *Model { return f.model }

// RelatedModel returns the model the field points at.
func (f *RelationField) RelatedModel() *Model { return f.related }

// Relation returns the relation the field participates in.
func (f *RelationField) Relation() *Relation { return f.relation }

// Side returns the side of the relation the declaring model is on.
func (f *RelationField) Side() Side { return f.side }

// RelatedField returns the field on the other side of the relation, or nil
// if the relation is only declared on this side.
func (f *RelationField) RelatedField() *RelationField {
	for _, rf := range f.relation.fields {
		if rf != f {
			return rf
		}
	}
	return nil
}

// RelationTable returns the table the relation is stored in.
func (f *RelationField) RelationTable() string {
	return f.relation.Table()
}

// RelationColumn returns the column holding the id of the field's model.
func (f *RelationField) RelationColumn() string {
	return f.relation.ColumnFor(f.side)
}

// OppositeColumn returns the column holding the id of the related model.
func (f *RelationField) OppositeColumn() string {
	return f.relation.ColumnFor(f.side.Opposite())
}

// IsInline reports if the relation is stored on one of the model tables.
func (f *RelationField) IsInline() bool {
	return f.relation.Inline != nil
}

// JoinTable manifests a relation as a dedicated table.
type JoinTable struct {
	Table   string `yaml:"table"`
	ColumnA string `yaml:"column_a"`
	ColumnB string `yaml:"column_b"`
}

// Inline manifests a relation as a column on one model's table. The column
// holds the id of the other side.
type Inline struct {
	Model  string `yaml:"model"`
	Column string `yaml:"column"`
}

// Relation connects two models.
type Relation struct {
	Name      string
	JoinTable *JoinTable
	Inline    *Inline

	modelA *Model
	modelB *Model
	holder *Model
	fields []*RelationField
}

// ModelA returns the model on side A.
func (r *Relation) ModelA() *Model { return r.modelA }

// ModelB returns the model on side B.
func (r *Relation) ModelB() *Model { return r.modelB }

// Model returns the model on the given side.
func (r *Relation) Model(s Side) *Model {
	if s == SideA {
		return r.modelA
	}
	return r.modelB
}

// HolderSide returns the side whose table carries an inline relation column.
func (r *Relation) HolderSide() Side {
	if r.holder == r.modelA {
		return SideA
	}
	return SideB
}

// Table returns the table the relation is stored in.
func (r *Relation) Table() string {
	if r.Inline != nil {
		return r.holder.Table
	}
	return r.JoinTable.Table
}

// ColumnFor returns the column of Table holding the ids of the given side.
func (r *Relation) ColumnFor(s Side) string {
	if r.Inline != nil {
		if r.HolderSide() == s {
			return r.holder.ID().Column
		}
		return r.Inline.Column
	}
	if s == SideA {
		return r.JoinTable.ColumnA
	}
	return r.JoinTable.ColumnB
}

// Fields returns the relation fields participating in the relation.
func (r *Relation) Fields() []*RelationField { return r.fields }

// IsRequired reports if either side of the relation is required.
func (r *Relation) IsRequired() bool {
	return slices.ContainsFunc(r.fields, func(f *RelationField) bool { return f.IsRequired })
}

// Model is a record type mapped to a table.
type Model struct {
	Name           string
	Table          string
	Fields         []*Field
	RelationFields []*RelationField

	registry *Registry
	id       *Field
}

// Registry returns the registry the model belongs to.
func (m *Model) Registry() *Registry { return m.registry }

// ID returns the id field of the model.
func (m *Model) ID() *Field { return m.id }

// Field returns the scalar field with the given name, or nil.
func (m *Model) Field(name string) *Field {
	for _, f := range m.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// RelationField returns the relation field with the given name, or nil.
func (m *Model) RelationField(name string) *RelationField {
	for _, f := range m.RelationFields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// ScalarFields returns the fields stored as columns of the model table.
func (m *Model) ScalarFields() []*Field {
	fields := make([]*Field, 0, len(m.Fields))
	for _, f := range m.Fields {
		if !f.IsList {
			fields = append(fields, f)
		}
	}
	return fields
}

// ListFields returns the scalar list fields of the model.
func (m *Model) ListFields() []*Field {
	var fields []*Field
	for _, f := range m.Fields {
		if f.IsList {
			fields = append(fields, f)
		}
	}
	return fields
}

// Registry is the immutable set of models and relations of one database.
type Registry struct {
	DBName string

	models    []*Model
	byName    map[string]*Model
	byFold    map[string]*Model
	relations map[string]*Relation
	loadedAt  time.Time
}

// Models returns the models in declaration order.
func (r *Registry) Models() []*Model { return r.models }

// Model returns the model with the given name, or nil.
func (r *Registry) Model(name string) *Model { return r.byName[name] }

// FindModel looks a model up by name, ignoring case.
func (r *Registry) FindModel(name string) *Model {
	if m, ok := r.byName[name]; ok {
		return m
	}
	return r.byFold[cases.Fold().String(name)]
}

// Relation returns the relation with the given name, or nil.
func (r *Registry) Relation(name string) *Relation { return r.relations[name] }

// Relations returns all relations sorted by name.
func (r *Registry) Relations() []*Relation {
	rels := make([]*Relation, 0, len(r.relations))
	for _, rel := range r.relations {
		rels = append(rels, rel)
	}
	slices.SortFunc(rels, func(a, b *Relation) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return rels
}

// LoadedAt returns the time the registry was built.
func (r *Registry) LoadedAt() time.Time { return r.loadedAt }

// FieldsRequiringModel returns the relation fields of the registry that point
// at m and are required. Records of m referenced through one of them cannot
// be removed.
func (r *Registry) FieldsRequiringModel(m *Model) []*RelationField {
	var fields []*RelationField
	for _, model := range r.models {
		for _, rf := range model.RelationFields {
			if rf.related == m && rf.IsRequired {
				fields = append(fields, rf)
			}
		}
	}
	return fields
}
