package schema

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-openapi/inflect"
	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"
)

// Definition is the declarative form of a registry.
type Definition struct {
	DBName    string               `yaml:"db_name"`
	Models    []ModelDefinition    `yaml:"models"`
	Relations []RelationDefinition `yaml:"relations,omitempty"`
}

// ModelDefinition declares a model.
type ModelDefinition struct {
	Name      string                    `yaml:"name"`
	Table     string                    `yaml:"table,omitempty"`
	Fields    []FieldDefinition         `yaml:"fields"`
	Relations []RelationFieldDefinition `yaml:"relations,omitempty"`
}

// FieldDefinition declares a scalar field.
type FieldDefinition struct {
	Name          string `yaml:"name"`
	Column        string `yaml:"column,omitempty"`
	Type          Type   `yaml:"type"`
	List          bool   `yaml:"list,omitempty"`
	Unique        bool   `yaml:"unique,omitempty"`
	Required      bool   `yaml:"required,omitempty"`
	ID            bool   `yaml:"id,omitempty"`
	AutoIncrement bool   `yaml:"autoincrement,omitempty"`
}

// RelationFieldDefinition declares a relation field.
type RelationFieldDefinition struct {
	Name     string `yaml:"name"`
	Model    string `yaml:"model"`
	Relation string `yaml:"relation,omitempty"`
	List     bool   `yaml:"list,omitempty"`
	Required bool   `yaml:"required,omitempty"`
}

// RelationDefinition declares how a relation is stored.
type RelationDefinition struct {
	Name      string     `yaml:"name"`
	JoinTable *JoinTable `yaml:"join_table,omitempty"`
	Inline    *Inline    `yaml:"inline,omitempty"`
}

// LoadFile reads a YAML definition from path and builds its registry.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("schema: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes a YAML definition and builds its registry.
func Load(r io.Reader) (*Registry, error) {
	var def Definition
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("schema: decode definition: %w", err)
	}
	return Build(def)
}

// DefaultTable returns the table name used for a model without an explicit
// table: the pluralized, snake-cased model name.
func DefaultTable(model string) string {
	return inflect.Underscore(inflect.Pluralize(model))
}

// Build validates a definition and returns the registry it describes.
func Build(def Definition) (*Registry, error) {
	r := &Registry{
		DBName:    def.DBName,
		byName:    make(map[string]*Model, len(def.Models)),
		byFold:    make(map[string]*Model, len(def.Models)),
		relations: make(map[string]*Relation),
		loadedAt:  time.Now(),
	}
	if r.DBName == "" {
		return nil, fmt.Errorf("schema: missing db_name")
	}
	fold := cases.Fold()
	for _, md := range def.Models {
		m, err := buildModel(r, md)
		if err != nil {
			return nil, err
		}
		if _, ok := r.byName[m.Name]; ok {
			return nil, fmt.Errorf("schema: duplicate model %q", m.Name)
		}
		r.models = append(r.models, m)
		r.byName[m.Name] = m
		r.byFold[fold.String(m.Name)] = m
	}
	for _, rd := range def.Relations {
		if rd.Name == "" {
			return nil, fmt.Errorf("schema: relation without a name")
		}
		if rd.Inline != nil && rd.JoinTable != nil {
			return nil, fmt.Errorf("schema: relation %q is both inline and a join table", rd.Name)
		}
		r.relations[rd.Name] = &Relation{Name: rd.Name, JoinTable: rd.JoinTable, Inline: rd.Inline}
	}
	for i, md := range def.Models {
		m := r.models[i]
		for _, fd := range md.Relations {
			if err := linkRelationField(r, m, fd); err != nil {
				return nil, err
			}
		}
	}
	for _, rel := range r.relations {
		if err := resolveRelation(r, rel); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func buildModel(r *Registry, md ModelDefinition) (*Model, error) {
	if md.Name == "" {
		return nil, fmt.Errorf("schema: model without a name")
	}
	m := &Model{Name: md.Name, Table: md.Table, registry: r}
	if m.Table == "" {
		m.Table = DefaultTable(md.Name)
	}
	for _, fd := range md.Fields {
		if !fd.Type.Valid() {
			return nil, fmt.Errorf("schema: %s.%s: unknown type %q", md.Name, fd.Name, fd.Type)
		}
		f := &Field{
			Name:            fd.Name,
			Column:          cmp.Or(fd.Column, fd.Name),
			Type:            fd.Type,
			IsList:          fd.List,
			IsUnique:        fd.Unique || fd.ID,
			IsRequired:      fd.Required || fd.ID,
			IsID:            fd.ID,
			IsAutoIncrement: fd.AutoIncrement,
			model:           m,
		}
		if m.Field(f.Name) != nil {
			return nil, fmt.Errorf("schema: %s: duplicate field %q", md.Name, f.Name)
		}
		if f.IsID {
			if m.id != nil {
				return nil, fmt.Errorf("schema: %s: more than one id field", md.Name)
			}
			if f.IsList {
				return nil, fmt.Errorf("schema: %s.%s: id field cannot be a list", md.Name, f.Name)
			}
			if f.IsAutoIncrement && f.Type != TypeInt {
				return nil, fmt.Errorf("schema: %s.%s: only Int ids can auto increment", md.Name, f.Name)
			}
			m.id = f
		}
		m.Fields = append(m.Fields, f)
	}
	if m.id == nil {
		return nil, fmt.Errorf("schema: model %q has no id field", md.Name)
	}
	return m, nil
}

func linkRelationField(r *Registry, m *Model, fd RelationFieldDefinition) error {
	related := r.byName[fd.Model]
	if related == nil {
		return fmt.Errorf("schema: %s.%s: unknown model %q", m.Name, fd.Name, fd.Model)
	}
	if m.Field(fd.Name) != nil || m.RelationField(fd.Name) != nil {
		return fmt.Errorf("schema: %s: duplicate field %q", m.Name, fd.Name)
	}
	name := fd.Relation
	if name == "" {
		a, b := m.Name, related.Name
		if b < a {
			a, b = b, a
		}
		name = a + "To" + b
	}
	rel, ok := r.relations[name]
	if !ok {
		rel = &Relation{Name: name}
		r.relations[name] = rel
	}
	if len(rel.fields) == 2 {
		return fmt.Errorf("schema: relation %q has more than two fields", name)
	}
	rf := &RelationField{
		Name:       fd.Name,
		IsList:     fd.List,
		IsRequired: fd.Required && !fd.List,
		model:      m,
		related:    related,
		relation:   rel,
	}
	rel.fields = append(rel.fields, rf)
	m.RelationFields = append(m.RelationFields, rf)
	return nil
}

func resolveRelation(r *Registry, rel *Relation) error {
	if len(rel.fields) == 0 {
		return fmt.Errorf("schema: relation %q is not referenced by any field", rel.Name)
	}
	first := rel.fields[0]
	a, b := first.model, first.related
	if b.Name < a.Name {
		a, b = b, a
	}
	rel.modelA, rel.modelB = a, b
	for i, rf := range rel.fields {
		if rf.related != rel.Model(sideOf(rel, rf, i).Opposite()) {
			return fmt.Errorf("schema: relation %q connects %s and %s, but %s.%s points at %s",
				rel.Name, a.Name, b.Name, rf.model.Name, rf.Name, rf.related.Name)
		}
		rf.side = sideOf(rel, rf, i)
	}
	if len(rel.fields) == 2 && rel.fields[0].side == rel.fields[1].side {
		return fmt.Errorf("schema: relation %q: both fields are on side %s", rel.Name, rel.fields[0].side)
	}
	switch {
	case rel.Inline != nil:
		holder := r.byName[rel.Inline.Model]
		if holder != a && holder != b {
			return fmt.Errorf("schema: relation %q: inline model %q is not part of the relation", rel.Name, rel.Inline.Model)
		}
		if rel.Inline.Column == "" {
			return fmt.Errorf("schema: relation %q: inline column is required", rel.Name)
		}
		if slices.ContainsFunc(rel.fields, func(rf *RelationField) bool { return rf.model == holder && rf.IsList }) {
			return fmt.Errorf("schema: relation %q: a list side cannot hold the inline column", rel.Name)
		}
		rel.holder = holder
	case rel.JoinTable == nil:
		rel.JoinTable = &JoinTable{Table: "_" + rel.Name, ColumnA: "A", ColumnB: "B"}
	default:
		rel.JoinTable.Table = cmp.Or(rel.JoinTable.Table, "_"+rel.Name)
		rel.JoinTable.ColumnA = cmp.Or(rel.JoinTable.ColumnA, "A")
		rel.JoinTable.ColumnB = cmp.Or(rel.JoinTable.ColumnB, "B")
	}
	if rel.Inline != nil && a == b {
		// Self relations hold the column on side A and reference side B.
		rel.holder = a
	}
	return nil
}

// sideOf returns the side of a relation field. For relations between two
// distinct models the side follows the model; for self relations the first
// declared field is on side A.
func sideOf(rel *Relation, rf *RelationField, i int) Side {
	if rel.modelA != rel.modelB {
		if rf.model == rel.modelA {
			return SideA
		}
		return SideB
	}
	if i == 0 {
		return SideA
	}
	return SideB
}

// String returns a short description of the relation for diagnostics.
func (r *Relation) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s(%s <-> %s", r.Name, r.modelA.Name, r.modelB.Name)
	if r.Inline != nil {
		fmt.Fprintf(&sb, ", inline %s.%s", r.holder.Table, r.Inline.Column)
	} else {
		fmt.Fprintf(&sb, ", table %s", r.JoinTable.Table)
	}
	sb.WriteString(")")
	return sb.String()
}
