package querygraph

import (
	"fmt"
	"strings"

	"github.com/go-openapi/inflect"

	"github.com/syssam/veloxq"
	"github.com/syssam/veloxq/queryast"
	"github.com/syssam/veloxq/schema"
)

// Field is one field of a request: an operation at the top level, or a
// selected field below it. Arguments hold input values as decoded from the
// request: nil, bool, int64, float64, string, []any and map[string]any.
type Field struct {
	Name      string
	Alias     string
	Arguments map[string]any
	Selection []Field
}

// Key returns the alias if set, otherwise the name.
func (f Field) Key() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

type opKind int

const (
	opFindOne opKind = iota
	opFindMany
	opCount
	opCreate
	opUpdate
	opUpdateMany
	opDelete
	opDeleteMany
	opUpsert
)

type operation struct {
	kind  opKind
	model *schema.Model
}

// Builder lowers request fields into query graphs.
type Builder struct {
	reg *schema.Registry
	ops map[string]operation
}

// NewBuilder returns a builder for the models of reg. Every model gets the
// operations findOne<Model> (or <model>), findMany<Model> (or <models>),
// count<Models>, create<Model>, update<Model>, updateMany<Models>,
// delete<Model>, deleteMany<Models> and upsert<Model>.
func NewBuilder(reg *schema.Registry) *Builder {
	b := &Builder{reg: reg, ops: make(map[string]operation)}
	for _, m := range reg.Models() {
		plural := inflect.Pluralize(m.Name)
		for name, kind := range map[string]opKind{
			"findMany" + m.Name:   opFindMany,
			lowerFirst(plural):    opFindMany,
			"findOne" + m.Name:    opFindOne,
			lowerFirst(m.Name):    opFindOne,
			"count" + plural:      opCount,
			"create" + m.Name:     opCreate,
			"update" + m.Name:     opUpdate,
			"updateMany" + plural: opUpdateMany,
			"delete" + m.Name:     opDelete,
			"deleteMany" + plural: opDeleteMany,
			"upsert" + m.Name:     opUpsert,
		} {
			b.ops[name] = operation{kind: kind, model: m}
		}
	}
	return b
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// IsMutation reports if the operation named by f writes.
func (b *Builder) IsMutation(f Field) bool {
	op, ok := b.ops[f.Name]
	return ok && op.kind >= opCreate
}

// Build lowers one top-level request field into a query graph.
func (b *Builder) Build(f Field) (*QueryGraph, error) {
	op, ok := b.ops[f.Name]
	if !ok {
		return nil, inputErrorf("", "unknown operation %q", f.Name)
	}
	l := &lowering{g: New()}
	m := op.model
	var err error
	switch op.kind {
	case opFindOne:
		err = l.findOne(m, f)
	case opFindMany:
		err = l.findMany(m, f)
	case opCount:
		err = l.count(m, f)
	case opCreate:
		err = l.createOne(m, f)
	case opUpdate:
		err = l.updateOne(m, f)
	case opUpdateMany:
		err = l.updateMany(m, f)
	case opDelete:
		err = l.deleteOne(m, f)
	case opDeleteMany:
		err = l.deleteMany(m, f)
	case opUpsert:
		err = l.upsert(m, f)
	}
	if err == nil {
		err = l.err
	}
	if err != nil {
		return nil, err
	}
	return l.g, nil
}

// lowering builds one graph. Edge errors are builder bugs; the first one is
// kept and reported by Build.
type lowering struct {
	g   *QueryGraph
	err error
}

func (l *lowering) node(n Node) NodeRef { return l.g.CreateNode(n) }

func (l *lowering) edge(from, to NodeRef, dep Dependency) {
	if err := l.g.CreateEdge(from, to, dep); err != nil && l.err == nil {
		l.err = err
	}
}

func (l *lowering) result(ref NodeRef) {
	if err := l.g.AddResultNode(ref); err != nil && l.err == nil {
		l.err = err
	}
}

func transform(k TransformKind, a Arity) Dependency {
	return ParentIDs(Transform{Kind: k, Arity: a})
}

// projection reads the selection of f on m. An empty selection selects
// every scalar field. Relation fields become nested related reads.
func projection(path string, m *schema.Model, f Field) (queryast.Projection, error) {
	p := queryast.Projection{Name: f.Name, Alias: f.Alias}
	if len(f.Selection) == 0 {
		p.Selected = queryast.SelectAll(m)
		return p, nil
	}
	for _, s := range f.Selection {
		if strings.HasPrefix(s.Name, "__") {
			continue
		}
		sp := path + "." + s.Key()
		if sf := m.Field(s.Name); sf != nil {
			if !containsField(p.Selected.Scalars, sf) {
				p.Selected.Scalars = append(p.Selected.Scalars, sf)
			}
			continue
		}
		rf := m.RelationField(s.Name)
		if rf == nil {
			return p, inputErrorf(sp, "unknown field of %s", m.Name)
		}
		args, err := parseQueryArguments(sp, rf.RelatedModel(), s.Arguments)
		if err != nil {
			return p, err
		}
		np, err := projection(sp, rf.RelatedModel(), s)
		if err != nil {
			return p, err
		}
		p.Nested = append(p.Nested, &queryast.ReadRelatedRecords{Projection: np, Field: rf, Args: args})
	}
	return p, nil
}

func containsField(fs []*schema.Field, f *schema.Field) bool {
	for _, x := range fs {
		if x == f {
			return true
		}
	}
	return false
}

// idProjection selects only the id of m.
func idProjection(name string, m *schema.Model) queryast.Projection {
	return queryast.Projection{Name: name, Selected: queryast.SelectedFields{Scalars: []*schema.Field{m.ID()}}}
}

func (l *lowering) findOne(m *schema.Model, f Field) error {
	p, err := projection(f.Key(), m, f)
	if err != nil {
		return err
	}
	finder, err := parseFinder(f.Key()+".where", m, f.Arguments["where"])
	if err != nil {
		return err
	}
	l.result(l.node(Read(&queryast.ReadOneRecord{Projection: p, Target: m, Finder: finder})))
	return nil
}

func (l *lowering) findMany(m *schema.Model, f Field) error {
	p, err := projection(f.Key(), m, f)
	if err != nil {
		return err
	}
	args, err := parseQueryArguments(f.Key(), m, f.Arguments)
	if err != nil {
		return err
	}
	l.result(l.node(Read(&queryast.ReadManyRecords{Projection: p, Target: m, Args: args})))
	return nil
}

func (l *lowering) count(m *schema.Model, f Field) error {
	args, err := parseQueryArguments(f.Key(), m, f.Arguments)
	if err != nil {
		return err
	}
	l.result(l.node(Read(&queryast.CountRecords{Name: f.Name, Alias: f.Alias, Target: m, Args: args})))
	return nil
}

// resultRead adds the read returning the record written by a top-level
// create, update or upsert. It runs after every other node of the graph.
func (l *lowering) resultRead(m *schema.Model, f Field, from ...NodeRef) error {
	p, err := projection(f.Key(), m, f)
	if err != nil {
		return err
	}
	read := l.node(Read(&queryast.ReadOneRecord{Projection: p, Target: m}))
	for _, ref := range from {
		l.edge(ref, read, transform(SetFinder, ExactlyOne))
	}
	for i := range read {
		ref := NodeRef(i)
		if len(l.g.Outgoing(ref)) == 0 {
			l.edge(ref, read, ExecutionOrder())
		}
	}
	l.result(read)
	return nil
}

func (l *lowering) createOne(m *schema.Model, f Field) error {
	ref, err := l.create(f.Key()+".data", m, f.Arguments["data"], nil)
	if err != nil {
		return err
	}
	return l.resultRead(m, f, ref)
}

// create adds a create node and its nested writes. back is the relation
// field of m pointing at the record of an enclosing nested create, if any.
func (l *lowering) create(path string, m *schema.Model, v any, back *schema.RelationField) (NodeRef, error) {
	d, err := parseData(path, m, v)
	if err != nil {
		return 0, err
	}
	for _, rf := range m.RelationFields {
		if !rf.IsRequired || rf.IsList || rf == back {
			continue
		}
		if !d.connects(rf) {
			rel := rf.Relation()
			return 0, veloxq.NewRelationViolationError(rel.Name, rel.ModelA().Name, rel.ModelB().Name)
		}
	}
	ref := l.node(Write(&queryast.CreateRecord{Target: m, Args: d.args, ListArgs: d.lists}))
	for _, n := range d.nested {
		if err := l.nested(path+"."+n.field.Name, ref, n, true); err != nil {
			return 0, err
		}
	}
	return ref, nil
}

// connects reports if the data creates or connects a record through rf.
func (d *writeData) connects(rf *schema.RelationField) bool {
	for _, n := range d.nested {
		if n.field == rf && (n.ops["create"] != nil || n.ops["connect"] != nil) {
			return true
		}
	}
	return false
}

func (l *lowering) updateOne(m *schema.Model, f Field) error {
	finder, err := parseFinder(f.Key()+".where", m, f.Arguments["where"])
	if err != nil {
		return err
	}
	ref, err := l.update(f.Key()+".data", &queryast.UpdateRecord{Target: m, Where: finder}, f.Arguments["data"])
	if err != nil {
		return err
	}
	return l.resultRead(m, f, ref)
}

// update parses the data of q, adds its node and its nested writes.
func (l *lowering) update(path string, q *queryast.UpdateRecord, v any) (NodeRef, error) {
	d, err := parseData(path, q.Target, v)
	if err != nil {
		return 0, err
	}
	q.Args, q.ListArgs = d.args, d.lists
	ref := l.node(Write(q))
	for _, n := range d.nested {
		if err := l.nested(path+"."+n.field.Name, ref, n, false); err != nil {
			return 0, err
		}
	}
	return ref, nil
}

func (l *lowering) updateMany(m *schema.Model, f Field) error {
	filter, err := parseFilter(f.Key()+".where", m, f.Arguments["where"])
	if err != nil {
		return err
	}
	d, err := parseData(f.Key()+".data", m, f.Arguments["data"])
	if err != nil {
		return err
	}
	if len(d.nested) > 0 {
		return inputErrorf(f.Key()+".data", "relation fields cannot be written by %s", f.Name)
	}
	l.result(l.node(Write(&queryast.UpdateManyRecords{Target: m, Filter: filter, Args: d.args, ListArgs: d.lists})))
	return nil
}

// deleteOne reads the record before deleting it. The read is the result of
// the operation.
func (l *lowering) deleteOne(m *schema.Model, f Field) error {
	p, err := projection(f.Key(), m, f)
	if err != nil {
		return err
	}
	finder, err := parseFinder(f.Key()+".where", m, f.Arguments["where"])
	if err != nil {
		return err
	}
	read := l.node(Read(&queryast.ReadOneRecord{Projection: p, Target: m, Finder: finder}))
	del := l.node(Write(&queryast.DeleteRecord{Target: m, Where: finder}))
	l.edge(read, del, ExecutionOrder())
	l.result(read)
	return nil
}

func (l *lowering) deleteMany(m *schema.Model, f Field) error {
	filter, err := parseFilter(f.Key()+".where", m, f.Arguments["where"])
	if err != nil {
		return err
	}
	l.result(l.node(Write(&queryast.DeleteManyRecords{Target: m, Filter: filter})))
	return nil
}

// upsert reads the record, then updates it if it exists or creates it
// otherwise. The result read receives the id from whichever branch ran.
func (l *lowering) upsert(m *schema.Model, f Field) error {
	finder, err := parseFinder(f.Key()+".where", m, f.Arguments["where"])
	if err != nil {
		return err
	}
	read := l.node(Read(&queryast.ReadOneRecord{Projection: idProjection(f.Name, m), Target: m, Finder: finder}))
	exists := l.node(If(IfExists))
	missing := l.node(If(IfNotExists))
	l.edge(read, exists, transform(Forward, Any))
	l.edge(read, missing, transform(Forward, Any))
	upd, err := l.update(f.Key()+".update", &queryast.UpdateRecord{Target: m, Where: finder}, f.Arguments["update"])
	if err != nil {
		return err
	}
	l.edge(exists, upd, transform(SetFinder, ExactlyOne))
	crt, err := l.create(f.Key()+".create", m, f.Arguments["create"], nil)
	if err != nil {
		return err
	}
	l.edge(missing, crt, ExecutionOrder())
	return l.resultRead(m, f, upd, crt)
}

// nested adds the nested writes of one relation field of the record
// written by parent. Inside a create only create and connect are allowed.
func (l *lowering) nested(path string, parent NodeRef, n nestedData, inCreate bool) error {
	rf := n.field
	for _, op := range []string{"create", "connect", "disconnect", "delete", "update", "updateMany", "deleteMany"} {
		v, ok := n.ops[op]
		if !ok {
			continue
		}
		p := path + "." + op
		if inCreate && op != "create" && op != "connect" {
			return inputErrorf(p, "not allowed in a create")
		}
		var err error
		switch op {
		case "create":
			err = l.nestedCreate(p, parent, rf, v)
		case "connect":
			err = l.nestedConnect(p, parent, rf, v)
		case "disconnect":
			err = l.nestedDisconnect(p, parent, rf, v)
		case "delete":
			err = l.nestedDelete(p, parent, rf, v)
		case "update":
			err = l.nestedUpdate(p, parent, rf, v)
		case "updateMany":
			err = l.nestedUpdateMany(p, parent, rf, v)
		case "deleteMany":
			err = l.nestedDeleteMany(p, parent, rf, v)
		}
		if err != nil {
			return err
		}
	}
	for op := range n.ops {
		switch op {
		case "create", "connect", "disconnect", "delete", "update", "updateMany", "deleteMany":
		default:
			return inputErrorf(path+"."+op, "unknown nested write")
		}
	}
	return nil
}

// items reads the input of a nested write: an object, or a list of objects
// on list relations.
func items(path string, rf *schema.RelationField, v any) ([]map[string]any, error) {
	if !rf.IsList {
		m, err := inputMap(path, v)
		if err != nil {
			return nil, err
		}
		return []map[string]any{m}, nil
	}
	return inputMaps(path, v)
}

// flag reads the boolean input of a to-one disconnect or delete.
func flag(path string, v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, inputErrorf(path, "expected a boolean, got %T", v)
	}
	return b, nil
}

func (l *lowering) connect(parent, child NodeRef, rf *schema.RelationField) {
	c := l.node(Write(&queryast.ConnectRecords{Field: rf}))
	l.edge(parent, c, transform(SetParent, ExactlyOne))
	l.edge(child, c, transform(SetChild, ExactlyOne))
}

// lookup adds a read of the record located by a where unique input. It
// runs after parent and fails if the record does not exist.
func (l *lowering) lookup(path string, parent NodeRef, rf *schema.RelationField, v any) (NodeRef, error) {
	m := rf.RelatedModel()
	finder, err := parseFinder(path, m, v)
	if err != nil {
		return 0, err
	}
	read := l.node(Read(&queryast.ReadOneRecord{Projection: idProjection(rf.Name, m), Target: m, Finder: finder, MustExist: true}))
	l.edge(parent, read, ExecutionOrder())
	return read, nil
}

func (l *lowering) nestedCreate(path string, parent NodeRef, rf *schema.RelationField, v any) error {
	ins, err := items(path, rf, v)
	if err != nil {
		return err
	}
	for i, in := range ins {
		child, err := l.create(itemPath(path, rf, i), rf.RelatedModel(), in, rf.RelatedField())
		if err != nil {
			return err
		}
		l.connect(parent, child, rf)
	}
	return nil
}

func (l *lowering) nestedConnect(path string, parent NodeRef, rf *schema.RelationField, v any) error {
	ins, err := items(path, rf, v)
	if err != nil {
		return err
	}
	for i, in := range ins {
		read, err := l.lookup(itemPath(path, rf, i), parent, rf, in)
		if err != nil {
			return err
		}
		l.connect(parent, read, rf)
	}
	return nil
}

func (l *lowering) nestedDisconnect(path string, parent NodeRef, rf *schema.RelationField, v any) error {
	if !rf.IsList {
		ok, err := flag(path, v)
		if err != nil || !ok {
			return err
		}
		read := l.node(Read(&queryast.ReadRelatedRecords{Projection: idProjection(rf.Name, rf.RelatedModel()), Field: rf, MustExist: true}))
		l.edge(parent, read, transform(SetNestedParent, ExactlyOne))
		d := l.node(Write(&queryast.DisconnectRecords{Field: rf}))
		l.edge(parent, d, transform(SetParent, ExactlyOne))
		l.edge(read, d, transform(SetChild, ExactlyOne))
		return nil
	}
	ins, err := inputMaps(path, v)
	if err != nil {
		return err
	}
	for i, in := range ins {
		read, err := l.lookup(fmt.Sprintf("%s[%d]", path, i), parent, rf, in)
		if err != nil {
			return err
		}
		d := l.node(Write(&queryast.DisconnectRecords{Field: rf}))
		l.edge(parent, d, transform(SetParent, ExactlyOne))
		l.edge(read, d, transform(SetChild, ExactlyOne))
	}
	return nil
}

func (l *lowering) nestedDelete(path string, parent NodeRef, rf *schema.RelationField, v any) error {
	m := rf.RelatedModel()
	if !rf.IsList {
		ok, err := flag(path, v)
		if err != nil || !ok {
			return err
		}
		del := l.node(Write(&queryast.DeleteRecord{Target: m, Scope: &queryast.NestedScope{Field: rf}}))
		l.edge(parent, del, transform(SetNestedParent, ExactlyOne))
		return nil
	}
	ins, err := inputMaps(path, v)
	if err != nil {
		return err
	}
	for i, in := range ins {
		finder, err := parseFinder(fmt.Sprintf("%s[%d]", path, i), m, in)
		if err != nil {
			return err
		}
		del := l.node(Write(&queryast.DeleteRecord{Target: m, Where: finder, Scope: &queryast.NestedScope{Field: rf}}))
		l.edge(parent, del, transform(SetNestedParent, ExactlyOne))
	}
	return nil
}

// nestedUpdate updates connected records. On list relations each item
// holds a where and a data input, on to-one relations the input is the
// data itself.
func (l *lowering) nestedUpdate(path string, parent NodeRef, rf *schema.RelationField, v any) error {
	m := rf.RelatedModel()
	if !rf.IsList {
		upd, err := l.update(path, &queryast.UpdateRecord{Target: m, Scope: &queryast.NestedScope{Field: rf}}, v)
		if err != nil {
			return err
		}
		l.edge(parent, upd, transform(SetNestedParent, ExactlyOne))
		return nil
	}
	ins, err := inputMaps(path, v)
	if err != nil {
		return err
	}
	for i, in := range ins {
		p := fmt.Sprintf("%s[%d]", path, i)
		finder, err := parseFinder(p+".where", m, in["where"])
		if err != nil {
			return err
		}
		upd, err := l.update(p+".data", &queryast.UpdateRecord{Target: m, Where: finder, Scope: &queryast.NestedScope{Field: rf}}, in["data"])
		if err != nil {
			return err
		}
		l.edge(parent, upd, transform(SetNestedParent, ExactlyOne))
	}
	return nil
}

func (l *lowering) nestedUpdateMany(path string, parent NodeRef, rf *schema.RelationField, v any) error {
	if !rf.IsList {
		return inputErrorf(path, "%s is not a list relation", rf.Name)
	}
	m := rf.RelatedModel()
	ins, err := inputMaps(path, v)
	if err != nil {
		return err
	}
	for i, in := range ins {
		p := fmt.Sprintf("%s[%d]", path, i)
		filter, err := parseFilter(p+".where", m, in["where"])
		if err != nil {
			return err
		}
		d, err := parseData(p+".data", m, in["data"])
		if err != nil {
			return err
		}
		if len(d.nested) > 0 {
			return inputErrorf(p+".data", "relation fields cannot be written by updateMany")
		}
		upd := l.node(Write(&queryast.UpdateManyRecords{Target: m, Filter: filter, Args: d.args, ListArgs: d.lists, Scope: &queryast.NestedScope{Field: rf}}))
		l.edge(parent, upd, transform(SetNestedParent, ExactlyOne))
	}
	return nil
}

func (l *lowering) nestedDeleteMany(path string, parent NodeRef, rf *schema.RelationField, v any) error {
	if !rf.IsList {
		return inputErrorf(path, "%s is not a list relation", rf.Name)
	}
	m := rf.RelatedModel()
	ins, err := inputMaps(path, v)
	if err != nil {
		return err
	}
	for i, in := range ins {
		filter, err := parseFilter(fmt.Sprintf("%s[%d]", path, i), m, in)
		if err != nil {
			return err
		}
		del := l.node(Write(&queryast.DeleteManyRecords{Target: m, Filter: filter, Scope: &queryast.NestedScope{Field: rf}}))
		l.edge(parent, del, transform(SetNestedParent, ExactlyOne))
	}
	return nil
}

func itemPath(path string, rf *schema.RelationField, i int) string {
	if !rf.IsList {
		return path
	}
	return fmt.Sprintf("%s[%d]", path, i)
}
