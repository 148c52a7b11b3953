package querygraph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/veloxq"
	"github.com/syssam/veloxq/internal/schematest"
	"github.com/syssam/veloxq/queryast"
	ql "github.com/syssam/veloxq/querylanguage"
	"github.com/syssam/veloxq/schema"
)

// fakeInterpreter records the queries it runs. Reads return the records
// registered for their key, writes the id registered for their string form.
type fakeInterpreter struct {
	ran    []string
	rows   map[string][]int64
	ids    map[string]int64
	failOn string
}

func (f *fakeInterpreter) Read(_ context.Context, q queryast.ReadQuery) (*queryast.ReadResult, error) {
	f.ran = append(f.ran, q.String())
	if q.String() == f.failOn {
		return nil, errors.New("boom")
	}
	res := &queryast.ReadResult{Key: q.Key(), Model: q.Model(), Records: queryast.ManyRecords{FieldNames: []string{"id"}}}
	for _, id := range f.rows[q.Key()] {
		res.Records.Records = append(res.Records.Records, queryast.Record{Values: []any{id}})
	}
	return res, nil
}

func (f *fakeInterpreter) Write(_ context.Context, q queryast.WriteQuery) (*queryast.WriteResult, error) {
	f.ran = append(f.ran, q.String())
	if q.String() == f.failOn {
		return nil, errors.New("boom")
	}
	if id, ok := f.ids[q.Model().Name]; ok && q.Op().Is(queryast.OpCreate|queryast.OpUpdate) {
		return &queryast.WriteResult{Kind: queryast.ResultID, ID: ql.IntID(id)}, nil
	}
	return &queryast.WriteResult{Kind: queryast.ResultUnit}, nil
}

func readOne(m *schema.Model, key string) *queryast.ReadOneRecord {
	return &queryast.ReadOneRecord{Projection: queryast.Projection{Name: key}, Target: m}
}

func TestOrder(t *testing.T) {
	user := schematest.Blog(t).Model("User")
	g := New()
	a := g.CreateNode(Read(readOne(user, "a")))
	b := g.CreateNode(Read(readOne(user, "b")))
	c := g.CreateNode(Read(readOne(user, "c")))
	d := g.CreateNode(Read(readOne(user, "d")))
	require.NoError(t, g.CreateEdge(c, b, ExecutionOrder()))
	require.NoError(t, g.CreateEdge(d, a, ExecutionOrder()))
	assert.Equal(t, []NodeRef{c, b, d, a}, g.Order())
}

func TestExecuteConnect(t *testing.T) {
	reg := schematest.Blog(t)
	user, post := reg.Model("User"), reg.Model("Post")
	g := New()
	create := g.CreateNode(Write(&queryast.CreateRecord{Target: user}))
	lookup := g.CreateNode(Read(readOne(post, "posts")))
	connect := &queryast.ConnectRecords{Field: user.RelationField("posts")}
	c := g.CreateNode(Write(connect))
	require.NoError(t, g.CreateEdge(create, lookup, ExecutionOrder()))
	require.NoError(t, g.CreateEdge(create, c, ParentIDs(Transform{Kind: SetParent, Arity: ExactlyOne})))
	require.NoError(t, g.CreateEdge(lookup, c, ParentIDs(Transform{Kind: SetChild, Arity: ExactlyOne})))
	require.NoError(t, g.AddResultNode(create))

	in := &fakeInterpreter{rows: map[string][]int64{"posts": {3}}, ids: map[string]int64{"User": 7}}
	outcomes, err := Execute(context.Background(), g, in)
	require.NoError(t, err)
	assert.Equal(t, ql.IntID(7), connect.Parent)
	assert.Equal(t, ql.IntID(3), connect.Child)
	require.Len(t, outcomes, 1)
	assert.Equal(t, create, outcomes[0].Node)
	assert.Equal(t, ql.IntID(7), outcomes[0].Write.ID)
	assert.Nil(t, outcomes[0].Read)
	assert.Equal(t, []string{"CreateRecord(User, 0 args)", "ReadOneRecord(Post where <ids>)", "ConnectRecords(User.posts 7 -> 3)"}, in.ran)
}

func TestExecuteArity(t *testing.T) {
	reg := schematest.Blog(t)
	user, post := reg.Model("User"), reg.Model("Post")
	g := New()
	create := g.CreateNode(Write(&queryast.CreateRecord{Target: user}))
	lookup := g.CreateNode(Read(readOne(post, "posts")))
	c := g.CreateNode(Write(&queryast.ConnectRecords{Field: user.RelationField("posts")}))
	require.NoError(t, g.CreateEdge(create, c, ParentIDs(Transform{Kind: SetParent, Arity: ExactlyOne})))
	require.NoError(t, g.CreateEdge(lookup, c, ParentIDs(Transform{Kind: SetChild, Arity: ExactlyOne})))

	in := &fakeInterpreter{ids: map[string]int64{"User": 7}}
	_, err := Execute(context.Background(), g, in)
	require.True(t, veloxq.IsAssertion(err))
	assert.EqualError(t, err, "veloxq: assertion failed: Required exactly one child ID to be present for connect query, found none.")
	assert.Len(t, in.ran, 2, "the connect does not run")

	g = New()
	many := g.CreateNode(Read(&queryast.ReadManyRecords{Projection: queryast.Projection{Name: "posts"}, Target: post}))
	del := g.CreateNode(Write(&queryast.DeleteManyRecords{Target: post}))
	require.NoError(t, g.CreateEdge(many, del, ParentIDs(Transform{Kind: SetFilterIDs, Arity: AtLeastOne})))
	_, err = Execute(context.Background(), g, &fakeInterpreter{})
	assert.EqualError(t, err, "veloxq: assertion failed: Required at least one record ID to be present for deleteMany query, found none.")
}

func TestExecuteTransforms(t *testing.T) {
	reg := schematest.Blog(t)
	user, post := reg.Model("User"), reg.Model("Post")
	posts := user.RelationField("posts")

	g := New()
	src := g.CreateNode(Read(&queryast.ReadManyRecords{Projection: queryast.Projection{Name: "users"}, Target: user}))
	many := &queryast.UpdateManyRecords{Target: user}
	related := &queryast.ReadRelatedRecords{Projection: queryast.Projection{Name: "posts"}, Field: posts}
	one := readOne(user, "user")
	nested := &queryast.DeleteManyRecords{Target: post, Scope: &queryast.NestedScope{Field: posts}}
	for _, tt := range []struct {
		n Node
		k TransformKind
		a Arity
	}{
		{Write(many), SetFilterIDs, AtLeastOne},
		{Read(related), SetNestedParent, Any},
		{Read(one), SetFinder, Any},
	} {
		ref := g.CreateNode(tt.n)
		require.NoError(t, g.CreateEdge(src, ref, ParentIDs(Transform{Kind: tt.k, Arity: tt.a})))
	}
	first := g.CreateNode(Read(readOne(user, "first")))
	ref := g.CreateNode(Write(nested))
	require.NoError(t, g.CreateEdge(first, ref, ParentIDs(Transform{Kind: SetNestedParent, Arity: ExactlyOne})))

	in := &fakeInterpreter{rows: map[string][]int64{"users": {1, 2}, "first": {1}}}
	_, err := Execute(context.Background(), g, in)
	require.NoError(t, err)
	assert.Equal(t, "id in [1,2]", many.Filter.String())
	assert.Equal(t, []ql.RecordID{ql.IntID(1), ql.IntID(2)}, related.ParentIDs)
	assert.Equal(t, "id == 1", one.Finder.String())
	assert.Equal(t, ql.IntID(1), nested.Scope.ParentID)
}

func TestExecuteTransformMismatch(t *testing.T) {
	user := schematest.Blog(t).Model("User")
	g := New()
	src := g.CreateNode(Read(readOne(user, "user")))
	dst := g.CreateNode(Read(&queryast.CountRecords{Target: user}))
	require.NoError(t, g.CreateEdge(src, dst, ParentIDs(Transform{Kind: SetChild, Arity: Any})))
	_, err := Execute(context.Background(), g, &fakeInterpreter{})
	require.True(t, veloxq.IsAssertion(err))
	assert.Contains(t, err.Error(), "transform SetChild/Any does not apply to CountRecords(User where true)")
}

// upsertGraph builds the graph of an upsert on users: a lookup, an update
// when it finds the record and a create otherwise, then the result read.
func upsertGraph(t *testing.T, user *schema.Model) (*QueryGraph, *queryast.ReadOneRecord) {
	g := New()
	lookup := g.CreateNode(Read(readOne(user, "lookup")))
	exists := g.CreateNode(If(IfExists))
	missing := g.CreateNode(If(IfNotExists))
	upd := g.CreateNode(Write(&queryast.UpdateRecord{Target: user, Args: queryast.Args{"name": "x"}}))
	crt := g.CreateNode(Write(&queryast.CreateRecord{Target: user}))
	result := readOne(user, "result")
	res := g.CreateNode(Read(result))
	forward := ParentIDs(Transform{Kind: Forward, Arity: Any})
	finder := ParentIDs(Transform{Kind: SetFinder, Arity: ExactlyOne})
	require.NoError(t, g.CreateEdge(lookup, exists, forward))
	require.NoError(t, g.CreateEdge(lookup, missing, forward))
	require.NoError(t, g.CreateEdge(exists, upd, finder))
	require.NoError(t, g.CreateEdge(missing, crt, ExecutionOrder()))
	require.NoError(t, g.CreateEdge(upd, res, finder))
	require.NoError(t, g.CreateEdge(crt, res, finder))
	require.NoError(t, g.AddResultNode(upd))
	require.NoError(t, g.AddResultNode(res))
	return g, result
}

func TestExecuteIf(t *testing.T) {
	user := schematest.Blog(t).Model("User")

	t.Run("Missing", func(t *testing.T) {
		g, result := upsertGraph(t, user)
		in := &fakeInterpreter{ids: map[string]int64{"User": 9}}
		outcomes, err := Execute(context.Background(), g, in)
		require.NoError(t, err)
		assert.Equal(t, []string{"ReadOneRecord(User where <ids>)", "CreateRecord(User, 0 args)", "ReadOneRecord(User where id == 9)"}, in.ran)
		assert.Equal(t, "id == 9", result.Finder.String())
		require.Len(t, outcomes, 2)
		assert.True(t, outcomes[0].Skipped)
		assert.Nil(t, outcomes[0].Write)
		assert.False(t, outcomes[1].Skipped)
		assert.NotNil(t, outcomes[1].Read)
	})

	t.Run("Exists", func(t *testing.T) {
		g, result := upsertGraph(t, user)
		in := &fakeInterpreter{rows: map[string][]int64{"lookup": {4}}, ids: map[string]int64{"User": 4}}
		outcomes, err := Execute(context.Background(), g, in)
		require.NoError(t, err)
		assert.Equal(t, []string{"ReadOneRecord(User where <ids>)", "UpdateRecord(User where id == 4)", "ReadOneRecord(User where id == 4)"}, in.ran)
		assert.Equal(t, "id == 4", result.Finder.String())
		require.Len(t, outcomes, 2)
		assert.False(t, outcomes[0].Skipped)
		assert.Equal(t, ql.IntID(4), outcomes[0].Write.ID)
	})
}

func TestExecuteFailure(t *testing.T) {
	user := schematest.Blog(t).Model("User")
	g := New()
	a := g.CreateNode(Write(&queryast.CreateRecord{Target: user}))
	b := g.CreateNode(Write(&queryast.DeleteManyRecords{Target: user}))
	require.NoError(t, g.CreateEdge(a, b, ExecutionOrder()))

	in := &fakeInterpreter{failOn: "CreateRecord(User, 0 args)"}
	_, err := Execute(context.Background(), g, in)
	assert.EqualError(t, err, "boom")
	assert.Len(t, in.ran, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	in = &fakeInterpreter{}
	_, err = Execute(ctx, g, in)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, in.ran)
}
