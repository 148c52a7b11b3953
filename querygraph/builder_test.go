package querygraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/veloxq"
	"github.com/syssam/veloxq/internal/schematest"
	"github.com/syssam/veloxq/queryast"
)

func TestBuildReads(t *testing.T) {
	reg := schematest.Blog(t)
	b := NewBuilder(reg)

	t.Run("FindOne", func(t *testing.T) {
		for _, name := range []string{"user", "findOneUser"} {
			g, err := b.Build(Field{
				Name:      name,
				Arguments: map[string]any{"where": map[string]any{"email": "a@b"}},
				Selection: []Field{{Name: "id"}, {Name: "name"}, {Name: "__typename"}, {Name: "name"}},
			})
			require.NoError(t, err)
			require.Equal(t, 1, g.Len())
			q := g.Node(0).(*ReadNode).Query.(*queryast.ReadOneRecord)
			assert.Equal(t, `email == "a@b"`, q.Finder.String())
			assert.Equal(t, []string{"id", "name"}, q.Selected.Names(q.Target))
			assert.Equal(t, []NodeRef{0}, g.Results())
		}
	})

	t.Run("FindMany", func(t *testing.T) {
		g, err := b.Build(Field{
			Name:      "users",
			Alias:     "all",
			Arguments: map[string]any{"where": map[string]any{"name_contains": "a"}, "first": int64(2)},
			Selection: []Field{
				{Name: "email"},
				{Name: "posts", Alias: "recent", Arguments: map[string]any{"orderBy": "id_DESC", "first": int64(1)}, Selection: []Field{{Name: "title"}}},
			},
		})
		require.NoError(t, err)
		q := g.Node(0).(*ReadNode).Query.(*queryast.ReadManyRecords)
		assert.Equal(t, "all", q.Key())
		assert.Equal(t, `contains(name, "a")`, q.Args.Filter.String())
		assert.Equal(t, 2, *q.Args.First)
		require.Len(t, q.Nested, 1)
		nested := q.Nested[0]
		assert.Equal(t, "recent", nested.Key())
		assert.Same(t, reg.Model("User").RelationField("posts"), nested.Field)
		assert.True(t, nested.Args.OrderBy.Descending)
		assert.Equal(t, []string{"id", "title"}, nested.Selected.Names(nested.Model()))
	})

	t.Run("Count", func(t *testing.T) {
		g, err := b.Build(Field{Name: "countPosts", Arguments: map[string]any{"where": map[string]any{"views_lt": int64(3)}}})
		require.NoError(t, err)
		q := g.Node(0).(*ReadNode).Query.(*queryast.CountRecords)
		assert.Equal(t, "countPosts", q.Key())
		assert.Equal(t, "views < 3", q.Args.Filter.String())
	})

	t.Run("SelectAll", func(t *testing.T) {
		g, err := b.Build(Field{Name: "findManyTag"})
		require.NoError(t, err)
		q := g.Node(0).(*ReadNode).Query.(*queryast.ReadManyRecords)
		assert.Equal(t, []string{"id", "label"}, q.Selected.Names(q.Target))
	})

	t.Run("Errors", func(t *testing.T) {
		_, err := b.Build(Field{Name: "findAllUsers"})
		assert.EqualError(t, err, `querygraph: unknown operation "findAllUsers"`)
		_, err = b.Build(Field{Name: "user", Arguments: map[string]any{"where": map[string]any{"id": int64(1)}}, Selection: []Field{{Name: "password"}}})
		assert.EqualError(t, err, "querygraph: user.password: unknown field of User")
		_, err = b.Build(Field{Name: "user"})
		assert.Error(t, err)
	})

	assert.False(t, b.IsMutation(Field{Name: "users"}))
	assert.True(t, b.IsMutation(Field{Name: "deleteManyUsers"}))
}

func TestBuildCreate(t *testing.T) {
	reg := schematest.Blog(t)
	b := NewBuilder(reg)
	g, err := b.Build(Field{
		Name: "createUser",
		Arguments: map[string]any{"data": map[string]any{
			"email":     "a@b",
			"name":      "A",
			"nicknames": map[string]any{"set": []any{"x", "y"}},
			"posts":     map[string]any{"create": []any{map[string]any{"title": "t1"}}},
			"profile":   map[string]any{"connect": map[string]any{"id": "6ba7b810-9dad-11d1-80b4-00c04fd430c8"}},
		}},
		Selection: []Field{{Name: "id"}, {Name: "email"}},
	})
	require.NoError(t, err)
	assert.Equal(t, `n0: CreateRecord(User, 3 args)
n1: CreateRecord(Post, 1 args)
n2: ConnectRecords(User.posts <nil> -> <nil>)
n3: ReadOneRecord(Profile where id == "6ba7b810-9dad-11d1-80b4-00c04fd430c8")
n4: ConnectRecords(User.profile <nil> -> <nil>)
n5: ReadOneRecord(User where <ids>) [result]
n0 -> n2 ParentIDs(SetParent/ExactlyOne)
n1 -> n2 ParentIDs(SetChild/ExactlyOne)
n0 -> n3 ExecutionOrder
n0 -> n4 ParentIDs(SetParent/ExactlyOne)
n3 -> n4 ParentIDs(SetChild/ExactlyOne)
n0 -> n5 ParentIDs(SetFinder/ExactlyOne)
n2 -> n5 ExecutionOrder
n4 -> n5 ExecutionOrder
`, g.String())
	lookup := g.Node(3).(*ReadNode).Query.(*queryast.ReadOneRecord)
	assert.True(t, lookup.MustExist)

	t.Run("RequiredRelation", func(t *testing.T) {
		_, err := b.Build(Field{Name: "createPost", Arguments: map[string]any{"data": map[string]any{"title": "t"}}})
		assert.True(t, veloxq.IsRelationViolation(err))

		_, err = b.Build(Field{Name: "createPost", Arguments: map[string]any{"data": map[string]any{
			"title":  "t",
			"author": map[string]any{"connect": map[string]any{"email": "a@b"}},
		}}})
		assert.NoError(t, err)
	})

	t.Run("NotAllowedInCreate", func(t *testing.T) {
		_, err := b.Build(Field{Name: "createUser", Arguments: map[string]any{"data": map[string]any{
			"email":   "a@b",
			"profile": map[string]any{"delete": true},
		}}})
		assert.EqualError(t, err, "querygraph: createUser.data.profile.delete: not allowed in a create")
	})
}

func TestBuildUpdate(t *testing.T) {
	reg := schematest.Blog(t)
	b := NewBuilder(reg)
	g, err := b.Build(Field{
		Name: "updateUser",
		Arguments: map[string]any{
			"where": map[string]any{"id": int64(1)},
			"data": map[string]any{
				"name": "B",
				"posts": map[string]any{
					"delete":     []any{map[string]any{"id": int64(3)}},
					"updateMany": []any{map[string]any{"where": map[string]any{"title_contains": "x"}, "data": map[string]any{"views": int64(1)}}},
				},
				"profile": map[string]any{"disconnect": true},
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, `n0: UpdateRecord(User where id == 1)
n1: DeleteRecord(Post where id == 3 under User.posts(<nil>))
n2: UpdateManyRecords(Post where contains(title, "x") under User.posts(<nil>))
n3: ReadRelatedRecords(User.profile, 0 parents)
n4: DisconnectRecords(User.profile <nil> -> <nil>)
n5: ReadOneRecord(User where <ids>) [result]
n0 -> n1 ParentIDs(SetNestedParent/ExactlyOne)
n0 -> n2 ParentIDs(SetNestedParent/ExactlyOne)
n0 -> n3 ParentIDs(SetNestedParent/ExactlyOne)
n0 -> n4 ParentIDs(SetParent/ExactlyOne)
n3 -> n4 ParentIDs(SetChild/ExactlyOne)
n0 -> n5 ParentIDs(SetFinder/ExactlyOne)
n1 -> n5 ExecutionOrder
n2 -> n5 ExecutionOrder
n4 -> n5 ExecutionOrder
`, g.String())
	connected := g.Node(3).(*ReadNode).Query.(*queryast.ReadRelatedRecords)
	assert.True(t, connected.MustExist)

	t.Run("NestedToOne", func(t *testing.T) {
		g, err := b.Build(Field{
			Name: "updatePost",
			Arguments: map[string]any{
				"where": map[string]any{"id": int64(2)},
				"data":  map[string]any{"author": map[string]any{"update": map[string]any{"name": "C"}}},
			},
		})
		require.NoError(t, err)
		q := g.Node(1).(*WriteNode).Query.(*queryast.UpdateRecord)
		assert.Nil(t, q.Where)
		assert.Equal(t, queryast.Args{"name": "C"}, q.Args)
		require.NotNil(t, q.Scope)
		assert.Same(t, reg.Model("Post").RelationField("author"), q.Scope.Field)
	})

	t.Run("UpdateMany", func(t *testing.T) {
		g, err := b.Build(Field{
			Name: "updateManyPosts",
			Arguments: map[string]any{
				"where": map[string]any{"views": nil},
				"data":  map[string]any{"views": int64(0), "scores": []any{int64(1)}},
			},
		})
		require.NoError(t, err)
		q := g.Node(0).(*WriteNode).Query.(*queryast.UpdateManyRecords)
		assert.Equal(t, "views == nil", q.Filter.String())
		assert.Len(t, q.ListArgs, 1)
		assert.Equal(t, []NodeRef{0}, g.Results())

		_, err = b.Build(Field{Name: "updateManyPosts", Arguments: map[string]any{
			"data": map[string]any{"tags": map[string]any{"connect": map[string]any{"id": "t"}}},
		}})
		assert.Error(t, err)
	})

	t.Run("UnknownNestedWrite", func(t *testing.T) {
		_, err := b.Build(Field{Name: "updateUser", Arguments: map[string]any{
			"where": map[string]any{"id": int64(1)},
			"data":  map[string]any{"posts": map[string]any{"set": []any{}}},
		}})
		assert.EqualError(t, err, "querygraph: updateUser.data.posts.set: unknown nested write")
	})
}

func TestBuildDelete(t *testing.T) {
	reg := schematest.Blog(t)
	b := NewBuilder(reg)
	g, err := b.Build(Field{Name: "deleteUser", Arguments: map[string]any{"where": map[string]any{"id": int64(1)}}})
	require.NoError(t, err)
	assert.Equal(t, `n0: ReadOneRecord(User where id == 1) [result]
n1: DeleteRecord(User where id == 1)
n0 -> n1 ExecutionOrder
`, g.String())

	g, err = b.Build(Field{Name: "deleteManyTags", Arguments: map[string]any{"where": map[string]any{"label_starts_with": "go"}}})
	require.NoError(t, err)
	q := g.Node(0).(*WriteNode).Query.(*queryast.DeleteManyRecords)
	assert.Equal(t, `has_prefix(label, "go")`, q.Filter.String())
}

func TestBuildUpsert(t *testing.T) {
	reg := schematest.Blog(t)
	b := NewBuilder(reg)
	g, err := b.Build(Field{
		Name: "upsertTag",
		Arguments: map[string]any{
			"where":  map[string]any{"label": "go"},
			"create": map[string]any{"label": "go"},
			"update": map[string]any{"label": "golang"},
		},
		Selection: []Field{{Name: "label"}},
	})
	require.NoError(t, err)
	assert.Equal(t, `n0: ReadOneRecord(Tag where label == "go")
n1: If(IfExists)
n2: If(IfNotExists)
n3: UpdateRecord(Tag where label == "go")
n4: CreateRecord(Tag, 1 args)
n5: ReadOneRecord(Tag where <ids>) [result]
n0 -> n1 ParentIDs(Forward/Any)
n0 -> n2 ParentIDs(Forward/Any)
n1 -> n3 ParentIDs(SetFinder/ExactlyOne)
n2 -> n4 ExecutionOrder
n3 -> n5 ParentIDs(SetFinder/ExactlyOne)
n4 -> n5 ParentIDs(SetFinder/ExactlyOne)
`, g.String())
}
