package querygraph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/veloxq/internal/schematest"
	"github.com/syssam/veloxq/queryast"
)

func TestParseFilter(t *testing.T) {
	reg := schematest.Blog(t)
	user, post := reg.Model("User"), reg.Model("Post")
	tests := []struct {
		name  string
		model string
		in    map[string]any
		want  string
	}{
		{"Equals", "User", map[string]any{"name": "a"}, `name == "a"`},
		{"Null", "User", map[string]any{"name_not": nil}, `name != nil`},
		{"Suffixes", "Post", map[string]any{"views_gte": int64(3), "title_starts_with": "x"}, `has_prefix(title, "x") && views >= 3`},
		{"NotIn", "Post", map[string]any{"views_not_in": []any{int64(1), float64(2)}}, `views not in [1,2]`},
		{"In", "User", map[string]any{"id_in": []any{int64(1)}}, `id in [1]`},
		{"NegatedCall", "User", map[string]any{"email_not_ends_with": ".io"}, `!(has_suffix(email, ".io"))`},
		{"Or", "User", map[string]any{"OR": []any{map[string]any{"name": "a"}, map[string]any{"name": "b"}}}, `name == "a" || name == "b"`},
		{"Not", "User", map[string]any{"NOT": map[string]any{"name": "a"}}, `!(name == "a")`},
		{"Some", "User", map[string]any{"posts_some": map[string]any{"title": "t"}}, `some(posts, title == "t")`},
		{"None", "User", map[string]any{"posts_none": map[string]any{}}, `none(posts)`},
		{"ToOne", "Post", map[string]any{"author": map[string]any{"name": "a"}}, `has_edge(author, name == "a")`},
		{"NoEdge", "User", map[string]any{"profile": nil}, `!(has_edge(profile))`},
		{"ListContains", "User", map[string]any{"nicknames_contains": "x"}, `contains_element(nicknames, "x")`},
		{"ListSome", "Post", map[string]any{"scores_contains_some": []any{int64(1), int64(2)}}, `contains_some(scores, [1,2])`},
		{"Empty", "User", map[string]any{}, `true`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := parseFilter("where", reg.Model(tt.model), tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.String())
		})
	}

	for name, in := range map[string]map[string]any{
		"Unknown":       {"unknown": 1},
		"BadValue":      {"name": int64(1)},
		"ListRelation":  {"posts": map[string]any{}},
		"NotAnObject":   {"AND": "x"},
		"FractionalInt": {"id": 1.5},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := parseFilter("where", user, in)
			var ie *InputError
			require.ErrorAs(t, err, &ie)
			assert.Contains(t, ie.Path, "where.")
		})
	}

	f, err := parseFilter("where", post, nil)
	require.NoError(t, err)
	assert.Equal(t, "true", f.String())
}

func TestParseFinder(t *testing.T) {
	reg := schematest.Blog(t)
	user, profile := reg.Model("User"), reg.Model("Profile")

	f, err := parseFinder("where", user, map[string]any{"email": "a@b"})
	require.NoError(t, err)
	assert.Same(t, user.Field("email"), f.Field)
	assert.Equal(t, "a@b", f.Value)

	f, err = parseFinder("where", user, map[string]any{"id": float64(4), "email": nil})
	require.NoError(t, err)
	assert.Equal(t, int64(4), f.Value)

	f, err = parseFinder("where", profile, map[string]any{"id": "6ba7b810-9dad-11d1-80b4-00c04fd430c8"})
	require.NoError(t, err)
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", f.Value)

	_, err = parseFinder("where", user, map[string]any{"id": int64(1), "email": "a@b"})
	assert.EqualError(t, err, `querygraph: where: expected exactly one unique field, got "email" and "id"`)
	_, err = parseFinder("where", user, map[string]any{"name": "a"})
	assert.EqualError(t, err, `querygraph: where: "name" is not a unique field of User`)
	_, err = parseFinder("where", user, map[string]any{})
	assert.EqualError(t, err, "querygraph: where: expected exactly one unique field of User")
	_, err = parseFinder("where", profile, map[string]any{"id": "nope"})
	assert.Error(t, err)
}

func TestParseQueryArguments(t *testing.T) {
	post := schematest.Blog(t).Model("Post")
	qa, err := parseQueryArguments("posts", post, map[string]any{
		"where":   map[string]any{"views_gt": int64(10)},
		"orderBy": "title_DESC",
		"skip":    int64(2),
		"first":   float64(5),
		"after":   int64(8),
		"last":    nil,
	})
	require.NoError(t, err)
	assert.Equal(t, "views > 10", qa.Filter.String())
	require.NotNil(t, qa.OrderBy)
	assert.Same(t, post.Field("title"), qa.OrderBy.Field)
	assert.True(t, qa.OrderBy.Descending)
	assert.Equal(t, 2, *qa.Skip)
	assert.Equal(t, 5, *qa.First)
	assert.Nil(t, qa.Last)
	assert.Equal(t, int64(8), qa.After.Int)
	assert.True(t, qa.IsWithPagination())

	for name, args := range map[string]map[string]any{
		"Negative":   {"first": int64(-1)},
		"BadOrder":   {"orderBy": "title"},
		"OrderList":  {"orderBy": "scores_ASC"},
		"UnknownArg": {"take": int64(1)},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := parseQueryArguments("posts", post, args)
			assert.Error(t, err)
		})
	}
}

func TestParseData(t *testing.T) {
	reg := schematest.Blog(t)
	user := reg.Model("User")
	at := "2024-05-01T10:00:00Z"
	d, err := parseData("data", user, map[string]any{
		"name":      "a",
		"createdAt": at,
		"nicknames": map[string]any{"set": []any{"x", "y"}},
		"posts":     map[string]any{"create": map[string]any{"title": "t"}},
	})
	require.NoError(t, err)
	want, _ := time.Parse(time.RFC3339, at)
	assert.Equal(t, queryast.Args{"name": "a", "createdAt": want}, d.args)
	require.Len(t, d.lists, 1)
	assert.Equal(t, []any{"x", "y"}, d.lists[0].Values)
	require.Len(t, d.nested, 1)
	assert.Same(t, user.RelationField("posts"), d.nested[0].field)

	d, err = parseData("data", user, map[string]any{"nicknames": nil})
	require.NoError(t, err)
	require.Len(t, d.lists, 1)
	assert.Empty(t, d.lists[0].Values)

	_, err = parseData("data", user, map[string]any{"nickname": "x"})
	assert.EqualError(t, err, "querygraph: data.nickname: unknown field of User")
	_, err = parseData("data", user, map[string]any{"nicknames": map[string]any{"push": "x"}})
	assert.Error(t, err)
	_, err = parseData("data", user, map[string]any{"createdAt": "yesterday"})
	assert.EqualError(t, err, "querygraph: data.createdAt: invalid DateTime value yesterday")
}
