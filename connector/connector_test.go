package connector

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/veloxq"
	"github.com/syssam/veloxq/dialect"
	"github.com/syssam/veloxq/internal/schematest"
	"github.com/syssam/veloxq/privacy"
	"github.com/syssam/veloxq/queryast"
	ql "github.com/syssam/veloxq/querylanguage"
)

// openBlog returns a connector over a provisioned sqlite database named
// "blog".
func openBlog(t *testing.T, opts ...Option) *Connector {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "blog.db") + "?_time_format=sqlite"
	cfg := &Config{
		Databases: []DatabaseConfig{{Name: "blog", Dialect: dialect.SQLite, DSN: dsn, MaxOpenConns: 1}},
		Reader:    ReaderConfig{Concurrency: 4},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := Open(schematest.Blog(t), cfg, append([]Option{WithLogger(logger)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	require.NoError(t, c.Provision(context.Background(), "blog"))
	return c
}

const createUser = `
mutation {
  createUser(data: {
    email: "a@b"
    name: "A"
    nicknames: {set: ["x", "y"]}
    posts: {create: [{title: "t1", views: 3}, {title: "t2"}]}
  }) {
    id
    email
    nicknames
    posts(orderBy: title_DESC) { title }
  }
}`

func TestRequestCreateAndRead(t *testing.T) {
	ctx := context.Background()
	c := openBlog(t)

	data, err := c.Request(ctx, "blog", createUser, "", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"createUser": map[string]any{
			"id":        int64(1),
			"email":     "a@b",
			"nicknames": []any{"x", "y"},
			"posts": []map[string]any{
				{"id": int64(2), "title": "t2"},
				{"id": int64(1), "title": "t1"},
			},
		},
	}, data)

	data, err = c.Request(ctx, "blog", `
query Posts($min: Int) {
  posts(where: {views_gte: $min}) { title author { email } }
  total: countPosts
}`, "", map[string]any{"min": int64(1)})
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{
		"id":     int64(1),
		"title":  "t1",
		"author": map[string]any{"id": int64(1), "email": "a@b"},
	}}, data["posts"])
	assert.Equal(t, 2, data["total"])

	data, err = c.Request(ctx, "blog", `{ user(where: {email: "nobody"}) { id } }`, "", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"user": nil}, data)

	_, err = c.Request(ctx, "blog", `{ deleteManyPosts { count } }`, "", nil)
	assert.EqualError(t, err, "connector: deleteManyPosts: mutation in a query")
}

func TestRequestUpdateAndUpsert(t *testing.T) {
	ctx := context.Background()
	c := openBlog(t)
	_, err := c.Request(ctx, "blog", createUser, "", nil)
	require.NoError(t, err)

	data, err := c.Request(ctx, "blog", `
mutation {
  updateUser(where: {email: "a@b"}, data: {name: "B", nicknames: {set: ["z"]}, posts: {updateMany: [{where: {title: "t2"}, data: {views: 7}}]}}) {
    name
    nicknames
    posts(where: {views: 7}) { title }
  }
}`, "", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"id":        int64(1),
		"name":      "B",
		"nicknames": []any{"z"},
		"posts":     []map[string]any{{"id": int64(2), "title": "t2"}},
	}, data["updateUser"])

	const upsert = `
mutation Upsert($label: String!) {
  upsertTag(where: {label: "go"}, create: {label: "go"}, update: {label: $label}) { label }
}`
	data, err = c.Request(ctx, "blog", upsert, "", map[string]any{"label": "golang"})
	require.NoError(t, err)
	created := data["upsertTag"].(map[string]any)
	assert.Equal(t, "go", created["label"])
	assert.NotEmpty(t, created["id"])

	data, err = c.Request(ctx, "blog", upsert, "", map[string]any{"label": "golang"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": created["id"], "label": "golang"}, data["upsertTag"])

	r, err := c.Reader()
	require.NoError(t, err)
	n, err := r.CountByTable(ctx, "tags")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRequestDelete(t *testing.T) {
	ctx := context.Background()
	c := openBlog(t)
	_, err := c.Request(ctx, "blog", createUser, "", nil)
	require.NoError(t, err)

	// Posts require their author.
	_, err = c.Request(ctx, "blog", `mutation { deleteUser(where: {id: 1}) { email } }`, "", nil)
	require.Error(t, err)
	assert.True(t, veloxq.IsRelationViolation(err))

	data, err := c.Request(ctx, "blog", `mutation { deleteManyPosts(where: {author: {email: "a@b"}}) { count } }`, "", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"count": 2}, data["deleteManyPosts"])

	data, err = c.Request(ctx, "blog", `mutation { deleteUser(where: {id: 1}) { email } }`, "", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": int64(1), "email": "a@b"}, data["deleteUser"])

	r, err := c.Reader()
	require.NoError(t, err)
	user := schematest.Blog(t).Model("User")
	n, err := r.CountByModel(ctx, user, queryast.QueryArguments{})
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = r.CountByTable(ctx, user.Field("nicknames").ScalarListTable())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRequestToOneNotConnected(t *testing.T) {
	ctx := context.Background()
	c := openBlog(t)
	_, err := c.Request(ctx, "blog", `mutation { createUser(data: {email: "a@b"}) { id } }`, "", nil)
	require.NoError(t, err)

	for _, op := range []string{"disconnect", "delete"} {
		t.Run(op, func(t *testing.T) {
			_, err := c.Request(ctx, "blog", `mutation { updateUser(where: {id: 1}, data: {profile: {`+op+`: true}}) { id } }`, "", nil)
			require.Error(t, err)
			assert.True(t, veloxq.IsRecordsNotConnected(err))
			assert.False(t, veloxq.IsAssertion(err))
			assert.Contains(t, err.Error(), `no Profile is connected to User (where User.id = 1)`)
		})
	}

	_, err = c.Request(ctx, "blog", `
mutation {
  updateUser(where: {id: 1}, data: {profile: {create: {bio: "hi"}}}) { id }
}`, "", nil)
	require.NoError(t, err)
	_, err = c.Request(ctx, "blog", `mutation { updateUser(where: {id: 1}, data: {profile: {delete: true}}) { id } }`, "", nil)
	require.NoError(t, err)
	out, err := c.ExecuteRaw(ctx, "blog", "SELECT COUNT(*) AS n FROM profiles")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"n": 0}]`, string(out))
}

func TestExecuteGraphRollback(t *testing.T) {
	ctx := context.Background()
	c := openBlog(t)
	_, err := c.Request(ctx, "blog", `
mutation {
  createUser(data: {email: "a@b", profile: {connect: {id: "6ba7b810-9dad-11d1-80b4-00c04fd430c8"}}}) { id }
}`, "", nil)
	require.Error(t, err)
	assert.True(t, veloxq.IsNotFound(err))

	out, err := c.ExecuteRaw(ctx, "blog", "SELECT COUNT(*) AS n FROM users")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"n": 0}]`, string(out))
}

func TestExecute(t *testing.T) {
	ctx := context.Background()
	c := openBlog(t)
	tag := c.registry.Model("Tag")
	res, err := c.Execute(ctx, "blog", &queryast.CreateRecord{Target: tag, Args: queryast.Args{"id": "t1", "label": "go"}})
	require.NoError(t, err)
	assert.Equal(t, ql.StringID("t1"), res.ID)

	_, err = c.Execute(ctx, "blog", &queryast.CreateRecord{Target: tag, Args: queryast.Args{"id": "t2", "label": "go"}})
	assert.True(t, veloxq.IsConstraintError(err))

	_, err = c.Execute(ctx, "other", &queryast.CreateRecord{Target: tag})
	assert.EqualError(t, err, `connector: unknown database "other"`)
}

func TestPolicy(t *testing.T) {
	ctx := context.Background()
	c := openBlog(t, WithPolicy(privacy.ModelPolicies{
		"Post": privacy.Policy{
			Query:    privacy.QueryPolicy{privacy.AlwaysDenyRule()},
			Mutation: privacy.MutationPolicy{privacy.DenyMutationOperationRule(queryast.OpDelete | queryast.OpDeleteMany)},
		},
	}))
	_, err := c.Request(ctx, "blog", `mutation { createUser(data: {email: "a@b"}) { email } }`, "", nil)
	require.NoError(t, err)

	_, err = c.Request(ctx, "blog", `{ users { posts { title } } }`, "", nil)
	require.True(t, veloxq.IsPrivacyError(err))
	assert.True(t, errors.Is(err, privacy.Deny))

	_, err = c.Request(ctx, "blog", `mutation { deleteManyPosts { count } }`, "", nil)
	require.True(t, veloxq.IsPrivacyError(err))

	data, err := c.Request(ctx, "blog", `{ users { email } }`, "", nil)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"id": int64(1), "email": "a@b"}}, data["users"])
}

func TestReadCache(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()
	c := openBlog(t, WithCache(cache, time.Minute))
	_, err := c.Request(ctx, "blog", `mutation { createUser(data: {email: "a@b"}) { id } }`, "", nil)
	require.NoError(t, err)

	const users = `{ users { email } }`
	data, err := c.Request(ctx, "blog", users, "", nil)
	require.NoError(t, err)
	require.Len(t, data["users"], 1)
	assert.Equal(t, 1, cache.Len())

	// Rows inserted behind the connector are not seen until the next write.
	db, err := c.Database("blog")
	require.NoError(t, err)
	require.NoError(t, db.Driver().Exec(ctx, "INSERT INTO `users` (`email`) VALUES ('c@d')", []any{}, nil))
	data, err = c.Request(ctx, "blog", users, "", nil)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"id": int64(1), "email": "a@b"}}, data["users"])

	_, err = c.ExecuteRaw(ctx, "blog", "SELECT 1")
	require.NoError(t, err)
	assert.Zero(t, cache.Len())
	data, err = c.Request(ctx, "blog", users, "", nil)
	require.NoError(t, err)
	assert.Len(t, data["users"], 2)
}

func TestDatabases(t *testing.T) {
	c := openBlog(t)
	assert.Equal(t, []string{"blog"}, c.Databases())
	db, err := c.Database("blog")
	require.NoError(t, err)
	assert.Equal(t, dialect.SQLite, db.Dialect())
	require.NotNil(t, db.Stats())
	db.SetSlowThreshold(time.Second)
	assert.Equal(t, time.Second, db.stats.SlowThreshold())
}

func TestProvision(t *testing.T) {
	ctx := context.Background()
	c := openBlog(t)
	require.NoError(t, c.Provision(ctx, "blog"))

	dsn := "file:" + filepath.Join(t.TempDir(), "drift.db") + "?_time_format=sqlite"
	drift, err := Open(schematest.Blog(t), &Config{
		Databases: []DatabaseConfig{{Name: "drift", Dialect: dialect.SQLite, DSN: dsn, MaxOpenConns: 1}},
	}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	t.Cleanup(func() { drift.Close() })
	_, err = drift.ExecuteRaw(ctx, "drift", "CREATE TABLE `users` (`id` integer PRIMARY KEY, `legacy` text NOT NULL)")
	require.NoError(t, err)
	err = drift.Provision(ctx, "drift")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "users.email: column is missing")
	assert.Contains(t, err.Error(), "users.legacy: unknown NOT NULL column without default")

	assert.EqualError(t, c.Provision(ctx, "other"), `connector: unknown database "other"`)
}

func TestProvisionExistingTables(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "partial.db") + "?_time_format=sqlite"
	c, err := Open(schematest.Blog(t), &Config{
		Databases: []DatabaseConfig{{Name: "partial", Dialect: dialect.SQLite, DSN: dsn, MaxOpenConns: 1}},
	}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	_, err = c.ExecuteRaw(ctx, "partial", "CREATE TABLE `tags` (`id` text PRIMARY KEY, `label` text NOT NULL)")
	require.NoError(t, err)

	for range 2 {
		require.NoError(t, c.Provision(ctx, "partial"))
	}
	out, err := c.ExecuteRaw(ctx, "partial", "SELECT COUNT(*) AS n FROM sqlite_master WHERE type = 'table' AND name IN ('users', 'posts', 'profiles', 'tags', 'users_nicknames', 'posts_scores', '_PostTags')")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"n": 7}]`, string(out))

	_, err = c.Execute(ctx, "partial", &queryast.CreateRecord{Target: c.registry.Model("Tag"), Args: queryast.Args{"id": "t1", "label": "go"}})
	require.NoError(t, err)
}
