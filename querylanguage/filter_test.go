package querylanguage_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/syssam/veloxq/internal/schematest"
	ql "github.com/syssam/veloxq/querylanguage"
	"github.com/syssam/veloxq/schema"
)

func TestFilterString(t *testing.T) {
	r := schematest.Blog(t)
	user, post := r.Model("User"), r.Model("Post")
	tests := []struct {
		F ql.Filter
		S string
	}{
		{
			F: ql.And(
				ql.Equals(user.Field("name"), "a8m"),
				ql.In(user.Field("email"), "a@fb.com", "a@ent.io"),
			),
			S: `name == "a8m" && email in ["a@fb.com","a@ent.io"]`,
		},
		{
			F: ql.Or(
				ql.Not(ql.Equals(user.Field("name"), "mashraki")),
				ql.Equals(user.Field("name"), nil),
			),
			S: `!(name == "mashraki") || name == nil`,
		},
		{
			F: ql.And(
				ql.GreaterThan(post.Field("views"), 30),
				ql.Contains(post.Field("title"), "go"),
				ql.Scalar(post.Field("title"), ql.CondNotEndsWith, "!"),
			),
			S: `(views > 30 && contains(title, "go") && !(has_suffix(title, "!")))`,
		},
		{
			F: ql.Some(user.RelationField("posts"), ql.LessThanOrEquals(post.Field("views"), 10)),
			S: `some(posts, views <= 10)`,
		},
		{
			F: ql.ToOne(post.RelationField("author"), nil),
			S: `has_edge(author)`,
		},
		{
			F: ql.None(user.RelationField("posts"), ql.ListContains(post.Field("scores"), ql.ListContainsSome, 1, 2)),
			S: `none(posts, contains_some(scores, [1,2]))`,
		},
		{
			F: ql.IDIn(user, ql.IntID(1), ql.IntID(2)),
			S: `id in [1,2]`,
		},
		{
			F: ql.Equals(user.Field("createdAt"), time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)),
			S: `createdAt == "2024-01-02T03:04:05Z"`,
		},
		{F: ql.Empty(), S: `true`},
		{F: ql.Or(), S: `false`},
		{F: ql.Bool(false), S: `false`},
	}
	for _, tt := range tests {
		t.Run(tt.S, func(t *testing.T) {
			assert.Equal(t, tt.S, tt.F.String())
		})
	}
}

func TestIsEmpty(t *testing.T) {
	r := schematest.Blog(t)
	assert.True(t, ql.IsEmpty(nil))
	assert.True(t, ql.IsEmpty(ql.Empty()))
	assert.True(t, ql.IsEmpty(ql.Bool(true)))
	assert.False(t, ql.IsEmpty(ql.Or()))
	assert.False(t, ql.IsEmpty(ql.Equals(r.Model("User").ID(), 1)))
}

func TestNotMany(t *testing.T) {
	r := schematest.Blog(t)
	name := r.Model("User").Field("name")
	a, b := ql.Equals(name, "a"), ql.Equals(name, "b")
	got := ql.Not(a, b)
	want := &ql.NotFilter{Filter: &ql.Junction{Kind: ql.JunctionAnd, Filters: []ql.Filter{a, b}}}
	sameField := cmp.Comparer(func(a, b *schema.Field) bool { return a == b })
	if diff := cmp.Diff(want, got, sameField); diff != "" {
		t.Errorf("Not mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordFinder(t *testing.T) {
	r := schematest.Blog(t)
	user := r.Model("User")
	f := ql.NewRecordFinder(user.Field("email"), "a@b.c")
	assert.Equal(t, `email == "a@b.c"`, f.String())
	assert.Same(t, user, f.Model())
	assert.Equal(t, `email == "a@b.c"`, f.Filter().String())
	info := f.Info()
	assert.Equal(t, "User.email = a@b.c", info.String())

	byID := ql.FinderForID(user, ql.IntID(3))
	assert.Equal(t, int64(3), byID.Value)
	assert.Equal(t, "id", byID.Field.Name)

	var nilFinder *ql.RecordFinder
	assert.Nil(t, nilFinder.Info())
}
