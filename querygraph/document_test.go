package querygraph

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userQuery = `
query Q($id: Int!, $withPosts: Boolean = true) {
  u: user(where: {id: $id}) {
    id
    ...UserFields
    posts(first: 2) @include(if: $withPosts) { title }
    ... on User { name @skip(if: true) }
  }
}

fragment UserFields on User { email }
`

func TestParseDocument(t *testing.T) {
	doc, err := ParseDocument(userQuery, "", map[string]any{"id": int64(5)})
	require.NoError(t, err)
	assert.False(t, doc.Mutation)
	want := []Field{{
		Name:      "user",
		Alias:     "u",
		Arguments: map[string]any{"where": map[string]any{"id": int64(5)}},
		Selection: []Field{
			{Name: "id"},
			{Name: "email"},
			{Name: "posts", Arguments: map[string]any{"first": int64(2)}, Selection: []Field{{Name: "title"}}},
		},
	}}
	if diff := cmp.Diff(want, doc.Fields); diff != "" {
		t.Errorf("ParseDocument() mismatch (-want +got):\n%s", diff)
	}

	doc, err = ParseDocument(userQuery, "Q", map[string]any{"id": int64(5), "withPosts": false})
	require.NoError(t, err)
	require.Len(t, doc.Fields, 1)
	assert.Len(t, doc.Fields[0].Selection, 2)
}

func TestParseDocumentMutation(t *testing.T) {
	doc, err := ParseDocument(`mutation { deleteManyTags(where: {label_in: ["a", "b"]}) { count } }`, "", nil)
	require.NoError(t, err)
	assert.True(t, doc.Mutation)
	require.Len(t, doc.Fields, 1)
	assert.Equal(t, "deleteManyTags", doc.Fields[0].Key())
	assert.Equal(t, map[string]any{"where": map[string]any{"label_in": []any{"a", "b"}}}, doc.Fields[0].Arguments)
}

func TestParseDocumentErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		op   string
		msg  string
	}{
		{"Syntax", `query {`, "", ""},
		{"MissingVariable", userQuery, "", "querygraph: $id: missing value for required variable"},
		{"UnknownOperation", userQuery, "Other", `querygraph: unknown operation "Other"`},
		{"ManyOperations", `query A { users { id } } query B { tags { id } }`, "", "querygraph: expected one operation, got 2"},
		{"Subscription", `subscription { users { id } }`, "", "querygraph: subscriptions are not supported"},
		{"UnknownFragment", `{ users { ...Missing } }`, "", `querygraph: unknown fragment "Missing"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDocument(tt.src, tt.op, nil)
			require.Error(t, err)
			if tt.msg != "" {
				assert.EqualError(t, err, tt.msg)
			}
		})
	}
}
