// Package schematest provides schema fixtures shared by package tests.
package schematest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/syssam/veloxq/schema"
)

// BlogYAML is a small blogging schema exercising every relation shape:
// an inline one-to-many (PostAuthor), an inline one-to-one (UserProfile),
// a join table many-to-many (PostTags) and scalar lists.
const BlogYAML = `
db_name: blog
models:
  - name: User
    fields:
      - {name: id, type: Int, id: true, autoincrement: true}
      - {name: email, type: String, unique: true, required: true}
      - {name: name, type: String}
      - {name: nicknames, type: String, list: true}
      - {name: createdAt, type: DateTime}
      - {name: updatedAt, type: DateTime}
    relations:
      - {name: posts, model: Post, relation: PostAuthor, list: true}
      - {name: profile, model: Profile, relation: UserProfile}
  - name: Post
    fields:
      - {name: id, type: Int, id: true, autoincrement: true}
      - {name: title, type: String, required: true}
      - {name: views, type: Int}
      - {name: scores, type: Int, list: true}
    relations:
      - {name: author, model: User, relation: PostAuthor, required: true}
      - {name: tags, model: Tag, relation: PostTags, list: true}
  - name: Profile
    fields:
      - {name: id, type: UUID, id: true}
      - {name: bio, type: String}
    relations:
      - {name: user, model: User, relation: UserProfile}
  - name: Tag
    fields:
      - {name: id, type: String, id: true}
      - {name: label, type: String, unique: true, required: true}
    relations:
      - {name: posts, model: Post, relation: PostTags, list: true}
relations:
  - name: PostAuthor
    inline: {model: Post, column: author_id}
  - name: UserProfile
    inline: {model: Profile, column: user_id}
`

// Blog returns the registry described by BlogYAML.
func Blog(t testing.TB) *schema.Registry {
	t.Helper()
	r, err := schema.Load(strings.NewReader(BlogYAML))
	require.NoError(t, err)
	return r
}
