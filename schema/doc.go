// Package schema holds the read-only schema registry shared by every
// component of the engine.
//
// A Registry is built once at startup, either from Go values or from a YAML
// document, and is never mutated afterwards. It is safe for concurrent use.
//
// # Models and fields
//
// A Model maps to one table. Scalar fields map to columns, except scalar list
// fields, which live in an auxiliary table named "<table>_<field>" with the
// columns nodeId, position and value:
//
//	models:
//	  - name: User
//	    fields:
//	      - {name: id, type: Int, id: true, autoincrement: true}
//	      - {name: email, type: String, unique: true, required: true}
//	      - {name: tags, type: String, list: true}
//	    relations:
//	      - {name: posts, model: Post, relation: PostAuthor, list: true}
//
// # Relations
//
// Every relation has two sides. Side A is the model whose name sorts first
// (for self relations, the field declared first). A relation is manifested
// either inline, as a column on one model's table that holds the other
// side's id, or as a join table with one id column per side:
//
//	relations:
//	  - name: PostAuthor
//	    inline: {model: Post, column: author_id}
//	  - name: PostTags
//	    join_table: {table: _PostTags, column_a: A, column_b: B}
//
// Relations that are referenced by fields but not declared default to a join
// table named "_<relation>" with the columns A and B.
//
// For a relation field, RelationColumn is the column holding the id of the
// field's own model and OppositeColumn the column holding the related
// model's id. Both live in RelationTable.
package schema
