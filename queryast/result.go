package queryast

import (
	ql "github.com/syssam/veloxq/querylanguage"
	"github.com/syssam/veloxq/schema"
)

// ReadResult is the outcome of a read, with the results of its nested
// relation reads.
type ReadResult struct {
	Key     string
	Model   *schema.Model
	Many    bool
	Records ManyRecords
	// Lists maps list field names to the values of each record.
	Lists  map[string]map[ql.RecordID][]any
	Nested []*ReadResult
	Count  *int
}

// IDs returns the ids of the records read.
func (r *ReadResult) IDs() ([]ql.RecordID, error) {
	if r.Count != nil || r.Model == nil {
		return nil, nil
	}
	return r.Records.IDs(r.Model)
}

// Serialize renders the result as a tree of maps and slices suitable for
// JSON encoding. Single record reads render as a map or nil, list reads as a
// slice and counts as a number.
func (r *ReadResult) Serialize() any {
	if r.Count != nil {
		return *r.Count
	}
	items := r.items(func(Record) bool { return true })
	if r.Many {
		return items
	}
	if len(items) == 0 {
		return nil
	}
	return items[0]
}

func (r *ReadResult) items(keep func(Record) bool) []map[string]any {
	items := make([]map[string]any, 0, len(r.Records.Records))
	idx := -1
	if r.Model != nil {
		for i, name := range r.Records.FieldNames {
			if name == r.Model.ID().Name {
				idx = i
			}
		}
	}
	for _, rec := range r.Records.Records {
		if !keep(rec) {
			continue
		}
		item := make(map[string]any, len(rec.Values)+len(r.Lists)+len(r.Nested))
		for i, name := range r.Records.FieldNames {
			item[name] = rec.Values[i]
		}
		if idx >= 0 {
			id, err := ql.ParseID(r.Model.ID().Type, rec.Values[idx])
			if err == nil {
				for name, values := range r.Lists {
					vs := values[id]
					if vs == nil {
						vs = []any{}
					}
					item[name] = vs
				}
				for _, n := range r.Nested {
					children := n.items(func(c Record) bool { return c.ParentID != nil && *c.ParentID == id })
					switch {
					case n.Many:
						item[n.Key] = children
					case len(children) > 0:
						item[n.Key] = children[0]
					default:
						item[n.Key] = nil
					}
				}
			}
		}
		items = append(items, item)
	}
	return items
}
