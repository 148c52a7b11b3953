package queryast

import (
	"slices"

	"github.com/syssam/veloxq"
	ql "github.com/syssam/veloxq/querylanguage"
	"github.com/syssam/veloxq/schema"
)

// Record is one row. Values are aligned with the field names of the
// SingleRecord or ManyRecords holding it. ParentID is set on records read
// through a relation and holds the id of the record they are related to.
type Record struct {
	Values   []any        `msgpack:"v"`
	ParentID *ql.RecordID `msgpack:"p,omitempty"`
}

// SingleRecord is a record with its field names.
type SingleRecord struct {
	Record     Record   `msgpack:"r"`
	FieldNames []string `msgpack:"f"`
}

// Get returns the value of a field.
func (r *SingleRecord) Get(name string) (any, bool) {
	i := slices.Index(r.FieldNames, name)
	if i < 0 || i >= len(r.Record.Values) {
		return nil, false
	}
	return r.Record.Values[i], true
}

// ID returns the id of the record.
func (r *SingleRecord) ID(m *schema.Model) (ql.RecordID, error) {
	v, ok := r.Get(m.ID().Name)
	if !ok {
		return ql.RecordID{}, veloxq.NewColumnDoesNotExistError(m.ID().Column)
	}
	return ql.ParseID(m.ID().Type, v)
}

// ManyRecords is a list of records sharing field names.
type ManyRecords struct {
	Records    []Record `msgpack:"r"`
	FieldNames []string `msgpack:"f"`
}

// Len returns the number of records.
func (m *ManyRecords) Len() int { return len(m.Records) }

// At returns the i-th record as a SingleRecord.
func (m *ManyRecords) At(i int) *SingleRecord {
	return &SingleRecord{Record: m.Records[i], FieldNames: m.FieldNames}
}

// IDs returns the ids of the records, in order.
func (m *ManyRecords) IDs(model *schema.Model) ([]ql.RecordID, error) {
	idx := slices.Index(m.FieldNames, model.ID().Name)
	if idx < 0 {
		return nil, veloxq.NewColumnDoesNotExistError(model.ID().Column)
	}
	ids := make([]ql.RecordID, 0, len(m.Records))
	for _, r := range m.Records {
		id, err := ql.ParseID(model.ID().Type, r.Values[idx])
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Reverse reverses the order of the records in place.
func (m *ManyRecords) Reverse() { slices.Reverse(m.Records) }

// ScalarListValues holds the values of a list field of one record.
type ScalarListValues struct {
	RecordID ql.RecordID `msgpack:"id"`
	Values   []any       `msgpack:"v"`
}
