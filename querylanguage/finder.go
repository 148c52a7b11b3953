package querylanguage

import (
	"github.com/syssam/veloxq"
	"github.com/syssam/veloxq/schema"
)

// RecordFinder locates at most one row by a unique field.
type RecordFinder struct {
	Field *schema.Field
	Value any
}

// NewRecordFinder returns a finder on a unique field.
func NewRecordFinder(f *schema.Field, v any) *RecordFinder {
	return &RecordFinder{Field: f, Value: v}
}

// FinderForID returns a finder on the id field of m.
func FinderForID(m *schema.Model, id RecordID) *RecordFinder {
	return &RecordFinder{Field: m.ID(), Value: id.Value()}
}

// Model returns the model the finder applies to.
func (f *RecordFinder) Model() *schema.Model { return f.Field.Model() }

// Filter returns the finder as an equality filter.
func (f *RecordFinder) Filter() Filter { return Equals(f.Field, f.Value) }

// Info describes the finder in errors.
func (f *RecordFinder) Info() *veloxq.FinderInfo {
	if f == nil {
		return nil
	}
	return &veloxq.FinderInfo{Model: f.Model().Name, Field: f.Field.Name, Value: f.Value}
}

func (f *RecordFinder) String() string {
	return f.Field.Name + " == " + formatValue(f.Value)
}
