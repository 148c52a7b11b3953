package querylanguage

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/google/uuid"

	"github.com/syssam/veloxq/schema"
)

// IDKind is the kind of value a RecordID carries.
type IDKind uint8

// Record id kinds. The order of the constants defines the order of ids of
// different kinds.
const (
	KindInvalid IDKind = iota
	KindInt
	KindString
	KindUUID
)

func (k IDKind) String() string {
	switch k {
	case KindInt:
		return "Int"
	case KindString:
		return "String"
	case KindUUID:
		return "UUID"
	}
	return "Invalid"
}

// RecordID identifies a row of a model. It is comparable and can be used as
// a map key. UUIDs are stored in their canonical string form.
type RecordID struct {
	Kind IDKind `msgpack:"k"`
	Int  int64  `msgpack:"i,omitempty"`
	Str  string `msgpack:"s,omitempty"`
}

// IntID returns an integer record id.
func IntID(n int64) RecordID { return RecordID{Kind: KindInt, Int: n} }

// StringID returns a string record id.
func StringID(s string) RecordID { return RecordID{Kind: KindString, Str: s} }

// UUIDID returns a UUID record id.
func UUIDID(u uuid.UUID) RecordID { return RecordID{Kind: KindUUID, Str: u.String()} }

// IsZero reports if the id was never set.
func (id RecordID) IsZero() bool { return id.Kind == KindInvalid }

// Value returns the value used to bind the id in statements.
func (id RecordID) Value() any {
	if id.Kind == KindInt {
		return id.Int
	}
	return id.Str
}

// UUID returns the UUID of a KindUUID id.
func (id RecordID) UUID() (uuid.UUID, error) {
	if id.Kind != KindUUID {
		return uuid.Nil, fmt.Errorf("querylanguage: %s id is not a UUID", id.Kind)
	}
	return uuid.Parse(id.Str)
}

// Compare orders ids by kind, then by value.
func (id RecordID) Compare(o RecordID) int {
	if c := cmp.Compare(id.Kind, o.Kind); c != 0 {
		return c
	}
	if id.Kind == KindInt {
		return cmp.Compare(id.Int, o.Int)
	}
	return cmp.Compare(id.Str, o.Str)
}

func (id RecordID) String() string {
	switch id.Kind {
	case KindInt:
		return strconv.FormatInt(id.Int, 10)
	case KindInvalid:
		return "<nil>"
	}
	return strconv.Quote(id.Str)
}

// ParseID converts a value read from the database or a request into the id
// of a field of type t.
func ParseID(t schema.Type, v any) (RecordID, error) {
	switch t {
	case schema.TypeInt:
		n, err := toInt64(v)
		if err != nil {
			return RecordID{}, err
		}
		return IntID(n), nil
	case schema.TypeUUID:
		var (
			u   uuid.UUID
			err error
		)
		switch v := v.(type) {
		case uuid.UUID:
			u = v
		case RecordID:
			return ParseID(t, v.Value())
		case string:
			u, err = uuid.Parse(v)
		case []byte:
			if len(v) == 16 {
				u, err = uuid.FromBytes(v)
			} else {
				u, err = uuid.ParseBytes(v)
			}
		default:
			err = fmt.Errorf("unexpected type %T", v)
		}
		if err != nil {
			return RecordID{}, fmt.Errorf("querylanguage: parse UUID id: %w", err)
		}
		return UUIDID(u), nil
	case schema.TypeString:
		switch v := v.(type) {
		case string:
			return StringID(v), nil
		case []byte:
			return StringID(string(v)), nil
		case RecordID:
			if v.Kind == KindString {
				return v, nil
			}
			return StringID(fmt.Sprint(v.Value())), nil
		case fmt.Stringer:
			return StringID(v.String()), nil
		}
		return RecordID{}, fmt.Errorf("querylanguage: unexpected type %T for String id", v)
	}
	return RecordID{}, fmt.Errorf("querylanguage: %s fields cannot be ids", t)
}

func toInt64(v any) (int64, error) {
	switch v := v.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("querylanguage: id %d overflows int64", v)
		}
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("querylanguage: id %v is not an integer", v)
		}
		return int64(v), nil
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("querylanguage: parse Int id: %w", err)
		}
		return n, nil
	case RecordID:
		if v.Kind == KindInt {
			return v.Int, nil
		}
		return toInt64(v.Str)
	}
	return 0, fmt.Errorf("querylanguage: unexpected type %T for Int id", v)
}

// IDValues returns the statement values of ids.
func IDValues(ids []RecordID) []any {
	vs := make([]any, len(ids))
	for i, id := range ids {
		vs[i] = id.Value()
	}
	return vs
}

// SortIDs sorts ids in place and removes duplicates.
func SortIDs(ids []RecordID) []RecordID {
	slices.SortFunc(ids, RecordID.Compare)
	return slices.Compact(ids)
}
