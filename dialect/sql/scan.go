package sql

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/veloxq"
	"github.com/syssam/veloxq/queryast"
	ql "github.com/syssam/veloxq/querylanguage"
	"github.com/syssam/veloxq/schema"
)

// BindValue converts a request value of field f into a statement argument.
func BindValue(f *schema.Field, v any) any {
	switch v := v.(type) {
	case nil:
		return nil
	case ql.RecordID:
		return v.Value()
	case *ql.RecordID:
		if v == nil {
			return nil
		}
		return v.Value()
	case uuid.UUID:
		return v.String()
	case time.Time:
		return v.UTC()
	case json.RawMessage:
		return string(v)
	}
	if f != nil && f.Type == schema.TypeJSON {
		if s, ok := v.(string); ok {
			return s
		}
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
	}
	if s, ok := v.(fmt.Stringer); ok && f != nil && (f.Type == schema.TypeEnum || f.Type == schema.TypeString) {
		return s.String()
	}
	return v
}

// datetimeLayouts are the textual forms drivers return DateTime columns in.
var datetimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// Coerce converts a value scanned from the database into the Go type of the
// scalar type t: int64, float64, bool, string, time.Time (UTC) or
// json.RawMessage. NULL is returned as nil.
func Coerce(t schema.Type, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case schema.TypeInt:
		return coerceInt(v)
	case schema.TypeFloat:
		switch v := v.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case []byte:
			return strconv.ParseFloat(string(v), 64)
		case string:
			return strconv.ParseFloat(v, 64)
		}
	case schema.TypeBoolean:
		switch v := v.(type) {
		case bool:
			return v, nil
		case int64:
			return v != 0, nil
		case []byte:
			return strconv.ParseBool(string(v))
		case string:
			return strconv.ParseBool(v)
		}
	case schema.TypeString, schema.TypeEnum:
		switch v := v.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		}
	case schema.TypeUUID:
		switch v := v.(type) {
		case string:
			return v, nil
		case uuid.UUID:
			return v.String(), nil
		case []byte:
			if len(v) == 16 {
				u, err := uuid.FromBytes(v)
				if err != nil {
					return nil, err
				}
				return u.String(), nil
			}
			return string(v), nil
		}
	case schema.TypeDateTime:
		switch v := v.(type) {
		case time.Time:
			return v.UTC(), nil
		case []byte:
			return parseTime(string(v))
		case string:
			return parseTime(v)
		case int64:
			return time.UnixMilli(v).UTC(), nil
		}
	case schema.TypeJSON:
		switch v := v.(type) {
		case json.RawMessage:
			return v, nil
		case []byte:
			return json.RawMessage(append([]byte(nil), v...)), nil
		case string:
			return json.RawMessage(v), nil
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(b), nil
	}
	return nil, fmt.Errorf("dialect/sql: cannot convert %T to %s", v, t)
}

func coerceInt(v any) (any, error) {
	switch v := v.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return nil, fmt.Errorf("dialect/sql: %d overflows Int", v)
		}
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("dialect/sql: %v is not an Int", v)
		}
		return int64(v), nil
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	case string:
		return strconv.ParseInt(v, 10, 64)
	case bool:
		if v {
			return int64(1), nil
		}
		return int64(0), nil
	}
	return nil, fmt.Errorf("dialect/sql: cannot convert %T to Int", v)
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("dialect/sql: cannot parse %q as DateTime", s)
}

// ScanRecords reads all rows into records with values aligned with fields.
// Columns are matched by name. When parentID is not nil every row must also
// carry the ParentIDColumn column, parsed as an id of parentID's type.
func ScanRecords(rows ColumnScanner, fields []*schema.Field, parentID *schema.Field) ([]queryast.Record, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	idx := make([]int, len(fields))
	for i, f := range fields {
		if idx[i] = columnIndex(columns, f.Column); idx[i] < 0 {
			return nil, veloxq.NewColumnDoesNotExistError(f.Column)
		}
	}
	parentIdx := -1
	if parentID != nil {
		if parentIdx = columnIndex(columns, ParentIDColumn); parentIdx < 0 {
			return nil, veloxq.NewColumnDoesNotExistError(ParentIDColumn)
		}
	}
	var records []queryast.Record
	for rows.Next() {
		raw := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		r := queryast.Record{Values: make([]any, len(fields))}
		for i, f := range fields {
			if r.Values[i], err = Coerce(f.Type, raw[idx[i]]); err != nil {
				return nil, fmt.Errorf("dialect/sql: scan %s.%s: %w", f.Model().Name, f.Name, err)
			}
		}
		if parentIdx >= 0 {
			id, err := ql.ParseID(parentID.Type, raw[parentIdx])
			if err != nil {
				return nil, err
			}
			r.ParentID = &id
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// ScanIDs reads the first column of all rows as ids of type t.
func ScanIDs(rows ColumnScanner, t schema.Type) ([]ql.RecordID, error) {
	var ids []ql.RecordID
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		id, err := ql.ParseID(t, v)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ScanInt reads the single integer of a one row, one column result.
func ScanInt(rows ColumnScanner) (int, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("dialect/sql: no rows in result set")
	}
	var v any
	if err := rows.Scan(&v); err != nil {
		return 0, err
	}
	n, err := coerceInt(v)
	if err != nil {
		return 0, err
	}
	return int(n.(int64)), rows.Err()
}

// ScanListValues reads the rows of ListValuesSelect grouped by record id.
func ScanListValues(rows ColumnScanner, f *schema.Field) (map[ql.RecordID][]any, error) {
	out := make(map[ql.RecordID][]any)
	idType := f.Model().ID().Type
	for rows.Next() {
		var node, value any
		if err := rows.Scan(&node, &value); err != nil {
			return nil, err
		}
		id, err := ql.ParseID(idType, node)
		if err != nil {
			return nil, err
		}
		v, err := Coerce(f.Type, value)
		if err != nil {
			return nil, err
		}
		out[id] = append(out[id], v)
	}
	return out, rows.Err()
}

func columnIndex(columns []string, name string) int {
	for i, c := range columns {
		if c == name {
			return i
		}
	}
	for i, c := range columns {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}
