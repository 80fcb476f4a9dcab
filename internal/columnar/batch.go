// Package columnar converts between row-oriented records and a typed,
// column-oriented batch representation. Batches are the common shape the
// merge engine consumes regardless of which engine produced the rows.
package columnar

import (
	"fmt"
	"sort"
	"time"
)

type FieldType string

const (
	TypeInt64   FieldType = "int64"
	TypeFloat64 FieldType = "float64"
	TypeString  FieldType = "string"
	TypeBool    FieldType = "bool"
)

type Field struct {
	Name string
	Type FieldType
}

// Batch is an immutable columnar row set. Column i of row j lives at
// columns[i][j]; nil marks SQL NULL.
type Batch struct {
	fields  []Field
	columns [][]any
	numRows int
}

func (b Batch) Fields() []Field { return b.fields }

func (b Batch) NumRows() int { return b.numRows }

// Column returns the values of the named column, nil slice if absent.
func (b Batch) Column(name string) []any {
	for i, field := range b.fields {
		if field.Name == name {
			return b.columns[i]
		}
	}
	return nil
}

// FromRows infers a schema from the first record and packs the rows into a
// typed batch. Field order is the sorted column-name order so repeated
// conversions of the same row set produce identical schemas. Values that do
// not fit the inferred column type degrade to a string rendering instead of
// failing; the returned warnings name each degraded column once.
func FromRows(rows []map[string]any) (Batch, []string) {
	if len(rows) == 0 {
		return Batch{}, nil
	}

	names := make([]string, 0, len(rows[0]))
	for name := range rows[0] {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]Field, len(names))
	for i, name := range names {
		fields[i] = Field{Name: name, Type: inferType(rows[0][name])}
	}

	columns := make([][]any, len(fields))
	for i := range columns {
		columns[i] = make([]any, len(rows))
	}

	warned := map[string]bool{}
	var warnings []string
	for rowIdx, row := range rows {
		for colIdx, field := range fields {
			value, coerced := coerce(row[field.Name], field.Type)
			if coerced && !warned[field.Name] {
				warned[field.Name] = true
				warnings = append(warnings, fmt.Sprintf("column %q: value did not match inferred type %s, stored as string", field.Name, field.Type))
			}
			columns[colIdx][rowIdx] = value
		}
	}

	return Batch{fields: fields, columns: columns, numRows: len(rows)}, warnings
}

// Rows converts the batch back into row-oriented records.
func (b Batch) Rows() []map[string]any {
	rows := make([]map[string]any, b.numRows)
	for rowIdx := 0; rowIdx < b.numRows; rowIdx++ {
		row := make(map[string]any, len(b.fields))
		for colIdx, field := range b.fields {
			row[field.Name] = b.columns[colIdx][rowIdx]
		}
		rows[rowIdx] = row
	}
	return rows
}

// inferType picks a column type from one sample value. Numbers map onto the
// widest native width, everything unrecognized falls back to string to keep
// merges resilient to heterogeneous schemas.
func inferType(value any) FieldType {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return TypeInt64
	case float32, float64:
		return TypeFloat64
	case bool:
		return TypeBool
	default:
		return TypeString
	}
}

// coerce normalizes one value into the column type, returning the stored
// value and whether it had to degrade to a string rendering.
func coerce(value any, fieldType FieldType) (any, bool) {
	if value == nil {
		return nil, false
	}
	switch fieldType {
	case TypeInt64:
		switch v := value.(type) {
		case int:
			return int64(v), false
		case int8:
			return int64(v), false
		case int16:
			return int64(v), false
		case int32:
			return int64(v), false
		case int64:
			return v, false
		case uint:
			return int64(v), false
		case uint8:
			return int64(v), false
		case uint16:
			return int64(v), false
		case uint32:
			return int64(v), false
		case uint64:
			return int64(v), false
		case float64:
			// JSON decoding yields float64 for every number
			if v == float64(int64(v)) {
				return int64(v), false
			}
		}
	case TypeFloat64:
		switch v := value.(type) {
		case float32:
			return float64(v), false
		case float64:
			return v, false
		case int:
			return float64(v), false
		case int64:
			return float64(v), false
		}
	case TypeBool:
		if v, ok := value.(bool); ok {
			return v, false
		}
	case TypeString:
		return stringify(value), false
	}
	return stringify(value), true
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}
