package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Record представляет снимок доменной записи (заказ, позиция меню, сотрудник и т.д.).
// Хранится как JSON-объект и передается в облако без интерпретации полей.
type Record map[string]any

// FieldID имя поля с идентификатором записи
const FieldID = "id"

// ID returns the record identifier or an empty string when it is absent or not a string
func (r Record) ID() string {
	if r == nil {
		return ""
	}
	id, _ := r[FieldID].(string)
	return id
}

// String returns the value of a string field, empty if the field is missing
func (r Record) String(field string) string {
	if r == nil {
		return ""
	}
	v, _ := r[field].(string)
	return v
}

// Clone creates a shallow copy of the record so callers can add fields
// without touching the caller's map
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Merge returns a copy of r with every field of patch applied on top
func (r Record) Merge(patch Record) Record {
	out := r.Clone()
	if out == nil {
		out = make(Record, len(patch))
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// Value implements driver.Valuer so records can be stored in TEXT columns
func (r Record) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (r *Record) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*r = nil
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("unsupported record source type %T", src)
	}

	if len(data) == 0 {
		*r = nil
		return nil
	}

	var out Record
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("failed to unmarshal record: %w", err)
	}
	*r = out
	return nil
}
