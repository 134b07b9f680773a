package record

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// IDField is the wire name of the server-assigned identifier.
const IDField = "id"

// Fields maps field names to values. The server-assigned id is never part of
// Fields; it lives on Record.ID.
type Fields map[string]Value

// Clone returns a shallow copy. Values are immutable so sharing them is safe.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Text returns the display text of a field, or "" if it is absent.
func (f Fields) Text(name string) string {
	v, ok := f[name]
	if !ok {
		return ""
	}
	return Text(v)
}

// Int returns an integer field. Absent fields read as 0.
func (f Fields) Int(name string) (int64, bool) {
	v, ok := f[name]
	if !ok {
		return 0, true
	}
	n, ok := v.(Int)
	return int64(n), ok
}

// With returns a copy of f with name set to v.
func (f Fields) With(name string, v Value) Fields {
	out := f.Clone()
	if out == nil {
		out = Fields{}
	}
	out[name] = v
	return out
}

// Record is one entry of the managed list (a contact, a blog post).
// ID is empty until the remote store has assigned one.
type Record struct {
	ID     string
	Fields Fields
}

// Clone returns a copy whose Fields map is not shared with r.
func (r Record) Clone() Record {
	return Record{ID: r.ID, Fields: r.Fields.Clone()}
}

// MarshalJSON encodes the record flat: {"id": ..., field: value, ...}.
func (r Record) MarshalJSON() ([]byte, error) {
	obj := make(Object, len(r.Fields)+1)
	for k, v := range r.Fields {
		obj[k] = v
	}
	if r.ID != "" {
		obj[IDField] = String(r.ID)
	}
	return marshalObject(obj)
}

// UnmarshalJSON decodes a flat record. The id may be a JSON string or number.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("record must be a JSON object")
	}

	out := Record{Fields: make(Fields, len(raw))}
	for k, v := range raw {
		if k == IDField {
			switch id := v.(type) {
			case string:
				out.ID = id
			case json.Number:
				out.ID = id.String()
			case nil:
			default:
				return fmt.Errorf("record id must be a string, got %T", v)
			}
			continue
		}
		val, err := FromAny(v)
		if err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
		out.Fields[k] = val
	}
	*r = out
	return nil
}

// MarshalFields encodes fields alone (the body of create and update calls).
func MarshalFields(f Fields) ([]byte, error) {
	return marshalObject(f)
}

// IndexOf returns the position of the record with the given id, or -1.
func IndexOf(list []Record, id string) int {
	for i, r := range list {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// CloneList copies a list and each record's field map.
func CloneList(list []Record) []Record {
	out := make([]Record, len(list))
	for i, r := range list {
		out[i] = r.Clone()
	}
	return out
}
