package resultset

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type Field struct {
	Name  string
	Value any
}

// Record is one row of query output. Fields keep the order in which they were first
// set, which is the column order of the producing query or the key order of the JSON
// object it was decoded from.
type Record struct {
	fields []Field
	index  map[string]int
}

func NewRecord(fields ...Field) Record {
	var record Record
	for _, field := range fields {
		record.Set(field.Name, field.Value)
	}
	return record
}

// Set overwrites the value of an existing field in place or appends a new one.
func (r *Record) Set(name string, value any) {
	if r.index == nil {
		r.index = map[string]int{}
	}
	if i, ok := r.index[name]; ok {
		r.fields[i].Value = value
		return
	}
	r.index[name] = len(r.fields)
	r.fields = append(r.fields, Field{Name: name, Value: value})
}

func (r Record) Get(name string) (any, bool) {
	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return r.fields[i].Value, true
}

func (r Record) Keys() []string {
	keys := make([]string, 0, len(r.fields))
	for _, field := range r.fields {
		keys = append(keys, field.Name)
	}
	return keys
}

func (r Record) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

func (r Record) Len() int {
	return len(r.fields)
}

func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(field.Name)
		if err != nil {
			return nil, fmt.Errorf("marshal field name %q: %w", field.Name, err)
		}
		value, err := json.Marshal(field.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal field %q: %w", field.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping its key order. Anything other than an
// object decodes as an empty record. Numbers are kept verbatim as json.Number.
func (r *Record) UnmarshalJSON(data []byte) error {
	*r = Record{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	if _, err := decoder.Token(); err != nil {
		return fmt.Errorf("read record start: %w", err)
	}
	for decoder.More() {
		token, err := decoder.Token()
		if err != nil {
			return fmt.Errorf("read record key: %w", err)
		}
		key, ok := token.(string)
		if !ok {
			return fmt.Errorf("unexpected record key %v", token)
		}
		var value any
		if err := decoder.Decode(&value); err != nil {
			return fmt.Errorf("decode field %q: %w", key, err)
		}
		r.Set(key, value)
	}
	if _, err := decoder.Token(); err != nil {
		return fmt.Errorf("read record end: %w", err)
	}
	return nil
}

// ResultSet is an ordered sequence of records. A nil ResultSet stands for both "no rows"
// and "the payload was not a list".
type ResultSet []Record

// Columns returns the keys of the first record, which define the column set of the
// whole result.
func (rs ResultSet) Columns() []string {
	if len(rs) == 0 {
		return nil
	}
	return rs[0].Keys()
}

func (rs ResultSet) MarshalJSON() ([]byte, error) {
	if rs == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Record(rs))
}

// UnmarshalJSON never fails on shape: a JSON value that is not an array yields a nil
// ResultSet.
func (rs *ResultSet) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		*rs = nil
		return nil
	}
	var records []Record
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return err
	}
	*rs = records
	return nil
}
