package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/campusworks/edubase/internal/utils"
)

// FieldKind enumerates the value types a snapshot field can hold.
type FieldKind int

const (
	FieldString FieldKind = iota
	FieldInt
	FieldBool
	FieldTime
	FieldIDList
)

// FieldDef declares one field of an entity schema.
type FieldDef struct {
	Name string
	Kind FieldKind
}

// Schema is the closed, ordered field list of an entity kind.
type Schema []FieldDef

func (s Schema) KindOf(name string) (FieldKind, bool) {
	for _, def := range s {
		if def.Name == name {
			return def.Kind, true
		}
	}
	return 0, false
}

func (s Schema) Has(name string) bool {
	_, ok := s.KindOf(name)
	return ok
}

// Fields is an ordered field-name to value mapping. Absent fields are
// tracked explicitly so a partially loaded snapshot is never mistaken
// for a complete one.
type Fields struct {
	order []string
	vals  map[string]any
}

func NewFields() *Fields {
	return &Fields{vals: map[string]any{}}
}

func (f *Fields) Set(name string, value any) {
	if _, ok := f.vals[name]; !ok {
		f.order = append(f.order, name)
	}
	f.vals[name] = value
}

func (f *Fields) Get(name string) (any, bool) {
	v, ok := f.vals[name]
	return v, ok
}

func (f *Fields) Has(name string) bool {
	_, ok := f.vals[name]
	return ok
}

func (f *Fields) Delete(name string) {
	if _, ok := f.vals[name]; !ok {
		return
	}
	delete(f.vals, name)
	for i, n := range f.order {
		if n == name {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

func (f *Fields) Names() []string {
	names := make([]string, len(f.order))
	copy(names, f.order)
	return names
}

func (f *Fields) Len() int {
	return len(f.order)
}

func (f *Fields) Clone() *Fields {
	c := NewFields()
	for _, name := range f.order {
		v := f.vals[name]
		if ids, ok := v.([]int64); ok {
			v = append([]int64(nil), ids...)
		}
		c.Set(name, v)
	}
	return c
}

// Merge writes every field of other onto f, preserving f's ordering for
// fields it already has.
func (f *Fields) Merge(other *Fields) {
	for _, name := range other.order {
		f.Set(name, other.vals[name])
	}
}

func (f *Fields) String(name string) string {
	if v, ok := f.vals[name].(string); ok {
		return v
	}
	return ""
}

func (f *Fields) Int(name string) int64 {
	if v, ok := f.vals[name].(int64); ok {
		return v
	}
	return 0
}

func (f *Fields) Bool(name string) bool {
	if v, ok := f.vals[name].(bool); ok {
		return v
	}
	return false
}

func (f *Fields) Time(name string) time.Time {
	if v, ok := f.vals[name].(time.Time); ok {
		return v
	}
	return time.Time{}
}

func (f *Fields) IDs(name string) []int64 {
	if v, ok := f.vals[name].([]int64); ok {
		return append([]int64(nil), v...)
	}
	return nil
}

// ValueEqual compares two field values. ID lists compare as sets.
func ValueEqual(a, b any) bool {
	switch av := a.(type) {
	case []int64:
		bv, ok := b.([]int64)
		if !ok {
			return false
		}
		return idSetEqual(av, bv)
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return false
		}
		return av.Equal(bv)
	default:
		return a == b
	}
}

func idSetEqual(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]int64(nil), a...)
	bs := append([]int64(nil), b...)
	sort.Slice(as, func(i, j int) bool { return as[i] < as[j] })
	sort.Slice(bs, func(i, j int) bool { return bs[i] < bs[j] })
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

// MarshalJSON preserves field order. Times serialize as RFC3339.
func (f *Fields) MarshalJSON() ([]byte, error) {
	return utils.MarshalOrdered(f.order, func(name string) (any, bool) {
		v, ok := f.vals[name]
		if !ok {
			return nil, false
		}
		if t, isTime := v.(time.Time); isTime {
			return t.UTC().Format(time.RFC3339), true
		}
		return v, true
	})
}

// UnmarshalFields decodes a snapshot using the schema to restore typed
// values. Fields absent from the document stay absent; unknown keys are
// dropped. Field order follows the schema.
func UnmarshalFields(data []byte, schema Schema) (*Fields, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	fields := NewFields()
	for _, def := range schema {
		msg, ok := raw[def.Name]
		if !ok {
			continue
		}

		switch def.Kind {
		case FieldString:
			var v string
			if err := json.Unmarshal(msg, &v); err != nil {
				return nil, fmt.Errorf("field %s: %w", def.Name, err)
			}
			fields.Set(def.Name, v)
		case FieldInt:
			var v int64
			if err := json.Unmarshal(msg, &v); err != nil {
				return nil, fmt.Errorf("field %s: %w", def.Name, err)
			}
			fields.Set(def.Name, v)
		case FieldBool:
			var v bool
			if err := json.Unmarshal(msg, &v); err != nil {
				return nil, fmt.Errorf("field %s: %w", def.Name, err)
			}
			fields.Set(def.Name, v)
		case FieldTime:
			var v string
			if err := json.Unmarshal(msg, &v); err != nil {
				return nil, fmt.Errorf("field %s: %w", def.Name, err)
			}
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", def.Name, err)
			}
			fields.Set(def.Name, t.UTC())
		case FieldIDList:
			var v []int64
			if err := json.Unmarshal(msg, &v); err != nil {
				return nil, fmt.Errorf("field %s: %w", def.Name, err)
			}
			if v == nil {
				v = []int64{}
			}
			fields.Set(def.Name, v)
		}
	}

	return fields, nil
}
