package ir

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Param is one key/value entry of a ParameterSet.
type Param struct {
	Key   string `json:"key"`
	Value Value  `json:"value"`
}

// P is shorthand for constructing a Param.
func P(key string, value Value) Param {
	return Param{Key: key, Value: value}
}

// ParameterSet is an ordered sequence of parameters with unique keys.
//
// The zero value is an empty set. Sets are treated as immutable: Merge and
// the other helpers always return fresh slices.
type ParameterSet []Param

// NewParameterSet builds a set and rejects duplicate or empty keys.
func NewParameterSet(params ...Param) (ParameterSet, error) {
	ps := ParameterSet(params)
	if err := ps.Validate(); err != nil {
		return nil, err
	}
	return ps.Clone(), nil
}

// MustParameterSet is like NewParameterSet but panics on invalid input.
// Use only in tests or for literals known to be valid.
func MustParameterSet(params ...Param) ParameterSet {
	ps, err := NewParameterSet(params...)
	if err != nil {
		panic(err)
	}
	return ps
}

// Strings builds a set of string parameters from alternating keys and values.
func Strings(kv ...string) ParameterSet {
	if len(kv)%2 != 0 {
		panic("ir.Strings: odd number of arguments")
	}
	params := make([]Param, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		params = append(params, Param{Key: kv[i], Value: String(kv[i+1])})
	}
	return MustParameterSet(params...)
}

// Validate rejects empty keys, duplicate keys and nil values.
// Duplicates are an input error, never silently collapsed.
func (ps ParameterSet) Validate() error {
	seen := make(map[string]int, len(ps))
	for i, p := range ps {
		if p.Key == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("parameters[%d].key", i),
				Message: "key must not be empty",
			}
		}
		if first, dup := seen[p.Key]; dup {
			return &ValidationError{
				Field:   fmt.Sprintf("parameters[%d].key", i),
				Message: fmt.Sprintf("duplicate key %q (first at parameters[%d])", p.Key, first),
			}
		}
		if p.Value == nil {
			return &ValidationError{
				Field:   fmt.Sprintf("parameters[%d].value", i),
				Message: fmt.Sprintf("missing value for key %q", p.Key),
			}
		}
		seen[p.Key] = i
	}
	return nil
}

// Len returns the number of parameters.
func (ps ParameterSet) Len() int { return len(ps) }

// Get returns the value for key.
func (ps ParameterSet) Get(key string) (Value, bool) {
	for _, p := range ps {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

// Has reports whether key is present, including with an empty value.
func (ps ParameterSet) Has(key string) bool {
	_, ok := ps.Get(key)
	return ok
}

// Keys returns keys in set order.
func (ps ParameterSet) Keys() []string {
	keys := make([]string, len(ps))
	for i, p := range ps {
		keys[i] = p.Key
	}
	return keys
}

// Clone returns a copy that shares no backing array with ps.
// A nil or empty set clones to an empty, non-nil set.
func (ps ParameterSet) Clone() ParameterSet {
	out := make(ParameterSet, len(ps))
	copy(out, ps)
	return out
}

// Object returns the set as an unordered Object.
func (ps ParameterSet) Object() Object {
	obj := make(Object, len(ps))
	for _, p := range ps {
		obj[p.Key] = p.Value
	}
	return obj
}

// Equal reports whether two sets hold the same keys and values in the same order.
func (ps ParameterSet) Equal(other ParameterSet) bool {
	if len(ps) != len(other) {
		return false
	}
	for i := range ps {
		if ps[i].Key != other[i].Key {
			return false
		}
		a, err := MarshalCanonical(ps[i].Value)
		if err != nil {
			return false
		}
		b, err := MarshalCanonical(other[i].Value)
		if err != nil {
			return false
		}
		if !bytes.Equal(a, b) {
			return false
		}
	}
	return true
}

// Describe renders the set as the list of {"key", "value"} pairs used in
// entity and activation descriptions.
func (ps ParameterSet) Describe() []any {
	out := make([]any, len(ps))
	for i, p := range ps {
		out[i] = map[string]any{"key": p.Key, "value": p.Value}
	}
	return out
}

// ParametersFromObject converts an Object into a set ordered by key.
func ParametersFromObject(obj Object) ParameterSet {
	ps := make(ParameterSet, 0, len(obj))
	for _, k := range obj.SortedKeys() {
		ps = append(ps, Param{Key: k, Value: obj[k]})
	}
	return ps
}

// MarshalJSON writes the set as [{"key":k,"value":v},...]. Empty sets
// encode as [] rather than null.
func (ps ParameterSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, p := range ps {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(p.Key)
		if err != nil {
			return nil, err
		}
		vb, err := MarshalValue(p.Value)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", p.Key, err)
		}
		buf.WriteString(`{"key":`)
		buf.Write(kb)
		buf.WriteString(`,"value":`)
		buf.Write(vb)
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts either the list form or a plain JSON object. The
// list form keeps its order; an object is ordered by key. Duplicate keys are
// rejected in both forms.
func (ps *ParameterSet) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*ps = ParameterSet{}
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '{' {
		obj, err := UnmarshalValue(trimmed)
		if err != nil {
			var dup *DuplicateKeyError
			if errors.As(err, &dup) {
				return &ValidationError{Field: "parameters", Message: err.Error()}
			}
			return fmt.Errorf("parameters: %w", err)
		}
		*ps = ParametersFromObject(obj.(Object))
		return nil
	}

	var raw []struct {
		Key   string          `json:"key"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return fmt.Errorf("parameters: %w", err)
	}
	out := make(ParameterSet, 0, len(raw))
	for i, r := range raw {
		var v Value = Null{}
		if len(r.Value) > 0 {
			decoded, err := UnmarshalValue(r.Value)
			if err != nil {
				return fmt.Errorf("parameters[%d] %q: %w", i, r.Key, err)
			}
			v = decoded
		}
		out = append(out, Param{Key: r.Key, Value: v})
	}
	if err := out.Validate(); err != nil {
		return err
	}
	*ps = out
	return nil
}

// Merge layers override on top of base.
//
// Keys of override replace base values in place; keys only in base are kept;
// keys only in override are appended in override order. An empty override
// returns a copy of base. Neither input is modified.
func Merge(base, override ParameterSet) ParameterSet {
	out := base.Clone()
	if len(override) == 0 {
		return out
	}
	index := make(map[string]int, len(out))
	for i, p := range out {
		index[p.Key] = i
	}
	for _, p := range override {
		if i, ok := index[p.Key]; ok {
			out[i].Value = p.Value
			continue
		}
		index[p.Key] = len(out)
		out = append(out, p)
	}
	return out
}

// MergeChain folds levels from most general to most specific, so later
// levels win: MergeChain(pkg, binding, action) == Merge(Merge(pkg, binding), action).
func MergeChain(levels ...ParameterSet) ParameterSet {
	out := ParameterSet{}
	for _, level := range levels {
		out = Merge(out, level)
	}
	return out
}
