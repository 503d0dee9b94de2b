package domain

import (
	"sort"
	"strings"
)

// ValueType is the inferred type of an attribute column.
type ValueType string

// Attribute value types.
const (
	TypeUnknown ValueType = "unknown" // only null values seen so far
	TypeString  ValueType = "str"
	TypeInteger ValueType = "int"
	TypeFloat   ValueType = "float"
	TypeBoolean ValueType = "bool"
	TypeObject  ValueType = "object" // nested JSON object or array
)

// Column is a named, typed attribute column.
type Column struct {
	Name string
	Type ValueType
}

// Schema is an ordered list of attribute columns.
type Schema []Column

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// Index returns the position of a column, or -1.
func (s Schema) Index(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Has returns true if the schema contains the column.
func (s Schema) Has(name string) bool {
	return s.Index(name) >= 0
}

// Observe records a value for a column, appending the column if it is new
// and widening its type if needed. It returns the updated schema.
func (s Schema) Observe(name string, value interface{}) Schema {
	t := TypeOf(value)
	if i := s.Index(name); i >= 0 {
		s[i].Type = widen(s[i].Type, t)
		return s
	}
	return append(s, Column{Name: name, Type: t})
}

// String renders the schema as "name:type, ...".
func (s Schema) String() string {
	parts := make([]string, len(s))
	for i, c := range s {
		parts[i] = c.Name + ":" + string(c.Type)
	}
	return strings.Join(parts, ", ")
}

// TypeOf infers the value type of a decoded attribute value.
func TypeOf(v interface{}) ValueType {
	switch n := v.(type) {
	case nil:
		return TypeUnknown
	case string:
		return TypeString
	case bool:
		return TypeBoolean
	case int, int32, int64:
		return TypeInteger
	case float32:
		return TypeFloat
	case float64:
		if n == float64(int64(n)) {
			return TypeInteger
		}
		return TypeFloat
	default:
		return TypeObject
	}
}

func widen(current, seen ValueType) ValueType {
	switch {
	case current == seen:
		return current
	case current == TypeUnknown:
		return seen
	case seen == TypeUnknown:
		return current
	case (current == TypeInteger && seen == TypeFloat) || (current == TypeFloat && seen == TypeInteger):
		return TypeFloat
	default:
		return TypeString
	}
}

// InferSchema builds a schema from the properties of the given features,
// ordering columns by first appearance. keyOrder, when non-nil, gives the
// per-feature property order; otherwise map order is sorted by the caller.
func InferSchema(features []Feature, keyOrder [][]string) Schema {
	schema := make(Schema, 0)
	for i := range features {
		props := features[i].Properties
		if keyOrder != nil && i < len(keyOrder) {
			for _, k := range keyOrder[i] {
				schema = schema.Observe(k, props[k])
			}
			continue
		}
		for _, k := range sortedKeys(props) {
			schema = schema.Observe(k, props[k])
		}
	}
	return schema
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
