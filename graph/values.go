package graph

import (
	"fmt"
	"math"
	"reflect"
	"sort"
)

// Normalize converts a Go value into the shape a Neo4j session returns it in:
// signed and unsigned integers become int64, floats become float64, slices
// become []any and string-keyed maps become map[string]any. Nested values
// are normalized recursively. Values of other kinds are returned unchanged,
// and so are unsigned integers above math.MaxInt64, which int64 cannot hold.
func Normalize[T any](value T) T {
	n, ok := normalize(value).(T)
	if !ok {
		return value
	}
	return n
}

// NormalizeValue is Normalize for untyped values.
func NormalizeValue(value any) any {
	return normalize(value)
}

func normalize(value any) any {
	switch v := value.(type) {
	case nil, bool, string, int64, float64:
		return v
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint:
		if uint64(v) > math.MaxInt64 {
			return v
		}
		return int64(v)
	case uint64:
		if v > math.MaxInt64 {
			return v
		}
		return int64(v)
	case float32:
		return float64(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = normalize(e)
		}
		return out
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			// []byte is a Neo4j byte array, keep it.
			return value
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return value
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = normalize(iter.Value().Interface())
		}
		return out
	}
	return value
}

// AsInt64 converts a result value to int64.
func AsInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("uint64 value %d overflows int64", v)
		}
		return int64(v), nil
	case float64:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", value)
	}
}

// AsString converts a result value to string. nil yields "".
func AsString(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return "", fmt.Errorf("cannot convert %T to string", value)
	}
}

// AsStrings converts a list result value to []string.
func AsStrings(value any) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("list element %T is not a string", e)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to []string", value)
	}
}

// AsMap converts a map result value to map[string]any.
func AsMap(value any) (map[string]any, error) {
	switch v := value.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to map[string]any", value)
	}
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NodeRefFromRecord decodes the id, name and labels columns of a match row.
// It returns the labels unchanged so callers can reject multi-label nodes.
func NodeRefFromRecord(rec Record) (NodeRef, []string, error) {
	id, err := AsInt64(rec[ColID])
	if err != nil {
		return NodeRef{}, nil, fmt.Errorf("%w: id column: %v", ErrUnexpectedResult, err)
	}
	name, err := AsString(rec[ColName])
	if err != nil {
		return NodeRef{}, nil, fmt.Errorf("%w: name column: %v", ErrUnexpectedResult, err)
	}
	labels, err := AsStrings(rec[ColLabels])
	if err != nil {
		return NodeRef{}, nil, fmt.Errorf("%w: labels column: %v", ErrUnexpectedResult, err)
	}
	ref := NodeRef{ID: id, Name: name}
	if len(labels) > 0 {
		ref.Label = labels[0]
	}
	return ref, labels, nil
}
