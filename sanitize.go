package ansiblegraph

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ntoofu/neo4j-ansible-inventory/graph"
)

// shape is how one variable value is persisted.
type shape int

const (
	// shapeProperty: stored as a property of the node itself
	shapeProperty shape = iota
	// shapeBag: a nested map, stored as one property-bag node
	shapeBag
	// shapeBagList: a list of maps, one property-bag node per element
	shapeBagList
	// shapeDropped: not stored at all
	shapeDropped
)

// encoded is the persisted form of one variable value.
type encoded struct {
	shape shape
	value any
	bags  []map[string]any

	// lossy and dropped hold paths, relative to the variable, of values
	// converted to text or left out. "" is the variable itself.
	lossy   []string
	dropped []string
}

// encodeVariable decides how a variable value is stored:
//
//   - scalars and homogeneous scalar lists become properties
//   - a map becomes a property bag
//   - a non-empty list whose elements are all maps becomes indexed bags
//   - null is dropped, since a graph property cannot hold it
//   - anything else is converted to text, element by element for lists
func encodeVariable(v any) encoded {
	v = graph.NormalizeValue(v)

	switch val := v.(type) {
	case map[string]any:
		props, lossy, dropped := encodeBag(val)
		return encoded{shape: shapeBag, bags: []map[string]any{props}, lossy: lossy, dropped: dropped}
	case []any:
		if len(val) > 0 && allMaps(val) {
			enc := encoded{shape: shapeBagList, bags: make([]map[string]any, len(val))}
			for i, e := range val {
				props, lossy, dropped := encodeBag(e.(map[string]any))
				enc.bags[i] = props
				enc.lossy = append(enc.lossy, prefixPaths(fmt.Sprintf("[%d]", i), lossy)...)
				enc.dropped = append(enc.dropped, prefixPaths(fmt.Sprintf("[%d]", i), dropped)...)
			}
			return enc
		}
	}

	value, lossy, ok := encodeProperty(v)
	if !ok {
		return encoded{shape: shapeDropped, dropped: []string{""}}
	}
	enc := encoded{shape: shapeProperty, value: value}
	if lossy {
		enc.lossy = []string{""}
	}
	return enc
}

// encodeBag converts a nested map into property-bag properties. Values that
// are not valid properties are converted to text or dropped.
func encodeBag(m map[string]any) (props map[string]any, lossy, dropped []string) {
	props = make(map[string]any, len(m))
	for _, k := range graph.SortedKeys(m) {
		value, isLossy, ok := encodeProperty(m[k])
		if !ok {
			dropped = append(dropped, k)
			continue
		}
		if isLossy {
			lossy = append(lossy, k)
		}
		props[k] = value
	}
	return props, lossy, dropped
}

// encodeProperty returns v as a graph property value. ok is false for null.
func encodeProperty(v any) (value any, lossy, ok bool) {
	v = graph.NormalizeValue(v)

	switch val := v.(type) {
	case nil:
		return nil, false, false
	case string, bool, int64, float64:
		return val, false, true
	case []any:
		if homogeneousScalars(val) {
			return val, false, true
		}
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = toText(e)
		}
		return out, true, true
	default:
		return toText(val), true, true
	}
}

// homogeneousScalars reports whether every element is a scalar of one type.
// An empty list qualifies.
func homogeneousScalars(list []any) bool {
	var kind string
	for _, e := range list {
		var k string
		switch e.(type) {
		case string:
			k = "string"
		case bool:
			k = "bool"
		case int64:
			k = "int"
		case float64:
			k = "float"
		default:
			return false
		}
		if kind != "" && k != kind {
			return false
		}
		kind = k
	}
	return true
}

func allMaps(list []any) bool {
	for _, e := range list {
		if _, ok := e.(map[string]any); !ok {
			return false
		}
	}
	return true
}

// toText renders one value for lossy storage. Strings stay as they are,
// other scalars use their literal form and composites their JSON form.
func toText(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func prefixPaths(prefix string, paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = joinPath(prefix, p)
	}
	return out
}

func joinPath(base, sub string) string {
	switch {
	case sub == "":
		return base
	case base == "":
		return sub
	case sub[0] == '[':
		return base + sub
	default:
		return base + "." + sub
	}
}
