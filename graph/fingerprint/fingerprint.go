// Package fingerprint derives content-addressable keys for property maps.
//
// Two property maps have the same fingerprint exactly when they hold the same
// keys with equal values of the same type after normalization. It is used to
// share one variable-bag node among every owner carrying an identical
// mapping.
package fingerprint

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ntoofu/neo4j-ansible-inventory/graph"
)

// Of returns the fingerprint of props.
//
// Algorithm:
//  1. Normalize values the way the graph store returns them
//  2. Build key=type:value lines, sorted by key
//  3. SHA-256 the lines joined with '|'
//  4. Base64url encode the first 12 bytes (no padding)
//
// Strings are compared exactly; unlike identifier hashing no case folding
// or trimming happens, since "Web" and "web" are different variable values.
func Of(props map[string]any) (string, error) {
	canonical, err := Canonical(props)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256([]byte(canonical))
	return base64.RawURLEncoding.EncodeToString(hash[:12]), nil
}

// Canonical returns the string Of hashes.
func Canonical(props map[string]any) (string, error) {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		v, err := encode(graph.NormalizeValue(props[k]))
		if err != nil {
			return "", fmt.Errorf("property %q: %w", k, err)
		}
		pairs = append(pairs, strconv.Quote(k)+"="+v)
	}
	return strings.Join(pairs, "|"), nil
}

func encode(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "null:", nil
	case string:
		return "s:" + strconv.Quote(val), nil
	case bool:
		return "b:" + strconv.FormatBool(val), nil
	case int64:
		return "i:" + strconv.FormatInt(val, 10), nil
	case float64:
		return "f:" + strconv.FormatFloat(val, 'g', -1, 64), nil
	case []any:
		parts := make([]string, len(val))
		for i, e := range val {
			p, err := encode(e)
			if err != nil {
				return "", err
			}
			parts[i] = p
		}
		return "l:[" + strings.Join(parts, ",") + "]", nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			p, err := encode(val[k])
			if err != nil {
				return "", err
			}
			parts[i] = strconv.Quote(k) + "=" + p
		}
		return "m:{" + strings.Join(parts, ",") + "}", nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}
