package varrule

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ntoofu/neo4j-ansible-inventory/graph"
)

// Built-in extractor names, as used in configuration.
const (
	ExtractorAll    = "all"
	ExtractorSelect = "select"
)

// AllVariables returns the extractor carrying every variable. The inventory
// side returns the vars unmodified; the graph side reassembles the node's
// scalar properties and property bags.
func AllVariables() Extractor {
	return Extractor{
		Name: ExtractorAll,
		FromInventory: func(vars map[string]any) (map[string]any, error) {
			return vars, nil
		},
		FromGraph: func(ctx context.Context, ref graph.NodeRef, r *Reader) (map[string]any, error) {
			return r.Variables(ctx, ref.ID)
		},
	}
}

// SelectVariables returns an extractor carrying only the given keys. Keys
// missing on a node are left out rather than set to null.
func SelectVariables(keys ...string) Extractor {
	wanted := append([]string(nil), keys...)
	sort.Strings(wanted)

	pick := func(vars map[string]any) map[string]any {
		out := make(map[string]any, len(wanted))
		for _, k := range wanted {
			if v, ok := vars[k]; ok {
				out[k] = v
			}
		}
		return out
	}

	return Extractor{
		Name: ExtractorSelect + "(" + strings.Join(wanted, ",") + ")",
		FromInventory: func(vars map[string]any) (map[string]any, error) {
			return pick(vars), nil
		},
		FromGraph: func(ctx context.Context, ref graph.NodeRef, r *Reader) (map[string]any, error) {
			vars, err := r.Variables(ctx, ref.ID)
			if err != nil {
				return nil, err
			}
			return pick(vars), nil
		},
	}
}

// Lookup returns a built-in extractor by configuration name.
func Lookup(name string, keys []string) (Extractor, error) {
	switch name {
	case "", ExtractorAll:
		return AllVariables(), nil
	case ExtractorSelect:
		if len(keys) == 0 {
			return Extractor{}, fmt.Errorf("%w: %q needs at least one key", ErrInvalidExtractor, name)
		}
		return SelectVariables(keys...), nil
	default:
		return Extractor{}, fmt.Errorf("%w: %q", ErrUnknownExtractor, name)
	}
}
