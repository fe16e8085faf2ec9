package cache

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// MakeKey builds a cache key from a name prefix and a set of parameters.
//
// Parameters are sorted by name and rendered as name:JSON(value), joined
// by "|" and appended to the prefix after "_". Two parameter maps with the
// same contents always produce the same key:
//
//	MakeKey("games", map[string]any{"page": 1, "category": "action"})
//	// games_category:"action"|page:1
func MakeKey(prefix string, params map[string]any) string {
	if len(params) == 0 {
		return prefix
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+":"+encodeParam(params[name]))
	}

	return prefix + "_" + strings.Join(parts, "|")
}

func encodeParam(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// keyPrefix returns the name part of a key built by MakeKey.
func keyPrefix(key string) string {
	if i := strings.IndexByte(key, '_'); i >= 0 {
		return key[:i]
	}
	return key
}
