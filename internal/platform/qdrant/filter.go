package qdrant

import (
	"sort"
	"strings"
)

// Filter restricts a search or scroll to points whose payload matches every
// condition. Equals pins a key to one value; AnyOf accepts any listed value.
type Filter struct {
	Equals map[string]string
	AnyOf  map[string][]string
}

func (f *Filter) empty() bool {
	return f == nil || (len(f.Equals) == 0 && len(f.AnyOf) == 0)
}

// asMap renders the filter in qdrant's {"must":[...]} form with keys sorted so
// identical filters always encode identically.
func (f *Filter) asMap() map[string]any {
	if f.empty() {
		return nil
	}
	must := make([]any, 0, len(f.Equals)+len(f.AnyOf))
	for _, key := range sortedKeys(f.Equals) {
		k := strings.TrimSpace(key)
		if k == "" {
			continue
		}
		must = append(must, matchCondition(k, map[string]any{"value": f.Equals[key]}))
	}
	for _, key := range sortedKeys(f.AnyOf) {
		k := strings.TrimSpace(key)
		values := compactStrings(f.AnyOf[key])
		if k == "" || len(values) == 0 {
			continue
		}
		must = append(must, matchCondition(k, map[string]any{"any": values}))
	}
	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}

func matchCondition(key string, match map[string]any) map[string]any {
	return map[string]any{"key": key, "match": match}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func compactStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
