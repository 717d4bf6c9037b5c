package schema

import (
	"math"
	"sort"
)

func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
