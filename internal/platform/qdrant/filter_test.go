package qdrant

import (
	"reflect"
	"testing"
)

func TestFilterAsMapSortedConditions(t *testing.T) {
	f := &Filter{
		Equals: map[string]string{"chunk_type": "table"},
		AnyOf:  map[string][]string{"table": {"orders", " ", "orders", "customers"}},
	}
	got := f.asMap()
	want := map[string]any{
		"must": []any{
			map[string]any{"key": "chunk_type", "match": map[string]any{"value": "table"}},
			map[string]any{"key": "table", "match": map[string]any{"any": []string{"orders", "customers"}}},
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("asMap: want=%v got=%v", want, got)
	}
}

func TestFilterEmpty(t *testing.T) {
	var nilFilter *Filter
	if nilFilter.asMap() != nil {
		t.Fatalf("nil filter: want nil map")
	}
	f := &Filter{AnyOf: map[string][]string{"table": {" "}}}
	if got := f.asMap(); got != nil {
		t.Fatalf("blank values: want nil got=%v", got)
	}
}
