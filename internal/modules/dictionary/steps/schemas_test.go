package steps

import (
	"fmt"
	"sort"
	"testing"
)

// strictViolations lists every object node that breaks OpenAI strict
// structured outputs: additionalProperties must be false and every property
// must be required.
func strictViolations(path string, node map[string]any) []string {
	var out []string
	switch node["type"] {
	case "object":
		if ap, ok := node["additionalProperties"].(bool); !ok || ap {
			out = append(out, fmt.Sprintf("%s: additionalProperties=%v", path, node["additionalProperties"]))
		}
		props, _ := node["properties"].(map[string]any)
		required := map[string]bool{}
		if req, ok := node["required"].([]any); ok {
			for _, r := range req {
				if s, ok := r.(string); ok {
					required[s] = true
				}
			}
		}
		keys := make([]string, 0, len(props))
		for k := range props {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !required[k] {
				out = append(out, fmt.Sprintf("%s.%s: not required", path, k))
			}
			if child, ok := props[k].(map[string]any); ok {
				out = append(out, strictViolations(path+"."+k, child)...)
			}
		}
	case "array":
		if items, ok := node["items"].(map[string]any); ok {
			out = append(out, strictViolations(path+"[]", items)...)
		} else {
			out = append(out, path+": array without items schema")
		}
	}
	return out
}

func TestGenerateJSONSchemasAreStrict(t *testing.T) {
	schemas := map[string]map[string]any{
		"query_intent_v1":  schemaClassify(),
		"table_summary_v1": schemaTableSummary(),
	}
	for name, s := range schemas {
		if v := strictViolations(name, s); len(v) > 0 {
			t.Fatalf("schema %s not strict: %v", name, v)
		}
	}
}

func TestStrictViolationsFlagsOpenMaps(t *testing.T) {
	open := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"cols": map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "string"}},
		},
		"required": []any{"cols"},
	}
	if v := strictViolations("x", open); len(v) != 1 {
		t.Fatalf("violations: want=1 got=%v", v)
	}
}
