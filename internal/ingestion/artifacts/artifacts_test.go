package artifacts

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/yungbote/dbdict-backend/internal/domain/schema"
)

func TestLayout(t *testing.T) {
	s := New("/art")
	cases := map[string]string{
		s.SchemaPath("shop"):        "/art/shop/shop_schema.json",
		s.QualityPath("shop"):       "/art/shop/shop_health_deep.json",
		s.SummaryPath("shop"):       "/art/shop/shop_ai_summary.json",
		s.CompactSchemaPath("shop"): "/art/shop/shop_llm_schema.txt",
		s.GlobalContextPath("shop"): "/art/shop_global_context.txt",
	}
	for got, want := range cases {
		if got != filepath.FromSlash(want) {
			t.Fatalf("path: want=%s got=%s", want, got)
		}
	}
}

func TestRoundTripAndMissing(t *testing.T) {
	s := New(t.TempDir())

	if _, err := s.ReadGlobalContext("shop"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ReadGlobalContext: want ErrNotFound got=%v", err)
	}
	if q, err := s.ReadQuality("shop"); err != nil || q != nil {
		t.Fatalf("ReadQuality missing: want nil,nil got=%v,%v", q, err)
	}

	db := schema.Database{Name: "shop", Tables: []schema.Table{{
		Name:       "orders",
		Columns:    []schema.Column{{Name: "order_id", Type: "INTEGER"}},
		PrimaryKey: []string{"order_id"},
	}}}
	if err := s.WriteSchema("shop", db); err != nil {
		t.Fatalf("WriteSchema: %v", err)
	}
	got, err := s.ReadSchema("shop")
	if err != nil {
		t.Fatalf("ReadSchema: %v", err)
	}
	if got.Name != "shop" || len(got.Tables) != 1 || !got.Tables[0].Columns[0].IsPrimaryKey {
		t.Fatalf("ReadSchema: got=%+v", got)
	}

	if err := s.WriteGlobalContext("shop", "=== SCHEMA ===\nx"); err != nil {
		t.Fatalf("WriteGlobalContext: %v", err)
	}
	text, err := s.ReadGlobalContext("shop")
	if err != nil || text != "=== SCHEMA ===\nx" {
		t.Fatalf("ReadGlobalContext: got=%q err=%v", text, err)
	}
}

func TestRejectsTraversal(t *testing.T) {
	s := New(t.TempDir())
	for _, name := range []string{"../etc", "a/b", "", ".."} {
		if err := s.WriteGlobalContext(name, "x"); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("WriteGlobalContext(%q): want ErrInvalidName got=%v", name, err)
		}
	}
}
