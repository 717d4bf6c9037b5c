package envutil

import (
	"testing"
	"time"
)

func TestIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("DBDICT_TEST_INT", "abc")
	if got := Int("DBDICT_TEST_INT", 7); got != 7 {
		t.Fatalf("Int: want=7 got=%d", got)
	}
	t.Setenv("DBDICT_TEST_INT", " 12 ")
	if got := Int("DBDICT_TEST_INT", 7); got != 12 {
		t.Fatalf("Int: want=12 got=%d", got)
	}
}

func TestBool(t *testing.T) {
	t.Setenv("DBDICT_TEST_BOOL", "off")
	if Bool("DBDICT_TEST_BOOL", true) {
		t.Fatalf("Bool: want=false")
	}
	t.Setenv("DBDICT_TEST_BOOL", "maybe")
	if !Bool("DBDICT_TEST_BOOL", true) {
		t.Fatalf("Bool: want default true")
	}
}

func TestSeconds(t *testing.T) {
	t.Setenv("DBDICT_TEST_SECS", "-3")
	if got := Seconds("DBDICT_TEST_SECS", time.Minute); got != time.Minute {
		t.Fatalf("Seconds: want=1m got=%s", got)
	}
	t.Setenv("DBDICT_TEST_SECS", "5")
	if got := Seconds("DBDICT_TEST_SECS", time.Minute); got != 5*time.Second {
		t.Fatalf("Seconds: want=5s got=%s", got)
	}
}
