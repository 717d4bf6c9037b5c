package logger

import "testing"

func TestSanitizeValueRedactsSecrets(t *testing.T) {
	cases := []struct {
		key  string
		val  any
		want any
	}{
		{key: "neo4j_password", val: "hunter2", want: "[REDACTED]"},
		{key: "openai_api_key", val: "sk-abc", want: "[REDACTED]"},
		{key: "dsn", val: "postgres://u:p@h/db", want: "[REDACTED]"},
		{key: "source", val: "postgres://u:p@h/db", want: "[REDACTED]"},
		{key: "source", val: "postgres://h/db", want: "postgres://h/db"},
		{key: "db_name", val: "bike_store", want: "bike_store"},
	}
	for _, tc := range cases {
		got := sanitizeValue(tc.key, tc.val)
		if got != tc.want {
			t.Fatalf("sanitizeValue(%q): want=%v got=%v", tc.key, tc.want, got)
		}
	}
}

func TestSanitizeValueHashesSessionID(t *testing.T) {
	got, ok := sanitizeValue("session_id", "abc-123").(string)
	if !ok {
		t.Fatalf("expected string")
	}
	if got == "abc-123" || len(got) != len("hash:")+12 {
		t.Fatalf("session id not hashed: %q", got)
	}
	again := sanitizeValue("session_id", "abc-123")
	if again != got {
		t.Fatalf("hash not stable: %v vs %v", again, got)
	}
}

func TestNewNopMode(t *testing.T) {
	log, err := New("test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.With("service", "x").Info("hello", "k", "v")
	log.Sync()
}
