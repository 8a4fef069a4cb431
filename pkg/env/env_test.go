package env

import "testing"

func TestFirst(t *testing.T) {
	t.Setenv("NURSERY_TEST_A", "  ")
	t.Setenv("NURSERY_TEST_B", " console ")

	if got := First("json", "NURSERY_TEST_A", "NURSERY_TEST_B"); got != "console" {
		t.Fatalf("expected console, got %q", got)
	}
	if got := First("json", "NURSERY_TEST_A", "NURSERY_TEST_UNSET"); got != "json" {
		t.Fatalf("expected fallback, got %q", got)
	}
	if got := First("json"); got != "json" {
		t.Fatalf("expected fallback without keys, got %q", got)
	}
}
