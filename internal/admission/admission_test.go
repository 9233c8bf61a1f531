package admission

import "testing"

func TestTenantCounterKey(t *testing.T) {
	got := tenantCounterKey("t-1")
	want := "admission:tenant:t-1"
	if got != want {
		t.Fatalf("tenantCounterKey() = %q, want %q", got, want)
	}
}

func TestNew_DefaultsCapTTL(t *testing.T) {
	c := New(nil, nil, nil, 10, 0)
	if c.capTTL <= 0 {
		t.Fatalf("expected a positive default capTTL")
	}
}
