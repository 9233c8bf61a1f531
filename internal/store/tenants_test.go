package store

import (
	"reflect"
	"testing"
)

// phoneVariants and statusIn are pure logic; everything else in this
// package is Postgres-specific (SELECT ... FOR UPDATE, upserts) and is
// best covered by integration tests against Postgres.

func TestPhoneVariants(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"9876543210", []string{"9876543210", "09876543210", "919876543210", "+919876543210"}},
		{"09876543210", []string{"9876543210", "09876543210", "919876543210", "+919876543210"}},
		{"919876543210", []string{"9876543210", "09876543210", "919876543210", "+919876543210"}},
		{"+919876543210", []string{"9876543210", "09876543210", "919876543210", "+919876543210"}},
	}
	for _, c := range cases {
		got := phoneVariants(c.in)
		if !reflect.DeepEqual(got, c.want) {
			t.Fatalf("phoneVariants(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestStatusIn(t *testing.T) {
	set := []CampaignStatus{CampaignStatusScheduled, CampaignStatusPaused}
	if !statusIn(CampaignStatusPaused, set) {
		t.Fatalf("expected paused to be in set")
	}
	if statusIn(CampaignStatusRunning, set) {
		t.Fatalf("expected running to not be in set")
	}
}
