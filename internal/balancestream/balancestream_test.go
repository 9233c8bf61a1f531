package balancestream

import (
	"encoding/json"
	"testing"
	"time"
)

func TestChannelFor(t *testing.T) {
	got := channelFor("tenant-1")
	want := "balance:tenant-1"
	if got != want {
		t.Fatalf("channelFor() = %q, want %q", got, want)
	}
}

func TestEventRoundTrip(t *testing.T) {
	e := Event{
		TenantID:  "tenant-1",
		Balance:   4200,
		Reason:    "call",
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	b, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Event
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != e {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, e)
	}
}

func TestNewPublisherAcceptsNilClient(t *testing.T) {
	// Construction must not panic even before a real client is wired in;
	// Publish itself would fail against a nil client, which callers guard
	// against by only constructing a Publisher once Redis is configured.
	p := NewPublisher(nil)
	if p == nil {
		t.Fatal("expected non-nil Publisher")
	}
}
