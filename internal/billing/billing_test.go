package billing

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"campaign-engine/internal/callnorm"
	"campaign-engine/internal/store"
)

func TestApplyCallRecord_RejectsMissingIdentifiers(t *testing.T) {
	e := New(nil, nil, stubRateCard{})

	if err := e.ApplyCallRecord(context.Background(), callnorm.HangupRecord{}); err != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if err := e.ApplyCallRecord(context.Background(), callnorm.HangupRecord{CallUUID: "c1"}); err != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument for missing tenant, got %v", err)
	}
}

func TestApplyCampaignAggregate_RejectsMissingIdentifiers(t *testing.T) {
	e := New(nil, nil, stubRateCard{})
	if err := e.ApplyCampaignAggregate(context.Background(), "", "camp1", "desc", 10); err != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if err := e.ApplyCampaignAggregate(context.Background(), "tenant1", "", "desc", 10); err != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

type stubRateCard struct{}

func (stubRateCard) Price(ctx context.Context, tenantID, destination string, durationSeconds int, provider string) (int64, int64) {
	return 3, 2
}

// fakeLedger is an in-memory ledgerStore double. A real *sql.Tx can't be
// built without a live connection, so these tests run Engine with withTx
// overridden to call fn directly against a nil *sql.Tx, which fakeLedger's
// methods never dereference.
type fakeLedger struct {
	billed   map[string]bool
	balances map[string]int64
	history  []store.BillingHistoryEntry
}

func newFakeLedger(tenantID string, balance int64) *fakeLedger {
	return &fakeLedger{
		billed:   map[string]bool{},
		balances: map[string]int64{tenantID: balance},
	}
}

func (f *fakeLedger) HasBillingDetail(ctx context.Context, tx *sql.Tx, callUUID string) (bool, error) {
	return f.billed[callUUID], nil
}

func (f *fakeLedger) LockTenant(ctx context.Context, tx *sql.Tx, tenantID string) (store.Tenant, error) {
	return store.Tenant{TenantID: tenantID, AvailableBalance: f.balances[tenantID]}, nil
}

func (f *fakeLedger) DeductBalance(ctx context.Context, tx *sql.Tx, tenantID string, credits int64) (int64, error) {
	f.balances[tenantID] -= credits
	return f.balances[tenantID], nil
}

func (f *fakeLedger) InsertBillingDetail(ctx context.Context, tx *sql.Tx, d store.BillingDetail) error {
	f.billed[d.CallUUID] = true
	return nil
}

func (f *fakeLedger) InsertBillingHistoryEntry(ctx context.Context, tx *sql.Tx, e store.BillingHistoryEntry) error {
	f.history = append(f.history, e)
	return nil
}

func (f *fakeLedger) AdvanceIncomingAggregationTime(ctx context.Context, tx *sql.Tx, tenantID string, from *time.Time, to time.Time) (bool, error) {
	return true, nil
}

func directTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx *sql.Tx) error) error {
	return fn(ctx, nil)
}

func newTestEngine(ledger *fakeLedger) *Engine {
	return &Engine{store: ledger, rates: stubRateCard{}, clock: time.Now, withTx: directTx}
}

func TestApplyCallRecord_NonCampaignCallWritesHistoryEntry(t *testing.T) {
	ledger := newFakeLedger("t1", 1000)
	e := newTestEngine(ledger)

	err := e.ApplyCallRecord(context.Background(), callnorm.HangupRecord{
		CallUUID: "call-1", TenantID: "t1", To: "+1", Provider: "twilio",
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(ledger.history) != 1 {
		t.Fatalf("expected exactly one history entry for a non-campaign call, got %d", len(ledger.history))
	}
	if ledger.history[0].IsCampaignAggregate {
		t.Fatalf("non-campaign call entry must not be flagged as a campaign aggregate")
	}
	if ledger.balances["t1"] != 995 {
		t.Fatalf("balance = %d, want 995 (1000 - 5 credits)", ledger.balances["t1"])
	}
}

// TestApplyCallRecord_CampaignCallSkipsHistoryEntry guards the double-billing
// fix: a campaign call debits the balance and writes its BillingDetail, but
// must not write its own BillingHistoryEntry. The aggregate entry is written
// once, at campaign termination, by ApplyCampaignAggregate.
func TestApplyCallRecord_CampaignCallSkipsHistoryEntry(t *testing.T) {
	ledger := newFakeLedger("t1", 1000)
	e := newTestEngine(ledger)

	err := e.ApplyCallRecord(context.Background(), callnorm.HangupRecord{
		CallUUID: "call-1", TenantID: "t1", CampaignID: "camp-1", To: "+1", Provider: "twilio",
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(ledger.history) != 0 {
		t.Fatalf("expected no history entries for a campaign call, got %d", len(ledger.history))
	}
	if !ledger.billed["call-1"] {
		t.Fatalf("expected a BillingDetail row regardless of campaign membership")
	}
	if ledger.balances["t1"] != 995 {
		t.Fatalf("balance = %d, want 995 (1000 - 5 credits)", ledger.balances["t1"])
	}
}

// TestApplyCallRecord_DuplicateCallUUIDIsNoop exercises the idempotency
// short-circuit: a webhook retry for a call already billed must not deduct
// the balance twice.
func TestApplyCallRecord_DuplicateCallUUIDIsNoop(t *testing.T) {
	ledger := newFakeLedger("t1", 1000)
	e := newTestEngine(ledger)
	rec := callnorm.HangupRecord{CallUUID: "call-1", TenantID: "t1", To: "+1", Provider: "twilio"}

	if err := e.ApplyCallRecord(context.Background(), rec); err != nil {
		t.Fatalf("first call: unexpected err: %v", err)
	}
	if err := e.ApplyCallRecord(context.Background(), rec); err != nil {
		t.Fatalf("duplicate call: unexpected err: %v", err)
	}
	if ledger.balances["t1"] != 995 {
		t.Fatalf("balance = %d, want 995 after a duplicate webhook (single deduction)", ledger.balances["t1"])
	}
	if len(ledger.history) != 1 {
		t.Fatalf("expected exactly one history entry despite the duplicate call, got %d", len(ledger.history))
	}
}

func TestApplyCampaignAggregate_WritesSingleAggregateEntry(t *testing.T) {
	ledger := newFakeLedger("t1", 500)
	e := newTestEngine(ledger)

	if err := e.ApplyCampaignAggregate(context.Background(), "t1", "camp-1", "campaign camp-1: 3 calls, 15 credits", 15); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(ledger.history) != 1 {
		t.Fatalf("expected exactly one aggregate entry, got %d", len(ledger.history))
	}
	if !ledger.history[0].IsCampaignAggregate {
		t.Fatalf("expected IsCampaignAggregate=true on the campaign termination entry")
	}
	if ledger.history[0].CampaignID != "camp-1" {
		t.Fatalf("CampaignID = %q, want camp-1", ledger.history[0].CampaignID)
	}
}
