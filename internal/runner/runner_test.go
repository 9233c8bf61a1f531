package runner

import (
	"context"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"campaign-engine/internal/admission"
	"campaign-engine/internal/store"
	"campaign-engine/internal/telephony"
)

func TestAssistantIDFromWsURL(t *testing.T) {
	cases := map[string]string{
		"wss://host/chat/v2/assistant-123": "assistant-123",
		"wss://host/":                      "",
		"not a url\x7f":                    "",
	}
	for in, want := range cases {
		if got := assistantIDFromWsURL(in); got != want {
			t.Errorf("assistantIDFromWsURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestContactDynamicFields_ForwardsExtraFieldsOnly(t *testing.T) {
	c := store.Contact{
		FirstName: "Asha",
		Email:     "asha@example.test",
		Fields:    map[string]string{"city": "Pune", "plan": "gold"},
	}
	got := contactDynamicFields(c)
	want := map[string]string{"city": "Pune", "plan": "gold"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("contactDynamicFields() = %v, want %v", got, want)
	}
}

// fakeRunnerStore is an in-memory campaignStore double; tenantBalances is
// consumed in order (one entry per GetTenant call) so a test can simulate
// the balance dropping to zero mid-campaign.
type fakeRunnerStore struct {
	campaign        store.Campaign
	tenantBalances  []int64
	tenantCallCount int
	contact         store.Contact
}

func (f *fakeRunnerStore) GetCampaign(ctx context.Context, campaignID string) (store.Campaign, error) {
	return f.campaign, nil
}

func (f *fakeRunnerStore) GetTenant(ctx context.Context, tenantID string) (store.Tenant, error) {
	i := f.tenantCallCount
	if i >= len(f.tenantBalances) {
		i = len(f.tenantBalances) - 1
	}
	f.tenantCallCount++
	return store.Tenant{TenantID: tenantID, AvailableBalance: f.tenantBalances[i]}, nil
}

func (f *fakeRunnerStore) PersistProgress(ctx context.Context, campaignID string, currentIndex, processed, connected, failed int) error {
	return nil
}

func (f *fakeRunnerStore) GetContactAtOrdinal(ctx context.Context, listID string, ordinal int) (store.Contact, error) {
	return f.contact, nil
}

func (f *fakeRunnerStore) AtomicUpsertCounter(ctx context.Context, bucketMinute time.Time) (int, error) {
	return 0, nil
}

func (f *fakeRunnerStore) RecordProviderCallID(ctx context.Context, callUUID, providerCallID string) error {
	return nil
}

type fakeAdmission struct {
	reserveErr error
}

func (f *fakeAdmission) Reserve(ctx context.Context, tenant store.Tenant, call store.ActiveCall) error {
	return f.reserveErr
}

func (f *fakeAdmission) Release(ctx context.Context, tenantID string) {}

type fakeLifecycle struct {
	pauseReason string
}

func (f *fakeLifecycle) Pause(ctx context.Context, campaignID, reason, by string) error {
	f.pauseReason = reason
	return nil
}

func (f *fakeLifecycle) Complete(ctx context.Context, campaignID string) error { return nil }
func (f *fakeLifecycle) Fail(ctx context.Context, campaignID, errorMessage string) error {
	return nil
}

type fakeOutboundProvider struct{ name string }

func (f fakeOutboundProvider) Name() string { return f.name }
func (f fakeOutboundProvider) Originate(ctx context.Context, req telephony.OriginateRequest) (telephony.OriginateResult, error) {
	return telephony.OriginateResult{Success: true, ProviderCallID: "p1"}, nil
}
func (f fakeOutboundProvider) GenerateCallInstructions(ctx context.Context, req telephony.CallInstructionsRequest) (string, error) {
	return "<Response/>", nil
}
func (f fakeOutboundProvider) ClassifyStatus(providerStatus string) telephony.ActiveCallStatus {
	return ""
}

// TestRun_PausesOnInsufficientBalance guards the auto-pause invariant: a
// tenant whose balance drops to zero mid-campaign must pause the campaign
// rather than keep dialing.
func TestRun_PausesOnInsufficientBalance(t *testing.T) {
	st := &fakeRunnerStore{
		campaign: store.Campaign{
			CampaignID: "camp-1", TenantID: "t1", ListID: "list-1",
			Provider: "twilio", Status: store.CampaignStatusRunning, TotalContacts: 1,
		},
		tenantBalances: []int64{100, 0},
	}
	lc := &fakeLifecycle{}
	r := &Runner{
		store:     st,
		admission: &fakeAdmission{},
		lifecycle: lc,
		providers: map[string]telephony.OutboundProvider{"twilio": fakeOutboundProvider{name: "twilio"}},
		logger:    slog.Default(),
	}

	r.Run(context.Background(), "camp-1", 0)

	if lc.pauseReason != "insufficient_balance" {
		t.Fatalf("pause reason = %q, want insufficient_balance", lc.pauseReason)
	}
}

// TestRun_PausesOnGlobalOverload guards the admission-saturation auto-pause:
// when Reserve keeps reporting global overload past the admission timeout,
// the campaign pauses instead of looping forever or silently dropping
// contacts as failed.
func TestRun_PausesOnGlobalOverload(t *testing.T) {
	st := &fakeRunnerStore{
		campaign: store.Campaign{
			CampaignID: "camp-1", TenantID: "t1", ListID: "list-1",
			Provider: "twilio", Status: store.CampaignStatusRunning, TotalContacts: 1,
		},
		tenantBalances: []int64{100, 100},
		contact:        store.Contact{Number: "+15551234"},
	}
	lc := &fakeLifecycle{}
	r := &Runner{
		store:            st,
		admission:        &fakeAdmission{reserveErr: admission.ErrGlobalOverloaded},
		lifecycle:        lc,
		providers:        map[string]telephony.OutboundProvider{"twilio": fakeOutboundProvider{name: "twilio"}},
		logger:           slog.Default(),
		admissionTimeout: -time.Hour, // deadline already elapsed: fail fast instead of backing off for real time
	}

	r.Run(context.Background(), "camp-1", 0)

	if lc.pauseReason != "global_overload" {
		t.Fatalf("pause reason = %q, want global_overload", lc.pauseReason)
	}
}
