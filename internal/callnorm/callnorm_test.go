package callnorm

import (
	"testing"
	"time"
)

func TestNormalizeHangup_DualFieldNameTolerance(t *testing.T) {
	now := time.Now().UTC()

	lower := RawPayload{"callUUID": "u1", "duration": "42", "status": "answered"}
	upper := RawPayload{"CallUUID": "u1", "Duration": "42", "CallStatus": "answered"}

	carry := CarryForward{TenantID: "t1", CampaignID: "c1", Provider: "twilio"}

	a := NormalizeHangup(lower, carry, now)
	b := NormalizeHangup(upper, carry, now)

	if a.CallUUID != "u1" || b.CallUUID != "u1" {
		t.Fatalf("expected callUUID to resolve from either alias, got %q / %q", a.CallUUID, b.CallUUID)
	}
	if a.Duration != 42 || b.Duration != 42 {
		t.Fatalf("expected duration 42 from either alias, got %d / %d", a.Duration, b.Duration)
	}
	if a.Status != CallStatusCompleted || b.Status != CallStatusCompleted {
		t.Fatalf("expected status completed, got %q / %q", a.Status, b.Status)
	}
}

func TestNormalizeHangup_MissingDurationCoercesToZero(t *testing.T) {
	p := RawPayload{"callUUID": "u2", "status": "failed"}
	rec := NormalizeHangup(p, CarryForward{}, time.Now())
	if rec.Duration != 0 {
		t.Fatalf("expected duration 0, got %d", rec.Duration)
	}
}

func TestNormalizeHangup_SourceFromCampaignSentinel(t *testing.T) {
	cases := []struct {
		campaignID string
		want       CallSource
	}{
		{CampaignSentinelIncoming, CallSourceInbound},
		{CampaignSentinelTestCall, CallSourceTest},
		{CampaignSentinelAPICall, CallSourceAPI},
		{"campaign-123", CallSourceCampaign},
	}
	for _, c := range cases {
		rec := NormalizeHangup(RawPayload{"callUUID": "u"}, CarryForward{CampaignID: c.campaignID}, time.Now())
		if rec.Source != c.want {
			t.Fatalf("campaignID=%q: expected source %q, got %q", c.campaignID, c.want, rec.Source)
		}
	}
}

func TestNormalizeHangup_HangupCauseSynthesizedFromSIPCode(t *testing.T) {
	rec := NormalizeHangup(RawPayload{"callUUID": "u", "status": "answered", "SipResponseCode": "200"}, CarryForward{}, time.Now())
	if rec.HangupCause != "NORMAL_CLEARING" {
		t.Fatalf("expected NORMAL_CLEARING, got %q", rec.HangupCause)
	}
}

func TestApplyRecordingCallback_FillsRecordingURL(t *testing.T) {
	existing := HangupRecord{CallUUID: "u", RecordingURL: ""}
	updated := ApplyRecordingCallback(existing, RawPayload{"RecordingUrl": "https://example.test/rec.mp3"})
	if updated.RecordingURL != "https://example.test/rec.mp3" {
		t.Fatalf("expected recording url to be filled, got %q", updated.RecordingURL)
	}
}
