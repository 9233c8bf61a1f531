// Package callnorm maps provider-specific hangup and recording payloads to
// the provider-agnostic HangupRecord shape (spec.md §3, §4.3). Every
// function here is pure: no I/O, no persistence, no provider SDK calls.
package callnorm

import "time"

// HangupRecord is the normalized, provider-agnostic call result.
// Identity invariant: at most one HangupRecord is ever persisted per
// CallUUID (enforced by internal/store, not here).
type HangupRecord struct {
	CallUUID     string
	To           string
	From         string
	Duration     int // seconds, >= 0
	Status       CallStatus
	HangupCause  string
	StartTime    time.Time
	AnswerTime   *time.Time
	EndTime      time.Time
	RecordingURL string // empty until a later recording callback fills it
	Source       CallSource
	Provider     string
	TenantID     string
	CampaignID   string
	AssistantID  string
	ContactMeta  map[string]string
}

type CallStatus string

const (
	CallStatusCompleted CallStatus = "completed"
	CallStatusNoAnswer  CallStatus = "no-answer"
	CallStatusBusy      CallStatus = "busy"
	CallStatusCanceled  CallStatus = "canceled"
	CallStatusFailed    CallStatus = "failed"
)

type CallSource string

const (
	CallSourceCampaign CallSource = "campaign"
	CallSourceAPI      CallSource = "api"
	CallSourceTest     CallSource = "test"
	CallSourceInbound  CallSource = "inbound"
)

// Campaign-id sentinels used throughout the spec to mark non-campaign calls
// (spec.md §3 ActiveCall, §4.3 source mapping, §4.6 billing call types).
const (
	CampaignSentinelIncoming = "incoming"
	CampaignSentinelTestCall = "testcall"
	CampaignSentinelAPICall  = "api-call"
)

// CarryForward is metadata the runner/webhook handler already knows and
// that a raw provider payload cannot supply on its own.
type CarryForward struct {
	TenantID    string
	CampaignID  string
	AssistantID string
	ContactMeta map[string]string
	Provider    string
}
