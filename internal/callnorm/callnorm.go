package callnorm

import (
	"strconv"
	"strings"
	"time"
)

// RawPayload is the loosely-typed provider payload (form values or a
// flattened JSON body). Field name casing varies by provider and by
// vintage of the same provider's webhook format (spec.md §9 "dual
// field-name tolerance"); callers populate it straight from the wire
// without renaming keys, and lookups here try every known alias.
type RawPayload map[string]string

func (p RawPayload) get(keys ...string) string {
	for _, k := range keys {
		if v, ok := p[k]; ok && v != "" {
			return v
		}
	}
	return ""
}

// NormalizeHangup maps a raw provider hangup payload plus carry-forward
// metadata into a HangupRecord. Per spec §4.3:
//   - duration coerces to 0 when non-numeric/missing
//   - status is mapped onto the fixed enum
//   - hangupCause is synthesized from a SIP code when the provider omits it
//   - recordingUrl is left empty if absent; a later recording callback fills it
//   - source is derived from the campaignId sentinel
func NormalizeHangup(p RawPayload, carry CarryForward, now time.Time) HangupRecord {
	callUUID := p.get("callUUID", "CallUUID", "call_uuid")
	campaignID := carry.CampaignID

	duration := parseDuration(p.get("Duration", "duration", "BillDuration", "bill_duration"))
	status := mapStatus(p.get("CallStatus", "call_status", "Status", "status", "HangupCause", "hangup_cause"))
	cause := p.get("HangupCause", "hangup_cause")
	if cause == "" {
		cause = synthesizeHangupCause(p.get("SipResponseCode", "sip_response_code"), status)
	}

	start := parseTime(p.get("StartTime", "start_time"), now)
	end := parseTime(p.get("EndTime", "end_time"), now)

	var answerTime *time.Time
	if raw := p.get("AnswerTime", "answer_time"); raw != "" {
		t := parseTime(raw, now)
		answerTime = &t
	}

	return HangupRecord{
		CallUUID:     callUUID,
		To:           p.get("To", "to"),
		From:         p.get("From", "from"),
		Duration:     duration,
		Status:       status,
		HangupCause:  cause,
		StartTime:    start,
		AnswerTime:   answerTime,
		EndTime:      end,
		RecordingURL: p.get("RecordingUrl", "recording_url", "RecordingURL"),
		Source:       classifySource(campaignID),
		Provider:     carry.Provider,
		TenantID:     carry.TenantID,
		CampaignID:   campaignID,
		AssistantID:  carry.AssistantID,
		ContactMeta:  carry.ContactMeta,
	}
}

// ApplyRecordingCallback fills RecordingURL on an existing HangupRecord,
// matched by CallUUID at the persistence layer; this function only performs
// the field-level merge.
func ApplyRecordingCallback(existing HangupRecord, p RawPayload) HangupRecord {
	if url := p.get("RecordingUrl", "recording_url", "RecordingURL"); url != "" {
		existing.RecordingURL = url
	}
	return existing
}

func parseDuration(raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func parseTime(raw string, fallback time.Time) time.Time {
	if raw == "" {
		return fallback
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(n, 0).UTC()
	}
	return fallback
}

func mapStatus(raw string) CallStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "answered", "completed", "normal clearing", "normal_clearing":
		return CallStatusCompleted
	case "no-answer", "noanswer", "no_answer", "timeout":
		return CallStatusNoAnswer
	case "busy", "user-busy", "user_busy":
		return CallStatusBusy
	case "canceled", "cancelled", "cancel":
		return CallStatusCanceled
	default:
		return CallStatusFailed
	}
}

func synthesizeHangupCause(sipCode string, status CallStatus) string {
	switch sipCode {
	case "200":
		return "NORMAL_CLEARING"
	case "486":
		return "USER_BUSY"
	case "487":
		return "ORIGINATOR_CANCEL"
	case "408", "480":
		return "NO_ANSWER"
	}
	switch status {
	case CallStatusCompleted:
		return "NORMAL_CLEARING"
	case CallStatusBusy:
		return "USER_BUSY"
	case CallStatusCanceled:
		return "ORIGINATOR_CANCEL"
	case CallStatusNoAnswer:
		return "NO_ANSWER"
	default:
		return "NORMAL_TEMPORARY_FAILURE"
	}
}

func classifySource(campaignID string) CallSource {
	switch campaignID {
	case CampaignSentinelAPICall:
		return CallSourceAPI
	case CampaignSentinelTestCall:
		return CallSourceTest
	case CampaignSentinelIncoming:
		return CallSourceInbound
	default:
		return CallSourceCampaign
	}
}
