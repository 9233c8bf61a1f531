package telephony

import (
	"context"
	"errors"
)

// OutboundProvider originates dialer calls and turns provider wire events
// into the provider-agnostic shapes used by the runner and call normalizer.
//
// Rules:
// - OriginateRequest.CallUUID is the caller-supplied, pre-generated, authoritative
//   identifier (see internal/store). The adapter never invents its own.
// - Originate must not retry; retry policy belongs to the caller.
type OutboundProvider interface {
	Name() string

	Originate(ctx context.Context, req OriginateRequest) (OriginateResult, error)
	GenerateCallInstructions(ctx context.Context, req CallInstructionsRequest) (string, error)
	ClassifyStatus(providerStatus string) ActiveCallStatus
}

type OriginateRequest struct {
	CallUUID  string
	From      string
	To        string
	BotWsURL  string
	TenantID  string
	CampaignID string
	FirstName string
	Tag       string
	ListID    string

	// StatusCallbackURL / AnswerURL are callback endpoints registered with the
	// provider at dial time; both must embed CallUUID as a query parameter so
	// the webhook ingestion path can recover the authoritative identifier
	// even before the provider's own call id is known.
	StatusCallbackURL string
	AnswerURL         string
}

type OriginateResult struct {
	Success        bool
	CallUUID       string
	ProviderCallID string
}

// ActiveCallStatus mirrors the ActiveCall.status enum of SPEC_FULL/spec.md §3.
type ActiveCallStatus string

const (
	ActiveCallStatusProcessed ActiveCallStatus = "processed"
	ActiveCallStatusRinging   ActiveCallStatus = "ringing"
	ActiveCallStatusOngoing   ActiveCallStatus = "ongoing"
	ActiveCallStatusEnded     ActiveCallStatus = "call-ended"
	ActiveCallStatusCompleted ActiveCallStatus = "completed"
	ActiveCallStatusFailed    ActiveCallStatus = "failed"
	ActiveCallStatusUnknown   ActiveCallStatus = ""
)

// CallInstructionsRequest carries what's needed to build the answer-time
// document (TwiML / Plivo XML) that connects the call to the bot's media
// stream. Dynamic contact fields are forwarded verbatim as template
// variables (spec §4.8).
type CallInstructionsRequest struct {
	CallUUID      string
	BotWsURL      string
	DynamicFields map[string]string
}

// Originate failure kinds (spec §4.2). These are sentinel errors, not a
// custom error type, matching the rest of the codebase's idiom.
var (
	ErrCredentialsMissing = errors.New("telephony: provider credentials missing")
	ErrProviderRejected   = errors.New("telephony: provider rejected the call")
	ErrOriginateTimeout   = errors.New("telephony: originate timed out")
	ErrNetwork            = errors.New("telephony: network error")
)

// SelectProvider implements the auto-selection rule of SPEC_FULL §3: when a
// campaign does not pin a provider, prefer Twilio if configured, else Plivo.
func SelectProvider(requested string, twilioConfigured, plivoConfigured bool) (string, error) {
	switch requested {
	case "twilio", "plivo":
		return requested, nil
	case "":
		if twilioConfigured {
			return "twilio", nil
		}
		if plivoConfigured {
			return "plivo", nil
		}
		return "", errors.New("telephony: no provider configured")
	default:
		return "", errors.New("telephony: unknown provider " + requested)
	}
}
