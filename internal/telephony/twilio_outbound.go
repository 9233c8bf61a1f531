package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// TwilioOutboundAdapter originates calls via the Twilio REST API. It never
// retries; the caller (internal/runner) owns retry/backoff policy.
type TwilioOutboundAdapter struct {
	AccountSID string
	AuthToken  string
	HTTPClient *http.Client
}

func NewTwilioOutboundAdapter(accountSID, authToken string) *TwilioOutboundAdapter {
	return &TwilioOutboundAdapter{
		AccountSID: accountSID,
		AuthToken:  authToken,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (a *TwilioOutboundAdapter) Name() string { return "twilio" }

func (a *TwilioOutboundAdapter) Originate(ctx context.Context, req OriginateRequest) (OriginateResult, error) {
	if a.AccountSID == "" || a.AuthToken == "" {
		return OriginateResult{}, ErrCredentialsMissing
	}

	form := url.Values{}
	form.Set("From", req.From)
	form.Set("To", req.To)
	form.Set("Url", withCallUUID(req.AnswerURL, req.CallUUID))
	form.Set("StatusCallback", withCallUUID(req.StatusCallbackURL, req.CallUUID))
	form.Set("StatusCallbackEvent", "initiated ringing answered completed")

	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls.json", twilioAPIBase, a.AccountSID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return OriginateResult{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.SetBasicAuth(a.AccountSID, a.AuthToken)

	resp, err := a.HTTPClient.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return OriginateResult{}, ErrOriginateTimeout
		}
		return OriginateResult{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 300 {
		return OriginateResult{}, fmt.Errorf("%w: status %d: %s", ErrProviderRejected, resp.StatusCode, string(body))
	}

	var parsed struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.SID == "" {
		return OriginateResult{}, fmt.Errorf("%w: unexpected response body", ErrProviderRejected)
	}
	sid := parsed.SID

	return OriginateResult{
		Success:        true,
		CallUUID:       req.CallUUID,
		ProviderCallID: sid,
	}, nil
}

// GenerateCallInstructions returns the TwiML document served from the
// answer-time webhook, connecting the call to the bot's media stream.
func (a *TwilioOutboundAdapter) GenerateCallInstructions(ctx context.Context, req CallInstructionsRequest) (string, error) {
	return RenderTwiMLConnectStream(req.CallUUID, req.BotWsURL, req.DynamicFields)
}

func (a *TwilioOutboundAdapter) ClassifyStatus(providerStatus string) ActiveCallStatus {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "queued", "initiated":
		return ActiveCallStatusProcessed
	case "ringing":
		return ActiveCallStatusRinging
	case "in-progress", "answered":
		return ActiveCallStatusOngoing
	case "completed":
		return ActiveCallStatusCompleted
	case "busy", "failed", "no-answer", "canceled", "cancelled":
		return ActiveCallStatusFailed
	default:
		return ActiveCallStatusUnknown
	}
}

func withCallUUID(rawURL, callUUID string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set("callUUID", callUUID)
	u.RawQuery = q.Encode()
	return u.String()
}

