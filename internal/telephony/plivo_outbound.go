package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const plivoAPIBase = "https://api.plivo.com/v1/Account"

// PlivoOutboundAdapter originates calls via the Plivo REST API.
type PlivoOutboundAdapter struct {
	AuthID     string
	AuthToken  string
	HTTPClient *http.Client
}

func NewPlivoOutboundAdapter(authID, authToken string) *PlivoOutboundAdapter {
	return &PlivoOutboundAdapter{
		AuthID:     authID,
		AuthToken:  authToken,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (a *PlivoOutboundAdapter) Name() string { return "plivo" }

func (a *PlivoOutboundAdapter) Originate(ctx context.Context, req OriginateRequest) (OriginateResult, error) {
	if a.AuthID == "" || a.AuthToken == "" {
		return OriginateResult{}, ErrCredentialsMissing
	}

	payload := map[string]any{
		"from":                req.From,
		"to":                  req.To,
		"answer_url":          withCallUUID(req.AnswerURL, req.CallUUID),
		"answer_method":       "POST",
		"hangup_url":          withCallUUID(req.StatusCallbackURL, req.CallUUID),
		"ring_url":            withCallUUID(req.StatusCallbackURL, req.CallUUID),
		"callback_url":        withCallUUID(req.StatusCallbackURL, req.CallUUID),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return OriginateResult{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	endpoint := fmt.Sprintf("%s/%s/Call/", plivoAPIBase, a.AuthID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return OriginateResult{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(a.AuthID, a.AuthToken)

	resp, err := a.HTTPClient.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return OriginateResult{}, ErrOriginateTimeout
		}
		return OriginateResult{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 300 {
		return OriginateResult{}, fmt.Errorf("%w: status %d: %s", ErrProviderRejected, resp.StatusCode, string(respBody))
	}

	var parsed struct {
		RequestUUID string `json:"request_uuid"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil || parsed.RequestUUID == "" {
		return OriginateResult{}, fmt.Errorf("%w: unexpected response body", ErrProviderRejected)
	}

	return OriginateResult{
		Success:        true,
		CallUUID:       req.CallUUID,
		ProviderCallID: parsed.RequestUUID,
	}, nil
}

func (a *PlivoOutboundAdapter) GenerateCallInstructions(ctx context.Context, req CallInstructionsRequest) (string, error) {
	return RenderPlivoXMLConnectStream(req.CallUUID, req.BotWsURL, req.DynamicFields)
}

func (a *PlivoOutboundAdapter) ClassifyStatus(providerStatus string) ActiveCallStatus {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "queued":
		return ActiveCallStatusProcessed
	case "ringing", "ring":
		return ActiveCallStatusRinging
	case "in-progress", "answer", "answered":
		return ActiveCallStatusOngoing
	case "completed", "normal clearing":
		return ActiveCallStatusCompleted
	case "busy", "failed", "no-answer", "no_answer", "cancel", "cancelled", "canceled", "timeout":
		return ActiveCallStatusFailed
	default:
		return ActiveCallStatusUnknown
	}
}
