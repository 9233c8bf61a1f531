// Package warmup is the Bot Warmup Client (spec.md C5): before a campaign's
// dial loop starts, it asks the assistant platform to pre-warm the pod that
// will handle the campaign's calls, retrying transient failures with
// exponential backoff.
package warmup

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

var ErrWarmupFailed = errors.New("warmup: assistant did not warm up in time")

type Request struct {
	AssistantID string
	TenantID    string
	CampaignID  string
}

// Client calls the assistant platform's warmup endpoint. HTTPClient is
// exported so callers can swap it in tests without a real network call.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Retries    int
	Timeout    time.Duration
}

func New(baseURL string, retries int, timeout time.Duration) *Client {
	if retries <= 0 {
		retries = 3
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{BaseURL: baseURL, HTTPClient: &http.Client{Timeout: 30 * time.Second}, Retries: retries, Timeout: timeout}
}

// WarmOne retries a single assistant's warmup call with exponential
// backoff, bounded by c.Timeout overall.
func (c *Client) WarmOne(ctx context.Context, req Request) error {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	op := func() (struct{}, error) {
		if err := c.warmupCall(ctx, req); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(c.Retries)),
	)
	if err != nil {
		return errors.Join(ErrWarmupFailed, err)
	}
	return nil
}

func (c *Client) warmupCall(ctx context.Context, req Request) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/assistants/"+req.AssistantID+"/warmup", nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	httpReq.Header.Set("X-Tenant-Id", req.TenantID)
	httpReq.Header.Set("X-Campaign-Id", req.CampaignID)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return errors.New("warmup: server error " + resp.Status)
	}
	if resp.StatusCode >= 400 {
		return backoff.Permanent(errors.New("warmup: client error " + resp.Status))
	}
	return nil
}
