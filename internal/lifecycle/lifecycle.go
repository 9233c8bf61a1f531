// Package lifecycle is the Lifecycle Controller (spec.md C9): the campaign
// state machine. Every transition goes through store.AtomicUpdateCampaignStatus
// so two controllers racing on the same campaign (a manual pause racing the
// runner's own auto-pause, two schedulers firing) can't both win.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"campaign-engine/internal/billing"
	"campaign-engine/internal/store"
	"campaign-engine/internal/telephony"
)

var (
	ErrInvalidTransition = errors.New("lifecycle: invalid transition")
	ErrDuplicateName     = errors.New("lifecycle: campaign name already exists for tenant")
	ErrInvalidArgument   = errors.New("lifecycle: invalid argument")
)

// Spawner starts a Campaign Runner for campaignID from fromIndex. It is
// supplied by the process wiring (cmd/api or a worker entrypoint) rather
// than imported directly, so this package never depends on internal/runner.
type Spawner interface {
	Spawn(ctx context.Context, campaignID string, fromIndex int)
}

type Controller struct {
	store            *store.Store
	billing          *billing.Engine
	spawner          Spawner
	twilioConfigured bool
	plivoConfigured  bool
	clock            func() time.Time
}

// New builds a Controller. twilioConfigured/plivoConfigured tell Create
// which providers SelectProvider may auto-pick between; they mirror the
// same provider set the process wired into the Campaign Runner.
func New(st *store.Store, be *billing.Engine, spawner Spawner, twilioConfigured, plivoConfigured bool) *Controller {
	return &Controller{
		store: st, billing: be, spawner: spawner,
		twilioConfigured: twilioConfigured, plivoConfigured: plivoConfigured,
		clock: time.Now,
	}
}

type CreateRequest struct {
	TenantID                string
	Name                    string
	ListID                  string
	FromNumber              string
	BotWsURL                string
	Provider                string
	ScheduledTime           *time.Time
	EstimatedSecondsPerCall int
}

// Create validates the unique (tenantId, name) invariant and the balance
// warning heuristic, then inserts the campaign as scheduled. When no
// scheduledTime is given it is set to now, so the Scheduler (C11) starts
// the campaign on its next scan; Create itself never moves it to running.
func (c *Controller) Create(ctx context.Context, req CreateRequest) (store.Campaign, error) {
	if req.TenantID == "" || req.Name == "" || req.ListID == "" || req.BotWsURL == "" {
		return store.Campaign{}, ErrInvalidArgument
	}

	if _, err := c.store.FindByTenantAndName(ctx, req.TenantID, req.Name); err == nil {
		return store.Campaign{}, ErrDuplicateName
	} else if !errors.Is(err, store.ErrNotFound) {
		return store.Campaign{}, err
	}

	total, err := c.store.CountContacts(ctx, req.ListID)
	if err != nil {
		return store.Campaign{}, err
	}

	tenant, err := c.store.GetTenant(ctx, req.TenantID)
	if err != nil {
		return store.Campaign{}, err
	}
	estimate := int64(total) * int64(req.EstimatedSecondsPerCall)
	belowEstimate := tenant.AvailableBalance < estimate // creation is allowed either way; the flag is neither returned nor logged

	// Provider is resolved once, here, and persisted on the campaign row so
	// it's fixed for the campaign's lifetime: an auto campaign never switches
	// providers mid-run just because Runner.selectProvider re-resolved it.
	resolvedProvider, err := telephony.SelectProvider(req.Provider, c.twilioConfigured, c.plivoConfigured)
	if err != nil {
		return store.Campaign{}, fmt.Errorf("%w: %s", ErrInvalidArgument, err)
	}

	scheduledTime := req.ScheduledTime
	if scheduledTime == nil {
		now := c.clock().UTC()
		scheduledTime = &now
	}

	campaign := store.Campaign{
		CampaignID:    newID(),
		TenantID:      req.TenantID,
		Name:          req.Name,
		ListID:        req.ListID,
		FromNumber:    req.FromNumber,
		BotWsURL:      req.BotWsURL,
		Provider:      resolvedProvider,
		TotalContacts: total,
		ScheduledTime: scheduledTime,
		Status:        store.CampaignStatusScheduled, // C11 promotes scheduled->running uniformly, even for "run now"
	}

	if err := c.store.InsertCampaign(ctx, campaign); err != nil {
		return store.Campaign{}, err
	}
	_ = belowEstimate
	return campaign, nil
}

// Start transitions scheduled -> running and spawns the runner from index 0.
// Invoked by the Scheduler (C11) when scheduledTime has passed.
func (c *Controller) Start(ctx context.Context, campaignID string) error {
	updated, ok, err := c.store.AtomicUpdateCampaignStatus(ctx, campaignID,
		[]store.CampaignStatus{store.CampaignStatusScheduled}, store.CampaignStatusRunning, nil)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: cannot start campaign not in scheduled state", ErrInvalidTransition)
	}
	c.spawner.Spawn(ctx, updated.CampaignID, updated.CurrentIndex)
	return nil
}

// Pause is used both for manual pause and C8's auto-pause
// (insufficient_balance, overload).
func (c *Controller) Pause(ctx context.Context, campaignID, reason, by string) error {
	now := c.clock().UTC()
	_, ok, err := c.store.AtomicUpdateCampaignStatus(ctx, campaignID,
		[]store.CampaignStatus{store.CampaignStatusRunning}, store.CampaignStatusPaused,
		func(camp *store.Campaign) {
			camp.PausedAt = &now
			if by != "" {
				camp.PausedBy = &by
			}
			if reason != "" {
				camp.PauseReason = &reason
			}
		})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: cannot pause campaign not running", ErrInvalidTransition)
	}
	return nil
}

// Resume re-reads currentIndex from the store (never from in-memory state)
// and spawns a fresh runner from there, per spec.md §4.9.
func (c *Controller) Resume(ctx context.Context, campaignID string) error {
	now := c.clock().UTC()
	updated, ok, err := c.store.AtomicUpdateCampaignStatus(ctx, campaignID,
		[]store.CampaignStatus{store.CampaignStatusPaused}, store.CampaignStatusRunning,
		func(camp *store.Campaign) { camp.ResumedAt = &now })
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: cannot resume campaign not paused", ErrInvalidTransition)
	}
	c.spawner.Spawn(ctx, updated.CampaignID, updated.CurrentIndex)
	return nil
}

// Cancel is legal from scheduled, running or paused.
func (c *Controller) Cancel(ctx context.Context, campaignID string) error {
	now := c.clock().UTC()
	updated, ok, err := c.store.AtomicUpdateCampaignStatus(ctx, campaignID,
		[]store.CampaignStatus{store.CampaignStatusScheduled, store.CampaignStatusRunning, store.CampaignStatusPaused},
		store.CampaignStatusCancelled,
		func(camp *store.Campaign) { camp.CancelledAt = &now })
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: cannot cancel a terminal campaign", ErrInvalidTransition)
	}
	return c.finalizeBilling(ctx, updated)
}

// Complete is called by C8 after it exhausts the contact list while still
// running.
func (c *Controller) Complete(ctx context.Context, campaignID string) error {
	updated, ok, err := c.store.AtomicUpdateCampaignStatus(ctx, campaignID,
		[]store.CampaignStatus{store.CampaignStatusRunning}, store.CampaignStatusCompleted, nil)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: cannot complete a campaign not running", ErrInvalidTransition)
	}
	return c.finalizeBilling(ctx, updated)
}

// Fail is called by C8 on a fatal exception in the dial loop.
func (c *Controller) Fail(ctx context.Context, campaignID, errorMessage string) error {
	updated, ok, err := c.store.AtomicUpdateCampaignStatus(ctx, campaignID,
		[]store.CampaignStatus{store.CampaignStatusRunning}, store.CampaignStatusFailed,
		func(camp *store.Campaign) { camp.ErrorMessage = &errorMessage })
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: cannot fail a campaign not running", ErrInvalidTransition)
	}
	return c.finalizeBilling(ctx, updated)
}

// finalizeBilling triggers the aggregate BillingHistoryEntry exactly once,
// gated by the isBalanceUpdated CAS baked into AtomicUpdateCampaignStatus's
// caller contract: we flip it here, inside the same termination call, and
// only proceed to write the ledger row if we're the one who flipped it.
func (c *Controller) finalizeBilling(ctx context.Context, campaign store.Campaign) error {
	if campaign.IsBalanceUpdated {
		return nil
	}
	flipped := false
	_, _, err := c.store.AtomicUpdateCampaignStatus(ctx, campaign.CampaignID,
		[]store.CampaignStatus{campaign.Status}, campaign.Status,
		func(camp *store.Campaign) {
			if !camp.IsBalanceUpdated {
				camp.IsBalanceUpdated = true
				flipped = true
			}
		})
	if err != nil {
		return err
	}
	if !flipped {
		return nil
	}

	details, err := c.store.GetBillingDetailsForCampaign(ctx, campaign.CampaignID)
	if err != nil {
		return err
	}
	var total int64
	for _, d := range details {
		total += d.Credits
	}
	desc := fmt.Sprintf("campaign %s: %d calls, %d credits", campaign.Name, len(details), total)
	return c.billing.ApplyCampaignAggregate(ctx, campaign.TenantID, campaign.CampaignID, desc, total)
}

func newID() string {
	return "camp_" + uuid.NewString()
}
