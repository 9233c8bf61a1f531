// Package runner is the Campaign Runner (spec.md C8): the hot dial loop.
// One Runner instance drives exactly one campaign from Campaign.currentIndex
// to the end of its contact list, re-reading status from the Persistence
// Store on every iteration rather than trusting any in-memory state, so a
// concurrent pause/cancel from another process is observed within one
// iteration.
package runner

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"campaign-engine/internal/admission"
	"campaign-engine/internal/metrics"
	"campaign-engine/internal/store"
	"campaign-engine/internal/telephony"
	"campaign-engine/internal/warmup"
)

// LifecycleController is the subset of C9 the runner drives at loop
// boundaries. Declared locally to avoid an import cycle with
// internal/lifecycle (which itself spawns runners).
type LifecycleController interface {
	Pause(ctx context.Context, campaignID, reason, by string) error
	Complete(ctx context.Context, campaignID string) error
	Fail(ctx context.Context, campaignID, errorMessage string) error
}

// Warmer is the Bot Warmup Client's (C5) WarmOne, declared locally so the
// runner doesn't force every caller to depend on internal/warmup's HTTP
// client just to build a Runner with warmup disabled (nil Warmer skips it).
type Warmer interface {
	WarmOne(ctx context.Context, req warmup.Request) error
}

// HeartbeatWriter is the Heartbeat Manager's (C7) writer half: while Run
// keeps campaignID, it refreshes campaigns.heartbeat until ctx is cancelled.
// Declared locally so the runner doesn't force every caller to depend on
// internal/heartbeat just to build a Runner with heartbeat writing disabled
// (nil Heartbeat skips it).
type HeartbeatWriter interface {
	Run(ctx context.Context, campaignID string)
}

// campaignStore is the subset of *store.Store the dial loop drives.
// Declared locally so tests can exercise the auto-pause branches (balance
// exhaustion, global overload) against an in-memory fake instead of a live
// Postgres connection.
type campaignStore interface {
	GetCampaign(ctx context.Context, campaignID string) (store.Campaign, error)
	GetTenant(ctx context.Context, tenantID string) (store.Tenant, error)
	PersistProgress(ctx context.Context, campaignID string, currentIndex, processed, connected, failed int) error
	GetContactAtOrdinal(ctx context.Context, listID string, ordinal int) (store.Contact, error)
	AtomicUpsertCounter(ctx context.Context, bucketMinute time.Time) (int, error)
	RecordProviderCallID(ctx context.Context, callUUID, providerCallID string) error
}

// admissionController is admission.Controller's Reserve/Release, declared
// locally for the same reason: a fake can return ErrGlobalOverloaded without
// standing up the real Postgres/Redis-backed counters.
type admissionController interface {
	Reserve(ctx context.Context, tenant store.Tenant, call store.ActiveCall) error
	Release(ctx context.Context, tenantID string)
}

type Runner struct {
	store     campaignStore
	admission admissionController
	lifecycle LifecycleController
	providers map[string]telephony.OutboundProvider
	warmer    Warmer
	heartbeat HeartbeatWriter
	logger    *slog.Logger

	maxCallsPerMinute int
	admissionTimeout  time.Duration
	subsequentWait    time.Duration
	webhookBaseURL    string
}

type Config struct {
	MaxCallsPerMinute int
	AdmissionTimeout  time.Duration
	SubsequentWait    time.Duration
	WebhookBaseURL    string
	Warmer            Warmer
	Heartbeat         HeartbeatWriter
}

func New(st *store.Store, adm *admission.Controller, lc LifecycleController, providers map[string]telephony.OutboundProvider, logger *slog.Logger, cfg Config) *Runner {
	return newRunner(st, adm, lc, providers, logger, cfg)
}

// newRunner takes campaignStore/admissionController instead of the concrete
// types so tests can build a Runner around fakes; New (the production
// constructor) only ever passes real *store.Store/*admission.Controller.
func newRunner(st campaignStore, adm admissionController, lc LifecycleController, providers map[string]telephony.OutboundProvider, logger *slog.Logger, cfg Config) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SubsequentWait <= 0 {
		cfg.SubsequentWait = time.Second
	}
	if cfg.AdmissionTimeout <= 0 {
		cfg.AdmissionTimeout = 60 * time.Second
	}
	return &Runner{
		store: st, admission: adm, lifecycle: lc, providers: providers, warmer: cfg.Warmer, heartbeat: cfg.Heartbeat, logger: logger,
		maxCallsPerMinute: cfg.MaxCallsPerMinute, admissionTimeout: cfg.AdmissionTimeout,
		subsequentWait: cfg.SubsequentWait, webhookBaseURL: cfg.WebhookBaseURL,
	}
}

// Run drives the campaign from fromIndex. It returns when the campaign
// leaves the running state (paused/cancelled/completed/failed) or ctx is
// cancelled (container shutdown — the campaign stays "running" with a
// stale heartbeat, to be picked up by the orphan path).
func (r *Runner) Run(ctx context.Context, campaignID string, fromIndex int) {
	log := r.logger.With("campaign_id", campaignID)

	campaign, err := r.store.GetCampaign(ctx, campaignID)
	if err != nil {
		log.Error("runner: failed to load campaign", "error", err)
		return
	}
	tenant, err := r.store.GetTenant(ctx, campaign.TenantID)
	if err != nil {
		log.Error("runner: failed to load tenant", "error", err)
		return
	}

	provider := r.selectProvider(campaign)
	assistantID := assistantIDFromWsURL(campaign.BotWsURL)

	if r.heartbeat != nil {
		go r.heartbeat.Run(ctx, campaignID)
	}

	if r.warmer != nil && fromIndex == 0 {
		if err := r.warmer.WarmOne(ctx, warmup.Request{AssistantID: assistantID, TenantID: campaign.TenantID, CampaignID: campaignID}); err != nil {
			log.Warn("runner: bot warmup failed, proceeding anyway", "assistant_id", assistantID, "error", err)
		}
	}

	connected, failed := campaign.ConnectedCalls, campaign.FailedCalls
	i := fromIndex

	for ; i < campaign.TotalContacts; i++ {
		select {
		case <-ctx.Done():
			_ = r.store.PersistProgress(ctx, campaignID, i, i, connected, failed)
			return
		default:
		}

		fresh, err := r.store.GetCampaign(ctx, campaignID)
		if err != nil {
			log.Error("runner: re-read campaign failed", "error", err)
			return
		}
		if fresh.Status != store.CampaignStatusRunning {
			_ = r.store.PersistProgress(ctx, campaignID, i, i, connected, failed)
			return
		}

		freshTenant, err := r.store.GetTenant(ctx, campaign.TenantID)
		if err != nil {
			log.Error("runner: re-read tenant failed", "error", err)
			return
		}
		if freshTenant.AvailableBalance <= 0 {
			_ = r.store.PersistProgress(ctx, campaignID, i, i, connected, failed)
			_ = r.lifecycle.Pause(ctx, campaignID, "insufficient_balance", "")
			return
		}
		tenant = freshTenant

		if !r.awaitRateWindow(ctx, campaignID) {
			return
		}

		contact, err := r.store.GetContactAtOrdinal(ctx, campaign.ListID, i)
		if err != nil {
			log.Error("runner: contact lookup failed", "ordinal", i, "error", err)
			failed++
			_ = r.store.PersistProgress(ctx, campaignID, i+1, i+1, connected, failed)
			continue
		}

		callUUID := uuid.NewString()
		overloaded, ok := r.reserveWithTimeout(ctx, tenant, store.ActiveCall{
			CallUUID:    callUUID,
			TenantID:    campaign.TenantID,
			CampaignID:  campaignID,
			From:        campaign.FromNumber,
			To:          contact.Number,
			Status:      store.ActiveCallStatusProcessed,
			Provider:    provider.Name(),
			AssistantID: assistantID,
		})
		if overloaded {
			_ = r.store.PersistProgress(ctx, campaignID, i, i, connected, failed)
			_ = r.lifecycle.Pause(ctx, campaignID, "global_overload", "")
			return
		}
		if !ok {
			failed++
			_ = r.store.PersistProgress(ctx, campaignID, i+1, i+1, connected, failed)
			continue
		}

		if err := r.originate(ctx, provider, campaign, callUUID, contact, assistantID); err != nil {
			log.Warn("runner: originate failed", "call_uuid", callUUID, "error", err)
			r.admission.Release(ctx, campaign.TenantID)
			metrics.CallsOriginatedTotal.WithLabelValues(provider.Name(), "failed").Inc()
			failed++
		} else {
			metrics.CallsOriginatedTotal.WithLabelValues(provider.Name(), "connected").Inc()
			connected++
		}
		_ = r.store.PersistProgress(ctx, campaignID, i+1, i+1, connected, failed)

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.subsequentWait):
		}
	}

	final, err := r.store.GetCampaign(ctx, campaignID)
	if err == nil && final.Status == store.CampaignStatusRunning {
		_ = r.lifecycle.Complete(ctx, campaignID)
	}
}

// awaitRateWindow enforces MAX_CALLS_PER_MINUTE across every runner process
// via the shared Postgres bucket counter; on overshoot it sleeps to the next
// minute boundary and re-enters rather than abandoning the contact
// (spec.md §4.8).
func (r *Runner) awaitRateWindow(ctx context.Context, campaignID string) bool {
	for {
		count, err := r.store.AtomicUpsertCounter(ctx, time.Now().UTC())
		if err != nil {
			r.logger.Error("runner: rate bucket increment failed", "campaign_id", campaignID, "error", err)
			return true // fail open: a transient counter error shouldn't stall the whole campaign
		}
		if r.maxCallsPerMinute <= 0 || count <= r.maxCallsPerMinute {
			return true
		}
		wait := time.Until(time.Now().UTC().Truncate(time.Minute).Add(time.Minute))
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
	}
}

// reserveWithTimeout retries admission against ADMISSION_TIMEOUT before
// giving up; a timeout under global saturation surfaces as overloaded=true
// so the caller auto-pauses, per spec.md §4.4/§4.8.
func (r *Runner) reserveWithTimeout(ctx context.Context, tenant store.Tenant, call store.ActiveCall) (overloaded, ok bool) {
	deadline := time.Now().Add(r.admissionTimeout)
	backoff := 250 * time.Millisecond
	for {
		err := r.admission.Reserve(ctx, tenant, call)
		if err == nil {
			return false, true
		}
		if !errors.Is(err, admission.ErrTenantOverloaded) && !errors.Is(err, admission.ErrGlobalOverloaded) {
			return false, false
		}
		if time.Now().After(deadline) {
			return errors.Is(err, admission.ErrGlobalOverloaded), false
		}
		select {
		case <-ctx.Done():
			return false, false
		case <-time.After(backoff):
		}
		if backoff < 5*time.Second {
			backoff *= 2
		}
	}
}

func (r *Runner) originate(ctx context.Context, provider telephony.OutboundProvider, campaign store.Campaign, callUUID string, contact store.Contact, assistantID string) error {
	// GenerateCallInstructions renders the answer-time TwiML/XML; the
	// provider fetches it itself via AnswerURL at ring time, so the runner
	// only needs to confirm it doesn't error before dialing.
	if _, err := provider.GenerateCallInstructions(ctx, telephony.CallInstructionsRequest{
		CallUUID:      callUUID,
		BotWsURL:      campaign.BotWsURL,
		DynamicFields: contactDynamicFields(contact),
	}); err != nil {
		return err
	}

	res, err := provider.Originate(ctx, telephony.OriginateRequest{
		CallUUID:          callUUID,
		From:              campaign.FromNumber,
		To:                contact.Number,
		BotWsURL:          campaign.BotWsURL,
		TenantID:          campaign.TenantID,
		CampaignID:        campaign.CampaignID,
		FirstName:         contact.FirstName,
		Tag:               assistantID,
		ListID:            campaign.ListID,
		StatusCallbackURL: r.webhookBaseURL + "/webhooks/" + provider.Name() + "/status?callUUID=" + callUUID,
		AnswerURL:         r.webhookBaseURL + "/webhooks/" + provider.Name() + "/answer?callUUID=" + callUUID,
	})
	if err != nil {
		return err
	}
	if !res.Success {
		return telephony.ErrProviderRejected
	}
	return r.store.RecordProviderCallID(ctx, callUUID, res.ProviderCallID)
}

// selectProvider looks up the provider lifecycle.Controller.Create already
// resolved and persisted on the campaign at creation time. It never falls
// back to an arbitrary configured provider: a campaign with an unresolvable
// Provider value is a wiring bug upstream, not something to paper over here.
func (r *Runner) selectProvider(campaign store.Campaign) telephony.OutboundProvider {
	return r.providers[campaign.Provider]
}

// assistantIDFromWsURL takes the terminal path component of botWsUrl, e.g.
// wss://host/chat/v2/{assistantId} -> assistantId (spec.md §4.8).
func assistantIDFromWsURL(botWsURL string) string {
	u, err := url.Parse(botWsURL)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// contactDynamicFields forwards every contact field besides the three known
// keys (number, first_name, email) as template variables to the provider's
// instruction generator (spec.md §4.8).
func contactDynamicFields(c store.Contact) map[string]string {
	out := make(map[string]string, len(c.Fields))
	for k, v := range c.Fields {
		out[k] = v
	}
	return out
}
