// Package billing is the Billing Engine (spec.md C6): turns a normalized
// HangupRecord into a debited tenant balance, an idempotent BillingDetail
// row and, for calls without a campaignId, a per-call ledger entry, using a
// check-then-lock-then-write shape inside one transaction.
//
// ApplyCallRecord handles per-call debits. ApplyCampaignAggregate writes the
// once-per-campaign ledger entry without changing the balance (the calls
// were already debited one by one), and ApplyIncomingAggregate debits one
// coalesced entry per incoming-call window.
package billing

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"campaign-engine/internal/balancestream"
	"campaign-engine/internal/callnorm"
	"campaign-engine/internal/metrics"
	"campaign-engine/internal/store"
)

var (
	ErrInvalidArgument = errors.New("billing: invalid argument")
)

// RateCard converts call seconds into credits. The production rate table
// (per-minute AI + telephony pricing, matching internal/pricing's tiered
// model) is supplied by the caller; billing itself is pricing-agnostic.
type RateCard interface {
	Price(ctx context.Context, tenantID, destination string, durationSeconds int, provider string) (aiCredits, telephonyCredits int64)
}

// ledgerStore is the subset of *store.Store the Billing Engine drives inside
// a transaction. Declared locally (mirroring runner.LifecycleController/
// runner.Warmer) so tests can exercise ApplyCallRecord's branching logic —
// the double-billing fix, idempotency short-circuit — against an in-memory
// fake instead of a live Postgres connection.
type ledgerStore interface {
	HasBillingDetail(ctx context.Context, tx *sql.Tx, callUUID string) (bool, error)
	LockTenant(ctx context.Context, tx *sql.Tx, tenantID string) (store.Tenant, error)
	DeductBalance(ctx context.Context, tx *sql.Tx, tenantID string, credits int64) (int64, error)
	InsertBillingDetail(ctx context.Context, tx *sql.Tx, d store.BillingDetail) error
	InsertBillingHistoryEntry(ctx context.Context, tx *sql.Tx, e store.BillingHistoryEntry) error
	AdvanceIncomingAggregationTime(ctx context.Context, tx *sql.Tx, tenantID string, from *time.Time, to time.Time) (bool, error)
}

type Engine struct {
	db        *sql.DB
	store     ledgerStore
	rates     RateCard
	publisher *balancestream.Publisher // optional; nil disables C12 fanout
	clock     func() time.Time

	// withTx runs fn inside a transaction; defaults to store.WithTx. Tests
	// override it to call fn directly against a nil *sql.Tx, since the fake
	// ledgerStore never dereferences tx.
	withTx func(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx *sql.Tx) error) error
}

func New(db *sql.DB, st *store.Store, rates RateCard) *Engine {
	return &Engine{db: db, store: st, rates: rates, clock: time.Now, withTx: store.WithTx}
}

// WithPublisher wires the Balance Stream fanout (spec.md §4.6 step 7).
func (e *Engine) WithPublisher(p *balancestream.Publisher) *Engine {
	e.publisher = p
	return e
}

func (e *Engine) publish(ctx context.Context, tenantID string, balance int64, reason string) {
	if e.publisher == nil {
		return
	}
	_ = e.publisher.Publish(ctx, balancestream.Event{
		TenantID: tenantID, Balance: balance, Reason: reason, Timestamp: e.clock().UTC(),
	})
}

// ApplyCallRecord debits tenantID for one call, idempotently on callUUID
// (spec.md §4.6 step 1). Calling it twice for the same call is a no-op the
// second time.
func (e *Engine) ApplyCallRecord(ctx context.Context, r callnorm.HangupRecord) error {
	if r.CallUUID == "" || r.TenantID == "" {
		return ErrInvalidArgument
	}
	ai, tel := e.rates.Price(ctx, r.TenantID, r.To, r.Duration, r.Provider)
	credits := ai + tel
	now := e.clock().UTC()

	return e.withTx(ctx, e.db, func(ctx context.Context, tx *sql.Tx) error {
		if exists, err := e.store.HasBillingDetail(ctx, tx, r.CallUUID); err != nil {
			return err
		} else if exists {
			return nil
		}

		tenant, err := e.store.LockTenant(ctx, tx, r.TenantID)
		if err != nil {
			return err
		}

		newBalance, err := e.store.DeductBalance(ctx, tx, tenant.TenantID, credits)
		if err != nil {
			return err
		}

		if err := e.store.InsertBillingDetail(ctx, tx, store.BillingDetail{
			CallUUID:         r.CallUUID,
			TenantID:         r.TenantID,
			EventTime:        now,
			Type:             "call",
			Duration:         r.Duration,
			From:             r.From,
			To:               r.To,
			Credits:          credits,
			AICredits:        ai,
			TelephonyCredits: tel,
			CampaignID:       r.CampaignID,
			CreatedAt:        now,
		}); err != nil {
			return err
		}

		// Campaign calls don't get their own ledger line: C9's finalizeBilling
		// writes one aggregate BillingHistoryEntry when the campaign terminates
		// (spec.md §4.6 steps 5-6). Writing one here too would double-count
		// every campaign call in the ledger.
		if r.CampaignID == "" {
			if err := e.store.InsertBillingHistoryEntry(ctx, tx, store.BillingHistoryEntry{
				ID:                  uuid.NewString(),
				TenantID:            r.TenantID,
				BalanceCount:        credits,
				NewAvailableBalance: newBalance,
				Description:         "call " + r.CallUUID,
				TransactionType:     store.BillingTransactionDebit,
				CampaignID:          r.CampaignID,
				CallUUID:            r.CallUUID,
				IsCampaignAggregate: false,
				EventDate:           now,
			}); err != nil {
				return err
			}
		}
		e.publish(ctx, r.TenantID, newBalance, "call")
		metrics.CallsBilledTotal.WithLabelValues(r.Provider).Inc()
		metrics.CreditsDeductedTotal.WithLabelValues("ai").Add(float64(ai))
		metrics.CreditsDeductedTotal.WithLabelValues("telephony").Add(float64(tel))
		return nil
	})
}

// ApplyCampaignAggregate writes the single roll-up ledger entry for a
// completed/cancelled campaign, gated by the CAS on
// Campaign.isBalanceUpdated (spec.md §4.6 step 3): the caller must have
// already won that CAS via store.AtomicUpdateCampaignStatus before calling
// this, so at most one aggregate entry is ever written per campaign (the
// partial unique index on billing_history_entries backs this up).
func (e *Engine) ApplyCampaignAggregate(ctx context.Context, tenantID, campaignID, description string, totalCredits int64) error {
	if tenantID == "" || campaignID == "" {
		return ErrInvalidArgument
	}
	now := e.clock().UTC()
	return e.withTx(ctx, e.db, func(ctx context.Context, tx *sql.Tx) error {
		tenant, err := e.store.LockTenant(ctx, tx, tenantID)
		if err != nil {
			return err
		}
		if err := e.store.InsertBillingHistoryEntry(ctx, tx, store.BillingHistoryEntry{
			ID:                  uuid.NewString(),
			TenantID:            tenantID,
			BalanceCount:        totalCredits,
			NewAvailableBalance: tenant.AvailableBalance,
			Description:         description,
			TransactionType:     store.BillingTransactionDebit,
			CampaignID:          campaignID,
			IsCampaignAggregate: true,
			EventDate:           now,
		}); err != nil {
			return err
		}
		e.publish(ctx, tenantID, tenant.AvailableBalance, "campaign_aggregate")
		return nil
	})
}

// ApplyIncomingAggregate coalesces incoming-call billing into a single
// periodic ledger entry per tenant (spec.md §4.6's incoming-call
// aggregation), CASing lastIncomingAggregationTime forward so two
// concurrent aggregation sweeps can't double-bill the same window.
func (e *Engine) ApplyIncomingAggregate(ctx context.Context, tenantID string, windowEnd time.Time, credits int64, description string) error {
	if tenantID == "" {
		return ErrInvalidArgument
	}
	return e.withTx(ctx, e.db, func(ctx context.Context, tx *sql.Tx) error {
		tenant, err := e.store.LockTenant(ctx, tx, tenantID)
		if err != nil {
			return err
		}
		advanced, err := e.store.AdvanceIncomingAggregationTime(ctx, tx, tenantID, tenant.LastIncomingAggregationTime, windowEnd)
		if err != nil {
			return err
		}
		if !advanced {
			return nil
		}
		newBalance, err := e.store.DeductBalance(ctx, tx, tenantID, credits)
		if err != nil {
			return err
		}
		if err := e.store.InsertBillingHistoryEntry(ctx, tx, store.BillingHistoryEntry{
			ID:                  uuid.NewString(),
			TenantID:            tenantID,
			BalanceCount:        credits,
			NewAvailableBalance: newBalance,
			Description:         description,
			TransactionType:     store.BillingTransactionDebit,
			IsCampaignAggregate: false,
			EventDate:           windowEnd,
		}); err != nil {
			return err
		}
		e.publish(ctx, tenantID, newBalance, "incoming_aggregate")
		return nil
	})
}
