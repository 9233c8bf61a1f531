package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// CountInFlight returns the number of active calls in an admission-counted
// status for tenantID (tenant cap) and, when tenantID is "", for every
// tenant (global cap). Used by the admission controller's row-per-call
// reconciliation path (spec.md §4.4) alongside the Redis fast path.
func (s *Store) CountInFlight(ctx context.Context, tx *sql.Tx, tenantID string) (int, error) {
	var n int
	var err error
	if tenantID == "" {
		const q = `SELECT count(*) FROM active_calls WHERE status IN ('processed','ringing','ongoing')`
		err = tx.QueryRowContext(ctx, q).Scan(&n)
	} else {
		const q = `SELECT count(*) FROM active_calls WHERE tenant_id = $1 AND status IN ('processed','ringing','ongoing')`
		err = tx.QueryRowContext(ctx, q, tenantID).Scan(&n)
	}
	return n, err
}

// ReserveActiveCall is the atomic-at-insert admission reservation (spec.md
// §4.4): a row with status=processed is written inside the same
// transaction as the tenant/global count check, closing the race window
// between "check count" and "begin dial".
func (s *Store) ReserveActiveCall(ctx context.Context, tx *sql.Tx, call ActiveCall) error {
	const q = `
INSERT INTO active_calls (
  call_uuid, provider_call_id, tenant_id, campaign_id, from_number, to_number,
  status, provider, assistant_id, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`
	now := call.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	_, err := tx.ExecContext(ctx, q,
		call.CallUUID, nullIfEmpty(call.ProviderCallID), call.TenantID, call.CampaignID,
		call.From, call.To, call.Status, call.Provider, nullIfEmpty(call.AssistantID), now,
	)
	return err
}

// RecordProviderCallID attaches the provider-native id once it comes back
// from Originate; the callUUID remains authoritative (spec.md §4.2).
func (s *Store) RecordProviderCallID(ctx context.Context, callUUID, providerCallID string) error {
	return WithTx(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE active_calls SET provider_call_id = $2 WHERE call_uuid = $1`, callUUID, providerCallID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO provider_call_lookup (provider_call_id, call_uuid) VALUES ($1,$2)
ON CONFLICT (provider_call_id) DO NOTHING
`, providerCallID, callUUID)
		return err
	})
}

// ResolveCallUUID maps a provider-native call id back to the authoritative
// callUUID, for webhooks that only carry the provider's own identifier.
func (s *Store) ResolveCallUUID(ctx context.Context, providerCallID string) (string, error) {
	var callUUID string
	err := s.db.QueryRowContext(ctx, `SELECT call_uuid FROM provider_call_lookup WHERE provider_call_id = $1`, providerCallID).Scan(&callUUID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return callUUID, nil
}

// TransitionActiveCall advances status monotonically: a later-arriving
// earlier-phase webhook (e.g. a delayed "ringing" after "ongoing" already
// landed) is ignored (spec.md §5 ordering guarantees).
var activeCallPhaseOrder = map[ActiveCallStatus]int{
	ActiveCallStatusProcessed: 0,
	ActiveCallStatusRinging:   1,
	ActiveCallStatusOngoing:   2,
	ActiveCallStatusEnded:     3,
	ActiveCallStatusCompleted: 4,
	ActiveCallStatusFailed:    4,
}

func (s *Store) TransitionActiveCall(ctx context.Context, callUUID string, next ActiveCallStatus, at time.Time) (bool, error) {
	var applied bool
	err := WithTx(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		var current ActiveCallStatus
		if err := tx.QueryRowContext(ctx, `SELECT status FROM active_calls WHERE call_uuid = $1 FOR UPDATE`, callUUID).Scan(&current); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if activeCallPhaseOrder[next] <= activeCallPhaseOrder[current] {
			applied = false
			return nil
		}

		var q string
		var args []any
		switch next {
		case ActiveCallStatusRinging:
			q = `UPDATE active_calls SET status = $2, ring_time = $3 WHERE call_uuid = $1`
			args = []any{callUUID, next, at}
		case ActiveCallStatusOngoing:
			q = `UPDATE active_calls SET status = $2, stream_start_time = $3 WHERE call_uuid = $1`
			args = []any{callUUID, next, at}
		case ActiveCallStatusEnded, ActiveCallStatusCompleted, ActiveCallStatusFailed:
			q = `UPDATE active_calls SET status = $2, end_time = $3 WHERE call_uuid = $1`
			args = []any{callUUID, next, at}
		default:
			q = `UPDATE active_calls SET status = $2 WHERE call_uuid = $1`
			args = []any{callUUID, next}
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}

func (s *Store) GetActiveCall(ctx context.Context, callUUID string) (ActiveCall, error) {
	const q = `
SELECT call_uuid, coalesce(provider_call_id,''), tenant_id, campaign_id, from_number, to_number,
       status, provider, coalesce(assistant_id,''), created_at, ring_time, stream_start_time, end_time
FROM active_calls WHERE call_uuid = $1
`
	var c ActiveCall
	err := s.db.QueryRowContext(ctx, q, callUUID).Scan(
		&c.CallUUID, &c.ProviderCallID, &c.TenantID, &c.CampaignID, &c.From, &c.To,
		&c.Status, &c.Provider, &c.AssistantID, &c.CreatedAt, &c.RingTime, &c.StreamStartTime, &c.EndTime,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ActiveCall{}, ErrNotFound
		}
		return ActiveCall{}, err
	}
	return c, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
