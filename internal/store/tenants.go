package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
)

func (s *Store) GetTenant(ctx context.Context, tenantID string) (Tenant, error) {
	const q = `
SELECT tenant_id, available_balance, max_concurrent_calls, caller_numbers,
       last_incoming_aggregation_time, created_at, updated_at
FROM tenants
WHERE tenant_id = $1
`
	return scanTenant(s.db.QueryRowContext(ctx, q, tenantID))
}

func (s *Store) getTenantForUpdate(ctx context.Context, tx *sql.Tx, tenantID string) (Tenant, error) {
	const q = `
SELECT tenant_id, available_balance, max_concurrent_calls, caller_numbers,
       last_incoming_aggregation_time, created_at, updated_at
FROM tenants
WHERE tenant_id = $1
FOR UPDATE
`
	return scanTenant(tx.QueryRowContext(ctx, q, tenantID))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row rowScanner) (Tenant, error) {
	var t Tenant
	var callerNumbers pq.StringArray
	err := row.Scan(
		&t.TenantID,
		&t.AvailableBalance,
		&t.MaxConcurrentCalls,
		&callerNumbers,
		&t.LastIncomingAggregationTime,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Tenant{}, ErrNotFound
		}
		return Tenant{}, err
	}
	t.CallerNumbers = []string(callerNumbers)
	return t, nil
}

// ResolveTenantByCallerNumber finds the tenant owning to, trying the bare,
// 0-prefixed, 91-prefixed and +91-prefixed variants (spec.md §4.6 step 2).
func (s *Store) ResolveTenantByCallerNumber(ctx context.Context, to string) (Tenant, error) {
	variants := phoneVariants(to)
	const q = `
SELECT tenant_id, available_balance, max_concurrent_calls, caller_numbers,
       last_incoming_aggregation_time, created_at, updated_at
FROM tenants
WHERE caller_numbers && $1
LIMIT 1
`
	row := s.db.QueryRowContext(ctx, q, pq.StringArray(variants))
	return scanTenant(row)
}

func phoneVariants(number string) []string {
	bare := number
	for _, prefix := range []string{"+91", "91", "0"} {
		if len(bare) > len(prefix) && bare[:len(prefix)] == prefix {
			bare = bare[len(prefix):]
			break
		}
	}
	return []string{bare, "0" + bare, "91" + bare, "+91" + bare}
}

// DeductBalance atomically decrements availableBalance by credits, returning
// the post-image. Used by the billing engine (C6) inside a wallet-style
// locked transaction; callers are responsible for idempotency (the
// BillingDetail unique-callUUID precheck).
func (s *Store) DeductBalance(ctx context.Context, tx *sql.Tx, tenantID string, credits int64) (int64, error) {
	const q = `
UPDATE tenants
SET available_balance = available_balance - $2, updated_at = $3
WHERE tenant_id = $1
RETURNING available_balance
`
	var bal int64
	if err := tx.QueryRowContext(ctx, q, tenantID, credits, time.Now().UTC()).Scan(&bal); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return bal, nil
}

// LockTenant locks the tenant row for the duration of tx (serializes
// concurrent balance writes).
func (s *Store) LockTenant(ctx context.Context, tx *sql.Tx, tenantID string) (Tenant, error) {
	return s.getTenantForUpdate(ctx, tx, tenantID)
}

// AdvanceIncomingAggregationTime CASes lastIncomingAggregationTime forward,
// used by the billing engine's incoming-aggregation coalescing (spec §4.6).
func (s *Store) AdvanceIncomingAggregationTime(ctx context.Context, tx *sql.Tx, tenantID string, from *time.Time, to time.Time) (bool, error) {
	var res sql.Result
	var err error
	if from == nil {
		const q = `UPDATE tenants SET last_incoming_aggregation_time = $2 WHERE tenant_id = $1 AND last_incoming_aggregation_time IS NULL`
		res, err = tx.ExecContext(ctx, q, tenantID, to)
	} else {
		const q = `UPDATE tenants SET last_incoming_aggregation_time = $3 WHERE tenant_id = $1 AND last_incoming_aggregation_time = $2`
		res, err = tx.ExecContext(ctx, q, tenantID, *from, to)
	}
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
