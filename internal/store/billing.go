package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// InsertHangupRecord is idempotent on callUUID: a webhook retried by the
// provider, or replayed after a container failover, must not double-write
// (spec.md §4.3).
func (s *Store) InsertHangupRecord(ctx context.Context, r HangupRecord) error {
	const q = `
INSERT INTO hangup_records (
  call_uuid, to_number, from_number, duration, status, hangup_cause,
  start_time, answer_time, end_time, recording_url, source, provider,
  tenant_id, campaign_id, assistant_id, contact_meta, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
ON CONFLICT (call_uuid) DO NOTHING
`
	meta := jsonOrEmpty(r.ContactMeta)
	now := r.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, q,
		r.CallUUID, r.To, r.From, r.Duration, r.Status, r.HangupCause,
		r.StartTime, r.AnswerTime, r.EndTime, nullIfEmpty(r.RecordingURL), r.Source, r.Provider,
		r.TenantID, r.CampaignID, nullIfEmpty(r.AssistantID), meta, now,
	)
	return err
}

func (s *Store) SetRecordingURL(ctx context.Context, callUUID, recordingURL string) error {
	const q = `UPDATE hangup_records SET recording_url = $2 WHERE call_uuid = $1`
	_, err := s.db.ExecContext(ctx, q, callUUID, recordingURL)
	return err
}

// HasBillingDetail is the idempotency precheck used before writing a new
// BillingDetail for a call (spec.md §4.6 step 1: "check for an existing
// BillingDetail keyed by callUUID before inserting").
func (s *Store) HasBillingDetail(ctx context.Context, tx *sql.Tx, callUUID string) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx, `SELECT exists(SELECT 1 FROM billing_details WHERE call_uuid = $1)`, callUUID).Scan(&exists)
	return exists, err
}

func (s *Store) InsertBillingDetail(ctx context.Context, tx *sql.Tx, d BillingDetail) error {
	const q = `
INSERT INTO billing_details (
  call_uuid, tenant_id, event_time, type, duration, from_number, to_number,
  credits, ai_credits, telephony_credits, campaign_id, campaign_name, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (call_uuid) DO NOTHING
`
	now := d.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	_, err := tx.ExecContext(ctx, q,
		d.CallUUID, d.TenantID, d.EventTime, d.Type, d.Duration, d.From, d.To,
		d.Credits, d.AICredits, d.TelephonyCredits, nullIfEmpty(d.CampaignID), nullIfEmpty(d.CampaignName), now,
	)
	return err
}

// InsertBillingHistoryEntry writes a ledger row. Per-call debits pass
// isCampaignAggregate=false; the single campaign-level rollup row (gated by
// Campaign.isBalanceUpdated CAS) passes true, and the partial unique index
// on (campaign_id) WHERE is_campaign_aggregate enforces at-most-one at the
// schema level too (spec.md §4.6 step 3).
func (s *Store) InsertBillingHistoryEntry(ctx context.Context, tx *sql.Tx, e BillingHistoryEntry) error {
	const q = `
INSERT INTO billing_history_entries (
  id, tenant_id, balance_count, new_available_balance, description,
  transaction_type, campaign_id, call_uuid, is_campaign_aggregate, event_date, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`
	now := e.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	_, err := tx.ExecContext(ctx, q,
		e.ID, e.TenantID, e.BalanceCount, e.NewAvailableBalance, e.Description,
		e.TransactionType, nullIfEmpty(e.CampaignID), nullIfEmpty(e.CallUUID), e.IsCampaignAggregate, e.EventDate, now,
	)
	return err
}

// ListBillingHistory powers the Collaborator API's getAggregatedHistory,
// cursor-paginated on created_at+id.
func (s *Store) ListBillingHistory(ctx context.Context, tenantID string, afterCreatedAt time.Time, afterID string, limit int) ([]BillingHistoryEntry, error) {
	const q = `
SELECT id, tenant_id, balance_count, new_available_balance, description,
       transaction_type, coalesce(campaign_id,''), coalesce(call_uuid,''),
       is_campaign_aggregate, event_date, created_at
FROM billing_history_entries
WHERE tenant_id = $1 AND (created_at, id) > ($2, $3)
ORDER BY created_at ASC, id ASC
LIMIT $4
`
	rows, err := s.db.QueryContext(ctx, q, tenantID, afterCreatedAt, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BillingHistoryEntry
	for rows.Next() {
		var e BillingHistoryEntry
		if err := rows.Scan(
			&e.ID, &e.TenantID, &e.BalanceCount, &e.NewAvailableBalance, &e.Description,
			&e.TransactionType, &e.CampaignID, &e.CallUUID, &e.IsCampaignAggregate, &e.EventDate, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) GetBillingDetailsForCampaign(ctx context.Context, campaignID string) ([]BillingDetail, error) {
	const q = `
SELECT call_uuid, tenant_id, event_time, type, duration, from_number, to_number,
       credits, ai_credits, telephony_credits, coalesce(campaign_id,''), coalesce(campaign_name,''), created_at
FROM billing_details
WHERE campaign_id = $1
`
	rows, err := s.db.QueryContext(ctx, q, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BillingDetail
	for rows.Next() {
		var d BillingDetail
		if err := rows.Scan(
			&d.CallUUID, &d.TenantID, &d.EventTime, &d.Type, &d.Duration, &d.From, &d.To,
			&d.Credits, &d.AICredits, &d.TelephonyCredits, &d.CampaignID, &d.CampaignName, &d.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func jsonOrEmpty(m map[string]string) []byte {
	if len(m) == 0 {
		return []byte("{}")
	}
	b, err := json.Marshal(m)
	if err != nil {
		return []byte("{}")
	}
	return b
}
