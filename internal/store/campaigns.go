package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const campaignColumns = `
campaign_id, tenant_id, name, list_id, from_number, bot_ws_url, provider, status,
current_index, total_contacts, processed_contacts, connected_calls, failed_calls,
heartbeat, last_activity, container_id, scheduled_time, paused_at, paused_by,
pause_reason, resumed_at, is_balance_updated, billing_processed_at, error_message,
cancelled_at, created_at, updated_at
`

func scanCampaign(row rowScanner) (Campaign, error) {
	var c Campaign
	var provider, containerID, pausedBy, pauseReason, errorMessage sql.NullString
	err := row.Scan(
		&c.CampaignID, &c.TenantID, &c.Name, &c.ListID, &c.FromNumber, &c.BotWsURL,
		&provider, &c.Status,
		&c.CurrentIndex, &c.TotalContacts, &c.ProcessedContacts, &c.ConnectedCalls, &c.FailedCalls,
		&c.Heartbeat, &c.LastActivity, &containerID, &c.ScheduledTime, &c.PausedAt, &pausedBy,
		&pauseReason, &c.ResumedAt, &c.IsBalanceUpdated, &c.BillingProcessedAt, &errorMessage,
		&c.CancelledAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Campaign{}, ErrNotFound
		}
		return Campaign{}, err
	}
	c.Provider = provider.String
	if containerID.Valid {
		c.ContainerID = &containerID.String
	}
	if pausedBy.Valid {
		c.PausedBy = &pausedBy.String
	}
	if pauseReason.Valid {
		c.PauseReason = &pauseReason.String
	}
	if errorMessage.Valid {
		c.ErrorMessage = &errorMessage.String
	}
	return c, nil
}

func (s *Store) GetCampaign(ctx context.Context, campaignID string) (Campaign, error) {
	q := `SELECT ` + campaignColumns + ` FROM campaigns WHERE campaign_id = $1`
	return scanCampaign(s.db.QueryRowContext(ctx, q, campaignID))
}

func (s *Store) getCampaignForUpdateTx(ctx context.Context, tx *sql.Tx, campaignID string) (Campaign, error) {
	q := `SELECT ` + campaignColumns + ` FROM campaigns WHERE campaign_id = $1 FOR UPDATE`
	return scanCampaign(tx.QueryRowContext(ctx, q, campaignID))
}

// FindByTenantAndName enforces the "unique (tenantId, name)" invariant at
// create time (spec.md §4.9).
func (s *Store) FindByTenantAndName(ctx context.Context, tenantID, name string) (Campaign, error) {
	q := `SELECT ` + campaignColumns + ` FROM campaigns WHERE tenant_id = $1 AND name = $2`
	return scanCampaign(s.db.QueryRowContext(ctx, q, tenantID, name))
}

func (s *Store) InsertCampaign(ctx context.Context, c Campaign) error {
	const q = `
INSERT INTO campaigns (
  campaign_id, tenant_id, name, list_id, from_number, bot_ws_url, provider, status,
  current_index, total_contacts, processed_contacts, connected_calls, failed_calls,
  scheduled_time, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
)
`
	now := time.Now().UTC()
	provider := sql.NullString{String: c.Provider, Valid: c.Provider != ""}
	_, err := s.db.ExecContext(ctx, q,
		c.CampaignID, c.TenantID, c.Name, c.ListID, c.FromNumber, c.BotWsURL, provider, c.Status,
		c.CurrentIndex, c.TotalContacts, c.ProcessedContacts, c.ConnectedCalls, c.FailedCalls,
		c.ScheduledTime, now, now,
	)
	return err
}

// AtomicUpdateCampaignStatus is the campaign-scoped instance of the
// Persistence Store's `atomicUpdate` primitive (spec.md §4.1): a
// conditional update gated on the campaign's current status, returning
// whether the CAS matched. This is what makes state transitions race-safe
// across runners (two schedulers firing, two supervisors racing on the same
// orphan, a manual pause racing the runner's own auto-pause).
func (s *Store) AtomicUpdateCampaignStatus(ctx context.Context, campaignID string, from []CampaignStatus, to CampaignStatus, mutate func(*Campaign)) (Campaign, bool, error) {
	var out Campaign
	var matched bool

	err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		c, err := s.getCampaignForUpdateTx(ctx, tx, campaignID)
		if err != nil {
			return err
		}
		if !statusIn(c.Status, from) {
			out = c
			matched = false
			return nil
		}
		c.Status = to
		if mutate != nil {
			mutate(&c)
		}
		c.UpdatedAt = time.Now().UTC()
		if err := s.updateCampaignTx(ctx, tx, c); err != nil {
			return err
		}
		out = c
		matched = true
		return nil
	})
	if err != nil {
		return Campaign{}, false, err
	}
	return out, matched, nil
}

// PersistProgress writes currentIndex/processedContacts/connectedCalls/
// failedCalls without touching status; the runner calls this after every
// dial attempt (spec.md §4.8).
func (s *Store) PersistProgress(ctx context.Context, campaignID string, currentIndex, processed, connected, failed int) error {
	const q = `
UPDATE campaigns
SET current_index = $2, processed_contacts = $3, connected_calls = $4, failed_calls = $5,
    last_activity = $6, updated_at = $6
WHERE campaign_id = $1
`
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, q, campaignID, currentIndex, processed, connected, failed, now)
	return err
}

func (s *Store) updateCampaignTx(ctx context.Context, tx *sql.Tx, c Campaign) error {
	const q = `
UPDATE campaigns SET
  status = $2, current_index = $3, total_contacts = $4, processed_contacts = $5,
  connected_calls = $6, failed_calls = $7, heartbeat = $8, last_activity = $9,
  container_id = $10, paused_at = $11, paused_by = $12, pause_reason = $13,
  resumed_at = $14, is_balance_updated = $15, billing_processed_at = $16,
  error_message = $17, cancelled_at = $18, updated_at = $19
WHERE campaign_id = $1
`
	_, err := tx.ExecContext(ctx, q,
		c.CampaignID, c.Status, c.CurrentIndex, c.TotalContacts, c.ProcessedContacts,
		c.ConnectedCalls, c.FailedCalls, c.Heartbeat, c.LastActivity,
		c.ContainerID, c.PausedAt, c.PausedBy, c.PauseReason,
		c.ResumedAt, c.IsBalanceUpdated, c.BillingProcessedAt,
		c.ErrorMessage, c.CancelledAt, c.UpdatedAt,
	)
	return err
}

// WriteHeartbeat is the Heartbeat Manager's (C7) periodic write.
func (s *Store) WriteHeartbeat(ctx context.Context, campaignID, containerID string, now time.Time) error {
	const q = `
UPDATE campaigns
SET heartbeat = $3, container_id = $2, updated_at = $3
WHERE campaign_id = $1 AND status = 'running'
`
	_, err := s.db.ExecContext(ctx, q, campaignID, containerID, now)
	return err
}

// ClearHeartbeat is used on SIGTERM (C10): status stays running, heartbeat
// goes null so peers treat the campaign as orphaned.
func (s *Store) ClearHeartbeat(ctx context.Context, campaignID string) error {
	const q = `UPDATE campaigns SET heartbeat = NULL, updated_at = $2 WHERE campaign_id = $1`
	_, err := s.db.ExecContext(ctx, q, campaignID, time.Now().UTC())
	return err
}

// ListOrphanedCampaigns selects status=running campaigns whose heartbeat is
// null or older than threshold (spec.md §4.7/§4.10).
func (s *Store) ListOrphanedCampaigns(ctx context.Context, olderThan time.Time) ([]Campaign, error) {
	q := `SELECT ` + campaignColumns + ` FROM campaigns WHERE status = 'running' AND (heartbeat IS NULL OR heartbeat < $1)`
	rows, err := s.db.QueryContext(ctx, q, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListDueScheduledCampaigns selects status=scheduled campaigns whose
// scheduledTime has passed (spec.md §4.11).
func (s *Store) ListDueScheduledCampaigns(ctx context.Context, now time.Time) ([]Campaign, error) {
	q := `SELECT ` + campaignColumns + ` FROM campaigns WHERE status = 'scheduled' AND scheduled_time <= $1`
	rows, err := s.db.QueryContext(ctx, q, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CASOrphanRecovery claims an orphan by flipping containerId, double-checking
// status is still running inside the same transaction as spec.md §4.10
// requires ("double-check status is still running inside the CAS to avoid
// racing with a concurrent pause").
func (s *Store) CASOrphanRecovery(ctx context.Context, campaignID, newContainerID string) (Campaign, bool, error) {
	var out Campaign
	var claimed bool

	err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		c, err := s.getCampaignForUpdateTx(ctx, tx, campaignID)
		if err != nil {
			return err
		}
		if c.Status != CampaignStatusRunning {
			out = c
			claimed = false
			return nil
		}
		c.ContainerID = &newContainerID
		now := time.Now().UTC()
		c.Heartbeat = &now
		c.UpdatedAt = now
		if err := s.updateCampaignTx(ctx, tx, c); err != nil {
			return err
		}
		out = c
		claimed = true
		return nil
	})
	return out, claimed, err
}

func (s *Store) withTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	return WithTx(ctx, s.db, fn)
}

func statusIn(v CampaignStatus, set []CampaignStatus) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}
