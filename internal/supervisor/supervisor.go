// Package supervisor is the Container Supervisor (spec.md C10): on process
// startup it adopts orphaned campaigns left behind by a crashed container,
// and on SIGTERM it releases its own campaigns back to the orphan pool
// instead of pausing them, so a live peer can continue the dial loop
// without requiring an operator to resume.
package supervisor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"campaign-engine/internal/metrics"
	"campaign-engine/internal/store"
)

// RunnerSpawner starts a Campaign Runner for campaignID from fromIndex,
// tracked under ctx so Shutdown can wait for it to notice cancellation.
type RunnerSpawner interface {
	Spawn(ctx context.Context, campaignID string, fromIndex int)
}

type Supervisor struct {
	store         *store.Store
	containerID   string
	spawner       RunnerSpawner
	shutdownGrace time.Duration
	logger        *slog.Logger

	mu    sync.Mutex
	owned map[string]context.CancelFunc
}

func New(st *store.Store, containerID string, spawner RunnerSpawner, shutdownGrace time.Duration, logger *slog.Logger) *Supervisor {
	if shutdownGrace <= 0 {
		shutdownGrace = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		store: st, containerID: containerID, spawner: spawner,
		shutdownGrace: shutdownGrace, logger: logger, owned: make(map[string]context.CancelFunc),
	}
}

// Adopt spawns campaignID under a cancelable context this supervisor owns,
// so Shutdown can signal it later. Used both for startup orphan adoption
// and for normal scheduler/resume spawns that should also be shutdown-aware.
func (s *Supervisor) Adopt(parent context.Context, campaignID string, fromIndex int) {
	ctx, cancel := context.WithCancel(parent)
	s.mu.Lock()
	s.owned[campaignID] = cancel
	s.mu.Unlock()
	metrics.ActiveCampaignsGauge.Inc()

	go func() {
		s.spawner.Spawn(ctx, campaignID, fromIndex)
		s.mu.Lock()
		delete(s.owned, campaignID)
		s.mu.Unlock()
		cancel()
		metrics.ActiveCampaignsGauge.Dec()
	}()
}

// RecoverOrphans runs once at startup: every status=running campaign whose
// heartbeat is null or older than threshold is claimed via CAS and
// re-spawned from its persisted currentIndex (spec.md §4.10).
func (s *Supervisor) RecoverOrphans(ctx context.Context, threshold time.Duration) error {
	cutoff := time.Now().UTC().Add(-threshold)
	orphans, err := s.store.ListOrphanedCampaigns(ctx, cutoff)
	if err != nil {
		return err
	}
	for _, c := range orphans {
		claimed, ok, err := s.store.CASOrphanRecovery(ctx, c.CampaignID, s.containerID)
		if err != nil {
			s.logger.Error("orphan recovery failed", "campaign_id", c.CampaignID, "error", err)
			continue
		}
		if !ok {
			continue // lost the race to another container, or no longer running
		}
		s.logger.Info("adopted orphaned campaign", "campaign_id", claimed.CampaignID, "from_index", claimed.CurrentIndex)
		metrics.OrphansRecoveredTotal.Inc()
		s.Adopt(ctx, claimed.CampaignID, claimed.CurrentIndex)
	}
	return nil
}

// ClaimOrphan is the callback handed to heartbeat.Scanner: it attempts the
// same CAS-and-adopt flow for a single campaign discovered mid-run rather
// than only at startup.
func (s *Supervisor) ClaimOrphan(ctx context.Context, campaignID string) {
	claimed, ok, err := s.store.CASOrphanRecovery(ctx, campaignID, s.containerID)
	if err != nil {
		s.logger.Error("orphan claim failed", "campaign_id", campaignID, "error", err)
		return
	}
	if !ok {
		return
	}
	s.logger.Info("adopted orphaned campaign", "campaign_id", claimed.CampaignID, "from_index", claimed.CurrentIndex)
	metrics.OrphansRecoveredTotal.Inc()
	s.Adopt(ctx, claimed.CampaignID, claimed.CurrentIndex)
}

// Shutdown cancels the runner goroutines and clears the heartbeat on every
// locally-owned campaign (status stays running so peers adopt it via the
// orphan path), then waits shutdownGrace, or until ctx is done, for
// in-flight persistence to flush (spec.md §4.10). It does not track when
// the runners return, and it does not pause campaigns.
func (s *Supervisor) Shutdown(ctx context.Context) {
	s.mu.Lock()
	campaignIDs := make([]string, 0, len(s.owned))
	for id, cancel := range s.owned {
		campaignIDs = append(campaignIDs, id)
		cancel()
	}
	s.mu.Unlock()

	for _, id := range campaignIDs {
		if err := s.store.ClearHeartbeat(ctx, id); err != nil {
			s.logger.Error("failed to clear heartbeat on shutdown", "campaign_id", id, "error", err)
		}
	}

	select {
	case <-ctx.Done():
	case <-time.After(s.shutdownGrace):
	}
}
