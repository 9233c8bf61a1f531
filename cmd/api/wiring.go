package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"campaign-engine/internal/balancestream"
	"campaign-engine/internal/runner"
	"campaign-engine/internal/store"
	"campaign-engine/internal/supervisor"
	"campaign-engine/internal/telephony"
)

// campaignSpawner adapts a runner.Runner into the Spawn(ctx, campaignID,
// fromIndex) shape both lifecycle.Spawner and supervisor.RunnerSpawner
// expect, so the Lifecycle Controller and the Container Supervisor share
// one code path for starting the dial loop. It is set up via setRunner
// after the Runner itself is constructed, breaking the otherwise circular
// dependency (Runner needs a LifecycleController, Lifecycle needs a Spawner).
type campaignSpawner struct {
	mu     sync.RWMutex
	runner *runner.Runner
}

func (s *campaignSpawner) setRunner(r *runner.Runner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runner = r
}

func (s *campaignSpawner) Spawn(ctx context.Context, campaignID string, fromIndex int) {
	s.mu.RLock()
	r := s.runner
	s.mu.RUnlock()
	if r == nil {
		slog.Default().Error("campaign spawn requested before runner wiring completed", "campaign_id", campaignID)
		return
	}
	r.Run(ctx, campaignID, fromIndex)
}

// supervisedSpawner adapts a *supervisor.Supervisor's Adopt method into the
// Spawn signature the Lifecycle Controller expects, so every campaign
// start/resume goes through adoption (and is therefore shutdown- and
// orphan-aware), not just the ones recovered at startup.
type supervisedSpawner struct {
	sup *supervisor.Supervisor
}

func (s supervisedSpawner) Spawn(ctx context.Context, campaignID string, fromIndex int) {
	s.sup.Adopt(ctx, campaignID, fromIndex)
}

func buildProviders(cfg twilioPlivoConfig) map[string]telephony.OutboundProvider {
	providers := map[string]telephony.OutboundProvider{}
	if cfg.TwilioAccountSID != "" {
		providers["twilio"] = telephony.NewTwilioOutboundAdapter(cfg.TwilioAccountSID, cfg.TwilioAuthToken)
	}
	if cfg.PlivoAuthID != "" {
		providers["plivo"] = telephony.NewPlivoOutboundAdapter(cfg.PlivoAuthID, cfg.PlivoAuthToken)
	}
	return providers
}

type twilioPlivoConfig struct {
	TwilioAccountSID string
	TwilioAuthToken  string
	PlivoAuthID      string
	PlivoAuthToken   string
}

// runRateLimitJanitor periodically deletes rate_limit_buckets rows older
// than an hour so the per-minute counter table doesn't grow unbounded.
func runRateLimitJanitor(ctx context.Context, st *store.Store, log *slog.Logger) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := st.PruneRateLimitBuckets(ctx, time.Now().UTC().Add(-time.Hour)); err != nil {
				log.Error("rate limit bucket prune failed", "error", err)
			}
		}
	}
}

// subscribeBalance adapts balancestream.Subscribe into the function shape
// httpapi.CampaignHandlers.StreamBalance needs, keeping the concrete redis
// client out of internal/httpapi.
func subscribeBalance(rdb *redis.Client, logger *slog.Logger) func(c *gin.Context, tenantID string) <-chan balancestream.Event {
	return func(c *gin.Context, tenantID string) <-chan balancestream.Event {
		return balancestream.Subscribe(c.Request.Context(), rdb, tenantID, logger)
	}
}
