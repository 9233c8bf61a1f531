package supervisor

import (
	"context"
	"sync"
	"testing"
	"time"

	"campaign-engine/internal/store"
)

type stubSpawner struct {
	mu      sync.Mutex
	spawned []string
}

func (s *stubSpawner) Spawn(ctx context.Context, campaignID string, fromIndex int) {
	s.mu.Lock()
	s.spawned = append(s.spawned, campaignID)
	s.mu.Unlock()
	<-ctx.Done()
}

func TestNew_DefaultsShutdownGrace(t *testing.T) {
	sup := New(store.New(nil), "container-1", &stubSpawner{}, 0, nil)
	if sup.shutdownGrace != 10*time.Second {
		t.Fatalf("shutdownGrace = %v, want 10s default", sup.shutdownGrace)
	}
}

func TestAdopt_TracksOwnedCampaignUntilSpawnReturns(t *testing.T) {
	spawner := &stubSpawner{}
	sup := New(store.New(nil), "container-1", spawner, time.Second, nil)

	sup.Adopt(context.Background(), "campaign-1", 0)

	deadline := time.Now().Add(time.Second)
	for {
		sup.mu.Lock()
		_, owned := sup.owned["campaign-1"]
		sup.mu.Unlock()
		if owned {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("expected campaign-1 to be tracked as owned")
		}
		time.Sleep(time.Millisecond)
	}

	sup.mu.Lock()
	cancel := sup.owned["campaign-1"]
	sup.mu.Unlock()
	cancel()

	deadline = time.Now().Add(time.Second)
	for {
		sup.mu.Lock()
		_, owned := sup.owned["campaign-1"]
		sup.mu.Unlock()
		if !owned {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("expected campaign-1 to be released once its context was cancelled")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestShutdown_NoOwnedCampaignsReturnsWithoutTouchingStore(t *testing.T) {
	sup := New(store.New(nil), "container-1", &stubSpawner{}, 10*time.Millisecond, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sup.Shutdown(ctx) // must not panic, and must not block past shutdownGrace
}
