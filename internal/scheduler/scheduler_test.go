package scheduler

import (
	"context"
	"testing"
	"time"
)

type stubTransitioner struct {
	started []string
}

func (s *stubTransitioner) Start(ctx context.Context, campaignID string) error {
	s.started = append(s.started, campaignID)
	return nil
}

func TestNew_DefaultsInterval(t *testing.T) {
	s := New(nil, &stubTransitioner{}, 0, nil)
	if s.interval != 30*time.Second {
		t.Fatalf("interval = %v, want 30s default", s.interval)
	}
	if s.logger == nil {
		t.Fatal("expected a default logger")
	}
}

func TestNew_RespectsExplicitInterval(t *testing.T) {
	s := New(nil, &stubTransitioner{}, time.Minute, nil)
	if s.interval != time.Minute {
		t.Fatalf("interval = %v, want 1m", s.interval)
	}
}
