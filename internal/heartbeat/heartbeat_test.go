package heartbeat

import (
	"testing"
	"time"
)

func TestNewWriter_DefaultsInterval(t *testing.T) {
	w := NewWriter(nil, "container-1", 0, nil)
	if w.interval != 30*time.Second {
		t.Fatalf("interval = %v, want 30s default", w.interval)
	}
	if w.logger == nil {
		t.Fatal("expected a default logger")
	}
}

func TestNewScanner_DefaultsIntervalFromThreshold(t *testing.T) {
	s := NewScanner(nil, time.Minute, 0, nil, nil)
	if s.interval != 30*time.Second {
		t.Fatalf("interval = %v, want half of threshold (30s)", s.interval)
	}
}

func TestNewScanner_FallsBackWhenThresholdAlsoZero(t *testing.T) {
	s := NewScanner(nil, 0, 0, nil, nil)
	if s.interval != 30*time.Second {
		t.Fatalf("interval = %v, want 30s fallback", s.interval)
	}
}

func TestNewScanner_RespectsExplicitInterval(t *testing.T) {
	s := NewScanner(nil, time.Hour, 5*time.Second, nil, nil)
	if s.interval != 5*time.Second {
		t.Fatalf("interval = %v, want explicit 5s", s.interval)
	}
}
