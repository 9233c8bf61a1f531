package warmup

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestWarmOne_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Tenant-Id") != "tenant-1" {
			t.Errorf("missing tenant header")
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, 3, time.Second)
	err := c.WarmOne(context.Background(), Request{AssistantID: "a1", TenantID: "tenant-1", CampaignID: "c1"})
	if err != nil {
		t.Fatalf("WarmOne() error = %v", err)
	}
}

func TestWarmOne_ClientErrorIsNotRetried(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(srv.URL, 5, time.Second)
	err := c.WarmOne(context.Background(), Request{AssistantID: "a1"})
	if err == nil {
		t.Fatal("expected an error for a 4xx response")
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Fatalf("attempts = %d, want exactly 1 (permanent error shouldn't retry)", got)
	}
}

func TestWarmOne_ServerErrorRetriesThenFails(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, 2, 5*time.Second)
	err := c.WarmOne(context.Background(), Request{AssistantID: "a1"})
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if got := atomic.LoadInt32(&attempts); got < 2 {
		t.Fatalf("attempts = %d, want at least 2 attempts on 5xx", got)
	}
}

func TestNew_Defaults(t *testing.T) {
	c := New("http://example.com", 0, 0)
	if c.Retries != 3 {
		t.Fatalf("Retries = %d, want default 3", c.Retries)
	}
	if c.Timeout != 120*time.Second {
		t.Fatalf("Timeout = %v, want default 120s", c.Timeout)
	}
}
