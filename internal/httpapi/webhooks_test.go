package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"campaign-engine/internal/callnorm"
)

func formCtx(body string) *gin.Context {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/webhooks/twilio/status", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c
}

func TestRawPayloadFromForm_ParsesFormFields(t *testing.T) {
	c := formCtx("CallSid=CA1&CallStatus=completed")
	p := rawPayloadFromForm(c)
	if p["CallSid"] != "CA1" || p["CallStatus"] != "completed" {
		t.Fatalf("unexpected payload: %+v", p)
	}
}

func TestFirstNonEmpty_PrefersEarlierKeys(t *testing.T) {
	p := callnorm.RawPayload{"b": "second", "a": "first"}
	if got := firstNonEmpty(p, "a", "b"); got != "first" {
		t.Fatalf("firstNonEmpty() = %q, want %q", got, "first")
	}
}

func TestFirstNonEmpty_SkipsEmptyValues(t *testing.T) {
	p := callnorm.RawPayload{"a": "", "b": "value"}
	if got := firstNonEmpty(p, "a", "b"); got != "value" {
		t.Fatalf("firstNonEmpty() = %q, want %q", got, "value")
	}
}

func TestFirstNonEmpty_ReturnsEmptyWhenNoneMatch(t *testing.T) {
	p := callnorm.RawPayload{}
	if got := firstNonEmpty(p, "a", "b"); got != "" {
		t.Fatalf("firstNonEmpty() = %q, want empty", got)
	}
}

func TestResolveCallUUID_PrefersQueryParam(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/webhooks/twilio/status?callUUID=abc-123", strings.NewReader(""))
	h := WebhookHandlers{}
	if got := h.resolveCallUUID(c); got != "abc-123" {
		t.Fatalf("resolveCallUUID() = %q, want %q", got, "abc-123")
	}
}

func TestToStoreHangup_ConvertsTimesToPointers(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Second)
	r := callnorm.HangupRecord{
		CallUUID:  "call-1",
		StartTime: start,
		EndTime:   end,
		Duration:  30,
	}
	got := toStoreHangup(r)
	if got.StartTime == nil || !got.StartTime.Equal(start) {
		t.Fatalf("StartTime = %v, want %v", got.StartTime, start)
	}
	if got.EndTime == nil || !got.EndTime.Equal(end) {
		t.Fatalf("EndTime = %v, want %v", got.EndTime, end)
	}
	if got.CallUUID != "call-1" || got.Duration != 30 {
		t.Fatalf("unexpected conversion: %+v", got)
	}
}
