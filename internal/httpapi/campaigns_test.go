package httpapi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"campaign-engine/internal/balancestream"
	"campaign-engine/internal/lifecycle"
	"campaign-engine/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func ginCtx(url string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, url, nil)
	return c, w
}

func TestPageLimit_DefaultsWhenAbsent(t *testing.T) {
	c, _ := ginCtx("/x")
	if got := pageLimit(c); got != 50 {
		t.Fatalf("pageLimit() = %d, want 50", got)
	}
}

func TestPageLimit_ParsesQueryParam(t *testing.T) {
	c, _ := ginCtx("/x?limit=10")
	if got := pageLimit(c); got != 10 {
		t.Fatalf("pageLimit() = %d, want 10", got)
	}
}

func TestPageLimit_ClampsAboveMax(t *testing.T) {
	c, _ := ginCtx("/x?limit=5000")
	if got := pageLimit(c); got != 200 {
		t.Fatalf("pageLimit() = %d, want clamped to 200", got)
	}
}

func TestPageLimit_IgnoresGarbage(t *testing.T) {
	c, _ := ginCtx("/x?limit=not-a-number")
	if got := pageLimit(c); got != 50 {
		t.Fatalf("pageLimit() = %d, want default 50 for invalid input", got)
	}
}

func TestWriteCampaignError_MapsKnownSentinels(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{store.ErrNotFound, http.StatusNotFound},
		{lifecycle.ErrInvalidTransition, http.StatusConflict},
		{lifecycle.ErrDuplicateName, http.StatusConflict},
		{lifecycle.ErrInvalidArgument, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		c, w := ginCtx("/x")
		writeCampaignError(c, tc.err)
		if w.Code != tc.want {
			t.Errorf("writeCampaignError(%v) status = %d, want %d", tc.err, w.Code, tc.want)
		}
	}
}

func TestEventJSON_MarshalsEvent(t *testing.T) {
	got := eventJSON(balancestream.Event{TenantID: "t1", Balance: 100, Reason: "call"})
	if got == "{}" || got == "" {
		t.Fatalf("eventJSON() returned empty/fallback value: %q", got)
	}
}

func TestHistoryCursor_RoundTrip(t *testing.T) {
	createdAt := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	cursor := encodeHistoryCursor(createdAt, "entry-9")

	gotTime, gotID := decodeHistoryCursor(cursor)
	if !gotTime.Equal(createdAt) {
		t.Fatalf("decoded createdAt = %v, want %v", gotTime, createdAt)
	}
	if gotID != "entry-9" {
		t.Fatalf("decoded id = %q, want %q", gotID, "entry-9")
	}
}

func TestDecodeHistoryCursor_EmptyStringYieldsZeroValue(t *testing.T) {
	gotTime, gotID := decodeHistoryCursor("")
	if !gotTime.IsZero() || gotID != "" {
		t.Fatalf("expected zero values for empty cursor, got %v %q", gotTime, gotID)
	}
}

func TestDecodeHistoryCursor_GarbageIsTreatedAsNoCursor(t *testing.T) {
	gotTime, gotID := decodeHistoryCursor("not-a-valid-cursor!!!")
	if !gotTime.IsZero() || gotID != "" {
		t.Fatalf("expected zero values for malformed cursor, got %v %q", gotTime, gotID)
	}
}

func TestCallerID_EmptyWithoutIdentity(t *testing.T) {
	c, _ := ginCtx("/x")
	if got := callerID(c); got != "" {
		t.Fatalf("callerID() = %q, want empty string when no identity is set", got)
	}
}
