package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"campaign-engine/internal/auth"
	"campaign-engine/internal/balancestream"
	"campaign-engine/internal/lifecycle"
	"campaign-engine/internal/store"
)

// CampaignHandlers exposes the Collaborator API of spec.md §6: campaign
// lifecycle control and progress/billing reads.
type CampaignHandlers struct {
	Lifecycle *lifecycle.Controller
	Store     *store.Store
}

type createCampaignRequest struct {
	Name          string     `json:"name"`
	ListID        string     `json:"list_id"`
	FromNumber    string     `json:"from_number"`
	BotWsURL      string     `json:"bot_ws_url"`
	Provider      string     `json:"provider,omitempty"`
	ScheduledTime *time.Time `json:"scheduled_time,omitempty"`
}

func (h CampaignHandlers) CreateCampaign(c *gin.Context) {
	tenantID, err := auth.WorkspaceIDFromGin(c)
	if err != nil || tenantID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "workspace_id required"})
		return
	}
	var req createCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	campaign, err := h.Lifecycle.Create(c.Request.Context(), lifecycle.CreateRequest{
		TenantID:                tenantID,
		Name:                    req.Name,
		ListID:                  req.ListID,
		FromNumber:              req.FromNumber,
		BotWsURL:                req.BotWsURL,
		Provider:                req.Provider,
		ScheduledTime:           req.ScheduledTime,
		EstimatedSecondsPerCall: 30,
	})
	if err != nil {
		writeCampaignError(c, err)
		return
	}
	c.JSON(http.StatusCreated, campaign)
}

func (h CampaignHandlers) PauseCampaign(c *gin.Context) {
	if err := h.Lifecycle.Pause(c.Request.Context(), c.Param("campaign_id"), "manual", callerID(c)); err != nil {
		writeCampaignError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "paused"})
}

func (h CampaignHandlers) ResumeCampaign(c *gin.Context) {
	if err := h.Lifecycle.Resume(c.Request.Context(), c.Param("campaign_id")); err != nil {
		writeCampaignError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "running"})
}

func (h CampaignHandlers) CancelCampaign(c *gin.Context) {
	if err := h.Lifecycle.Cancel(c.Request.Context(), c.Param("campaign_id")); err != nil {
		writeCampaignError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

func (h CampaignHandlers) GetCampaignProgress(c *gin.Context) {
	campaign, err := h.Store.GetCampaign(c.Request.Context(), c.Param("campaign_id"))
	if err != nil {
		writeCampaignError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"campaign_id":        campaign.CampaignID,
		"status":             campaign.Status,
		"current_index":      campaign.CurrentIndex,
		"total_contacts":     campaign.TotalContacts,
		"processed_contacts": campaign.ProcessedContacts,
		"connected_calls":    campaign.ConnectedCalls,
		"failed_calls":       campaign.FailedCalls,
	})
}

func (h CampaignHandlers) GetCallDetails(c *gin.Context) {
	call, err := h.Store.GetActiveCall(c.Request.Context(), c.Param("call_uuid"))
	if err != nil {
		writeCampaignError(c, err)
		return
	}
	c.JSON(http.StatusOK, call)
}

func (h CampaignHandlers) GetAggregatedHistory(c *gin.Context) {
	tenantID, err := auth.WorkspaceIDFromGin(c)
	if err != nil || tenantID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "workspace_id required"})
		return
	}
	after, afterID := decodeHistoryCursor(c.Query("cursor"))
	limit := pageLimit(c)
	entries, err := h.Store.ListBillingHistory(c.Request.Context(), tenantID, after, afterID, limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	var nextCursor string
	if len(entries) == limit {
		last := entries[len(entries)-1]
		nextCursor = encodeHistoryCursor(last.CreatedAt, last.ID)
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "next_cursor": nextCursor})
}

// StreamBalance is a Server-Sent-Events endpoint streaming C12's at-most-
// once-per-observer balance events; it does not replay history (spec.md
// §4.12). subscribe is injected so this file stays decoupled from the
// concrete redis client type.
func (h CampaignHandlers) StreamBalance(subscribe func(ctx *gin.Context, tenantID string) <-chan balancestream.Event) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, err := auth.WorkspaceIDFromGin(c)
		if err != nil || tenantID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "workspace_id required"})
			return
		}
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")

		events := subscribe(c, tenantID)
		c.Stream(func(w io.Writer) bool {
			e, ok := <-events
			if !ok {
				return false
			}
			_, _ = w.Write([]byte("data: " + eventJSON(e) + "\n\n"))
			return true
		})
	}
}

func callerID(c *gin.Context) string {
	uid, _ := auth.UserID(c.Request.Context())
	return uid
}

func pageLimit(c *gin.Context) int {
	const def, max = 50, 200
	v, err := strconv.Atoi(c.Query("limit"))
	if err != nil || v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}

func writeCampaignError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, lifecycle.ErrDuplicateName):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, lifecycle.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// encodeHistoryCursor/decodeHistoryCursor wrap the billing history
// keyset-pagination cursor (createdAt, id) in an opaque base64 token so
// callers don't depend on the store's internal ordering columns.
func encodeHistoryCursor(createdAt time.Time, id string) string {
	raw := createdAt.UTC().Format(time.RFC3339Nano) + "|" + id
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeHistoryCursor(cursor string) (time.Time, string) {
	if cursor == "" {
		return time.Time{}, ""
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, ""
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, ""
	}
	createdAt, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, ""
	}
	return createdAt, parts[1]
}

func eventJSON(e balancestream.Event) string {
	b, err := json.Marshal(e)
	if err != nil {
		return "{}"
	}
	return string(b)
}
