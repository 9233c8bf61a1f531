package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"campaign-engine/internal/admission"
	"campaign-engine/internal/billing"
	"campaign-engine/internal/callnorm"
	"campaign-engine/internal/store"
	"campaign-engine/internal/telephony"
)

// WebhookHandlers ingests provider status/answer/hangup/recording callbacks
// and is the one place a provider payload turns into a stored ActiveCall
// transition and, at hangup, a billed call (spec.md §4.3, §4.6).
type WebhookHandlers struct {
	Store     *store.Store
	Billing   *billing.Engine
	Admission *admission.Controller
	Provider  telephony.OutboundProvider
	Logger    *slog.Logger
}

func (h WebhookHandlers) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

// Status handles mid-call status callbacks (ringing/answered/etc). It never
// writes billing data; it only advances ActiveCall.status.
func (h WebhookHandlers) Status(c *gin.Context) {
	callUUID := h.resolveCallUUID(c)
	if callUUID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "callUUID required"})
		return
	}
	payload := rawPayloadFromForm(c)
	providerStatus := firstNonEmpty(payload, "CallStatus", "Status", "call_status")
	next := h.Provider.ClassifyStatus(providerStatus)
	if next == telephony.ActiveCallStatusUnknown {
		c.Status(http.StatusOK)
		return
	}
	if _, err := h.Store.TransitionActiveCall(c.Request.Context(), callUUID, store.ActiveCallStatus(next), time.Now().UTC()); err != nil {
		h.logger().Error("webhook: status transition failed", "call_uuid", callUUID, "error", err)
	}
	c.Status(http.StatusOK)
}

// Hangup handles the terminal status callback: it resolves the call's
// tenant/campaign from ActiveCall, normalizes the payload, stores the
// HangupRecord, releases the admission slot, and bills the call.
func (h WebhookHandlers) Hangup(c *gin.Context) {
	ctx := c.Request.Context()
	callUUID := h.resolveCallUUID(c)
	if callUUID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "callUUID required"})
		return
	}

	active, err := h.Store.GetActiveCall(ctx, callUUID)
	if err != nil {
		h.logger().Error("webhook: unknown call", "call_uuid", callUUID, "error", err)
		c.Status(http.StatusOK)
		return
	}

	payload := rawPayloadFromForm(c)
	record := callnorm.NormalizeHangup(payload, callnorm.CarryForward{
		TenantID:   active.TenantID,
		CampaignID: active.CampaignID,
		Provider:   active.Provider,
	}, time.Now().UTC())
	record.CallUUID = callUUID // the resolved pre-generated id, not a provider id from the payload

	if err := h.Store.InsertHangupRecord(ctx, toStoreHangup(record)); err != nil {
		h.logger().Error("webhook: failed to insert hangup record", "call_uuid", callUUID, "error", err)
	}
	if _, err := h.Store.TransitionActiveCall(ctx, callUUID, store.ActiveCallStatus(telephony.ActiveCallStatusCompleted), time.Now().UTC()); err != nil {
		h.logger().Error("webhook: terminal transition failed", "call_uuid", callUUID, "error", err)
	}
	if h.Admission != nil {
		h.Admission.Release(ctx, active.TenantID)
	}
	if err := h.Billing.ApplyCallRecord(ctx, record); err != nil {
		h.logger().Error("webhook: billing failed", "call_uuid", callUUID, "error", err)
	}
	c.Status(http.StatusOK)
}

// Recording handles the asynchronous recording-ready callback, which
// arrives after Hangup and only fills in RecordingURL (spec.md §4.3).
func (h WebhookHandlers) Recording(c *gin.Context) {
	callUUID := h.resolveCallUUID(c)
	if callUUID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "callUUID required"})
		return
	}
	payload := rawPayloadFromForm(c)
	recordingURL := firstNonEmpty(payload, "RecordingUrl", "RecordingURL", "recording_url")
	if recordingURL != "" {
		if err := h.Store.SetRecordingURL(c.Request.Context(), callUUID, recordingURL); err != nil {
			h.logger().Error("webhook: failed to persist recording url", "call_uuid", callUUID, "error", err)
		}
	}
	c.Status(http.StatusOK)
}

func (h WebhookHandlers) resolveCallUUID(c *gin.Context) string {
	if v := c.Query("callUUID"); v != "" {
		return v
	}
	payload := rawPayloadFromForm(c)
	providerCallID := firstNonEmpty(payload, "CallSid", "CallUUID", "call_uuid")
	if providerCallID == "" {
		return ""
	}
	resolved, err := h.Store.ResolveCallUUID(c.Request.Context(), providerCallID)
	if err != nil {
		return ""
	}
	return resolved
}

func firstNonEmpty(p callnorm.RawPayload, keys ...string) string {
	for _, k := range keys {
		if v, ok := p[k]; ok && v != "" {
			return v
		}
	}
	return ""
}

func rawPayloadFromForm(c *gin.Context) callnorm.RawPayload {
	_ = c.Request.ParseForm()
	p := make(callnorm.RawPayload, len(c.Request.PostForm))
	for k := range c.Request.PostForm {
		p[k] = c.Request.PostForm.Get(k)
	}
	return p
}

func toStoreHangup(r callnorm.HangupRecord) store.HangupRecord {
	startTime, endTime := r.StartTime, r.EndTime
	return store.HangupRecord{
		CallUUID:     r.CallUUID,
		To:           r.To,
		From:         r.From,
		Duration:     r.Duration,
		Status:       string(r.Status),
		HangupCause:  r.HangupCause,
		StartTime:    &startTime,
		AnswerTime:   r.AnswerTime,
		EndTime:      &endTime,
		RecordingURL: r.RecordingURL,
		Source:       string(r.Source),
		Provider:     r.Provider,
		TenantID:     r.TenantID,
		CampaignID:   r.CampaignID,
		AssistantID:  r.AssistantID,
		ContactMeta:  r.ContactMeta,
	}
}
