package main

import (
	"errors"
	"log/slog"

	"campaign-engine/internal/admission"
	"campaign-engine/internal/auth"
	"campaign-engine/internal/billing"
	"campaign-engine/internal/httpapi"
	"campaign-engine/internal/lifecycle"
	"campaign-engine/internal/rbac"
	"campaign-engine/internal/routing"
	"campaign-engine/internal/store"
	"campaign-engine/internal/telephony"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// errWorkspaceResolverNotWired guards the inbound Twilio voice route: a
// dialed-number-to-workspace lookup table isn't part of this engine's
// scope, only outbound campaign calls are.
var errWorkspaceResolverNotWired = errors.New("inbound call routing: workspace resolver not configured")

// appDeps bundles the services constructed in main into the set routes.go
// needs to build handlers. Kept as a plain struct (not a container) so the
// dependency graph stays visible at the call site in main.go.
type appDeps struct {
	authManager *auth.Manager
	store       *store.Store
	billing     *billing.Engine
	admission   *admission.Controller
	lifecycle   *lifecycle.Controller
	providers   map[string]telephony.OutboundProvider
	rdb         *redis.Client
	logger      *slog.Logger
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, authMW gin.HandlerFunc, deps appDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	registerProviderWebhooks(r, deps)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		h := httpapi.Handlers{
			Auth: deps.authManager,
		}
		campaignH := httpapi.CampaignHandlers{
			Lifecycle: deps.lifecycle,
			Store:     deps.store,
		}

		v1.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			wid, _ := auth.WorkspaceID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(200, gin.H{"user_id": uid, "workspace_id": wid, "role": role})
		})

		// AUTH routes (token issuance).
		// NOTE: This is a placeholder login route; real credential validation is not implemented.
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/login", h.Login)
		}

		// CAMPAIGNS routes: the Collaborator API (spec.md §6).
		campaigns := v1.Group("/campaigns")
		campaigns.Use(rbac.RequireWorkspace())
		campaigns.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleAnalyst, rbac.RoleSuperAdmin))
		{
			campaigns.POST("/", campaignH.CreateCampaign)
			campaigns.POST("/:campaign_id/pause", campaignH.PauseCampaign)
			campaigns.POST("/:campaign_id/resume", campaignH.ResumeCampaign)
			campaigns.POST("/:campaign_id/cancel", campaignH.CancelCampaign)
			campaigns.GET("/:campaign_id/progress", campaignH.GetCampaignProgress)
			campaigns.GET("/:campaign_id/history", campaignH.GetAggregatedHistory)
		}

		calls := v1.Group("/calls")
		calls.Use(rbac.RequireWorkspace())
		calls.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleAgent, rbac.RoleAnalyst, rbac.RoleSuperAdmin))
		{
			calls.GET("/:call_uuid", campaignH.GetCallDetails)
		}

		balance := v1.Group("/balance")
		balance.Use(rbac.RequireWorkspace())
		{
			balance.GET("/stream", campaignH.StreamBalance(subscribeBalance(deps.rdb, deps.logger)))
		}

		// ADMIN routes
		// Only owner/super_admin can access admin endpoints by default.
		admin := v1.Group("/admin")
		admin.Use(rbac.RequireWorkspace())
		admin.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleSuperAdmin))
		{
			admin.GET("/ping", func(c *gin.Context) {
				c.JSON(200, gin.H{"status": "ok"})
			})
		}
	}
}

// registerProviderWebhooks wires Twilio's inbound-call routing (unchanged
// teacher behavior) alongside the outbound campaign engine's status/
// answer/hangup/recording callbacks for both providers.
func registerProviderWebhooks(r *gin.Engine, deps appDeps) {
	re := routing.NewRoutingEngine(nil, nil, nil)
	router := routing.NewEngineAdapter(re, routing.AdapterOptions{})
	twilioInbound := telephony.NewTwilioProvider(router)
	inboundHandler := telephony.TwilioWebhookHandler{
		Provider: twilioInbound,
		WorkspaceIDResolver: func(c *gin.Context, toNumber string) (string, error) {
			return "", errWorkspaceResolverNotWired
		},
	}
	r.POST("/webhooks/twilio/voice", inboundHandler.HandleInboundCall)

	for name, provider := range deps.providers {
		wh := httpapi.WebhookHandlers{
			Store:     deps.store,
			Billing:   deps.billing,
			Admission: deps.admission,
			Provider:  provider,
			Logger:    deps.logger,
		}
		group := r.Group("/webhooks/" + name)
		group.POST("/status", wh.Status)
		group.POST("/answer", wh.Status)
		group.POST("/hangup", wh.Hangup)
		group.POST("/recording", wh.Recording)
	}
}
