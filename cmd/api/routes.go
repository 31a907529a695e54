package main

import (
	"database/sql"
	"net/http"
	"time"

	"leadline/internal/admin"
	"leadline/internal/calls"
	"leadline/internal/config"
	"leadline/internal/consent"
	"leadline/internal/httpapi"
	"leadline/internal/leads"
	"leadline/internal/notify"
	"leadline/internal/sms"
	"leadline/internal/telephony"
	"leadline/internal/tenant"
	"leadline/internal/tenantctx"
	"leadline/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type routeDeps struct {
	cfg config.Config

	db    *sql.DB
	rdb   *redis.Client
	guard *tenantctx.Guard

	resolver   *tenant.Resolver
	calls      *calls.Service
	sms        *sms.Service
	leads      *leads.Service
	consents   *consent.Service
	dispatcher *notify.Dispatcher

	admin    *admin.Service
	sessions *admin.SessionManager
}

// registerRoutes wires HTTP routes to handlers. Keep this file free of
// business logic; handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), d.db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": err.Error()})
			return
		}
		if err := d.rdb.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Provider webhooks: public endpoints gated by signature validation.
	hooks := r.Group("/webhooks/twilio",
		telephony.SignatureMiddleware(d.cfg.Twilio.AuthToken, d.cfg.App.BaseURL))
	{
		h := telephony.WebhookHandler{
			Calls:   d.calls,
			SMS:     d.sms,
			BaseURL: d.cfg.App.BaseURL,
		}
		hooks.POST("/voice", h.HandleVoiceInbound)
		hooks.POST("/voice/status", h.HandleCallStatus)
		hooks.POST("/voice/dial", h.HandleDialStatus)
		hooks.POST("/voice/recording", h.HandleRecording)
		hooks.POST("/sms", h.HandleSms)
		hooks.POST("/sms/status", h.HandleSmsStatus)
	}

	// Public lead intake.
	{
		h := httpapi.Handlers{
			Resolver: d.resolver,
			Leads:    d.leads,
			Consents: d.consents,
			Notifier: d.dispatcher,
		}
		r.POST("/v1/leads", h.CreateLead)
	}

	// Admin dashboard API: tenant-scoped via the session token.
	{
		h := admin.Handlers{
			Auth:     d.admin,
			Leads:    d.leads,
			LeadRepo: leads.NewPostgresRepo(d.guard),
			CallRepo: calls.NewPostgresRepo(d.guard),
			SmsRepo:  sms.NewPostgresRepo(d.guard),
		}

		r.POST("/v1/admin/login", h.Login)

		api := r.Group("/v1/admin", admin.RequireSession(d.sessions))
		api.GET("/leads", h.ListLeads)
		api.PATCH("/leads/:id/status", h.UpdateLeadStatus)
		api.GET("/calls", h.ListCalls)
		api.GET("/sms", h.ListSms)
		api.GET("/summary", h.Summary)
	}
}
