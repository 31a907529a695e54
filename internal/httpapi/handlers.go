package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"leadline/internal/consent"
	"leadline/internal/leads"
	"leadline/internal/notify"
	"leadline/internal/tenant"
	"leadline/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups the public-facing HTTP handlers for dependency
// injection. Keep these thin: parse/validate input, call internal
// services, return JSON.
type Handlers struct {
	Resolver *tenant.Resolver
	Leads    *leads.Service
	Consents *consent.Service
	Notifier *notify.Dispatcher
}

type leadIntakeRequest struct {
	TenantSlug  string `json:"tenant_slug"`
	FullName    string `json:"full_name"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Message     string `json:"message"`
	ServiceType string `json:"service_type"`
	Source      string `json:"source"`
	SmsOptIn    bool   `json:"sms_opt_in"`
}

// CreateLead is the landing-page form intake. SMS consent is mandatory:
// the whole product texts leads back, so a submission without opt-in is
// rejected rather than silently stored unreachable.
func (h Handlers) CreateLead(c *gin.Context) {
	log := logger.FromGin(c)

	var req leadIntakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if strings.TrimSpace(req.TenantSlug) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "tenant_slug required"})
		return
	}
	if strings.TrimSpace(req.FullName) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "full_name required"})
		return
	}
	phone := strings.TrimSpace(req.Phone)
	if !leads.ValidPhone(phone) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid phone"})
		return
	}
	if !req.SmsOptIn {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "sms_opt_in must be accepted"})
		return
	}

	source := leads.Source(strings.TrimSpace(req.Source))
	if source == "" {
		source = leads.SourceWebsite
	}
	if !leads.ValidSource(source) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid source"})
		return
	}

	t, err := h.Resolver.BySlug(c.Request.Context(), req.TenantSlug)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown tenant"})
			return
		}
		log.Error("tenant resolution failed", "slug", req.TenantSlug, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "tenant lookup failed"})
		return
	}
	if !t.Usable() {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown tenant"})
		return
	}

	leadID, err := h.Leads.RecordLead(c.Request.Context(), t.ID, leads.RecordRequest{
		FullName:    req.FullName,
		Phone:       phone,
		Email:       req.Email,
		Message:     req.Message,
		ServiceType: req.ServiceType,
		Source:      source,
	})
	if err != nil {
		if errors.Is(err, leads.ErrInvalidArgument) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid lead"})
			return
		}
		log.Error("lead insert failed", "tenant_id", t.ID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lead creation failed"})
		return
	}

	// Consent and notification are best-effort: the lead is already
	// stored and the submitter gets a success either way.
	if h.Consents != nil {
		if err := h.Consents.RecordOptIn(c.Request.Context(), t.ID, phone, "web_form", "", c.ClientIP()); err != nil {
			log.Error("intake consent record failed", "tenant_id", t.ID, "err", err)
		}
	}
	if h.Notifier != nil {
		h.Notifier.Notify(c.Request.Context(), notify.KindNewLead, t, notify.Payload{
			LeadName:     req.FullName,
			CallerNumber: phone,
			Message:      req.Message,
		})
	}

	c.JSON(http.StatusCreated, gin.H{"lead_id": leadID})
}
