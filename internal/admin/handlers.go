package admin

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"leadline/internal/calls"
	"leadline/internal/leads"
	"leadline/internal/sms"
	"leadline/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups the dashboard HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return
// JSON. Every query is scoped by the tenant id from the session token.
type Handlers struct {
	Auth  *Service
	Leads *leads.Service

	LeadRepo leads.Repository
	CallRepo calls.Repository
	SmsRepo  sms.Repository
}

const defaultListLimit = 50

// --- Auth ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	token, user, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		logger.FromGin(c).Error("login failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"tenant_id": user.TenantID,
		"email":     user.Email,
		"full_name": user.FullName,
	})
}

// --- Leads ---

func (h Handlers) ListLeads(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}

	status := leads.Status(strings.TrimSpace(c.Query("status")))
	if status != "" && !leads.ValidStatus(status) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
		return
	}

	items, err := h.LeadRepo.List(c.Request.Context(), tenantID, status, queryLimit(c))
	if err != nil {
		logger.FromGin(c).Error("lead list failed", "tenant_id", tenantID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lead list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"leads": items})
}

type updateLeadStatusRequest struct {
	Status string `json:"status"`
}

func (h Handlers) UpdateLeadStatus(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}
	leadID := c.Param("id")
	if leadID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "lead id required"})
		return
	}

	var req updateLeadStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	err := h.Leads.UpdateStatus(c.Request.Context(), tenantID, leadID, leads.Status(req.Status))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"updated": true})
	case errors.Is(err, leads.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
	case errors.Is(err, leads.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "lead not found"})
	default:
		logger.FromGin(c).Error("lead status update failed", "tenant_id", tenantID, "lead_id", leadID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
	}
}

// --- Call / SMS logs ---

func (h Handlers) ListCalls(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}
	items, err := h.CallRepo.List(c.Request.Context(), tenantID, queryLimit(c))
	if err != nil {
		logger.FromGin(c).Error("call list failed", "tenant_id", tenantID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": items})
}

func (h Handlers) ListSms(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}
	items, err := h.SmsRepo.List(c.Request.Context(), tenantID, queryLimit(c))
	if err != nil {
		logger.FromGin(c).Error("sms list failed", "tenant_id", tenantID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "sms list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": items})
}

// --- Summary ---

// Summary returns basic tenant counts over the last 30 days: leads by
// status, missed calls and inbound messages.
func (h Handlers) Summary(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	since := time.Now().AddDate(0, 0, -30)

	byStatus, err := h.LeadRepo.CountByStatus(ctx, tenantID)
	if err != nil {
		logger.FromGin(c).Error("summary lead counts failed", "tenant_id", tenantID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}
	missed, err := h.CallRepo.CountMissed(ctx, tenantID, since)
	if err != nil {
		logger.FromGin(c).Error("summary missed calls failed", "tenant_id", tenantID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}
	inbound, err := h.SmsRepo.CountInbound(ctx, tenantID, since)
	if err != nil {
		logger.FromGin(c).Error("summary inbound sms failed", "tenant_id", tenantID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"leads_by_status": byStatus,
		"missed_calls":    missed,
		"inbound_sms":     inbound,
		"window_days":     30,
	})
}

func requireTenant(c *gin.Context) (string, bool) {
	tenantID, err := TenantID(c.Request.Context())
	if err != nil || tenantID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return "", false
	}
	return tenantID, true
}

func queryLimit(c *gin.Context) int {
	v := strings.TrimSpace(c.Query("limit"))
	if v == "" {
		return defaultListLimit
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > 500 {
		return defaultListLimit
	}
	return n
}
