package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"leadline/internal/calls"
	"leadline/internal/config"
	"leadline/internal/leads"
	"leadline/internal/sms"

	"github.com/gin-gonic/gin"
)

type adminFixture struct {
	router   *gin.Engine
	leadRepo *leads.MemoryRepo
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := HashPassword("hunter2!")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	users := NewMemoryUsers(User{
		ID:           "u1",
		TenantID:     "t1",
		Email:        "owner@acme.test",
		FullName:     "Acme Owner",
		PasswordHash: hash,
		Active:       true,
	})

	sessions, err := NewSessionManager(config.AdminConfig{
		JWTSecret:  "test-secret",
		SessionTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}

	f := &adminFixture{leadRepo: leads.NewMemoryRepo()}

	h := Handlers{
		Auth:     NewService(users, sessions),
		Leads:    leads.NewService(f.leadRepo),
		LeadRepo: f.leadRepo,
		CallRepo: calls.NewMemoryRepo(),
		SmsRepo:  sms.NewMemoryRepo(),
	}

	r := gin.New()
	r.POST("/v1/admin/login", h.Login)
	api := r.Group("/v1/admin", RequireSession(sessions))
	api.GET("/leads", h.ListLeads)
	api.PATCH("/leads/:id/status", h.UpdateLeadStatus)
	api.GET("/calls", h.ListCalls)
	api.GET("/sms", h.ListSms)
	api.GET("/summary", h.Summary)

	f.router = r
	return f
}

func (f *adminFixture) do(method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *adminFixture) login(t *testing.T) string {
	t.Helper()
	w := f.do(http.MethodPost, "/v1/admin/login", "", `{"email":"owner@acme.test","password":"hunter2!"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Token    string `json:"token"`
		TenantID string `json:"tenant_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("login response: %v", err)
	}
	if resp.TenantID != "t1" || resp.Token == "" {
		t.Fatalf("unexpected login response: %s", w.Body.String())
	}
	return resp.Token
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newAdminFixture(t)

	w := f.do(http.MethodPost, "/v1/admin/login", "", `{"email":"owner@acme.test","password":"wrong"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	w = f.do(http.MethodPost, "/v1/admin/login", "", `{"email":"nobody@acme.test","password":"hunter2!"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown email, got %d", w.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newAdminFixture(t)

	if w := f.do(http.MethodGet, "/v1/admin/leads", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if w := f.do(http.MethodGet, "/v1/admin/leads", "garbage", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", w.Code)
	}
}

func TestListLeadsScopedToTokenTenant(t *testing.T) {
	f := newAdminFixture(t)
	token := f.login(t)

	seed := []leads.Lead{
		{ID: "l1", TenantID: "t1", FullName: "Caller One", Phone: "+15551110001", Status: leads.StatusNew, Source: leads.SourcePhone},
		{ID: "l2", TenantID: "t2", FullName: "Other Tenant", Phone: "+15551110002", Status: leads.StatusNew, Source: leads.SourcePhone},
	}
	for _, l := range seed {
		if err := f.leadRepo.Insert(context.Background(), l); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	w := f.do(http.MethodGet, "/v1/admin/leads", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, "Caller One") {
		t.Fatalf("expected own tenant lead in response: %s", body)
	}
	if strings.Contains(body, "Other Tenant") {
		t.Fatalf("cross-tenant lead leaked: %s", body)
	}
}

func TestUpdateLeadStatus(t *testing.T) {
	f := newAdminFixture(t)
	token := f.login(t)

	if err := f.leadRepo.Insert(context.Background(), leads.Lead{
		ID: "l1", TenantID: "t1", FullName: "Caller", Phone: "+15551110001",
		Status: leads.StatusNew, Source: leads.SourcePhone,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := f.do(http.MethodPatch, "/v1/admin/leads/l1/status", token, `{"status":"contacted"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	got, err := f.leadRepo.GetByID(context.Background(), "t1", "l1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != leads.StatusContacted {
		t.Fatalf("expected contacted, got %q", got.Status)
	}

	if w := f.do(http.MethodPatch, "/v1/admin/leads/l1/status", token, `{"status":"bogus"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid status, got %d", w.Code)
	}
	if w := f.do(http.MethodPatch, "/v1/admin/leads/nope/status", token, `{"status":"contacted"}`); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown lead, got %d", w.Code)
	}
}

func TestSummaryCounts(t *testing.T) {
	f := newAdminFixture(t)
	token := f.login(t)

	for _, l := range []leads.Lead{
		{ID: "l1", TenantID: "t1", Phone: "+15551110001", Status: leads.StatusNew, Source: leads.SourcePhone},
		{ID: "l2", TenantID: "t1", Phone: "+15551110002", Status: leads.StatusContacted, Source: leads.SourceSMS},
	} {
		if err := f.leadRepo.Insert(context.Background(), l); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	w := f.do(http.MethodGet, "/v1/admin/summary", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		LeadsByStatus map[string]int `json:"leads_by_status"`
		MissedCalls   int            `json:"missed_calls"`
		InboundSms    int            `json:"inbound_sms"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("summary response: %v", err)
	}
	if resp.LeadsByStatus["new"] != 1 || resp.LeadsByStatus["contacted"] != 1 {
		t.Fatalf("unexpected lead counts: %+v", resp.LeadsByStatus)
	}
	if resp.MissedCalls != 0 || resp.InboundSms != 0 {
		t.Fatalf("expected zero call/sms counts, got %+v", resp)
	}
}
