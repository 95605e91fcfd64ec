package admin

import (
	"crypto/ed25519"
	"net/http"
	"net/http/httptest"
	"testing"

	"coordinator-core/core"
	"coordinator-core/core/auth"
	"coordinator-core/core/registry"
)

type allowAllBlacklist struct{}

func (allowAllBlacklist) IsBlacklisted(string) bool { return false }

func newTestAdminServer() *Server {
	return &Server{
		Registry:   registry.New(allowAllBlacklist{}, nil, nil),
		PortalGate: auth.NewPortalTokenGate("portal-secret"),
	}
}

func TestAdminRouterRejectsMissingPortalToken(t *testing.T) {
	s := newTestAdminServer()
	req := httptest.NewRequest(http.MethodGet, "/agents", nil)
	w := httptest.NewRecorder()

	s.Router().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAdminApproveUnknownAgentReturnsNotFound(t *testing.T) {
	s := newTestAdminServer()
	req := httptest.NewRequest(http.MethodPost, "/agents/ghost/approve", nil)
	req.Header.Set("x-portal-token", "portal-secret")
	w := httptest.NewRecorder()

	s.Router().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown agent, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAdminApproveEnrolledAgentSucceeds(t *testing.T) {
	s := newTestAdminServer()
	pub, _, _ := ed25519.GenerateKey(nil)
	s.Registry.Enroll("agent-1", pub, core.Capability{MaxConcurrentSlots: 1}, core.OSLinux, core.RoleIDEEnabled, "")

	req := httptest.NewRequest(http.MethodPost, "/agents/agent-1/approve", nil)
	req.Header.Set("x-portal-token", "portal-secret")
	w := httptest.NewRecorder()

	s.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAdminListAgentsReturnsEnrolled(t *testing.T) {
	s := newTestAdminServer()
	pub, _, _ := ed25519.GenerateKey(nil)
	s.Registry.Enroll("agent-1", pub, core.Capability{MaxConcurrentSlots: 1}, core.OSLinux, core.RoleIDEEnabled, "")

	req := httptest.NewRequest(http.MethodGet, "/agents", nil)
	req.Header.Set("x-portal-token", "portal-secret")
	w := httptest.NewRecorder()

	s.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
