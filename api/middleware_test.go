package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"coordinator-core/core/auth"
)

func newTestServer() *Server {
	s := NewServer("coord-1", nil, nil)
	s.MeshGate = auth.NewMeshTokenGate("mesh-secret")
	s.PortalGate = auth.NewPortalTokenGate("portal-secret")
	return s
}

func TestRequireMeshTokenRejectsMissingToken(t *testing.T) {
	s := newTestServer()
	called := false
	h := s.requireMeshToken(func(w http.ResponseWriter, r *http.Request) { called = true })

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/mesh/peers", nil))

	if called {
		t.Fatal("expected handler not to run without a mesh token")
	}
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRequireMeshTokenAcceptsCorrectToken(t *testing.T) {
	s := newTestServer()
	called := false
	h := s.requireMeshToken(func(w http.ResponseWriter, r *http.Request) { called = true })

	req := httptest.NewRequest(http.MethodGet, "/mesh/peers", nil)
	req.Header.Set("x-mesh-token", "mesh-secret")
	w := httptest.NewRecorder()
	h(w, req)

	if !called {
		t.Fatal("expected handler to run with a valid mesh token")
	}
}

func TestRequirePortalTokenRejectsWrongToken(t *testing.T) {
	s := newTestServer()
	called := false
	h := s.requirePortalToken(func(w http.ResponseWriter, r *http.Request) { called = true })

	req := httptest.NewRequest(http.MethodPost, "/economy/treasury/policies", nil)
	req.Header.Set("x-portal-token", "wrong")
	w := httptest.NewRecorder()
	h(w, req)

	if called {
		t.Fatal("expected handler not to run with the wrong portal token")
	}
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestSignedSourceRoundTripsThroughContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	withSource := withSignedSource(req, "agent-7")
	if got := signedSourceFrom(withSource); got != "agent-7" {
		t.Fatalf("expected signed source agent-7, got %q", got)
	}
}

func TestSignedSourceFromBareRequestIsEmpty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := signedSourceFrom(req); got != "" {
		t.Fatalf("expected empty signed source on a bare request, got %q", got)
	}
}
