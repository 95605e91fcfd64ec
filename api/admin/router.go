// Package admin exposes operator-only agent actions — approval, suspension,
// rejection, blacklist re-enable and listing — on a separate chi router bound
// to a different listen address than the public coordinator API. The public
// API still carries its own portal-token-gated routes (payment reconcile,
// treasury policy creation).
package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"coordinator-core/core"
	"coordinator-core/core/auth"
	"coordinator-core/core/blacklist"
	"coordinator-core/core/registry"
)

// Server holds the collaborators the admin surface mutates directly,
// bypassing the agent-facing signature/nonce pipeline in favor of a single
// trusted portal-service token.
type Server struct {
	Registry   *registry.Registry
	Blacklist  *blacklist.Store
	PortalGate *auth.PortalTokenGate
	Log        *logrus.Entry
}

// Router builds the admin-only chi router.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(s.requirePortalToken)

	r.Post("/agents/{id}/approve", s.handleApprove)
	r.Post("/agents/{id}/suspend", s.handleSuspend)
	r.Post("/agents/{id}/reject", s.handleReject)
	r.Post("/agents/{id}/reenable-blacklist", s.handleReenable)
	r.Get("/agents", s.handleListAgents)

	return r
}

func (s *Server) requirePortalToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("x-portal-token")
		if token == "" || s.PortalGate == nil || !s.PortalGate.Check(token) {
			writeError(w, core.Fail(core.ErrMeshTokenRequired, "missing or invalid portal token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if cErr := s.Registry.Approve(id); cErr != nil {
		writeError(w, cErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleSuspend(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if cErr := s.Registry.Suspend(id); cErr != nil {
		writeError(w, cErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if cErr := s.Registry.Reject(id); cErr != nil {
		writeError(w, cErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleReenable(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.Blacklist != nil {
		s.Blacklist.Reenable(id)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Registry.List(registry.Filter{}))
}

// Treasury custody transitions (ledger.Activate / ledger.Retire) are not
// exposed on this surface; treasury policies are created through the public
// API's portal-token-gated /economy/treasury/policies route.
