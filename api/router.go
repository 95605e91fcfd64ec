package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"coordinator-core/core"
)

// Router builds the flat route table of §6. Every route composes explicit
// middleware stages ahead of its handler; nothing is buried inside a
// dispatch-by-reflection framework.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/enroll", s.requireMeshToken(s.handleEnroll)).Methods(http.MethodPost)
	r.HandleFunc("/heartbeat", s.requireSignature(s.handleHeartbeat)).Methods(http.MethodPost)

	r.HandleFunc("/submit", s.requireSignature(s.handleSubmit)).Methods(http.MethodPost)
	r.HandleFunc("/pull", s.requireSignature(s.handlePull)).Methods(http.MethodPost)
	r.HandleFunc("/result", s.requireSignature(s.handleResult)).Methods(http.MethodPost)
	r.HandleFunc("/status", s.requireSignature(s.handleStatus)).Methods(http.MethodGet)

	r.HandleFunc("/mesh/peers", s.requireMeshToken(s.handleMeshPeers)).Methods(http.MethodGet)
	r.HandleFunc("/mesh/hello", s.requireMeshToken(s.handleMeshHello)).Methods(http.MethodPost)
	r.HandleFunc("/mesh/ws", s.handleMeshWS)

	r.HandleFunc("/security/blacklist", s.requireSignature(s.handleBlacklistSubmit)).Methods(http.MethodPost)
	r.HandleFunc("/security/blacklist", s.requireMeshToken(s.handleBlacklistSince)).Methods(http.MethodGet)

	r.HandleFunc("/economy/price/current", s.handlePriceCurrent).Methods(http.MethodGet)
	r.HandleFunc("/economy/price/propose", s.requireMeshToken(s.handlePriceProposal)).Methods(http.MethodPost)
	r.HandleFunc("/economy/price/consensus", s.requireMeshToken(s.handlePriceConsensus)).Methods(http.MethodPost)

	r.HandleFunc("/economy/payments/intents", s.requireSignature(s.handleCreateIntent)).Methods(http.MethodPost)
	r.HandleFunc("/economy/payments/intents/{id}", s.requireSignature(s.handleGetIntent)).Methods(http.MethodGet)
	r.HandleFunc("/economy/payments/intents/{id}/confirm", s.requireSignature(s.handleConfirmIntent)).Methods(http.MethodPost)
	r.HandleFunc("/economy/payments/reconcile", s.requirePortalToken(s.handleReconcile)).Methods(http.MethodPost)

	r.HandleFunc("/economy/treasury/policies", s.requirePortalToken(s.handleCreateTreasuryPolicy)).Methods(http.MethodPost)
	r.HandleFunc("/economy/treasury", s.handleTreasury).Methods(http.MethodGet)

	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code    core.Code `json:"code"`
	Message string    `json:"message"`
}

func writeError(w http.ResponseWriter, err *core.CoordError) {
	if err == nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Code: core.ErrValidationFailed, Message: "nil error"})
		return
	}
	writeJSON(w, core.StatusFor(err.Code), errorBody{Code: err.Code, Message: err.Message})
}

func decodeBody(r *http.Request, v any) *core.CoordError {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return core.Fail(core.ErrValidationFailed, "malformed json body")
	}
	return nil
}

func muxVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}
