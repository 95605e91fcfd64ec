package api

import (
	"crypto/ed25519"
	"encoding/base64"
	"net/http"

	"coordinator-core/core"
)

type enrollRequest struct {
	AgentID           string           `json:"agentId"`
	PublicKey         string           `json:"publicKey"` // base64 ed25519 public key
	OS                core.OS          `json:"os"`
	Role              core.AgentRole   `json:"role"`
	Capability        core.Capability  `json:"capability"`
	RegistrationToken string           `json:"registrationToken"`
}

type enrollResponse struct {
	AgentID        string             `json:"agentId"`
	Approval       core.ApprovalState `json:"approval"`
	WalletRequired bool               `json:"walletRequired"`
}

// handleEnroll implements POST /enroll, gated by the mesh/bootstrap token per
// §6 (enrollment happens before an agent has a signing identity on file).
func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if cErr := decodeBody(r, &req); cErr != nil {
		writeError(w, cErr)
		return
	}
	pub, err := base64.StdEncoding.DecodeString(req.PublicKey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		writeError(w, core.Fail(core.ErrValidationFailed, "publicKey must be base64 ed25519 key"))
		return
	}

	result, cErr := s.Registry.Enroll(req.AgentID, ed25519.PublicKey(pub), req.Capability, req.OS, req.Role, req.RegistrationToken)
	if cErr != nil {
		writeError(w, cErr)
		return
	}
	writeJSON(w, http.StatusOK, enrollResponse{AgentID: result.AgentID, Approval: result.Approval, WalletRequired: result.WalletRequired})
}

type heartbeatRequest struct {
	Power core.PowerTelemetry `json:"power"`
}

// handleHeartbeat implements POST /heartbeat, signed by the agent's own key.
func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	agentID := signedSourceFrom(r)
	var req heartbeatRequest
	if cErr := decodeBody(r, &req); cErr != nil {
		writeError(w, cErr)
		return
	}
	req.Power.ReportedAtMs = s.Now().UnixMilli()
	if cErr := s.Registry.Heartbeat(agentID, req.Power); cErr != nil {
		writeError(w, cErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
