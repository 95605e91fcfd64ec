package api

import (
	"net/http"
	"strconv"

	"coordinator-core/core"
)

type blacklistSubmitRequest struct {
	AgentID            string           `json:"agentId"`
	ReasonCode         core.ReasonCode  `json:"reasonCode"`
	ReasonText         string           `json:"reasonText"`
	EvidenceHashSha256 string           `json:"evidenceHashSha256"`
	ReporterSignature  string           `json:"reporterSignature"`
}

// handleBlacklistSubmit implements POST /security/blacklist, signed by the
// reporting agent or peer, per §4.G.
func (s *Server) handleBlacklistSubmit(w http.ResponseWriter, r *http.Request) {
	reporterID := signedSourceFrom(r)
	var req blacklistSubmitRequest
	if cErr := decodeBody(r, &req); cErr != nil {
		writeError(w, cErr)
		return
	}
	rec := core.BlacklistRecord{
		AgentID:            req.AgentID,
		ReasonCode:         req.ReasonCode,
		ReasonText:         req.ReasonText,
		EvidenceHashSha256: req.EvidenceHashSha256,
		ReporterID:         reporterID,
		ReporterSignature:  req.ReporterSignature,
		IssuedAtMs:         s.Now().UnixMilli(),
	}
	if cErr := s.Blacklist.Submit(rec, reporterID, s.Now().UnixMilli()); cErr != nil {
		writeError(w, cErr)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
}

// handleBlacklistSince implements GET /security/blacklist?since=version,
// mesh-token gated since it serves the cross-peer DELTA exchange over HTTP
// as well as over /mesh/ws.
func (s *Server) handleBlacklistSince(w http.ResponseWriter, r *http.Request) {
	since, _ := strconv.ParseUint(r.URL.Query().Get("since"), 10, 64)
	writeJSON(w, http.StatusOK, s.Blacklist.Delta(since))
}
