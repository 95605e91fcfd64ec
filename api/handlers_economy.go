package api

import (
	"net/http"
	"sync"

	"coordinator-core/core"
	"coordinator-core/core/ledger"
)

// priceState holds the coordinator's current unit price and the in-flight
// consensus round's proposals, per §4.F.
type priceState struct {
	mu        sync.Mutex
	current   float64
	proposals []ledger.PriceProposal
}

var globalPrice = &priceState{current: 1.0}

type priceResponse struct {
	PriceSatsPerUnit float64 `json:"priceSatsPerUnit"`
}

// handlePriceCurrent implements GET /economy/price/current.
func (s *Server) handlePriceCurrent(w http.ResponseWriter, r *http.Request) {
	globalPrice.mu.Lock()
	p := globalPrice.current
	globalPrice.mu.Unlock()
	writeJSON(w, http.StatusOK, priceResponse{PriceSatsPerUnit: p})
}

type priceProposalRequest struct {
	PeerID string  `json:"peerId"`
	Value  float64 `json:"value"`
	Weight float64 `json:"weight"`
}

// handlePriceProposal implements POST /economy/price/propose, mesh-token
// gated since only peer coordinators contribute to price consensus.
func (s *Server) handlePriceProposal(w http.ResponseWriter, r *http.Request) {
	var req priceProposalRequest
	if cErr := decodeBody(r, &req); cErr != nil {
		writeError(w, cErr)
		return
	}
	globalPrice.mu.Lock()
	globalPrice.proposals = append(globalPrice.proposals, ledger.PriceProposal{PeerID: req.PeerID, Value: req.Value, Weight: req.Weight})
	globalPrice.mu.Unlock()
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

// handlePriceConsensus implements POST /economy/price/consensus: folds every
// proposal received since the last round into a new weighted-median price
// and records it on the ledger.
func (s *Server) handlePriceConsensus(w http.ResponseWriter, r *http.Request) {
	globalPrice.mu.Lock()
	proposals := globalPrice.proposals
	globalPrice.proposals = nil
	globalPrice.mu.Unlock()

	if len(proposals) == 0 {
		writeJSON(w, http.StatusOK, priceResponse{PriceSatsPerUnit: globalPrice.current})
		return
	}
	next := ledger.WeightedMedian(proposals)

	globalPrice.mu.Lock()
	globalPrice.current = next
	globalPrice.mu.Unlock()

	if s.Ledger != nil {
		_, _ = s.Ledger.Append(core.PayloadPriceProposal, map[string]any{"priceSatsPerUnit": next, "proposals": len(proposals)}, s.CoordinatorID, s.Now().UnixMilli())
	}
	writeJSON(w, http.StatusOK, priceResponse{PriceSatsPerUnit: next})
}

type createIntentRequest struct {
	IntentID   string `json:"intentId"`
	AccountID  string `json:"accountId"`
	AmountSats int64  `json:"amountSats"`
	FeeBps     int64  `json:"feeBps"`
}

// handleCreateIntent implements POST /economy/payments/intents.
func (s *Server) handleCreateIntent(w http.ResponseWriter, r *http.Request) {
	var req createIntentRequest
	if cErr := decodeBody(r, &req); cErr != nil {
		writeError(w, cErr)
		return
	}
	intent := s.Intents.Create(req.IntentID, req.AccountID, req.AmountSats, req.FeeBps, s.Now().UnixMilli())
	writeJSON(w, http.StatusCreated, intent)
}

// handleGetIntent implements GET /economy/payments/intents/{id}.
func (s *Server) handleGetIntent(w http.ResponseWriter, r *http.Request) {
	id := muxVar(r, "id")
	intent, ok := s.Intents.Get(id)
	if !ok {
		writeError(w, core.Fail(core.ErrTaskNotFound, id))
		return
	}
	writeJSON(w, http.StatusOK, intent)
}

// handleConfirmIntent implements POST /economy/payments/intents/{id}/confirm.
func (s *Server) handleConfirmIntent(w http.ResponseWriter, r *http.Request) {
	id := muxVar(r, "id")
	actorID := signedSourceFrom(r)
	entry, cErr := s.Intents.Confirm(id, actorID, s.Now().UnixMilli())
	if cErr != nil {
		writeError(w, cErr)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

type reconcileRequest struct {
	IntentID string `json:"intentId"`
}

// handleReconcile implements POST /economy/payments/reconcile, restricted to
// the trusted portal backend.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if cErr := decodeBody(r, &req); cErr != nil {
		writeError(w, cErr)
		return
	}
	if cErr := s.Intents.Reconcile(req.IntentID); cErr != nil {
		writeError(w, cErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type createTreasuryPolicyRequest struct {
	PolicyID        string                     `json:"policyId"`
	Descriptor      string                     `json:"descriptor"`
	QuorumThreshold int                        `json:"quorumThreshold"`
	TotalCustodians int                        `json:"totalCustodians"`
}

// handleCreateTreasuryPolicy implements POST /economy/treasury/policies,
// portal-token gated.
func (s *Server) handleCreateTreasuryPolicy(w http.ResponseWriter, r *http.Request) {
	var req createTreasuryPolicyRequest
	if cErr := decodeBody(r, &req); cErr != nil {
		writeError(w, cErr)
		return
	}
	policy := &ledger.TreasuryPolicy{
		Descriptor:      req.Descriptor,
		QuorumThreshold: req.QuorumThreshold,
		TotalCustodians: req.TotalCustodians,
		State:           ledger.TreasuryDraft,
	}
	s.mu.Lock()
	s.treasury[req.PolicyID] = policy
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, policy)
}

// handleTreasury implements GET /economy/treasury.
func (s *Server) handleTreasury(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*ledger.TreasuryPolicy, len(s.treasury))
	for k, v := range s.treasury {
		out[k] = v
	}
	writeJSON(w, http.StatusOK, out)
}
