package ledger

import (
	"sync"

	"coordinator-core/core"
)

// PaymentIntentStatus is the lifecycle of a credit payment intent.
type PaymentIntentStatus string

const (
	IntentPending   PaymentIntentStatus = "pending"
	IntentConfirmed PaymentIntentStatus = "confirmed"
	IntentReconciled PaymentIntentStatus = "reconciled"
)

// PaymentIntent records an account's intent to earn or spend credit, ahead
// of the ledger entries that realize it once confirmed.
type PaymentIntent struct {
	ID         string              `json:"id"`
	AccountID  string              `json:"accountId"`
	AmountSats int64               `json:"amountSats"`
	FeeBps     int64               `json:"feeBps"`
	Status     PaymentIntentStatus `json:"status"`
	CreatedAtMs int64              `json:"createdAtMs"`
}

// PaymentIntentStore tracks payment intents pending confirmation against the
// ledger. It is the seam between the externally-facing /economy/payments
// routes and the ledger's credit entries.
type PaymentIntentStore struct {
	mu      sync.Mutex
	intents map[string]*PaymentIntent
	ledger  *Ledger
}

// NewPaymentIntentStore constructs a store bound to a ledger.
func NewPaymentIntentStore(l *Ledger) *PaymentIntentStore {
	return &PaymentIntentStore{intents: make(map[string]*PaymentIntent), ledger: l}
}

// Create registers a new pending intent.
func (s *PaymentIntentStore) Create(id, accountID string, amountSats, feeBps int64, nowMs int64) *PaymentIntent {
	intent := &PaymentIntent{ID: id, AccountID: accountID, AmountSats: amountSats, FeeBps: feeBps, Status: IntentPending, CreatedAtMs: nowMs}
	s.mu.Lock()
	s.intents[id] = intent
	s.mu.Unlock()
	return intent
}

// Get returns a copy of the intent, if present.
func (s *PaymentIntentStore) Get(id string) (PaymentIntent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.intents[id]
	if !ok {
		return PaymentIntent{}, false
	}
	return *i, true
}

// Confirm marks a pending intent confirmed and appends one credit-earn
// ledger entry for its net amount (amount minus fee). The fee itself is not
// recorded as a separate ledger entry.
func (s *PaymentIntentStore) Confirm(id, actorID string, nowMs int64) (*core.LedgerEntry, *core.CoordError) {
	s.mu.Lock()
	intent, ok := s.intents[id]
	if !ok {
		s.mu.Unlock()
		return nil, core.Fail(core.ErrTaskNotFound, id)
	}
	if intent.Status != IntentPending {
		s.mu.Unlock()
		return nil, core.Fail(core.ErrAlreadyCancelled, "intent not pending")
	}
	intent.Status = IntentConfirmed
	fee, net := ComputeIntentFee(intent.AmountSats, intent.FeeBps)
	payload := CreditTxPayload{AccountID: intent.AccountID, AmountSats: net, RefTxID: id}
	s.mu.Unlock()

	entry, err := s.ledger.Append(core.PayloadCreditEarn, payload, actorID, nowMs)
	if err != nil {
		return nil, core.WrapErr(core.ErrLedgerVerifyFailed, err)
	}
	_ = fee
	return entry, nil
}

// Reconcile marks a confirmed intent reconciled after an external settlement
// check.
func (s *PaymentIntentStore) Reconcile(id string) *core.CoordError {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.intents[id]
	if !ok {
		return core.Fail(core.ErrTaskNotFound, id)
	}
	if intent.Status != IntentConfirmed {
		return core.Fail(core.ErrAlreadyCancelled, "intent not confirmed")
	}
	intent.Status = IntentReconciled
	return nil
}
