package ledger

import "coordinator-core/core"

// TreasuryState is the custody policy lifecycle of §4.F.
type TreasuryState string

const (
	TreasuryDraft   TreasuryState = "draft"
	TreasuryActive  TreasuryState = "active"
	TreasuryRetired TreasuryState = "retired"
)

// TreasuryPolicy describes a custody arrangement and its quorum rule.
type TreasuryPolicy struct {
	Descriptor      string        `json:"descriptor"`
	QuorumThreshold int           `json:"quorumThreshold"`
	TotalCustodians int           `json:"totalCustodians"`
	State           TreasuryState `json:"state"`
}

// CustodySignature is one custodian's signature over a custody action.
type CustodySignature struct {
	CustodianID string `json:"custodianId"`
	Signature   []byte `json:"signature"`
}

// CustodyAction is the ledger payload for a treasury state transition.
type CustodyAction struct {
	PolicyID   string             `json:"policyId"`
	FromState  TreasuryState      `json:"fromState"`
	ToState    TreasuryState      `json:"toState"`
	Signatures []CustodySignature `json:"signatures"`
}

// Activate transitions a draft policy to active, provided at least
// QuorumThreshold distinct custodian signatures are present.
func Activate(policy TreasuryPolicy, sigs []CustodySignature) (*CustodyAction, *core.CoordError) {
	if policy.State != TreasuryDraft {
		return nil, core.Fail(core.ErrValidationFailed, "policy must be draft to activate")
	}
	distinct := distinctCustodians(sigs)
	if distinct < policy.QuorumThreshold {
		return nil, core.Failf(core.ErrValidationFailed, "need %d custodian signatures, got %d", policy.QuorumThreshold, distinct)
	}
	return &CustodyAction{FromState: TreasuryDraft, ToState: TreasuryActive, Signatures: sigs}, nil
}

// Retire transitions an active policy to retired.
func Retire(policy TreasuryPolicy, sigs []CustodySignature) (*CustodyAction, *core.CoordError) {
	if policy.State != TreasuryActive {
		return nil, core.Fail(core.ErrValidationFailed, "policy must be active to retire")
	}
	distinct := distinctCustodians(sigs)
	if distinct < policy.QuorumThreshold {
		return nil, core.Failf(core.ErrValidationFailed, "need %d custodian signatures, got %d", policy.QuorumThreshold, distinct)
	}
	return &CustodyAction{FromState: TreasuryActive, ToState: TreasuryRetired, Signatures: sigs}, nil
}

func distinctCustodians(sigs []CustodySignature) int {
	seen := make(map[string]struct{}, len(sigs))
	for _, s := range sigs {
		seen[s.CustodianID] = struct{}{}
	}
	return len(seen)
}
