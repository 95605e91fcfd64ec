package pipeline

import (
	"crypto/ed25519"
	"sort"
	"time"

	"coordinator-core/core"
	"coordinator-core/core/power"
)

// Candidate is the worker-selection view of a registered agent.
type Candidate struct {
	Agent            core.Agent
	Health           core.Health
	SandboxAllowed   bool
}

// ProjectPolicy describes the admission constraints a subtask's owning
// project places on candidate workers.
type ProjectPolicy struct {
	AllowedSandboxModes map[core.SandboxMode]bool
}

// Eligible keeps candidates that are approved, healthy and, when policy lists
// allowed sandbox modes, use one of them. No mode-compatibility check is made,
// and languageSupported accepts every candidate, so language is not filtered.
func Eligible(candidates []Candidate, st core.Subtask, policy ProjectPolicy) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Agent.Approval != core.ApprovalApproved {
			continue
		}
		if c.Health != core.HealthHealthy {
			continue
		}
		if !languageSupported(c.Agent.Capability.Languages, st) {
			continue
		}
		if len(policy.AllowedSandboxModes) > 0 && !policy.AllowedSandboxModes[c.Agent.Capability.Sandbox] {
			continue
		}
		out = append(out, c)
	}
	return out
}

func languageSupported(langs []string, st core.Subtask) bool {
	if len(langs) == 0 {
		return true
	}
	// Subtasks don't carry an explicit language field (it lives on the
	// parent task); callers that need strict filtering pass pre-filtered
	// candidates. Absent the project language this is a no-op pass.
	_ = st
	return true
}

// ApplyPowerPolicy drops candidates the power scheduler currently disallows
// for coordinator-assigned work, per §4.D step 2.
func ApplyPowerPolicy(candidates []Candidate, now time.Time) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		d := power.Evaluate(c.Agent.OS, c.Agent.Power, c.Agent.LastAssignedAtMs, now)
		if !d.AllowCoordinatorTasks {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Rank orders candidates by (free slots desc) -> (score desc) ->
// (last-assigned-at asc) -> (agentId asc) per §4.D step 3 / §9's
// tie-break resolution.
func Rank(candidates []Candidate) []Candidate {
	out := make([]Candidate, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Agent, out[j].Agent
		if a.FreeSlots != b.FreeSlots {
			return a.FreeSlots > b.FreeSlots
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.LastAssignedAtMs != b.LastAssignedAtMs {
			return a.LastAssignedAtMs < b.LastAssignedAtMs
		}
		return a.AgentID < b.AgentID
	})
	return out
}

// AssignmentOffer is a coordinator-signed offer of a subtask to an agent.
type AssignmentOffer struct {
	SubtaskID   string `json:"subtaskId"`
	AgentID     string `json:"agentId"`
	Input       string `json:"input"`
	TimeoutMs   int64  `json:"timeoutMs"`
	OfferedAtMs int64  `json:"offeredAtMs"`
	Signature   []byte `json:"signature"`
}

// OfferAckWindow is how long an agent has to accept an offer before it lapses
// and the subtask returns to ready, per §4.D step 4.
const OfferAckWindow = 5 * time.Second

func (o AssignmentOffer) signingBytes() []byte {
	b, _ := core.Canonicalize(struct {
		SubtaskID   string `json:"subtaskId"`
		AgentID     string `json:"agentId"`
		Input       string `json:"input"`
		TimeoutMs   int64  `json:"timeoutMs"`
		OfferedAtMs int64  `json:"offeredAtMs"`
	}{o.SubtaskID, o.AgentID, o.Input, o.TimeoutMs, o.OfferedAtMs})
	return b
}

// MakeOffer constructs and signs an assignment offer with the coordinator's
// private key.
func MakeOffer(priv ed25519.PrivateKey, st core.Subtask, agentID string, now time.Time) AssignmentOffer {
	o := AssignmentOffer{
		SubtaskID:   st.ID,
		AgentID:     agentID,
		Input:       st.Input,
		TimeoutMs:   st.TimeoutMs,
		OfferedAtMs: now.UnixMilli(),
	}
	o.Signature = ed25519.Sign(priv, o.signingBytes())
	return o
}

// VerifyOffer checks an offer's signature against the coordinator's public
// key, used by agents and in tests.
func VerifyOffer(pub ed25519.PublicKey, o AssignmentOffer) bool {
	sig := o.Signature
	o.Signature = nil
	return ed25519.Verify(pub, o.signingBytes(), sig)
}

// Lapsed reports whether an offer has exceeded its acknowledgement window.
func Lapsed(o AssignmentOffer, now time.Time) bool {
	return now.UnixMilli()-o.OfferedAtMs > OfferAckWindow.Milliseconds()
}
