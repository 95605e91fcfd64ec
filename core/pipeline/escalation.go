package pipeline

import "coordinator-core/core"

// EscalationReason enumerates why a subtask is escalated rather than failed.
type EscalationReason string

const (
	EscalationExceedsLocalCapability EscalationReason = "exceeds_local_capability"
	EscalationAttemptsExhausted      EscalationReason = "attempts_exhausted"
)

// EscalationTarget is where an escalated subtask is handed off to.
type EscalationTarget string

const (
	EscalationToPeer          EscalationTarget = "peer"
	EscalationToExternalModel EscalationTarget = "external_model"
)

// EscalationRecord is the ledger payload for an escalation event, per §4.D
// ("Escalation is itself a subtask record in the ledger").
type EscalationRecord struct {
	SubtaskID string           `json:"subtaskId"`
	TaskID    string           `json:"taskId"`
	Reason    EscalationReason `json:"reason"`
	Target    EscalationTarget `json:"target"`
	PeerID    string           `json:"peerId,omitempty"`
	AtMs      int64            `json:"atMs"`
}

// ExternalModel is the larger-model endpoint a task may be handed to when a
// subtask exceeds local capability. Out of scope per §1; reached only
// through this interface.
type ExternalModel interface {
	Handle(subtaskID string, input string) (output string, err error)
}

// Escalate builds the ledger-bound escalation record for a subtask. The
// caller is responsible for appending it via core/ledger and for the actual
// handoff (peer mesh send or ExternalModel.Handle).
func Escalate(st core.Subtask, reason EscalationReason, target EscalationTarget, peerID string, atMs int64) EscalationRecord {
	return EscalationRecord{
		SubtaskID: st.ID,
		TaskID:    st.TaskID,
		Reason:    reason,
		Target:    target,
		PeerID:    peerID,
		AtMs:      atMs,
	}
}
