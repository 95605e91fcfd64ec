// Package core holds the domain types and pure algorithms shared by every
// coordinator component. It has no dependency on the HTTP/WS transport or on
// any concrete storage engine.
package core

import "time"

// OS identifies the operating system family an agent runs on.
type OS string

const (
	OSMacOS   OS = "macos"
	OSLinux   OS = "linux"
	OSWindows OS = "windows"
	OSIOS     OS = "ios"
	OSAndroid OS = "android"
)

// AgentRole distinguishes a headless worker from one embedded in an IDE.
type AgentRole string

const (
	RoleSwarmOnly  AgentRole = "swarm-only"
	RoleIDEEnabled AgentRole = "ide-enabled"
)

// SandboxMode describes the isolation an agent offers when executing code.
type SandboxMode string

const (
	SandboxContainer        SandboxMode = "container"
	SandboxProcessIsolation SandboxMode = "process-isolation"
	SandboxNone             SandboxMode = "none"
)

// ApprovalState is the agent admission state machine.
type ApprovalState string

const (
	ApprovalPending   ApprovalState = "pendingApproval"
	ApprovalApproved  ApprovalState = "approved"
	ApprovalSuspended ApprovalState = "suspended"
)

// ThermalState mirrors the host OS thermal pressure levels.
type ThermalState string

const (
	ThermalNominal  ThermalState = "nominal"
	ThermalFair     ThermalState = "fair"
	ThermalSerious  ThermalState = "serious"
	ThermalCritical ThermalState = "critical"
)

// DeviceClass is the coarse hardware category used by the power scheduler.
type DeviceClass string

const (
	DeviceDesktop DeviceClass = "desktop"
	DeviceLaptop  DeviceClass = "laptop"
	DeviceServer  DeviceClass = "server"
	DevicePhone   DeviceClass = "phone"
)

// Health is the derived liveness classification of an agent.
type Health string

const (
	HealthHealthy Health = "healthy"
	HealthStale   Health = "stale"
	HealthOffline Health = "offline"
)

const (
	healthyWindow = 30 * time.Second
	staleWindow   = 5 * time.Minute
)

// DeriveHealth classifies lastSeen against now per §4.B.
func DeriveHealth(lastSeen, now time.Time) Health {
	age := now.Sub(lastSeen)
	switch {
	case age < healthyWindow:
		return HealthHealthy
	case age < staleWindow:
		return HealthStale
	default:
		return HealthOffline
	}
}

// PowerTelemetry is the latest self-reported power state of an agent.
type PowerTelemetry struct {
	BatteryPct      float64      `json:"batteryPct"`
	OnExternalPower bool         `json:"onExternalPower"`
	Thermal         ThermalState `json:"thermal"`
	LowPowerMode    bool         `json:"lowPowerMode"`
	CPUPct          float64      `json:"cpuPct"`
	DeviceClass     DeviceClass  `json:"deviceClass"`
	ReportedAtMs    int64        `json:"reportedAtMs"`
}

// Capability describes what work an agent is willing and able to accept.
type Capability struct {
	MaxConcurrentSlots int      `json:"maxConcurrentSlots"`
	Languages          []string `json:"languages"`
	Sandbox            SandboxMode `json:"sandbox"`
	HasGPU             bool     `json:"hasGpu"`
}

// Agent is a registered worker, owned exclusively by the coordinator that
// accepted its enrollment.
type Agent struct {
	AgentID   string    `json:"agentId"`
	PublicKey []byte    `json:"publicKey"`
	OS        OS        `json:"os"`
	Version   string    `json:"version"`
	Role      AgentRole `json:"role"`

	Capability Capability `json:"capability"`

	LastSeenMs       int64 `json:"lastSeenMs"`
	ConsecutiveMiss  int   `json:"consecutiveMiss"`

	Approval      ApprovalState `json:"approval"`
	WalletAccount string        `json:"walletAccount,omitempty"`

	Power PowerTelemetry `json:"power"`

	LastAssignedAtMs int64 `json:"lastAssignedAtMs"`
	Score            float64 `json:"score"`
	FreeSlots        int     `json:"freeSlots"`

	CreatedAtMs int64 `json:"createdAtMs"`
	SoftDeleted bool  `json:"softDeleted"`
}

// PeerCoordinator is another coordinator participating in the mesh. The
// relationship is symmetric and never owned.
type PeerCoordinator struct {
	PeerID            string    `json:"peerId"`
	URL               string    `json:"url"`
	PublicKey         []byte    `json:"publicKey"`
	Role              string    `json:"role"`
	LastExchangeMs    int64     `json:"lastExchangeMs"`
	Reputation        float64   `json:"reputation"`
	ConsecutiveMisses int       `json:"consecutiveMisses"`
	BackoffUntilMs    int64     `json:"backoffUntilMs"`
}

// ResourceClass marks a task or subtask's hardware requirement.
type ResourceClass string

const (
	ResourceCPU ResourceClass = "cpu"
	ResourceGPU ResourceClass = "gpu"
)

// TaskStatus is the task state machine of §3.
type TaskStatus string

const (
	TaskSubmitted   TaskStatus = "submitted"
	TaskDecomposing TaskStatus = "decomposing"
	TaskQueued      TaskStatus = "queued"
	TaskRunning     TaskStatus = "running"
	TaskSucceeded   TaskStatus = "succeeded"
	TaskFailed      TaskStatus = "failed"
	TaskCancelled   TaskStatus = "cancelled"
	TaskEscalated   TaskStatus = "escalated"
)

// Task is a unit of client-submitted work.
type Task struct {
	TaskID        string        `json:"taskId"`
	Account       string        `json:"account"`
	Prompt        string        `json:"prompt"`
	Language      string        `json:"language"`
	SnapshotRef   string        `json:"snapshotRef"`
	ResourceClass ResourceClass `json:"resourceClass"`
	Priority      int           `json:"priority"`
	TimeoutMs     int64         `json:"timeoutMs"`
	SubmittedAtMs int64         `json:"submittedAtMs"`
	Status        TaskStatus    `json:"status"`
	Fingerprint   string        `json:"fingerprint"`
}

// SubtaskKind distinguishes the shape of work a subtask performs.
type SubtaskKind string

const (
	SubtaskSingleStep SubtaskKind = "single_step"
	SubtaskMultiStep  SubtaskKind = "multi_step"
	SubtaskRobot      SubtaskKind = "robot"
)

// SubtaskStatus is the per-subtask lifecycle.
type SubtaskStatus string

const (
	SubtaskPending   SubtaskStatus = "pending"
	SubtaskReady     SubtaskStatus = "ready"
	SubtaskOffered   SubtaskStatus = "offered"
	SubtaskRunning   SubtaskStatus = "running"
	SubtaskStale     SubtaskStatus = "stale"
	SubtaskSucceeded SubtaskStatus = "succeeded"
	SubtaskFailed    SubtaskStatus = "failed"
	SubtaskCancelled SubtaskStatus = "cancelled"
	SubtaskEscalated SubtaskStatus = "escalated"
)

// Envelope is an optional X25519+AES-256-GCM encrypted subtask payload.
type Envelope struct {
	KeyID      string `json:"keyId"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// Subtask is an atomic assignable unit belonging to a Task.
type Subtask struct {
	ID         string        `json:"id"`
	TaskID     string        `json:"taskId"`
	Kind       SubtaskKind   `json:"kind"`
	Input      string        `json:"input"`
	TimeoutMs  int64         `json:"timeoutMs"`
	DependsOn  []string      `json:"dependsOn"`
	ResourceClass ResourceClass `json:"resourceClass"`
	Priority   int           `json:"priority"`
	Envelope   *Envelope     `json:"envelope,omitempty"`

	Status        SubtaskStatus `json:"status"`
	Attempt       int           `json:"attempt"`
	AssignedAgent string        `json:"assignedAgent,omitempty"`
	OfferedAtMs   int64         `json:"offeredAtMs,omitempty"`
	LastProgressMs int64        `json:"lastProgressMs,omitempty"`
	Output        string        `json:"output,omitempty"`
}

// PayloadType enumerates ledger entry payload kinds.
type PayloadType string

const (
	PayloadCreditEarn    PayloadType = "credit_earn"
	PayloadCreditSpend   PayloadType = "credit_spend"
	PayloadCreditHeld    PayloadType = "credit_held"
	PayloadCreditRelease PayloadType = "credit_release"
	PayloadBlacklist     PayloadType = "blacklist_record"
	PayloadTreasury      PayloadType = "treasury_action"
	PayloadRollout       PayloadType = "rollout_milestone"
	PayloadPriceProposal PayloadType = "price_proposal"
	PayloadCheckpoint    PayloadType = "checkpoint_anchor"
	PayloadEscalation    PayloadType = "escalation"
)

// LedgerEntry is one link of the hash chain.
type LedgerEntry struct {
	Index     uint64      `json:"i"`
	PrevHash  string      `json:"p"`
	Hash      string      `json:"h"`
	Type      PayloadType `json:"t"`
	Payload   any         `json:"d"`
	ActorID   string      `json:"a"`
	TimestampMs int64     `json:"ts"`
	Signature string      `json:"sig"`
}

// ReasonCode is the closed set of blacklist reasons.
type ReasonCode string

const (
	ReasonAbuseSpam        ReasonCode = "abuse_spam"
	ReasonInvalidResult    ReasonCode = "invalid_result"
	ReasonKeyCompromise    ReasonCode = "key_compromise"
	ReasonCapabilityFraud  ReasonCode = "capability_fraud"
	ReasonPolicyViolation  ReasonCode = "policy_violation"
)

// ValidReasonCode reports whether code belongs to the closed enum.
func ValidReasonCode(code ReasonCode) bool {
	switch code {
	case ReasonAbuseSpam, ReasonInvalidResult, ReasonKeyCompromise, ReasonCapabilityFraud, ReasonPolicyViolation:
		return true
	default:
		return false
	}
}

// BlacklistRecord is a signed abuse report against an agent.
type BlacklistRecord struct {
	AgentID            string     `json:"agentId"`
	ReasonCode         ReasonCode `json:"reasonCode"`
	ReasonText         string     `json:"reasonText"`
	EvidenceHashSha256 string     `json:"evidenceHashSha256"`
	ReporterID         string     `json:"reporterId"`
	ReporterSignature  string     `json:"reporterSignature"`
	IssuedAtMs         int64      `json:"issuedAtMs"`
	Version            uint64     `json:"version"`
	OriginPeerID       string     `json:"originPeerId,omitempty"`
}

// CreditAccount's balance is derived by folding ledger entries; this struct
// carries only the metadata that isn't recoverable by replay.
type CreditAccount struct {
	AccountID     string `json:"accountId"`
	OwnerUserID   string `json:"ownerUserId"`
	WalletLinked  bool   `json:"walletLinked"`
	WalletAddress string `json:"walletAddress,omitempty"`
}
