// Package registry tracks registered workers: identity, capabilities, power
// telemetry, liveness and approval state (spec component B). It follows the
// per-record-mutex, cache-over-store pattern the teacher uses for access
// control: a map of fine-grained locks guards concurrent updates to distinct
// agents while reads stay cheap.
package registry

import (
	"crypto/ed25519"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"coordinator-core/core"
)

// BlacklistChecker reports whether an agent is currently denied admission.
// Implemented by core/blacklist; kept as an interface so registry has no
// import-cycle dependency on the blacklist store's concrete type.
type BlacklistChecker interface {
	IsBlacklisted(agentID string) bool
}

// PortalVerifier validates a registration token issued by the portal and
// reports whether it carries a pre-approval claim.
type PortalVerifier interface {
	VerifyRegistrationToken(token string, agentID string) (preApproved bool, err error)
}

// Registry is the exclusive owner of the Agent table for this coordinator.
type Registry struct {
	mu        sync.RWMutex
	locks     map[string]*sync.Mutex
	agents    map[string]*core.Agent
	blacklist BlacklistChecker
	portal    PortalVerifier
	log       *logrus.Entry
	now       func() time.Time
}

// New constructs an empty Registry.
func New(blacklist BlacklistChecker, portal PortalVerifier, log *logrus.Entry) *Registry {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Registry{
		locks:     make(map[string]*sync.Mutex),
		agents:    make(map[string]*core.Agent),
		blacklist: blacklist,
		portal:    portal,
		log:       log,
		now:       time.Now,
	}
}

func (r *Registry) lockFor(agentID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[agentID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[agentID] = l
	}
	return l
}

// EnrollResult is the outcome of Enroll.
type EnrollResult struct {
	AgentID       string
	Approval      core.ApprovalState
	WalletRequired bool
}

// Enroll creates a new agent row. Enrolling an agentId that already exists
// returns its current approval state and leaves the stored row, including its
// public key, unchanged.
func (r *Registry) Enroll(agentID string, publicKey ed25519.PublicKey, attrs core.Capability, os core.OS, role core.AgentRole, registrationToken string) (*EnrollResult, *core.CoordError) {
	if r.blacklist != nil && r.blacklist.IsBlacklisted(agentID) {
		return nil, core.Fail(core.ErrAgentSuspended, agentID)
	}

	lock := r.lockFor(agentID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.RLock()
	existing, exists := r.agents[agentID]
	r.mu.RUnlock()
	if exists {
		return &EnrollResult{AgentID: agentID, Approval: existing.Approval}, nil
	}

	preApproved := false
	if r.portal != nil {
		ok, err := r.portal.VerifyRegistrationToken(registrationToken, agentID)
		if err != nil {
			return nil, core.WrapErr(core.ErrBadSignature, err)
		}
		preApproved = ok
	}

	approval := core.ApprovalPending
	if preApproved {
		approval = core.ApprovalApproved
	}

	now := r.now()
	agent := &core.Agent{
		AgentID:     agentID,
		PublicKey:   publicKey,
		OS:          os,
		Role:        role,
		Capability:  attrs,
		Approval:    approval,
		LastSeenMs:  now.UnixMilli(),
		CreatedAtMs: now.UnixMilli(),
		FreeSlots:   attrs.MaxConcurrentSlots,
	}

	r.mu.Lock()
	r.agents[agentID] = agent
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{"agentId": agentID, "approval": approval}).Info("agent enrolled")

	walletRequired := role == core.RoleIDEEnabled && agent.WalletAccount == ""
	return &EnrollResult{AgentID: agentID, Approval: approval, WalletRequired: walletRequired}, nil
}

// Heartbeat updates liveness and power telemetry for agentID.
func (r *Registry) Heartbeat(agentID string, telemetry core.PowerTelemetry) *core.CoordError {
	if r.blacklist != nil && r.blacklist.IsBlacklisted(agentID) {
		return core.Fail(core.ErrAgentSuspended, agentID)
	}

	lock := r.lockFor(agentID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	agent, ok := r.agents[agentID]
	if !ok {
		return core.Fail(core.ErrAgentNotRegistered, agentID)
	}
	if agent.Approval == core.ApprovalSuspended {
		return core.Fail(core.ErrAgentSuspended, agentID)
	}
	agent.LastSeenMs = r.now().UnixMilli()
	agent.ConsecutiveMiss = 0
	agent.Power = telemetry
	return nil
}

// SetMode updates an agent's role/mode. Admin-gated at the API layer.
func (r *Registry) SetMode(agentID string, role core.AgentRole) *core.CoordError {
	return r.mutate(agentID, func(a *core.Agent) { a.Role = role })
}

// Suspend marks an agent suspended. Admin-gated.
func (r *Registry) Suspend(agentID string) *core.CoordError {
	return r.mutate(agentID, func(a *core.Agent) { a.Approval = core.ApprovalSuspended })
}

// Approve marks an agent approved. Admin-gated.
func (r *Registry) Approve(agentID string) *core.CoordError {
	return r.mutate(agentID, func(a *core.Agent) { a.Approval = core.ApprovalApproved })
}

// Assign marks one free slot consumed and records the assignment time, called
// when a subtask offer is made to agentID.
func (r *Registry) Assign(agentID string) *core.CoordError {
	return r.mutate(agentID, func(a *core.Agent) {
		if a.FreeSlots > 0 {
			a.FreeSlots--
		}
		a.LastAssignedAtMs = r.now().UnixMilli()
	})
}

// Release returns one slot to agentID, called when a subtask assigned to it
// reaches a terminal state.
func (r *Registry) Release(agentID string) *core.CoordError {
	return r.mutate(agentID, func(a *core.Agent) {
		if a.FreeSlots < a.Capability.MaxConcurrentSlots {
			a.FreeSlots++
		}
	})
}

// Reject hard-purges a pending agent. Admin-gated.
func (r *Registry) Reject(agentID string) *core.CoordError {
	lock := r.lockFor(agentID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[agentID]; !ok {
		return core.Fail(core.ErrAgentNotRegistered, agentID)
	}
	delete(r.agents, agentID)
	return nil
}

func (r *Registry) mutate(agentID string, fn func(*core.Agent)) *core.CoordError {
	lock := r.lockFor(agentID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	agent, ok := r.agents[agentID]
	if !ok {
		return core.Fail(core.ErrAgentNotRegistered, agentID)
	}
	fn(agent)
	agent.LastSeenMs = r.now().UnixMilli()
	return nil
}

// Filter selects a subset of agents for listing or worker selection.
type Filter struct {
	Approval core.ApprovalState
	Health   core.Health
}

// AgentSummary is the read-only view returned by List.
type AgentSummary struct {
	Agent  core.Agent
	Health core.Health
}

// List returns a summary view of agents matching filter (zero value matches
// all).
func (r *Registry) List(filter Filter) []AgentSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	out := make([]AgentSummary, 0, len(r.agents))
	for _, a := range r.agents {
		h := core.DeriveHealth(time.UnixMilli(a.LastSeenMs), now)
		if filter.Approval != "" && a.Approval != filter.Approval {
			continue
		}
		if filter.Health != "" && h != filter.Health {
			continue
		}
		out = append(out, AgentSummary{Agent: *a, Health: h})
	}
	return out
}

// Get returns a copy of the agent row for agentID.
func (r *Registry) Get(agentID string) (core.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[agentID]
	if !ok {
		return core.Agent{}, false
	}
	return *a, true
}

// PublicKey implements the auth.KeyLookup contract for agent identities.
func (r *Registry) PublicKey(agentID string) (ed25519.PublicKey, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[agentID]
	if !ok {
		return nil, false
	}
	return ed25519.PublicKey(a.PublicKey), true
}
