// Package api exposes the coordinator's HTTP and WebSocket surface: a flat
// router table where each route is a function (req) -> resp, with
// authentication, mesh-token, and validation composed as explicit middleware
// stages ahead of the handler rather than folded into it.
package api

import (
	"crypto/ed25519"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"coordinator-core/core"
	"coordinator-core/core/auth"
	"coordinator-core/core/blacklist"
	"coordinator-core/core/ledger"
	"coordinator-core/core/mesh"
	"coordinator-core/core/pipeline"
	"coordinator-core/core/registry"
	"coordinator-core/core/security"
)

// Server bundles every collaborator a route handler needs. It holds no HTTP
// framework state itself; Router wires it to a mux.
type Server struct {
	Registry  *registry.Registry
	Mesh      *mesh.Node
	Peers     *mesh.PeerStore
	Dedupe    *mesh.Dedupe
	Ledger    *ledger.Ledger
	Blacklist *blacklist.Store
	Intents   *ledger.PaymentIntentStore
	Deps      *pipeline.DependencyTracker
	InFlight  *pipeline.InFlightTracker
	Inference pipeline.Inference

	Verifier   *auth.Verifier
	MeshGate   *auth.MeshTokenGate
	PortalGate *auth.PortalTokenGate
	Events     *security.EventLogger

	Signer ed25519.PrivateKey
	CoordinatorID string

	Log *logrus.Entry
	Now func() time.Time

	mu       sync.RWMutex
	tasks    map[string]*core.Task
	subtasks map[string]*core.Subtask // subtaskId -> subtask, includes running/offered/terminal

	treasury map[string]*ledger.TreasuryPolicy

	taskSeq uint64
}

// NewServer constructs a Server. Collaborators are expected to already be
// started (mesh node dialed, ledger opened) by the caller (cmd/coordinatord).
func NewServer(coordinatorID string, signer ed25519.PrivateKey, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{
		CoordinatorID: coordinatorID,
		Signer:        signer,
		Log:           log,
		Now:           time.Now,
		tasks:         make(map[string]*core.Task),
		subtasks:      make(map[string]*core.Subtask),
		treasury:      make(map[string]*ledger.TreasuryPolicy),
	}
}

func (s *Server) nextTaskID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taskSeq++
	return core.HashHex([]byte(s.CoordinatorID))[:8] + "-" + itoa(s.taskSeq)
}

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func (s *Server) putTask(t *core.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.TaskID] = t
}

func (s *Server) getTask(id string) (*core.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	return t, ok
}

func (s *Server) putSubtasks(subs []core.Subtask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range subs {
		st := subs[i]
		s.subtasks[st.ID] = &st
	}
}

func (s *Server) getSubtask(id string) (*core.Subtask, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.subtasks[id]
	return st, ok
}

func (s *Server) updateSubtask(st core.Subtask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subtasks[st.ID] = &st
}

func (s *Server) taskSubtasks(taskID string) []core.Subtask {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Subtask
	for _, st := range s.subtasks {
		if st.TaskID == taskID {
			out = append(out, *st)
		}
	}
	return out
}

func (s *Server) candidatesForSubtask(st core.Subtask, now time.Time) []pipeline.Candidate {
	list := s.Registry.List(registry.Filter{})
	out := make([]pipeline.Candidate, 0, len(list))
	for _, summary := range list {
		out = append(out, pipeline.Candidate{Agent: summary.Agent, Health: summary.Health})
	}
	eligible := pipeline.Eligible(out, st, pipeline.ProjectPolicy{})
	return pipeline.ApplyPowerPolicy(eligible, now)
}
