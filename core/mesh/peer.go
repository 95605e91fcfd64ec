package mesh

import (
	crand "crypto/rand"
	"math/big"
	"sync"
	"time"

	"coordinator-core/core"
)

const (
	scoreIncrement   = 1.0
	scoreDecrement   = 2.0
	scoreThreshold   = -10.0
	minBackoff       = 5 * time.Second
	maxBackoff       = 10 * time.Minute
	decayInterval    = time.Minute
)

// PeerStore holds this coordinator's view of every peer it has exchanged
// with, their reputation score, and backoff state, per §4.C.
type PeerStore struct {
	mu    sync.RWMutex
	peers map[string]*core.PeerCoordinator
	fails map[string]int // consecutive failures, drives exponential backoff
}

// NewPeerStore constructs an empty PeerStore.
func NewPeerStore() *PeerStore {
	return &PeerStore{
		peers: make(map[string]*core.PeerCoordinator),
		fails: make(map[string]int),
	}
}

// Upsert adds or refreshes a peer's known address and role.
func (s *PeerStore) Upsert(p core.PeerCoordinator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.peers[p.PeerID]; ok {
		existing.URL = p.URL
		existing.PublicKey = p.PublicKey
		existing.Role = p.Role
		return
	}
	cp := p
	s.peers[p.PeerID] = &cp
}

// RecordSuccess increments a peer's score and clears its backoff state on a
// successful exchange.
func (s *PeerStore) RecordSuccess(peerID string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.peers[peerID]
	if !ok {
		return
	}
	p.Reputation += scoreIncrement
	p.LastExchangeMs = now.UnixMilli()
	p.ConsecutiveMisses = 0
	p.BackoffUntilMs = 0
	s.fails[peerID] = 0
}

// RecordFailure decrements a peer's score on timeout or a malformed message
// and applies exponential backoff capped at 10 minutes.
func (s *PeerStore) RecordFailure(peerID string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.peers[peerID]
	if !ok {
		return
	}
	p.Reputation -= scoreDecrement
	p.ConsecutiveMisses++
	s.fails[peerID]++

	backoff := minBackoff << uint(s.fails[peerID]-1)
	if backoff > maxBackoff || backoff <= 0 {
		backoff = maxBackoff
	}
	p.BackoffUntilMs = now.Add(backoff).UnixMilli()
}

// DecayScores applies the per-minute score decay and drops peers below the
// score threshold, per §4.C.
func (s *PeerStore) DecayScores(now time.Time) (dropped []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.peers {
		p.Reputation *= 0.99
		if p.Reputation < scoreThreshold {
			delete(s.peers, id)
			delete(s.fails, id)
			dropped = append(dropped, id)
		}
	}
	return dropped
}

// Available returns peers not currently in backoff.
func (s *PeerStore) Available(now time.Time) []core.PeerCoordinator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.PeerCoordinator, 0, len(s.peers))
	for _, p := range s.peers {
		if p.BackoffUntilMs != 0 && now.UnixMilli() < p.BackoffUntilMs {
			continue
		}
		out = append(out, *p)
	}
	return out
}

// All returns every known peer, including ones currently backed off.
func (s *PeerStore) All() []core.PeerCoordinator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.PeerCoordinator, 0, len(s.peers))
	for _, p := range s.peers {
		out = append(out, *p)
	}
	return out
}

// shuffle performs an in-place Fisher-Yates shuffle using crypto/rand,
// mirroring the teacher's peer-sampling idiom.
func shuffle(peers []core.PeerCoordinator) {
	for i := len(peers) - 1; i > 0; i-- {
		jBig, err := crand.Int(crand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return
		}
		j := int(jBig.Int64())
		peers[i], peers[j] = peers[j], peers[i]
	}
}

// Sample returns up to n distinct, non-backed-off peers in random order.
func (s *PeerStore) Sample(n int, now time.Time) []core.PeerCoordinator {
	available := s.Available(now)
	shuffle(available)
	if n > len(available) {
		n = len(available)
	}
	return available[:n]
}
