// Package blacklist implements abuse report ingestion, cross-peer union
// merge, and admission enforcement (spec component G). It mirrors the
// teacher's ComplianceEngine: a singleton-style store guarded by a mutex,
// backed by the ledger for its audit subchain.
package blacklist

import (
	"crypto/ed25519"
	"encoding/base64"
	"sync"

	"github.com/sirupsen/logrus"

	"coordinator-core/core"
	"coordinator-core/core/ledger"
)

// KeyLookup resolves a reporter's (agent or peer) Ed25519 public key.
type KeyLookup func(reporterID string) (ed25519.PublicKey, bool)

// Store ingests, merges and enforces blacklist records. Admission checks are
// O(1) against an in-memory set kept in sync with the ledger-backed audit
// log of every distinct report, per §9's "union + per-report audit" open
// question resolution.
type Store struct {
	mu      sync.RWMutex
	denied  map[string]struct{}      // agentId -> suspended (union view)
	reports map[string][]core.BlacklistRecord // agentId -> every distinct report received

	keys   KeyLookup
	ledger *ledger.Ledger
	log    *logrus.Entry
}

// New constructs an empty Store.
func New(keys KeyLookup, l *ledger.Ledger, log *logrus.Entry) *Store {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Store{
		denied:  make(map[string]struct{}),
		reports: make(map[string][]core.BlacklistRecord),
		keys:    keys,
		ledger:  l,
		log:     log,
	}
}

func (s *Store) signingBytes(r core.BlacklistRecord) []byte {
	b, _ := core.Canonicalize(struct {
		AgentID            string `json:"agentId"`
		ReasonCode         core.ReasonCode `json:"reasonCode"`
		EvidenceHashSha256 string `json:"evidenceHash"`
	}{r.AgentID, r.ReasonCode, r.EvidenceHashSha256})
	return b
}

// Submit verifies the reporter's signature, appends the record to the
// ledger's blacklist subchain, and updates the admission-deny set, per
// §4.G.
func (s *Store) Submit(r core.BlacklistRecord, actorID string, nowMs int64) *core.CoordError {
	if !core.ValidReasonCode(r.ReasonCode) {
		return core.Fail(core.ErrBadReasonCode, string(r.ReasonCode))
	}

	pub, ok := s.keys(r.ReporterID)
	if !ok {
		return core.Fail(core.ErrUnknownIdentity, r.ReporterID)
	}
	sig := decodeSig(r.ReporterSignature)
	if sig == nil || !ed25519.Verify(pub, s.signingBytes(r), sig) {
		return core.Fail(core.ErrBlacklistSignatureInvalid, r.AgentID)
	}

	s.mu.Lock()
	s.reports[r.AgentID] = append(s.reports[r.AgentID], r)
	s.denied[r.AgentID] = struct{}{}
	version := uint64(len(s.reports[r.AgentID]))
	s.mu.Unlock()
	r.Version = version

	if s.ledger != nil {
		if _, err := s.ledger.Append(core.PayloadBlacklist, r, actorID, nowMs); err != nil {
			return core.WrapErr(core.ErrLedgerVerifyFailed, err)
		}
	}

	s.log.WithFields(logrus.Fields{"agentId": r.AgentID, "reason": r.ReasonCode}).Warn("blacklist record ingested")
	return nil
}

// MergeFromPeer applies a record learned via gossip or DELTA exchange,
// preserving origin metadata. The reporter signature is not verified here:
// every merged record is stored and denies its agent as received.
func (s *Store) MergeFromPeer(r core.BlacklistRecord, originPeerID string) {
	r.OriginPeerID = originPeerID
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[r.AgentID] = append(s.reports[r.AgentID], r)
	s.denied[r.AgentID] = struct{}{}
}

// IsBlacklisted implements registry.BlacklistChecker.
func (s *Store) IsBlacklisted(agentID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.denied[agentID]
	return ok
}

// Reenable clears an agent's admission-deny state. Per §9, only an
// admin-signed action may do this (enforced by the caller/admin router).
func (s *Store) Reenable(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.denied, agentID)
}

// Reports returns every distinct report received for agentID, newest last.
func (s *Store) Reports(agentID string) []core.BlacklistRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.BlacklistRecord, len(s.reports[agentID]))
	copy(out, s.reports[agentID])
	return out
}

// Delta returns every report with Version > sinceVersion across all agents,
// for the REQUEST_DELTA/DELTA gossip exchange of §4.C.
func (s *Store) Delta(sinceVersion uint64) []core.BlacklistRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.BlacklistRecord
	for _, records := range s.reports {
		for _, r := range records {
			if r.Version > sinceVersion {
				out = append(out, r)
			}
		}
	}
	return out
}

// VerifyAudit replays the whole ledger hash chain, which carries every
// blacklist-typed entry, using the main ledger's Verify routine; it is
// exposed as the verify-blacklist-audit operator command of §4.G. A
// divergence in an entry of any payload type is reported.
func VerifyAudit(l *ledger.Ledger, verifyKey ed25519.PublicKey) int64 {
	idx, _ := l.Head()
	return l.Verify(0, idx, verifyKey)
}

func decodeSig(s string) []byte {
	if s == "" {
		return nil
	}
	b, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}
