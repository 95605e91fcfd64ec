package blacklist

import (
	"crypto/ed25519"
	"encoding/base64"
	"path/filepath"
	"testing"

	"coordinator-core/core"
	"coordinator-core/core/ledger"
)

func signedRecord(t *testing.T, priv ed25519.PrivateKey, reporterID, agentID string) core.BlacklistRecord {
	t.Helper()
	r := core.BlacklistRecord{
		AgentID:            agentID,
		ReasonCode:         core.ReasonAbuseSpam,
		EvidenceHashSha256: "deadbeef",
		ReporterID:         reporterID,
		IssuedAtMs:         1000,
	}
	s := &Store{}
	sig := ed25519.Sign(priv, s.signingBytes(r))
	r.ReporterSignature = base64.URLEncoding.EncodeToString(sig)
	return r
}

func TestSubmitRejectsInvalidReasonCode(t *testing.T) {
	s := New(func(string) (ed25519.PublicKey, bool) { return nil, false }, nil, nil)
	r := core.BlacklistRecord{AgentID: "a", ReasonCode: "not_a_real_reason"}
	if cErr := s.Submit(r, "reporter", 1000); cErr == nil || cErr.Code != core.ErrBadReasonCode {
		t.Fatalf("expected bad_reason_code, got %+v", cErr)
	}
}

func TestSubmitRejectsUnknownReporter(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	s := New(func(string) (ed25519.PublicKey, bool) { return nil, false }, nil, nil)
	r := signedRecord(t, priv, "reporter-1", "agent-1")
	if cErr := s.Submit(r, "reporter-1", 1000); cErr == nil || cErr.Code != core.ErrUnknownIdentity {
		t.Fatalf("expected unknown_identity, got %+v", cErr)
	}
}

func TestSubmitRejectsBadSignature(t *testing.T) {
	pub, _, _ := ed25519.GenerateKey(nil)
	_, otherPriv, _ := ed25519.GenerateKey(nil)
	s := New(func(string) (ed25519.PublicKey, bool) { return pub, true }, nil, nil)
	r := signedRecord(t, otherPriv, "reporter-1", "agent-1")
	if cErr := s.Submit(r, "reporter-1", 1000); cErr == nil || cErr.Code != core.ErrBlacklistSignatureInvalid {
		t.Fatalf("expected blacklist_signature_invalid, got %+v", cErr)
	}
}

func TestSubmitDeniesAgentAndAppendsLedgerEntry(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	path := filepath.Join(t.TempDir(), "coordinator.wal")
	l, err := ledger.Open(ledger.Config{WALPath: path})
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { l.Close() })

	s := New(func(string) (ed25519.PublicKey, bool) { return pub, true }, l, nil)
	r := signedRecord(t, priv, "reporter-1", "agent-1")

	if cErr := s.Submit(r, "reporter-1", 1000); cErr != nil {
		t.Fatalf("unexpected error: %+v", cErr)
	}
	if !s.IsBlacklisted("agent-1") {
		t.Fatal("expected agent-1 to be denied after submission")
	}

	idx, _ := l.Head()
	if idx != 1 {
		t.Fatalf("expected one ledger entry appended, got head index %d", idx)
	}
	entries := l.Entries(0, 1)
	if entries[0].Type != core.PayloadBlacklist {
		t.Fatalf("expected a blacklist payload entry, got %s", entries[0].Type)
	}
}

func TestReenableClearsDenial(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	s := New(func(string) (ed25519.PublicKey, bool) { return pub, true }, nil, nil)
	r := signedRecord(t, priv, "reporter-1", "agent-1")
	s.Submit(r, "reporter-1", 1000)

	if !s.IsBlacklisted("agent-1") {
		t.Fatal("expected agent-1 to be blacklisted before reenable")
	}
	s.Reenable("agent-1")
	if s.IsBlacklisted("agent-1") {
		t.Fatal("expected agent-1 to no longer be blacklisted after reenable")
	}
}

func TestMergeFromPeerRecordsOriginAndDenies(t *testing.T) {
	s := New(func(string) (ed25519.PublicKey, bool) { return nil, false }, nil, nil)
	r := core.BlacklistRecord{AgentID: "agent-1", ReasonCode: core.ReasonAbuseSpam, Version: 1}
	s.MergeFromPeer(r, "peer-2")

	if !s.IsBlacklisted("agent-1") {
		t.Fatal("expected merged record to deny the agent")
	}
	reports := s.Reports("agent-1")
	if len(reports) != 1 || reports[0].OriginPeerID != "peer-2" {
		t.Fatalf("expected origin peer id recorded, got %+v", reports)
	}
}

func TestDeltaReturnsRecordsAboveSinceVersion(t *testing.T) {
	s := New(func(string) (ed25519.PublicKey, bool) { return nil, false }, nil, nil)
	s.MergeFromPeer(core.BlacklistRecord{AgentID: "a", Version: 1}, "peer-1")
	s.MergeFromPeer(core.BlacklistRecord{AgentID: "a", Version: 2}, "peer-1")
	s.MergeFromPeer(core.BlacklistRecord{AgentID: "b", Version: 3}, "peer-1")

	delta := s.Delta(1)
	if len(delta) != 2 {
		t.Fatalf("expected 2 records above version 1, got %d", len(delta))
	}
}

func TestVerifyAuditCleanChain(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	path := filepath.Join(t.TempDir(), "coordinator.wal")
	l, err := ledger.Open(ledger.Config{WALPath: path, Signer: priv})
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { l.Close() })

	s := New(func(string) (ed25519.PublicKey, bool) { return pub, true }, l, nil)
	r := signedRecord(t, priv, "reporter-1", "agent-1")
	s.Submit(r, "reporter-1", 1000)

	if bad := VerifyAudit(l, pub); bad != -1 {
		t.Fatalf("expected clean audit chain, first failure at %d", bad)
	}
}
