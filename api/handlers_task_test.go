package api

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"coordinator-core/core"
	"coordinator-core/core/auth"
	"coordinator-core/core/blacklist"
	"coordinator-core/core/pipeline"
	"coordinator-core/core/registry"
)

func signedPullRequest(t *testing.T, priv ed25519.PrivateKey, agentID string, now time.Time, body []byte) *http.Request {
	t.Helper()
	sum := sha256.Sum256(body)
	sr := auth.SignedRequest{
		SourceID:    agentID,
		Method:      http.MethodPost,
		Path:        "/pull",
		BodySha256:  hex.EncodeToString(sum[:]),
		TimestampMs: now.UnixMilli(),
		Nonce:       "nonce-1",
	}
	sig := auth.Sign(priv, sr)

	req := httptest.NewRequest(http.MethodPost, "/pull", bytes.NewReader(body))
	req.Header.Set("x-agent-id", agentID)
	req.Header.Set("x-timestamp-ms", strconv.FormatInt(now.UnixMilli(), 10))
	req.Header.Set("x-nonce", sr.Nonce)
	req.Header.Set("x-signature", hex.EncodeToString(sig))
	return req
}

func newTestServerWithBlacklist(t *testing.T, pub ed25519.PublicKey, agentID string) (*Server, time.Time) {
	t.Helper()
	now := time.Now()
	s := newTestServer()
	s.Registry = registry.New(allowAllBlacklist{}, noopPortal{}, nil)
	s.Blacklist = blacklist.New(func(string) (ed25519.PublicKey, bool) { return nil, false }, nil, nil)
	s.Deps = pipeline.NewDependencyTracker()
	s.InFlight = pipeline.NewInFlightTracker()
	s.Now = func() time.Time { return now }

	s.Verifier = auth.NewVerifier(
		func(id string) (ed25519.PublicKey, bool) {
			if id == agentID {
				return pub, true
			}
			return nil, false
		},
		auth.NewNonceStore(5*time.Minute),
		auth.NewRateLimiter(time.Minute, 100),
	)
	s.Verifier.Now = func() time.Time { return now }

	capability := core.Capability{MaxConcurrentSlots: 2}
	if _, cErr := s.Registry.Enroll(agentID, pub, capability, core.OSLinux, core.RoleIDEEnabled, ""); cErr != nil {
		t.Fatalf("unexpected enroll error: %+v", cErr)
	}
	s.Registry.Approve(agentID)
	return s, now
}

func TestHandlePullRejectsBlacklistedAgent(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	agentID := "a1"
	s, now := newTestServerWithBlacklist(t, pub, agentID)

	s.Blacklist.MergeFromPeer(core.BlacklistRecord{
		AgentID:    agentID,
		ReasonCode: core.ReasonAbuseSpam,
		Version:    1,
	}, "peer-2")

	body, _ := json.Marshal(pullRequest{MaxItems: 1})
	req := signedPullRequest(t, priv, agentID, now, body)
	w := httptest.NewRecorder()

	s.Router().ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a blacklisted agent, got %d: %s", w.Code, w.Body.String())
	}
	var got errorBody
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unexpected error decoding response: %v", err)
	}
	if got.Code != core.ErrAgentSuspended {
		t.Fatalf("expected agent_suspended, got %q", got.Code)
	}
}

func TestHandlePullAllowsNonBlacklistedAgent(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	agentID := "a1"
	s, now := newTestServerWithBlacklist(t, pub, agentID)

	body, _ := json.Marshal(pullRequest{MaxItems: 1})
	req := signedPullRequest(t, priv, agentID, now, body)
	w := httptest.NewRecorder()

	s.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for a clean agent, got %d: %s", w.Code, w.Body.String())
	}
}
