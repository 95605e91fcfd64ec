package auth

import (
	"crypto/ed25519"
	"testing"
	"time"

	"coordinator-core/core"
)

func testVerifier(t *testing.T, now time.Time, pub ed25519.PublicKey) *Verifier {
	t.Helper()
	nonces := NewNonceStore(MaxClockSkew)
	t.Cleanup(nonces.Close)
	limiter := NewRateLimiter(time.Minute, 60)
	v := NewVerifier(func(id string) (ed25519.PublicKey, bool) {
		if id == "agent-1" {
			return pub, true
		}
		return nil, false
	}, nonces, limiter)
	v.Now = func() time.Time { return now }
	return v
}

func TestVerifySuccess(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	now := time.Now()
	r := SignedRequest{SourceID: "agent-1", Method: "POST", Path: "/pull", BodySha256: "deadbeef", TimestampMs: now.UnixMilli(), Nonce: "n1"}
	r.Signature = Sign(priv, r)

	v := testVerifier(t, now, pub)
	id, cErr := v.Verify(r)
	if cErr != nil {
		t.Fatalf("unexpected error: %+v", cErr)
	}
	if id != "agent-1" {
		t.Fatalf("expected agent-1, got %q", id)
	}
}

func TestVerifyClockSkewBoundary(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	now := time.Now()

	atLimit := SignedRequest{SourceID: "agent-1", Method: "GET", Path: "/status", BodySha256: "x", TimestampMs: now.Add(-MaxClockSkew).UnixMilli(), Nonce: "n-at"}
	atLimit.Signature = Sign(priv, atLimit)
	v := testVerifier(t, now, pub)
	if _, cErr := v.Verify(atLimit); cErr != nil {
		t.Fatalf("expected skew exactly at MaxClockSkew to pass, got %+v", cErr)
	}

	overLimit := SignedRequest{SourceID: "agent-1", Method: "GET", Path: "/status", BodySha256: "x", TimestampMs: now.Add(-MaxClockSkew - time.Millisecond).UnixMilli(), Nonce: "n-over"}
	overLimit.Signature = Sign(priv, overLimit)
	v2 := testVerifier(t, now, pub)
	_, cErr := v2.Verify(overLimit)
	if cErr == nil || cErr.Code != core.ErrClockSkew {
		t.Fatalf("expected clock skew rejection, got %+v", cErr)
	}
}

func TestVerifyUnknownIdentity(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	now := time.Now()
	r := SignedRequest{SourceID: "agent-unknown", Method: "GET", Path: "/status", BodySha256: "x", TimestampMs: now.UnixMilli(), Nonce: "n1"}
	r.Signature = Sign(priv, r)
	v := testVerifier(t, now, pub)
	_, cErr := v.Verify(r)
	if cErr == nil || cErr.Code != core.ErrUnknownIdentity {
		t.Fatalf("expected unknown identity, got %+v", cErr)
	}
}

func TestVerifyBadSignature(t *testing.T) {
	pub, _, _ := ed25519.GenerateKey(nil)
	now := time.Now()
	r := SignedRequest{SourceID: "agent-1", Method: "GET", Path: "/status", BodySha256: "x", TimestampMs: now.UnixMilli(), Nonce: "n1", Signature: []byte("garbage")}
	v := testVerifier(t, now, pub)
	_, cErr := v.Verify(r)
	if cErr == nil || cErr.Code != core.ErrBadSignature {
		t.Fatalf("expected bad signature, got %+v", cErr)
	}
}

func TestVerifyReplayRejected(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	now := time.Now()
	r := SignedRequest{SourceID: "agent-1", Method: "GET", Path: "/status", BodySha256: "x", TimestampMs: now.UnixMilli(), Nonce: "dupe"}
	r.Signature = Sign(priv, r)
	v := testVerifier(t, now, pub)

	if _, cErr := v.Verify(r); cErr != nil {
		t.Fatalf("first use should succeed, got %+v", cErr)
	}
	_, cErr := v.Verify(r)
	if cErr == nil || cErr.Code != core.ErrReplay {
		t.Fatalf("expected replay rejection on reuse, got %+v", cErr)
	}
}

func TestVerifyRateLimited(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	now := time.Now()
	nonces := NewNonceStore(MaxClockSkew)
	t.Cleanup(nonces.Close)
	limiter := NewRateLimiter(time.Minute, 1)
	v := NewVerifier(func(id string) (ed25519.PublicKey, bool) { return pub, true }, nonces, limiter)
	v.Now = func() time.Time { return now }

	r1 := SignedRequest{SourceID: "agent-1", Method: "GET", Path: "/status", BodySha256: "x", TimestampMs: now.UnixMilli(), Nonce: "n1"}
	r1.Signature = Sign(priv, r1)
	if _, cErr := v.Verify(r1); cErr != nil {
		t.Fatalf("first request should pass, got %+v", cErr)
	}

	r2 := SignedRequest{SourceID: "agent-1", Method: "GET", Path: "/status", BodySha256: "x", TimestampMs: now.UnixMilli(), Nonce: "n2"}
	r2.Signature = Sign(priv, r2)
	_, cErr := v.Verify(r2)
	if cErr == nil || cErr.Code != core.ErrRateLimited {
		t.Fatalf("expected second request to be rate limited, got %+v", cErr)
	}
}
