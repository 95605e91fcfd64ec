// Package auth verifies per-request signatures, nonces, rate limits and the
// shared mesh/portal tokens that gate coordinator routes (spec component A).
package auth

import (
	"crypto/ed25519"
	"strconv"
	"time"

	"coordinator-core/core"
)

// MaxClockSkew is the maximum tolerated drift between a request's timestamp
// and the coordinator's clock.
const MaxClockSkew = 120 * time.Second

// KeyLookup resolves the Ed25519 public key registered for a source id
// (agentId or peerId). It returns ok=false when the identity is unknown.
type KeyLookup func(sourceID string) (pub ed25519.PublicKey, ok bool)

// SignedRequest carries the fields a caller must supply for verification.
type SignedRequest struct {
	SourceID    string
	Method      string
	Path        string
	BodySha256  string
	TimestampMs int64
	Nonce       string
	Signature   []byte
}

// CanonicalString builds the string Ed25519 signs over:
// method || path || bodyHash || timestampMs || nonce.
func (r SignedRequest) CanonicalString() string {
	return r.Method + r.Path + r.BodySha256 + strconv.FormatInt(r.TimestampMs, 10) + r.Nonce
}

// Verifier implements the §4.A verification procedure in order.
type Verifier struct {
	Keys   KeyLookup
	Nonces *NonceStore
	Limits *RateLimiter
	Now    func() time.Time
}

// NewVerifier constructs a Verifier with the supplied collaborators.
func NewVerifier(keys KeyLookup, nonces *NonceStore, limits *RateLimiter) *Verifier {
	return &Verifier{Keys: keys, Nonces: nonces, Limits: limits, Now: time.Now}
}

// Verify runs steps 1-5 of §4.A, first-failure-wins.
func (v *Verifier) Verify(r SignedRequest) (string, *core.CoordError) {
	now := v.Now()
	skewMs := now.UnixMilli() - r.TimestampMs
	if skewMs < 0 {
		skewMs = -skewMs
	}
	if skewMs > MaxClockSkew.Milliseconds() {
		return "", core.Fail(core.ErrClockSkew, "timestamp outside tolerance")
	}

	pub, ok := v.Keys(r.SourceID)
	if !ok {
		return "", core.Fail(core.ErrUnknownIdentity, r.SourceID)
	}

	if !ed25519.Verify(pub, []byte(r.CanonicalString()), r.Signature) {
		return "", core.Fail(core.ErrBadSignature, "signature mismatch")
	}

	if !v.Nonces.Accept(r.SourceID, r.Nonce, now) {
		return "", core.Fail(core.ErrReplay, r.Nonce)
	}

	if !v.Limits.Allow(r.SourceID, now) {
		return "", core.Fail(core.ErrRateLimited, r.SourceID)
	}

	return r.SourceID, nil
}

// Sign produces the Ed25519 signature a caller would attach to a request.
// It is exported primarily for tests and for the operator CLI's self-check.
func Sign(priv ed25519.PrivateKey, r SignedRequest) []byte {
	return ed25519.Sign(priv, []byte(r.CanonicalString()))
}
