package auth

import "crypto/subtle"

// ConstantTimeEquals compares two shared secrets (mesh token, portal token)
// without leaking timing information.
func ConstantTimeEquals(presented, expected string) bool {
	if len(presented) != len(expected) {
		// still run a comparison so callers can't distinguish length
		// mismatches from content mismatches by timing.
		subtle.ConstantTimeCompare([]byte(presented), []byte(presented))
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) == 1
}

// MeshTokenGate holds the pre-shared secret gating coordinator-to-coordinator
// bootstrap routes, per §4.A.
type MeshTokenGate struct {
	token string
}

// NewMeshTokenGate constructs a gate for the given shared secret.
func NewMeshTokenGate(token string) *MeshTokenGate {
	return &MeshTokenGate{token: token}
}

// Check reports whether presented matches the configured mesh token.
func (g *MeshTokenGate) Check(presented string) bool {
	return ConstantTimeEquals(presented, g.token)
}

// PortalTokenGate holds the trusted portal backend's bypass token.
type PortalTokenGate struct {
	token string
}

// NewPortalTokenGate constructs a gate for the portal service token.
func NewPortalTokenGate(token string) *PortalTokenGate {
	return &PortalTokenGate{token: token}
}

// Check reports whether presented matches the configured portal token.
func (g *PortalTokenGate) Check(presented string) bool {
	return ConstantTimeEquals(presented, g.token)
}
