package ledger

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// opReturnPrefix is "EC" per §6: ASCII E, C, then a version byte.
var opReturnPrefix = [2]byte{'E', 'C'}

const opReturnVersion = 0x01
const opReturnPayloadLen = 35

// EncodeAnchorPayload produces the 35-byte OP_RETURN payload carrying a
// checkpoint head hash: "EC" || version(1) || headHash(32).
func EncodeAnchorPayload(headHash [32]byte) []byte {
	out := make([]byte, 0, opReturnPayloadLen)
	out = append(out, opReturnPrefix[0], opReturnPrefix[1], opReturnVersion)
	out = append(out, headHash[:]...)
	return out
}

// DecodeAnchorPayload parses an OP_RETURN payload back into its version and
// head hash. It is the exact inverse of EncodeAnchorPayload.
func DecodeAnchorPayload(payload []byte) (version byte, headHash [32]byte, err error) {
	if len(payload) != opReturnPayloadLen {
		return 0, headHash, fmt.Errorf("anchor payload must be %d bytes, got %d", opReturnPayloadLen, len(payload))
	}
	if payload[0] != opReturnPrefix[0] || payload[1] != opReturnPrefix[1] {
		return 0, headHash, fmt.Errorf("bad anchor prefix")
	}
	version = payload[2]
	copy(headHash[:], payload[3:])
	return version, headHash, nil
}

// AnchorReceipt identifies a published anchor transaction.
type AnchorReceipt struct {
	TxID string
}

// AnchorProvider broadcasts a checkpoint's head hash via an OP_RETURN output.
// Wallet key management and Bitcoin/Lightning RPC are out of scope per §1;
// this interface is the seam a concrete wallet/RPC adapter plugs into.
type AnchorProvider interface {
	Anchor(ctx context.Context, payload []byte) (AnchorReceipt, error)
}

// MockAnchorProvider records anchor calls without broadcasting, for tests
// and for coordinators that run without an anchor-proxy configured.
type MockAnchorProvider struct {
	signer  *secp256k1.PrivateKey
	nextTxID int
	Calls   []AnchorReceipt
}

// NewMockAnchorProvider constructs a MockAnchorProvider with a fresh
// secp256k1 signing key, matching the key type the teacher's compliance
// engine uses for anchor-adjacent signatures.
func NewMockAnchorProvider() (*MockAnchorProvider, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	return &MockAnchorProvider{signer: key}, nil
}

// Anchor implements AnchorProvider by signing the payload hash and
// fabricating a deterministic local transaction id.
func (m *MockAnchorProvider) Anchor(_ context.Context, payload []byte) (AnchorReceipt, error) {
	m.nextTxID++
	hash := sha256.Sum256(payload)
	sig := ecdsa.SignCompact(m.signer, hash[:], true)
	receipt := AnchorReceipt{TxID: fmt.Sprintf("mock-%x-%d", sig[:4], m.nextTxID)}
	m.Calls = append(m.Calls, receipt)
	return receipt, nil
}
