package ledger

import (
	"crypto/ed25519"
	"time"

	"coordinator-core/core"
)

// Checkpoint is the signed {index, headHash} published every N entries or T
// seconds, per §4.F.
type Checkpoint struct {
	Index     uint64 `json:"checkpointIndex"`
	HeadHash  string `json:"headHash"`
	SignedAt  int64  `json:"signedAtMs"`
	Signature []byte `json:"signature"`
}

func (c Checkpoint) signingBytes() []byte {
	b, _ := core.Canonicalize(struct {
		Index    uint64 `json:"checkpointIndex"`
		HeadHash string `json:"headHash"`
		SignedAt int64  `json:"signedAtMs"`
	}{c.Index, c.HeadHash, c.SignedAt})
	return b
}

// Checkpointer emits periodic checkpoints for a Ledger.
type Checkpointer struct {
	ledger   *Ledger
	signer   ed25519.PrivateKey
	everyN   int
	everyDur time.Duration

	lastIndex uint64
	lastAt    time.Time
}

// NewCheckpointer constructs a Checkpointer. Defaults match §4.F: every
// 1000 entries or 3600 seconds, whichever first.
func NewCheckpointer(l *Ledger, signer ed25519.PrivateKey, everyN int, everyDur time.Duration) *Checkpointer {
	if everyN <= 0 {
		everyN = 1000
	}
	if everyDur <= 0 {
		everyDur = time.Hour
	}
	return &Checkpointer{ledger: l, signer: signer, everyN: everyN, everyDur: everyDur, lastAt: time.Now()}
}

// Due reports whether a new checkpoint should be emitted at now.
func (c *Checkpointer) Due(now time.Time) bool {
	index, _ := c.ledger.Head()
	if index-c.lastIndex >= uint64(c.everyN) {
		return true
	}
	return now.Sub(c.lastAt) >= c.everyDur
}

// Emit produces and signs a checkpoint for the current ledger head and
// resets the due-tracking counters.
func (c *Checkpointer) Emit(now time.Time) Checkpoint {
	index, head := c.ledger.Head()
	cp := Checkpoint{Index: index, HeadHash: head, SignedAt: now.UnixMilli()}
	if c.signer != nil {
		cp.Signature = ed25519.Sign(c.signer, cp.signingBytes())
	}
	c.lastIndex = index
	c.lastAt = now
	return cp
}

// VerifyCheckpoint checks a checkpoint's signature against a known public
// key.
func VerifyCheckpoint(pub ed25519.PublicKey, cp Checkpoint) bool {
	return ed25519.Verify(pub, cp.signingBytes(), cp.Signature)
}
