// Package ledger implements the hash-chained append-only event log backing
// the credit economy, blacklist audit trail and treasury custody state
// (spec component F). Append is strictly single-writer; the Ledger
// serialises concurrent callers behind a mutex the way the teacher's ledger
// serialises block application.
package ledger

import (
	"bufio"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"coordinator-core/core"
)

func encodeSig(sig []byte) string {
	if sig == nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(sig)
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

// Ledger is a single coordinator's hash-chained log.
type Ledger struct {
	mu      sync.Mutex
	entries []core.LedgerEntry
	wal     *os.File
	signer  ed25519.PrivateKey
	log     *logrus.Entry

	checkpointEvery int
}

// Config configures a Ledger's persistence and signing material.
type Config struct {
	WALPath         string
	Signer          ed25519.PrivateKey
	CheckpointEvery int
	Log             *logrus.Entry
}

// Open creates or reopens a Ledger, replaying its WAL file, mirroring the
// teacher's NewLedger/OpenLedger replay-on-start pattern.
func Open(cfg Config) (*Ledger, error) {
	wal, err := os.OpenFile(cfg.WALPath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open ledger WAL: %w", err)
	}

	log := cfg.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	l := &Ledger{
		wal:             wal,
		signer:          cfg.Signer,
		log:             log,
		checkpointEvery: cfg.CheckpointEvery,
	}

	scanner := bufio.NewScanner(wal)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var e core.LedgerEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			_ = wal.Close()
			return nil, fmt.Errorf("WAL unmarshal: %w", err)
		}
		l.entries = append(l.entries, e)
	}
	if err := scanner.Err(); err != nil {
		_ = wal.Close()
		return nil, fmt.Errorf("WAL scan: %w", err)
	}

	log.WithField("entries", len(l.entries)).Info("ledger opened")
	return l, nil
}

// computeHash implements hash_i = H(index||prevHash||canonical(payload)||ts||actor).
func computeHash(index uint64, prevHash string, payload any, tsMs int64, actor string) (string, error) {
	canon, err := core.Canonicalize(payload)
	if err != nil {
		return "", err
	}
	material := struct {
		I uint64 `json:"i"`
		P string `json:"p"`
		D json.RawMessage `json:"d"`
		T int64  `json:"ts"`
		A string `json:"a"`
	}{index, prevHash, canon, tsMs, actor}
	b, err := core.Canonicalize(material)
	if err != nil {
		return "", err
	}
	return core.HashHex(b), nil
}

// Append writes one new entry, serialised behind the Ledger's lock so only
// one writer is ever active, per §5.
func (l *Ledger) Append(payloadType core.PayloadType, payload any, actorID string, tsMs int64) (*core.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	index := uint64(len(l.entries))
	prevHash := ""
	if index > 0 {
		prevHash = l.entries[index-1].Hash
	}

	hash, err := computeHash(index, prevHash, payload, tsMs, actorID)
	if err != nil {
		return nil, core.WrapErr(core.ErrLedgerVerifyFailed, err)
	}

	var sig []byte
	if l.signer != nil {
		sig = ed25519.Sign(l.signer, []byte(hash))
	}

	entry := core.LedgerEntry{
		Index:       index,
		PrevHash:    prevHash,
		Hash:        hash,
		Type:        payloadType,
		Payload:     payload,
		ActorID:     actorID,
		TimestampMs: tsMs,
		Signature:   encodeSig(sig),
	}

	b, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	b = append(b, '\n')
	if _, err := l.wal.Write(b); err != nil {
		// Ledger append is never silently dropped: failure to persist is
		// fatal for the caller, per §7.
		return nil, core.WrapErr(core.ErrLedgerVerifyFailed, fmt.Errorf("write WAL: %w", err))
	}
	if err := l.wal.Sync(); err != nil {
		return nil, core.WrapErr(core.ErrLedgerVerifyFailed, fmt.Errorf("sync WAL: %w", err))
	}

	l.entries = append(l.entries, entry)
	l.log.WithFields(logrus.Fields{"index": index, "type": payloadType, "actor": actorID}).Debug("ledger entry appended")
	return &entry, nil
}

// Verify replays hashes (and signatures, if a verify key is supplied) across
// [from, to). It returns the index of the first failing entry, or -1 if the
// whole range verifies.
func (l *Ledger) Verify(from, to uint64, verifyKey ed25519.PublicKey) (firstFailure int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if to > uint64(len(l.entries)) {
		to = uint64(len(l.entries))
	}
	for i := from; i < to; i++ {
		e := l.entries[i]
		prevHash := ""
		if i > 0 {
			prevHash = l.entries[i-1].Hash
		}
		wantHash, err := computeHash(i, prevHash, e.Payload, e.TimestampMs, e.ActorID)
		if err != nil || wantHash != e.Hash {
			return int64(i)
		}
		if verifyKey != nil {
			sig := decodeSig(e.Signature)
			if sig == nil || !ed25519.Verify(verifyKey, []byte(e.Hash), sig) {
				return int64(i)
			}
		}
	}
	return -1
}

// Entries returns a copy of the ledger's entries in [from, to).
func (l *Ledger) Entries(from, to uint64) []core.LedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if to > uint64(len(l.entries)) {
		to = uint64(len(l.entries))
	}
	if from >= to {
		return nil
	}
	out := make([]core.LedgerEntry, to-from)
	copy(out, l.entries[from:to])
	return out
}

// Head returns the current chain length and head hash.
func (l *Ledger) Head() (index uint64, headHash string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	index = uint64(len(l.entries))
	if index > 0 {
		headHash = l.entries[index-1].Hash
	}
	return
}

// Close closes the underlying WAL file.
func (l *Ledger) Close() error {
	return l.wal.Close()
}
