package ledger

import (
	"crypto/ed25519"
	"path/filepath"
	"testing"

	"coordinator-core/core"
)

func openTestLedger(t *testing.T, signer ed25519.PrivateKey) *Ledger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "coordinator.wal")
	l, err := Open(Config{WALPath: path, Signer: signer})
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestAppendBuildsHashChain(t *testing.T) {
	l := openTestLedger(t, nil)

	e1, err := l.Append(core.PayloadCreditEarn, CreditTxPayload{AccountID: "acct-1", AmountSats: 100}, "coordinator", 1000)
	if err != nil {
		t.Fatalf("append 1: %v", err)
	}
	if e1.Index != 0 || e1.PrevHash != "" {
		t.Fatalf("expected first entry to have index 0 and empty prevHash, got %+v", e1)
	}

	e2, err := l.Append(core.PayloadCreditSpend, CreditTxPayload{AccountID: "acct-1", AmountSats: 40}, "coordinator", 2000)
	if err != nil {
		t.Fatalf("append 2: %v", err)
	}
	if e2.Index != 1 || e2.PrevHash != e1.Hash {
		t.Fatalf("expected second entry to chain from the first, got %+v", e2)
	}
}

func TestVerifyCleanChain(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	l := openTestLedger(t, priv)

	for i := 0; i < 5; i++ {
		if _, err := l.Append(core.PayloadCreditEarn, CreditTxPayload{AccountID: "acct-1", AmountSats: int64(i)}, "coordinator", int64(1000+i)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	if bad := l.Verify(0, 5, pub); bad != -1 {
		t.Fatalf("expected clean verify, first failure at %d", bad)
	}
}

func TestVerifyDetectsTamperedPayload(t *testing.T) {
	l := openTestLedger(t, nil)
	l.Append(core.PayloadCreditEarn, CreditTxPayload{AccountID: "acct-1", AmountSats: 10}, "coordinator", 1000)
	l.Append(core.PayloadCreditEarn, CreditTxPayload{AccountID: "acct-1", AmountSats: 20}, "coordinator", 2000)

	l.mu.Lock()
	l.entries[1].Payload = CreditTxPayload{AccountID: "acct-1", AmountSats: 9999}
	l.mu.Unlock()

	if bad := l.Verify(0, 2, nil); bad != 1 {
		t.Fatalf("expected tamper detected at index 1, got %d", bad)
	}
}

func TestVerifyDetectsBadSignature(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	l := openTestLedger(t, priv)
	l.Append(core.PayloadCreditEarn, CreditTxPayload{AccountID: "acct-1", AmountSats: 10}, "coordinator", 1000)

	l.mu.Lock()
	l.entries[0].Signature = encodeSig([]byte("not-a-real-signature-not-a-real-signature"))
	l.mu.Unlock()

	if bad := l.Verify(0, 1, pub); bad != 0 {
		t.Fatalf("expected signature mismatch detected at index 0, got %d", bad)
	}
}

func TestWALReplayOnReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coordinator.wal")
	l, err := Open(Config{WALPath: path})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	l.Append(core.PayloadCreditEarn, CreditTxPayload{AccountID: "acct-1", AmountSats: 10}, "coordinator", 1000)
	l.Append(core.PayloadCreditEarn, CreditTxPayload{AccountID: "acct-1", AmountSats: 20}, "coordinator", 2000)
	l.Close()

	reopened, err := Open(Config{WALPath: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { reopened.Close() })

	idx, _ := reopened.Head()
	if idx != 2 {
		t.Fatalf("expected 2 entries replayed, got %d", idx)
	}
	if bad := reopened.Verify(0, 2, nil); bad != -1 {
		t.Fatalf("expected replayed chain to verify clean, first failure at %d", bad)
	}
}

func TestEntriesRange(t *testing.T) {
	l := openTestLedger(t, nil)
	for i := 0; i < 3; i++ {
		l.Append(core.PayloadCreditEarn, CreditTxPayload{AccountID: "acct-1", AmountSats: int64(i)}, "coordinator", int64(i))
	}
	got := l.Entries(1, 3)
	if len(got) != 2 || got[0].Index != 1 || got[1].Index != 2 {
		t.Fatalf("unexpected entries slice: %+v", got)
	}
	if got := l.Entries(5, 10); got != nil {
		t.Fatalf("expected out-of-range slice to be nil, got %+v", got)
	}
}
