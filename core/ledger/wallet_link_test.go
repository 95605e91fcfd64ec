package ledger

import (
	"path/filepath"
	"testing"

	"coordinator-core/core"
)

func TestNewRandomCreditWalletRejectsUnsupportedEntropy(t *testing.T) {
	if _, _, err := NewRandomCreditWallet(192); err == nil {
		t.Fatal("expected unsupported entropy size to be rejected")
	}
}

func TestCreditWalletMnemonicRoundTrip(t *testing.T) {
	w, mnemonic, err := NewRandomCreditWallet(128)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w == nil || mnemonic == "" {
		t.Fatal("expected a wallet and mnemonic")
	}

	imported, err := CreditWalletFromMnemonic(mnemonic, "")
	if err != nil {
		t.Fatalf("unexpected error importing mnemonic: %v", err)
	}

	_, origPub, err := w.DeriveAccountKey(0)
	if err != nil {
		t.Fatalf("derive from original: %v", err)
	}
	_, importedPub, err := imported.DeriveAccountKey(0)
	if err != nil {
		t.Fatalf("derive from imported: %v", err)
	}
	if string(origPub) != string(importedPub) {
		t.Fatal("expected the same mnemonic to derive the same account key")
	}
}

func TestCreditWalletFromMnemonicRejectsBadChecksum(t *testing.T) {
	if _, err := CreditWalletFromMnemonic("not a real mnemonic phrase at all here", ""); err == nil {
		t.Fatal("expected invalid mnemonic to be rejected")
	}
}

func TestDeriveAccountKeyDistinctPerIndex(t *testing.T) {
	w, _, err := NewRandomCreditWallet(128)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, pub0, _ := w.DeriveAccountKey(0)
	_, pub1, _ := w.DeriveAccountKey(1)
	if string(pub0) == string(pub1) {
		t.Fatal("expected distinct accounts to derive distinct keys")
	}
}

func TestAddressIsDeterministic(t *testing.T) {
	w, _, err := NewRandomCreditWallet(128)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, pub, _ := w.DeriveAccountKey(0)

	a1, err := Address(pub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a2, err := Address(pub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a1 != a2 || len(a1) != 40 {
		t.Fatalf("expected deterministic 20-byte hex address, got %q and %q", a1, a2)
	}
}

func TestLinkWalletAppendsCompensatingEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coordinator.wal")
	l, err := Open(Config{WALPath: path})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { l.Close() })

	e1, e2, err := LinkWallet(l, "acct-1", 500, "tx-abc", "coordinator", 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e1 == nil || e2 == nil {
		t.Fatal("expected both compensating entries to be returned")
	}

	entries := l.Entries(0, 2)
	if len(entries) != 2 || entries[0].Type != core.PayloadCreditEarn || entries[1].Type != core.PayloadCreditSpend {
		t.Fatalf("expected earn then spend entries appended, got %+v", entries)
	}
}

func TestLinkWalletNoOpForZeroHeldAmount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coordinator.wal")
	l, err := Open(Config{WALPath: path})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { l.Close() })

	e1, e2, err := LinkWallet(l, "acct-1", 0, "tx-abc", "coordinator", 1000)
	if err != nil || e1 != nil || e2 != nil {
		t.Fatalf("expected a no-op for zero held amount, got e1=%v e2=%v err=%v", e1, e2, err)
	}
	if idx, _ := l.Head(); idx != 0 {
		t.Fatalf("expected no entries appended, got head index %d", idx)
	}
}
