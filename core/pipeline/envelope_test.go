package pipeline

import (
	"bytes"
	"testing"
)

func TestSealOpenRoundTrip(t *testing.T) {
	localPriv, localPub, err := GenerateX25519Keypair()
	if err != nil {
		t.Fatalf("generate local keypair: %v", err)
	}
	remotePriv, remotePub, err := GenerateX25519Keypair()
	if err != nil {
		t.Fatalf("generate remote keypair: %v", err)
	}

	localKey, err := DeriveSharedKey(localPriv, remotePub, "session-1")
	if err != nil {
		t.Fatalf("derive local shared key: %v", err)
	}
	remoteKey, err := DeriveSharedKey(remotePriv, localPub, "session-1")
	if err != nil {
		t.Fatalf("derive remote shared key: %v", err)
	}
	if !bytes.Equal(localKey, remoteKey) {
		t.Fatal("expected both sides to derive the same shared key")
	}

	plaintext := []byte("subtask payload")
	env, err := Seal(localKey, "session-1", plaintext)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	got, err := Open(remoteKey, env)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("expected round-tripped plaintext %q, got %q", plaintext, got)
	}
}

func TestOpenFailsWithWrongKey(t *testing.T) {
	_, _, _ = GenerateX25519Keypair()
	key1 := make([]byte, 32)
	key2 := make([]byte, 32)
	key2[0] = 1

	env, err := Seal(key1, "k", []byte("secret"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := Open(key2, env); err == nil {
		t.Fatal("expected open with the wrong key to fail")
	}
}
