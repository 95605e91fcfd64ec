package pipeline

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"coordinator-core/core"
)

// DeriveSharedKey runs X25519 ECDH between a local private scalar and a
// remote public key, then an HKDF-SHA256 expansion to an AES-256 key, per
// §4.D's optional result envelope.
func DeriveSharedKey(localPriv, remotePub [32]byte, keyID string) ([]byte, error) {
	shared, err := curve25519.X25519(localPriv[:], remotePub[:])
	if err != nil {
		return nil, fmt.Errorf("x25519: %w", err)
	}
	h := hkdf.New(sha256.New, shared, nil, []byte("coordinator-core/envelope/"+keyID))
	key := make([]byte, 32)
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, fmt.Errorf("hkdf expand: %w", err)
	}
	return key, nil
}

// GenerateX25519Keypair produces a fresh scalar/point pair for ECDH.
func GenerateX25519Keypair() (priv, pub [32]byte, err error) {
	if _, err = io.ReadFull(rand.Reader, priv[:]); err != nil {
		return
	}
	p, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return
	}
	copy(pub[:], p)
	return
}

// Seal encrypts plaintext with AES-256-GCM under key, returning an Envelope.
// Only the key identifier, never the key itself, is carried in the envelope
// or logged.
func Seal(key []byte, keyID string, plaintext []byte) (*core.Envelope, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	ct := gcm.Seal(nil, nonce, plaintext, nil)
	return &core.Envelope{KeyID: keyID, Nonce: nonce, Ciphertext: ct}, nil
}

// Open decrypts an Envelope produced by Seal.
func Open(key []byte, env *core.Envelope) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return gcm.Open(nil, env.Nonce, env.Ciphertext, nil)
}
