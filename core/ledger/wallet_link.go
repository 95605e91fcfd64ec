package ledger

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	bip39 "github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/ripemd160"

	"coordinator-core/core"
)

const (
	walletHardenedOffset uint32 = 0x80000000
	walletMasterHMACKey         = "coordinator-core wallet seed"
)

// CreditWallet is the hierarchical-deterministic key material linking a
// credit account to a spendable wallet, adapted from the teacher's HDWallet
// for credit-account linkage rather than on-chain transaction signing.
type CreditWallet struct {
	seed        []byte
	masterKey   []byte
	masterChain []byte
}

// NewRandomCreditWallet generates entropyBits (128 or 256) of randomness and
// returns a wallet plus its BIP-39 recovery mnemonic.
func NewRandomCreditWallet(entropyBits int) (*CreditWallet, string, error) {
	if entropyBits != 128 && entropyBits != 256 {
		return nil, "", fmt.Errorf("unsupported entropy size %d", entropyBits)
	}
	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return nil, "", fmt.Errorf("entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, "", fmt.Errorf("mnemonic: %w", err)
	}
	seed := bip39.NewSeed(mnemonic, "")
	w, err := newCreditWalletFromSeed(seed)
	if err != nil {
		return nil, "", err
	}
	return w, mnemonic, nil
}

// CreditWalletFromMnemonic imports an existing BIP-39 phrase.
func CreditWalletFromMnemonic(mnemonic, passphrase string) (*CreditWallet, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("invalid mnemonic checksum")
	}
	seed := bip39.NewSeed(mnemonic, passphrase)
	return newCreditWalletFromSeed(seed)
}

func newCreditWalletFromSeed(seed []byte) (*CreditWallet, error) {
	if len(seed) < 16 {
		return nil, errors.New("seed too short")
	}
	i := hmacSHA512([]byte(walletMasterHMACKey), seed)
	return &CreditWallet{seed: seed, masterKey: i[:32], masterChain: i[32:]}, nil
}

func hmacSHA512(key, data []byte) []byte {
	h := hmac.New(sha512.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// derivePrivate derives hardened child key material; ed25519 supports only
// hardened derivation.
func derivePrivate(parentKey, parentChain []byte, index uint32) (key, chain []byte) {
	data := make([]byte, 1+32+4)
	copy(data[1:], parentKey)
	binary.BigEndian.PutUint32(data[33:], index)
	i := hmacSHA512(parentChain, data)
	return i[:32], i[32:]
}

// DeriveAccountKey derives the ed25519 keypair for credit-account index
// (hardened internally), per the SLIP-0010-like path m/account'.
func (w *CreditWallet) DeriveAccountKey(account uint32) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	key, _ := derivePrivate(w.masterKey, w.masterChain, account|walletHardenedOffset)
	priv := ed25519.NewKeyFromSeed(key)
	pub := priv.Public().(ed25519.PublicKey)
	return priv, pub, nil
}

// Address derives a 20-byte SHA-256/RIPEMD-160 address from a public key,
// matching the teacher's address scheme.
func Address(pub ed25519.PublicKey) (string, error) {
	sum := sha256.Sum256(pub)
	h := ripemd160.New()
	if _, err := h.Write(sum[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// LinkWallet attaches a wallet to a credit account that may already hold a
// positive held balance (accrued before the wallet existed). It returns the
// two compensating ledger entries that must be appended together: an earn
// releasing the held balance and a spend consuming it, per §4.F.
func LinkWallet(ledger *Ledger, accountID string, heldAmount int64, walletTxID string, actorID string, nowMs int64) (earnEntry, spendEntry any, err error) {
	if heldAmount <= 0 {
		return nil, nil, nil
	}
	earn, spend := WalletLinkCompensation(accountID, heldAmount, walletTxID)
	e1, err := ledger.Append(core.PayloadCreditEarn, earn, actorID, nowMs)
	if err != nil {
		return nil, nil, err
	}
	e2, err := ledger.Append(core.PayloadCreditSpend, spend, actorID, nowMs)
	if err != nil {
		return nil, nil, err
	}
	return e1, e2, nil
}
