package ledger

import (
	"crypto/ed25519"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Wallet holds the ed25519 keypair used to sign transactions.
type Wallet struct {
	priv ed25519.PrivateKey
	addr string
}

// NewWallet parses a base58-encoded private key. Both the 64-byte expanded
// form (seed || pubkey, the format wallet exports use) and a bare 32-byte
// seed are accepted.
func NewWallet(encoded string) (*Wallet, error) {
	if encoded == "" {
		return nil, fmt.Errorf("empty private key")
	}

	raw, err := base58.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}

	var priv ed25519.PrivateKey
	switch len(raw) {
	case ed25519.PrivateKeySize:
		priv = ed25519.PrivateKey(raw)
	case ed25519.SeedSize:
		priv = ed25519.NewKeyFromSeed(raw)
	default:
		return nil, fmt.Errorf("private key must be %d or %d bytes, got %d",
			ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
	}

	pub := priv.Public().(ed25519.PublicKey)
	if !isOnCurve(pub) {
		return nil, fmt.Errorf("public key is not on the ed25519 curve")
	}

	return &Wallet{
		priv: priv,
		addr: base58.Encode(pub),
	}, nil
}

// Address returns the base58-encoded public key.
func (w *Wallet) Address() string {
	return w.addr
}

// Sign signs a transaction message with the wallet's private key.
func (w *Wallet) Sign(message []byte) []byte {
	return ed25519.Sign(w.priv, message)
}

// Verify reports whether sig is a valid signature of message by this wallet.
func (w *Wallet) Verify(message, sig []byte) bool {
	return ed25519.Verify(w.priv.Public().(ed25519.PublicKey), message, sig)
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
