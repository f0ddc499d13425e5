package execution

import (
	"errors"
	"os"

	solana "github.com/gagliardetto/solana-go"
)

// Wallet supplies an agent's signing identity. The swarm never inspects
// key material; it only ever asks for the public key or a signer callback.
type Wallet struct {
	key solana.PrivateKey
}

// LoadWalletFromEnv reads the fleet signing key from the environment.
func LoadWalletFromEnv() (*Wallet, error) {
	b58 := os.Getenv("SOLANA_PRIVATE_KEY_BASE58")
	if b58 == "" {
		return nil, errors.New("SOLANA_PRIVATE_KEY_BASE58 not set")
	}
	key, err := solana.PrivateKeyFromBase58(b58)
	if err != nil {
		return nil, err
	}
	return &Wallet{key: key}, nil
}

// NewEphemeralWallet mints a throwaway keypair, one per agent in paper mode.
func NewEphemeralWallet() (*Wallet, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, err
	}
	return &Wallet{key: key}, nil
}

// PublicKey returns the wallet's public identity.
func (w *Wallet) PublicKey() solana.PublicKey { return w.key.PublicKey() }

// Signer returns the callback transaction signing expects.
func (w *Wallet) Signer() func(key solana.PublicKey) *solana.PrivateKey {
	return func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.key.PublicKey()) {
			return &w.key
		}
		return nil
	}
}
