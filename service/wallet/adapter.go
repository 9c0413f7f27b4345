package wallet

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// Adapter names, in the order the provider offers them.
const (
	AdapterKeypairFile = "keypair-file"
	AdapterSecretKey   = "secret-key"
)

var (
	// ErrAdapterNotReady is returned when connecting an adapter that has no key configured.
	ErrAdapterNotReady = errors.New("wallet adapter is not configured")
	// ErrUnknownAdapter is returned when connecting an adapter name the provider does not offer.
	ErrUnknownAdapter = errors.New("unknown wallet adapter")
)

// Adapter loads a signing key from some local source.
type Adapter interface {
	Name() string
	// Ready reports whether the adapter has enough configuration to attempt Load.
	Ready() bool
	Load() (solanago.PrivateKey, error)
}

// KeypairFileAdapter reads a solana-keygen JSON keypair file.
type KeypairFileAdapter struct {
	Path string
}

func (a *KeypairFileAdapter) Name() string { return AdapterKeypairFile }

func (a *KeypairFileAdapter) Ready() bool { return a.Path != "" }

func (a *KeypairFileAdapter) Load() (solanago.PrivateKey, error) {
	if !a.Ready() {
		return nil, ErrAdapterNotReady
	}
	key, err := solanago.PrivateKeyFromSolanaKeygenFile(a.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keypair file %s: %w", a.Path, err)
	}
	if err := checkKeypair(key); err != nil {
		return nil, fmt.Errorf("keypair file %s: %w", a.Path, err)
	}
	return key, nil
}

// SecretKeyAdapter decodes a base58-encoded 64-byte secret key, the format
// browser wallets export.
type SecretKeyAdapter struct {
	Secret string
}

func (a *SecretKeyAdapter) Name() string { return AdapterSecretKey }

func (a *SecretKeyAdapter) Ready() bool { return a.Secret != "" }

func (a *SecretKeyAdapter) Load() (solanago.PrivateKey, error) {
	if !a.Ready() {
		return nil, ErrAdapterNotReady
	}
	raw, err := base58.Decode(a.Secret)
	if err != nil {
		return nil, fmt.Errorf("invalid base58 secret key: %w", err)
	}
	key := solanago.PrivateKey(raw)
	if err := checkKeypair(key); err != nil {
		return nil, err
	}
	return key, nil
}

// checkKeypair verifies the key is a 64-byte ed25519 keypair whose public
// half matches its seed.
func checkKeypair(key solanago.PrivateKey) error {
	if len(key) != ed25519.PrivateKeySize {
		return fmt.Errorf("secret key must be %d bytes, got %d", ed25519.PrivateKeySize, len(key))
	}
	derived := ed25519.NewKeyFromSeed(key[:ed25519.SeedSize])
	if !bytes.Equal(derived[ed25519.SeedSize:], key[ed25519.SeedSize:]) {
		return errors.New("secret key public half does not match its seed")
	}
	return nil
}
