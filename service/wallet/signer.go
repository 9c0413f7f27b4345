package wallet

import (
	"context"
	"fmt"

	"github.com/brojonat/solmoney/service/solana"
	solanago "github.com/gagliardetto/solana-go"
)

// Identity is a connected wallet: a public key plus the ability to sign and
// send a transaction through a connection.
type Identity interface {
	PublicKey() solanago.PublicKey
	SendTransaction(ctx context.Context, tx *solanago.TransactionBuilder, conn solana.Connection) (solanago.Signature, error)
}

// LocalSigner is an Identity backed by a private key held in memory.
type LocalSigner struct {
	key     solanago.PrivateKey
	adapter string
}

var _ Identity = (*LocalSigner)(nil)

// NewLocalSigner wraps key. adapter names the source it was loaded from.
func NewLocalSigner(key solanago.PrivateKey, adapter string) *LocalSigner {
	return &LocalSigner{key: key, adapter: adapter}
}

func (s *LocalSigner) PublicKey() solanago.PublicKey {
	return s.key.PublicKey()
}

// Adapter returns the name of the adapter that produced the key.
func (s *LocalSigner) Adapter() string {
	return s.adapter
}

// SendTransaction stamps the builder with a fresh blockhash and this wallet
// as fee payer, signs it and submits it through conn.
func (s *LocalSigner) SendTransaction(ctx context.Context, tb *solanago.TransactionBuilder, conn solana.Connection) (solanago.Signature, error) {
	if tb == nil {
		return solanago.Signature{}, fmt.Errorf("transaction is nil")
	}
	if conn == nil {
		return solanago.Signature{}, fmt.Errorf("connection is nil")
	}

	blockhash, err := conn.LatestBlockhash(ctx)
	if err != nil {
		return solanago.Signature{}, fmt.Errorf("failed to get recent blockhash: %w", err)
	}

	tx, err := tb.
		SetRecentBlockHash(blockhash).
		SetFeePayer(s.PublicKey()).
		Build()
	if err != nil {
		return solanago.Signature{}, fmt.Errorf("failed to build transaction: %w", err)
	}

	if _, err := tx.Sign(s.keyFor); err != nil {
		return solanago.Signature{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	sig, err := conn.SendTransaction(ctx, tx)
	if err != nil {
		return solanago.Signature{}, err
	}
	return sig, nil
}

func (s *LocalSigner) keyFor(pub solanago.PublicKey) *solanago.PrivateKey {
	if pub.Equals(s.PublicKey()) {
		return &s.key
	}
	return nil
}
