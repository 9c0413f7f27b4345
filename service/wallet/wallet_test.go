package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/brojonat/solmoney/service/metrics"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn implements solana.Connection and records what it was asked to send.
type fakeConn struct {
	blockhash    solanago.Hash
	blockhashErr error
	sendErr      error
	sent         *solanago.Transaction
}

func (f *fakeConn) Endpoint() string { return "http://127.0.0.1:8899" }
func (f *fakeConn) Network() string  { return "localnet" }

func (f *fakeConn) LatestBlockhash(ctx context.Context) (solanago.Hash, error) {
	return f.blockhash, f.blockhashErr
}

func (f *fakeConn) SendTransaction(ctx context.Context, tx *solanago.Transaction) (solanago.Signature, error) {
	if f.sendErr != nil {
		return solanago.Signature{}, f.sendErr
	}
	f.sent = tx
	return tx.Signatures[0], nil
}

func (f *fakeConn) RequestAirdrop(ctx context.Context, account solanago.PublicKey, lamports uint64) (solanago.Signature, error) {
	return solanago.Signature{}, nil
}

func (f *fakeConn) ConfirmTransaction(ctx context.Context, sig solanago.Signature) (rpc.ConfirmationStatusType, error) {
	return rpc.ConfirmationStatusConfirmed, nil
}

func (f *fakeConn) Balance(ctx context.Context, account solanago.PublicKey) (uint64, error) {
	return 0, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newKey(t *testing.T) solanago.PrivateKey {
	t.Helper()
	key, err := solanago.NewRandomPrivateKey()
	require.NoError(t, err)
	return key
}

// writeKeypairFile writes key in solana-keygen's JSON byte-array format.
func writeKeypairFile(t *testing.T, key solanago.PrivateKey) string {
	t.Helper()
	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestKeypairFileAdapter(t *testing.T) {
	t.Run("loads solana-keygen file", func(t *testing.T) {
		key := newKey(t)
		a := &KeypairFileAdapter{Path: writeKeypairFile(t, key)}

		require.True(t, a.Ready())
		got, err := a.Load()
		require.NoError(t, err)
		assert.Equal(t, key.PublicKey(), got.PublicKey())
	})

	t.Run("not ready without path", func(t *testing.T) {
		a := &KeypairFileAdapter{}
		assert.False(t, a.Ready())
		_, err := a.Load()
		assert.ErrorIs(t, err, ErrAdapterNotReady)
	})

	t.Run("missing file", func(t *testing.T) {
		a := &KeypairFileAdapter{Path: filepath.Join(t.TempDir(), "missing.json")}
		_, err := a.Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read keypair file")
	})
}

func TestSecretKeyAdapter(t *testing.T) {
	t.Run("decodes base58 secret", func(t *testing.T) {
		key := newKey(t)
		a := &SecretKeyAdapter{Secret: base58.Encode(key)}

		got, err := a.Load()
		require.NoError(t, err)
		assert.Equal(t, key.PublicKey(), got.PublicKey())
	})

	t.Run("rejects invalid base58", func(t *testing.T) {
		a := &SecretKeyAdapter{Secret: "0OIl"}
		_, err := a.Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid base58")
	})

	t.Run("rejects short key", func(t *testing.T) {
		a := &SecretKeyAdapter{Secret: base58.Encode([]byte{1, 2, 3})}
		_, err := a.Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be 64 bytes")
	})

	t.Run("rejects mismatched public half", func(t *testing.T) {
		key := newKey(t)
		other := newKey(t)
		mixed := append(append([]byte{}, key[:32]...), other[32:]...)

		a := &SecretKeyAdapter{Secret: base58.Encode(mixed)}
		_, err := a.Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not match")
	})
}

func TestLocalSigner_SendTransaction(t *testing.T) {
	ctx := context.Background()
	key := newKey(t)
	signer := NewLocalSigner(key, AdapterSecretKey)
	receiver := solanago.MustPublicKeyFromBase58("11111111111111111111111111111111")

	newBuilder := func() *solanago.TransactionBuilder {
		ix := system.NewTransferInstruction(solanago.LAMPORTS_PER_SOL, key.PublicKey(), receiver).Build()
		return solanago.NewTransactionBuilder().AddInstruction(ix)
	}

	t.Run("stamps blockhash and fee payer then signs", func(t *testing.T) {
		conn := &fakeConn{blockhash: solanago.Hash{4, 2}}

		sig, err := signer.SendTransaction(ctx, newBuilder(), conn)
		require.NoError(t, err)

		require.NotNil(t, conn.sent)
		assert.Equal(t, solanago.Hash{4, 2}, conn.sent.Message.RecentBlockhash)
		require.NotEmpty(t, conn.sent.Message.AccountKeys)
		assert.Equal(t, key.PublicKey(), conn.sent.Message.AccountKeys[0])
		require.Len(t, conn.sent.Signatures, 1)
		assert.Equal(t, conn.sent.Signatures[0], sig)
		assert.NotEqual(t, solanago.Signature{}, sig)
	})

	t.Run("blockhash failure", func(t *testing.T) {
		conn := &fakeConn{blockhashErr: errors.New("rpc down")}

		_, err := signer.SendTransaction(ctx, newBuilder(), conn)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "recent blockhash")
		assert.Nil(t, conn.sent)
	})

	t.Run("send failure is returned", func(t *testing.T) {
		sendErr := errors.New("insufficient funds for fee")
		conn := &fakeConn{sendErr: sendErr}

		_, err := signer.SendTransaction(ctx, newBuilder(), conn)
		assert.ErrorIs(t, err, sendErr)
	})

	t.Run("nil builder", func(t *testing.T) {
		_, err := signer.SendTransaction(ctx, nil, &fakeConn{})
		assert.Error(t, err)
	})
}

func TestProvider_AutoConnect(t *testing.T) {
	ctx := context.Background()

	t.Run("connects first ready adapter in order", func(t *testing.T) {
		fileKey := newKey(t)
		secretKey := newKey(t)
		p := NewProvider("http://127.0.0.1:8899", "localnet", &fakeConn{},
			DefaultAdapters(writeKeypairFile(t, fileKey), base58.Encode(secretKey)),
			metrics.NewMetrics(prometheus.NewRegistry()), testLogger())

		require.NoError(t, p.AutoConnect(ctx))

		id, ok := p.Identity().Get()
		require.True(t, ok)
		assert.Equal(t, fileKey.PublicKey(), id.PublicKey())
		assert.Equal(t, AdapterKeypairFile, p.Status().Adapter)
	})

	t.Run("skips adapters that are not ready", func(t *testing.T) {
		secretKey := newKey(t)
		p := NewProvider("", "devnet", &fakeConn{}, DefaultAdapters("", base58.Encode(secretKey)), nil, testLogger())

		require.NoError(t, p.AutoConnect(ctx))
		assert.Equal(t, AdapterSecretKey, p.Status().Adapter)
	})

	t.Run("nothing configured stays disconnected", func(t *testing.T) {
		p := NewProvider("", "devnet", &fakeConn{}, DefaultAdapters("", ""), nil, testLogger())

		require.NoError(t, p.AutoConnect(ctx))
		assert.True(t, p.Identity().IsNone())
		assert.False(t, p.Status().Connected)
	})
}

func TestProvider_ConnectDisconnect(t *testing.T) {
	ctx := context.Background()
	secretKey := newKey(t)
	conn := &fakeConn{}
	p := NewProvider("https://api.devnet.solana.com", "devnet", conn,
		DefaultAdapters("", base58.Encode(secretKey)), nil, testLogger())

	err := p.Connect(ctx, "phantom")
	assert.ErrorIs(t, err, ErrUnknownAdapter)

	err = p.Connect(ctx, AdapterKeypairFile)
	assert.ErrorIs(t, err, ErrAdapterNotReady)
	assert.True(t, p.Identity().IsNone())

	require.NoError(t, p.Connect(ctx, AdapterSecretKey))
	st := p.Status()
	assert.True(t, st.Connected)
	assert.Equal(t, secretKey.PublicKey().String(), st.PublicKey)
	assert.Equal(t, "https://api.devnet.solana.com", st.Endpoint)
	assert.Equal(t, []AdapterInfo{
		{Name: AdapterKeypairFile, Ready: false},
		{Name: AdapterSecretKey, Ready: true},
	}, st.Adapters)

	p.Disconnect(ctx)
	assert.True(t, p.Identity().IsNone())
	assert.False(t, p.Status().Connected)

	// Disconnecting twice is harmless.
	p.Disconnect(ctx)

	// Endpoint and connection are stable across connect/disconnect.
	got, ok := p.Connection().Get()
	require.True(t, ok)
	assert.Same(t, conn, got)
	assert.Equal(t, "https://api.devnet.solana.com", p.Endpoint())
}

func TestProvider_NoConnection(t *testing.T) {
	p := NewProvider("", "devnet", nil, nil, nil, testLogger())
	assert.True(t, p.Connection().IsNone())
	assert.Empty(t, p.Adapters())
}
