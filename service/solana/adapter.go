package solana

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// realRPCClient adapts the solana-go RPC client to our RPCClient interface.
type realRPCClient struct {
	client *rpc.Client
}

// NewRPCClient creates a new RPCClient that wraps the solana-go RPC client.
// For premium RPC endpoints that require API keys, include the key in the URL:
// - Helius: https://devnet.helius-rpc.com/?api-key=YOUR-KEY
// - QuickNode: https://YOUR-ENDPOINT.solana-devnet.quiknode.pro/YOUR-KEY/
func NewRPCClient(rpcURL string) RPCClient {
	return &realRPCClient{
		client: rpc.New(rpcURL),
	}
}

func (r *realRPCClient) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (solana.Hash, error) {
	out, err := r.client.GetLatestBlockhash(ctx, commitment)
	if err != nil {
		return solana.Hash{}, err
	}
	return out.Value.Blockhash, nil
}

func (r *realRPCClient) SendTransaction(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	return r.client.SendTransactionWithOpts(ctx, tx, opts)
}

func (r *realRPCClient) RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64, commitment rpc.CommitmentType) (solana.Signature, error) {
	return r.client.RequestAirdrop(ctx, account, lamports, commitment)
}

func (r *realRPCClient) GetSignatureStatus(ctx context.Context, signature solana.Signature) (*rpc.SignatureStatusesResult, error) {
	out, err := r.client.GetSignatureStatuses(ctx, true, signature)
	if err != nil {
		return nil, err
	}
	if out == nil || len(out.Value) == 0 {
		return nil, nil
	}
	return out.Value[0], nil
}

func (r *realRPCClient) GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (uint64, error) {
	out, err := r.client.GetBalance(ctx, account, commitment)
	if err != nil {
		return 0, err
	}
	return out.Value, nil
}
