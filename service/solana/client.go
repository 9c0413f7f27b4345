package solana

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/solmoney/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// RPCClient is the subset of Solana RPC we depend on.
// Tests substitute it so nothing talks to a real node.
type RPCClient interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (solana.Hash, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64, commitment rpc.CommitmentType) (solana.Signature, error)
	// GetSignatureStatus returns nil, nil when the node has not seen the signature yet.
	GetSignatureStatus(ctx context.Context, signature solana.Signature) (*rpc.SignatureStatusesResult, error)
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (uint64, error)
}

// Connection is a handle to one Solana cluster. The wallet uses it to submit
// signed transactions; the transfer form uses it for airdrops and
// confirmations.
type Connection interface {
	Endpoint() string
	Network() string
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64) (solana.Signature, error)
	ConfirmTransaction(ctx context.Context, signature solana.Signature) (rpc.ConfirmationStatusType, error)
	Balance(ctx context.Context, account solana.PublicKey) (uint64, error)
}

// Options configures a Client.
type Options struct {
	Endpoint       string // RPC URL, also used as the metrics endpoint label
	Network        string // "devnet", "testnet" or "localnet"
	Commitment     rpc.CommitmentType
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

// Client implements Connection on top of an RPCClient.
type Client struct {
	rpc     RPCClient
	opts    Options
	metrics *metrics.Metrics
	logger  *slog.Logger
}

var _ Connection = (*Client)(nil)

// NewClient creates a new Solana connection.
// If m is nil, no metrics are recorded.
func NewClient(rpcClient RPCClient, opts Options, m *metrics.Metrics, logger *slog.Logger) *Client {
	if opts.Commitment == "" {
		opts.Commitment = rpc.CommitmentConfirmed
	}
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = 60 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	return &Client{
		rpc:     rpcClient,
		opts:    opts,
		metrics: m,
		logger:  logger,
	}
}

// Endpoint returns the RPC URL this connection talks to.
func (c *Client) Endpoint() string { return c.opts.Endpoint }

// Network returns the cluster name.
func (c *Client) Network() string { return c.opts.Network }

// LatestBlockhash fetches a recent blockhash at the configured commitment.
func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	start := time.Now()
	hash, err := c.rpc.GetLatestBlockhash(ctx, c.opts.Commitment)
	c.observe("GetLatestBlockhash", start, err)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("getLatestBlockhash: %w", err)
	}
	return hash, nil
}

// SendTransaction submits a signed transaction with preflight checks enabled.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	start := time.Now()
	sig, err := c.rpc.SendTransaction(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: c.opts.Commitment,
	})
	c.observe("SendTransaction", start, err)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("sendTransaction: %w", err)
	}

	c.logger.InfoContext(ctx, "transaction sent", "signature", sig.String(), "network", c.opts.Network)
	return sig, nil
}

// RequestAirdrop asks the cluster faucet for lamports. Only test clusters
// have a faucet; mainnet endpoints reject the call.
func (c *Client) RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64) (solana.Signature, error) {
	start := time.Now()
	sig, err := c.rpc.RequestAirdrop(ctx, account, lamports, c.opts.Commitment)
	c.observe("RequestAirdrop", start, err)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("requestAirdrop: %w", err)
	}

	c.logger.InfoContext(ctx, "airdrop requested",
		"signature", sig.String(),
		"account", account.String(),
		"lamports", lamports,
	)
	return sig, nil
}

// ConfirmTransaction polls the signature status until it reaches the
// configured commitment, the transaction fails, or ConfirmTimeout elapses.
func (c *Client) ConfirmTransaction(ctx context.Context, signature solana.Signature) (rpc.ConfirmationStatusType, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	polls := 0
	for {
		polls++
		start := time.Now()
		status, err := c.rpc.GetSignatureStatus(ctx, signature)
		c.observe("GetSignatureStatuses", start, err)

		switch {
		case err != nil:
			c.logger.WarnContext(ctx, "signature status poll failed",
				"signature", signature.String(),
				"attempt", polls,
				"error", err,
			)
		case status != nil && status.Err != nil:
			c.recordPolls("failed", polls)
			return status.ConfirmationStatus, fmt.Errorf("transaction %s failed: %v", signature, status.Err)
		case status != nil && commitmentReached(status.ConfirmationStatus, c.opts.Commitment):
			c.recordPolls("confirmed", polls)
			c.logger.DebugContext(ctx, "signature confirmed",
				"signature", signature.String(),
				"status", status.ConfirmationStatus,
				"polls", polls,
			)
			return status.ConfirmationStatus, nil
		}

		select {
		case <-ctx.Done():
			c.recordPolls("timeout", polls)
			return "", fmt.Errorf("confirmation of %s not reached after %d polls: %w", signature, polls, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Balance returns the account balance in lamports.
func (c *Client) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	start := time.Now()
	lamports, err := c.rpc.GetBalance(ctx, account, c.opts.Commitment)
	c.observe("GetBalance", start, err)
	if err != nil {
		return 0, fmt.Errorf("getBalance: %w", err)
	}
	return lamports, nil
}

func (c *Client) observe(method string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordRPCCall(method, status, c.opts.Network, time.Since(start).Seconds())
}

func (c *Client) recordPolls(status string, polls int) {
	if c.metrics != nil {
		c.metrics.RecordConfirmationPolls(status, polls)
	}
}

// commitmentReached reports whether status satisfies the wanted commitment.
func commitmentReached(status rpc.ConfirmationStatusType, want rpc.CommitmentType) bool {
	rank := map[rpc.ConfirmationStatusType]int{
		rpc.ConfirmationStatusProcessed: 1,
		rpc.ConfirmationStatusConfirmed: 2,
		rpc.ConfirmationStatusFinalized: 3,
	}
	wantRank := map[rpc.CommitmentType]int{
		rpc.CommitmentProcessed: 1,
		rpc.CommitmentConfirmed: 2,
		rpc.CommitmentFinalized: 3,
	}[want]
	if wantRank == 0 {
		wantRank = 2
	}
	return rank[status] >= wantRank
}
