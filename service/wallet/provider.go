package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/brojonat/solmoney/service/metrics"
	"github.com/brojonat/solmoney/service/option"
	"github.com/brojonat/solmoney/service/solana"
)

// AdapterInfo describes one adapter for display.
type AdapterInfo struct {
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
}

// Status is a point-in-time view of the wallet context.
type Status struct {
	Connected bool          `json:"connected"`
	PublicKey string        `json:"public_key,omitempty"`
	Adapter   string        `json:"adapter,omitempty"`
	Endpoint  string        `json:"endpoint"`
	Network   string        `json:"network"`
	Adapters  []AdapterInfo `json:"adapters"`
}

// Provider is the process-wide wallet context. The endpoint, connection and
// adapter list are fixed at construction; only the connected identity changes.
type Provider struct {
	endpoint string
	network  string
	conn     solana.Connection
	adapters []Adapter
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu       sync.RWMutex
	identity option.Option[*LocalSigner]
}

// NewProvider creates a wallet context. conn may be nil, in which case
// Connection reports None. If m is nil, no metrics are recorded.
func NewProvider(endpoint, network string, conn solana.Connection, adapters []Adapter, m *metrics.Metrics, logger *slog.Logger) *Provider {
	return &Provider{
		endpoint: endpoint,
		network:  network,
		conn:     conn,
		adapters: adapters,
		metrics:  m,
		logger:   logger,
		identity: option.None[*LocalSigner](),
	}
}

// DefaultAdapters returns the fixed adapter list: keypair file first, then
// base58 secret key.
func DefaultAdapters(keypairPath, secretKeyB58 string) []Adapter {
	return []Adapter{
		&KeypairFileAdapter{Path: keypairPath},
		&SecretKeyAdapter{Secret: secretKeyB58},
	}
}

// Endpoint returns the RPC endpoint URL.
func (p *Provider) Endpoint() string { return p.endpoint }

// Network returns the cluster name.
func (p *Provider) Network() string { return p.network }

// Connection returns the cluster connection, if one was configured.
func (p *Provider) Connection() option.Option[solana.Connection] {
	if p.conn == nil {
		return option.None[solana.Connection]()
	}
	return option.Some(p.conn)
}

// Identity returns the connected wallet, if any.
func (p *Provider) Identity() option.Option[Identity] {
	p.mu.RLock()
	defer p.mu.RUnlock()
	signer, ok := p.identity.Get()
	if !ok {
		return option.None[Identity]()
	}
	return option.Some[Identity](signer)
}

// Adapters lists the adapters in their fixed order.
func (p *Provider) Adapters() []AdapterInfo {
	out := make([]AdapterInfo, 0, len(p.adapters))
	for _, a := range p.adapters {
		out = append(out, AdapterInfo{Name: a.Name(), Ready: a.Ready()})
	}
	return out
}

// Status returns the current connection state.
func (p *Provider) Status() Status {
	st := Status{
		Endpoint: p.endpoint,
		Network:  p.network,
		Adapters: p.Adapters(),
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if signer, ok := p.identity.Get(); ok {
		st.Connected = true
		st.PublicKey = signer.PublicKey().String()
		st.Adapter = signer.Adapter()
	}
	return st
}

// Connect loads the key from the named adapter and makes it the connected
// identity, replacing any previous one.
func (p *Provider) Connect(ctx context.Context, name string) error {
	adapter := p.find(name)
	if adapter == nil {
		return fmt.Errorf("%w: %q", ErrUnknownAdapter, name)
	}
	if !adapter.Ready() {
		p.recordConnection(name, ErrAdapterNotReady)
		return fmt.Errorf("%s: %w", name, ErrAdapterNotReady)
	}

	key, err := adapter.Load()
	p.recordConnection(name, err)
	if err != nil {
		p.logger.ErrorContext(ctx, "wallet connection failed", "adapter", name, "error", err)
		return fmt.Errorf("failed to connect %s: %w", name, err)
	}

	signer := NewLocalSigner(key, name)

	p.mu.Lock()
	previous, hadPrevious := p.identity.Get()
	p.identity = option.Some(signer)
	p.mu.Unlock()

	if hadPrevious && previous.Adapter() != name && p.metrics != nil {
		p.metrics.RecordWalletDisconnected(previous.Adapter())
	}

	p.logger.InfoContext(ctx, "wallet connected",
		"adapter", name,
		"public_key", signer.PublicKey().String(),
		"network", p.network,
	)
	return nil
}

// AutoConnect connects the first ready adapter. It is a no-op when a wallet
// is already connected or no adapter is ready.
func (p *Provider) AutoConnect(ctx context.Context) error {
	if p.Identity().IsSome() {
		return nil
	}
	for _, a := range p.adapters {
		if a.Ready() {
			return p.Connect(ctx, a.Name())
		}
	}
	p.logger.InfoContext(ctx, "no wallet adapter configured, skipping autoconnect")
	return nil
}

// Disconnect clears the connected identity. It is safe to call when no
// wallet is connected.
func (p *Provider) Disconnect(ctx context.Context) {
	p.mu.Lock()
	previous, ok := p.identity.Get()
	p.identity = option.None[*LocalSigner]()
	p.mu.Unlock()

	if !ok {
		return
	}
	if p.metrics != nil {
		p.metrics.RecordWalletDisconnected(previous.Adapter())
	}
	p.logger.InfoContext(ctx, "wallet disconnected",
		"adapter", previous.Adapter(),
		"public_key", previous.PublicKey().String(),
	)
}

func (p *Provider) find(name string) Adapter {
	for _, a := range p.adapters {
		if a.Name() == name {
			return a
		}
	}
	return nil
}

func (p *Provider) recordConnection(name string, err error) {
	if p.metrics != nil {
		p.metrics.RecordWalletConnection(name, err)
	}
}
