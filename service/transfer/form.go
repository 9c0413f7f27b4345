package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/brojonat/solmoney/service/metrics"
	natspkg "github.com/brojonat/solmoney/service/nats"
	"github.com/brojonat/solmoney/service/option"
	"github.com/brojonat/solmoney/service/solana"
	"github.com/brojonat/solmoney/service/wallet"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// Operation names the two things the form can do.
type Operation string

const (
	OpTransfer Operation = "transfer"
	OpAirdrop  Operation = "airdrop"
)

// Phase is the state of one operation. Each invocation restarts at
// PhaseIdle and ends in PhaseSucceeded or PhaseFailed.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseValidating Phase = "validating"
	PhaseSubmitting Phase = "submitting"
	PhaseConfirming Phase = "confirming"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
)

// InFlight reports whether the phase is one of the loading phases.
func (p Phase) InFlight() bool {
	return p == PhaseValidating || p == PhaseSubmitting || p == PhaseConfirming
}

// WalletContext supplies the connected identity and the cluster connection.
// *wallet.Provider implements it.
type WalletContext interface {
	Identity() option.Option[wallet.Identity]
	Connection() option.Option[solana.Connection]
}

// Result describes a successful operation.
type Result struct {
	Operation Operation          `json:"operation"`
	Signature solanago.Signature `json:"signature"`
	AmountSOL decimal.Decimal    `json:"amount_sol"`
	Lamports  uint64             `json:"lamports"`
	Receiver  string             `json:"receiver,omitempty"`
	Message   string             `json:"message"`
}

// Snapshot is the form state as a view renders it.
type Snapshot struct {
	Receiver      string `json:"receiver"`
	Amount        string `json:"amount"`
	AirdropAmount string `json:"airdrop_amount"`

	Loading       bool  `json:"loading"`
	TransferPhase Phase `json:"transfer_phase"`
	AirdropPhase  Phase `json:"airdrop_phase"`

	Error     string `json:"error,omitempty"`
	ErrorKind Kind   `json:"error_kind,omitempty"`
	Success   string `json:"success,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// Form collects transfer and airdrop input, validates it, and submits it
// through the wallet context. The mutex is never held across network calls.
type Form struct {
	wallet    WalletContext
	builder   InstructionBuilder
	publisher natspkg.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger

	mu            sync.Mutex
	receiver      string
	amount        string
	airdropAmount string
	phases        map[Operation]Phase
	errMsg        string
	errKind       Kind
	success       string
	signature     string
}

// NewForm creates a form. A nil builder means SystemTransferBuilder; a nil
// publisher disables event publishing; a nil m disables metrics.
func NewForm(wc WalletContext, builder InstructionBuilder, publisher natspkg.Publisher, m *metrics.Metrics, logger *slog.Logger) *Form {
	if builder == nil {
		builder = SystemTransferBuilder{}
	}
	return &Form{
		wallet:    wc,
		builder:   builder,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		phases: map[Operation]Phase{
			OpTransfer: PhaseIdle,
			OpAirdrop:  PhaseIdle,
		},
	}
}

// Snapshot returns a copy of the current state.
func (f *Form) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Snapshot{
		Receiver:      f.receiver,
		Amount:        f.amount,
		AirdropAmount: f.airdropAmount,
		Loading:       f.loadingLocked(),
		TransferPhase: f.phases[OpTransfer],
		AirdropPhase:  f.phases[OpAirdrop],
		Error:         f.errMsg,
		ErrorKind:     f.errKind,
		Success:       f.success,
		Signature:     f.signature,
	}
}

// Loading reports whether any operation is in flight.
func (f *Form) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadingLocked()
}

func (f *Form) loadingLocked() bool {
	for _, p := range f.phases {
		if p.InFlight() {
			return true
		}
	}
	return false
}

// SubmitTransfer sends amount SOL from the connected wallet to receiver and
// waits for confirmation. On success the receiver and amount fields are
// cleared.
func (f *Form) SubmitTransfer(ctx context.Context, receiver, amount string) (*Result, error) {
	return f.transfer(ctx, receiver, amount, false)
}

// TrySubmitTransfer is SubmitTransfer, except that it returns ErrBusy
// without touching the form when any operation is already in flight.
// The check and the transition to PhaseValidating happen under one lock.
func (f *Form) TrySubmitTransfer(ctx context.Context, receiver, amount string) (*Result, error) {
	return f.transfer(ctx, receiver, amount, true)
}

func (f *Form) transfer(ctx context.Context, receiver, amount string, exclusive bool) (*Result, error) {
	start := time.Now()
	if !f.begin(OpTransfer, exclusive, func() {
		f.receiver = receiver
		f.amount = amount
	}) {
		return nil, ErrBusy
	}

	event := natspkg.NewSubmissionEvent(string(OpTransfer), natspkg.StatusFailed)
	event.Receiver = strings.TrimSpace(receiver)
	event.AmountSOL = strings.TrimSpace(amount)

	res, err := f.submitTransfer(ctx, receiver, amount, event)
	f.finish(ctx, OpTransfer, start, res, err, event, func() {
		f.receiver = ""
		f.amount = ""
	})
	return res, err
}

func (f *Form) submitTransfer(ctx context.Context, receiver, amount string, event *natspkg.SubmissionEvent) (*Result, error) {
	identity, ok := f.wallet.Identity().Get()
	if !ok {
		return nil, ErrNotConnected
	}
	event.Wallet = identity.PublicKey().String()

	receiver = strings.TrimSpace(receiver)
	if receiver == "" || strings.TrimSpace(amount) == "" {
		return nil, ErrMissingInput
	}

	conn, ok := f.wallet.Connection().Get()
	if !ok {
		return nil, ErrNoConnection
	}
	event.Network = conn.Network()

	to, err := solanago.PublicKeyFromBase58(receiver)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}

	sol, lamports, err := ParseSOL(amount)
	if err != nil {
		return nil, err
	}
	event.AmountSOL = sol.String()
	event.Lamports = lamports

	tx := solanago.NewTransactionBuilder().
		AddInstruction(f.builder.Transfer(identity.PublicKey(), to, lamports))

	f.setPhase(OpTransfer, PhaseSubmitting)
	sig, err := identity.SendTransaction(ctx, tx, conn)
	if err != nil {
		return nil, &SubmissionError{Op: OpTransfer, Err: err}
	}
	event.Signature = sig.String()
	f.logger.InfoContext(ctx, "transaction sent",
		"signature", sig.String(),
		"receiver", to.String(),
		"lamports", lamports,
	)

	f.setPhase(OpTransfer, PhaseConfirming)
	if _, err := conn.ConfirmTransaction(ctx, sig); err != nil {
		return nil, &SubmissionError{Op: OpTransfer, Err: err}
	}

	return &Result{
		Operation: OpTransfer,
		Signature: sig,
		AmountSOL: sol,
		Lamports:  lamports,
		Receiver:  to.String(),
		Message:   fmt.Sprintf("Transaction sent successfully! Signature: %s", sig),
	}, nil
}

// RequestAirdrop asks the cluster faucet for amount SOL (1 when empty, at
// most 5) for the connected wallet and waits for confirmation. On success
// only the airdrop field is cleared.
func (f *Form) RequestAirdrop(ctx context.Context, amount string) (*Result, error) {
	return f.airdrop(ctx, amount, false)
}

// TryRequestAirdrop is RequestAirdrop, except that it returns ErrBusy
// without touching the form when any operation is already in flight.
func (f *Form) TryRequestAirdrop(ctx context.Context, amount string) (*Result, error) {
	return f.airdrop(ctx, amount, true)
}

func (f *Form) airdrop(ctx context.Context, amount string, exclusive bool) (*Result, error) {
	start := time.Now()
	if !f.begin(OpAirdrop, exclusive, func() {
		f.airdropAmount = amount
	}) {
		return nil, ErrBusy
	}

	event := natspkg.NewSubmissionEvent(string(OpAirdrop), natspkg.StatusFailed)
	event.AmountSOL = strings.TrimSpace(amount)

	res, err := f.requestAirdrop(ctx, amount, event)
	f.finish(ctx, OpAirdrop, start, res, err, event, func() {
		f.airdropAmount = ""
	})
	return res, err
}

func (f *Form) requestAirdrop(ctx context.Context, amount string, event *natspkg.SubmissionEvent) (*Result, error) {
	identity, ok := f.wallet.Identity().Get()
	if !ok {
		return nil, ErrNotConnected
	}
	event.Wallet = identity.PublicKey().String()

	conn, ok := f.wallet.Connection().Get()
	if !ok {
		return nil, ErrNoConnection
	}
	event.Network = conn.Network()

	sol, lamports, err := ParseAirdropSOL(amount)
	if err != nil {
		return nil, err
	}
	event.AmountSOL = sol.String()
	event.Lamports = lamports

	f.setPhase(OpAirdrop, PhaseSubmitting)
	sig, err := conn.RequestAirdrop(ctx, identity.PublicKey(), lamports)
	if err != nil {
		return nil, &SubmissionError{Op: OpAirdrop, Err: err}
	}
	event.Signature = sig.String()

	f.setPhase(OpAirdrop, PhaseConfirming)
	if _, err := conn.ConfirmTransaction(ctx, sig); err != nil {
		return nil, &SubmissionError{Op: OpAirdrop, Err: err}
	}

	return &Result{
		Operation: OpAirdrop,
		Signature: sig,
		AmountSOL: sol,
		Lamports:  lamports,
		Message:   fmt.Sprintf("Airdrop of %s SOL received! Signature: %s", sol, sig),
	}, nil
}

// begin stores the inputs, clears the previous outcome and enters
// PhaseValidating. When exclusive is set and an operation is in flight it
// changes nothing and returns false.
func (f *Form) begin(op Operation, exclusive bool, store func()) bool {
	f.mu.Lock()
	if exclusive && f.loadingLocked() {
		f.mu.Unlock()
		return false
	}
	store()
	f.errMsg = ""
	f.errKind = KindNone
	f.success = ""
	f.signature = ""
	f.phases[op] = PhaseValidating
	f.mu.Unlock()

	if f.metrics != nil {
		f.metrics.RecordSubmissionStarted(string(op))
	}
	return true
}

func (f *Form) setPhase(op Operation, phase Phase) {
	f.mu.Lock()
	f.phases[op] = phase
	f.mu.Unlock()
}

// finish records the terminal phase, clears inputs on success, and reports
// the outcome to metrics, logs and the event publisher.
func (f *Form) finish(ctx context.Context, op Operation, start time.Time, res *Result, err error, event *natspkg.SubmissionEvent, clearInputs func()) {
	outcome := PhaseSucceeded
	var lamports uint64

	f.mu.Lock()
	if err != nil {
		outcome = PhaseFailed
		f.errMsg = Message(op, err)
		f.errKind = KindOf(err)
	} else {
		lamports = res.Lamports
		f.success = res.Message
		f.signature = res.Signature.String()
		clearInputs()
	}
	f.phases[op] = outcome
	f.mu.Unlock()

	if f.metrics != nil {
		f.metrics.RecordSubmission(string(op), string(outcome), lamports, time.Since(start).Seconds())
	}

	if err != nil {
		f.logger.WarnContext(ctx, "submission failed",
			"operation", op,
			"kind", KindOf(err),
			"error", err,
		)
		event.ErrorKind = string(KindOf(err))
		event.Error = Message(op, err)
	} else {
		f.logger.InfoContext(ctx, "submission succeeded",
			"operation", op,
			"signature", res.Signature.String(),
			"lamports", res.Lamports,
		)
		event.Status = natspkg.StatusSucceeded
	}

	f.publish(ctx, event)
}

func (f *Form) publish(ctx context.Context, event *natspkg.SubmissionEvent) {
	if f.publisher == nil {
		return
	}
	event.PublishedAt = time.Now().UTC()
	if err := f.publisher.PublishSubmission(context.WithoutCancel(ctx), event); err != nil {
		f.logger.ErrorContext(ctx, "failed to publish submission event",
			"id", event.ID,
			"operation", event.Operation,
			"error", err,
		)
	}
}
