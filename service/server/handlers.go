package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/brojonat/solmoney/service/transfer"
	"github.com/brojonat/solmoney/service/wallet"
)

const (
	maxRequestBodySize = 1 << 16 // 64KB - request bodies are two short strings
	balanceTimeout     = 5 * time.Second
)

// kindForbidden is reported for cross-origin browser submissions.
const kindForbidden = "forbidden"

// walletResponse is the JSON shape of GET /api/v1/wallet.
type walletResponse struct {
	wallet.Status
	BalanceLamports *uint64 `json:"balance_lamports,omitempty"`
	BalanceSOL      string  `json:"balance_sol,omitempty"`
}

// submissionResponse is the JSON shape of a successful transfer or airdrop.
type submissionResponse struct {
	Operation string `json:"operation"`
	Signature string `json:"signature"`
	Receiver  string `json:"receiver,omitempty"`
	AmountSOL string `json:"amount_sol"`
	Lamports  uint64 `json:"lamports"`
	Message   string `json:"message"`
}

func resultToResponse(res *transfer.Result) submissionResponse {
	return submissionResponse{
		Operation: string(res.Operation),
		Signature: res.Signature.String(),
		Receiver:  res.Receiver,
		AmountSOL: res.AmountSOL.String(),
		Lamports:  res.Lamports,
		Message:   res.Message,
	}
}

// handleGetWallet returns the wallet context state and, when connected, the balance.
// GET /api/v1/wallet
func handleGetWallet(provider *wallet.Provider, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, walletStatus(r.Context(), provider, logger), http.StatusOK)
	})
}

// walletStatus builds the wallet view. A failed balance lookup leaves the
// balance unset.
func walletStatus(ctx context.Context, provider *wallet.Provider, logger *slog.Logger) walletResponse {
	resp := walletResponse{Status: provider.Status()}

	identity, ok := provider.Identity().Get()
	if !ok {
		return resp
	}
	conn, ok := provider.Connection().Get()
	if !ok {
		return resp
	}

	ctx, cancel := context.WithTimeout(ctx, balanceTimeout)
	defer cancel()
	lamports, err := conn.Balance(ctx, identity.PublicKey())
	if err != nil {
		logger.DebugContext(ctx, "balance lookup failed",
			"public_key", identity.PublicKey().String(),
			"error", err,
		)
		return resp
	}
	resp.BalanceLamports = &lamports
	resp.BalanceSOL = transfer.FormatLamports(lamports)
	return resp
}

// handleConnectWallet connects the named adapter.
// POST /api/v1/wallet/connect {"adapter": "keypair-file"}
func handleConnectWallet(provider *wallet.Provider, form *transfer.Form, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Adapter string `json:"adapter"`
		}
		if !decodeJSON(w, r, &req, logger) {
			return
		}
		if strings.TrimSpace(req.Adapter) == "" {
			writeError(w, "adapter is required", http.StatusBadRequest)
			return
		}
		if form.Loading() {
			writeKindError(w, "cannot switch wallets while a submission is in progress", string(transfer.KindBusy), http.StatusConflict)
			return
		}

		if err := provider.Connect(r.Context(), req.Adapter); err != nil {
			switch {
			case errors.Is(err, wallet.ErrUnknownAdapter):
				writeError(w, err.Error(), http.StatusNotFound)
			case errors.Is(err, wallet.ErrAdapterNotReady):
				writeError(w, err.Error(), http.StatusPreconditionFailed)
			default:
				writeError(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, walletStatus(r.Context(), provider, logger), http.StatusOK)
	})
}

// handleDisconnectWallet clears the connected identity.
// POST /api/v1/wallet/disconnect
func handleDisconnectWallet(provider *wallet.Provider, form *transfer.Form, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if form.Loading() {
			writeKindError(w, "cannot switch wallets while a submission is in progress", string(transfer.KindBusy), http.StatusConflict)
			return
		}
		provider.Disconnect(r.Context())
		writeJSON(w, walletStatus(r.Context(), provider, logger), http.StatusOK)
	})
}

// handleSubmitTransfer sends SOL from the connected wallet and waits for confirmation.
// POST /api/v1/transfers {"receiver": "...", "amount": "1.5"}
func handleSubmitTransfer(form *transfer.Form, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Receiver string `json:"receiver"`
			Amount   string `json:"amount"`
		}
		if !decodeJSON(w, r, &req, logger) {
			return
		}
		res, err := form.TrySubmitTransfer(r.Context(), req.Receiver, req.Amount)
		if err != nil {
			writeFormError(w, transfer.OpTransfer, err)
			return
		}
		writeJSON(w, resultToResponse(res), http.StatusOK)
	})
}

// handleRequestAirdrop requests devnet SOL for the connected wallet.
// POST /api/v1/airdrops {"amount": "2"}; an empty amount requests 1 SOL.
func handleRequestAirdrop(form *transfer.Form, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Amount string `json:"amount"`
		}
		if !decodeOptionalJSON(w, r, &req, logger) {
			return
		}
		res, err := form.TryRequestAirdrop(r.Context(), req.Amount)
		if err != nil {
			writeFormError(w, transfer.OpAirdrop, err)
			return
		}
		writeJSON(w, resultToResponse(res), http.StatusOK)
	})
}

// handleGetForm returns the current form state.
// GET /api/v1/form
func handleGetForm(form *transfer.Form) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, form.Snapshot(), http.StatusOK)
	})
}

// decodeJSON decodes the request body into v, writing a 400 and returning
// false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}, logger *slog.Logger) bool {
	return decode(w, r, v, false, logger)
}

// decodeOptionalJSON is like decodeJSON but accepts an empty body.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v interface{}, logger *slog.Logger) bool {
	return decode(w, r, v, true, logger)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}, allowEmpty bool, logger *slog.Logger) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return true
		}
		logger.Debug("failed to decode request", "path", r.URL.Path, "error", err)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, "request body too large", http.StatusBadRequest)
			return false
		}
		writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

// statusForKind maps a form error kind to an HTTP status.
func statusForKind(kind transfer.Kind) int {
	switch kind {
	case transfer.KindMissingInput, transfer.KindInvalidAddress, transfer.KindInvalidAmount:
		return http.StatusBadRequest
	case transfer.KindNotConnected:
		return http.StatusPreconditionFailed
	case transfer.KindNoConnection:
		return http.StatusServiceUnavailable
	case transfer.KindBusy:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func writeFormError(w http.ResponseWriter, op transfer.Operation, err error) {
	kind := transfer.KindOf(err)
	writeKindError(w, transfer.Message(op, err), string(kind), statusForKind(kind))
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, map[string]string{
		"error": message,
	}, statusCode)
}

// writeKindError writes a JSON error response that carries an error kind.
func writeKindError(w http.ResponseWriter, message, kind string, statusCode int) {
	writeJSON(w, map[string]string{
		"error": message,
		"kind":  kind,
	}, statusCode)
}
