package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	natspkg "github.com/brojonat/solmoney/service/nats"
)

// Health is the response of GET /health.
type Health struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Network  string `json:"network"`
	Endpoint string `json:"endpoint"`
}

// Adapter is one wallet adapter offered by the server.
type Adapter struct {
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
}

// WalletStatus is the server's wallet context.
type WalletStatus struct {
	Connected       bool      `json:"connected"`
	PublicKey       string    `json:"public_key,omitempty"`
	Adapter         string    `json:"adapter,omitempty"`
	Endpoint        string    `json:"endpoint"`
	Network         string    `json:"network"`
	Adapters        []Adapter `json:"adapters"`
	BalanceLamports *uint64   `json:"balance_lamports,omitempty"`
	BalanceSOL      string    `json:"balance_sol,omitempty"`
}

// Submission is a successful transfer or airdrop.
type Submission struct {
	Operation string `json:"operation"`
	Signature string `json:"signature"`
	Receiver  string `json:"receiver,omitempty"`
	AmountSOL string `json:"amount_sol"`
	Lamports  uint64 `json:"lamports"`
	Message   string `json:"message"`
}

// FormState is the server's transfer form snapshot.
type FormState struct {
	Receiver      string `json:"receiver"`
	Amount        string `json:"amount"`
	AirdropAmount string `json:"airdrop_amount"`
	Loading       bool   `json:"loading"`
	TransferPhase string `json:"transfer_phase"`
	AirdropPhase  string `json:"airdrop_phase"`
	Error         string `json:"error,omitempty"`
	ErrorKind     string `json:"error_kind,omitempty"`
	Success       string `json:"success,omitempty"`
	Signature     string `json:"signature,omitempty"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
	Kind       string // e.g. "not_connected", "invalid_amount", "busy"
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("server error (status %d, %s): %s", e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("server error (status %d): %s", e.StatusCode, e.Message)
}

// Client is the HTTP client for the solmoney service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new client. Submissions wait for on-chain
// confirmation, so the default timeout is generous.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Health checks server liveness.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.do(ctx, "GET", "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Wallet returns the wallet context state.
func (c *Client) Wallet(ctx context.Context) (*WalletStatus, error) {
	var out WalletStatus
	if err := c.do(ctx, "GET", "/api/v1/wallet", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConnectWallet connects the named adapter on the server.
func (c *Client) ConnectWallet(ctx context.Context, adapter string) (*WalletStatus, error) {
	var out WalletStatus
	if err := c.do(ctx, "POST", "/api/v1/wallet/connect", map[string]string{"adapter": adapter}, &out); err != nil {
		return nil, err
	}
	c.logger.Debug("wallet connected", "adapter", adapter, "public_key", out.PublicKey)
	return &out, nil
}

// DisconnectWallet disconnects the server's wallet.
func (c *Client) DisconnectWallet(ctx context.Context) (*WalletStatus, error) {
	var out WalletStatus
	if err := c.do(ctx, "POST", "/api/v1/wallet/disconnect", nil, &out); err != nil {
		return nil, err
	}
	c.logger.Debug("wallet disconnected")
	return &out, nil
}

// Transfer sends amount SOL (a decimal string) to receiver and returns once
// the server has confirmed it.
func (c *Client) Transfer(ctx context.Context, receiver, amount string) (*Submission, error) {
	var out Submission
	body := map[string]string{"receiver": receiver, "amount": amount}
	if err := c.do(ctx, "POST", "/api/v1/transfers", body, &out); err != nil {
		return nil, err
	}
	c.logger.Debug("transfer confirmed", "signature", out.Signature, "lamports", out.Lamports)
	return &out, nil
}

// Airdrop requests amount SOL from the faucet. An empty amount requests 1 SOL.
func (c *Client) Airdrop(ctx context.Context, amount string) (*Submission, error) {
	var out Submission
	if err := c.do(ctx, "POST", "/api/v1/airdrops", map[string]string{"amount": amount}, &out); err != nil {
		return nil, err
	}
	c.logger.Debug("airdrop confirmed", "signature", out.Signature, "lamports", out.Lamports)
	return &out, nil
}

// Form returns the current form snapshot.
func (c *Client) Form(ctx context.Context) (*FormState, error) {
	var out FormState
	if err := c.do(ctx, "GET", "/api/v1/form", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StreamSubmissions reads the SSE stream until ctx is cancelled, the
// server closes it, or fn returns an error. operation may be empty,
// "transfer" or "airdrop". A nil error from fn keeps the stream open;
// ErrStopStream stops it cleanly.
func (c *Client) StreamSubmissions(ctx context.Context, operation string, fn func(*natspkg.SubmissionEvent) error) error {
	u := c.baseURL + "/api/v1/stream/submissions"
	if operation != "" {
		u += "?operation=" + url.QueryEscape(operation)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// The stream is open-ended; only ctx bounds it.
	streamClient := *c.httpClient
	streamClient.Timeout = 0

	resp, err := streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to SSE endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	err = readSSE(resp.Body, func(event, data string) error {
		switch event {
		case "submission":
			var ev natspkg.SubmissionEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				c.logger.Warn("failed to decode submission event", "error", err)
				return nil
			}
			return fn(&ev)
		case "error":
			return fmt.Errorf("server error: %s", data)
		default:
			c.logger.Debug("sse event", "event", event, "data", data)
			return nil
		}
	})
	switch {
	case errors.Is(err, ErrStopStream):
		return nil
	case err != nil && ctx.Err() != nil:
		return ctx.Err()
	default:
		return err
	}
}

// ErrStopStream can be returned by a StreamSubmissions callback to end the
// stream without error.
var ErrStopStream = errors.New("stop stream")

// AwaitSubmission blocks until a streamed submission satisfies match.
func (c *Client) AwaitSubmission(ctx context.Context, operation string, match func(*natspkg.SubmissionEvent) bool) (*natspkg.SubmissionEvent, error) {
	var found *natspkg.SubmissionEvent
	err := c.StreamSubmissions(ctx, operation, func(ev *natspkg.SubmissionEvent) error {
		if match(ev) {
			found = ev
			return ErrStopStream
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("stream closed before a matching submission arrived")
	}
	return found, nil
}

// readSSE parses an event stream, calling fn once per complete event.
func readSSE(r io.Reader, fn func(event, data string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var event string
	var data []string
	for scanner.Scan() {
		line := scanner.Text()

		// Empty line indicates end of event
		if line == "" {
			if len(data) > 0 {
				if event == "" {
					event = "message"
				}
				if err := fn(event, strings.Join(data, "\n")); err != nil {
					return err
				}
			}
			event = ""
			data = data[:0]
			continue
		}

		switch {
		case strings.HasPrefix(line, ":"):
			// comment / keepalive
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading SSE stream: %w", err)
	}
	return nil
}

// do sends a JSON request and decodes a JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.parseErrorResponse(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) parseErrorResponse(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var errResp struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err := json.Unmarshal(b, &errResp); err == nil && errResp.Error != "" {
		apiErr.Message = errResp.Error
		apiErr.Kind = errResp.Kind
	} else {
		apiErr.Message = strings.TrimSpace(string(b))
	}
	return apiErr
}
