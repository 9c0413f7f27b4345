package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	natspkg "github.com/brojonat/solmoney/service/nats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// runApp runs the CLI against serverURL and returns what it printed.
func runApp(t *testing.T, serverURL string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("SERVER_URL", serverURL)

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run(append([]string{"solmoney"}, args...))
	return out.String(), err
}

func TestTransferCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/transfers", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "11111111111111111111111111111111", req["receiver"])
		assert.Equal(t, "1", req["amount"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"operation":  "transfer",
			"signature":  "sig-abc",
			"receiver":   req["receiver"],
			"amount_sol": "1",
			"lamports":   1_000_000_000,
			"message":    "Transaction sent successfully! Signature: sig-abc",
		})
	}))
	defer server.Close()

	out, err := runApp(t, server.URL, "transfer", "--to", "11111111111111111111111111111111", "--amount", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Transaction sent successfully!")
	assert.Contains(t, out, "1000000000 lamports")
}

func TestTransferCommand_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPreconditionFailed)
		w.Write([]byte(`{"error":"Please connect your wallet first","kind":"not_connected"}`))
	}))
	defer server.Close()

	_, err := runApp(t, server.URL, "transfer", "--to", "x", "--amount", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transfer rejected (not_connected): Please connect your wallet first")
}

func TestTransferCommand_RequiresFlags(t *testing.T) {
	_, err := runApp(t, "http://127.0.0.1:0", "transfer", "--to", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amount")
}

func TestAirdropCommand_JSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/airdrops", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "", req["amount"])

		w.Write([]byte(`{"operation":"airdrop","signature":"sig-air","amount_sol":"1","lamports":1000000000,"message":"Airdrop of 1 SOL received! Signature: sig-air"}`))
	}))
	defer server.Close()

	out, err := runApp(t, server.URL, "--json", "airdrop")
	require.NoError(t, err)

	var sub map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &sub))
	assert.Equal(t, "sig-air", sub["signature"])
	assert.Equal(t, float64(1_000_000_000), sub["lamports"])
}

func TestWalletCommands(t *testing.T) {
	var connectedWith string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/wallet":
			w.Write([]byte(`{"connected":false,"endpoint":"https://api.devnet.solana.com","network":"devnet",` +
				`"adapters":[{"name":"keypair-file","ready":true},{"name":"secret-key","ready":false}]}`))
		case "/api/v1/wallet/connect":
			var req map[string]string
			json.NewDecoder(r.Body).Decode(&req)
			connectedWith = req["adapter"]
			w.Write([]byte(`{"connected":true,"public_key":"9WzD","adapter":"keypair-file","endpoint":"https://api.devnet.solana.com",` +
				`"network":"devnet","adapters":[],"balance_lamports":1500000000,"balance_sol":"1.5"}`))
		case "/api/v1/wallet/disconnect":
			w.Write([]byte(`{"connected":false,"endpoint":"e","network":"devnet","adapters":[]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	out, err := runApp(t, server.URL, "wallet", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "not connected")
	assert.Contains(t, out, "keypair-file")
	assert.Contains(t, out, "not ready")

	out, err = runApp(t, server.URL, "wallet", "connect", "keypair-file")
	require.NoError(t, err)
	assert.Equal(t, "keypair-file", connectedWith)
	assert.Contains(t, out, "9WzD")
	assert.Contains(t, out, "1.5 SOL")

	out, err = runApp(t, server.URL, "wallet", "disconnect")
	require.NoError(t, err)
	assert.Contains(t, out, "not connected")

	_, err = runApp(t, server.URL, "wallet", "connect")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "adapter name is required")
}

func TestFormShowCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"receiver":"","amount":"","airdrop_amount":"","loading":false,"transfer_phase":"succeeded",` +
			`"airdrop_phase":"idle","success":"Transaction sent successfully! Signature: abc","signature":"abc"}`))
	}))
	defer server.Close()

	out, err := runApp(t, server.URL, "form", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "succeeded")
	assert.Contains(t, out, "Transaction sent successfully!")
}

func TestHealthCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.Write([]byte(`{"status":"ok","version":"dev","network":"devnet","endpoint":"https://api.devnet.solana.com"}`))
	}))
	defer server.Close()

	out, err := runApp(t, server.URL, "server", "health")
	require.NoError(t, err)
	assert.Contains(t, out, "Server is healthy")
	assert.Contains(t, out, "devnet")
}

func TestHealthCommand_Failure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := runApp(t, server.URL, "server", "health")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "health check failed")
}

func TestVersionCommand(t *testing.T) {
	version = "1.0.0"
	commit = "abc123"
	date = "2026-10-10"

	out, err := runApp(t, "", "server", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "1.0.0")
	assert.Contains(t, out, "abc123")
}

func TestEventsStreamCommand(t *testing.T) {
	transfer := natspkg.NewSubmissionEvent("transfer", natspkg.StatusSucceeded)
	transfer.Lamports = 2_000_000_000
	transfer.Signature = "big"
	small := natspkg.NewSubmissionEvent("transfer", natspkg.StatusSucceeded)
	small.Lamports = 1
	small.Signature = "small"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "transfer", r.URL.Query().Get("operation"))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: connected\ndata: {}\n\n")
		for _, ev := range []*natspkg.SubmissionEvent{small, transfer, small} {
			data, _ := json.Marshal(ev)
			fmt.Fprintf(w, "event: submission\ndata: %s\n\n", data)
		}
	}))
	defer server.Close()

	out, err := runApp(t, server.URL, "--json", "events", "stream",
		"--operation", "transfer", "--must-jq", ".lamports > 1000000000", "--count", "1")
	require.NoError(t, err)

	var got natspkg.SubmissionEvent
	require.NoError(t, json.Unmarshal(bytes.TrimSpace([]byte(out)), &got))
	assert.Equal(t, "big", got.Signature)
}

func TestEventsStreamCommand_InvalidFilters(t *testing.T) {
	_, err := runApp(t, "http://127.0.0.1:0", "events", "stream", "--operation", "swap")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "operation must be transfer or airdrop")

	_, err = runApp(t, "http://127.0.0.1:0", "events", "stream", "--must-jq", ".lamports >")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse jq filter")
}

func TestEventFilter_Match(t *testing.T) {
	ev := natspkg.NewSubmissionEvent("airdrop", natspkg.StatusFailed)
	ev.ErrorKind = "submission_failed"
	ev.Lamports = 5_000_000_000

	tests := []struct {
		name      string
		operation string
		status    string
		jq        []string
		want      bool
	}{
		{name: "no filters", want: true},
		{name: "operation match", operation: "airdrop", want: true},
		{name: "operation mismatch", operation: "transfer", want: false},
		{name: "status mismatch", status: natspkg.StatusSucceeded, want: false},
		{name: "jq true", jq: []string{`.error_kind == "submission_failed"`}, want: true},
		{name: "jq false", jq: []string{`.lamports < 100`}, want: false},
		{name: "all jq must hold", jq: []string{`.operation == "airdrop"`, `.status == "succeeded"`}, want: false},
		{name: "jq null is falsy", jq: []string{`.receiver`}, want: false},
		{name: "jq string is truthy", jq: []string{`.id`}, want: true},
		{name: "jq runtime error", jq: []string{`.id | tonumber`}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codes, err := compileJQFilters(tt.jq)
			require.NoError(t, err)

			f := &eventFilter{operation: tt.operation, status: tt.status, jq: codes, logger: discardLogger()}
			assert.Equal(t, tt.want, f.match(ev))
		})
	}
}

func TestEventFilter_Finish(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	<-ctx.Done()

	f := &eventFilter{limit: 2, matched: 1}
	err := f.finish(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2")

	f.matched = 2
	assert.NoError(t, f.finish(ctx))
	assert.NoError(t, (&eventFilter{}).finish(ctx))
}

func TestNATSSubject(t *testing.T) {
	assert.Equal(t, "submissions.*.*", natsSubject("", ""))
	assert.Equal(t, "submissions.airdrop.*", natsSubject("airdrop", ""))
	assert.Equal(t, "submissions.*.failed", natsSubject("", "failed"))
	assert.Equal(t, "submissions.transfer.succeeded", natsSubject("transfer", "succeeded"))
}

func TestIsTruthy(t *testing.T) {
	tests := []struct {
		value    interface{}
		expected bool
	}{
		{nil, false},
		{false, false},
		{true, true},
		{0, true},
		{"", true},
		{"text", true},
		{[]interface{}{}, true},
		{map[string]interface{}{}, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v", tt.value), func(t *testing.T) {
			assert.Equal(t, tt.expected, isTruthy(tt.value))
		})
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
