package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/brojonat/solmoney/client"
	"github.com/urfave/cli/v2"
)

// newClient builds an API client from the global flags.
func newClient(c *cli.Context) (*client.Client, error) {
	serverURL := c.String("server-url")
	if serverURL == "" {
		return nil, fmt.Errorf("server-url is required (set SERVER_URL env var or use --server-url)")
	}

	level := slog.LevelError
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	return client.NewClient(serverURL, nil, logger), nil
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

const rule = "─────────────────────────────────────────────────────"
