package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/brojonat/solmoney/client"
	"github.com/urfave/cli/v2"
)

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check server health",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 5 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			serverURL := c.String("server-url")
			if serverURL == "" {
				return fmt.Errorf("server-url is required (set SERVER_URL env var or use --server-url)")
			}

			cl := client.NewClient(serverURL, &http.Client{Timeout: c.Duration("timeout")}, nil)
			h, err := cl.Health(c.Context)
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}

			if c.Bool("json") {
				return printJSON(c.App.Writer, h)
			}
			fmt.Fprintf(c.App.Writer, "✓ Server is healthy (status: %s)\n", h.Status)
			fmt.Fprintf(c.App.Writer, "  URL:     %s\n", serverURL)
			fmt.Fprintf(c.App.Writer, "  Version: %s\n", h.Version)
			fmt.Fprintf(c.App.Writer, "  Network: %s (%s)\n", h.Network, h.Endpoint)
			return nil
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			fmt.Fprintf(c.App.Writer, "solmoney CLI\n")
			fmt.Fprintf(c.App.Writer, "  Version: %s\n", version)
			fmt.Fprintf(c.App.Writer, "  Commit:  %s\n", commit)
			fmt.Fprintf(c.App.Writer, "  Built:   %s\n", date)
			return nil
		},
	}
}
