package main

import (
	"context"
	"fmt"
	"io"

	"github.com/brojonat/solmoney/client"
	"github.com/urfave/cli/v2"
)

func walletCommands() *cli.Command {
	return &cli.Command{
		Name:  "wallet",
		Usage: "Wallet context commands",
		Subcommands: []*cli.Command{
			{
				Name:    "status",
				Aliases: []string{"show"},
				Usage:   "Show connection state, adapters and balance",
				Action: func(c *cli.Context) error {
					return runWallet(c, func(ctx context.Context, cl *client.Client) (*client.WalletStatus, error) {
						return cl.Wallet(ctx)
					})
				},
			},
			{
				Name:      "connect",
				Usage:     "Connect a wallet adapter",
				ArgsUsage: "ADAPTER",
				Description: `Connect one of the server's wallet adapters.

Example:
  solmoney wallet connect keypair-file`,
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("adapter name is required")
					}
					adapter := c.Args().Get(0)
					return runWallet(c, func(ctx context.Context, cl *client.Client) (*client.WalletStatus, error) {
						return cl.ConnectWallet(ctx, adapter)
					})
				},
			},
			{
				Name:  "disconnect",
				Usage: "Disconnect the current wallet",
				Action: func(c *cli.Context) error {
					return runWallet(c, func(ctx context.Context, cl *client.Client) (*client.WalletStatus, error) {
						return cl.DisconnectWallet(ctx)
					})
				},
			},
		},
	}
}

func runWallet(c *cli.Context, call func(context.Context, *client.Client) (*client.WalletStatus, error)) error {
	cl, err := newClient(c)
	if err != nil {
		return err
	}
	st, err := call(c.Context, cl)
	if err != nil {
		return fmt.Errorf("wallet %s failed: %w", c.Command.Name, err)
	}
	if c.Bool("json") {
		return printJSON(c.App.Writer, st)
	}
	printWalletStatus(c.App.Writer, st)
	return nil
}

func printWalletStatus(w io.Writer, st *client.WalletStatus) {
	fmt.Fprintf(w, "Network:   %s (%s)\n", st.Network, st.Endpoint)
	if st.Connected {
		fmt.Fprintf(w, "Wallet:    %s\n", st.PublicKey)
		fmt.Fprintf(w, "Adapter:   %s\n", st.Adapter)
		if st.BalanceLamports != nil {
			fmt.Fprintf(w, "Balance:   %s SOL\n", st.BalanceSOL)
		}
	} else {
		fmt.Fprintf(w, "Wallet:    not connected\n")
	}
	for _, a := range st.Adapters {
		ready := "not ready"
		if a.Ready {
			ready = "ready"
		}
		fmt.Fprintf(w, "  - %-14s %s\n", a.Name, ready)
	}
}
