package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/brojonat/solmoney/client"
	"github.com/urfave/cli/v2"
)

func transferCommand() *cli.Command {
	return &cli.Command{
		Name:    "transfer",
		Aliases: []string{"send"},
		Usage:   "Send SOL from the connected wallet",
		Description: `Submit a SOL transfer through the server's form and wait for confirmation.

Example:
  solmoney transfer --to 9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM --amount 0.25`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "to",
				Usage:    "Receiver address (base58)",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "amount",
				Aliases:  []string{"a"},
				Usage:    "Amount in SOL, e.g. 1.5",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			cl, err := newClient(c)
			if err != nil {
				return err
			}

			sub, err := cl.Transfer(c.Context, c.String("to"), c.String("amount"))
			if err != nil {
				return submitError("transfer", err)
			}
			return printSubmission(c.App.Writer, sub, c.Bool("json"))
		},
	}
}

func airdropCommand() *cli.Command {
	return &cli.Command{
		Name:  "airdrop",
		Usage: "Request a devnet airdrop to the connected wallet",
		Description: `Request SOL from the cluster faucet. The amount defaults to 1 SOL
and may not exceed 5 SOL.

Example:
  solmoney airdrop --amount 2`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "amount",
				Aliases: []string{"a"},
				Usage:   "Amount in SOL (default 1, max 5)",
			},
		},
		Action: func(c *cli.Context) error {
			cl, err := newClient(c)
			if err != nil {
				return err
			}

			sub, err := cl.Airdrop(c.Context, c.String("amount"))
			if err != nil {
				return submitError("airdrop", err)
			}
			return printSubmission(c.App.Writer, sub, c.Bool("json"))
		},
	}
}

func formCommands() *cli.Command {
	return &cli.Command{
		Name:  "form",
		Usage: "Transfer form inspection commands",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show the server's current form state",
				Action: func(c *cli.Context) error {
					cl, err := newClient(c)
					if err != nil {
						return err
					}

					form, err := cl.Form(c.Context)
					if err != nil {
						return fmt.Errorf("failed to get form: %w", err)
					}

					w := c.App.Writer
					if c.Bool("json") {
						return printJSON(w, form)
					}
					fmt.Fprintf(w, "Transfer:  %s\n", form.TransferPhase)
					fmt.Fprintf(w, "Airdrop:   %s\n", form.AirdropPhase)
					fmt.Fprintf(w, "Loading:   %t\n", form.Loading)
					if form.Receiver != "" || form.Amount != "" {
						fmt.Fprintf(w, "Receiver:  %s\n", form.Receiver)
						fmt.Fprintf(w, "Amount:    %s\n", form.Amount)
					}
					if form.AirdropAmount != "" {
						fmt.Fprintf(w, "Airdrop:   %s SOL\n", form.AirdropAmount)
					}
					if form.Error != "" {
						fmt.Fprintf(w, "Error:     %s (%s)\n", form.Error, form.ErrorKind)
					}
					if form.Success != "" {
						fmt.Fprintf(w, "Success:   %s\n", form.Success)
					}
					return nil
				},
			},
		},
	}
}

// submitError turns an API error into the message the server showed the user.
func submitError(op string, err error) error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Kind != "" {
			return fmt.Errorf("%s rejected (%s): %s", op, apiErr.Kind, apiErr.Message)
		}
		return fmt.Errorf("%s rejected: %s", op, apiErr.Message)
	}
	return fmt.Errorf("%s failed: %w", op, err)
}

func printSubmission(w io.Writer, sub *client.Submission, jsonOutput bool) error {
	if jsonOutput {
		return printJSON(w, sub)
	}
	fmt.Fprintf(w, "✓ %s\n", sub.Message)
	fmt.Fprintf(w, "  Signature: %s\n", sub.Signature)
	fmt.Fprintf(w, "  Amount:    %s SOL (%d lamports)\n", sub.AmountSOL, sub.Lamports)
	if sub.Receiver != "" {
		fmt.Fprintf(w, "  Receiver:  %s\n", sub.Receiver)
	}
	return nil
}
