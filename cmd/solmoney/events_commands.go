package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/solmoney/client"
	natspkg "github.com/brojonat/solmoney/service/nats"
	"github.com/itchyny/gojq"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"
)

func eventsCommands() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Submission event streaming commands",
		Subcommands: []*cli.Command{
			subscribeCommand(),
			streamCommand(),
		},
	}
}

// filterFlags are shared by every event command.
func filterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "operation",
			Aliases: []string{"o"},
			Usage:   "Only show this operation (transfer or airdrop)",
		},
		&cli.StringFlag{
			Name:  "status",
			Usage: "Only show this status (succeeded or failed)",
		},
		&cli.StringSliceFlag{
			Name:  "must-jq",
			Usage: "jq filter the event must satisfy (repeatable; all must be truthy)",
		},
		&cli.IntFlag{
			Name:    "count",
			Aliases: []string{"n"},
			Usage:   "Exit after this many matching events (0 = unlimited)",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Give up after this long (0 = wait forever)",
		},
	}
}

func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:  "subscribe",
		Usage: "Subscribe to submission events on NATS JetStream",
		Description: `Stream submission events straight from the SUBMISSIONS stream.

Events are published to the subject: submissions.{operation}.{status}

Example:
  solmoney events subscribe --operation airdrop --must-jq '.lamports >= 1000000000'`,
		Flags: append(filterFlags(),
			&cli.BoolFlag{
				Name:  "durable",
				Usage: "Create a durable consumer (survives restarts)",
			},
			&cli.StringFlag{
				Name:  "consumer-name",
				Usage: "Consumer name (required for durable)",
				Value: "solmoney-cli",
			},
		),
		Action: func(c *cli.Context) error {
			filter, err := newEventFilter(c)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(c)
			defer cancel()

			nc, err := natspkg.Connect(c.String("nats-url"), "solmoney-cli")
			if err != nil {
				return err
			}
			defer nc.Close()

			js, err := jetstream.New(nc)
			if err != nil {
				return fmt.Errorf("failed to create JetStream context: %w", err)
			}

			cfg := jetstream.ConsumerConfig{
				FilterSubject: natsSubject(filter.operation, filter.status),
				AckPolicy:     jetstream.AckExplicitPolicy,
				DeliverPolicy: jetstream.DeliverNewPolicy,
			}
			if c.Bool("durable") {
				cfg.Durable = c.String("consumer-name")
				cfg.Name = cfg.Durable
			} else {
				cfg.InactiveThreshold = time.Minute
			}

			cons, err := js.CreateOrUpdateConsumer(ctx, natspkg.StreamName, cfg)
			if err != nil {
				return fmt.Errorf("failed to create consumer: %w", err)
			}

			jsonOutput := c.Bool("json")
			if !jsonOutput {
				fmt.Fprintf(os.Stderr, "📡 Subscribing to: %s\n", cfg.FilterSubject)
				fmt.Fprintf(os.Stderr, "   NATS: %s\n\nWaiting for submissions... (Ctrl-C to exit)\n\n", c.String("nats-url"))
			}

			msgChan := make(chan jetstream.Msg, 10)
			consumeCtx, err := cons.Consume(func(msg jetstream.Msg) {
				msgChan <- msg
			})
			if err != nil {
				return fmt.Errorf("failed to start consuming: %w", err)
			}
			defer consumeCtx.Stop()

			for {
				select {
				case msg := <-msgChan:
					var ev natspkg.SubmissionEvent
					if err := json.Unmarshal(msg.Data(), &ev); err != nil {
						fmt.Fprintf(os.Stderr, "Error parsing event: %v\n", err)
						msg.Ack()
						continue
					}
					msg.Ack()

					if err := filter.handle(c.App.Writer, &ev, jsonOutput); err != nil {
						if errors.Is(err, client.ErrStopStream) {
							return nil
						}
						return err
					}
				case <-ctx.Done():
					return filter.finish(ctx)
				}
			}
		},
	}
}

func streamCommand() *cli.Command {
	return &cli.Command{
		Name:  "stream",
		Usage: "Stream submission events from the server via SSE",
		Description: `Stream submission events over HTTP. The server relays them from NATS.

Example:
  solmoney events stream --operation transfer --count 1 --timeout 2m`,
		Flags: filterFlags(),
		Action: func(c *cli.Context) error {
			filter, err := newEventFilter(c)
			if err != nil {
				return err
			}
			cl, err := newClient(c)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(c)
			defer cancel()

			jsonOutput := c.Bool("json")
			if !jsonOutput {
				fmt.Fprintf(os.Stderr, "Streaming submissions from %s... (Ctrl+C to stop)\n\n", c.String("server-url"))
			}

			err = cl.StreamSubmissions(ctx, filter.operation, func(ev *natspkg.SubmissionEvent) error {
				return filter.handle(c.App.Writer, ev, jsonOutput)
			})
			if err != nil && ctx.Err() == nil {
				return err
			}
			return filter.finish(ctx)
		},
	}
}

// commandContext is cancelled on interrupt or after --timeout.
func commandContext(c *cli.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	if d := c.Duration("timeout"); d > 0 {
		tctx, cancel := context.WithTimeout(ctx, d)
		return tctx, func() { cancel(); stop() }
	}
	return ctx, stop
}

// natsSubject narrows the stream subject to an operation and status.
func natsSubject(operation, status string) string {
	if operation == "" {
		operation = "*"
	}
	if status == "" {
		status = "*"
	}
	return fmt.Sprintf("%s.%s.%s", natspkg.SubjectPrefix, operation, status)
}

type eventFilter struct {
	operation string
	status    string
	jq        []*gojq.Code
	limit     int
	matched   int
	logger    *slog.Logger
}

func newEventFilter(c *cli.Context) (*eventFilter, error) {
	switch op := c.String("operation"); op {
	case "", "transfer", "airdrop":
	default:
		return nil, fmt.Errorf("operation must be transfer or airdrop (got %q)", op)
	}
	switch st := c.String("status"); st {
	case "", natspkg.StatusSucceeded, natspkg.StatusFailed:
	default:
		return nil, fmt.Errorf("status must be %s or %s (got %q)", natspkg.StatusSucceeded, natspkg.StatusFailed, st)
	}

	codes, err := compileJQFilters(c.StringSlice("must-jq"))
	if err != nil {
		return nil, err
	}
	level := slog.LevelError
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	return &eventFilter{
		operation: c.String("operation"),
		status:    c.String("status"),
		jq:        codes,
		limit:     c.Int("count"),
		logger:    slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
	}, nil
}

func compileJQFilters(filters []string) ([]*gojq.Code, error) {
	codes := make([]*gojq.Code, len(filters))
	for i, filter := range filters {
		query, err := gojq.Parse(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
		}
		codes[i], err = gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
		}
	}
	return codes, nil
}

// match reports whether ev passes the operation, status and jq filters.
func (f *eventFilter) match(ev *natspkg.SubmissionEvent) bool {
	if f.operation != "" && ev.Operation != f.operation {
		return false
	}
	if f.status != "" && ev.Status != f.status {
		return false
	}
	if len(f.jq) == 0 {
		return true
	}

	// gojq only accepts plain JSON values, not structs.
	raw, err := json.Marshal(ev)
	if err != nil {
		return false
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return false
	}

	for _, code := range f.jq {
		iter := code.Run(doc)
		v, ok := iter.Next()
		if !ok {
			return false
		}
		if err, isErr := v.(error); isErr {
			f.logger.Debug("jq filter error", "error", err)
			return false
		}
		if !isTruthy(v) {
			return false
		}
	}
	return true
}

// handle prints ev if it matches and returns client.ErrStopStream once the
// --count limit is reached.
func (f *eventFilter) handle(w io.Writer, ev *natspkg.SubmissionEvent, jsonOutput bool) error {
	if !f.match(ev) {
		return nil
	}
	f.matched++

	if jsonOutput {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
	} else {
		printEvent(w, f.matched, ev)
	}

	if f.limit > 0 && f.matched >= f.limit {
		return client.ErrStopStream
	}
	return nil
}

// finish reports a --count that was not reached before the deadline.
func (f *eventFilter) finish(ctx context.Context) error {
	if f.limit > 0 && f.matched < f.limit && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("timed out after %d of %d matching submissions", f.matched, f.limit)
	}
	return nil
}

// isTruthy checks if a jq result value is truthy.
// In jq, false and null are falsy, everything else is truthy.
func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

func printEvent(w io.Writer, n int, ev *natspkg.SubmissionEvent) {
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Submission #%d\n", n)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Operation:  %s\n", ev.Operation)
	fmt.Fprintf(w, "Status:     %s\n", ev.Status)
	if ev.Wallet != "" {
		fmt.Fprintf(w, "Wallet:     %s\n", ev.Wallet)
	}
	if ev.Receiver != "" {
		fmt.Fprintf(w, "Receiver:   %s\n", ev.Receiver)
	}
	if ev.AmountSOL != "" {
		fmt.Fprintf(w, "Amount:     %s SOL\n", ev.AmountSOL)
	}
	if ev.Signature != "" {
		fmt.Fprintf(w, "Signature:  %s\n", ev.Signature)
	}
	if ev.Error != "" {
		fmt.Fprintf(w, "Error:      %s (%s)\n", ev.Error, ev.ErrorKind)
	}
	fmt.Fprintf(w, "Network:    %s\n", ev.Network)
	fmt.Fprintf(w, "Published:  %s\n\n", ev.PublishedAt.Format(time.RFC3339))
}
