package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/solmoney/service/config"
	"github.com/brojonat/solmoney/service/metrics"
	natspkg "github.com/brojonat/solmoney/service/nats"
	"github.com/brojonat/solmoney/service/server"
	"github.com/brojonat/solmoney/service/solana"
	"github.com/brojonat/solmoney/service/transfer"
	"github.com/brojonat/solmoney/service/wallet"
	"github.com/gagliardetto/solana-go/rpc"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
		"cluster", cfg.Cluster,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.NewMetrics(nil)

	// Solana connection
	conn := solana.NewClient(solana.NewRPCClient(cfg.RPCURL), solana.Options{
		Endpoint:       cfg.RPCURL,
		Network:        cfg.Cluster,
		Commitment:     rpc.CommitmentType(cfg.Commitment),
		ConfirmTimeout: cfg.ConfirmTimeout,
		PollInterval:   cfg.ConfirmPollInterval,
	}, m, logger)
	logger.Info("initialized solana RPC client", "url", cfg.RPCURL, "commitment", cfg.Commitment)

	// Wallet context
	provider := wallet.NewProvider(cfg.RPCURL, cfg.Cluster, conn,
		wallet.DefaultAdapters(cfg.WalletKeypairPath, cfg.WalletSecretKeyB58), m, logger)
	if cfg.WalletAutoConnect {
		var err error
		if cfg.WalletDefaultAdapter != "" {
			err = provider.Connect(ctx, cfg.WalletDefaultAdapter)
		} else {
			err = provider.AutoConnect(ctx)
		}
		if err != nil {
			// Not fatal: the page offers a connect button.
			logger.Warn("wallet autoconnect failed", "error", err)
		}
	}
	if provider.Identity().IsNone() {
		logger.Info("no wallet connected; connect one from the page or the CLI")
	}

	// NATS is optional. Leave publisher as a nil interface when disabled.
	var publisher natspkg.Publisher
	var ssePublisher *server.SSEPublisher
	if cfg.NATSURL != "" {
		jsPublisher, err := natspkg.NewPublisher(cfg.NATSURL, m, logger)
		if err != nil {
			logger.Error("failed to create NATS publisher", "error", err)
			os.Exit(1)
		}
		defer jsPublisher.Close()
		publisher = jsPublisher

		ssePublisher, err = server.NewSSEPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.Error("failed to create SSE publisher", "error", err)
			os.Exit(1)
		}
		logger.Info("connected to NATS", "url", cfg.NATSURL)
	} else {
		logger.Info("NATS_URL not set, submission events disabled")
	}

	form := transfer.NewForm(provider, nil, publisher, m, logger)

	httpServer := server.New(cfg.ServerAddr, cfg, provider, form, ssePublisher, m, logger)
	if err := httpServer.WithTemplates(); err != nil {
		logger.Error("failed to load templates", "error", err)
		os.Exit(1)
	}

	logger.Info("server initialized, all dependencies ready",
		"solana_rpc", cfg.RPCURL,
		"wallet_connected", provider.Status().Connected,
		"nats_enabled", cfg.NATSURL != "",
	)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout; in-flight submissions may be
		// waiting on confirmation.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ConfirmTimeout+5*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		provider.Disconnect(shutdownCtx)
		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given level and format.
func setupLogger(levelStr, format string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
