package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported Solana clusters. Mainnet is intentionally absent: the service
// requests faucet airdrops and must only ever point at a test network.
const (
	ClusterDevnet   = "devnet"
	ClusterTestnet  = "testnet"
	ClusterLocalnet = "localnet"
)

// Config holds all application configuration.
// Values come from an optional YAML file (SOLMONEY_CONFIG) and are then
// overridden by environment variables.
type Config struct {
	// Server configuration
	ServerAddr string `yaml:"server_addr"`
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"`

	// Solana configuration
	Cluster             string        `yaml:"cluster"`
	RPCURL              string        `yaml:"rpc_url"`
	Commitment          string        `yaml:"commitment"`
	ConfirmTimeout      time.Duration `yaml:"confirm_timeout"`
	ConfirmPollInterval time.Duration `yaml:"confirm_poll_interval"`

	// Wallet adapters
	WalletKeypairPath    string `yaml:"wallet_keypair_path"`
	WalletSecretKeyB58   string `yaml:"wallet_secret_key_b58"`
	WalletAutoConnect    bool   `yaml:"wallet_autoconnect"`
	WalletDefaultAdapter string `yaml:"wallet_default_adapter"`

	// NATS configuration; empty disables event publishing.
	NATSURL string `yaml:"nats_url"`
}

// Default returns a Config populated with defaults only.
func Default() *Config {
	return &Config{
		ServerAddr:          "127.0.0.1:8080",
		LogLevel:            "info",
		LogFormat:           "json",
		Cluster:             ClusterDevnet,
		Commitment:          "confirmed",
		ConfirmTimeout:      60 * time.Second,
		ConfirmPollInterval: time.Second,
		WalletAutoConnect:   true,
	}
}

// Load builds the configuration from defaults, the optional YAML file named by
// SOLMONEY_CONFIG, and environment variables, in that order. All validation
// errors are reported together.
func Load() (*Config, error) {
	cfg := Default()
	var errs []error

	if path := os.Getenv("SOLMONEY_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %v", []error{err})
		}
	}

	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", cfg.ServerAddr)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnvOrDefault("LOG_FORMAT", cfg.LogFormat)

	cfg.Cluster = strings.ToLower(getEnvOrDefault("SOLANA_CLUSTER", cfg.Cluster))
	cfg.RPCURL = getEnvOrDefault("SOLANA_RPC_URL", cfg.RPCURL)
	cfg.Commitment = getEnvOrDefault("SOLANA_COMMITMENT", cfg.Commitment)

	if d, err := parseDuration("CONFIRM_TIMEOUT", cfg.ConfirmTimeout); err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmTimeout = d
	}
	if d, err := parseDuration("CONFIRM_POLL_INTERVAL", cfg.ConfirmPollInterval); err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmPollInterval = d
	}

	cfg.WalletKeypairPath = getEnvOrDefault("WALLET_KEYPAIR_PATH", cfg.WalletKeypairPath)
	cfg.WalletSecretKeyB58 = getEnvOrDefault("WALLET_SECRET_KEY_B58", cfg.WalletSecretKeyB58)
	cfg.WalletDefaultAdapter = getEnvOrDefault("WALLET_DEFAULT_ADAPTER", cfg.WalletDefaultAdapter)
	if b, err := parseBool("WALLET_AUTOCONNECT", cfg.WalletAutoConnect); err != nil {
		errs = append(errs, err)
	} else {
		cfg.WalletAutoConnect = b
	}

	cfg.NATSURL = getEnvOrDefault("NATS_URL", cfg.NATSURL)

	errs = append(errs, cfg.validate()...)

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks the configuration without reading the environment.
// The RPC URL is filled in from the cluster when empty.
func (c *Config) Validate() error {
	if errs := c.validate(); len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}
	return nil
}

func (c *Config) validate() []error {
	var errs []error

	if c.ServerAddr == "" {
		errs = append(errs, fmt.Errorf("ServerAddr is required"))
	}

	switch c.Cluster {
	case ClusterDevnet, ClusterTestnet, ClusterLocalnet:
	case "mainnet", "mainnet-beta":
		errs = append(errs, fmt.Errorf("SOLANA_CLUSTER %q is not allowed: airdrops require a test network", c.Cluster))
	default:
		errs = append(errs, fmt.Errorf("SOLANA_CLUSTER must be one of devnet, testnet, localnet (got %q)", c.Cluster))
	}
	if c.RPCURL == "" {
		c.RPCURL = ClusterRPCURL(c.Cluster)
	}
	if err := checkRPCURL(c.RPCURL); err != nil {
		errs = append(errs, err)
	}

	switch c.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		errs = append(errs, fmt.Errorf("SOLANA_COMMITMENT must be processed, confirmed or finalized (got %q)", c.Commitment))
	}

	if c.ConfirmTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ConfirmTimeout must be positive"))
	}
	if c.ConfirmPollInterval < 100*time.Millisecond {
		errs = append(errs, fmt.Errorf("ConfirmPollInterval must be at least 100ms"))
	}
	if c.ConfirmPollInterval > c.ConfirmTimeout {
		errs = append(errs, fmt.Errorf("CONFIRM_POLL_INTERVAL (%v) cannot be greater than CONFIRM_TIMEOUT (%v)",
			c.ConfirmPollInterval, c.ConfirmTimeout))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error (got %q)", c.LogLevel))
	}

	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text (got %q)", c.LogFormat))
	}

	return errs
}

// checkRPCURL rejects endpoints that are not http(s) URLs or that point at
// mainnet, whatever the configured cluster says.
func checkRPCURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return fmt.Errorf("SOLANA_RPC_URL must be an http(s) URL (got %q)", raw)
	}
	if strings.Contains(strings.ToLower(u.Hostname()), "mainnet") {
		return fmt.Errorf("SOLANA_RPC_URL %q is not allowed: airdrops require a test network", u.Hostname())
	}
	return nil
}

// ClusterRPCURL returns the public RPC endpoint for a cluster name.
func ClusterRPCURL(cluster string) string {
	switch cluster {
	case ClusterTestnet:
		return "https://api.testnet.solana.com"
	case ClusterLocalnet:
		return "http://127.0.0.1:8899"
	default:
		return "https://api.devnet.solana.com"
	}
}

// mergeFile overlays the YAML file at path onto c.
func (c *Config) mergeFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("SOLMONEY_CONFIG: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("SOLMONEY_CONFIG: invalid YAML in %s: %w", path, err)
	}
	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or keeps the current value.
func parseDuration(key string, current time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return current, nil
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseBool parses a boolean from an environment variable or keeps the current value.
func parseBool(key string, current bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return current, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q: %w", key, value, err)
	}
	return b, nil
}
