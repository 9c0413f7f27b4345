package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "127.0.0.1:8080", cfg.ServerAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, ClusterDevnet, cfg.Cluster)
	assert.Equal(t, "https://api.devnet.solana.com", cfg.RPCURL)
	assert.Equal(t, "confirmed", cfg.Commitment)
	assert.Equal(t, 60*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, time.Second, cfg.ConfirmPollInterval)
	assert.True(t, cfg.WalletAutoConnect)
	assert.Empty(t, cfg.NATSURL)
}

func TestLoad_CustomValues(t *testing.T) {
	os.Setenv("SERVER_ADDR", ":9090")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("LOG_FORMAT", "text")
	os.Setenv("SOLANA_CLUSTER", "Testnet")
	os.Setenv("SOLANA_COMMITMENT", "finalized")
	os.Setenv("CONFIRM_TIMEOUT", "2m")
	os.Setenv("CONFIRM_POLL_INTERVAL", "500ms")
	os.Setenv("WALLET_KEYPAIR_PATH", "~/.config/solana/id.json")
	os.Setenv("WALLET_AUTOCONNECT", "false")
	os.Setenv("NATS_URL", "nats://nats.example.com:4222")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, ClusterTestnet, cfg.Cluster)
	assert.Equal(t, "https://api.testnet.solana.com", cfg.RPCURL)
	assert.Equal(t, "finalized", cfg.Commitment)
	assert.Equal(t, 2*time.Minute, cfg.ConfirmTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.ConfirmPollInterval)
	assert.Equal(t, "~/.config/solana/id.json", cfg.WalletKeypairPath)
	assert.False(t, cfg.WalletAutoConnect)
	assert.Equal(t, "nats://nats.example.com:4222", cfg.NATSURL)
}

func TestLoad_RPCURLOverride(t *testing.T) {
	os.Setenv("SOLANA_RPC_URL", "https://devnet.helius-rpc.com/?api-key=abc")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://devnet.helius-rpc.com/?api-key=abc", cfg.RPCURL)
}

func TestLoad_RejectsMainnet(t *testing.T) {
	os.Setenv("SOLANA_CLUSTER", "mainnet")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "airdrops require a test network")
}

func TestLoad_RejectsMainnetRPCURL(t *testing.T) {
	tests := []struct {
		name   string
		rpcURL string
		want   string
	}{
		{name: "public mainnet endpoint", rpcURL: "https://api.mainnet-beta.solana.com", want: "airdrops require a test network"},
		{name: "provider mainnet host", rpcURL: "https://mainnet.helius-rpc.com/?api-key=abc", want: "airdrops require a test network"},
		{name: "mixed case host", rpcURL: "https://API.Mainnet-Beta.solana.com", want: "airdrops require a test network"},
		{name: "not a URL", rpcURL: "api.devnet.solana.com", want: "must be an http(s) URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Setenv("SOLANA_RPC_URL", tt.rpcURL)
			defer cleanupEnv()

			cfg, err := Load()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), "SOLANA_RPC_URL")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	os.Setenv("LOG_LEVEL", "verbose")
	defer cleanupEnv()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOG_LEVEL")
}

func TestLoad_InvalidDuration(t *testing.T) {
	os.Setenv("CONFIRM_TIMEOUT", "invalid")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoad_InvalidBool(t *testing.T) {
	os.Setenv("WALLET_AUTOCONNECT", "sometimes")
	defer cleanupEnv()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WALLET_AUTOCONNECT")
}

func TestLoad_CollectsAllErrors(t *testing.T) {
	os.Setenv("SOLANA_CLUSTER", "nowhere")
	os.Setenv("SOLANA_COMMITMENT", "eventually")
	os.Setenv("LOG_FORMAT", "xml")
	os.Setenv("LOG_LEVEL", "loud")
	defer cleanupEnv()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOG_LEVEL")
	assert.Contains(t, err.Error(), "SOLANA_CLUSTER")
	assert.Contains(t, err.Error(), "SOLANA_COMMITMENT")
	assert.Contains(t, err.Error(), "LOG_FORMAT")
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "solmoney.yaml")
	yamlBody := `
server_addr: ":7070"
cluster: localnet
confirm_timeout: 45s
wallet_secret_key_b58: "abc"
wallet_autoconnect: false
`
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o600))
	os.Setenv("SOLMONEY_CONFIG", path)
	// env wins over the file
	os.Setenv("SERVER_ADDR", ":6060")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":6060", cfg.ServerAddr)
	assert.Equal(t, ClusterLocalnet, cfg.Cluster)
	assert.Equal(t, "http://127.0.0.1:8899", cfg.RPCURL)
	assert.Equal(t, 45*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, "abc", cfg.WalletSecretKeyB58)
	assert.False(t, cfg.WalletAutoConnect)
}

func TestLoad_MissingYAMLFile(t *testing.T) {
	os.Setenv("SOLMONEY_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	defer cleanupEnv()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SOLMONEY_CONFIG")
}

func TestValidate_PollIntervalGreaterThanTimeout(t *testing.T) {
	cfg := Default()
	cfg.ConfirmTimeout = time.Second
	cfg.ConfirmPollInterval = 5 * time.Second

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be greater than")
}

func TestValidate_FillsRPCURL(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "https://api.devnet.solana.com", cfg.RPCURL)
}

func TestMustLoad_Panics(t *testing.T) {
	os.Setenv("SOLANA_CLUSTER", "mainnet-beta")
	defer cleanupEnv()

	assert.Panics(t, func() {
		MustLoad()
	})
}

func TestMustLoad_Success(t *testing.T) {
	defer cleanupEnv()

	assert.NotPanics(t, func() {
		cfg := MustLoad()
		assert.NotNil(t, cfg)
	})
}

// cleanupEnv clears all environment variables used in tests
func cleanupEnv() {
	for _, key := range []string{
		"SOLMONEY_CONFIG",
		"SERVER_ADDR",
		"LOG_LEVEL",
		"LOG_FORMAT",
		"SOLANA_CLUSTER",
		"SOLANA_RPC_URL",
		"SOLANA_COMMITMENT",
		"CONFIRM_TIMEOUT",
		"CONFIRM_POLL_INTERVAL",
		"WALLET_KEYPAIR_PATH",
		"WALLET_SECRET_KEY_B58",
		"WALLET_DEFAULT_ADAPTER",
		"WALLET_AUTOCONNECT",
		"NATS_URL",
	} {
		os.Unsetenv(key)
	}
}
