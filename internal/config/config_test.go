package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		ChainID:         17000,
		RPCURL:          "https://rpc.example.org",
		SignerTransport: SignerTransportChannel,
		ChannelPlatform: ChannelPlatformTCP,
		SignerAddr:      "127.0.0.1:7780",
		SignerTimeout:   time.Minute,
		StoreBackend:    StoreBackendMemory,
		Port:            8080,
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("RPC_URL", "https://rpc.example.org")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(17000), cfg.ChainID)
	assert.Equal(t, SignerTransportChannel, cfg.SignerTransport)
	assert.Equal(t, ChannelPlatformTCP, cfg.ChannelPlatform)
	assert.Equal(t, 5*time.Minute, cfg.SignerTimeout)
	assert.Equal(t, StoreBackendFile, cfg.StoreBackend)
	assert.Equal(t, 8080, cfg.Port)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("RPC_URL", "https://rpc.example.org")
	t.Setenv("CHAIN_ID", "1")
	t.Setenv("SIGNER_TRANSPORT", "local")
	t.Setenv("SIGNER_TIMEOUT", "30s")
	t.Setenv("STORE_BACKEND", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(1), cfg.ChainID)
	assert.Equal(t, SignerTransportLocal, cfg.SignerTransport)
	assert.Equal(t, 30*time.Second, cfg.SignerTimeout)
	assert.Equal(t, StoreBackendMemory, cfg.StoreBackend)
}

func TestLoadRequiresRPCURL(t *testing.T) {
	t.Setenv("RPC_URL", "")
	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errHas string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing rpc url", func(c *Config) { c.RPCURL = "" }, "RPC_URL"},
		{"non-positive chain id", func(c *Config) { c.ChainID = 0 }, "CHAIN_ID"},
		{"unknown transport", func(c *Config) { c.SignerTransport = "grpc" }, "SIGNER_TRANSPORT"},
		{"unknown channel platform", func(c *Config) { c.ChannelPlatform = "uds" }, "SIGNER_CHANNEL_PLATFORM"},
		{"tcp without address", func(c *Config) { c.SignerAddr = "" }, "SIGNER_ADDR"},
		{
			"vsock without cid",
			func(c *Config) { c.ChannelPlatform = ChannelPlatformVsock; c.SignerVsockCID = 0 },
			"SIGNER_VSOCK_CID",
		},
		{
			"local transport needs no channel settings",
			func(c *Config) { c.SignerTransport = SignerTransportLocal; c.SignerAddr = "" },
			"",
		},
		{"unknown store backend", func(c *Config) { c.StoreBackend = "redis" }, "STORE_BACKEND"},
		{
			"file backend without path",
			func(c *Config) { c.StoreBackend = StoreBackendFile; c.StorePath = "" },
			"STORE_PATH",
		},
		{
			"postgres backend without dsn",
			func(c *Config) { c.StoreBackend = StoreBackendPostgres; c.PostgresDSN = "" },
			"POSTGRES_DSN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errHas == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errHas)
			}
		})
	}
}
