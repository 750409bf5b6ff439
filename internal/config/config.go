package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Signer transports.
const (
	SignerTransportLocal   = "local"
	SignerTransportChannel = "channel"
)

// Channel platforms for the embedded signer connection.
const (
	ChannelPlatformTCP   = "tcp"
	ChannelPlatformVsock = "vsock"
)

// Store backends.
const (
	StoreBackendMemory   = "memory"
	StoreBackendFile     = "file"
	StoreBackendPostgres = "postgres"
)

// Config holds the bridge configuration. Everything is loaded from
// environment variables; per-session state lives in the session store.
type Config struct {
	// Chain
	ChainID int64
	RPCURL  string

	// Embedded signer
	SignerTransport string // local or channel
	ChannelPlatform string // tcp or vsock, when transport is channel
	SignerAddr      string // host:port for tcp
	SignerVsockCID  uint32
	SignerVsockPort uint32
	SignerTimeout   time.Duration // per-call deadline for channel requests

	// Session store
	StoreBackend string
	StorePath    string // file backend
	PostgresDSN  string // postgres backend

	// HTTP surface
	Port           int
	RateLimitRPS   int
	RateLimitBurst int
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		ChainID:         int64(getEnvInt("CHAIN_ID", 17000)),
		RPCURL:          getEnv("RPC_URL", ""),
		SignerTransport: getEnv("SIGNER_TRANSPORT", SignerTransportChannel),
		ChannelPlatform: getEnv("SIGNER_CHANNEL_PLATFORM", ChannelPlatformTCP),
		SignerAddr:      getEnv("SIGNER_ADDR", "127.0.0.1:7780"),
		SignerVsockCID:  uint32(getEnvInt("SIGNER_VSOCK_CID", 0)),
		SignerVsockPort: uint32(getEnvInt("SIGNER_VSOCK_PORT", 7780)),
		SignerTimeout:   getEnvDuration("SIGNER_TIMEOUT", 5*time.Minute),
		StoreBackend:    getEnv("STORE_BACKEND", StoreBackendFile),
		StorePath:       getEnv("STORE_PATH", "walletbridge-store.json"),
		PostgresDSN:     getEnv("POSTGRES_DSN", ""),
		Port:            getEnvInt("PORT", 8080),
		RateLimitRPS:    getEnvInt("RATE_LIMIT_RPS", 50),
		RateLimitBurst:  getEnvInt("RATE_LIMIT_BURST", 100),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("RPC_URL is required")
	}
	if c.ChainID <= 0 {
		return fmt.Errorf("CHAIN_ID must be positive, got %d", c.ChainID)
	}

	switch c.SignerTransport {
	case SignerTransportLocal:
	case SignerTransportChannel:
		switch c.ChannelPlatform {
		case ChannelPlatformTCP:
			if c.SignerAddr == "" {
				return fmt.Errorf("SIGNER_ADDR is required for the tcp channel platform")
			}
		case ChannelPlatformVsock:
			if c.SignerVsockCID == 0 {
				return fmt.Errorf("SIGNER_VSOCK_CID is required for the vsock channel platform")
			}
		default:
			return fmt.Errorf("SIGNER_CHANNEL_PLATFORM must be %q or %q, got: %s",
				ChannelPlatformTCP, ChannelPlatformVsock, c.ChannelPlatform)
		}
	default:
		return fmt.Errorf("SIGNER_TRANSPORT must be %q or %q, got: %s",
			SignerTransportLocal, SignerTransportChannel, c.SignerTransport)
	}

	switch c.StoreBackend {
	case StoreBackendMemory:
	case StoreBackendFile:
		if c.StorePath == "" {
			return fmt.Errorf("STORE_PATH is required for the file store backend")
		}
	case StoreBackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for the postgres store backend")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %q, %q or %q, got: %s",
			StoreBackendMemory, StoreBackendFile, StoreBackendPostgres, c.StoreBackend)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
