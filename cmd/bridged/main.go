package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/walletbridge/walletbridge/internal/api"
	"github.com/walletbridge/walletbridge/internal/config"
	"github.com/walletbridge/walletbridge/internal/logger"
	"github.com/walletbridge/walletbridge/internal/provider"
	"github.com/walletbridge/walletbridge/internal/rpcgateway"
	"github.com/walletbridge/walletbridge/internal/signer"
	"github.com/walletbridge/walletbridge/internal/storage"
	"github.com/walletbridge/walletbridge/pkg/types"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		slog.Error("failed to open session store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer closeStore()
	sessions := storage.NewSessionStore(store)

	slog.Info("opened session store", "backend", cfg.StoreBackend)

	signerClient, closeSigner, err := openSigner(cfg)
	if err != nil {
		slog.Error("failed to initialize signer client", "transport", cfg.SignerTransport, "error", err)
		os.Exit(1)
	}
	defer closeSigner()

	slog.Info("initialized signer client",
		"transport", cfg.SignerTransport, "platform", cfg.ChannelPlatform)

	gateway, err := rpcgateway.Dial(cfg.RPCURL)
	if err != nil {
		slog.Error("failed to connect to chain node", "url", cfg.RPCURL, "error", err)
		os.Exit(1)
	}
	defer gateway.Close()

	bridge := provider.New(provider.Config{
		ChainID: cfg.ChainID,
		Signer:  signerClient,
		Gateway: gateway,
		Store:   sessions,
	})

	server := api.NewServer(cfg, bridge, sessions)

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("starting bridge", "port", cfg.Port, "chain_id", cfg.ChainID)
		serverErrors <- server.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		slog.Error("server error", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		slog.Info("received shutdown signal", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("error during shutdown", "error", err)
		}
		bridge.Disconnect()

		slog.Info("bridge stopped")
	}
}

// openStore builds the configured store backend. The returned closer is
// always safe to call.
func openStore(cfg *config.Config) (storage.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		return storage.NewMemoryStore(), func() {}, nil

	case config.StoreBackendFile:
		store, err := storage.NewFileStore(cfg.StorePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil

	case config.StoreBackendPostgres:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		store, err := storage.NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}

	return nil, nil, fmt.Errorf("unknown store backend: %s", cfg.StoreBackend)
}

// openSigner builds the configured signer client: an in-process development
// signer, or a channel client over tcp or vsock.
func openSigner(cfg *config.Config) (signer.Client, func(), error) {
	if cfg.SignerTransport == config.SignerTransportLocal {
		local := signer.NewLocalSigner()
		if _, err := local.CreateWallet("dev-org", "dev-wallet",
			types.AddressFormatEthereum, types.AddressFormatSolana); err != nil {
			return nil, nil, err
		}
		return local, func() {}, nil
	}

	var dialer signer.Dialer
	switch cfg.ChannelPlatform {
	case config.ChannelPlatformVsock:
		dialer = signer.NewVsockDialer(cfg.SignerVsockCID, cfg.SignerVsockPort, 30*time.Second)
	default:
		dialer = signer.NewTCPDialer(cfg.SignerAddr, 30*time.Second)
	}

	client := signer.NewChannelClient(dialer, cfg.SignerTimeout)
	return client, func() { _ = client.Close() }, nil
}
