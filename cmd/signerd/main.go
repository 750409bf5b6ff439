// signerd is the development stand-in for the custodial signing service.
// It holds keys in memory and serves the signer channel protocol over TCP,
// so a bridge configured for the channel transport can run end to end
// without the production signing backend.
package main

import (
	"context"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/walletbridge/walletbridge/internal/logger"
	"github.com/walletbridge/walletbridge/internal/signer"
	"github.com/walletbridge/walletbridge/pkg/types"
)

func main() {
	if err := logger.Init(); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	addr := getEnv("SIGNERD_ADDR", "127.0.0.1:7780")
	org := getEnv("SIGNERD_ORG", "dev-org")

	backend := signer.NewLocalSigner()

	// SIGNERD_ETH_KEYS seeds deterministic accounts from comma-separated
	// hex private keys. Without it a random dev wallet is created.
	if keys := os.Getenv("SIGNERD_ETH_KEYS"); keys != "" {
		for _, keyHex := range strings.Split(keys, ",") {
			key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(keyHex), "0x"))
			if err != nil {
				slog.Error("invalid private key in SIGNERD_ETH_KEYS", "error", err)
				os.Exit(1)
			}
			address := backend.ImportEthereumKey(org, "imported", key)
			slog.Info("imported signing key", "address", address)
		}
	} else {
		wallet, err := backend.CreateWallet(org, "dev-wallet",
			types.AddressFormatEthereum, types.AddressFormatSolana)
		if err != nil {
			slog.Error("failed to create dev wallet", "error", err)
			os.Exit(1)
		}
		slog.Info("created dev wallet", "wallet_id", wallet.WalletID)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		slog.Error("failed to listen", "addr", addr, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-shutdown
		slog.Info("received shutdown signal", "signal", sig.String())
		cancel()
		_ = ln.Close()
	}()

	slog.Info("signer listening", "addr", addr, "org", org)
	if err := signer.Serve(ctx, ln, backend); err != nil && ctx.Err() == nil {
		slog.Error("serve error", "error", err)
		os.Exit(1)
	}

	slog.Info("signer stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
