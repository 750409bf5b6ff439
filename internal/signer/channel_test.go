package signer

import (
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/walletbridge/walletbridge/pkg/errors"
	"github.com/walletbridge/walletbridge/pkg/types"
)

// startSigner serves a backend over a loopback listener and returns a
// channel client connected to it.
func startSigner(t *testing.T, backend Client, timeout time.Duration) *ChannelClient {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Serve(ctx, ln, backend)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	client := NewChannelClient(NewTCPDialer(ln.Addr().String(), 5*time.Second), timeout)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestChannelClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := NewLocalSigner()
	wallet, err := backend.CreateWallet("org-1", "primary", types.AddressFormatEthereum)
	require.NoError(t, err)

	client := startSigner(t, backend, 10*time.Second)

	t.Run("list wallets", func(t *testing.T) {
		wallets, err := client.ListWallets(ctx, "org-1")
		require.NoError(t, err)
		require.Len(t, wallets, 1)
		assert.Equal(t, wallet.WalletID, wallets[0].WalletID)
	})

	t.Run("list wallet accounts", func(t *testing.T) {
		accounts, err := client.ListWalletAccounts(ctx, "org-1", wallet.WalletID)
		require.NoError(t, err)
		require.Len(t, accounts, 1)
		assert.Equal(t, types.AddressFormatEthereum, accounts[0].AddressFormat)
	})

	t.Run("sign raw payload", func(t *testing.T) {
		digest := ethcrypto.Keccak256([]byte("payload"))
		sig, err := client.SignRawPayload(ctx, &SignRawPayloadRequest{
			OrganizationID: "org-1",
			SignWith:       wallet.Accounts[0].Address,
			Payload:        hexutil.Encode(digest),
			Encoding:       PayloadEncodingHexadecimal,
			HashFunction:   HashFunctionNoOp,
		})
		require.NoError(t, err)
		assert.Len(t, sig.R, 64)
		assert.Len(t, sig.S, 64)
	})

	t.Run("sign transaction", func(t *testing.T) {
		unsigned := &types.UnsignedTransaction{
			To:                   "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
			Value:                "0x1",
			Gas:                  "0x5208",
			MaxFeePerGas:         "0x3b9aca00",
			MaxPriorityFeePerGas: "0x3b9aca00",
			Nonce:                "0x0",
		}
		serialized, err := unsigned.Serialize(17000)
		require.NoError(t, err)

		resp, err := client.SignTransaction(ctx, &SignTransactionRequest{
			OrganizationID:      "org-1",
			SignWith:            wallet.Accounts[0].Address,
			UnsignedTransaction: hex.EncodeToString(serialized),
		})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.SignedTransaction)
	})
}

func TestChannelClientBackendErrors(t *testing.T) {
	ctx := context.Background()
	backend := NewLocalSigner()
	client := startSigner(t, backend, 10*time.Second)

	_, err := client.SignRawPayload(ctx, &SignRawPayloadRequest{
		OrganizationID: "org-1",
		SignWith:       "0x0000000000000000000000000000000000000001",
		Payload:        "0x01",
		Encoding:       PayloadEncodingHexadecimal,
		HashFunction:   HashFunctionNoOp,
	})
	require.Error(t, err)
	assert.True(t, perrors.IsKind(err, perrors.KindSigning))
}

func TestChannelClientConcurrentCalls(t *testing.T) {
	// Every in-flight call carries its own correlation id, so concurrent
	// calls to the same method must each receive their own response.
	ctx := context.Background()
	backend := NewLocalSigner()

	orgs := make([]string, 8)
	walletIDs := make([]string, 8)
	for i := range orgs {
		orgs[i] = fmt.Sprintf("org-%d", i)
		wallet, err := backend.CreateWallet(orgs[i], fmt.Sprintf("wallet-%d", i), types.AddressFormatEthereum)
		require.NoError(t, err)
		walletIDs[i] = wallet.WalletID
	}

	client := startSigner(t, backend, 10*time.Second)

	var wg sync.WaitGroup
	errs := make(chan error, len(orgs)*4)
	for round := 0; round < 4; round++ {
		for i := range orgs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				wallets, err := client.ListWallets(ctx, orgs[i])
				if err != nil {
					errs <- err
					return
				}
				if len(wallets) != 1 || wallets[0].WalletID != walletIDs[i] {
					errs <- fmt.Errorf("organization %s received wrong wallet set", orgs[i])
				}
			}(i)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestChannelClientTimeout(t *testing.T) {
	// A server that accepts but never responds. The call must fail with a
	// timeout and leave no pending entry behind.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				// Drain frames, never answer.
				for {
					if _, err := readFrame(c); err != nil {
						c.Close()
						return
					}
				}
			}(conn)
		}
	}()

	client := NewChannelClient(NewTCPDialer(ln.Addr().String(), 5*time.Second), 50*time.Millisecond)
	t.Cleanup(func() { _ = client.Close() })

	_, err = client.ListWallets(context.Background(), "org-1")
	require.Error(t, err)
	assert.True(t, perrors.IsKind(err, perrors.KindTimeout))

	client.mu.Lock()
	pending := len(client.pending)
	client.mu.Unlock()
	assert.Zero(t, pending)
}

func TestChannelClientContextCancellation(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, err := readFrame(conn); err != nil {
				return
			}
		}
	}()

	client := NewChannelClient(NewTCPDialer(ln.Addr().String(), 5*time.Second), time.Minute)
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err = client.ListWallets(ctx, "org-1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChannelClientUnavailable(t *testing.T) {
	// Nothing listening: the dial fails and surfaces as not ready.
	client := NewChannelClient(NewTCPDialer("127.0.0.1:1", time.Second), time.Second)
	_, err := client.ListWallets(context.Background(), "org-1")
	require.Error(t, err)
	assert.True(t, perrors.IsKind(err, perrors.KindNotReady))
}

func TestChannelClientClosed(t *testing.T) {
	backend := NewLocalSigner()
	client := startSigner(t, backend, time.Second)

	require.NoError(t, client.Close())
	_, err := client.ListWallets(context.Background(), "org-1")
	require.Error(t, err)
	assert.True(t, perrors.IsKind(err, perrors.KindNotReady))
}

func TestFrameCodec(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		client, server := net.Pipe()
		defer client.Close()
		defer server.Close()

		payload := []byte(`{"id":"abc","method":"wallets_list"}`)
		go func() {
			_ = writeFrame(client, payload)
		}()

		got, err := readFrame(server)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	t.Run("oversized write rejected", func(t *testing.T) {
		client, server := net.Pipe()
		defer client.Close()
		defer server.Close()

		err := writeFrame(client, make([]byte, maxFrameSize+1))
		require.Error(t, err)
	})

	t.Run("oversized read rejected", func(t *testing.T) {
		client, server := net.Pipe()
		defer client.Close()
		defer server.Close()

		go func() {
			// Hand-built header advertising a frame beyond the cap.
			_, _ = client.Write([]byte{0xff, 0xff, 0xff, 0xff})
		}()

		_, err := readFrame(server)
		require.Error(t, err)
	})
}
