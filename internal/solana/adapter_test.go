package solana

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walletbridge/walletbridge/internal/signer"
	"github.com/walletbridge/walletbridge/internal/storage"
	perrors "github.com/walletbridge/walletbridge/pkg/errors"
	"github.com/walletbridge/walletbridge/pkg/types"
)

func newTestAdapter(t *testing.T) (*Adapter, *signer.LocalSigner, *storage.SessionStore) {
	t.Helper()

	local := signer.NewLocalSigner()
	sessions := storage.NewSessionStore(storage.NewMemoryStore())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, sessions.PutSession(context.Background(), &types.Session{
		OrganizationID: "org-1",
		Token:          "opaque",
		Expiry:         now.Add(time.Hour).UnixMilli(),
	}))

	adapter := New(Config{
		Signer: local,
		Store:  sessions,
		Now:    func() time.Time { return now },
	})
	return adapter, local, sessions
}

func TestConnect(t *testing.T) {
	ctx := context.Background()

	t.Run("pins the first matching account", func(t *testing.T) {
		adapter, local, _ := newTestAdapter(t)
		// An EVM-only wallet first: connect must skip past it.
		_, err := local.CreateWallet("org-1", "evm", types.AddressFormatEthereum)
		require.NoError(t, err)
		wallet, err := local.CreateWallet("org-1", "sol", types.AddressFormatSolana)
		require.NoError(t, err)

		address, err := adapter.Connect(ctx)
		require.NoError(t, err)
		assert.Equal(t, wallet.Accounts[0].Address, address)

		pinned, ok := adapter.Address()
		require.True(t, ok)
		assert.Equal(t, address, pinned)
	})

	t.Run("no matching account", func(t *testing.T) {
		adapter, local, _ := newTestAdapter(t)
		_, err := local.CreateWallet("org-1", "evm", types.AddressFormatEthereum)
		require.NoError(t, err)

		_, err = adapter.Connect(ctx)
		assert.True(t, perrors.IsKind(err, perrors.KindNoAccountsFound))
	})

	t.Run("requires a live session", func(t *testing.T) {
		adapter, local, sessions := newTestAdapter(t)
		_, err := local.CreateWallet("org-1", "sol", types.AddressFormatSolana)
		require.NoError(t, err)
		require.NoError(t, sessions.ClearSession(ctx))

		_, err = adapter.Connect(ctx)
		assert.True(t, perrors.IsKind(err, perrors.KindSessionExpired))
	})
}

func TestSignMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("signature verifies against the pinned key", func(t *testing.T) {
		adapter, local, _ := newTestAdapter(t)
		_, err := local.CreateWallet("org-1", "sol", types.AddressFormatSolana)
		require.NoError(t, err)

		address, err := adapter.Connect(ctx)
		require.NoError(t, err)

		message := []byte("transfer 1 lamport")
		sig, err := adapter.SignMessage(ctx, message)
		require.NoError(t, err)
		require.Len(t, sig, 64)

		pub, err := hex.DecodeString(address)
		require.NoError(t, err)
		assert.True(t, ed25519.Verify(ed25519.PublicKey(pub), message, sig))
	})

	t.Run("transaction signing uses the same path", func(t *testing.T) {
		adapter, local, _ := newTestAdapter(t)
		_, err := local.CreateWallet("org-1", "sol", types.AddressFormatSolana)
		require.NoError(t, err)

		address, err := adapter.Connect(ctx)
		require.NoError(t, err)

		serialized := []byte{0x01, 0x02, 0x03, 0x04}
		sig, err := adapter.SignTransaction(ctx, serialized)
		require.NoError(t, err)

		pub, err := hex.DecodeString(address)
		require.NoError(t, err)
		assert.True(t, ed25519.Verify(ed25519.PublicKey(pub), serialized, sig))
	})

	t.Run("rejected when not connected", func(t *testing.T) {
		adapter, local, _ := newTestAdapter(t)
		_, err := local.CreateWallet("org-1", "sol", types.AddressFormatSolana)
		require.NoError(t, err)

		_, err = adapter.SignMessage(ctx, []byte("hi"))
		assert.True(t, perrors.IsKind(err, perrors.KindValidation))
	})

	t.Run("rejected after disconnect", func(t *testing.T) {
		adapter, local, _ := newTestAdapter(t)
		_, err := local.CreateWallet("org-1", "sol", types.AddressFormatSolana)
		require.NoError(t, err)

		_, err = adapter.Connect(ctx)
		require.NoError(t, err)
		adapter.Disconnect()

		_, ok := adapter.Address()
		assert.False(t, ok)
		_, err = adapter.SignMessage(ctx, []byte("hi"))
		assert.True(t, perrors.IsKind(err, perrors.KindValidation))
	})

	t.Run("empty payload rejected", func(t *testing.T) {
		adapter, local, _ := newTestAdapter(t)
		_, err := local.CreateWallet("org-1", "sol", types.AddressFormatSolana)
		require.NoError(t, err)

		_, err = adapter.Connect(ctx)
		require.NoError(t, err)
		_, err = adapter.SignMessage(ctx, nil)
		assert.True(t, perrors.IsKind(err, perrors.KindValidation))
	})
}
