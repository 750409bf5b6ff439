// Package solana is the non-EVM sibling of the provider bridge. It speaks
// to the same custodial signer but resolves ADDRESS_FORMAT_SOLANA accounts
// and returns raw ed25519 signatures. It is deliberately a parallel
// adapter, not a generalization of the EVM provider: the two surfaces
// share the signer client and session store and nothing else.
package solana

import (
	"context"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/walletbridge/walletbridge/internal/metrics"
	"github.com/walletbridge/walletbridge/internal/signer"
	"github.com/walletbridge/walletbridge/internal/storage"
	perrors "github.com/walletbridge/walletbridge/pkg/errors"
	"github.com/walletbridge/walletbridge/pkg/types"
)

// signatureSize is the ed25519 signature width: r || s, 32 bytes each.
const signatureSize = 64

// Adapter exposes connect/sign operations against the custodial signer's
// Solana accounts. Addresses are opaque base58 strings and are never
// case-normalized.
type Adapter struct {
	signer signer.Client
	store  *storage.SessionStore
	now    func() time.Time

	mu      sync.Mutex
	address string
}

// Config carries the adapter's injected dependencies.
type Config struct {
	Signer signer.Client
	Store  *storage.SessionStore
	Now    func() time.Time
}

// New constructs an adapter from its dependencies.
func New(cfg Config) *Adapter {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Adapter{signer: cfg.Signer, store: cfg.Store, now: now}
}

// Connect resolves and pins the first Solana account of the session's
// organization. Reconnecting re-resolves; the previously pinned address is
// replaced.
func (a *Adapter) Connect(ctx context.Context) (string, error) {
	sess, err := a.session(ctx)
	if err != nil {
		return "", err
	}

	wallets, err := a.signer.ListWallets(ctx, sess.OrganizationID)
	if err != nil {
		return "", err
	}

	for _, wallet := range wallets {
		accounts, err := a.signer.ListWalletAccounts(ctx, sess.OrganizationID, wallet.WalletID)
		if err != nil {
			return "", err
		}
		for _, account := range accounts {
			if account.AddressFormat != types.AddressFormatSolana {
				continue
			}
			a.mu.Lock()
			a.address = account.Address
			a.mu.Unlock()
			return account.Address, nil
		}
	}

	return "", perrors.NoAccountsFound(string(types.AddressFormatSolana))
}

// Address returns the pinned account, if connected.
func (a *Adapter) Address() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.address, a.address != ""
}

// SignMessage signs arbitrary message bytes with the pinned account's key
// and returns the 64-byte ed25519 signature.
func (a *Adapter) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	return a.signBytes(ctx, message)
}

// SignTransaction signs the serialized transaction message bytes. The
// caller owns serialization and signature placement; the adapter only
// produces the signature.
func (a *Adapter) SignTransaction(ctx context.Context, serialized []byte) ([]byte, error) {
	return a.signBytes(ctx, serialized)
}

// Disconnect drops the pinned account. Signing afterwards requires a fresh
// Connect.
func (a *Adapter) Disconnect() {
	a.mu.Lock()
	a.address = ""
	a.mu.Unlock()
}

func (a *Adapter) signBytes(ctx context.Context, payload []byte) ([]byte, error) {
	sess, err := a.session(ctx)
	if err != nil {
		return nil, err
	}

	address, connected := a.Address()
	if !connected {
		return nil, perrors.Validation("not connected: no pinned account")
	}
	if len(payload) == 0 {
		return nil, perrors.Validation("payload must not be empty")
	}

	start := a.now()
	sig, err := a.signer.SignRawPayload(ctx, &signer.SignRawPayloadRequest{
		OrganizationID: sess.OrganizationID,
		SignWith:       address,
		Payload:        hexutil.Encode(payload),
		Encoding:       signer.PayloadEncodingHexadecimal,
		HashFunction:   signer.HashFunctionNoOp,
	})
	metrics.SignerDuration.WithLabelValues("sign_raw_payload").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	return assembleSignature(sig.R, sig.S)
}

// assembleSignature concatenates the signer's (r, s) halves into the flat
// 64-byte ed25519 form.
func assembleSignature(r, s string) ([]byte, error) {
	rBytes, err := hex.DecodeString(strings.TrimPrefix(r, "0x"))
	if err != nil {
		return nil, perrors.Signing("signer returned malformed r component")
	}
	sBytes, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, perrors.Signing("signer returned malformed s component")
	}
	if len(rBytes) > signatureSize/2 || len(sBytes) > signatureSize/2 {
		return nil, perrors.Signing("signer returned oversized signature component")
	}

	sig := make([]byte, signatureSize)
	copy(sig[signatureSize/2-len(rBytes):signatureSize/2], rBytes)
	copy(sig[signatureSize-len(sBytes):], sBytes)
	return sig, nil
}

// session mirrors the provider's session gate: absent or expired custodial
// sessions reject the call.
func (a *Adapter) session(ctx context.Context) (*types.Session, error) {
	sess, ok, err := a.store.Session(ctx)
	if err != nil {
		return nil, perrors.NotReady("session storage unavailable: " + err.Error())
	}
	if !ok || sess.Expired(a.now()) {
		return nil, perrors.SessionExpired()
	}
	return sess, nil
}
