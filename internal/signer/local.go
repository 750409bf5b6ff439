package signer

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	perrors "github.com/walletbridge/walletbridge/pkg/errors"
	"github.com/walletbridge/walletbridge/pkg/types"
)

// LocalSigner is an in-process custodial signer for development and tests.
// It implements the same Client interface the channel transport does, so
// the bridge cannot tell them apart. Keys never leave this process, which
// is exactly why it must not be used in production.
type LocalSigner struct {
	mu       sync.Mutex
	wallets  map[string][]*localWallet // organization id -> wallets
	accounts map[string]*localAccount  // lowercase address -> account
	calls    map[string]int
}

type localWallet struct {
	id       string
	name     string
	accounts []*localAccount
}

type localAccount struct {
	organizationID string
	address        string
	format         types.AddressFormat
	ecdsaKey       *ecdsa.PrivateKey
	edKey          ed25519.PrivateKey
}

// NewLocalSigner creates an empty local signer.
func NewLocalSigner() *LocalSigner {
	return &LocalSigner{
		wallets:  make(map[string][]*localWallet),
		accounts: make(map[string]*localAccount),
		calls:    make(map[string]int),
	}
}

// CreateWallet mints a wallet for an organization with one account per
// requested address format.
func (s *LocalSigner) CreateWallet(organizationID, name string, formats ...types.AddressFormat) (*types.CustodialWallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wallet := &localWallet{id: uuid.NewString(), name: name}
	for _, format := range formats {
		account, err := s.newAccount(organizationID, format)
		if err != nil {
			return nil, err
		}
		wallet.accounts = append(wallet.accounts, account)
	}
	s.wallets[organizationID] = append(s.wallets[organizationID], wallet)
	return s.export(wallet), nil
}

// ImportEthereumKey registers an existing secp256k1 key under a new wallet
// and returns its address. Tests use this for deterministic signatures.
func (s *LocalSigner) ImportEthereumKey(organizationID, name string, key *ecdsa.PrivateKey) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	account := &localAccount{
		organizationID: organizationID,
		address:        ethcrypto.PubkeyToAddress(key.PublicKey).Hex(),
		format:         types.AddressFormatEthereum,
		ecdsaKey:       key,
	}
	s.accounts[types.NormalizeAddress(account.address)] = account

	wallet := &localWallet{id: uuid.NewString(), name: name, accounts: []*localAccount{account}}
	s.wallets[organizationID] = append(s.wallets[organizationID], wallet)
	return account.address
}

// Calls returns how many times a signer method has been invoked. Tests use
// it to assert cache behavior.
func (s *LocalSigner) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *LocalSigner) ListWallets(_ context.Context, organizationID string) ([]types.CustodialWallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[methodListWallets]++

	var out []types.CustodialWallet
	for _, wallet := range s.wallets[organizationID] {
		exported := s.export(wallet)
		exported.Accounts = nil // accounts are fetched per wallet
		out = append(out, *exported)
	}
	return out, nil
}

func (s *LocalSigner) ListWalletAccounts(_ context.Context, organizationID, walletID string) ([]types.WalletAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[methodListWalletAccounts]++

	for _, wallet := range s.wallets[organizationID] {
		if wallet.id != walletID {
			continue
		}
		accounts := make([]types.WalletAccount, 0, len(wallet.accounts))
		for _, account := range wallet.accounts {
			accounts = append(accounts, types.WalletAccount{
				Address:       account.address,
				AddressFormat: account.format,
			})
		}
		return accounts, nil
	}
	return nil, perrors.Signing(fmt.Sprintf("wallet %s not found in organization %s", walletID, organizationID))
}

func (s *LocalSigner) SignRawPayload(_ context.Context, req *SignRawPayloadRequest) (*RawSignature, error) {
	s.mu.Lock()
	s.calls[methodSignRawPayload]++
	account, ok := s.lookup(req.OrganizationID, req.SignWith)
	s.mu.Unlock()
	if !ok {
		return nil, perrors.Signing(fmt.Sprintf("no key for address %s", req.SignWith))
	}

	if req.Encoding != PayloadEncodingHexadecimal {
		return nil, perrors.Signing(fmt.Sprintf("unsupported payload encoding: %s", req.Encoding))
	}
	if req.HashFunction != HashFunctionNoOp {
		return nil, perrors.Signing(fmt.Sprintf("unsupported hash function: %s", req.HashFunction))
	}

	payload, err := hexutil.Decode(req.Payload)
	if err != nil {
		return nil, perrors.Signing(fmt.Sprintf("invalid payload hex: %v", err))
	}

	switch account.format {
	case types.AddressFormatEthereum:
		if len(payload) != 32 {
			return nil, perrors.Signing(fmt.Sprintf("secp256k1 payload must be 32 bytes, got %d", len(payload)))
		}
		sig, err := ethcrypto.Sign(payload, account.ecdsaKey)
		if err != nil {
			return nil, perrors.Signing(fmt.Sprintf("secp256k1 signing failed: %v", err))
		}
		return &RawSignature{
			R: hex.EncodeToString(sig[:32]),
			S: hex.EncodeToString(sig[32:64]),
			V: hex.EncodeToString(sig[64:]),
		}, nil
	case types.AddressFormatSolana:
		sig := ed25519.Sign(account.edKey, payload)
		return &RawSignature{
			R: hex.EncodeToString(sig[:32]),
			S: hex.EncodeToString(sig[32:]),
		}, nil
	default:
		return nil, perrors.Signing(fmt.Sprintf("unsupported address format: %s", account.format))
	}
}

func (s *LocalSigner) SignTransaction(_ context.Context, req *SignTransactionRequest) (*SignTransactionResponse, error) {
	s.mu.Lock()
	s.calls[methodSignTransaction]++
	account, ok := s.lookup(req.OrganizationID, req.SignWith)
	s.mu.Unlock()
	if !ok {
		return nil, perrors.Signing(fmt.Sprintf("no key for address %s", req.SignWith))
	}
	if account.format != types.AddressFormatEthereum {
		return nil, perrors.Signing(fmt.Sprintf("transaction signing requires an ethereum account, got %s", account.format))
	}

	raw, err := hex.DecodeString(strings.TrimPrefix(req.UnsignedTransaction, "0x"))
	if err != nil {
		return nil, perrors.Signing(fmt.Sprintf("invalid transaction hex: %v", err))
	}

	inner, err := types.ParseUnsignedTransaction(raw)
	if err != nil {
		return nil, perrors.Signing(err.Error())
	}

	tx := ethtypes.NewTx(inner)
	signedTx, err := ethtypes.SignTx(tx, ethtypes.NewLondonSigner(inner.ChainID), account.ecdsaKey)
	if err != nil {
		return nil, perrors.Signing(fmt.Sprintf("transaction signing failed: %v", err))
	}

	signedRaw, err := signedTx.MarshalBinary()
	if err != nil {
		return nil, perrors.Signing(fmt.Sprintf("failed to encode signed transaction: %v", err))
	}
	return &SignTransactionResponse{SignedTransaction: hex.EncodeToString(signedRaw)}, nil
}

// lookup must be called with s.mu held.
func (s *LocalSigner) lookup(organizationID, address string) (*localAccount, bool) {
	account, ok := s.accounts[types.NormalizeAddress(address)]
	if !ok || account.organizationID != organizationID {
		return nil, false
	}
	return account, true
}

// newAccount must be called with s.mu held.
func (s *LocalSigner) newAccount(organizationID string, format types.AddressFormat) (*localAccount, error) {
	account := &localAccount{organizationID: organizationID, format: format}

	switch format {
	case types.AddressFormatEthereum:
		key, err := ethcrypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("failed to generate secp256k1 key: %w", err)
		}
		account.ecdsaKey = key
		account.address = ethcrypto.PubkeyToAddress(key.PublicKey).Hex()
	case types.AddressFormatSolana:
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate ed25519 key: %w", err)
		}
		account.edKey = priv
		// Development address: hex of the public key. Opaque to the bridge.
		account.address = hex.EncodeToString(pub)
	default:
		return nil, fmt.Errorf("unsupported address format: %s", format)
	}

	s.accounts[types.NormalizeAddress(account.address)] = account
	return account, nil
}

func (s *LocalSigner) export(wallet *localWallet) *types.CustodialWallet {
	out := &types.CustodialWallet{WalletID: wallet.id, WalletName: wallet.name}
	for _, account := range wallet.accounts {
		out.Accounts = append(out.Accounts, types.WalletAccount{
			Address:       account.address,
			AddressFormat: account.format,
		})
	}
	return out
}

var _ Client = (*LocalSigner)(nil)
