// Package provider implements the wallet-provider bridge: an EIP-1193
// request surface whose key operations are delegated to a remote custodial
// signer, with read-only traffic forwarded to a public node.
package provider

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/walletbridge/walletbridge/internal/logger"
	"github.com/walletbridge/walletbridge/internal/metrics"
	"github.com/walletbridge/walletbridge/internal/rpcgateway"
	"github.com/walletbridge/walletbridge/internal/signer"
	"github.com/walletbridge/walletbridge/internal/storage"
	perrors "github.com/walletbridge/walletbridge/pkg/errors"
	"github.com/walletbridge/walletbridge/pkg/types"
)

// Wallet method names handled by the bridge itself. Everything else is
// either an allowlisted node method or unclassified.
const (
	MethodChainID            = "eth_chainId"
	MethodAccounts           = "eth_accounts"
	MethodRequestAccounts    = "eth_requestAccounts"
	MethodSign               = "eth_sign"
	MethodPersonalSign       = "personal_sign"
	MethodSignTransaction    = "eth_signTransaction"
	MethodSendTransaction    = "eth_sendTransaction"
	MethodSendRawTransaction = "eth_sendRawTransaction"
)

// Config carries the provider's injected dependencies.
type Config struct {
	ChainID int64
	Signer  signer.Client
	Gateway *rpcgateway.Gateway
	Store   *storage.SessionStore

	// Now overrides the clock; nil means time.Now. Tests use it to drive
	// session expiry.
	Now func() time.Time
}

// Provider is a single bridge instance. Multiple independent instances can
// coexist; all state lives in the injected store.
type Provider struct {
	chainID int64
	format  types.AddressFormat
	signer  signer.Client
	gateway *rpcgateway.Gateway
	store   *storage.SessionStore
	events  *Emitter
	now     func() time.Time
}

// New constructs a provider from its dependencies.
func New(cfg Config) *Provider {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Provider{
		chainID: cfg.ChainID,
		format:  types.AddressFormatEthereum,
		signer:  cfg.Signer,
		gateway: cfg.Gateway,
		store:   cfg.Store,
		events:  NewEmitter(),
		now:     now,
	}
}

// ChainID returns the active chain id.
func (p *Provider) ChainID() int64 { return p.chainID }

// On registers an event listener; see Emitter.
func (p *Provider) On(event Event, fn Listener) *Subscription {
	return p.events.On(event, fn)
}

// Disconnect emits the terminal disconnect event and drops the remaining
// change-listener registrations.
func (p *Provider) Disconnect() {
	p.events.EmitDisconnect()
}

// Request dispatches one wallet RPC call. Unclassified methods return a
// nil result with no error, keeping the surface permissive for callers
// probing capability.
func (p *Provider) Request(ctx context.Context, method string, params []any) (any, error) {
	result, null, err := p.route(ctx, method, params)

	metrics.RequestsTotal.WithLabelValues(method, metrics.Outcome(err, null)).Inc()

	if err != nil {
		if perr, ok := perrors.AsProviderError(err); ok {
			err = perr.WithMethod(method)
		}
		logger.FromContext(ctx).Warn("request failed", "method", method, "error", err)
		return nil, err
	}
	return result, nil
}

// route is the total classification of the supported method set.
func (p *Provider) route(ctx context.Context, method string, params []any) (result any, null bool, err error) {
	switch method {
	case MethodChainID:
		// Fixed local value; no network call.
		return hexutil.EncodeUint64(uint64(p.chainID)), false, nil

	case MethodSendTransaction:
		result, err := p.sendTransaction(ctx, params)
		return result, false, err

	case MethodAccounts:
		accounts, err := p.accounts(ctx)
		return accounts, false, err

	case MethodRequestAccounts:
		accounts, err := p.requestAccounts(ctx)
		return accounts, false, err

	case MethodSign, MethodPersonalSign:
		signWith, payload, err := signParams(method, params)
		if err != nil {
			return nil, false, err
		}
		sig, err := p.signRawPayload(ctx, signWith, payload)
		return sig, false, err

	case MethodSignTransaction:
		tx, err := transactionParam(params)
		if err != nil {
			return nil, false, err
		}
		signed, err := p.signTransaction(ctx, tx)
		return signed, false, err

	default:
		if rpcgateway.IsPublicMethod(method) {
			result, err := p.publicCall(ctx, method, params)
			return result, false, err
		}
		// Unclassified: permissive null result.
		return nil, true, nil
	}
}

// publicCall forwards an allowlisted method to the node.
func (p *Provider) publicCall(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	start := p.now()
	result, err := p.gateway.Call(ctx, method, params...)
	metrics.UpstreamDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	return result, err
}

// session reads the active custodial session, rejecting absent or expired
// ones. Read fresh on every use: the login collaborator owns its
// lifecycle.
func (p *Provider) session(ctx context.Context) (*types.Session, error) {
	sess, ok, err := p.store.Session(ctx)
	if err != nil {
		return nil, perrors.NotReady("session storage unavailable: " + err.Error())
	}
	if !ok {
		return nil, perrors.SessionExpired()
	}
	if sess.Expired(p.now()) {
		return nil, perrors.SessionExpired()
	}
	return sess, nil
}

// signParams extracts (signWith, payload) from the two message-signing
// variants. eth_sign takes [address, data]; personal_sign takes
// [data, address].
func signParams(method string, params []any) (signWith, payload string, err error) {
	if len(params) < 2 {
		return "", "", perrors.Validationf("%s requires 2 params, got %d", method, len(params))
	}

	first, ok1 := params[0].(string)
	second, ok2 := params[1].(string)
	if !ok1 || !ok2 {
		return "", "", perrors.Validationf("%s params must be hex strings", method)
	}

	if method == MethodPersonalSign {
		return second, first, nil
	}
	return first, second, nil
}

// transactionParam decodes the single transaction-object parameter.
func transactionParam(params []any) (*types.UnsignedTransaction, error) {
	if len(params) < 1 {
		return nil, perrors.Validation("transaction object parameter is required")
	}

	raw, err := json.Marshal(params[0])
	if err != nil {
		return nil, perrors.Validationf("invalid transaction parameter: %v", err)
	}

	var tx types.UnsignedTransaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, perrors.Validationf("invalid transaction object: %v", err)
	}
	return &tx, nil
}
