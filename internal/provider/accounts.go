package provider

import (
	"context"
	"time"

	"github.com/walletbridge/walletbridge/internal/logger"
	"github.com/walletbridge/walletbridge/internal/metrics"
	"github.com/walletbridge/walletbridge/internal/storage"
	perrors "github.com/walletbridge/walletbridge/pkg/errors"
	"github.com/walletbridge/walletbridge/pkg/types"
)

// accounts implements the cached accounts semantics: a non-empty cache for
// the session's organization is returned without touching the signer; an
// empty or stale cache falls through to a fresh resolution.
func (p *Provider) accounts(ctx context.Context) ([]string, error) {
	sess, err := p.session(ctx)
	if err != nil {
		return nil, err
	}

	record, err := p.store.ProviderStore(ctx)
	if err != nil {
		return nil, perrors.NotReady("provider storage unavailable: " + err.Error())
	}

	if len(record.Accounts) > 0 && record.OrganizationID == sess.OrganizationID {
		return record.Accounts, nil
	}
	if len(record.Accounts) > 0 {
		// Cached accounts belong to a different organization: stale cache,
		// re-resolve against the active session.
		logger.FromContext(ctx).Info("discarding stale account cache",
			"cached_org", record.OrganizationID, "session_org", sess.OrganizationID)
	}
	return p.resolveAccounts(ctx, sess)
}

// requestAccounts implements the forced-refresh semantics: always a fresh
// custodial enumeration, cache or no cache.
func (p *Provider) requestAccounts(ctx context.Context) ([]string, error) {
	sess, err := p.session(ctx)
	if err != nil {
		return nil, err
	}
	return p.resolveAccounts(ctx, sess)
}

// resolveAccounts enumerates custodial wallets and their per-chain
// accounts, filters to the active chain's address format, deduplicates
// preserving first-seen order, and writes the result into the provider
// store. An accountsChanged event fires only when the stored set changed.
func (p *Provider) resolveAccounts(ctx context.Context, sess *types.Session) ([]string, error) {
	start := p.now()
	wallets, err := p.signer.ListWallets(ctx, sess.OrganizationID)
	metrics.SignerDuration.WithLabelValues("list_wallets").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	var addresses []string
	seen := make(map[string]struct{})
	for _, wallet := range wallets {
		start = p.now()
		walletAccounts, err := p.signer.ListWalletAccounts(ctx, sess.OrganizationID, wallet.WalletID)
		metrics.SignerDuration.WithLabelValues("list_wallet_accounts").Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, err
		}

		for _, account := range walletAccounts {
			if account.AddressFormat != p.format {
				continue
			}
			addr := types.NormalizeAddress(account.Address)
			if _, dup := seen[addr]; dup {
				continue
			}
			seen[addr] = struct{}{}
			addresses = append(addresses, addr)
		}
	}

	if len(addresses) == 0 {
		return nil, perrors.NoAccountsFound(string(p.format))
	}

	_, changed, err := p.store.UpdateProviderStore(ctx, storage.ProviderStoreUpdate{
		Accounts:       addresses,
		OrganizationID: &sess.OrganizationID,
	})
	if err != nil {
		return nil, perrors.NotReady("provider storage unavailable: " + err.Error())
	}
	if changed {
		p.events.Emit(EventAccountsChanged, addresses)
	}

	return addresses, nil
}

// currentAccount returns the provider's current account: the first cached
// address for the session's organization.
func (p *Provider) currentAccount(ctx context.Context, sess *types.Session) (string, bool) {
	record, err := p.store.ProviderStore(ctx)
	if err != nil || len(record.Accounts) == 0 || record.OrganizationID != sess.OrganizationID {
		return "", false
	}
	return record.Accounts[0], true
}
