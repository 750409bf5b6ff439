// Package types defines the shared records exchanged between the bridge,
// the session store and the custodial signing service.
package types

import (
	"strings"
	"time"
)

// SessionType describes what a custodial session is allowed to do.
type SessionType string

const (
	SessionTypeReadOnly  SessionType = "SESSION_TYPE_READ_ONLY"
	SessionTypeReadWrite SessionType = "SESSION_TYPE_READ_WRITE"
)

// Session is the caller's proof of custodial authorization. It is produced
// by the external login flow and consumed read-only by the bridge.
type Session struct {
	SessionType    SessionType `json:"sessionType"`
	UserID         string      `json:"userId"`
	OrganizationID string      `json:"organizationId"`

	// Token is the opaque credential bundle issued by the custodial
	// service. The bridge never inspects it.
	Token string `json:"token"`

	// Expiry is an absolute timestamp in milliseconds since epoch.
	Expiry int64 `json:"expiry"`
}

// Expired reports whether the session is unusable at the given time.
func (s *Session) Expired(now time.Time) bool {
	return now.UnixMilli() > s.Expiry
}

// AddressFormat tags which chain family a custodial account address
// belongs to. The set is closed: the custodial service only mints
// accounts in these formats.
type AddressFormat string

const (
	AddressFormatEthereum AddressFormat = "ADDRESS_FORMAT_ETHEREUM"
	AddressFormatSolana   AddressFormat = "ADDRESS_FORMAT_SOLANA"
)

// WalletAccount is a single per-chain account inside a custodial wallet.
type WalletAccount struct {
	Address       string        `json:"address"`
	AddressFormat AddressFormat `json:"addressFormat"`
}

// CustodialWallet is a wallet record owned by an organization on the
// custodial service. Fetched on demand, never mutated locally.
type CustodialWallet struct {
	WalletID   string          `json:"walletId"`
	WalletName string          `json:"walletName,omitempty"`
	Accounts   []WalletAccount `json:"accounts,omitempty"`
}

// ProviderStore is the persisted account/organization cache owned by the
// account registry. Addresses are stored lowercase.
type ProviderStore struct {
	Accounts       []string `json:"accounts"`
	OrganizationID string   `json:"organizationId,omitempty"`
}

// Equal reports value equality of two provider store records. The registry
// uses it to decide whether an accountsChanged event should fire.
func (p ProviderStore) Equal(other ProviderStore) bool {
	if p.OrganizationID != other.OrganizationID {
		return false
	}
	if len(p.Accounts) != len(other.Accounts) {
		return false
	}
	for i := range p.Accounts {
		if p.Accounts[i] != other.Accounts[i] {
			return false
		}
	}
	return true
}

// NormalizeAddress lowercases a chain address for storage and comparison.
func NormalizeAddress(addr string) string {
	return strings.ToLower(addr)
}
