// Package signer talks to the custodial signing service. The service holds
// all private keys; the bridge reaches it either in-process (development)
// or over an embedded message channel, and only ever sees addresses,
// signatures and signed transactions.
package signer

import (
	"context"

	"github.com/walletbridge/walletbridge/pkg/types"
)

// Payload encoding and hash directives understood by the custodial signer.
// HashFunctionNoOp instructs the signer to sign the payload bytes as-is;
// any domain-specific hashing or prefixing is the caller's responsibility.
const (
	PayloadEncodingHexadecimal = "PAYLOAD_ENCODING_HEXADECIMAL"
	HashFunctionNoOp           = "HASH_FUNCTION_NO_OP"
)

// SignRawPayloadRequest asks the signer to sign pre-formatted bytes with
// the key behind SignWith.
type SignRawPayloadRequest struct {
	OrganizationID string `json:"organizationId"`
	SignWith       string `json:"signWith"`
	Payload        string `json:"payload"` // hex, 0x-prefixed
	Encoding       string `json:"encoding"`
	HashFunction   string `json:"hashFunction"`
}

// RawSignature is the signer's (r, s) output, hex-encoded without prefix.
// V carries the signer's recovery hint when it provides one; the bridge
// does not rely on it.
type RawSignature struct {
	R string `json:"r"`
	S string `json:"s"`
	V string `json:"v,omitempty"`
}

// SignTransactionRequest asks the signer to sign a canonically serialized
// unsigned transaction (hex without the 0x prefix).
type SignTransactionRequest struct {
	OrganizationID      string `json:"organizationId"`
	SignWith            string `json:"signWith"`
	UnsignedTransaction string `json:"unsignedTransaction"`
}

// SignTransactionResponse carries the fully signed raw transaction, hex
// without the 0x prefix.
type SignTransactionResponse struct {
	SignedTransaction string `json:"signedTransaction"`
}

// Client is the fixed method set of the custodial signing service.
type Client interface {
	// ListWallets enumerates the wallets owned by an organization.
	ListWallets(ctx context.Context, organizationID string) ([]types.CustodialWallet, error)

	// ListWalletAccounts enumerates the per-chain accounts of one wallet.
	ListWalletAccounts(ctx context.Context, organizationID, walletID string) ([]types.WalletAccount, error)

	// SignRawPayload signs pre-formatted bytes and returns (r, s).
	SignRawPayload(ctx context.Context, req *SignRawPayloadRequest) (*RawSignature, error)

	// SignTransaction signs a serialized transaction and returns the raw
	// signed transaction.
	SignTransaction(ctx context.Context, req *SignTransactionRequest) (*SignTransactionResponse, error)
}

// Channel method names.
const (
	methodListWallets        = "wallets_list"
	methodListWalletAccounts = "wallet_accounts_list"
	methodSignRawPayload     = "sign_raw_payload"
	methodSignTransaction    = "sign_transaction"
)

// listWalletsParams is the wire form of a ListWallets call.
type listWalletsParams struct {
	OrganizationID string `json:"organizationId"`
}

// listWalletsResult is the wire form of a ListWallets response.
type listWalletsResult struct {
	Wallets []types.CustodialWallet `json:"wallets"`
}

// listWalletAccountsParams is the wire form of a ListWalletAccounts call.
type listWalletAccountsParams struct {
	OrganizationID string `json:"organizationId"`
	WalletID       string `json:"walletId"`
}

// listWalletAccountsResult is the wire form of a ListWalletAccounts
// response.
type listWalletAccountsResult struct {
	Accounts []types.WalletAccount `json:"accounts"`
}
