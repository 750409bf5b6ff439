// Package rpcgateway forwards read-only and broadcast chain queries to a
// public node. It needs no custodial key material: everything routed here
// is either a pure read or carries an already-signed payload.
package rpcgateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"

	perrors "github.com/walletbridge/walletbridge/pkg/errors"
)

// allowedMethods is the fixed set of node methods the gateway forwards.
// Anything outside this set never reaches the node through the bridge.
var allowedMethods = map[string]struct{}{
	"eth_sendRawTransaction":                  {},
	"eth_subscribe":                           {},
	"eth_unsubscribe":                         {},
	"eth_blobBaseFee":                         {},
	"eth_blockNumber":                         {},
	"eth_call":                                {},
	"eth_coinbase":                            {},
	"eth_estimateGas":                         {},
	"eth_feeHistory":                          {},
	"eth_gasPrice":                            {},
	"eth_getBalance":                          {},
	"eth_getBlockByHash":                      {},
	"eth_getBlockByNumber":                    {},
	"eth_getBlockReceipts":                    {},
	"eth_getBlockTransactionCountByHash":      {},
	"eth_getBlockTransactionCountByNumber":    {},
	"eth_getCode":                             {},
	"eth_getFilterChanges":                    {},
	"eth_getFilterLogs":                       {},
	"eth_getLogs":                             {},
	"eth_getProof":                            {},
	"eth_getStorageAt":                        {},
	"eth_getTransactionByBlockHashAndIndex":   {},
	"eth_getTransactionByBlockNumberAndIndex": {},
	"eth_getTransactionByHash":                {},
	"eth_getTransactionCount":                 {},
	"eth_getTransactionReceipt":               {},
	"eth_getUncleCountByBlockHash":            {},
	"eth_getUncleCountByBlockNumber":          {},
	"eth_maxPriorityFeePerGas":                {},
	"eth_newBlockFilter":                      {},
	"eth_newFilter":                           {},
	"eth_newPendingTransactionFilter":         {},
	"eth_syncing":                             {},
	"eth_uninstallFilter":                     {},
}

// IsPublicMethod reports whether the gateway forwards the given method.
func IsPublicMethod(method string) bool {
	_, ok := allowedMethods[method]
	return ok
}

// Gateway issues single JSON-RPC calls against one configured node URL.
// No retries: a node-side error is surfaced to the caller unchanged.
type Gateway struct {
	client *rpc.Client
	url    string
}

// Dial connects the gateway to a node URL.
func Dial(url string) (*Gateway, error) {
	if url == "" {
		return nil, fmt.Errorf("node RPC URL is required")
	}
	client, err := rpc.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to node: %w", err)
	}
	return &Gateway{client: client, url: url}, nil
}

// NewGateway wraps an existing rpc client; tests use it with a local
// server.
func NewGateway(client *rpc.Client) *Gateway {
	return &Gateway{client: client}
}

// Call forwards one allowlisted method to the node and returns the result
// field verbatim.
func (g *Gateway) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if !IsPublicMethod(method) {
		return nil, perrors.Validationf("method %s is not an allowlisted node method", method)
	}

	var result json.RawMessage
	if err := g.client.CallContext(ctx, &result, method, params...); err != nil {
		return nil, upstreamError(err)
	}
	return result, nil
}

// Close releases the underlying connection.
func (g *Gateway) Close() {
	g.client.Close()
}

// upstreamError converts a node error into the bridge's typed form,
// keeping the node's code, message and data intact.
func upstreamError(err error) error {
	code := -32603 // internal error fallback for transport failures
	if rpcErr, ok := err.(rpc.Error); ok {
		code = rpcErr.ErrorCode()
	}
	var data any
	if dataErr, ok := err.(rpc.DataError); ok {
		data = dataErr.ErrorData()
	}
	return perrors.UpstreamRPC(code, err.Error(), data)
}
