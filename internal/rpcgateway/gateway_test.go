package rpcgateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/walletbridge/walletbridge/pkg/errors"
)

// newTestNode serves canned JSON-RPC responses keyed by method.
func newTestNode(t *testing.T, handle func(method string, params []json.RawMessage) (any, *jsonRPCError)) *Gateway {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage   `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		result, rpcErr := handle(req.Method, req.Params)
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(server.Close)

	client, err := rpc.Dial(server.URL)
	require.NoError(t, err)
	gateway := NewGateway(client)
	t.Cleanup(gateway.Close)
	return gateway
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func TestIsPublicMethod(t *testing.T) {
	tests := []struct {
		method string
		public bool
	}{
		{"eth_blockNumber", true},
		{"eth_call", true},
		{"eth_sendRawTransaction", true},
		{"eth_getLogs", true},
		{"eth_feeHistory", true},
		{"eth_signTransaction", false},
		{"eth_accounts", false},
		{"personal_sign", false},
		{"wallet_madeUp", false},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			assert.Equal(t, tt.public, IsPublicMethod(tt.method))
		})
	}
}

func TestGatewayCall(t *testing.T) {
	gateway := newTestNode(t, func(method string, params []json.RawMessage) (any, *jsonRPCError) {
		switch method {
		case "eth_blockNumber":
			return "0x10d4f", nil
		case "eth_getBalance":
			require.Len(t, params, 2)
			return "0xde0b6b3a7640000", nil
		default:
			return nil, &jsonRPCError{Code: -32601, Message: "method not found"}
		}
	})

	ctx := context.Background()

	t.Run("result passes through verbatim", func(t *testing.T) {
		result, err := gateway.Call(ctx, "eth_blockNumber")
		require.NoError(t, err)
		assert.JSONEq(t, `"0x10d4f"`, string(result))
	})

	t.Run("params forwarded", func(t *testing.T) {
		result, err := gateway.Call(ctx, "eth_getBalance",
			"0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266", "latest")
		require.NoError(t, err)
		assert.JSONEq(t, `"0xde0b6b3a7640000"`, string(result))
	})

	t.Run("non-allowlisted method never reaches the node", func(t *testing.T) {
		_, err := gateway.Call(ctx, "eth_signTransaction")
		require.Error(t, err)
		assert.True(t, perrors.IsKind(err, perrors.KindValidation))
	})
}

func TestGatewayUpstreamError(t *testing.T) {
	gateway := newTestNode(t, func(method string, params []json.RawMessage) (any, *jsonRPCError) {
		return nil, &jsonRPCError{Code: -32000, Message: "execution reverted", Data: "0x08c379a0"}
	})

	_, err := gateway.Call(context.Background(), "eth_call", map[string]any{}, "latest")
	require.Error(t, err)

	perr, ok := perrors.AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, perrors.KindUpstreamRPC, perr.Kind)
	assert.Equal(t, -32000, perr.Code)
	assert.Contains(t, perr.Message, "execution reverted")
	assert.Equal(t, "0x08c379a0", perr.Data)
}

func TestDialRequiresURL(t *testing.T) {
	_, err := Dial("")
	require.Error(t, err)
}
