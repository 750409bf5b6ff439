package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *ProviderError
		kind string
		code int
	}{
		{"not ready", NotReady("channel down"), KindNotReady, 4900},
		{"no accounts", NoAccountsFound("ADDRESS_FORMAT_ETHEREUM"), KindNoAccountsFound, 4100},
		{"session expired", SessionExpired(), KindSessionExpired, 4100},
		{"signing", Signing("rejected"), KindSigning, -32000},
		{"timeout", Timeout("no response"), KindTimeout, -32003},
		{"validation", Validation("bad params"), KindValidation, -32602},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestUpstreamRPCKeepsCode(t *testing.T) {
	err := UpstreamRPC(-32000, "execution reverted", map[string]any{"reason": "0xdead"})

	assert.Equal(t, KindUpstreamRPC, err.Kind)
	assert.Equal(t, -32000, err.Code)
	assert.Equal(t, "execution reverted", err.Message)
	assert.NotNil(t, err.Data)
}

func TestWithMethod(t *testing.T) {
	t.Run("annotates when unset", func(t *testing.T) {
		err := Validation("bad").WithMethod("eth_sign")
		assert.Equal(t, "eth_sign", err.Method)
	})

	t.Run("keeps existing method", func(t *testing.T) {
		err := Validation("bad").WithMethod("eth_signTransaction")
		again := err.WithMethod("eth_sendTransaction")
		assert.Equal(t, "eth_signTransaction", again.Method)
	})

	t.Run("does not mutate the original", func(t *testing.T) {
		orig := Validation("bad")
		_ = orig.WithMethod("eth_sign")
		assert.Empty(t, orig.Method)
	})
}

func TestErrorString(t *testing.T) {
	err := Signing("key rejected").WithMethod("personal_sign")
	assert.Contains(t, err.Error(), "signing_error")
	assert.Contains(t, err.Error(), "personal_sign")
}

func TestAsProviderError(t *testing.T) {
	t.Run("direct", func(t *testing.T) {
		perr, ok := AsProviderError(Timeout("late"))
		require.True(t, ok)
		assert.Equal(t, KindTimeout, perr.Kind)
	})

	t.Run("wrapped", func(t *testing.T) {
		wrapped := fmt.Errorf("request failed: %w", NotReady("down"))
		perr, ok := AsProviderError(wrapped)
		require.True(t, ok)
		assert.Equal(t, KindNotReady, perr.Kind)
	})

	t.Run("plain error", func(t *testing.T) {
		_, ok := AsProviderError(fmt.Errorf("plain"))
		assert.False(t, ok)
	})
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("outer: %w", SessionExpired())
	assert.True(t, IsKind(err, KindSessionExpired))
	assert.False(t, IsKind(err, KindTimeout))
}
