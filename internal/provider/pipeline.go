package provider

import (
	"context"
	"log/slog"

	"github.com/walletbridge/walletbridge/internal/logger"
	perrors "github.com/walletbridge/walletbridge/pkg/errors"
)

// txState tracks a send-transaction call through its lifecycle.
type txState string

const (
	txStatePrepared     txState = "prepared"
	txStateSigning      txState = "signing"
	txStateSigned       txState = "signed"
	txStateBroadcasting txState = "broadcasting"
	txStateBroadcast    txState = "broadcast"
	txStateFailed       txState = "failed"
)

// sendTransaction composes signing and broadcast into the two-step
// send-transaction operation. Both steps go through the router as
// independent calls: a signing failure means zero broadcast attempts, and
// a broadcast failure never re-signs. No deduplication happens across
// calls; re-invoking with the same prepared transaction signs and
// broadcasts again.
func (p *Provider) sendTransaction(ctx context.Context, params []any) (any, error) {
	if len(params) < 1 {
		return nil, perrors.Validation("transaction object parameter is required")
	}
	log := logger.FromContext(ctx)

	transition(log, txStatePrepared, txStateSigning)
	signed, err := p.Request(ctx, MethodSignTransaction, params[:1])
	if err != nil {
		transition(log, txStateSigning, txStateFailed)
		return nil, err
	}

	rawTx, ok := signed.(string)
	if !ok || rawTx == "" {
		transition(log, txStateSigning, txStateFailed)
		return nil, perrors.Signing("signer returned an empty signed transaction")
	}

	transition(log, txStateSigned, txStateBroadcasting)
	hash, err := p.Request(ctx, MethodSendRawTransaction, []any{rawTx})
	if err != nil {
		transition(log, txStateBroadcasting, txStateFailed)
		return nil, err
	}

	transition(log, txStateBroadcasting, txStateBroadcast)
	return hash, nil
}

func transition(log *slog.Logger, from, to txState) {
	log.Debug("send-transaction state", "from", string(from), "to", string(to))
}
