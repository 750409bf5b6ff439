package signer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
)

// Serve hosts a signer backend behind the channel protocol, accepting
// connections until ctx is cancelled or the listener is closed. It is the
// remote end of ChannelClient: signerd runs it around a LocalSigner, an
// enclave deployment runs it around whatever backend holds the keys.
func Serve(ctx context.Context, ln net.Listener, backend Client) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go serveConn(ctx, conn, backend)
	}
}

func serveConn(ctx context.Context, conn net.Conn, backend Client) {
	defer conn.Close()

	var writeMu sync.Mutex
	for {
		raw, err := readFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				slog.Warn("signer channel read failed", "error", err)
			}
			return
		}

		var req channelRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			slog.Warn("discarding malformed signer request", "error", err)
			continue
		}

		// Requests are served concurrently; responses are matched by
		// correlation id on the client side, so ordering does not matter.
		go func() {
			resp := dispatch(ctx, backend, &req)
			payload, err := json.Marshal(resp)
			if err != nil {
				slog.Error("failed to encode signer response", "error", err)
				return
			}
			writeMu.Lock()
			defer writeMu.Unlock()
			if err := writeFrame(conn, payload); err != nil {
				slog.Warn("signer channel write failed", "error", err)
			}
		}()
	}
}

func dispatch(ctx context.Context, backend Client, req *channelRequest) *channelResponse {
	result, err := invoke(ctx, backend, req)
	if err != nil {
		return &channelResponse{
			ID:    req.ID,
			Error: &ChannelError{Code: -32000, Message: err.Error()},
		}
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return &channelResponse{
			ID:    req.ID,
			Error: &ChannelError{Code: -32000, Message: "failed to encode result"},
		}
	}
	return &channelResponse{ID: req.ID, Result: raw}
}

func invoke(ctx context.Context, backend Client, req *channelRequest) (any, error) {
	switch req.Method {
	case methodListWallets:
		var params listWalletsParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, err
		}
		wallets, err := backend.ListWallets(ctx, params.OrganizationID)
		if err != nil {
			return nil, err
		}
		return &listWalletsResult{Wallets: wallets}, nil

	case methodListWalletAccounts:
		var params listWalletAccountsParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, err
		}
		accounts, err := backend.ListWalletAccounts(ctx, params.OrganizationID, params.WalletID)
		if err != nil {
			return nil, err
		}
		return &listWalletAccountsResult{Accounts: accounts}, nil

	case methodSignRawPayload:
		var params SignRawPayloadRequest
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, err
		}
		return backend.SignRawPayload(ctx, &params)

	case methodSignTransaction:
		var params SignTransactionRequest
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, err
		}
		return backend.SignTransaction(ctx, &params)

	default:
		return nil, errors.New("unsupported signer method: " + req.Method)
	}
}
