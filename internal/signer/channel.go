package signer

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	perrors "github.com/walletbridge/walletbridge/pkg/errors"
	"github.com/walletbridge/walletbridge/pkg/types"
)

// DefaultCallTimeout bounds how long a channel call may stay in flight
// without a matching response.
const DefaultCallTimeout = 5 * time.Minute

// maxFrameSize caps a single channel message.
const maxFrameSize = 10 * 1024 * 1024

// channelRequest is the envelope sent over the embedded channel. Every
// call carries its own correlation id, so concurrent calls to the same
// method cannot collide.
type channelRequest struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// channelResponse is the envelope received from the signer.
type channelResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ChannelError   `json:"error,omitempty"`
}

// ChannelError is a signer-side rejection carried over the channel.
type ChannelError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("signer error %d: %s", e.Code, e.Message)
}

// ChannelClient implements Client over an embedded message channel. The
// connection is dialed lazily on first use; a reader goroutine dispatches
// responses to their pending calls by correlation id.
type ChannelClient struct {
	dialer  Dialer
	timeout time.Duration

	mu      sync.Mutex
	conn    net.Conn
	pending map[string]chan *channelResponse
	closed  bool
}

// NewChannelClient creates a channel client. A zero timeout selects
// DefaultCallTimeout.
func NewChannelClient(dialer Dialer, timeout time.Duration) *ChannelClient {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &ChannelClient{
		dialer:  dialer,
		timeout: timeout,
		pending: make(map[string]chan *channelResponse),
	}
}

func (c *ChannelClient) ListWallets(ctx context.Context, organizationID string) ([]types.CustodialWallet, error) {
	var result listWalletsResult
	err := c.call(ctx, methodListWallets, &listWalletsParams{OrganizationID: organizationID}, &result)
	if err != nil {
		return nil, err
	}
	return result.Wallets, nil
}

func (c *ChannelClient) ListWalletAccounts(ctx context.Context, organizationID, walletID string) ([]types.WalletAccount, error) {
	var result listWalletAccountsResult
	err := c.call(ctx, methodListWalletAccounts, &listWalletAccountsParams{
		OrganizationID: organizationID,
		WalletID:       walletID,
	}, &result)
	if err != nil {
		return nil, err
	}
	return result.Accounts, nil
}

func (c *ChannelClient) SignRawPayload(ctx context.Context, req *SignRawPayloadRequest) (*RawSignature, error) {
	var result RawSignature
	if err := c.call(ctx, methodSignRawPayload, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *ChannelClient) SignTransaction(ctx context.Context, req *SignTransactionRequest) (*SignTransactionResponse, error) {
	var result SignTransactionResponse
	if err := c.call(ctx, methodSignTransaction, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Close tears down the channel. Pending calls fail with a not-ready error.
func (c *ChannelClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// call performs one correlated request/response exchange.
func (c *ChannelClient) call(ctx context.Context, method string, params, result any) error {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to encode %s params: %w", method, err)
	}

	id := uuid.NewString()
	req := &channelRequest{ID: id, Method: method, Params: rawParams}

	respCh, err := c.register(ctx, id)
	if err != nil {
		return err
	}

	if err := c.send(req); err != nil {
		c.unregister(id)
		return perrors.NotReady(fmt.Sprintf("signer channel write failed: %v", err))
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-respCh:
		if !ok {
			return perrors.NotReady("signer channel closed while waiting for response")
		}
		if resp.Error != nil {
			return perrors.Signing(resp.Error.Message)
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("failed to decode %s result: %w", method, err)
			}
		}
		return nil
	case <-timer.C:
		c.unregister(id)
		return perrors.Timeout(fmt.Sprintf("no response to %s within %s", method, c.timeout))
	case <-ctx.Done():
		c.unregister(id)
		return ctx.Err()
	}
}

// register ensures the channel is connected and reserves a pending slot.
func (c *ChannelClient) register(ctx context.Context, id string) (chan *channelResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, perrors.NotReady("signer channel is closed")
	}

	if c.conn == nil {
		conn, err := c.dialer.Dial(ctx)
		if err != nil {
			return nil, perrors.NotReady(fmt.Sprintf("signer channel unavailable (%s): %v", c.dialer.Platform(), err))
		}
		c.conn = conn
		go c.readLoop(conn)
	}

	ch := make(chan *channelResponse, 1)
	c.pending[id] = ch
	return ch, nil
}

func (c *ChannelClient) unregister(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

func (c *ChannelClient) send(req *channelRequest) error {
	raw, err := json.Marshal(req)
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("connection not established")
	}
	return writeFrame(conn, raw)
}

// readLoop dispatches responses to pending calls until the connection
// dies, then fails everything still in flight.
func (c *ChannelClient) readLoop(conn net.Conn) {
	for {
		raw, err := readFrame(conn)
		if err != nil {
			c.failAll(conn, err)
			return
		}

		var resp channelResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			slog.Warn("discarding malformed signer channel message", "error", err)
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()

		if !ok {
			// Response for a call that already timed out.
			slog.Debug("dropping unmatched signer response", "id", resp.ID)
			continue
		}
		ch <- &resp
	}
}

func (c *ChannelClient) failAll(conn net.Conn, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == conn {
		c.conn.Close()
		c.conn = nil
	}
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	if cause != io.EOF && !c.closed {
		slog.Warn("signer channel disconnected", "error", cause)
	}
}

// writeFrame sends a length-prefixed message.
func writeFrame(conn net.Conn, payload []byte) error {
	if len(payload) > maxFrameSize {
		return fmt.Errorf("frame too large: %d bytes", len(payload))
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := conn.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := conn.Write(payload)
	return err
}

// readFrame reads a length-prefixed message.
func readFrame(conn net.Conn) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(lenBuf[:])
	if size > maxFrameSize {
		return nil, fmt.Errorf("frame too large: %d bytes", size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(conn, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

var _ Client = (*ChannelClient)(nil)
