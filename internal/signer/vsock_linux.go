//go:build linux

package signer

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// dialVsock opens an AF_VSOCK stream socket to the signer enclave. The
// connect is performed non-blocking so the caller's context can cancel it.
func dialVsock(ctx context.Context, cid, port uint32, timeout time.Duration) (net.Conn, error) {
	fd, err := unix.Socket(unix.AF_VSOCK, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to create vsock socket: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to set non-blocking: %w", err)
	}

	remote := &unix.SockaddrVM{CID: cid, Port: port}

	if err := unix.Connect(fd, remote); err != nil {
		if err != unix.EINPROGRESS {
			unix.Close(fd)
			return nil, fmt.Errorf("vsock connect failed: %w", err)
		}
		if err := awaitConnect(ctx, fd, timeout); err != nil {
			unix.Close(fd)
			return nil, err
		}
	}

	if err := unix.SetNonblock(fd, false); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to restore blocking mode: %w", err)
	}

	return &vsockConn{fd: fd, remote: remote}, nil
}

// awaitConnect polls an in-progress non-blocking connect until it
// completes, the timeout passes or ctx is cancelled.
func awaitConnect(ctx context.Context, fd int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("vsock connect timeout")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		pollFds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
		timeoutMs := int(remaining.Milliseconds())
		if timeoutMs < 1 {
			timeoutMs = 1
		}

		n, err := unix.Poll(pollFds, timeoutMs)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("poll failed: %w", err)
		}
		if n == 0 {
			continue
		}

		sockErr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
		if err != nil {
			return fmt.Errorf("getsockopt failed: %w", err)
		}
		if sockErr != 0 {
			return fmt.Errorf("vsock connect error: %w", unix.Errno(sockErr))
		}
		return nil
	}
}

// vsockConn adapts a vsock file descriptor to net.Conn.
type vsockConn struct {
	fd     int
	remote *unix.SockaddrVM
}

func (c *vsockConn) Read(b []byte) (int, error)  { return unix.Read(c.fd, b) }
func (c *vsockConn) Write(b []byte) (int, error) { return unix.Write(c.fd, b) }
func (c *vsockConn) Close() error                { return unix.Close(c.fd) }

func (c *vsockConn) LocalAddr() net.Addr {
	return &vsockAddr{cid: unix.VMADDR_CID_ANY}
}

func (c *vsockConn) RemoteAddr() net.Addr {
	return &vsockAddr{cid: c.remote.CID, port: c.remote.Port}
}

func (c *vsockConn) SetDeadline(t time.Time) error {
	if err := c.SetReadDeadline(t); err != nil {
		return err
	}
	return c.SetWriteDeadline(t)
}

func (c *vsockConn) SetReadDeadline(t time.Time) error {
	return unix.SetsockoptTimeval(c.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, timevalUntil(t))
}

func (c *vsockConn) SetWriteDeadline(t time.Time) error {
	return unix.SetsockoptTimeval(c.fd, unix.SOL_SOCKET, unix.SO_SNDTIMEO, timevalUntil(t))
}

func timevalUntil(t time.Time) *unix.Timeval {
	var tv unix.Timeval
	if !t.IsZero() {
		if d := time.Until(t); d > 0 {
			tv.Sec = int64(d / time.Second)
			tv.Usec = int64((d % time.Second) / time.Microsecond)
		}
	}
	return &tv
}

type vsockAddr struct {
	cid  uint32
	port uint32
}

func (a *vsockAddr) Network() string { return "vsock" }
func (a *vsockAddr) String() string  { return fmt.Sprintf("%d:%d", a.cid, a.port) }

var _ net.Conn = (*vsockConn)(nil)
