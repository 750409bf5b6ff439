package signer

import (
	"context"
	"net"
	"time"
)

// Dialer opens the embedded channel to the custodial signer. Platforms
// differ in how the signer is hosted: a TCP endpoint in development, a
// vsock endpoint when the signer runs inside an enclave.
type Dialer interface {
	Dial(ctx context.Context) (net.Conn, error)
	Platform() string
}

// TCPDialer connects to a signer daemon over TCP.
type TCPDialer struct {
	Addr    string
	Timeout time.Duration
}

// NewTCPDialer creates a TCP dialer for the given address.
func NewTCPDialer(addr string, timeout time.Duration) *TCPDialer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TCPDialer{Addr: addr, Timeout: timeout}
}

func (d *TCPDialer) Dial(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: d.Timeout}
	return dialer.DialContext(ctx, "tcp", d.Addr)
}

func (d *TCPDialer) Platform() string { return "tcp" }

// VsockDialer connects to a signer hosted in an enclave via AF_VSOCK.
type VsockDialer struct {
	CID     uint32
	Port    uint32
	Timeout time.Duration
}

// NewVsockDialer creates a vsock dialer for the given context id and port.
func NewVsockDialer(cid, port uint32, timeout time.Duration) *VsockDialer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &VsockDialer{CID: cid, Port: port, Timeout: timeout}
}

func (d *VsockDialer) Dial(ctx context.Context) (net.Conn, error) {
	return dialVsock(ctx, d.CID, d.Port, d.Timeout)
}

func (d *VsockDialer) Platform() string { return "vsock" }

var (
	_ Dialer = (*TCPDialer)(nil)
	_ Dialer = (*VsockDialer)(nil)
)
