//go:build !linux

package signer

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"time"
)

// dialVsock is Linux-only; enclave-hosted signers require AF_VSOCK.
func dialVsock(_ context.Context, _, _ uint32, _ time.Duration) (net.Conn, error) {
	return nil, fmt.Errorf("vsock is only supported on linux (current OS: %s)", runtime.GOOS)
}
