package transport

import (
	"context"
	"fmt"
	"net"
	"time"
)

// TCPDialer establishes plain TCP connections.
type TCPDialer struct {
	Timeout time.Duration
	// KeepAlive is the TCP keep-alive period for held units.  Zero
	// uses the Go default; negative disables keep-alives.
	KeepAlive time.Duration
	// SourceIP optionally binds every unit to one local address.
	SourceIP string
}

// Dial connects to address over TCP.
func (d *TCPDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: d.Timeout, KeepAlive: d.KeepAlive}

	if d.SourceIP != "" {
		ip := net.ParseIP(d.SourceIP)
		if ip == nil {
			return nil, fmt.Errorf("invalid source address %q", d.SourceIP)
		}
		dialer.LocalAddr = &net.TCPAddr{IP: ip}
	}

	return dialer.DialContext(ctx, network, address)
}

// Close is a no-op for stateless TCP dialers.
func (d *TCPDialer) Close() error { return nil }
