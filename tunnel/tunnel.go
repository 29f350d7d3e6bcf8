// Package tunnel reaches a capped intermediary through an SSH jump
// host.  Every pool unit becomes one forwarded channel on a single SSH
// connection, so the intermediary sees the jump host as the client.
package tunnel

import (
	"context"
	"net"
)

// Tunnel abstracts an encrypted channel through which TCP connections
// can be forwarded.
type Tunnel interface {
	// Connect establishes the tunnel to the gateway.
	Connect(ctx context.Context) error

	// Dial opens a connection to address through the tunnel.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Keepalive sends one round trip over the tunnel.
	Keepalive() error

	// Close tears down the tunnel and frees resources.
	Close() error

	// IsAlive reports whether the underlying connection is still up.
	IsAlive() bool
}
