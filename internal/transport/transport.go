// Package transport opens the connections a TCP pool holds as units.
// A unit is either dialed straight at the intermediary or forwarded
// through an SSH jump host; the pool does not care which.
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound connections to the intermediary.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer
	// (e.g. an SSH session).  Stateless dialers return nil.
	Close() error
}
