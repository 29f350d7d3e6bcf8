package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"connpulse/tunnel"
	"connpulse/util"
)

// SSHDialer forwards every unit through one SSH session to a jump
// host.  The session is established lazily on the first Dial and kept
// alive by a tunnel.Manager until Close.
type SSHDialer struct {
	config  *tunnel.SSHConfig
	manager *tunnel.Manager
	logger  *util.Logger

	mu      sync.Mutex
	started bool
}

// NewSSHDialer creates a dialer for the jump host described by cfg.
// Keepalive sets the health-check interval (zero: 10s).
func NewSSHDialer(cfg *tunnel.SSHConfig, keepalive time.Duration, logger *util.Logger) *SSHDialer {
	t := tunnel.NewSSHTunnel(cfg, logger)
	return &SSHDialer{
		config:  cfg,
		manager: tunnel.NewManager(t, keepalive, logger),
		logger:  logger,
	}
}

// Connect establishes the session if it is not already up.  Calling it
// up front moves the handshake out of the first pulse.
func (d *SSHDialer) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return nil
	}

	d.logger.Verbose("establishing SSH tunnel to %s@%s", d.config.User, d.config.Addr())
	if err := d.manager.Start(ctx); err != nil {
		return fmt.Errorf("tunnel: %w", err)
	}
	d.started = true
	d.logger.Verbose("SSH tunnel established")
	return nil
}

// Dial forwards a connection to address through the jump host.
func (d *SSHDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if err := d.Connect(ctx); err != nil {
		return nil, err
	}
	return d.manager.Dial(ctx, network, address)
}

// Close tears down the SSH session.
func (d *SSHDialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		return nil
	}
	d.started = false
	return d.manager.Stop()
}
