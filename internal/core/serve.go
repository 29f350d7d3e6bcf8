package core

import (
	"context"
	"fmt"
	"net"
	"sync"

	"connpulse/util"
)

// ServeMode is the capped intermediary: a TCP server that keeps at
// most MaxConns connections open and closes anything beyond that as
// soon as it is accepted.  Held connections are drained until the
// client hangs up.
type ServeMode struct {
	Address  string // "host:port"
	MaxConns int
	Logger   *util.Logger

	mu     sync.Mutex
	active map[net.Conn]struct{}
	ln     net.Listener
	ready  chan struct{}
	once   sync.Once
}

// Active returns the number of connections currently held.
func (m *ServeMode) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Ready is closed once the listener is bound.
func (m *ServeMode) Ready() <-chan struct{} {
	m.init()
	return m.ready
}

// Addr returns the bound address, or nil before Ready.
func (m *ServeMode) Addr() net.Addr {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ln == nil {
		return nil
	}
	return m.ln.Addr()
}

func (m *ServeMode) init() {
	m.once.Do(func() {
		m.ready = make(chan struct{})
		m.active = make(map[net.Conn]struct{})
	})
}

// Run listens until ctx is done, then closes every held connection.
func (m *ServeMode) Run(ctx context.Context) error {
	m.init()
	ln, err := net.Listen("tcp", m.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", m.Address, err)
	}
	m.mu.Lock()
	m.ln = ln
	m.mu.Unlock()
	close(m.ready)

	m.Logger.Info("serving on %s (cap %d)", ln.Addr(), m.MaxConns)

	// Shut the listener down when the context expires.
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	defer func() {
		m.closeAll()
		wg.Wait()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("accept: %w", err)
			}
		}

		if !m.admit(conn) {
			m.Logger.Debug("refused %s: cap reached", conn.RemoteAddr())
			conn.Close()
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			m.hold(conn)
		}()
	}
}

func (m *ServeMode) admit(conn net.Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.active) >= m.MaxConns {
		return false
	}
	m.active[conn] = struct{}{}
	return true
}

// hold drains conn until the client closes it.
func (m *ServeMode) hold(conn net.Conn) {
	n, err := util.Drain(conn)
	if err != nil {
		m.Logger.Debug("%s: %v", conn.RemoteAddr(), err)
	}
	if n > 0 {
		m.Logger.Debug("%s: discarded %d bytes", conn.RemoteAddr(), n)
	}

	m.mu.Lock()
	delete(m.active, conn)
	m.mu.Unlock()
	conn.Close()
}

func (m *ServeMode) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for conn := range m.active {
		conn.Close()
	}
}
