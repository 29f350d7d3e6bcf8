package util

import (
	"errors"
	"io"
	"net"
	"sync"
)

// DefaultBufSize is the buffer size used when draining connections.
const DefaultBufSize = 4 * 1024

// drainBufs is shared by every drain loop; a TCP pool may hold
// hundreds of units at once.
var drainBufs = sync.Pool{
	New: func() any {
		buf := make([]byte, DefaultBufSize)
		return &buf
	},
}

// Drain reads and discards from r until EOF or error.  It is how both
// sides of a held unit notice the other side hanging up: the
// intermediary drains its accepted connections and the pool drains
// each dialed one.  Harmless shutdown errors are reported as nil.
func Drain(r io.Reader) (int64, error) {
	buf := drainBufs.Get().(*[]byte)
	defer drainBufs.Put(buf)

	n, err := io.CopyBuffer(io.Discard, r, *buf)
	if isHarmless(err) {
		return n, nil
	}
	return n, err
}

// isHarmless returns true for errors that are expected during shutdown.
func isHarmless(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}
