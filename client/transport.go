package client

import (
	"context"

	"github.com/dubex/concourse-test/internal/sentinel"
)

// ErrNoTransport is returned by Dial when no transport dialer is supplied.
// The server's wire protocol is intentionally outside this package; the
// harness (or a test) must provide the DialFunc that actually speaks it.
const ErrNoTransport = sentinel.Error("no client transport dialer configured")

// ErrClientClosed is returned by capability calls after Close or Exit.
const ErrClientClosed = sentinel.Error("client is closed")

// Transport carries capability calls to one server instance over its
// network protocol. Arguments arrive already translated to the target
// version's wire shapes by the driver's codec.
//
// Implementations must be safe for sequential use by one controlling
// goroutine; the harness never issues concurrent calls on one transport.
type Transport interface {
	// Call invokes the named operation and returns its result.
	Call(ctx context.Context, op string, args ...any) (any, error)

	// Close releases the underlying connection.
	Close() error
}

// DialFunc opens a Transport to the server listening at addr,
// authenticating with the given credentials.
type DialFunc func(ctx context.Context, addr, username, password string) (Transport, error)
