package peer

import (
	"context"

	"github.com/reelsync/reelsync/internal/protocol"
)

// Channel is an established bidirectional message channel to the peer.
// Receive distinguishes a clean close (ErrPeerDisconnected) from a
// transport failure (ErrPeerTerminated).
type Channel interface {
	Send(env protocol.Envelope) error
	Receive() (protocol.Envelope, error)
	Close() error
}

// Listener accepts the single inbound peer connection on a claimed session
// identifier.
type Listener interface {
	Accept(ctx context.Context) (Channel, error)
	Close() error
}

// Transport provides connect-by-identifier semantics. Dial attempts to
// reach a host listening under the session identifier within a bounded
// timeout; Claim attempts to become that host, failing with
// ErrIdentifierTaken when a concurrent host won the race.
type Transport interface {
	Dial(ctx context.Context, sessionID string) (Channel, error)
	Claim(ctx context.Context, sessionID string) (Listener, error)
}
