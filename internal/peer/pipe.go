package peer

import (
	"context"
	"fmt"
	"sync"

	"github.com/reelsync/reelsync/internal/protocol"
)

// PipeNetwork is an in-memory Transport for tests and local experiments:
// session identifiers resolve inside the process instead of over TCP.
type PipeNetwork struct {
	mu        sync.Mutex
	listeners map[string]*pipeListener
}

// NewPipeNetwork creates an empty in-memory network.
func NewPipeNetwork() *PipeNetwork {
	return &PipeNetwork{
		listeners: make(map[string]*pipeListener),
	}
}

// Dial connects to a claimed session identifier, or fails immediately with
// ErrConnectionTimeout when no host is listening.
func (n *PipeNetwork) Dial(ctx context.Context, sessionID string) (Channel, error) {
	n.mu.Lock()
	listener := n.listeners[sessionID]
	n.mu.Unlock()

	if listener == nil {
		return nil, fmt.Errorf("%w: no host for %s", ErrConnectionTimeout, sessionID)
	}

	guest, host := newPipePair()
	select {
	case listener.pending <- host:
		return guest, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Claim registers a listener under the session identifier.
func (n *PipeNetwork) Claim(ctx context.Context, sessionID string) (Listener, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, taken := n.listeners[sessionID]; taken {
		return nil, fmt.Errorf("%w: %s", ErrIdentifierTaken, sessionID)
	}

	listener := &pipeListener{
		network:   n,
		sessionID: sessionID,
		pending:   make(chan *pipeChannel, 1),
	}
	n.listeners[sessionID] = listener
	return listener, nil
}

// HasListener reports whether a host currently holds the identifier.
func (n *PipeNetwork) HasListener(sessionID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.listeners[sessionID]
	return ok
}

type pipeListener struct {
	network   *PipeNetwork
	sessionID string
	pending   chan *pipeChannel
}

func (l *pipeListener) Accept(ctx context.Context) (Channel, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case ch := <-l.pending:
		return ch, nil
	}
}

func (l *pipeListener) Close() error {
	l.network.mu.Lock()
	defer l.network.mu.Unlock()
	if l.network.listeners[l.sessionID] == l {
		delete(l.network.listeners, l.sessionID)
	}
	return nil
}

type pipeChannel struct {
	in   chan protocol.Envelope
	out  chan protocol.Envelope
	peer *pipeChannel

	mu     sync.Mutex
	closed bool
	err    error
	done   chan struct{}
}

func newPipePair() (*pipeChannel, *pipeChannel) {
	ab := make(chan protocol.Envelope, 16)
	ba := make(chan protocol.Envelope, 16)
	a := &pipeChannel{in: ba, out: ab, done: make(chan struct{})}
	b := &pipeChannel{in: ab, out: ba, done: make(chan struct{})}
	a.peer, b.peer = b, a
	return a, b
}

func (c *pipeChannel) Send(env protocol.Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrPeerDisconnected
	}

	select {
	case c.out <- env:
		return nil
	case <-c.peer.done:
		return ErrPeerDisconnected
	}
}

func (c *pipeChannel) Receive() (protocol.Envelope, error) {
	select {
	case env := <-c.in:
		return env, nil
	case <-c.done:
		// Drain anything that raced with the close.
		select {
		case env := <-c.in:
			return env, nil
		default:
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		return protocol.Envelope{}, c.err
	}
}

// Close closes the channel gracefully; the peer observes
// ErrPeerDisconnected.
func (c *pipeChannel) Close() error {
	c.shutdown(ErrPeerDisconnected)
	c.peer.shutdown(ErrPeerDisconnected)
	return nil
}

// Terminate simulates a transport failure; both sides observe
// ErrPeerTerminated.
func (c *pipeChannel) Terminate() {
	c.shutdown(ErrPeerTerminated)
	c.peer.shutdown(ErrPeerTerminated)
}

func (c *pipeChannel) shutdown(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.err = err
	close(c.done)
}
