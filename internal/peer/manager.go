package peer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/reelsync/reelsync/internal/protocol"
)

// SessionHandler receives connection lifecycle events and accepted inbound
// traffic. Calls are made from the manager's goroutine.
type SessionHandler interface {
	// SessionOpened fires once per established connection, before any
	// inbound traffic is delivered.
	SessionOpened(sender Sender, role Role)
	// RemoteConfig delivers the peer's stream configuration.
	RemoteConfig(cfg protocol.StreamConfig)
	// CommandAccepted delivers a command that passed the causal ordering
	// check.
	CommandAccepted(cmd protocol.Command)
	// SessionClosed fires when the connection is lost. A graceful close is
	// followed by renegotiation; a terminated connection is fatal.
	SessionClosed(err error)
}

// Config holds connection manager tunables.
type Config struct {
	// SessionID is the well-known identifier both peers converge on.
	SessionID string
	// GuestTimeout bounds the guest-side connection attempt.
	GuestTimeout time.Duration
	// SettleMin/SettleMax bound the randomized delay before reconnecting
	// after a graceful close, to avoid a reconnect race against a peer
	// doing the same.
	SettleMin time.Duration
	SettleMax time.Duration
}

// DefaultConfig returns the reference tunables.
func DefaultConfig(sessionID string) Config {
	return Config{
		SessionID:    sessionID,
		GuestTimeout: 3500 * time.Millisecond,
		SettleMin:    250 * time.Millisecond,
		SettleMax:    500 * time.Millisecond,
	}
}

// Manager establishes and maintains exactly one bidirectional command
// channel with the other party, negotiating which side hosts and recovering
// from graceful disconnects.
type Manager struct {
	transport Transport
	config    Config
	localCfg  protocol.StreamConfig
	handler   SessionHandler
	clock     clockwork.Clock
}

// NewManager creates a connection manager. The handler must not be nil.
func NewManager(transport Transport, config Config, localCfg protocol.StreamConfig, handler SessionHandler, clock clockwork.Clock) *Manager {
	return &Manager{
		transport: transport,
		config:    config,
		localCfg:  localCfg,
		handler:   handler,
		clock:     clock,
	}
}

// Run negotiates, serves and renegotiates connections until the context is
// cancelled or the connection terminates ungracefully.
func (m *Manager) Run(ctx context.Context) error {
	for {
		session, err := m.negotiate(ctx)
		if err != nil {
			return err
		}

		log.Info().
			Str("session_id", m.config.SessionID).
			Str("peer_identity", session.ID()).
			Str("role", string(session.Role())).
			Msg("peer connection established")

		m.handler.SessionOpened(session, session.Role())

		// Local stream configuration goes out immediately upon open.
		if err := session.sendConfig(m.localCfg); err != nil {
			log.Error().Err(err).Msg("failed to send stream configuration")
			session.Close()
			m.handler.SessionClosed(ErrPeerDisconnected)
			continue
		}

		err = m.serve(ctx, session)
		session.Close()

		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, ErrPeerDisconnected):
			log.Info().Msg("peer disconnected gracefully, renegotiating")
			m.handler.SessionClosed(err)
			if err := m.settle(ctx); err != nil {
				return err
			}
		default:
			log.Error().Err(err).Msg("peer connection terminated")
			m.handler.SessionClosed(err)
			return fmt.Errorf("%w: %v", ErrPeerTerminated, err)
		}
	}
}

// negotiate runs the guest-then-host fallback loop until a channel is
// established or the context is cancelled.
func (m *Manager) negotiate(ctx context.Context) (*Session, error) {
	phase := PhaseAttemptGuest

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch phase {
		case PhaseAttemptGuest:
			dialCtx, cancel := context.WithTimeout(ctx, m.config.GuestTimeout)
			ch, err := m.transport.Dial(dialCtx, m.config.SessionID)
			cancel()
			if err == nil {
				return newSession(ch, RoleGuest, m.clock), nil
			}
			log.Debug().Err(err).Msg("guest attempt failed, falling back to host")
			phase = NextPhase(phase, OutcomeTimeout)

		case PhaseAttemptHost:
			listener, err := m.transport.Claim(ctx, m.config.SessionID)
			if errors.Is(err, ErrIdentifierTaken) {
				// A concurrent host won the race; connect to it instead.
				log.Debug().Msg("session identifier taken, falling back to guest")
				phase = NextPhase(phase, OutcomeTaken)
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("claim session identifier: %w", err)
			}

			ch, err := listener.Accept(ctx)
			listener.Close()
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				log.Debug().Err(err).Msg("host accept failed, retrying negotiation")
				phase = NextPhase(phase, OutcomeClosed)
				continue
			}
			return newSession(ch, RoleHost, m.clock), nil
		}
	}
}

// serve pumps inbound envelopes until the channel closes.
func (m *Manager) serve(ctx context.Context, session *Session) error {
	envelopes := make(chan protocol.Envelope)
	recvErr := make(chan error, 1)

	go func() {
		for {
			env, err := session.ch.Receive()
			if err != nil {
				recvErr <- err
				return
			}
			select {
			case envelopes <- env:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-recvErr:
			return err
		case env := <-envelopes:
			m.route(session, env)
		}
	}
}

func (m *Manager) route(session *Session, env protocol.Envelope) {
	switch env.Type {
	case protocol.EnvelopeConfig:
		log.Info().
			Str("stream_id", env.Config.StreamID).
			Str("start_timestamp", env.Config.StartTimestamp).
			Msg("received peer stream configuration")
		m.handler.RemoteConfig(*env.Config)

	case protocol.EnvelopeCommand:
		if session.acceptCommand(*env.Command) {
			m.handler.CommandAccepted(*env.Command)
		}
	}
}

// settle waits a randomized delay before reconnecting so two peers that
// both saw a graceful close do not collide in renegotiation.
func (m *Manager) settle(ctx context.Context) error {
	delay := m.config.SettleMin
	if jitter := m.config.SettleMax - m.config.SettleMin; jitter > 0 {
		delay += time.Duration(rand.Int63n(int64(jitter)))
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.clock.After(delay):
		return nil
	}
}
