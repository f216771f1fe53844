package peer

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/reelsync/reelsync/internal/protocol"
	"github.com/reelsync/reelsync/internal/vclock"
)

// Sender is the outbound half of a session, handed to the coordinator so it
// can emit commands without knowing about transports.
type Sender interface {
	SendCommand(cmd protocol.Command) error
}

// Session is one established connection to the peer. It owns this
// connection's identity and vector clock; both are created fresh per
// connection and discarded on reconnect.
type Session struct {
	id    string
	role  Role
	ch    Channel
	clock clockwork.Clock

	mu          sync.Mutex
	vc          *vclock.Clock
	lastApplied vclock.Snapshot
	lastSender  string
}

func newSession(ch Channel, role Role, clock clockwork.Clock) *Session {
	id := uuid.New().String()
	return &Session{
		id:    id,
		role:  role,
		ch:    ch,
		clock: clock,
		vc:    vclock.New(id),
	}
}

// ID returns this connection's peer identity.
func (s *Session) ID() string {
	return s.id
}

// Role returns which side of the negotiation this peer took.
func (s *Session) Role() Role {
	return s.role
}

// SendCommand stamps the command with a fresh clock tick, the local
// identity and a send timestamp, then transmits it. The stamped clock also
// becomes the last applied one, so a concurrent command arriving from the
// peer is tie-broken identically on both sides.
func (s *Session) SendCommand(cmd protocol.Command) error {
	s.mu.Lock()
	snap := s.vc.Tick()
	cmd.Clock = snap
	cmd.SenderID = s.id
	cmd.SendTimestamp = s.clock.Now()
	s.lastApplied = snap
	s.lastSender = s.id
	s.mu.Unlock()

	if err := s.ch.Send(protocol.CommandEnvelope(cmd)); err != nil {
		return fmt.Errorf("send %s: %w", cmd.Type, err)
	}

	log.Debug().
		Str("command", string(cmd.Type)).
		Str("sender", s.id).
		Msg("command sent")
	return nil
}

// sendConfig announces the local stream configuration to the peer.
func (s *Session) sendConfig(cfg protocol.StreamConfig) error {
	if err := s.ch.Send(protocol.ConfigEnvelope(cfg)); err != nil {
		return fmt.Errorf("send config: %w", err)
	}
	return nil
}

// acceptCommand runs the causal ordering check on an inbound command.
// Commands without a clock are unorderable and never applied; stale or
// tie-break-losing commands are dropped. Accepted commands merge into the
// local clock and become the new last applied command.
func (s *Session) acceptCommand(cmd protocol.Command) bool {
	if len(cmd.Clock) == 0 {
		log.Warn().
			Str("command", string(cmd.Type)).
			Str("sender", cmd.SenderID).
			Msg("dropping unorderable command without clock")
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !vclock.ShouldAccept(cmd.Clock, s.lastApplied, cmd.SenderID, s.lastSender) {
		// Expected and benign: the peer sent this before seeing our latest.
		log.Debug().
			Str("command", string(cmd.Type)).
			Str("sender", cmd.SenderID).
			Msg("dropping stale command")
		return false
	}

	s.vc.Merge(cmd.Clock)
	s.lastApplied = cmd.Clock
	s.lastSender = cmd.SenderID
	return true
}

// Close closes the underlying channel gracefully.
func (s *Session) Close() error {
	return s.ch.Close()
}
