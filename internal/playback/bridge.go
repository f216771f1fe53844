package playback

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/reelsync/reelsync/internal/protocol"
)

// ErrNoPlayer indicates no player page is attached to the bridge yet.
var ErrNoPlayer = errors.New("no player attached")

const (
	bridgeWriteTimeout = 10 * time.Second
	bridgeReadTimeout  = 60 * time.Second
	bridgePingInterval = 30 * time.Second
	bridgeMessageLimit = 4096
)

// playerOp is an operation sent to the player page.
type playerOp struct {
	Op       string              `json:"op"`
	Position float64             `json:"position,omitempty"`
	Track    protocol.AudioTrack `json:"track,omitempty"`
}

// playerEvent is feedback received from the player page. ActuallyReady is a
// pointer so an event that omits the field leaves cached readiness alone.
type playerEvent struct {
	Event         string     `json:"event"`
	State         *State     `json:"state,omitempty"`
	ActuallyReady *bool      `json:"actuallyReady,omitempty"`
	Starved       []SourceID `json:"starved,omitempty"`
}

// Bridge implements Engine on top of a WebSocket to the browser player that
// holds the actual video elements. Operations are forwarded to the player;
// the player streams state, readiness and buffering feedback back, which
// the bridge caches and relays to its listener.
type Bridge struct {
	upgrader websocket.Upgrader

	mu            sync.RWMutex
	conn          *websocket.Conn
	writeMu       sync.Mutex
	state         State
	actuallyReady bool
	starved       []SourceID
	listener      Listener
}

// NewBridge creates an unattached bridge. A player connects via the
// /ws/player route.
func NewBridge() *Bridge {
	return &Bridge{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The player page is served from the same machine.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		state: State{Status: StatusPaused},
	}
}

// SetListener registers the consumer of engine feedback.
func (b *Bridge) SetListener(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listener = l
}

// RegisterRoutes registers the player WebSocket endpoint.
func (b *Bridge) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/player", b.handlePlayer)
}

func (b *Bridge) handlePlayer(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade player connection")
		return
	}

	b.mu.Lock()
	if b.conn != nil {
		// A new player page replaces a stale one (e.g. after a refresh).
		log.Warn().Msg("replacing existing player connection")
		b.conn.Close()
	}
	b.conn = conn
	b.mu.Unlock()

	log.Info().Str("remote", r.RemoteAddr).Msg("player attached")

	go b.pingLoop(conn)
	b.readLoop(conn)
}

func (b *Bridge) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(bridgePingInterval)
	defer ticker.Stop()

	for range ticker.C {
		b.writeMu.Lock()
		conn.SetWriteDeadline(time.Now().Add(bridgeWriteTimeout))
		err := conn.WriteMessage(websocket.PingMessage, nil)
		b.writeMu.Unlock()
		if err != nil {
			return
		}
	}
}

func (b *Bridge) readLoop(conn *websocket.Conn) {
	defer func() {
		b.mu.Lock()
		if b.conn == conn {
			b.conn = nil
		}
		b.mu.Unlock()
		conn.Close()
		log.Info().Msg("player detached")
	}()

	conn.SetReadLimit(bridgeMessageLimit)
	conn.SetReadDeadline(time.Now().Add(bridgeReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(bridgeReadTimeout))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Msg("player connection lost")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(bridgeReadTimeout))

		var ev playerEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Warn().Err(err).Msg("malformed player event")
			continue
		}
		b.handleEvent(ev)
	}
}

func (b *Bridge) handleEvent(ev playerEvent) {
	b.mu.Lock()
	if ev.State != nil {
		b.state = *ev.State
	}
	if ev.ActuallyReady != nil {
		b.actuallyReady = *ev.ActuallyReady
	}
	if ev.Starved != nil {
		b.starved = ev.Starved
	}
	listener := b.listener
	b.mu.Unlock()

	if listener == nil {
		return
	}

	switch ev.Event {
	case "ready":
		listener.PlayersReady()
	case "state":
		if ev.State != nil {
			listener.EngineStateChanged(*ev.State)
		}
	case "bufferingStarted":
		listener.BufferingStarted(ev.Starved)
	case "bufferingComplete":
		listener.BufferingComplete()
	default:
		log.Warn().Str("event", ev.Event).Msg("unknown player event")
	}
}

func (b *Bridge) send(op playerOp) error {
	b.mu.RLock()
	conn := b.conn
	b.mu.RUnlock()
	if conn == nil {
		return ErrNoPlayer
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(bridgeWriteTimeout))
	if err := conn.WriteJSON(op); err != nil {
		return fmt.Errorf("send %s to player: %w", op.Op, err)
	}
	return nil
}

// Play starts playback on the player.
func (b *Bridge) Play() error {
	return b.send(playerOp{Op: "play"})
}

// Pause pauses the player.
func (b *Bridge) Pause() error {
	return b.send(playerOp{Op: "pause"})
}

// Seek moves the player to a unified-timeline position.
func (b *Bridge) Seek(position float64) error {
	return b.send(playerOp{Op: "seek", Position: position})
}

// SwitchAudio routes audio to the given track.
func (b *Bridge) SwitchAudio(track protocol.AudioTrack) error {
	return b.send(playerOp{Op: "switchAudio", Track: track})
}

// State returns the last state reported by the player.
func (b *Bridge) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// ActuallyReady returns the last buffered-range readiness reported by the
// player.
func (b *Bridge) ActuallyReady() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.actuallyReady
}

// Starved returns the sources the player last reported out of data.
func (b *Bridge) Starved() []SourceID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.starved
}
