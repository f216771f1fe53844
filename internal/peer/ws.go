package peer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/reelsync/reelsync/internal/protocol"
)

const (
	wsPath          = "/sync"
	wsWriteTimeout  = 10 * time.Second
	wsReadTimeout   = 60 * time.Second
	wsPingInterval  = 30 * time.Second
	wsMessageLimit  = 8192
	wsAcceptBacklog = 1
)

// WSTransport realizes the connect-by-identifier contract over WebSocket.
// The session identifier is the dialable peer address; claiming it means
// binding the listener, so exactly one host can win the negotiation race.
type WSTransport struct{}

// NewWSTransport creates the production transport.
func NewWSTransport() *WSTransport {
	return &WSTransport{}
}

// Dial attempts to reach a host listening under the session identifier.
// The context carries the guest attempt's bounded timeout.
func (t *WSTransport) Dial(ctx context.Context, sessionID string) (Channel, error) {
	dialer := websocket.Dialer{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	url := fmt.Sprintf("ws://%s%s", sessionID, wsPath)
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrConnectionTimeout, url, err)
	}
	return newWSChannel(conn), nil
}

// Claim binds the session identifier's address and waits for the single
// inbound peer connection.
func (t *WSTransport) Claim(ctx context.Context, sessionID string) (Listener, error) {
	netListener, err := net.Listen("tcp", sessionID)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("%w: %s", ErrIdentifierTaken, sessionID)
		}
		return nil, fmt.Errorf("listen on %s: %w", sessionID, err)
	}

	wl := &wsListener{
		accepted: make(chan *websocket.Conn, wsAcceptBacklog),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc(wsPath, wl.handleSync)
	wl.server = &http.Server{Handler: mux}

	go func() {
		if err := wl.server.Serve(netListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Debug().Err(err).Msg("session listener stopped")
		}
	}()

	log.Debug().Str("addr", sessionID).Msg("claimed session identifier")
	return wl, nil
}

type wsListener struct {
	server   *http.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	taken    bool
	accepted chan *websocket.Conn
}

func (l *wsListener) handleSync(w http.ResponseWriter, r *http.Request) {
	l.mu.Lock()
	if l.taken {
		l.mu.Unlock()
		// Strictly two-party: a second guest is turned away.
		http.Error(w, "session already joined", http.StatusConflict)
		return
	}
	l.taken = true
	l.mu.Unlock()

	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade peer connection")
		l.mu.Lock()
		l.taken = false
		l.mu.Unlock()
		return
	}
	l.accepted <- conn
}

func (l *wsListener) Accept(ctx context.Context) (Channel, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case conn := <-l.accepted:
		return newWSChannel(conn), nil
	}
}

func (l *wsListener) Close() error {
	// Upgraded connections are hijacked and survive the server shutdown.
	return l.server.Close()
}

// wsChannel adapts a websocket connection to the Channel contract, with
// ping/pong keepalive and graceful-vs-error close classification.
type wsChannel struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
}

func newWSChannel(conn *websocket.Conn) *wsChannel {
	ch := &wsChannel{
		conn: conn,
		done: make(chan struct{}),
	}

	conn.SetReadLimit(wsMessageLimit)
	conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	go ch.pingLoop()
	return ch
}

func (c *wsChannel) pingLoop() {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *wsChannel) Send(env protocol.Envelope) error {
	data, err := protocol.Encode(env)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write envelope: %w", err)
	}
	return nil
}

func (c *wsChannel) Receive() (protocol.Envelope, error) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return protocol.Envelope{}, ErrPeerDisconnected
			}
			return protocol.Envelope{}, fmt.Errorf("%w: %v", ErrPeerTerminated, err)
		}
		c.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		env, err := protocol.Decode(data)
		if err != nil {
			// A malformed message is not worth tearing the session down for.
			log.Warn().Err(err).Msg("dropping malformed envelope")
			continue
		}
		return env, nil
	}
}

func (c *wsChannel) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}
