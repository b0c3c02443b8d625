package relay

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/parleyhq/service-social-go/internal/session"
	userentity "github.com/parleyhq/service-social-go/internal/user/entity"
)

// Authenticator validates a bare token the same way the HTTP middleware
// does. Implemented by session.Guard.
type Authenticator interface {
	AuthenticateToken(ctx context.Context, token string) (*session.Identity, error)
}

// FriendDirectory answers FETCH_USER_DATA queries. Implemented by the
// friend service.
type FriendDirectory interface {
	ListFriends(ctx context.Context, userID string) ([]userentity.PublicProfile, error)
}

// Client is the bidirectional, fire-and-forget channel to the realtime
// gateway. Outbound events are best-effort: transport failures are logged
// and swallowed, never surfaced to the triggering mutation. The read loop
// answers the gateway's VERIFY_TOKEN and FETCH_USER_DATA requests and must
// never crash; every dispatch failure degrades to a negative or empty
// response.
type Client struct {
	mu   sync.Mutex
	url  string
	name string
	conn *websocket.Conn
	done chan struct{}

	guard   Authenticator
	friends FriendDirectory
	logger  *zap.SugaredLogger
}

// dispatchTimeout bounds the storage round trips behind one inbound request.
const dispatchTimeout = 10 * time.Second

func NewClient(url, name string, guard Authenticator, friends FriendDirectory, logger *zap.SugaredLogger) *Client {
	return &Client{
		url:     url,
		name:    name,
		guard:   guard,
		friends: friends,
		logger:  logger,
	}
}

// Connect establishes the websocket connection and starts the dispatch
// loop.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}
	c.conn = conn
	c.done = make(chan struct{})

	go c.readLoop(conn)
	return nil
}

// Disconnect closes the connection and stops the dispatch loop.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return
	}
	close(c.done)
	_ = c.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	c.conn.Close()
	c.conn = nil
}

// EmitEvent sends a directed event to the gateway for delivery to one
// client. Implements the Notifier interface of the friend service.
func (c *Client) EmitEvent(client, event string, data map[string]any) {
	payload := map[string]any{
		"type":   TypeEvent,
		"event":  event,
		"client": client,
	}
	for k, v := range data {
		payload[k] = v
	}
	c.send(payload)
}

// send writes one envelope, logging and swallowing any failure.
func (c *Client) send(payload map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		c.logger.Warnw("relay not connected, dropping message", "payload", payload)
		return
	}
	if err := c.conn.WriteJSON(Envelope{From: c.name, Payload: payload}); err != nil {
		c.logger.Warnw("relay write failed", "err", err)
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		var env inboundEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			c.logger.Warnw("relay read failed, stopping dispatch loop", "err", err)
			return
		}
		c.dispatch(&env)
	}
}
