package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"driver-console/internal/general/contracts"
	"driver-console/internal/general/logger"
)

var ErrAlreadyConnected = errors.New("event channel already connected")

// WSChannel streams pushed events over a WebSocket. The read loop feeds
// the dispatcher; a background watcher redials with exponential backoff
// when the stream dies.
type WSChannel struct {
	rawURL string
	log    *logger.Logger
	disp   *dispatcher

	mu     sync.Mutex
	conn   *websocket.Conn
	dialed bool
	userID string
	role   string

	logCtx    context.Context
	closed    chan struct{}
	reconnect chan struct{}
}

func NewWSChannel(rawURL string, log *logger.Logger) *WSChannel {
	return &WSChannel{
		rawURL: rawURL,
		log:    log,
		disp:   newDispatcher(),
	}
}

func (c *WSChannel) On(event string, h Handler) { c.disp.On(event, h) }
func (c *WSChannel) Off(event string)           { c.disp.Off(event) }

// Connect dials the stream and starts the read loop and the reconnect
// watcher. Calling Connect on a live channel is an error; Disconnect
// first.
func (c *WSChannel) Connect(ctx context.Context, userID, role string) error {
	c.mu.Lock()
	if c.dialed {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.dialed = true
	c.userID = userID
	c.role = role
	c.logCtx = context.WithoutCancel(ctx)
	c.closed = make(chan struct{})
	c.reconnect = make(chan struct{}, 1)
	c.mu.Unlock()

	if err := c.dialOnce(ctx); err != nil {
		c.mu.Lock()
		c.dialed = false
		c.mu.Unlock()
		return err
	}

	go c.watch()

	return nil
}

// Disconnect tears the channel down. Safe to call repeatedly.
func (c *WSChannel) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dialed {
		return
	}
	c.dialed = false

	select {
	case <-c.closed:
		// already closed
	default:
		close(c.closed)
	}

	if c.conn != nil {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = c.conn.Close()
		c.conn = nil
	}
}

// --- internals ---

// dialOnce opens one WebSocket and hands it to a fresh read loop.
func (c *WSChannel) dialOnce(ctx context.Context) error {
	u, err := url.Parse(c.rawURL)
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("user_id", c.userID)
	q.Set("role", c.role)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = conn
	c.mu.Unlock()

	c.log.Info(c.logCtx, "event_channel_connected", "WebSocket event channel established", map[string]any{"user_id": c.userID})

	go c.readLoop(conn)

	return nil
}

// readLoop drains one connection until it dies, then signals reconnect.
func (c *WSChannel) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
				return
			default:
			}
			c.log.Error(c.logCtx, "event_channel_read_failed", "WebSocket read failed", err, nil)
			select {
			case c.reconnect <- struct{}{}:
			default:
				// already enqueued; no-op
			}
			return
		}

		var frame contracts.Frame
		if err := json.Unmarshal(raw, &frame); err != nil || frame.Event == "" {
			c.log.Debug(c.logCtx, "event_frame_discarded", "Frame without an event name", map[string]any{"size": len(raw)})
			continue
		}
		c.disp.dispatch(c.logCtx, c.log, frame.Event, frame.Data)
	}
}

// watch redials with exponential backoff after stream failures.
func (c *WSChannel) watch() {
	backoff := time.Second
	for {
		select {
		case <-c.closed:
			return
		case <-c.reconnect:
			for {
				select {
				case <-c.closed:
					return
				default:
				}

				err := c.dialOnce(c.logCtx)
				if err == nil {
					backoff = time.Second
					c.log.Info(c.logCtx, "event_channel_reconnected", "WebSocket event channel re-established", nil)
					break
				}

				c.log.Error(c.logCtx, "retry_attempted", "Failed to redial event channel", err, nil)

				time.Sleep(backoff)
				if backoff < 30*time.Second {
					backoff *= 2
					if backoff > 30*time.Second {
						backoff = 30 * time.Second
					}
				}
			}
		}
	}
}
