package live

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jbellec/marketwatch/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checks are the edge proxy's job; the service itself accepts
	// any origin carrying valid credentials.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Client is one websocket connection owned by a user.
type Client struct {
	userID   string
	conn     *websocket.Conn
	send     chan []byte
	registry *Registry
	logger   *zap.Logger
}

// Serve upgrades the request and runs the connection's read/write pumps.
// It blocks until the connection closes.
func (r *Registry) Serve(w http.ResponseWriter, req *http.Request, userID string) error {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		return err
	}
	c := &Client{
		userID:   userID,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		registry: r,
		logger:   r.logger,
	}
	r.register(c)
	metrics.IncLiveClients()
	defer metrics.DecLiveClients()

	go c.writePump()
	c.readPump()
	return nil
}

// trySend queues a payload without blocking.
func (c *Client) trySend(payload []byte) bool {
	defer func() {
		// Losing a race with unregister closes the channel; treat the
		// resulting panic as a failed send.
		_ = recover()
	}()
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// readPump consumes (and discards) client frames so pings, pongs, and close
// handshakes are processed. It unregisters the client on exit.
func (c *Client) readPump() {
	defer func() {
		c.registry.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read failed", zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}
	}
}

// writePump drains the send channel onto the wire and keeps the connection
// alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
