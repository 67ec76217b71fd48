// Package live delivers alerts to connected websocket clients.
package live

import (
	"sync"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/jbellec/marketwatch/internal/alert"
)

// Message is the wire envelope pushed to clients.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Message types pushed over the alert stream.
const (
	MessageTypeAlert = "alert"
	MessageTypePing  = "ping"
)

// Registry tracks the active connections per user. Delivery is a capability
// lookup: the dispatcher asks for a user's connections at send time instead
// of holding observer state of its own.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]map[*Client]struct{}
	logger *zap.Logger
}

// NewRegistry constructs a Registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		conns:  make(map[string]map[*Client]struct{}),
		logger: logger,
	}
}

// Connected reports whether the user has at least one live connection.
func (r *Registry) Connected(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0
}

// Push encodes the alert and hands it to every live connection of the
// owning user. It never blocks: a client whose send buffer is full misses
// the push and recovers via the history query on reconnect.
func (r *Registry) Push(a alert.Alert) {
	payload, err := json.Marshal(Message{Type: MessageTypeAlert, Data: a})
	if err != nil {
		r.logger.Error("encode alert message failed", zap.Error(err))
		return
	}

	r.mu.RLock()
	clients := make([]*Client, 0, len(r.conns[a.UserID]))
	for c := range r.conns[a.UserID] {
		clients = append(clients, c)
	}
	r.mu.RUnlock()

	for _, c := range clients {
		if !c.trySend(payload) {
			r.logger.Warn("live delivery dropped due to slow client",
				zap.String("user_id", a.UserID),
				zap.String("alert_id", a.ID),
			)
		}
	}
}

func (r *Registry) register(c *Client) {
	r.mu.Lock()
	set, ok := r.conns[c.userID]
	if !ok {
		set = make(map[*Client]struct{})
		r.conns[c.userID] = set
	}
	set[c] = struct{}{}
	total := len(set)
	r.mu.Unlock()
	r.logger.Info("websocket client connected",
		zap.String("user_id", c.userID),
		zap.Int("user_clients", total),
	)
}

func (r *Registry) unregister(c *Client) {
	r.mu.Lock()
	if set, ok := r.conns[c.userID]; ok {
		if _, present := set[c]; present {
			delete(set, c)
			close(c.send)
		}
		if len(set) == 0 {
			delete(r.conns, c.userID)
		}
	}
	r.mu.Unlock()
	r.logger.Info("websocket client disconnected", zap.String("user_id", c.userID))
}
