package notification

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/coreledger/platform/internal/common"
)

// socketMessage is the wire shape pushed to a connected socket client.
type socketMessage struct {
	Channel   Channel         `json:"channel"`
	Subject   string          `json:"subject,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

// SocketClient is one connected socket, registered under its owning userID.
// Adapted from the teacher's websocket.Client: LobbyID-scoped rooms become
// a single userID key since this spec's socket channel routes to a user,
// not a lobby.
type SocketClient struct {
	UserID uuid.UUID
	Conn   *websocket.Conn
	Send   chan *socketMessage
}

// SocketHub fans socket-channel notifications out to every connection a
// user currently holds open (a user may have more than one device
// connected). Adapted from the teacher's WebSocketHub.Run event loop,
// narrowed from lobby-keyed broadcast rooms to per-user delivery.
type SocketHub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]map[*SocketClient]struct{}

	register   chan *SocketClient
	unregister chan *SocketClient
}

// NewSocketClient allocates a SocketClient ready to Register: conn may be
// nil in tests that only exercise hub bookkeeping, since deliverTargeted
// never touches it directly.
func NewSocketClient(userID uuid.UUID, conn *websocket.Conn) *SocketClient {
	return &SocketClient{UserID: userID, Conn: conn, Send: make(chan *socketMessage, 16)}
}

func NewSocketHub() *SocketHub {
	return &SocketHub{
		clients:    make(map[uuid.UUID]map[*SocketClient]struct{}),
		register:   make(chan *SocketClient, 256),
		unregister: make(chan *SocketClient, 256),
	}
}

func (h *SocketHub) Register(c *SocketClient)   { h.register <- c }
func (h *SocketHub) Unregister(c *SocketClient) { h.unregister <- c }

// Run drives the hub's event loop until ctx is cancelled.
func (h *SocketHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		}
	}
}

func (h *SocketHub) addClient(c *SocketClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.UserID] == nil {
		h.clients[c.UserID] = make(map[*SocketClient]struct{})
	}
	h.clients[c.UserID][c] = struct{}{}
	slog.Info("notification socket connected", "user_id", c.UserID)
}

func (h *SocketHub) removeClient(c *SocketClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.clients[c.UserID]; ok {
		if _, present := conns[c]; present {
			delete(conns, c)
			close(c.Send)
		}
		if len(conns) == 0 {
			delete(h.clients, c.UserID)
		}
	}
}

func (h *SocketHub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conns := range h.clients {
		for c := range conns {
			close(c.Send)
		}
	}
	h.clients = make(map[uuid.UUID]map[*SocketClient]struct{})
}

func (h *SocketHub) deliverTargeted(userID uuid.UUID, msg *socketMessage) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conns, ok := h.clients[userID]
	if !ok || len(conns) == 0 {
		return false
	}
	for c := range conns {
		select {
		case c.Send <- msg:
		default:
			slog.Warn("notification socket client buffer full", "user_id", userID)
		}
	}
	return true
}

// SocketAdapter delivers ChannelSocket notifications through a SocketHub.
// Delivery requires at least one live connection for the user; spec §4.12
// treats "no resolvable recipient" as a failed attempt rather than silently
// dropping it.
type SocketAdapter struct {
	hub *SocketHub
}

func NewSocketAdapter(hub *SocketHub) *SocketAdapter {
	return &SocketAdapter{hub: hub}
}

func (a *SocketAdapter) Send(ctx context.Context, n *Notification) error {
	payload, err := json.Marshal(map[string]string{"subject": n.Subject, "body": n.Body})
	if err != nil {
		return err
	}
	msg := &socketMessage{Channel: ChannelSocket, Subject: n.Subject, Payload: payload}

	if !a.hub.deliverTargeted(n.UserID, msg) {
		return common.NewDependencyUnavailable("no live socket connection for user", "user_id", n.UserID)
	}
	return nil
}
