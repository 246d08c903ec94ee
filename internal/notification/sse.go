package notification

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/coreledger/platform/internal/common"
)

// SSEHub holds one outbound buffered channel per subscribed user. An HTTP
// handler (outside this package) ranges over Subscribe's channel, writing
// each payload as a `data: ...\n\n` SSE frame.
type SSEHub struct {
	mu          sync.Mutex
	subscribers map[uuid.UUID]map[chan []byte]struct{}
}

func NewSSEHub() *SSEHub {
	return &SSEHub{subscribers: make(map[uuid.UUID]map[chan []byte]struct{})}
}

// Subscribe registers a new stream for userID and returns it plus an
// unsubscribe function the HTTP handler must call when the client
// disconnects.
func (h *SSEHub) Subscribe(userID uuid.UUID) (stream chan []byte, unsubscribe func()) {
	ch := make(chan []byte, 32)

	h.mu.Lock()
	if h.subscribers[userID] == nil {
		h.subscribers[userID] = make(map[chan []byte]struct{})
	}
	h.subscribers[userID][ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if subs, ok := h.subscribers[userID]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(h.subscribers, userID)
			}
		}
	}
}

func (h *SSEHub) publish(userID uuid.UUID, payload []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.subscribers[userID]
	if !ok || len(subs) == 0 {
		return false
	}
	for ch := range subs {
		select {
		case ch <- payload:
		default:
		}
	}
	return true
}

// SSEAdapter delivers ChannelSSE notifications through an SSEHub.
type SSEAdapter struct {
	hub *SSEHub
}

func NewSSEAdapter(hub *SSEHub) *SSEAdapter {
	return &SSEAdapter{hub: hub}
}

func (a *SSEAdapter) Send(ctx context.Context, n *Notification) error {
	payload, err := json.Marshal(map[string]string{"subject": n.Subject, "body": n.Body})
	if err != nil {
		return err
	}
	if !a.hub.publish(n.UserID, payload) {
		return common.NewDependencyUnavailable("no live sse stream for user", "user_id", n.UserID)
	}
	return nil
}
