package httpapi

import (
	"context"
	"net/http"
	"sync"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/solvegate/solvegate/internal/engine"
)

// eventHub fans engine events out to connected WebSocket clients (block
// pages, sensors, the control CLI). Slow clients drop events rather than
// stalling the engine.
type eventHub struct {
	mu          sync.Mutex
	subscribers map[chan engine.Event]struct{}
}

func newEventHub() *eventHub {
	return &eventHub{subscribers: map[chan engine.Event]struct{}{}}
}

func (h *eventHub) subscribe() chan engine.Event {
	ch := make(chan engine.Event, 16)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *eventHub) unsubscribe(ch chan engine.Event) {
	h.mu.Lock()
	delete(h.subscribers, ch)
	h.mu.Unlock()
}

func (h *eventHub) broadcast(event engine.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The feed is served on loopback for local UI surfaces; the bearer
		// token is the access control, not the Origin header.
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.log.Debugw("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ch := s.hub.subscribe()
	defer s.hub.unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-ch:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, conn, event)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
