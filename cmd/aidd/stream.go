package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"aidchain/core/events"
	"aidchain/core/types"
	"aidchain/observability/logging"
)

const (
	wsWriteTimeout     = 10 * time.Second
	subscriberCapacity = 64
)

// eventHub fans committed ledger events out to websocket subscribers.
// Subscribers that fall behind lose events instead of stalling the ledger.
type eventHub struct {
	mu     sync.Mutex
	subs   map[chan *types.Event]struct{}
	logger *slog.Logger
}

func newEventHub(logger *slog.Logger) *eventHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &eventHub{subs: make(map[chan *types.Event]struct{}), logger: logger}
}

// Emit implements events.Emitter.
func (h *eventHub) Emit(evt events.Event) {
	rendered := publicEvent(events.Render(evt))
	if rendered == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- rendered:
		default:
			h.logger.Warn("event stream subscriber lagging; event dropped", "type", rendered.Type)
		}
	}
}

func (h *eventHub) subscribe() (<-chan *types.Event, func()) {
	ch := make(chan *types.Event, subscriberCapacity)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
}

func (h *eventHub) subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// publicEvent strips beneficiary identifiers and purchase evidence.
func publicEvent(evt *types.Event) *types.Event {
	if evt == nil {
		return nil
	}
	out := &types.Event{Type: evt.Type, Attributes: make(map[string]string, len(evt.Attributes))}
	for key, value := range evt.Attributes {
		if logging.IsSensitive(key) {
			continue
		}
		out.Attributes[key] = value
	}
	return out
}

func (s *service) handleEventStream(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		s.fail(w, http.StatusNotFound, errStreamDisabled)
		return
	}
	prefix := strings.TrimSpace(r.URL.Query().Get("type"))
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	updates, cancel := s.hub.subscribe()
	defer cancel()
	ctx := conn.CloseRead(r.Context())
	if err := streamEvents(ctx, conn, updates, prefix); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func streamEvents(ctx context.Context, conn *websocket.Conn, updates <-chan *types.Event, prefix string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-updates:
			if !ok {
				return nil
			}
			if prefix != "" && !strings.HasPrefix(evt.Type, prefix) {
				continue
			}
			data, err := json.Marshal(evt)
			if err != nil {
				return err
			}
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err = conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}
