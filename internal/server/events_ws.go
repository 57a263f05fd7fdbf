package server

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/jlancaster7/allocator-backend/internal/events"
)

// wsHeartbeatInterval keeps idle connections alive through proxies
const wsHeartbeatInterval = 30 * time.Second

// EventsHandler streams allocation lifecycle events over WebSocket
type EventsHandler struct {
	bus *events.Bus
	log zerolog.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(bus *events.Bus, log zerolog.Logger) *EventsHandler {
	return &EventsHandler{
		bus: bus,
		log: log.With().Str("component", "events_ws").Logger(),
	}
}

// HandleWebSocket upgrades the connection and forwards bus events until
// the client disconnects.
// GET /api/events/ws
func (h *EventsHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // Same-origin policy handled by CORS middleware
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	ctx := r.Context()
	eventCh, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()

	h.log.Info().Msg("Client connected to event stream")

	if err := wsjson.Write(ctx, conn, map[string]interface{}{
		"type":      "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return
	}

	heartbeat := time.NewTicker(wsHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Client disconnected from event stream")
			conn.Close(websocket.StatusNormalClosure, "")
			return

		case event, ok := <-eventCh:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "bus closed")
				return
			}
			if err := wsjson.Write(ctx, conn, event); err != nil {
				h.log.Debug().Err(err).Msg("Event write failed, dropping client")
				return
			}

		case <-heartbeat.C:
			if err := wsjson.Write(ctx, conn, map[string]interface{}{
				"type":      "heartbeat",
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			}); err != nil {
				return
			}
		}
	}
}
