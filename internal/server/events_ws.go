package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"github.com/aristath/coindeck/internal/events"
)

// allStreamEvents lists every event type pushed to stream clients.
var allStreamEvents = []events.EventType{
	events.PriceUpdated,
	events.LotAdded,
	events.LotSold,
	events.LotUpdated,
	events.BalanceChanged,
	events.WatchlistChanged,
	events.BackupCompleted,
}

// handleEventsWS handles GET /api/events/ws - pushes bus events to the
// client over a WebSocket. An optional ?types=a,b query narrows the
// subscription.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The API already allows any origin through CORS
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("WebSocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	var allowedTypes map[events.EventType]bool
	if typesFilter := r.URL.Query().Get("types"); typesFilter != "" {
		allowedTypes = make(map[events.EventType]bool)
		for _, t := range strings.Split(typesFilter, ",") {
			allowedTypes[events.EventType(strings.TrimSpace(t))] = true
		}
	}

	s.log.Info().Msg("Client connected to event stream")

	// Buffered so a slow client drops events instead of blocking publishers
	eventChan := make(chan *events.Event, 100)
	handler := func(event *events.Event) {
		if allowedTypes != nil && !allowedTypes[event.Type] {
			return
		}
		select {
		case eventChan <- event:
		default:
			s.log.Warn().Str("event_type", string(event.Type)).Msg("Event channel full, dropping event")
		}
	}

	unsubscribes := make([]func(), 0, len(allStreamEvents))
	for _, eventType := range allStreamEvents {
		unsubscribes = append(unsubscribes, s.bus.Subscribe(eventType, handler))
	}
	defer func() {
		for _, unsubscribe := range unsubscribes {
			unsubscribe()
		}
	}()

	ctx := r.Context()
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Client disconnected from event stream")
			conn.Close(websocket.StatusNormalClosure, "")
			return

		case event := <-eventChan:
			if err := s.writeStreamEvent(ctx, conn, event); err != nil {
				s.log.Debug().Err(err).Msg("WebSocket write failed, closing stream")
				return
			}

		case <-heartbeat.C:
			hb := &events.Event{Type: "heartbeat", Timestamp: time.Now().UTC()}
			if err := s.writeStreamEvent(ctx, conn, hb); err != nil {
				return
			}
		}
	}
}

// writeStreamEvent marshals an event and writes it with a send timeout.
func (s *Server) writeStreamEvent(ctx context.Context, conn *websocket.Conn, event *events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to marshal event")
		return nil
	}

	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return conn.Write(writeCtx, websocket.MessageText, data)
}
