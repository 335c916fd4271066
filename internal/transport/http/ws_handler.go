package http

import (
	"encoding/json"
	"net/http"

	"drill-review-service/internal/app"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSHandler streams a session's leaderboard over a websocket.
type WSHandler struct {
	hub      *app.LeaderboardHub
	source   app.LeaderboardSource
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *app.LeaderboardHub, source app.LeaderboardSource, log *zap.Logger) *WSHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHandler{
		hub:    hub,
		source: source,
		log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and pushes a "leaderboard" message with the
// current standings, then one after every answer change in the session.
// Clients may send {"type":"refresh"} to get a fresh snapshot on demand.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "missing sessionId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	updates, cancel, err := h.hub.Subscribe(r.Context(), sessionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Only the writer goroutine touches conn for writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", zap.Error(err))
				// Unblocks the read loop below.
				_ = conn.Close()
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				if !enqueue(send, writerDone, outboundMessage[any]{Type: "leaderboard", Payload: update}) {
					return
				}
			case <-closeSignals:
				return
			case <-writerDone:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		var reply outboundMessage[any]
		switch inbound.Type {
		case "refresh":
			board, err := h.source.Compute(r.Context(), sessionID)
			if err != nil {
				reply = outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			} else {
				reply = outboundMessage[any]{Type: "leaderboard", Payload: board}
			}
		default:
			reply = outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
		if !enqueue(send, writerDone, reply) {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// enqueue hands msg to the writer goroutine. It reports false once the writer
// has stopped, so callers never block on a send nobody will drain.
func enqueue(send chan<- outboundMessage[any], writerDone <-chan struct{}, msg outboundMessage[any]) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	}
}
