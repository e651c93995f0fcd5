package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/playperu/blindtasting/internal/tasting"
)

// WSCommand is a command sent over the session WebSocket.
type WSCommand struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	HostPin string          `json:"hostPin,omitempty"`
}

// WSReply answers each WSCommand with the new state or the error. Session
// events, including those for the client's own commands, arrive as replies
// carrying only Event.
type WSReply struct {
	State  *tasting.State  `json:"state,omitempty"`
	Error  *ErrorResponse  `json:"error,omitempty"`
	Event  json.RawMessage `json:"event,omitempty"`
	Status int             `json:"status"`
}

// handleWS upgrades to a WebSocket on which the client sends commands and
// receives the resulting state. The current state is sent on connect, and
// every session event is forwarded until the session is deleted.
func handleWS(logger *slog.Logger, sessions Sessions, events Subscriber) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := sessionID(r)

		ch := events.Subscribe(id)
		defer events.Unsubscribe(id, ch)

		state, err := sessions.Get(r.Context(), id)
		if err != nil {
			writeSessionError(w, logger, err)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Error("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		ctx, cancel := context.WithTimeout(r.Context(), 4*time.Hour)
		defer cancel()

		if err := wsjson.Write(ctx, conn, WSReply{State: &state, Status: http.StatusOK}); err != nil {
			logger.Debug("websocket write failed", "error", err)
			return
		}

		// Reads run on their own goroutine so events can be written while
		// the client is idle. All writes stay on this goroutine.
		msgs := make(chan WSCommand)
		go func() {
			defer cancel()
			for {
				var msg WSCommand
				if err := wsjson.Read(ctx, conn, &msg); err != nil {
					if websocket.CloseStatus(err) != websocket.StatusNormalClosure && !errors.Is(err, context.Canceled) {
						logger.Debug("websocket read ended", "session_id", id, "error", err)
					}
					return
				}
				select {
				case msgs <- msg:
				case <-ctx.Done():
					return
				}
			}
		}()

		for {
			var reply WSReply
			select {
			case <-ctx.Done():
				return
			case msg := <-msgs:
				reply = applyWS(ctx, logger, sessions, id, msg)
			case data, ok := <-ch:
				if !ok {
					conn.Close(websocket.StatusGoingAway, "session deleted")
					return
				}
				reply = WSReply{Event: data, Status: http.StatusOK}
			}

			if err := wsjson.Write(ctx, conn, reply); err != nil {
				logger.Debug("websocket write failed", "session_id", id, "error", err)
				return
			}
		}
	}
}

func applyWS(ctx context.Context, logger *slog.Logger, sessions Sessions, id string, msg WSCommand) WSReply {
	cmd, err := tasting.ParseCommand(msg.Type, msg.Payload)
	if err == nil {
		var state tasting.State
		state, err = sessions.Dispatch(ctx, id, msg.HostPin, cmd)
		if err == nil {
			return WSReply{State: &state, Status: http.StatusOK}
		}
	}

	status, body := errorResponse(err)
	if status == http.StatusInternalServerError {
		logger.Error("websocket command failed", "session_id", id, "error", err)
	}
	return WSReply{Error: &body, Status: status}
}
