package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// handleEvents streams session changes as Server-Sent Events. The first
// event is the current state snapshot; later events announce each change.
// The stream ends after the session is deleted.
func handleEvents(logger *slog.Logger, sessions Sessions, events Subscriber) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := sessionID(r)

		state, err := sessions.Get(r.Context(), id)
		if err != nil {
			writeSessionError(w, logger, err)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		ch := events.Subscribe(id)
		defer events.Unsubscribe(id, ch)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		snapshot, _ := json.Marshal(SessionResponse{ID: id, State: state})
		fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", snapshot)
		flusher.Flush()

		ping := time.NewTicker(30 * time.Second)
		defer ping.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case data, ok := <-ch:
				if !ok {
					// The session was deleted; its last event is already out.
					return
				}
				fmt.Fprintf(w, "event: change\ndata: %s\n\n", data)
				flusher.Flush()
			case <-ping.C:
				fmt.Fprintf(w, ": ping\n\n")
				flusher.Flush()
			}
		}
	}
}
