package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/playperu/blindtasting/internal/store"
	"github.com/playperu/blindtasting/internal/tasting"
)

// CommandRequest is a command in wire form, e.g.
// {"type": "RECORD_GUESS", "payload": {"player": "Ana", "guess": {...}}}.
type CommandRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type LeadersResponse struct {
	Leaders []string `json:"leaders"`
	Tie     bool     `json:"tie"`
}

func handleCommand(logger *slog.Logger, sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CommandRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		cmd, err := tasting.ParseCommand(req.Type, req.Payload)
		if err != nil {
			writeSessionError(w, logger, err)
			return
		}

		id := sessionID(r)
		state, err := sessions.Dispatch(r.Context(), id, hostPin(r), cmd)
		if err != nil {
			writeSessionError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, SessionResponse{ID: id, State: state})
	}
}

func handleUndo(logger *slog.Logger, sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := sessionID(r)
		state, err := sessions.Undo(r.Context(), id, hostPin(r))
		if err != nil {
			writeSessionError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, SessionResponse{ID: id, State: state})
	}
}

func handleHistory(logger *slog.Logger, sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := sessions.History(r.Context(), sessionID(r))
		if err != nil {
			writeSessionError(w, logger, err)
			return
		}
		if entries == nil {
			entries = []store.HistoryEntry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func handleLeaders(logger *slog.Logger, sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := sessions.Get(r.Context(), sessionID(r))
		if err != nil {
			writeSessionError(w, logger, err)
			return
		}

		leaders := tasting.Leaders(state.Players)
		if leaders == nil {
			leaders = []string{}
		}
		writeJSON(w, http.StatusOK, LeadersResponse{Leaders: leaders, Tie: len(leaders) > 1})
	}
}
