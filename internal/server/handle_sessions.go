package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/playperu/blindtasting/internal/store"
	"github.com/playperu/blindtasting/internal/tasting"
)

type CreateSessionRequest struct {
	HostPin string `json:"hostPin,omitempty"`
}

type SessionResponse struct {
	ID    string        `json:"id"`
	State tasting.State `json:"state"`
}

func handleCreateSession(logger *slog.Logger, sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSessionRequest
		if err := readJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		id, state, err := sessions.Create(r.Context(), strings.TrimSpace(req.HostPin))
		if err != nil {
			writeSessionError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusCreated, SessionResponse{ID: id, State: state})
	}
}

func handleListSessions(logger *slog.Logger, sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := sessions.List(r.Context())
		if err != nil {
			writeSessionError(w, logger, err)
			return
		}
		if list == nil {
			list = []store.Summary{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func handleGetSession(logger *slog.Logger, sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := sessionID(r)
		state, err := sessions.Get(r.Context(), id)
		if err != nil {
			writeSessionError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, SessionResponse{ID: id, State: state})
	}
}

func handleDeleteSession(logger *slog.Logger, sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := sessions.Delete(r.Context(), sessionID(r), hostPin(r)); err != nil {
			writeSessionError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
