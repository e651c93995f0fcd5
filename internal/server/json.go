package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/playperu/blindtasting/internal/session"
	"github.com/playperu/blindtasting/internal/tasting"
)

// ErrorResponse is returned for all error responses. Fields is set when a
// command fails validation.
type ErrorResponse struct {
	Error  string               `json:"error"`
	Fields []tasting.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// errorResponse maps a session or command error to its HTTP status and body.
func errorResponse(err error) (int, ErrorResponse) {
	var verr *tasting.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, ErrorResponse{Error: "invalid command", Fields: verr.Problems}
	case errors.Is(err, tasting.ErrPhase),
		errors.Is(err, tasting.ErrRoundOverflow),
		errors.Is(err, tasting.ErrNoTie),
		errors.Is(err, tasting.ErrTieUnresolved),
		errors.Is(err, session.ErrNothingToUndo):
		return http.StatusConflict, ErrorResponse{Error: err.Error()}
	case errors.Is(err, tasting.ErrUnknownCommand), errors.Is(err, tasting.ErrBadPayload):
		return http.StatusBadRequest, ErrorResponse{Error: err.Error()}
	case errors.Is(err, session.ErrForbidden):
		return http.StatusForbidden, ErrorResponse{Error: err.Error()}
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "session not found"}
	}
	return http.StatusInternalServerError, ErrorResponse{Error: "internal error"}
}

func writeSessionError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, body := errorResponse(err)
	if status == http.StatusInternalServerError {
		logger.Error("session operation failed", "error", err)
	}
	writeJSON(w, status, body)
}
