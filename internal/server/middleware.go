package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type ctxKey int

const ctxKeySession ctxKey = iota

// hostPinHeader carries the host PIN for sessions created with one.
const hostPinHeader = "X-Host-Pin"

// sessionMiddleware rejects malformed session IDs before they reach the
// store and stores the canonical ID in the request context.
func sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeySession, id.String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionID(r *http.Request) string {
	return r.Context().Value(ctxKeySession).(string)
}

func hostPin(r *http.Request) string {
	return r.Header.Get(hostPinHeader)
}
