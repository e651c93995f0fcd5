package server

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"

	"github.com/playperu/blindtasting/internal/store"
	"github.com/playperu/blindtasting/internal/tasting"
)

// Sessions is the dispatcher the handlers drive. Readers get copies of the
// state; every change goes through Dispatch or Undo.
type Sessions interface {
	Create(ctx context.Context, pin string) (string, tasting.State, error)
	Get(ctx context.Context, id string) (tasting.State, error)
	Dispatch(ctx context.Context, id, pin string, cmd tasting.Command) (tasting.State, error)
	Undo(ctx context.Context, id, pin string) (tasting.State, error)
	History(ctx context.Context, id string) ([]store.HistoryEntry, error)
	Delete(ctx context.Context, id, pin string) error
	List(ctx context.Context) ([]store.Summary, error)
}

// Subscriber delivers JSON-encoded session events.
type Subscriber interface {
	Subscribe(sessionID string) chan []byte
	Unsubscribe(sessionID string, ch chan []byte)
}

func AddRoutes(r chi.Router, logger *slog.Logger, sessions Sessions, events Subscriber, spaDir string) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Blind Tasting Room API", "/openapi.json", "/docs"))

	r.Route("/api/sessions", func(r chi.Router) {
		r.Get("/", handleListSessions(logger, sessions))
		r.Post("/", handleCreateSession(logger, sessions))

		r.Route("/{id}", func(r chi.Router) {
			r.Use(sessionMiddleware)
			r.Get("/", handleGetSession(logger, sessions))
			r.Delete("/", handleDeleteSession(logger, sessions))
			r.Post("/commands", handleCommand(logger, sessions))
			r.Post("/undo", handleUndo(logger, sessions))
			r.Get("/history", handleHistory(logger, sessions))
			r.Get("/leaders", handleLeaders(logger, sessions))
			r.Get("/events", handleEvents(logger, sessions, events))
			r.Get("/ws", handleWS(logger, sessions, events))
		})
	})

	if spaDir != "" {
		if info, err := os.Stat(spaDir); err == nil && info.IsDir() {
			logger.Info("serving SPA", "dir", spaDir)
			r.NotFound(handleSPA(spaDir))
		}
	}
}
