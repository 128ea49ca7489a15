// Package api provides the local HTTP control surface. It only reads the
// controller's observable flags and invokes its public operations; the media
// engine is never touched directly.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/eist-radio/streamd/internal/infra/store"
	"github.com/eist-radio/streamd/internal/player"
)

// Player is the controller surface exposed over HTTP.
type Player interface {
	Play()
	Stop()
	Toggle()
	Status() player.Status
}

// EventBus delivers status updates to SSE clients.
type EventBus interface {
	Subscribe(id string) <-chan player.Status
	Unsubscribe(id string)
}

// History reads recorded playback transitions. Implemented by *store.Store.
type History interface {
	History(limit int) ([]store.Transition, error)
}

// NewRouter creates the control API router. history may be nil.
func NewRouter(p Player, bus EventBus, history History) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.CleanPath)

	h := &Handlers{player: p, events: bus, history: history}

	r.Get("/api/status", h.getStatus)
	r.Post("/api/play", h.play)
	r.Post("/api/stop", h.stop)
	r.Post("/api/toggle", h.toggle)
	r.Get("/api/history", h.getHistory)
	r.Get("/api/events", h.sseEvents)

	return r
}
