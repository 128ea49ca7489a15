package api

import (
	"encoding/json"
	"net/http"

	"github.com/eist-radio/streamd/internal/infra/store"
)

// Handlers holds the API dependencies.
type Handlers struct {
	player  Player
	events  EventBus
	history History
}

func (h *Handlers) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.player.Status())
}

// play, stop, and toggle return the status snapshot taken right after the
// call. A dropped command (controller busy) simply returns the unchanged
// snapshot: the controller absorbs all failure.
func (h *Handlers) play(w http.ResponseWriter, r *http.Request) {
	h.player.Play()
	writeJSON(w, http.StatusOK, h.player.Status())
}

func (h *Handlers) stop(w http.ResponseWriter, r *http.Request) {
	h.player.Stop()
	writeJSON(w, http.StatusOK, h.player.Status())
}

func (h *Handlers) toggle(w http.ResponseWriter, r *http.Request) {
	h.player.Toggle()
	writeJSON(w, http.StatusOK, h.player.Status())
}

func (h *Handlers) getHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusOK, []store.Transition{})
		return
	}
	transitions, err := h.history.History(50)
	if err != nil {
		http.Error(w, "failed to read history", http.StatusInternalServerError)
		return
	}
	if transitions == nil {
		transitions = []store.Transition{}
	}
	writeJSON(w, http.StatusOK, transitions)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
