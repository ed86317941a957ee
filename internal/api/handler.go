// Package api provides HTTP handlers for the agent supervisor API.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ashureev/agent-supervisor/internal/domain"
	"github.com/ashureev/agent-supervisor/internal/live"
	"github.com/ashureev/agent-supervisor/internal/store"
)

const maxBodyBytes = 1 << 20

// Handler provides common handler utilities.
type Handler struct {
	repo  store.Repository
	state *live.State
	sm    *live.SessionManager
	now   func() time.Time
}

// NewHandler creates a new Handler with common dependencies. state and sm may
// be nil, in which case changes are not pushed to the live feed.
func NewHandler(repo store.Repository, state *live.State, sm *live.SessionManager) *Handler {
	return &Handler{
		repo:  repo,
		state: state,
		sm:    sm,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a size-limited JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// syncLive folds a stored conversation into the live feed state. Messages and
// metrics synthesized by the feed survive the update.
func (h *Handler) syncLive(c *domain.Conversation) {
	if h.state != nil {
		h.state.Merge(*c)
	}
}

// broadcast pushes a frame to every connected live session.
func (h *Handler) broadcast(typ live.FrameType, frame any) {
	if h.sm != nil {
		h.sm.Broadcast(typ, frame)
	}
}
