package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/agent-supervisor/internal/identity"
)

// InterventionHandler lets supervisors take over and hand back conversations.
type InterventionHandler struct {
	*Handler
}

// NewInterventionHandler creates a new intervention handler.
func NewInterventionHandler(base *Handler) *InterventionHandler {
	return &InterventionHandler{Handler: base}
}

// RegisterRoutes registers intervention routes.
func (h *InterventionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/intervene", func(r chi.Router) {
		r.Post("/", h.Intervene)
		r.Post("/release", h.Release)
	})
}

type interveneRequest struct {
	ConversationID string `json:"conversationId"`
	SupervisorID   string `json:"supervisorId"`
	Notes          string `json:"notes"`
}

// Intervene escalates a conversation to a supervisor. Without an explicit
// supervisorId the caller's identity is used.
func (h *InterventionHandler) Intervene(w http.ResponseWriter, r *http.Request) {
	var req interveneRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.SupervisorID) == "" {
		req.SupervisorID = identity.SupervisorIDFromContext(r.Context())
	}
	if strings.TrimSpace(req.ConversationID) == "" || strings.TrimSpace(req.SupervisorID) == "" {
		Error(w, http.StatusBadRequest, "conversationId and supervisorId are required")
		return
	}

	c, ok := h.load(w, r, req.ConversationID)
	if !ok {
		return
	}
	c.Escalate(req.SupervisorID, req.Notes, h.now())
	if !h.save(w, r, c) {
		return
	}
	h.syncLive(c)
	slog.Info("Supervisor intervened", "conversation_id", c.ID, "supervisor_id", req.SupervisorID)

	JSON(w, http.StatusOK, map[string]interface{}{
		"message":      "Intervention recorded",
		"intervention": c.HumanIntervention,
	})
}

type releaseRequest struct {
	ConversationID  string `json:"conversationId"`
	SupervisorNotes string `json:"supervisorNotes"`
}

// Release returns control of an escalated conversation to the agent.
func (h *InterventionHandler) Release(w http.ResponseWriter, r *http.Request) {
	var req releaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.ConversationID) == "" {
		Error(w, http.StatusBadRequest, "conversationId is required")
		return
	}

	c, ok := h.load(w, r, req.ConversationID)
	if !ok {
		return
	}
	if !c.InterventionActive() {
		Error(w, http.StatusConflict, "no active intervention to release")
		return
	}
	c.Release(req.SupervisorNotes, h.now())
	if !h.save(w, r, c) {
		return
	}
	h.syncLive(c)
	slog.Info("Intervention released", "conversation_id", c.ID)

	JSON(w, http.StatusOK, map[string]string{
		"message": "Intervention released, control returned to agent",
	})
}
