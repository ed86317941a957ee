package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/agent-supervisor/internal/domain"
	"github.com/ashureev/agent-supervisor/internal/store"
)

// AgentHandler exposes the AI agents and their configuration.
type AgentHandler struct {
	*Handler
	agents store.AgentRepository
}

// NewAgentHandler creates a new agent handler.
func NewAgentHandler(base *Handler, agents store.AgentRepository) *AgentHandler {
	return &AgentHandler{Handler: base, agents: agents}
}

// RegisterRoutes registers agent routes.
func (h *AgentHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/agents", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}/config", h.UpdateConfig)
		r.Get("/{id}/metrics", h.Metrics)
	})
}

// List returns every agent.
func (h *AgentHandler) List(w http.ResponseWriter, r *http.Request) {
	agents, err := h.agents.ListAgents(r.Context())
	if err != nil {
		slog.Error("Failed to list agents", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list agents")
		return
	}
	if agents == nil {
		agents = []*domain.Agent{}
	}
	JSON(w, http.StatusOK, agents)
}

// Get returns a single agent with its persona and configuration.
func (h *AgentHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, ok := h.loadAgent(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, a)
}

// UpdateConfig merges parameters and thresholds and switches capabilities and
// knowledge bases on or off.
func (h *AgentHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var cfg domain.AgentConfig
	if err := decodeJSON(w, r, &cfg); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, ok := h.loadAgent(w, r)
	if !ok {
		return
	}
	if err := a.Configure(cfg); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	err := h.agents.UpdateAgent(r.Context(), a)
	if errors.Is(err, store.ErrNotFound) {
		Error(w, http.StatusNotFound, "agent not found")
		return
	}
	if err != nil {
		slog.Error("Failed to update agent", "error", err, "agent_id", a.ID)
		Error(w, http.StatusInternalServerError, "failed to update agent")
		return
	}
	slog.Info("Agent configuration updated", "agent_id", a.ID)

	JSON(w, http.StatusOK, map[string]interface{}{
		"message": "Agent configuration updated",
		"agent":   a,
	})
}

// Metrics returns an agent's performance figures.
func (h *AgentHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	a, ok := h.loadAgent(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, a.MetricsOrZero())
}

func (h *AgentHandler) loadAgent(w http.ResponseWriter, r *http.Request) (*domain.Agent, bool) {
	id := chi.URLParam(r, "id")
	a, err := h.agents.GetAgent(r.Context(), id)
	if err != nil {
		slog.Error("Failed to get agent", "error", err, "agent_id", id)
		Error(w, http.StatusInternalServerError, "failed to get agent")
		return nil, false
	}
	if a == nil {
		Error(w, http.StatusNotFound, "agent not found")
		return nil, false
	}
	return a, true
}
