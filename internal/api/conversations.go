package api

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ashureev/agent-supervisor/internal/domain"
	"github.com/ashureev/agent-supervisor/internal/live"
	"github.com/ashureev/agent-supervisor/internal/llm"
	"github.com/ashureev/agent-supervisor/internal/store"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// ConversationHandler handles conversation endpoints.
type ConversationHandler struct {
	*Handler
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(base *Handler) *ConversationHandler {
	return &ConversationHandler{Handler: base}
}

// RegisterRoutes registers conversation routes.
func (h *ConversationHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/conversations", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Post("/{id}/messages", h.AddMessage)
		r.Patch("/{id}/status", h.UpdateStatus)
		r.Post("/{id}/tags", h.AddTags)
	})
}

// Pagination describes one page of a listing.
type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Pages int `json:"pages"`
	Limit int `json:"limit"`
}

// ConversationPage is the response of List.
type ConversationPage struct {
	Data       []*domain.Conversation `json:"data"`
	Pagination Pagination             `json:"pagination"`
}

// List returns conversations, newest first, filtered by status, alertLevel and agentId.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := positiveQueryInt(q.Get("page"), 1)
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid page")
		return
	}
	limit, err := positiveQueryInt(q.Get("limit"), defaultPageSize)
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid limit")
		return
	}
	limit = min(limit, maxPageSize)

	filter := store.ConversationFilter{
		Status:     domain.Status(q.Get("status")),
		AlertLevel: domain.AlertLevel(q.Get("alertLevel")),
		AgentID:    q.Get("agentId"),
		Offset:     (page - 1) * limit,
		Limit:      limit,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		Error(w, http.StatusBadRequest, "invalid status")
		return
	}
	if filter.AlertLevel != "" && !filter.AlertLevel.Valid() {
		Error(w, http.StatusBadRequest, "invalid alertLevel")
		return
	}

	conversations, total, err := h.repo.ListConversations(r.Context(), filter)
	if err != nil {
		slog.Error("Failed to list conversations", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	if conversations == nil {
		conversations = []*domain.Conversation{}
	}

	JSON(w, http.StatusOK, ConversationPage{
		Data: conversations,
		Pagination: Pagination{
			Total: total,
			Page:  page,
			Pages: int(math.Ceil(float64(total) / float64(limit))),
			Limit: limit,
		},
	})
}

func positiveQueryInt(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("must be >= 1, got %d", n)
	}
	return n, nil
}

// Get returns a single conversation with its full history.
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, ok := h.load(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	JSON(w, http.StatusOK, c)
}

type createConversationRequest struct {
	CustomerName string `json:"customerName"`
	CustomerID   string `json:"customerId"`
	AgentID      string `json:"agentId"`
}

// Create opens a new conversation with a greeting from the agent.
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	if req.CustomerName == "" {
		Error(w, http.StatusBadRequest, "customerName is required")
		return
	}

	now := h.now()
	if req.CustomerID == "" {
		req.CustomerID = "cust-" + uuid.NewString()[:8]
	}
	if req.AgentID == "" {
		req.AgentID = "agent-cs-1"
	}

	c := &domain.Conversation{
		ID:         "conv-" + uuid.NewString(),
		Customer:   domain.Participant{ID: req.CustomerID, Name: req.CustomerName},
		Agent:      domain.Participant{ID: req.AgentID, Name: "Customer Service Agent"},
		Status:     domain.StatusActive,
		AlertLevel: domain.AlertLow,
		StartTime:  now,
		Metrics:    domain.Metrics{Sentiment: 0.7, ResponseTime: 0, ConfidenceScore: 0.9},
		Messages: []domain.Message{{
			Sender:    domain.SenderAgent,
			Text:      fmt.Sprintf("Hello %s! Welcome to customer support. How can I help you today?", req.CustomerName),
			Timestamp: now,
		}},
	}

	if err := h.repo.CreateConversation(r.Context(), c); err != nil {
		slog.Error("Failed to create conversation", "error", err)
		Error(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}
	slog.Info("Conversation created", "conversation_id", c.ID, "agent_id", c.Agent.ID)

	h.syncLive(c)
	h.broadcast(live.FrameNewConversation, live.NewConversationFrame{
		Type:      live.FrameNewConversation,
		Data:      c.Summary(),
		Timestamp: now,
	})

	JSON(w, http.StatusCreated, c)
}

type addMessageRequest struct {
	Sender domain.Sender `json:"sender"`
	Text   string        `json:"text"`
}

// AddMessage appends a message and pushes it to the live feed. Customer
// messages also move the conversation's sentiment toward the classifier score.
func (h *ConversationHandler) AddMessage(w http.ResponseWriter, r *http.Request) {
	var req addMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Sender == "" || strings.TrimSpace(req.Text) == "" {
		Error(w, http.StatusBadRequest, "sender and text are required")
		return
	}
	if !req.Sender.Valid() {
		Error(w, http.StatusBadRequest, "invalid sender")
		return
	}

	c, ok := h.load(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	msg := domain.Message{Sender: req.Sender, Text: req.Text, Timestamp: h.now()}
	c.AppendMessage(msg, 0)
	var score float64
	if req.Sender == domain.SenderCustomer {
		score = llm.Classify(req.Text).SentimentScore
		c.Metrics.BlendSentiment(score)
	}

	if !h.save(w, r, c) {
		return
	}

	h.syncLive(c)
	if req.Sender == domain.SenderCustomer && h.state != nil {
		h.state.BlendSentiment(c.ID, score)
	}
	h.broadcast(live.FrameMessageUpdate, live.MessageUpdateFrame{
		Type:           live.FrameMessageUpdate,
		ConversationID: c.ID,
		Message:        msg,
		Timestamp:      msg.Timestamp,
	})

	JSON(w, http.StatusCreated, msg)
}

type updateStatusRequest struct {
	Status domain.Status `json:"status"`
}

// UpdateStatus moves a conversation to a new status.
func (h *ConversationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status == "" {
		Error(w, http.StatusBadRequest, "status is required")
		return
	}
	if !req.Status.Valid() {
		Error(w, http.StatusBadRequest, "invalid status")
		return
	}

	c, ok := h.load(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	c.SetStatus(req.Status, h.now())
	if !h.save(w, r, c) {
		return
	}
	h.syncLive(c)

	JSON(w, http.StatusOK, map[string]interface{}{
		"message": "Status updated",
		"status":  c.Status,
	})
}

type addTagsRequest struct {
	Tags []string `json:"tags"`
}

// AddTags merges tags into a conversation.
func (h *ConversationHandler) AddTags(w http.ResponseWriter, r *http.Request) {
	var req addTagsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Tags) == 0 {
		Error(w, http.StatusBadRequest, "tags array is required")
		return
	}

	c, ok := h.load(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	c.AddTags(req.Tags...)
	if !h.save(w, r, c) {
		return
	}
	h.syncLive(c)

	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"message": "Tags added",
		"tags":    tags,
	})
}

// load fetches a conversation, writing a 404 or 500 response when it cannot.
func (h *Handler) load(w http.ResponseWriter, r *http.Request, id string) (*domain.Conversation, bool) {
	c, err := h.repo.GetConversation(r.Context(), id)
	if err != nil {
		slog.Error("Failed to get conversation", "error", err, "conversation_id", id)
		Error(w, http.StatusInternalServerError, "failed to get conversation")
		return nil, false
	}
	if c == nil {
		Error(w, http.StatusNotFound, "conversation not found")
		return nil, false
	}
	return c, true
}

// save persists a conversation, writing an error response when it cannot.
func (h *Handler) save(w http.ResponseWriter, r *http.Request, c *domain.Conversation) bool {
	err := h.repo.UpdateConversation(r.Context(), c)
	if errors.Is(err, store.ErrNotFound) {
		Error(w, http.StatusNotFound, "conversation not found")
		return false
	}
	if err != nil {
		slog.Error("Failed to update conversation", "error", err, "conversation_id", c.ID)
		Error(w, http.StatusInternalServerError, "failed to update conversation")
		return false
	}
	return true
}
