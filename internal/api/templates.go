package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ashureev/agent-supervisor/internal/domain"
	"github.com/ashureev/agent-supervisor/internal/identity"
	"github.com/ashureev/agent-supervisor/internal/llm"
	"github.com/ashureev/agent-supervisor/internal/store"
)

// TemplateHandler manages canned supervisor replies.
type TemplateHandler struct {
	*Handler
	templates store.TemplateRepository
}

// NewTemplateHandler creates a new template handler.
func NewTemplateHandler(base *Handler, templates store.TemplateRepository) *TemplateHandler {
	return &TemplateHandler{Handler: base, templates: templates}
}

// RegisterRoutes registers template routes.
func (h *TemplateHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/templates", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Post("/{id}/apply", h.Apply)
	})
}

// List returns templates, newest first, optionally narrowed by ?category=.
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	templates, err := h.templates.ListTemplates(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		slog.Error("Failed to list templates", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list templates")
		return
	}
	if templates == nil {
		templates = []*domain.ResponseTemplate{}
	}
	JSON(w, http.StatusOK, templates)
}

// Get returns a single template.
func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, ok := h.loadTemplate(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, t)
}

type templateRequest struct {
	Name      *string                    `json:"name"`
	Category  *string                    `json:"category"`
	Content   *string                    `json:"content"`
	Variables *[]domain.TemplateVariable `json:"variables"`
	CreatedBy *string                    `json:"createdBy"`
	IsShared  *bool                      `json:"isShared"`
}

// apply copies the fields present in req onto t.
func (req templateRequest) apply(t *domain.ResponseTemplate) {
	if req.Name != nil {
		t.Name = strings.TrimSpace(*req.Name)
	}
	if req.Category != nil {
		t.Category = strings.TrimSpace(*req.Category)
	}
	if req.Content != nil {
		t.Content = *req.Content
	}
	if req.Variables != nil {
		t.Variables = *req.Variables
	}
	if req.CreatedBy != nil {
		t.CreatedBy = *req.CreatedBy
	}
	if req.IsShared != nil {
		t.IsShared = *req.IsShared
	}
}

func validateTemplate(t *domain.ResponseTemplate) error {
	if t.Name == "" || t.Category == "" || strings.TrimSpace(t.Content) == "" {
		return errors.New("name, category, and content are required")
	}
	return nil
}

// Create stores a new template. Without createdBy the caller's identity is
// recorded, falling back to "system".
func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	now := h.now()
	t := &domain.ResponseTemplate{
		ID:        fmt.Sprintf("template_%d_%s", now.UnixMilli(), uuid.NewString()[:8]),
		Variables: []domain.TemplateVariable{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	req.apply(t)
	if err := validateTemplate(t); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if t.CreatedBy == "" {
		t.CreatedBy = identity.SupervisorIDFromContext(r.Context())
	}
	if t.CreatedBy == "" {
		t.CreatedBy = "system"
	}
	if t.Variables == nil {
		t.Variables = []domain.TemplateVariable{}
	}

	if err := h.templates.CreateTemplate(r.Context(), t); err != nil {
		slog.Error("Failed to create template", "error", err)
		Error(w, http.StatusInternalServerError, "failed to create template")
		return
	}
	slog.Info("Template created", "template_id", t.ID, "category", t.Category)

	JSON(w, http.StatusCreated, t)
}

// Update changes only the fields present in the body.
func (h *TemplateHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, ok := h.loadTemplate(w, r)
	if !ok {
		return
	}
	req.apply(t)
	if err := validateTemplate(t); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	t.UpdatedAt = h.now()

	err := h.templates.UpdateTemplate(r.Context(), t)
	if errors.Is(err, store.ErrNotFound) {
		Error(w, http.StatusNotFound, "template not found")
		return
	}
	if err != nil {
		slog.Error("Failed to update template", "error", err, "template_id", t.ID)
		Error(w, http.StatusInternalServerError, "failed to update template")
		return
	}
	JSON(w, http.StatusOK, t)
}

// Delete removes a template.
func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.templates.DeleteTemplate(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		Error(w, http.StatusNotFound, "template not found")
		return
	}
	if err != nil {
		slog.Error("Failed to delete template", "error", err, "template_id", id)
		Error(w, http.StatusInternalServerError, "failed to delete template")
		return
	}
	slog.Info("Template deleted", "template_id", id)
	JSON(w, http.StatusOK, map[string]string{"message": "Template deleted successfully"})
}

type applyTemplateRequest struct {
	Variables map[string]interface{} `json:"variables"`
}

// ApplyResult is the response of Apply.
type ApplyResult struct {
	Content          string                 `json:"content"`
	OriginalTemplate string                 `json:"originalTemplate"`
	Substitutions    map[string]interface{} `json:"substitutions"`
}

// Apply fills the template's {{slots}} with the given variables. An empty body
// applies nothing, and slots without a value stay in the output.
func (h *TemplateHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req applyTemplateRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, ok := h.loadTemplate(w, r)
	if !ok {
		return
	}

	values := make(map[string]string, len(req.Variables))
	for k, v := range req.Variables {
		values[k] = fmt.Sprint(v)
	}
	if req.Variables == nil {
		req.Variables = map[string]interface{}{}
	}

	JSON(w, http.StatusOK, ApplyResult{
		Content:          llm.FillSlots(t.Content, values),
		OriginalTemplate: t.Content,
		Substitutions:    req.Variables,
	})
}

func (h *TemplateHandler) loadTemplate(w http.ResponseWriter, r *http.Request) (*domain.ResponseTemplate, bool) {
	id := chi.URLParam(r, "id")
	t, err := h.templates.GetTemplate(r.Context(), id)
	if err != nil {
		slog.Error("Failed to get template", "error", err, "template_id", id)
		Error(w, http.StatusInternalServerError, "failed to get template")
		return nil, false
	}
	if t == nil {
		Error(w, http.StatusNotFound, "template not found")
		return nil, false
	}
	return t, true
}
