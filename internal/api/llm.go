package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/agent-supervisor/internal/llm"
	"github.com/ashureev/agent-supervisor/internal/metrics"
)

// LLMHandler exposes the language model simulator.
type LLMHandler struct {
	sim     *llm.Simulator
	metrics *metrics.Metrics
}

// NewLLMHandler creates a new simulator handler. m may be nil.
func NewLLMHandler(sim *llm.Simulator, m *metrics.Metrics) *LLMHandler {
	return &LLMHandler{sim: sim, metrics: m}
}

// RegisterRoutes registers simulator routes.
func (h *LLMHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/llm", func(r chi.Router) {
		r.Post("/generate", h.instrument("generate", h.Generate))
		r.Post("/sentiment", h.instrument("sentiment", h.Sentiment))
		r.Post("/knowledge", h.instrument("knowledge", h.Knowledge))
	})
}

func (h *LLMHandler) instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next(ww, r)
		if h.metrics == nil {
			return
		}
		h.metrics.SimulatorRequests.WithLabelValues(endpoint, strconv.Itoa(ww.Status())).Inc()
		h.metrics.SimulatorDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}

// Generate produces the next agent reply for a transcript.
func (h *LLMHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req llm.GenerateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.sim.Generate(r.Context(), req)
	if err != nil {
		slog.Warn("Failed to generate response", "error", err, "conversation_id", req.ConversationID)
		Error(w, http.StatusInternalServerError, "failed to generate response")
		return
	}
	JSON(w, http.StatusOK, res)
}

type sentimentRequest struct {
	Text string `json:"text"`
}

// SentimentAnalysis is the detail block of a sentiment response.
type SentimentAnalysis struct {
	Emotion   llm.Emotion   `json:"emotion"`
	Intensity llm.Intensity `json:"intensity"`
	Keywords  []string      `json:"keywords"`
}

// SentimentResponse is the response of Sentiment.
type SentimentResponse struct {
	Sentiment float64           `json:"sentiment"`
	Intent    llm.Intent        `json:"intent"`
	Analysis  SentimentAnalysis `json:"analysis"`
}

// Sentiment classifies a piece of customer text.
func (h *LLMHandler) Sentiment(w http.ResponseWriter, r *http.Request) {
	var req sentimentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		Error(w, http.StatusBadRequest, "text is required")
		return
	}

	c := h.sim.Classify(req.Text)
	keywords := c.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	JSON(w, http.StatusOK, SentimentResponse{
		Sentiment: c.SentimentScore,
		Intent:    c.Intent,
		Analysis: SentimentAnalysis{
			Emotion:   c.Emotion,
			Intensity: c.Intensity,
			Keywords:  keywords,
		},
	})
}

type knowledgeRequest struct {
	Query          string   `json:"query"`
	KnowledgeBases []string `json:"knowledgeBases"`
	Limit          int      `json:"limit"`
}

// Knowledge looks up documentation snippets relevant to a query.
func (h *LLMHandler) Knowledge(w http.ResponseWriter, r *http.Request) {
	var req knowledgeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		Error(w, http.StatusBadRequest, "query is required")
		return
	}

	results := h.sim.Knowledge(req.Query, req.KnowledgeBases, req.Limit)
	if results == nil {
		results = []llm.KnowledgeResult{}
	}
	JSON(w, http.StatusOK, map[string]interface{}{"results": results})
}
