package api

import (
	"cmp"
	"log/slog"
	"math"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/agent-supervisor/internal/domain"
	"github.com/ashureev/agent-supervisor/internal/store"
)

const (
	defaultTrendDays     = 7
	defaultTopIssueLimit = 10
	dayLayout            = "2006-01-02"
)

// AnalyticsHandler aggregates conversation history for the dashboard charts.
type AnalyticsHandler struct {
	*Handler
	agents store.AgentRepository
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(base *Handler, agents store.AgentRepository) *AnalyticsHandler {
	return &AnalyticsHandler{Handler: base, agents: agents}
}

// RegisterRoutes registers analytics routes.
func (h *AnalyticsHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/analytics", func(r chi.Router) {
		r.Get("/", h.Summary)
		r.Get("/trends", h.Trends)
		r.Get("/top-issues", h.TopIssues)
	})
}

// SummaryTotals are the headline figures of a time range.
type SummaryTotals struct {
	TotalConversations     int     `json:"totalConversations"`
	ResolvedConversations  int     `json:"resolvedConversations"`
	EscalatedConversations int     `json:"escalatedConversations"`
	ResolutionRate         float64 `json:"resolutionRate"`
	EscalationRate         float64 `json:"escalationRate"`
	AvgResponseTime        float64 `json:"avgResponseTime"`
	AvgSentiment           float64 `json:"avgSentiment"`
}

// DailyTotals count one UTC day of conversations.
type DailyTotals struct {
	Date           string  `json:"date"`
	Conversations  int     `json:"conversations"`
	Resolved       int     `json:"resolved"`
	Escalated      int     `json:"escalated"`
	AvgSentiment   float64 `json:"avgSentiment"`
	TotalSentiment float64 `json:"totalSentiment"`
}

// AgentPerformance pairs an agent with its metrics.
type AgentPerformance struct {
	ID      string              `json:"id"`
	Name    string              `json:"name"`
	Metrics domain.AgentMetrics `json:"metrics"`
}

// AnalyticsSummary is the response of Summary.
type AnalyticsSummary struct {
	Summary SummaryTotals      `json:"summary"`
	Daily   []DailyTotals      `json:"daily"`
	Agents  []AgentPerformance `json:"agents"`
}

// TrendPoint is one day of the trends series. Sentiment and EscalationRate
// are percentages.
type TrendPoint struct {
	Date           string  `json:"date"`
	Volume         int     `json:"volume"`
	Sentiment      float64 `json:"sentiment"`
	ResponseTime   float64 `json:"responseTime"`
	EscalationRate float64 `json:"escalationRate"`
}

// rangeStart maps ?timeRange= to the earliest start time it covers. Unknown
// ranges mean today.
func rangeStart(timeRange string, now time.Time) time.Time {
	switch timeRange {
	case "week":
		return now.AddDate(0, 0, -7)
	case "month":
		return now.AddDate(0, -1, 0)
	default:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	}
}

// Summary reports totals, a per-day breakdown and agent performance for
// ?timeRange=today|week|month.
func (h *AnalyticsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	start := rangeStart(r.URL.Query().Get("timeRange"), h.now())
	conversations, ok := h.conversationsSince(w, r, start)
	if !ok {
		return
	}

	agents, err := h.agents.ListAgents(r.Context())
	if err != nil {
		slog.Error("Failed to list agents", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load analytics")
		return
	}
	performance := make([]AgentPerformance, 0, len(agents))
	for _, a := range agents {
		performance = append(performance, AgentPerformance{ID: a.ID, Name: a.Name, Metrics: a.MetricsOrZero()})
	}

	JSON(w, http.StatusOK, AnalyticsSummary{
		Summary: summarize(conversations),
		Daily:   dailyTotals(conversations),
		Agents:  performance,
	})
}

// Trends reports per-day volume, sentiment, response time and escalation rate
// for the last ?days= days.
func (h *AnalyticsHandler) Trends(w http.ResponseWriter, r *http.Request) {
	days, err := positiveQueryInt(r.URL.Query().Get("days"), defaultTrendDays)
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid days")
		return
	}
	conversations, ok := h.conversationsSince(w, r, h.now().AddDate(0, 0, -days))
	if !ok {
		return
	}
	JSON(w, http.StatusOK, trends(conversations))
}

// TopIssues counts conversation tags across all history, most frequent first.
func (h *AnalyticsHandler) TopIssues(w http.ResponseWriter, r *http.Request) {
	limit, err := positiveQueryInt(r.URL.Query().Get("limit"), defaultTopIssueLimit)
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid limit")
		return
	}
	conversations, ok := h.conversationsSince(w, r, time.Time{})
	if !ok {
		return
	}
	JSON(w, http.StatusOK, topIssues(conversations, limit))
}

func (h *AnalyticsHandler) conversationsSince(w http.ResponseWriter, r *http.Request, start time.Time) ([]*domain.Conversation, bool) {
	all, _, err := h.repo.ListConversations(r.Context(), store.ConversationFilter{})
	if err != nil {
		slog.Error("Failed to list conversations", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load analytics")
		return nil, false
	}
	out := make([]*domain.Conversation, 0, len(all))
	for _, c := range all {
		if !c.StartTime.Before(start) {
			out = append(out, c)
		}
	}
	return out, true
}

func summarize(conversations []*domain.Conversation) SummaryTotals {
	var s SummaryTotals
	var responseTime, sentiment float64
	for _, c := range conversations {
		s.TotalConversations++
		switch c.Status {
		case domain.StatusResolved:
			s.ResolvedConversations++
		case domain.StatusEscalated:
			s.EscalatedConversations++
		}
		responseTime += c.Metrics.ResponseTime
		sentiment += c.Metrics.Sentiment
	}
	if n := float64(s.TotalConversations); n > 0 {
		s.ResolutionRate = float64(s.ResolvedConversations) / n
		s.EscalationRate = float64(s.EscalatedConversations) / n
		s.AvgResponseTime = round(responseTime/n, 1)
		s.AvgSentiment = round(sentiment/n, 2)
	}
	return s
}

func dailyTotals(conversations []*domain.Conversation) []DailyTotals {
	byDay := make(map[string]*DailyTotals)
	for _, c := range conversations {
		date := c.StartTime.UTC().Format(dayLayout)
		d, ok := byDay[date]
		if !ok {
			d = &DailyTotals{Date: date}
			byDay[date] = d
		}
		d.Conversations++
		switch c.Status {
		case domain.StatusResolved:
			d.Resolved++
		case domain.StatusEscalated:
			d.Escalated++
		}
		d.TotalSentiment += c.Metrics.Sentiment
	}

	out := make([]DailyTotals, 0, len(byDay))
	for _, d := range byDay {
		d.AvgSentiment = d.TotalSentiment / float64(d.Conversations)
		out = append(out, *d)
	}
	slices.SortFunc(out, func(a, b DailyTotals) int { return cmp.Compare(a.Date, b.Date) })
	return out
}

// trends averages only the non-zero sentiment and response time readings.
func trends(conversations []*domain.Conversation) []TrendPoint {
	type day struct {
		count, escalations                int
		sentiment, responseTime           float64
		sentimentCount, responseTimeCount int
	}
	byDay := make(map[string]*day)
	for _, c := range conversations {
		date := c.StartTime.UTC().Format(dayLayout)
		d, ok := byDay[date]
		if !ok {
			d = &day{}
			byDay[date] = d
		}
		d.count++
		if c.Metrics.Sentiment != 0 {
			d.sentiment += c.Metrics.Sentiment
			d.sentimentCount++
		}
		if c.Metrics.ResponseTime != 0 {
			d.responseTime += c.Metrics.ResponseTime
			d.responseTimeCount++
		}
		if c.Status == domain.StatusEscalated {
			d.escalations++
		}
	}

	out := make([]TrendPoint, 0, len(byDay))
	for date, d := range byDay {
		p := TrendPoint{
			Date:           date,
			Volume:         d.count,
			EscalationRate: float64(d.escalations) / float64(d.count) * 100,
		}
		if d.sentimentCount > 0 {
			p.Sentiment = math.Round(d.sentiment / float64(d.sentimentCount) * 100)
		}
		if d.responseTimeCount > 0 {
			p.ResponseTime = round(d.responseTime/float64(d.responseTimeCount), 1)
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b TrendPoint) int { return cmp.Compare(a.Date, b.Date) })
	return out
}

func topIssues(conversations []*domain.Conversation, limit int) []domain.IssueCount {
	counts := make(map[string]int)
	for _, c := range conversations {
		for _, tag := range c.Tags {
			counts[tag]++
		}
	}
	out := make([]domain.IssueCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, domain.IssueCount{Name: name, Count: n})
	}
	slices.SortFunc(out, func(a, b domain.IssueCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
