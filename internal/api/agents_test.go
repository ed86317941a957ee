//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/agent-supervisor/internal/domain"
)

func TestListAgents(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(http.MethodGet, "/api/agents", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var agents []domain.Agent
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&agents))
	require.Len(t, agents, 3)
	assert.Equal(t, "agent-cs-1", agents[0].ID)
	assert.Equal(t, "helpful, empathetic, solution-oriented", agents[0].Persona.Style)
	assert.Equal(t, []string{"return policy", "refund processing", "exchanges"}, agents[2].Persona.Knowledge)
}

func TestGetAgent(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(http.MethodGet, "/api/agents/agent-cs-2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var a domain.Agent
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&a))
	assert.Equal(t, "Product Specialist Agent", a.Name)
	assert.Equal(t, "gpt-4o", a.Model)
	assert.Equal(t, domain.AgentParameters{Temperature: 0.5, MaxTokens: 200, TopP: 0.9}, a.Parameters)

	rec = ts.do(http.MethodGet, "/api/agents/agent-x", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"agent not found"}`, rec.Body.String())
}

func TestUpdateAgentConfigMerges(t *testing.T) {
	ts := newTestServer()

	body := `{
		"parameters": {"temperature": 0.2},
		"capabilities": [{"id": "shipping_calculator", "enabled": true}, {"id": "teleport", "enabled": true}],
		"knowledgeBases": [{"id": "kb-shipping-policy", "enabled": false}],
		"escalationThresholds": {"responseTime": 30}
	}`
	rec := ts.do(http.MethodPatch, "/api/agents/agent-cs-1/config", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Message string       `json:"message"`
		Agent   domain.Agent `json:"agent"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Agent configuration updated", resp.Message)

	stored := ts.agents.get("agent-cs-1")
	assert.Equal(t, resp.Agent.Parameters, stored.Parameters)
	assert.Equal(t, domain.AgentParameters{Temperature: 0.2, MaxTokens: 150, TopP: 1.0}, stored.Parameters)
	assert.Equal(t, domain.EscalationThresholds{LowConfidence: 0.4, NegativeSentiment: 0.3, ResponseTime: 30}, stored.EscalationThresholds)
	assert.Len(t, stored.Capabilities, 5, "unknown capability ids are ignored")

	enabled := map[string]bool{}
	for _, f := range append(stored.Capabilities, stored.KnowledgeBases...) {
		enabled[f.ID] = f.Enabled
	}
	assert.True(t, enabled["shipping_calculator"])
	assert.False(t, enabled["kb-shipping-policy"])
	assert.True(t, enabled["order_lookup"])
}

func TestUpdateAgentConfigValidation(t *testing.T) {
	ts := newTestServer()

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"temperature above one", "/api/agents/agent-cs-1/config", `{"parameters":{"temperature":1.5}}`, http.StatusBadRequest},
		{"zero max tokens", "/api/agents/agent-cs-1/config", `{"parameters":{"max_tokens":0}}`, http.StatusBadRequest},
		{"malformed body", "/api/agents/agent-cs-1/config", `{`, http.StatusBadRequest},
		{"unknown agent", "/api/agents/agent-x/config", `{}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodPatch, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
	assert.InDelta(t, 0.7, ts.agents.get("agent-cs-1").Parameters.Temperature, 1e-9)
}

func TestAgentMetrics(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(http.MethodGet, "/api/agents/agent-cs-3/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var m domain.AgentMetrics
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&m))
	assert.Equal(t, 1456, m.Conversations)
	require.Len(t, m.TopIssues, 3)
	assert.Equal(t, domain.IssueCount{Name: "Return Eligibility", Count: 412}, m.TopIssues[0])

	require.NoError(t, ts.agents.CreateAgent(context.Background(), &domain.Agent{ID: "agent-new", Name: "New"}))
	rec = ts.do(http.MethodGet, "/api/agents/agent-new/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"conversations":0,"avgResponseTime":0,"satisfaction":0,"escalationRate":0,"topIssues":[]}`, rec.Body.String())
}

func TestAgentStoreFailureReturns500(t *testing.T) {
	ts := newTestServer()
	ts.agents.err = errors.New("disk full")

	assert.Equal(t, http.StatusInternalServerError, ts.do(http.MethodGet, "/api/agents", "").Code)
	assert.Equal(t, http.StatusInternalServerError, ts.do(http.MethodGet, "/api/agents/agent-cs-1", "").Code)
}
