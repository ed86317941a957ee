//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/agent-supervisor/internal/domain"
	"github.com/ashureev/agent-supervisor/internal/identity"
)

func TestInterveneThenRelease(t *testing.T) {
	ts := newTestServer(conversation("a", 0))

	rec := ts.do(http.MethodPost, "/api/intervene",
		`{"conversationId":"a","supervisorId":"sup-1","notes":"customer asked for a manager"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Message      string                   `json:"message"`
		Intervention domain.HumanIntervention `json:"intervention"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "Intervention recorded", body.Message)
	assert.True(t, body.Intervention.Occurred)
	assert.Equal(t, "sup-1", body.Intervention.SupervisorID)
	assert.NotNil(t, body.Intervention.Timestamp)

	stored := ts.repo.get("a")
	assert.Equal(t, domain.StatusEscalated, stored.Status)
	assert.True(t, stored.InterventionActive())

	liveConv, ok := ts.state.Get("a")
	require.True(t, ok)
	assert.Equal(t, domain.StatusEscalated, liveConv.Status)

	rec = ts.do(http.MethodPost, "/api/intervene/release", `{"conversationId":"a","supervisorNotes":"refund issued"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Intervention released, control returned to agent"}`, rec.Body.String())

	stored = ts.repo.get("a")
	assert.Equal(t, domain.StatusActive, stored.Status)
	assert.False(t, stored.HumanIntervention.Occurred)
	assert.Equal(t, "sup-1", stored.HumanIntervention.SupervisorID)
	assert.Equal(t, "refund issued", stored.SupervisorNotes)
}

func TestReleaseWithoutIntervention(t *testing.T) {
	ts := newTestServer(conversation("a", 0))

	rec := ts.do(http.MethodPost, "/api/intervene/release", `{"conversationId":"a"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, domain.StatusActive, ts.repo.get("a").Status)
}

func TestInterventionValidation(t *testing.T) {
	ts := newTestServer(conversation("a", 0))

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"missing supervisor", "/api/intervene", `{"conversationId":"a"}`, http.StatusBadRequest},
		{"missing conversation id", "/api/intervene", `{"supervisorId":"sup-1"}`, http.StatusBadRequest},
		{"unknown conversation", "/api/intervene", `{"conversationId":"zzz","supervisorId":"sup-1"}`, http.StatusNotFound},
		{"malformed body", "/api/intervene", `not json`, http.StatusBadRequest},
		{"release missing id", "/api/intervene/release", `{}`, http.StatusBadRequest},
		{"release unknown conversation", "/api/intervene/release", `{"conversationId":"zzz"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestInterveneFallsBackToCallerIdentity(t *testing.T) {
	ts := newTestServer(conversation("a", 0))

	req := httptest.NewRequest(http.MethodPost, "/api/intervene", strings.NewReader(`{"conversationId":"a"}`))
	req = req.WithContext(identity.WithSupervisorID(req.Context(), "sup-carol"))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sup-carol", ts.repo.get("a").HumanIntervention.SupervisorID)
}
