package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardHandler(t *testing.T) {
	h := DashboardHandler()

	tests := []struct {
		name     string
		path     string
		contains string
		noCache  bool
	}{
		{"index", "/", "Agent Supervisor", true},
		{"script", "/app.js", "conversations_update", false},
		{"client route falls back to index", "/conversations/conv-001", "Agent Supervisor", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.contains)
			assert.Equal(t, tt.noCache, rec.Header().Get("Cache-Control") == "no-cache")
		})
	}
}

func TestDashboardHandlerMissingAsset(t *testing.T) {
	rec := httptest.NewRecorder()
	DashboardHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing.js", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
