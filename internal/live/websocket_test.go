package live

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/agent-supervisor/internal/domain"
	"github.com/ashureev/agent-supervisor/internal/random"
)

func quietConfig() Config {
	cfg := DefaultConfig()
	cfg.SnapshotDelay = 10 * time.Millisecond
	cfg.PingInterval = time.Hour
	cfg.MessageInterval = time.Hour
	cfg.NewConversationInterval = time.Hour
	return cfg
}

func readFrame(ctx context.Context, t *testing.T, c *websocket.Conn) map[string]any {
	t.Helper()
	var frame map[string]any
	require.NoError(t, wsjson.Read(ctx, c, &frame))
	return frame
}

func TestWebSocketHandler_Feed(t *testing.T) {
	sm := NewSessionManager(nil)
	state := NewState([]domain.Conversation{seedConversation("conv-a")}, 0)
	h := NewWebSocketHandler(sm, quietConfig(), Deps{State: state, Random: random.New(1)}, "", true)

	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)

	frame := readFrame(ctx, t, c)
	assert.Equal(t, "connection", frame["type"])
	assert.Equal(t, "Connected to Agent Supervisor WebSocket server", frame["message"])

	frame = readFrame(ctx, t, c)
	assert.Equal(t, "conversations_update", frame["type"])
	data, ok := frame["data"].([]any)
	require.True(t, ok)
	require.Len(t, data, 1)
	first, ok := data[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "conv-a", first["id"])
	assert.NotContains(t, first, "messages")

	require.NoError(t, wsjson.Write(ctx, c, map[string]string{"type": "subscribe", "channel": "alerts"}))
	frame = readFrame(ctx, t, c)
	assert.Equal(t, "subscription_confirmation", frame["type"])
	assert.Equal(t, "Subscribed to alerts", frame["message"])

	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte("garbage")))
	require.NoError(t, wsjson.Write(ctx, c, map[string]string{"type": "ping"}))
	frame = readFrame(ctx, t, c)
	assert.Equal(t, "pong", frame["type"])

	require.Equal(t, 1, sm.Count())
	require.NoError(t, c.Close(websocket.StatusNormalClosure, ""))
	require.Eventually(t, func() bool { return sm.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketHandler_RejectsForeignOrigin(t *testing.T) {
	sm := NewSessionManager(nil)
	h := NewWebSocketHandler(sm, quietConfig(), Deps{}, "https://supervisor.example.com", false)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, sm.Count())
}

func TestWebSocketHandler_CheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed string
		isDev   bool
		origin  string
		want    bool
	}{
		{"dev allows anything", "https://a.example.com", true, "https://b.example.com", true},
		{"missing origin", "https://a.example.com", false, "", true},
		{"wildcard", "*", false, "https://b.example.com", true},
		{"exact match", "https://a.example.com", false, "https://a.example.com", true},
		{"mismatch", "https://a.example.com", false, "https://b.example.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewWebSocketHandler(NewSessionManager(nil), quietConfig(), Deps{}, tt.allowed, tt.isDev)
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, h.checkOrigin(req))
		})
	}
}
