package live

import (
	"time"

	"github.com/ashureev/agent-supervisor/internal/domain"
)

// FrameType is the "type" discriminator of a live feed frame.
type FrameType string

// Frame types exchanged on the live feed.
const (
	FrameConnection      FrameType = "connection"
	FramePing            FrameType = "ping"
	FramePong            FrameType = "pong"
	FrameSubscribe       FrameType = "subscribe"
	FrameSubscription    FrameType = "subscription_confirmation"
	FrameConversations   FrameType = "conversations_update"
	FrameMessageUpdate   FrameType = "message_update"
	FrameMetricsUpdate   FrameType = "metrics_update"
	FrameNewConversation FrameType = "new_conversation"
)

const connectionGreeting = "Connected to Agent Supervisor WebSocket server"

// ConnectionFrame acknowledges a new connection.
type ConnectionFrame struct {
	Type      FrameType `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// PingFrame is a best-effort liveness check. It is also used for pong replies.
type PingFrame struct {
	Type      FrameType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// SubscriptionFrame confirms a subscribe request.
type SubscriptionFrame struct {
	Type      FrameType `json:"type"`
	Channel   string    `json:"channel"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationsFrame carries a snapshot of the shared conversation list.
type ConversationsFrame struct {
	Type      FrameType             `json:"type"`
	Data      []domain.Conversation `json:"data"`
	Timestamp time.Time             `json:"timestamp"`
}

// MessageUpdateFrame announces a message appended to a conversation.
type MessageUpdateFrame struct {
	Type           FrameType      `json:"type"`
	ConversationID string         `json:"conversationId"`
	Message        domain.Message `json:"message"`
	Timestamp      time.Time      `json:"timestamp"`
}

// MetricsUpdateFrame announces new quality metrics for a conversation.
type MetricsUpdateFrame struct {
	Type           FrameType      `json:"type"`
	ConversationID string         `json:"conversationId"`
	Metrics        domain.Metrics `json:"metrics"`
	Timestamp      time.Time      `json:"timestamp"`
}

// NewConversationFrame announces a conversation appended to the shared list.
type NewConversationFrame struct {
	Type      FrameType           `json:"type"`
	Data      domain.Conversation `json:"data"`
	Timestamp time.Time           `json:"timestamp"`
}

// inboundFrame is the union of frames a client may send.
type inboundFrame struct {
	Type       FrameType      `json:"type"`
	Channel    string         `json:"channel,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}
