// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/ashureev/agent-supervisor/internal/domain"
)

var (
	// ErrNotFound is returned by writes that target a missing record.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a record id is already taken.
	ErrDuplicate = errors.New("record already exists")
)

// ConversationFilter narrows ListConversations. Zero values match everything.
type ConversationFilter struct {
	Status     domain.Status
	AlertLevel domain.AlertLevel
	AgentID    string
	Offset     int
	Limit      int
}

// Repository defines the interface for persisting conversations.
type Repository interface {
	// ListConversations returns one page of conversations, newest first, and
	// the total number matching the filter.
	ListConversations(ctx context.Context, filter ConversationFilter) ([]*domain.Conversation, int, error)

	// GetConversation retrieves a conversation by id. It returns (nil, nil)
	// when no conversation exists.
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)

	// CreateConversation inserts a new conversation.
	CreateConversation(ctx context.Context, c *domain.Conversation) error

	// UpdateConversation replaces a stored conversation.
	UpdateConversation(ctx context.Context, c *domain.Conversation) error

	// CountConversations returns the number of stored conversations.
	CountConversations(ctx context.Context) (int, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// AgentRepository persists the AI agents and their configuration.
type AgentRepository interface {
	// ListAgents returns every agent ordered by id.
	ListAgents(ctx context.Context) ([]*domain.Agent, error)

	// GetAgent retrieves an agent by id. It returns (nil, nil) when no agent exists.
	GetAgent(ctx context.Context, id string) (*domain.Agent, error)

	// CreateAgent inserts a new agent.
	CreateAgent(ctx context.Context, a *domain.Agent) error

	// UpdateAgent replaces a stored agent.
	UpdateAgent(ctx context.Context, a *domain.Agent) error
}

// TemplateRepository persists response templates.
type TemplateRepository interface {
	// ListTemplates returns templates, newest first. An empty category matches all.
	ListTemplates(ctx context.Context, category string) ([]*domain.ResponseTemplate, error)

	// GetTemplate retrieves a template by id. It returns (nil, nil) when no template exists.
	GetTemplate(ctx context.Context, id string) (*domain.ResponseTemplate, error)

	// CreateTemplate inserts a new template.
	CreateTemplate(ctx context.Context, t *domain.ResponseTemplate) error

	// UpdateTemplate replaces a stored template.
	UpdateTemplate(ctx context.Context, t *domain.ResponseTemplate) error

	// DeleteTemplate removes a template.
	DeleteTemplate(ctx context.Context, id string) error
}
