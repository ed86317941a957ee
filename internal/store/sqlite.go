package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ashureev/agent-supervisor/internal/domain"
	"github.com/ashureev/agent-supervisor/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	retry shared.RetryPolicy
}

// NewSQLite creates a new SQLite-backed repository. Writes that hit lock
// contention are retried according to retry.
func NewSQLite(dbPath string, retry shared.RetryPolicy) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, retry: retry}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		customer_name TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		agent_name TEXT NOT NULL,
		status TEXT NOT NULL,
		alert_level TEXT NOT NULL,
		start_time INTEGER NOT NULL,
		end_time INTEGER,
		sentiment REAL NOT NULL DEFAULT 0,
		response_time REAL NOT NULL DEFAULT 0,
		confidence_score REAL NOT NULL DEFAULT 0,
		messages_json TEXT NOT NULL DEFAULT '[]',
		tags_json TEXT NOT NULL DEFAULT '[]',
		supervisor_notes TEXT NOT NULL DEFAULT '',
		intervention_json TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_start ON conversations(start_time DESC);
	CREATE INDEX IF NOT EXISTS idx_conversations_status ON conversations(status, alert_level);
	CREATE INDEX IF NOT EXISTS idx_conversations_agent ON conversations(agent_id);

	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		model TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		parameters_json TEXT NOT NULL DEFAULT '{}',
		capabilities_json TEXT NOT NULL DEFAULT '[]',
		knowledge_bases_json TEXT NOT NULL DEFAULT '[]',
		thresholds_json TEXT NOT NULL DEFAULT '{}',
		metrics_json TEXT,
		persona_json TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS templates (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		content TEXT NOT NULL,
		variables_json TEXT NOT NULL DEFAULT '[]',
		created_by TEXT NOT NULL DEFAULT 'system',
		is_shared INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_templates_category ON templates(category, created_at DESC);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

const conversationColumns = `id, customer_id, customer_name, agent_id, agent_name,
	status, alert_level, start_time, end_time,
	sentiment, response_time, confidence_score,
	messages_json, tags_json, supervisor_notes, intervention_json`

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ListConversations returns one page of conversations, newest first.
func (s *SQLiteStore) ListConversations(ctx context.Context, filter ConversationFilter) ([]*domain.Conversation, int, error) {
	where, args := filterClause(filter)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count conversations: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	offset := max(filter.Offset, 0)

	query := `SELECT ` + conversationColumns + ` FROM conversations` + where +
		` ORDER BY start_time DESC, id ASC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query conversations: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close conversation rows", "error", closeErr)
		}
	}()

	var out []*domain.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate conversations: %w", err)
	}

	return out, total, nil
}

func filterClause(filter ConversationFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.AlertLevel != "" {
		conds = append(conds, "alert_level = ?")
		args = append(args, string(filter.AlertLevel))
	}
	if filter.AgentID != "" {
		conds = append(conds, "agent_id = ?")
		args = append(args, filter.AgentID)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// GetConversation retrieves a conversation by id.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id)
	c, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CreateConversation inserts a new conversation.
func (s *SQLiteStore) CreateConversation(ctx context.Context, c *domain.Conversation) error {
	cols, err := encodeConversation(c)
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()

	query := `
	INSERT INTO conversations (` + conversationColumns + `, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	err = shared.RetryOnConflict(ctx, s.retry, "create conversation", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, query, append(cols, now, now)...)
		return err
	})
	if shared.IsSQLiteConstraintError(err) {
		return fmt.Errorf("create conversation %s: %w", c.ID, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

// UpdateConversation replaces a stored conversation.
func (s *SQLiteStore) UpdateConversation(ctx context.Context, c *domain.Conversation) error {
	cols, err := encodeConversation(c)
	if err != nil {
		return err
	}

	query := `
	UPDATE conversations SET
		customer_id = ?, customer_name = ?, agent_id = ?, agent_name = ?,
		status = ?, alert_level = ?, start_time = ?, end_time = ?,
		sentiment = ?, response_time = ?, confidence_score = ?,
		messages_json = ?, tags_json = ?, supervisor_notes = ?, intervention_json = ?,
		updated_at = ?
	WHERE id = ?`
	args := make([]any, 0, len(cols)+1)
	args = append(args, cols[1:]...)
	args = append(args, time.Now().UnixMilli(), c.ID)

	var rows int64
	err = shared.RetryOnConflict(ctx, s.retry, "update conversation", func(ctx context.Context) error {
		result, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		rows, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateConversation affected 0 rows", "conversation_id", c.ID)
		return fmt.Errorf("update conversation %s: %w", c.ID, ErrNotFound)
	}
	return nil
}

// CountConversations returns the number of stored conversations.
func (s *SQLiteStore) CountConversations(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count conversations: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// encodeConversation returns the values of conversationColumns, in order.
func encodeConversation(c *domain.Conversation) ([]any, error) {
	messages := c.Messages
	if messages == nil {
		messages = []domain.Message{}
	}
	messagesJSON, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("encode messages: %w", err)
	}
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	interventionJSON, err := json.Marshal(c.HumanIntervention)
	if err != nil {
		return nil, fmt.Errorf("encode intervention: %w", err)
	}

	var endTime any
	if c.EndTime != nil {
		endTime = c.EndTime.UnixMilli()
	}

	return []any{
		c.ID, c.Customer.ID, c.Customer.Name, c.Agent.ID, c.Agent.Name,
		string(c.Status), string(c.AlertLevel), c.StartTime.UnixMilli(), endTime,
		c.Metrics.Sentiment, c.Metrics.ResponseTime, c.Metrics.ConfidenceScore,
		string(messagesJSON), string(tagsJSON), c.SupervisorNotes, string(interventionJSON),
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*domain.Conversation, error) {
	var c domain.Conversation
	var status, alertLevel string
	var startTime int64
	var endTime sql.NullInt64
	var messagesJSON, tagsJSON, interventionJSON string

	err := row.Scan(
		&c.ID, &c.Customer.ID, &c.Customer.Name, &c.Agent.ID, &c.Agent.Name,
		&status, &alertLevel, &startTime, &endTime,
		&c.Metrics.Sentiment, &c.Metrics.ResponseTime, &c.Metrics.ConfidenceScore,
		&messagesJSON, &tagsJSON, &c.SupervisorNotes, &interventionJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation row: %w", err)
	}

	c.Status = domain.Status(status)
	c.AlertLevel = domain.AlertLevel(alertLevel)
	c.StartTime = time.UnixMilli(startTime).UTC()
	if endTime.Valid {
		end := time.UnixMilli(endTime.Int64).UTC()
		c.EndTime = &end
	}
	if err := json.Unmarshal([]byte(messagesJSON), &c.Messages); err != nil {
		return nil, fmt.Errorf("decode messages of %s: %w", c.ID, err)
	}
	if len(c.Messages) == 0 {
		c.Messages = nil
	}
	if err := json.Unmarshal([]byte(tagsJSON), &c.Tags); err != nil {
		return nil, fmt.Errorf("decode tags of %s: %w", c.ID, err)
	}
	if len(c.Tags) == 0 {
		c.Tags = nil
	}
	if err := json.Unmarshal([]byte(interventionJSON), &c.HumanIntervention); err != nil {
		return nil, fmt.Errorf("decode intervention of %s: %w", c.ID, err)
	}

	return &c, nil
}

const agentColumns = `id, name, model, description, status,
	parameters_json, capabilities_json, knowledge_bases_json, thresholds_json,
	metrics_json, persona_json`

// ListAgents returns every agent ordered by id.
func (s *SQLiteStore) ListAgents(ctx context.Context) ([]*domain.Agent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+agentColumns+` FROM agents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query agents: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close agent rows", "error", closeErr)
		}
	}()

	var out []*domain.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agents: %w", err)
	}
	return out, nil
}

// GetAgent retrieves an agent by id.
func (s *SQLiteStore) GetAgent(ctx context.Context, id string) (*domain.Agent, error) {
	a, err := scanAgent(s.db.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// CreateAgent inserts a new agent.
func (s *SQLiteStore) CreateAgent(ctx context.Context, a *domain.Agent) error {
	cols, err := encodeAgent(a)
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()

	query := `
	INSERT INTO agents (` + agentColumns + `, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	err = shared.RetryOnConflict(ctx, s.retry, "create agent", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, query, append(cols, now, now)...)
		return err
	})
	if shared.IsSQLiteConstraintError(err) {
		return fmt.Errorf("create agent %s: %w", a.ID, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert agent: %w", err)
	}
	return nil
}

// UpdateAgent replaces a stored agent.
func (s *SQLiteStore) UpdateAgent(ctx context.Context, a *domain.Agent) error {
	cols, err := encodeAgent(a)
	if err != nil {
		return err
	}

	query := `
	UPDATE agents SET
		name = ?, model = ?, description = ?, status = ?,
		parameters_json = ?, capabilities_json = ?, knowledge_bases_json = ?, thresholds_json = ?,
		metrics_json = ?, persona_json = ?,
		updated_at = ?
	WHERE id = ?`
	args := make([]any, 0, len(cols)+1)
	args = append(args, cols[1:]...)
	args = append(args, time.Now().UnixMilli(), a.ID)

	return s.execUpdate(ctx, "update agent", a.ID, query, args)
}

// execUpdate runs a single-row UPDATE and reports ErrNotFound when no row matched.
func (s *SQLiteStore) execUpdate(ctx context.Context, name, id, query string, args []any) error {
	var rows int64
	err := shared.RetryOnConflict(ctx, s.retry, name, func(ctx context.Context) error {
		result, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		rows, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s %s: %w", name, id, ErrNotFound)
	}
	return nil
}

func encodeAgent(a *domain.Agent) ([]any, error) {
	capabilities := a.Capabilities
	if capabilities == nil {
		capabilities = []domain.Feature{}
	}
	knowledgeBases := a.KnowledgeBases
	if knowledgeBases == nil {
		knowledgeBases = []domain.Feature{}
	}

	encoded := make([]string, 0, 5)
	for _, v := range []any{a.Parameters, capabilities, knowledgeBases, a.EscalationThresholds, a.Persona} {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode agent %s: %w", a.ID, err)
		}
		encoded = append(encoded, string(b))
	}

	var metrics any
	if a.Metrics != nil {
		b, err := json.Marshal(a.Metrics)
		if err != nil {
			return nil, fmt.Errorf("encode agent metrics: %w", err)
		}
		metrics = string(b)
	}

	return []any{
		a.ID, a.Name, a.Model, a.Description, string(a.Status),
		encoded[0], encoded[1], encoded[2], encoded[3],
		metrics, encoded[4],
	}, nil
}

func scanAgent(row rowScanner) (*domain.Agent, error) {
	var a domain.Agent
	var status string
	var parametersJSON, capabilitiesJSON, knowledgeBasesJSON, thresholdsJSON, personaJSON string
	var metricsJSON sql.NullString

	err := row.Scan(
		&a.ID, &a.Name, &a.Model, &a.Description, &status,
		&parametersJSON, &capabilitiesJSON, &knowledgeBasesJSON, &thresholdsJSON,
		&metricsJSON, &personaJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan agent row: %w", err)
	}

	a.Status = domain.AgentStatus(status)
	fields := []struct {
		raw  string
		dest any
	}{
		{parametersJSON, &a.Parameters},
		{capabilitiesJSON, &a.Capabilities},
		{knowledgeBasesJSON, &a.KnowledgeBases},
		{thresholdsJSON, &a.EscalationThresholds},
		{personaJSON, &a.Persona},
	}
	for _, f := range fields {
		if err := json.Unmarshal([]byte(f.raw), f.dest); err != nil {
			return nil, fmt.Errorf("decode agent %s: %w", a.ID, err)
		}
	}
	if metricsJSON.Valid {
		a.Metrics = &domain.AgentMetrics{}
		if err := json.Unmarshal([]byte(metricsJSON.String), a.Metrics); err != nil {
			return nil, fmt.Errorf("decode metrics of agent %s: %w", a.ID, err)
		}
	}
	return &a, nil
}

const templateColumns = `id, name, category, content, variables_json, created_by, is_shared, created_at, updated_at`

// ListTemplates returns templates, newest first, optionally narrowed to category.
func (s *SQLiteStore) ListTemplates(ctx context.Context, category string) ([]*domain.ResponseTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM templates`
	var args []any
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY created_at DESC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close template rows", "error", closeErr)
		}
	}()

	var out []*domain.ResponseTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	return out, nil
}

// GetTemplate retrieves a template by id.
func (s *SQLiteStore) GetTemplate(ctx context.Context, id string) (*domain.ResponseTemplate, error) {
	t, err := scanTemplate(s.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// CreateTemplate inserts a new template. Zero timestamps are set to now.
func (s *SQLiteStore) CreateTemplate(ctx context.Context, t *domain.ResponseTemplate) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	cols, err := encodeTemplate(t)
	if err != nil {
		return err
	}

	query := `INSERT INTO templates (` + templateColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	err = shared.RetryOnConflict(ctx, s.retry, "create template", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, query, cols...)
		return err
	})
	if shared.IsSQLiteConstraintError(err) {
		return fmt.Errorf("create template %s: %w", t.ID, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

// UpdateTemplate replaces a stored template. The creation time is kept.
func (s *SQLiteStore) UpdateTemplate(ctx context.Context, t *domain.ResponseTemplate) error {
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = time.Now().UTC()
	}
	cols, err := encodeTemplate(t)
	if err != nil {
		return err
	}

	query := `
	UPDATE templates SET
		name = ?, category = ?, content = ?, variables_json = ?,
		created_by = ?, is_shared = ?, updated_at = ?
	WHERE id = ?`
	args := []any{cols[1], cols[2], cols[3], cols[4], cols[5], cols[6], cols[8], t.ID}

	return s.execUpdate(ctx, "update template", t.ID, query, args)
}

// DeleteTemplate removes a template.
func (s *SQLiteStore) DeleteTemplate(ctx context.Context, id string) error {
	return s.execUpdate(ctx, "delete template", id, `DELETE FROM templates WHERE id = ?`, []any{id})
}

func encodeTemplate(t *domain.ResponseTemplate) ([]any, error) {
	variables := t.Variables
	if variables == nil {
		variables = []domain.TemplateVariable{}
	}
	variablesJSON, err := json.Marshal(variables)
	if err != nil {
		return nil, fmt.Errorf("encode template variables: %w", err)
	}
	isShared := 0
	if t.IsShared {
		isShared = 1
	}
	return []any{
		t.ID, t.Name, t.Category, t.Content, string(variablesJSON),
		t.CreatedBy, isShared, t.CreatedAt.UnixMilli(), t.UpdatedAt.UnixMilli(),
	}, nil
}

func scanTemplate(row rowScanner) (*domain.ResponseTemplate, error) {
	var t domain.ResponseTemplate
	var variablesJSON string
	var isShared int
	var createdAt, updatedAt int64

	err := row.Scan(&t.ID, &t.Name, &t.Category, &t.Content, &variablesJSON,
		&t.CreatedBy, &isShared, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan template row: %w", err)
	}

	if err := json.Unmarshal([]byte(variablesJSON), &t.Variables); err != nil {
		return nil, fmt.Errorf("decode variables of template %s: %w", t.ID, err)
	}
	t.IsShared = isShared != 0
	t.CreatedAt = time.UnixMilli(createdAt).UTC()
	t.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &t, nil
}
