package store

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ashureev/agent-supervisor/internal/domain"
)

//go:embed data/catalog.yaml
var catalogYAML []byte

type seedCatalog struct {
	Agents    []*domain.Agent            `yaml:"agents"`
	Templates []*domain.ResponseTemplate `yaml:"templates"`
}

func loadSeedCatalog() seedCatalog {
	var c seedCatalog
	if err := yaml.Unmarshal(catalogYAML, &c); err != nil {
		panic("store: invalid embedded catalog: " + err.Error())
	}
	return c
}

// DemoAgents returns the agents inserted on first start.
func DemoAgents() []*domain.Agent {
	return loadSeedCatalog().Agents
}

// DemoTemplates returns the response templates inserted on first start.
func DemoTemplates() []*domain.ResponseTemplate {
	return loadSeedCatalog().Templates
}

// DemoConversations returns the conversations inserted on first start.
func DemoConversations() []*domain.Conversation {
	at := func(s string) time.Time {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			panic(err)
		}
		return t
	}
	resolvedAt := at("2025-04-22T10:16:20Z")

	return []*domain.Conversation{
		{
			ID:         "conv001",
			Customer:   domain.Participant{ID: "cust001", Name: "John Doe"},
			Agent:      domain.Participant{ID: "agentA1", Name: "Agent A1"},
			Status:     domain.StatusResolved,
			AlertLevel: domain.AlertLow,
			StartTime:  at("2025-04-22T10:15:00Z"),
			EndTime:    &resolvedAt,
			Metrics:    domain.Metrics{Sentiment: 0.85, ResponseTime: 6, ConfidenceScore: 0.92},
			Messages: []domain.Message{
				{Sender: domain.SenderCustomer, Text: "Hi, I received a damaged product. What should I do?", Timestamp: at("2025-04-22T10:15:05Z")},
				{Sender: domain.SenderAgent, Text: "I'm sorry to hear that! Can you please send a picture of the damage?", Timestamp: at("2025-04-22T10:15:30Z")},
				{Sender: domain.SenderCustomer, Text: "Sure, here it is.", Timestamp: at("2025-04-22T10:16:00Z")},
				{Sender: domain.SenderAgent, Text: "Thanks! We'll process a replacement immediately.", Timestamp: resolvedAt},
			},
			Tags: []string{"damaged_item", "replacement"},
		},
		{
			ID:         "conv002",
			Customer:   domain.Participant{ID: "cust002", Name: "Jane Smith"},
			Agent:      domain.Participant{ID: "agentB2", Name: "Agent B2"},
			Status:     domain.StatusActive,
			AlertLevel: domain.AlertMedium,
			StartTime:  at("2025-04-21T13:00:00Z"),
			Metrics:    domain.Metrics{Sentiment: 0.7, ResponseTime: 8, ConfidenceScore: 0.88},
			Messages: []domain.Message{
				{Sender: domain.SenderCustomer, Text: "I want to return my order, it doesn't fit.", Timestamp: at("2025-04-21T13:00:10Z")},
				{Sender: domain.SenderAgent, Text: "Understood. I'll guide you through the return process.", Timestamp: at("2025-04-21T13:00:45Z")},
			},
			Tags: []string{"return_request"},
		},
	}
}

// SeedDemoData inserts the demo conversations when the repository is empty.
// It returns the number of conversations inserted.
func SeedDemoData(ctx context.Context, repo Repository) (int, error) {
	n, err := repo.CountConversations(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Debug("Skipping demo seed, conversations already present", "count", n)
		return 0, nil
	}

	inserted := 0
	for _, c := range DemoConversations() {
		if err := repo.CreateConversation(ctx, c); err != nil {
			return inserted, fmt.Errorf("seed %s: %w", c.ID, err)
		}
		inserted++
	}
	slog.Info("Seeded demo conversations", "count", inserted)
	return inserted, nil
}

// SeedCatalog inserts the demo agents and templates into whichever of the two
// tables is empty. It returns how many of each were inserted.
func SeedCatalog(ctx context.Context, agents AgentRepository, templates TemplateRepository) (int, int, error) {
	existingAgents, err := agents.ListAgents(ctx)
	if err != nil {
		return 0, 0, err
	}
	agentsSeeded := 0
	if len(existingAgents) == 0 {
		for _, a := range DemoAgents() {
			if err := agents.CreateAgent(ctx, a); err != nil {
				return agentsSeeded, 0, fmt.Errorf("seed agent %s: %w", a.ID, err)
			}
			agentsSeeded++
		}
	}

	existingTemplates, err := templates.ListTemplates(ctx, "")
	if err != nil {
		return agentsSeeded, 0, err
	}
	templatesSeeded := 0
	if len(existingTemplates) == 0 {
		for _, t := range DemoTemplates() {
			if err := templates.CreateTemplate(ctx, t); err != nil {
				return agentsSeeded, templatesSeeded, fmt.Errorf("seed template %s: %w", t.ID, err)
			}
			templatesSeeded++
		}
	}

	slog.Info("Seeded demo catalog", "agents", agentsSeeded, "templates", templatesSeeded)
	return agentsSeeded, templatesSeeded, nil
}
