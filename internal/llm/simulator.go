package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/agent-supervisor/internal/random"
)

// ChatMessage is one turn of the transcript sent to the simulator.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateRequest asks the simulator for the next agent reply.
type GenerateRequest struct {
	ConversationID string        `json:"conversationId"`
	Messages       []ChatMessage `json:"messages"`
	Parameters     Parameters    `json:"parameters"`
	KnowledgeBases []string      `json:"knowledgeBases,omitempty"`
}

// ResponseMetrics are the mock quality numbers attached to a generated reply.
// Sentiment is always nil: it is measured on customer messages, not agent replies.
type ResponseMetrics struct {
	ResponseTime    float64  `json:"responseTime"`
	ConfidenceScore float64  `json:"confidenceScore"`
	Sentiment       *float64 `json:"sentiment"`
}

// GenerateResult is the simulator's reply.
type GenerateResult struct {
	Response string          `json:"response"`
	Intent   Intent          `json:"intent"`
	Metrics  ResponseMetrics `json:"metrics"`
}

// Simulator stands in for a language model backend.
type Simulator struct {
	generator       *Generator
	knowledge       *KnowledgeBase
	rnd             random.Source
	simulateLatency bool
	logger          *slog.Logger
}

// SimulatorConfig wires a Simulator.
type SimulatorConfig struct {
	Catalog         *Catalog
	Random          random.Source
	Now             func() time.Time
	SimulateLatency bool
	Logger          *slog.Logger
}

// NewSimulator builds a simulator from cfg.
func NewSimulator(cfg SimulatorConfig) (*Simulator, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Random == nil {
		cfg.Random = random.New(0)
	}
	kb, err := NewKnowledgeBase(nil, cfg.Random)
	if err != nil {
		return nil, err
	}
	return &Simulator{
		generator:       NewGenerator(cfg.Catalog, cfg.Random, cfg.Now),
		knowledge:       kb,
		rnd:             cfg.Random,
		simulateLatency: cfg.SimulateLatency,
		logger:          cfg.Logger,
	}, nil
}

// Generate replies to the last customer message of req. It only fails when ctx
// is cancelled while the simulated processing delay is pending.
func (s *Simulator) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	delay := time.Duration(300+s.rnd.IntN(700)) * time.Millisecond
	if s.simulateLatency {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	text := lastCustomerMessage(req.Messages)
	intent := DetectIntent(text)
	response := s.generator.Generate(intent, text, req.Parameters)

	confidence := s.rnd.Float64()*0.3 + 0.6
	if t := req.Parameters.Temperature; t != nil {
		confidence = max(0.4, 1-*t)
	}

	s.logger.Debug("Generated simulated reply",
		"conversation_id", req.ConversationID,
		"intent", intent,
		"delay", delay)

	return &GenerateResult{
		Response: response,
		Intent:   intent,
		Metrics: ResponseMetrics{
			ResponseTime:    delay.Seconds(),
			ConfidenceScore: confidence,
		},
	}, nil
}

// Classify runs the classifier on text.
func (s *Simulator) Classify(text string) Classification {
	return Classify(text)
}

// Knowledge looks up documentation relevant to query.
func (s *Simulator) Knowledge(query string, bases []string, limit int) []KnowledgeResult {
	return s.knowledge.Retrieve(query, bases, limit)
}

func lastCustomerMessage(messages []ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "customer" {
			return messages[i].Content
		}
	}
	return ""
}
