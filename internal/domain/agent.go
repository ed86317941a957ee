package domain

import "fmt"

// AgentStatus is the availability of an AI agent.
type AgentStatus string

const (
	AgentActive      AgentStatus = "active"
	AgentInactive    AgentStatus = "inactive"
	AgentMaintenance AgentStatus = "maintenance"
)

// Valid reports whether s is a known agent status.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentActive, AgentInactive, AgentMaintenance:
		return true
	}
	return false
}

// AgentParameters tune the agent's model.
type AgentParameters struct {
	Temperature float64 `json:"temperature" yaml:"temperature"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`
	TopP        float64 `json:"top_p" yaml:"top_p"`
}

// Feature is a capability or knowledge base an agent can have switched on.
type Feature struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// EscalationThresholds decide when a conversation is flagged for a supervisor.
// ResponseTime is in seconds.
type EscalationThresholds struct {
	LowConfidence     float64 `json:"lowConfidence" yaml:"lowConfidence"`
	NegativeSentiment float64 `json:"negativeSentiment" yaml:"negativeSentiment"`
	ResponseTime      float64 `json:"responseTime" yaml:"responseTime"`
}

// IssueCount is how often an issue came up.
type IssueCount struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

// AgentMetrics are the long-running performance figures of an agent.
type AgentMetrics struct {
	Conversations   int          `json:"conversations" yaml:"conversations"`
	AvgResponseTime float64      `json:"avgResponseTime" yaml:"avgResponseTime"`
	Satisfaction    float64      `json:"satisfaction" yaml:"satisfaction"`
	EscalationRate  float64      `json:"escalationRate" yaml:"escalationRate"`
	TopIssues       []IssueCount `json:"topIssues" yaml:"topIssues"`
}

// Persona describes how an agent talks and what it knows about.
type Persona struct {
	Style     string   `json:"style" yaml:"style"`
	Knowledge []string `json:"knowledge" yaml:"knowledge"`
}

// Agent is an AI customer-service agent.
type Agent struct {
	ID                   string               `json:"id" yaml:"id"`
	Name                 string               `json:"name" yaml:"name"`
	Model                string               `json:"model" yaml:"model"`
	Description          string               `json:"description" yaml:"description"`
	Parameters           AgentParameters      `json:"parameters" yaml:"parameters"`
	Capabilities         []Feature            `json:"capabilities" yaml:"capabilities"`
	KnowledgeBases       []Feature            `json:"knowledgeBases" yaml:"knowledgeBases"`
	EscalationThresholds EscalationThresholds `json:"escalationThresholds" yaml:"escalationThresholds"`
	Status               AgentStatus          `json:"status" yaml:"status"`
	Metrics              *AgentMetrics        `json:"metrics,omitempty" yaml:"metrics"`
	Persona              Persona              `json:"persona" yaml:"persona"`
}

// ParametersPatch holds the parameters a config update sets. Nil fields are left alone.
type ParametersPatch struct {
	Temperature *float64 `json:"temperature"`
	MaxTokens   *int     `json:"max_tokens"`
	TopP        *float64 `json:"top_p"`
}

// ThresholdsPatch holds the escalation thresholds a config update sets.
type ThresholdsPatch struct {
	LowConfidence     *float64 `json:"lowConfidence"`
	NegativeSentiment *float64 `json:"negativeSentiment"`
	ResponseTime      *float64 `json:"responseTime"`
}

// FeatureToggle switches a capability or knowledge base by id.
type FeatureToggle struct {
	ID      string `json:"id"`
	Enabled bool   `json:"enabled"`
}

// AgentConfig is a partial update of an agent's configuration.
type AgentConfig struct {
	Parameters           *ParametersPatch `json:"parameters"`
	Capabilities         []FeatureToggle  `json:"capabilities"`
	KnowledgeBases       []FeatureToggle  `json:"knowledgeBases"`
	EscalationThresholds *ThresholdsPatch `json:"escalationThresholds"`
}

// Configure applies cfg. Toggles for ids the agent does not have are ignored,
// and nothing changes when a value is out of range.
func (a *Agent) Configure(cfg AgentConfig) error {
	params := a.Parameters
	if p := cfg.Parameters; p != nil {
		if p.Temperature != nil {
			params.Temperature = *p.Temperature
		}
		if p.MaxTokens != nil {
			params.MaxTokens = *p.MaxTokens
		}
		if p.TopP != nil {
			params.TopP = *p.TopP
		}
	}
	if params.Temperature < 0 || params.Temperature > 1 {
		return fmt.Errorf("temperature must be within [0,1], got %v", params.Temperature)
	}
	if params.TopP < 0 || params.TopP > 1 {
		return fmt.Errorf("top_p must be within [0,1], got %v", params.TopP)
	}
	if params.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be >= 1, got %d", params.MaxTokens)
	}

	thresholds := a.EscalationThresholds
	if t := cfg.EscalationThresholds; t != nil {
		if t.LowConfidence != nil {
			thresholds.LowConfidence = *t.LowConfidence
		}
		if t.NegativeSentiment != nil {
			thresholds.NegativeSentiment = *t.NegativeSentiment
		}
		if t.ResponseTime != nil {
			thresholds.ResponseTime = *t.ResponseTime
		}
	}
	if thresholds.ResponseTime < 0 {
		return fmt.Errorf("responseTime threshold cannot be negative")
	}

	a.Parameters = params
	a.EscalationThresholds = thresholds
	toggle(a.Capabilities, cfg.Capabilities)
	toggle(a.KnowledgeBases, cfg.KnowledgeBases)
	return nil
}

func toggle(features []Feature, toggles []FeatureToggle) {
	for _, t := range toggles {
		for i := range features {
			if features[i].ID == t.ID {
				features[i].Enabled = t.Enabled
			}
		}
	}
}

// MetricsOrZero returns the agent's metrics, or zero figures with an empty
// issue list when none were recorded.
func (a *Agent) MetricsOrZero() AgentMetrics {
	if a.Metrics == nil {
		return AgentMetrics{TopIssues: []IssueCount{}}
	}
	m := *a.Metrics
	if m.TopIssues == nil {
		m.TopIssues = []IssueCount{}
	}
	return m
}
