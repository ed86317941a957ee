// Package domain contains core domain types for the agent supervisor.
package domain

import (
	"math"
	"slices"
	"time"
)

// Status is the lifecycle state of a conversation.
type Status string

const (
	StatusActive    Status = "active"
	StatusWaiting   Status = "waiting"
	StatusResolved  Status = "resolved"
	StatusEscalated Status = "escalated"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusWaiting, StatusResolved, StatusEscalated:
		return true
	}
	return false
}

// AlertLevel flags how urgently a supervisor should look at a conversation.
type AlertLevel string

const (
	AlertLow    AlertLevel = "low"
	AlertMedium AlertLevel = "medium"
	AlertHigh   AlertLevel = "high"
)

// Valid reports whether a is a known alert level.
func (a AlertLevel) Valid() bool {
	switch a {
	case AlertLow, AlertMedium, AlertHigh:
		return true
	}
	return false
}

// Participant identifies a customer or an agent.
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Metrics are the live quality signals of a conversation.
type Metrics struct {
	Sentiment       float64 `json:"sentiment"`
	ResponseTime    float64 `json:"responseTime"`
	ConfidenceScore float64 `json:"confidenceScore"`
}

// BlendSentiment moves the sentiment halfway toward score, keeping it within [0.1, 1].
func (m *Metrics) BlendSentiment(score float64) {
	m.Sentiment = math.Max(0.1, math.Min(1.0, (m.Sentiment+score)/2))
}

// HumanIntervention records a supervisor taking control of a conversation.
type HumanIntervention struct {
	Occurred     bool       `json:"occurred"`
	SupervisorID string     `json:"supervisorId,omitempty"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
	Notes        string     `json:"notes,omitempty"`
}

// Conversation is a customer/agent exchange monitored by supervisors.
type Conversation struct {
	ID                string            `json:"id"`
	Customer          Participant       `json:"customer"`
	Agent             Participant       `json:"agent"`
	Status            Status            `json:"status"`
	AlertLevel        AlertLevel        `json:"alertLevel"`
	StartTime         time.Time         `json:"startTime"`
	EndTime           *time.Time        `json:"endTime,omitempty"`
	Metrics           Metrics           `json:"metrics"`
	Messages          []Message         `json:"messages,omitempty"`
	Tags              []string          `json:"tags,omitempty"`
	SupervisorNotes   string            `json:"supervisorNotes,omitempty"`
	HumanIntervention HumanIntervention `json:"humanIntervention"`
}

// SetStatus moves the conversation to status. EndTime is set only while resolved,
// and an intervention only stays in effect while escalated.
func (c *Conversation) SetStatus(status Status, now time.Time) {
	c.Status = status
	if status == StatusResolved {
		end := now
		c.EndTime = &end
	} else {
		c.EndTime = nil
	}
	if status != StatusEscalated {
		c.HumanIntervention.Occurred = false
	}
}

// Escalate hands control to a supervisor.
func (c *Conversation) Escalate(supervisorID, notes string, now time.Time) {
	c.SetStatus(StatusEscalated, now)
	ts := now
	c.HumanIntervention = HumanIntervention{
		Occurred:     true,
		SupervisorID: supervisorID,
		Timestamp:    &ts,
		Notes:        notes,
	}
}

// InterventionActive reports whether a supervisor currently controls the conversation.
func (c *Conversation) InterventionActive() bool {
	return c.Status == StatusEscalated && c.HumanIntervention.Occurred
}

// Release returns control to the AI agent. The intervention record is kept
// for auditing but no longer marked as occurring.
func (c *Conversation) Release(supervisorNotes string, now time.Time) {
	c.SetStatus(StatusActive, now)
	if supervisorNotes != "" {
		c.SupervisorNotes = supervisorNotes
	}
}

// AddTags merges tags into the conversation, keeping first-seen order and no duplicates.
func (c *Conversation) AddTags(tags ...string) {
	for _, t := range tags {
		if t == "" || slices.Contains(c.Tags, t) {
			continue
		}
		c.Tags = append(c.Tags, t)
	}
}

// AppendMessage appends msg, dropping the oldest messages beyond limit (limit <= 0 keeps all).
func (c *Conversation) AppendMessage(msg Message, limit int) {
	c.Messages = append(c.Messages, msg)
	if limit > 0 && len(c.Messages) > limit {
		c.Messages = slices.Clone(c.Messages[len(c.Messages)-limit:])
	}
}

// Clone returns a copy that shares no mutable state with c.
func (c Conversation) Clone() Conversation {
	out := c
	out.Messages = slices.Clone(c.Messages)
	out.Tags = slices.Clone(c.Tags)
	if c.EndTime != nil {
		end := *c.EndTime
		out.EndTime = &end
	}
	if c.HumanIntervention.Timestamp != nil {
		ts := *c.HumanIntervention.Timestamp
		out.HumanIntervention.Timestamp = &ts
	}
	return out
}

// Summary returns a copy without the message history, as used in list snapshots.
func (c Conversation) Summary() Conversation {
	out := c.Clone()
	out.Messages = nil
	return out
}
