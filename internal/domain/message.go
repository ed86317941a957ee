package domain

import "time"

// Sender identifies who wrote a message.
type Sender string

const (
	SenderCustomer   Sender = "customer"
	SenderAgent      Sender = "agent"
	SenderSupervisor Sender = "supervisor"
)

// Valid reports whether s is a known sender.
func (s Sender) Valid() bool {
	return s == SenderCustomer || s == SenderAgent || s == SenderSupervisor
}

// Message is a single entry in a conversation transcript.
type Message struct {
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}
