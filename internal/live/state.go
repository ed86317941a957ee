package live

import (
	"math"
	"slices"
	"sync"
	"time"

	"github.com/ashureev/agent-supervisor/internal/domain"
	"github.com/ashureev/agent-supervisor/internal/random"
)

// State is the conversation list shared by every live session. All
// read-modify-write sequences run under a single mutex and readers get copies.
type State struct {
	mu            sync.Mutex
	conversations []domain.Conversation
	maxMessages   int
}

// NewState seeds the shared list. maxMessages caps the in-memory history of
// each conversation (<= 0 keeps everything).
func NewState(seed []domain.Conversation, maxMessages int) *State {
	s := &State{maxMessages: maxMessages}
	for _, c := range seed {
		s.conversations = append(s.conversations, s.capped(c))
	}
	return s
}

// Len returns the number of conversations.
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}

// Snapshot returns a consistent copy of the list.
func (s *State) Snapshot() []domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Conversation, len(s.conversations))
	for i, c := range s.conversations {
		out[i] = c.Clone()
	}
	return out
}

// Summaries returns the list without message histories. An empty list is
// replaced by a single placeholder conversation, which is kept in the list so
// later ticks have something to update.
func (s *State) Summaries(now time.Time) []domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conversations) == 0 {
		s.conversations = append(s.conversations, placeholderConversation(now))
	}
	out := make([]domain.Conversation, len(s.conversations))
	for i, c := range s.conversations {
		out[i] = c.Summary()
	}
	return out
}

// Get returns a copy of the conversation with id.
func (s *State) Get(id string) (domain.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.index(id); i >= 0 {
		return s.conversations[i].Clone(), true
	}
	return domain.Conversation{}, false
}

// PickRandom returns the id of a uniformly chosen conversation.
func (s *State) PickRandom(rnd random.Source) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conversations) == 0 {
		return "", false
	}
	return s.conversations[rnd.IntN(len(s.conversations))].ID, true
}

// AppendMessage adds msg to the conversation with id.
func (s *State) AppendMessage(id string, msg domain.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return false
	}
	s.conversations[i].AppendMessage(msg, s.maxMessages)
	return true
}

// PerturbMetrics applies one random-walk step to the metrics of the
// conversation with id and returns the new values.
func (s *State) PerturbMetrics(id string, rnd random.Source) (domain.Metrics, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return domain.Metrics{}, false
	}
	m := s.conversations[i].Metrics
	m.Sentiment = clamp(m.Sentiment-0.1+rnd.Float64()*0.2, 0.1, 1.0)
	m.ResponseTime = math.Max(1, m.ResponseTime-1+rnd.Float64()*2)
	m.ConfidenceScore = clamp(m.ConfidenceScore-0.05+rnd.Float64()*0.1, 0.2, 1.0)
	s.conversations[i].Metrics = m
	return m, true
}

// Append adds a conversation to the end of the list.
func (s *State) Append(c domain.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = append(s.conversations, s.capped(c))
}

// Merge folds a stored copy of a conversation into the list, or appends it.
// Stored fields win, except that the live metrics are kept and messages the
// stored copy lacks (those synthesized by the feed) stay in timestamp order.
func (s *State) Merge(c domain.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(c.ID)
	if i < 0 {
		s.conversations = append(s.conversations, s.capped(c))
		return
	}

	current := s.conversations[i]
	merged := c.Clone()
	merged.Metrics = current.Metrics
	for _, m := range current.Messages {
		if !containsMessage(merged.Messages, m) {
			merged.Messages = append(merged.Messages, m)
		}
	}
	slices.SortStableFunc(merged.Messages, func(a, b domain.Message) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	s.conversations[i] = s.capped(merged)
}

// BlendSentiment moves the live sentiment of the conversation with id toward score.
func (s *State) BlendSentiment(id string, score float64) (domain.Metrics, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return domain.Metrics{}, false
	}
	s.conversations[i].Metrics.BlendSentiment(score)
	return s.conversations[i].Metrics, true
}

func containsMessage(messages []domain.Message, m domain.Message) bool {
	return slices.ContainsFunc(messages, func(o domain.Message) bool {
		return o.Sender == m.Sender && o.Text == m.Text && o.Timestamp.Equal(m.Timestamp)
	})
}

// capped copies c, keeping only the newest maxMessages messages.
func (s *State) capped(c domain.Conversation) domain.Conversation {
	out := c.Clone()
	if s.maxMessages > 0 && len(out.Messages) > s.maxMessages {
		out.Messages = out.Messages[len(out.Messages)-s.maxMessages:]
	}
	return out
}

func (s *State) index(id string) int {
	for i := range s.conversations {
		if s.conversations[i].ID == id {
			return i
		}
	}
	return -1
}

func placeholderConversation(now time.Time) domain.Conversation {
	return domain.Conversation{
		ID:         "conv-001",
		Customer:   domain.Participant{ID: "cust-001", Name: "John Doe"},
		Agent:      domain.Participant{ID: "agent-001", Name: "Agent Smith"},
		Status:     domain.StatusActive,
		AlertLevel: domain.AlertLow,
		StartTime:  now,
		Metrics: domain.Metrics{
			Sentiment:       0.8,
			ResponseTime:    5,
			ConfidenceScore: 0.9,
		},
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
