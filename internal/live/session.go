// Package live provides the per-connection live update feed: a simulation of
// conversation activity pushed to supervisors over WebSocket.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/agent-supervisor/internal/domain"
	"github.com/ashureev/agent-supervisor/internal/metrics"
	"github.com/ashureev/agent-supervisor/internal/random"
)

// Config controls the cadence and randomness of a session's simulation.
type Config struct {
	SnapshotDelay              time.Duration
	PingInterval               time.Duration
	MessageInterval            time.Duration
	NewConversationInterval    time.Duration
	MetricsProbability         float64
	NewConversationProbability float64
	WriteTimeout               time.Duration
}

// DefaultConfig returns the standard feed cadence.
func DefaultConfig() Config {
	return Config{
		SnapshotDelay:              time.Second,
		PingInterval:               30 * time.Second,
		MessageInterval:            5 * time.Second,
		NewConversationInterval:    15 * time.Second,
		MetricsProbability:         0.3,
		NewConversationProbability: 0.2,
		WriteTimeout:               5 * time.Second,
	}
}

// FrameWriter delivers one JSON frame to the peer.
type FrameWriter interface {
	WriteFrame(ctx context.Context, frame any) error
}

// Deps are the collaborators shared between sessions.
type Deps struct {
	State   *State
	Random  random.Source
	Clock   Clock
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Scheduled task names.
const (
	taskSnapshot        = "snapshot"
	taskPing            = "ping"
	taskMessage         = "message"
	taskNewConversation = "new_conversation"
)

// Session owns the scheduled tasks of one live connection. Every task is
// cancelled by Close, after which nothing more is written.
type Session struct {
	id      string
	cfg     Config
	out     FrameWriter
	state   *State
	rnd     random.Source
	clock   Clock
	logger  *slog.Logger
	metrics *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	closed  bool
	timers  map[string]Timer
}

// NewSession creates an idle session writing to out. Call Start to begin the feed.
func NewSession(out FrameWriter, cfg Config, deps Deps) *Session {
	if deps.State == nil {
		deps.State = NewState(nil, 0)
	}
	if deps.Random == nil {
		deps.Random = random.New(0)
	}
	if deps.Clock == nil {
		deps.Clock = RealClock()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:      id,
		cfg:     cfg,
		out:     out,
		state:   deps.State,
		rnd:     deps.Random,
		clock:   deps.Clock,
		logger:  deps.Logger.With("session_id", id),
		metrics: deps.Metrics,
		ctx:     ctx,
		cancel:  cancel,
		timers:  make(map[string]Timer),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Done is closed once the session is closed.
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

// Start sends the connection acknowledgment and schedules the feed.
func (s *Session) Start() {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.Send(FrameConnection, ConnectionFrame{
		Type:      FrameConnection,
		Message:   connectionGreeting,
		Timestamp: s.clock.Now(),
	})

	s.schedule(taskSnapshot, s.cfg.SnapshotDelay, false, s.sendSnapshot)
	s.schedule(taskPing, s.cfg.PingInterval, true, s.sendPing)
	s.schedule(taskMessage, s.cfg.MessageInterval, true, s.messageTick)
	s.schedule(taskNewConversation, s.cfg.NewConversationInterval, true, s.newConversationTick)
	s.logger.Info("Live session started")
}

// Close cancels every scheduled task. It is safe to call more than once.
func (s *Session) Close() {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for name, t := range s.timers {
		t.Stop()
		delete(s.timers, name)
	}
	s.logger.Info("Live session closed")
}

// Send writes frame unless the session is closed. It reports whether the
// frame was delivered.
func (s *Session) Send(typ FrameType, frame any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}

	ctx := s.ctx
	if s.cfg.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.WriteTimeout)
		defer cancel()
	}
	if err := s.out.WriteFrame(ctx, frame); err != nil {
		s.logger.Debug("Live frame write failed", "type", typ, "error", err)
		return false
	}
	if s.metrics != nil {
		s.metrics.FramesSent.WithLabelValues(string(typ)).Inc()
	}
	return true
}

// HandleInbound processes one frame received from the peer. Malformed frames
// are logged and dropped; the connection stays open.
func (s *Session) HandleInbound(data []byte) {
	var f inboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		s.logger.Warn("Malformed live frame", "error", err)
		s.countInbound("malformed")
		return
	}

	switch f.Type {
	case FrameSubscribe:
		s.countInbound("subscribe")
		s.Send(FrameSubscription, SubscriptionFrame{
			Type:      FrameSubscription,
			Channel:   f.Channel,
			Message:   fmt.Sprintf("Subscribed to %s", f.Channel),
			Timestamp: s.clock.Now(),
		})
	case FramePong:
		s.countInbound("pong")
	case FramePing:
		s.countInbound("ping")
		s.Send(FramePong, PingFrame{Type: FramePong, Timestamp: s.clock.Now()})
	default:
		s.countInbound("ignored")
		s.logger.Info("Received live frame", "type", f.Type)
	}
}

func (s *Session) countInbound(result string) {
	if s.metrics != nil {
		s.metrics.InboundFrames.WithLabelValues(result).Inc()
	}
}

// schedule arms fn after d. Repeating tasks re-arm themselves after each run.
func (s *Session) schedule(name string, d time.Duration, repeat bool, fn func()) {
	var run func()
	run = func() {
		if !s.open() {
			return
		}
		fn()
		if repeat {
			s.arm(name, d, run)
			return
		}
		s.mu.Lock()
		delete(s.timers, name)
		s.mu.Unlock()
	}
	s.arm(name, d, run)
}

func (s *Session) arm(name string, d time.Duration, f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.timers[name] = s.clock.AfterFunc(d, f)
}

func (s *Session) open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// pending returns the number of armed tasks.
func (s *Session) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *Session) sendSnapshot() {
	now := s.clock.Now()
	s.Send(FrameConversations, ConversationsFrame{
		Type:      FrameConversations,
		Data:      s.state.Summaries(now),
		Timestamp: now,
	})
}

func (s *Session) sendPing() {
	s.Send(FramePing, PingFrame{Type: FramePing, Timestamp: s.clock.Now()})
}

func (s *Session) messageTick() {
	id, ok := s.state.PickRandom(s.rnd)
	if !ok {
		return
	}

	now := s.clock.Now()
	sender, pool := domain.SenderAgent, agentPhrases
	if s.rnd.Float64() > 0.5 {
		sender, pool = domain.SenderCustomer, customerPhrases
	}
	msg := domain.Message{Sender: sender, Text: random.Pick(s.rnd, pool), Timestamp: now}
	if !s.state.AppendMessage(id, msg) {
		return
	}
	s.Send(FrameMessageUpdate, MessageUpdateFrame{
		Type:           FrameMessageUpdate,
		ConversationID: id,
		Message:        msg,
		Timestamp:      now,
	})

	if !random.Chance(s.rnd, s.cfg.MetricsProbability) {
		return
	}
	m, ok := s.state.PerturbMetrics(id, s.rnd)
	if !ok {
		return
	}
	s.Send(FrameMetricsUpdate, MetricsUpdateFrame{
		Type:           FrameMetricsUpdate,
		ConversationID: id,
		Metrics:        m,
		Timestamp:      now,
	})
}

func (s *Session) newConversationTick() {
	if !random.Chance(s.rnd, s.cfg.NewConversationProbability) {
		return
	}
	now := s.clock.Now()
	c := synthesizeConversation(s.rnd, now)
	s.state.Append(c)
	if s.metrics != nil {
		s.metrics.ConversationsSimulated.Inc()
	}
	s.logger.Debug("Simulated new conversation", "conversation_id", c.ID)
	s.Send(FrameNewConversation, NewConversationFrame{
		Type:      FrameNewConversation,
		Data:      c,
		Timestamp: now,
	})
}

// synthesizeConversation builds a fresh active conversation with a random
// customer and agent.
func synthesizeConversation(rnd random.Source, now time.Time) domain.Conversation {
	customerID := fmt.Sprintf("cust-%d", 1000+rnd.IntN(9000))
	name := random.Pick(rnd, firstNames) + " " + random.Pick(rnd, lastNames)
	agentID := fmt.Sprintf("agent-cs-%d", 1+rnd.IntN(3))
	return domain.Conversation{
		ID:         fmt.Sprintf("conv-%d-%s", now.UnixMilli(), uuid.NewString()[:8]),
		Customer:   domain.Participant{ID: customerID, Name: name},
		Agent:      domain.Participant{ID: agentID, Name: "Customer Service Agent"},
		Status:     domain.StatusActive,
		AlertLevel: domain.AlertLow,
		StartTime:  now,
		Metrics: domain.Metrics{
			Sentiment:       0.7 + rnd.Float64()*0.3,
			ResponseTime:    5 + rnd.Float64()*5,
			ConfidenceScore: 0.8 + rnd.Float64()*0.2,
		},
	}
}
