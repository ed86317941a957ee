package live

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ashureev/agent-supervisor/internal/metrics"
	"github.com/ashureev/agent-supervisor/internal/random"
)

func newIdleSession(w *recordingWriter) *Session {
	return NewSession(w, DefaultConfig(), Deps{
		State:  NewState(nil, 0),
		Random: random.NewScripted(0.5),
		Clock:  newFakeClock(t0),
	})
}

func TestSessionManager_Register(t *testing.T) {
	sm := NewSessionManager(nil)
	s := newIdleSession(&recordingWriter{})

	sm.Register(s)

	if active := sm.Get(s.ID()); active != s {
		t.Errorf("Expected session %v, got %v", s, active)
	}
}

func TestSessionManager_Unregister(t *testing.T) {
	sm := NewSessionManager(nil)
	s := newIdleSession(&recordingWriter{})

	sm.Register(s)
	sm.Unregister(s)

	if active := sm.Get(s.ID()); active != nil {
		t.Errorf("Expected nil session, got %v", active)
	}
}

func TestSessionManager_UnregisterStale(t *testing.T) {
	sm := NewSessionManager(nil)
	s1 := newIdleSession(&recordingWriter{})
	s2 := newIdleSession(&recordingWriter{})

	sm.Register(s1)
	sm.Register(s2)
	sm.Unregister(s1)
	sm.Unregister(s1)

	if active := sm.Get(s2.ID()); active != s2 {
		t.Errorf("Expected session %v, got %v", s2, active)
	}
	if sm.Count() != 1 {
		t.Errorf("Expected 1 session, got %d", sm.Count())
	}
}

func TestSessionManager_BroadcastSkipsClosedSessions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	sm := NewSessionManager(m)

	w1, w2, w3 := &recordingWriter{}, &recordingWriter{}, &recordingWriter{}
	s1, s2, s3 := newIdleSession(w1), newIdleSession(w2), newIdleSession(w3)
	s1.metrics, s2.metrics, s3.metrics = m, m, m
	sm.Register(s1)
	sm.Register(s2)
	sm.Register(s3)
	s3.Close()

	delivered := sm.Broadcast(FramePing, PingFrame{Type: FramePing, Timestamp: t0})

	if delivered != 2 {
		t.Errorf("Expected 2 deliveries, got %d", delivered)
	}
	if w1.len() != 1 || w2.len() != 1 || w3.len() != 0 {
		t.Errorf("Unexpected frame counts %d %d %d", w1.len(), w2.len(), w3.len())
	}
	if got := testutil.ToFloat64(m.FramesSent.WithLabelValues(string(FramePing))); got != 2 {
		t.Errorf("Expected 2 ping frames counted, got %v", got)
	}
	if got := testutil.ToFloat64(m.LiveConnections); got != 3 {
		t.Errorf("Expected gauge 3, got %v", got)
	}
}

func TestSessionManager_CloseAll(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	sm := NewSessionManager(m)

	sessions := []*Session{newIdleSession(&recordingWriter{}), newIdleSession(&recordingWriter{})}
	for _, s := range sessions {
		sm.Register(s)
	}
	sm.CloseAll()

	if sm.Count() != 0 {
		t.Errorf("Expected no sessions, got %d", sm.Count())
	}
	for _, s := range sessions {
		select {
		case <-s.Done():
		case <-time.After(time.Second):
			t.Errorf("Session %s was not closed", s.ID())
		}
	}
	if got := testutil.ToFloat64(m.LiveConnections); got != 0 {
		t.Errorf("Expected gauge 0, got %v", got)
	}
}

func TestSessionManager_ConcurrentAccess(t *testing.T) {
	sm := NewSessionManager(nil)
	sessions := make([]*Session, 200)
	for i := range sessions {
		sessions[i] = newIdleSession(&recordingWriter{})
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, s := range sessions {
			sm.Register(s)
		}
	}()

	for _, s := range sessions {
		sm.Get(s.ID())
		sm.Broadcast(FramePing, PingFrame{Type: FramePing})
	}
	<-done

	if sm.Count() != len(sessions) {
		t.Errorf("Expected %d sessions, got %d", len(sessions), sm.Count())
	}
}
