//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"cmp"
	"context"
	"net/http"
	"slices"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/agent-supervisor/internal/domain"
	"github.com/ashureev/agent-supervisor/internal/live"
	"github.com/ashureev/agent-supervisor/internal/llm"
	"github.com/ashureev/agent-supervisor/internal/random"
	"github.com/ashureev/agent-supervisor/internal/store"
)

type fakeRepo struct {
	mu            sync.Mutex
	conversations map[string]*domain.Conversation
	pingErr       error
	updateErr     error
}

func newFakeRepo(seed ...*domain.Conversation) *fakeRepo {
	f := &fakeRepo{conversations: make(map[string]*domain.Conversation)}
	for _, c := range seed {
		copy := c.Clone()
		f.conversations[c.ID] = &copy
	}
	return f
}

func (f *fakeRepo) ListConversations(_ context.Context, filter store.ConversationFilter) ([]*domain.Conversation, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []*domain.Conversation
	for _, c := range f.conversations {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.AlertLevel != "" && c.AlertLevel != filter.AlertLevel {
			continue
		}
		if filter.AgentID != "" && c.Agent.ID != filter.AgentID {
			continue
		}
		copy := c.Clone()
		matched = append(matched, &copy)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].StartTime.After(matched[j].StartTime) })

	total := len(matched)
	start := min(filter.Offset, total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}
	return matched[start:end], total, nil
}

func (f *fakeRepo) GetConversation(_ context.Context, id string) (*domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.conversations[id]
	if c == nil {
		return nil, nil
	}
	copy := c.Clone()
	return &copy, nil
}

func (f *fakeRepo) CreateConversation(_ context.Context, c *domain.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.conversations[c.ID]; exists {
		return store.ErrDuplicate
	}
	copy := c.Clone()
	f.conversations[c.ID] = &copy
	return nil
}

func (f *fakeRepo) UpdateConversation(_ context.Context, c *domain.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, exists := f.conversations[c.ID]; !exists {
		return store.ErrNotFound
	}
	copy := c.Clone()
	f.conversations[c.ID] = &copy
	return nil
}

func (f *fakeRepo) CountConversations(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conversations), nil
}

func (f *fakeRepo) Ping(_ context.Context) error { return f.pingErr }
func (f *fakeRepo) Close() error                 { return nil }

func (f *fakeRepo) get(id string) *domain.Conversation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conversations[id]
}

type fakeAgentRepo struct {
	mu     sync.Mutex
	agents map[string]domain.Agent
	err    error
}

func newFakeAgentRepo(seed ...*domain.Agent) *fakeAgentRepo {
	f := &fakeAgentRepo{agents: make(map[string]domain.Agent)}
	for _, a := range seed {
		f.agents[a.ID] = cloneAgent(*a)
	}
	return f
}

func cloneAgent(a domain.Agent) domain.Agent {
	a.Capabilities = slices.Clone(a.Capabilities)
	a.KnowledgeBases = slices.Clone(a.KnowledgeBases)
	if a.Metrics != nil {
		m := *a.Metrics
		m.TopIssues = slices.Clone(m.TopIssues)
		a.Metrics = &m
	}
	return a
}

func (f *fakeAgentRepo) ListAgents(_ context.Context) ([]*domain.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []*domain.Agent
	for _, a := range f.agents {
		copy := cloneAgent(a)
		out = append(out, &copy)
	}
	slices.SortFunc(out, func(a, b *domain.Agent) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (f *fakeAgentRepo) GetAgent(_ context.Context, id string) (*domain.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.agents[id]
	if !ok {
		return nil, nil
	}
	copy := cloneAgent(a)
	return &copy, nil
}

func (f *fakeAgentRepo) CreateAgent(_ context.Context, a *domain.Agent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.agents[a.ID]; exists {
		return store.ErrDuplicate
	}
	f.agents[a.ID] = cloneAgent(*a)
	return nil
}

func (f *fakeAgentRepo) UpdateAgent(_ context.Context, a *domain.Agent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.agents[a.ID]; !exists {
		return store.ErrNotFound
	}
	f.agents[a.ID] = cloneAgent(*a)
	return nil
}

func (f *fakeAgentRepo) get(id string) domain.Agent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneAgent(f.agents[id])
}

type fakeTemplateRepo struct {
	mu        sync.Mutex
	templates map[string]domain.ResponseTemplate
}

func newFakeTemplateRepo(seed ...*domain.ResponseTemplate) *fakeTemplateRepo {
	f := &fakeTemplateRepo{templates: make(map[string]domain.ResponseTemplate)}
	for _, t := range seed {
		f.templates[t.ID] = *t
	}
	return f
}

func (f *fakeTemplateRepo) ListTemplates(_ context.Context, category string) ([]*domain.ResponseTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.ResponseTemplate
	for _, t := range f.templates {
		if category != "" && t.Category != category {
			continue
		}
		copy := t
		out = append(out, &copy)
	}
	slices.SortFunc(out, func(a, b *domain.ResponseTemplate) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (f *fakeTemplateRepo) GetTemplate(_ context.Context, id string) (*domain.ResponseTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.templates[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (f *fakeTemplateRepo) CreateTemplate(_ context.Context, t *domain.ResponseTemplate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.templates[t.ID]; exists {
		return store.ErrDuplicate
	}
	f.templates[t.ID] = *t
	return nil
}

func (f *fakeTemplateRepo) UpdateTemplate(_ context.Context, t *domain.ResponseTemplate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.templates[t.ID]; !exists {
		return store.ErrNotFound
	}
	f.templates[t.ID] = *t
	return nil
}

func (f *fakeTemplateRepo) DeleteTemplate(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.templates[id]; !exists {
		return store.ErrNotFound
	}
	delete(f.templates, id)
	return nil
}

func (f *fakeTemplateRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.templates)
}

// frameRecorder collects frames broadcast to a live session.
type frameRecorder struct {
	mu     sync.Mutex
	frames []any
}

func (r *frameRecorder) WriteFrame(_ context.Context, frame any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
	return nil
}

func (r *frameRecorder) all() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.frames...)
}

type testServer struct {
	repo      *fakeRepo
	agents    *fakeAgentRepo
	templates *fakeTemplateRepo
	state     *live.State
	recorder  *frameRecorder
	base      *Handler
	handler   http.Handler
}

func newTestServer(seed ...*domain.Conversation) *testServer {
	repo := newFakeRepo(seed...)

	var liveSeed []domain.Conversation
	for _, c := range seed {
		liveSeed = append(liveSeed, *c)
	}
	state := live.NewState(liveSeed, 50)
	sm := live.NewSessionManager(nil)
	rec := &frameRecorder{}
	sm.Register(live.NewSession(rec, live.DefaultConfig(), live.Deps{State: state, Random: random.NewScripted(0.5)}))

	sim, err := llm.NewSimulator(llm.SimulatorConfig{Random: random.NewScripted(0)})
	if err != nil {
		panic(err)
	}

	agents := newFakeAgentRepo(store.DemoAgents()...)
	templates := newFakeTemplateRepo()

	base := NewHandler(repo, state, sm)
	r := chi.NewRouter()
	NewConversationHandler(base).RegisterRoutes(r)
	NewInterventionHandler(base).RegisterRoutes(r)
	NewAgentHandler(base, agents).RegisterRoutes(r)
	NewAnalyticsHandler(base, agents).RegisterRoutes(r)
	NewTemplateHandler(base, templates).RegisterRoutes(r)
	NewLLMHandler(sim, nil).RegisterRoutes(r)
	NewHealthHandler(repo, sm, 0).RegisterHealth(r)

	return &testServer{
		repo:      repo,
		agents:    agents,
		templates: templates,
		state:     state,
		recorder:  rec,
		base:      base,
		handler:   r,
	}
}
