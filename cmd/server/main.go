// Agent Supervisor server: REST API, LLM simulator and live WebSocket feed.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/agent-supervisor/internal/api"
	"github.com/ashureev/agent-supervisor/internal/config"
	"github.com/ashureev/agent-supervisor/internal/domain"
	"github.com/ashureev/agent-supervisor/internal/identity"
	"github.com/ashureev/agent-supervisor/internal/live"
	"github.com/ashureev/agent-supervisor/internal/llm"
	"github.com/ashureev/agent-supervisor/internal/metrics"
	"github.com/ashureev/agent-supervisor/internal/middleware"
	"github.com/ashureev/agent-supervisor/internal/random"
	"github.com/ashureev/agent-supervisor/internal/shared"
	"github.com/ashureev/agent-supervisor/internal/store"
	"github.com/ashureev/agent-supervisor/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped successfully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath, shared.RetryPolicy{
		MaxRetries: cfg.Retry.DatabaseMaxRetries,
		BaseDelay:  cfg.Retry.DatabaseRetryBaseDelay,
	})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		return err
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	if cfg.SeedDemoData {
		seeded, err := store.SeedDemoData(ctx, repo)
		if err != nil {
			return err
		}
		agentsSeeded, templatesSeeded, err := store.SeedCatalog(ctx, repo, repo)
		if err != nil {
			return err
		}
		slog.Info("Demo data ready",
			"conversations_seeded", seeded,
			"agents_seeded", agentsSeeded,
			"templates_seeded", templatesSeeded)
	}

	state, err := loadLiveState(ctx, repo, cfg.Live.MaxMessages)
	if err != nil {
		return err
	}
	slog.Info("Live state loaded", "conversations", state.Len())

	catalog, err := llm.LoadCatalog(cfg.TemplatesPath)
	if err != nil {
		return err
	}
	rnd := random.New(cfg.RandomSeed)
	sim, err := llm.NewSimulator(llm.SimulatorConfig{
		Catalog:         catalog,
		Random:          rnd,
		SimulateLatency: cfg.SimulateLatency,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Initialize services.
	sm := live.NewSessionManager(m)
	wsHandler := live.NewWebSocketHandler(sm, liveConfig(cfg.Live), live.Deps{
		State:   state,
		Random:  rnd,
		Logger:  logger,
		Metrics: m,
	}, cfg.FrontendURL, cfg.IsDevelopment())

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, state, sm)
	conversationHandler := api.NewConversationHandler(baseHandler)
	interventionHandler := api.NewInterventionHandler(baseHandler)
	agentHandler := api.NewAgentHandler(baseHandler, repo)
	analyticsHandler := api.NewAnalyticsHandler(baseHandler, repo)
	templateHandler := api.NewTemplateHandler(baseHandler, repo)
	llmHandler := api.NewLLMHandler(sim, m)
	healthHandler := api.NewHealthHandler(repo, sm, cfg.HealthCheckTimeout)

	// Setup router.
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	healthHandler.RegisterHealth(r)
	conversationHandler.RegisterRoutes(r)
	interventionHandler.RegisterRoutes(r)
	agentHandler.RegisterRoutes(r)
	analyticsHandler.RegisterRoutes(r)
	templateHandler.RegisterRoutes(r)
	llmHandler.RegisterRoutes(r)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	r.Get("/ws", wsHandler.ServeHTTP)

	r.Handle("/*", web.DashboardHandler())

	// WebSocket connections are long-lived, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		sm.CloseAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// loadLiveState seeds the live feed with every stored conversation.
func loadLiveState(ctx context.Context, repo store.Repository, maxMessages int) (*live.State, error) {
	stored, _, err := repo.ListConversations(ctx, store.ConversationFilter{})
	if err != nil {
		return nil, err
	}
	seed := make([]domain.Conversation, 0, len(stored))
	for _, c := range stored {
		seed = append(seed, *c)
	}
	return live.NewState(seed, maxMessages), nil
}

func liveConfig(c config.LiveConfig) live.Config {
	return live.Config{
		SnapshotDelay:              c.SnapshotDelay,
		PingInterval:               c.PingInterval,
		MessageInterval:            c.MessageInterval,
		NewConversationInterval:    c.NewConversationInterval,
		MetricsProbability:         c.MetricsProbability,
		NewConversationProbability: c.NewConversationProbability,
		WriteTimeout:               c.WriteTimeout,
	}
}
