package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/openrelief/newstracker/internal/api"
	"github.com/openrelief/newstracker/internal/composer"
	"github.com/openrelief/newstracker/internal/config"
	"github.com/openrelief/newstracker/internal/content"
	"github.com/openrelief/newstracker/internal/database"
	"github.com/openrelief/newstracker/internal/events"
	"github.com/openrelief/newstracker/internal/indexer"
	"github.com/openrelief/newstracker/internal/llm"
	"github.com/openrelief/newstracker/internal/memory"
	"github.com/openrelief/newstracker/internal/middleware"
	"github.com/openrelief/newstracker/internal/news"
	iredis "github.com/openrelief/newstracker/internal/redis"
	"github.com/openrelief/newstracker/internal/server"
	"github.com/openrelief/newstracker/internal/tracker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PostgreSQL. Migrations run first so the vector extension exists
	// before the pool registers its types.
	if err := database.RunMigrations(cfg.DB.DSN(), cfg.DB.MigrationsPath); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS is optional: without it the service runs, it just publishes
	// no events.
	var eventsClient *events.Client
	if cfg.NATS.URL != "" {
		eventsClient, err = events.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Error("connecting to nats", "error", err)
			os.Exit(1)
		}
		defer eventsClient.Close()
	} else {
		slog.Warn("NATS_URL not set, event publishing disabled")
	}
	publisher := events.NewPublisher(eventsClient)

	// External model providers
	gemini, err := llm.NewGemini(ctx, cfg.Gemini)
	if err != nil {
		slog.Error("creating gemini client", "error", err)
		os.Exit(1)
	}
	var secondary llm.CompletionProvider
	if cfg.Groq.APIKey != "" {
		secondary = llm.NewOpenAICompat(cfg.Groq)
	} else {
		slog.Warn("GROQ_API_KEY not set, secondary completion tier disabled")
	}
	headlines := news.NewClient(cfg.News, redisClient)

	// Repositories
	contentRepo := content.NewPostgresRepository(pool)
	memoryRepo := memory.NewPostgresRepository(pool)
	queryRepo := tracker.NewPostgresRepository(pool)

	// Indexing pipeline
	retriever := memory.NewRetriever(memoryRepo, gemini)
	ix := indexer.New(contentRepo, memoryRepo, gemini, gemini, publisher,
		cfg.Indexer.BatchSize, cfg.Indexer.ReprocessLimit)
	scheduler := indexer.NewScheduler(ix, cfg.Indexer.StartupDelay,
		cfg.Indexer.PostInterval, cfg.Indexer.CommentOffset)
	scheduler.Run(ctx)

	// Answer chain
	cooldown := composer.NewCooldown(cfg.Tracker.CooldownWindow)
	comp := composer.New(retriever, headlines, gemini, secondary, cooldown,
		queryRepo, publisher, cfg.Tracker.TopK, cfg.Gemini.Timeout)

	// HTTP surface
	handlers := api.NewHandlers(comp, retriever, queryRepo, ix)
	rateLimiter := middleware.NewRateLimiter(redisClient,
		cfg.Tracker.RateLimitReqs, cfg.Tracker.RateLimitSecs)
	if cfg.Admin.APIKey == "" {
		slog.Warn("ADMIN_API_KEY not set, admin endpoints disabled")
	}

	router := api.NewRouter(pool, eventsClient,
		api.RouterConfig{CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins},
		handlers.HandlerSet(rateLimiter.Middleware, middleware.AdminKey(cfg.Admin.APIKey)))

	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
