package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MikeSquared-Agency/recall/internal/anthropic"
	"github.com/MikeSquared-Agency/recall/internal/api"
	"github.com/MikeSquared-Agency/recall/internal/cache"
	"github.com/MikeSquared-Agency/recall/internal/classifier"
	"github.com/MikeSquared-Agency/recall/internal/config"
	"github.com/MikeSquared-Agency/recall/internal/events"
	"github.com/MikeSquared-Agency/recall/internal/gate"
	"github.com/MikeSquared-Agency/recall/internal/orchestrator"
	"github.com/MikeSquared-Agency/recall/internal/responder"
	"github.com/MikeSquared-Agency/recall/internal/router"
	"github.com/MikeSquared-Agency/recall/internal/session"
	"github.com/MikeSquared-Agency/recall/internal/store"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("recall starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Routing and memory settings
	file, err := config.LoadFile(cfg.ConfigFile)
	if err != nil {
		slog.Error("failed to load routing config", "path", cfg.ConfigFile, "error", err)
		os.Exit(1)
	}
	ttl, err := file.Memory.SessionTTLDuration()
	if err != nil {
		slog.Error("invalid session TTL", "error", err)
		os.Exit(1)
	}
	slog.Info("routing config loaded",
		"path", cfg.ConfigFile,
		"blocks", len(file.Contexts),
		"rules", len(file.Routing.Rules),
		"session_ttl", ttl,
		"importance_threshold", file.Memory.ImportanceThreshold,
	)

	// Database
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database connected")

	// Session cache
	sessions, err := cache.New(0)
	if err != nil {
		slog.Error("failed to create session cache", "error", err)
		os.Exit(1)
	}
	defer sessions.Close()

	// Anthropic client
	if cfg.AnthropicAPIKey == "" {
		slog.Error("ANTHROPIC_API_KEY is required")
		os.Exit(1)
	}
	llm := anthropic.NewClient(cfg.AnthropicAPIKey)
	slog.Info("anthropic client ready", "classifier_model", cfg.ClassifierModel, "responder_model", cfg.ResponderModel)

	// NATS
	natsClient, err := events.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		slog.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	slog.Info("NATS connected", "url", cfg.NatsURL)

	// The turn pipeline
	manager := session.NewManager(sessions, db, ttl, file.Memory.SeedRecentRecords, slog.Default())
	cl := classifier.New(llm, cfg.ClassifierModel, slog.Default())
	g := gate.New(db, natsClient, file.Memory.ImportanceThreshold, slog.Default())
	rt := router.Compile(file)
	re := responder.New(llm, cfg.ResponderModel, file.Contexts, slog.Default())
	orch := orchestrator.New(manager, cl, g, rt, re, file.Memory.FallbackReply, slog.Default())

	// Subscribe to inbound chat messages
	consumer := events.NewConsumer(orch, natsClient.Publish, slog.Default())
	if err := natsClient.Subscribe(events.SubjectChatMessage, consumer.HandleChatMessage); err != nil {
		slog.Error("failed to subscribe to chat messages", "error", err)
		os.Exit(1)
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, orch)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	// Announce registration
	if err := natsClient.Publish("swarm.agent.recall.registered", map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"port":      cfg.Port,
	}); err != nil {
		slog.Warn("failed to publish registration", "error", err)
	}

	slog.Info("recall ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("recall stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
