package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashureev/countingbot/internal/achievements"
	"github.com/ashureev/countingbot/internal/api"
	"github.com/ashureev/countingbot/internal/config"
	"github.com/ashureev/countingbot/internal/counting"
	"github.com/ashureev/countingbot/internal/disconnects"
	"github.com/ashureev/countingbot/internal/gateway"
	"github.com/ashureev/countingbot/internal/goals"
	"github.com/ashureev/countingbot/internal/notifier"
	"github.com/ashureev/countingbot/internal/router"
	"github.com/ashureev/countingbot/internal/store"
	"github.com/ashureev/countingbot/internal/supervisor"
)

const flushTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to the gateway and run the counting game (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := setupLogger(os.Stdout, cfg.SlogLevel())

	logger.Info("Starting countingbot",
		"guild_id", cfg.Discord.GuildID,
		"channel_id", cfg.Discord.CountingChannelID,
		"port", cfg.Server.Port,
		"api_open", cfg.APIOpen())

	repo, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			logger.Error("Failed to close repository", "error", closeErr)
		}
	}()
	if err := repo.Ping(parent); err != nil {
		logger.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Database connected", "path", cfg.Store.Path)

	rest := notifier.NewClient(notifier.Config{
		Token:             cfg.Discord.Token,
		BaseURL:           cfg.Discord.APIURL,
		Timeout:           cfg.Discord.RequestTimeout,
		RequestsPerSecond: cfg.Discord.RequestsPerSecond,
		Burst:             cfg.Discord.Burst,
	}, logger)

	dispatcher, err := notifier.NewDispatcher(rest, repo, logger)
	if err != nil {
		logger.Error("Failed to initialize side-effect queue", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := dispatcher.Close(); closeErr != nil {
			logger.Error("Failed to close side-effect queue", "error", closeErr)
		}
	}()

	awards := achievements.New(repo, dispatcher, cfg.Discord.LogChannelID, logger)
	tracker := goals.NewTracker(goals.Config{
		ChannelID:        cfg.Discord.CountingChannelID,
		LogChannelID:     cfg.Discord.LogChannelID,
		ThresholdPercent: cfg.Goals.ThresholdPercent,
	}, goals.Deps{
		Store:     repo,
		Messenger: rest,
		Announcer: dispatcher,
		Awarder:   awards,
	}, logger)

	engine := counting.New(counting.Config{
		ChannelID:     cfg.Discord.CountingChannelID,
		Delay:         cfg.Counting.Delay,
		ResyncDepth:   cfg.Counting.ResyncDepth,
		EnforceDelete: cfg.Counting.EnforceDelete,
	}, counting.Deps{
		Store:        repo,
		History:      rest,
		Effects:      dispatcher,
		Goals:        tracker,
		Achievements: awards,
	}, logger)
	if err := engine.Hydrate(parent); err != nil {
		logger.Error("Failed to load counting state", "error", err)
		os.Exit(1)
	}

	reporter := disconnects.New(repo, rest, cfg.Discord.DisconnectChannelID, cfg.Reporter.Interval, logger)

	manager := gateway.NewManager(gateway.Config{
		Token:   cfg.Discord.Token,
		Intents: cfg.Discord.Intents,
		URL:     cfg.Discord.GatewayURL,
	}, gateway.WebsocketDialer(gateway.ReadLimit), gateway.Hooks{
		OnDisconnect: reporter.OnDisconnect,
		OnReady:      func(gateway.Ready) { reporter.OnReconnect() },
		OnResumed:    reporter.OnReconnect,
	}, logger)

	events := router.New(cfg.Discord.GuildID, cfg.Discord.CountingChannelID, manager, engine, logger)

	handler := api.NewHandler(repo, engine, tracker, awards, logger)
	health := api.NewHealthHandler(repo, manager)
	srv := &http.Server{
		Addr: ":" + cfg.Server.Port,
		Handler: api.NewRouter(handler, health, api.RouterOptions{
			AdminToken:  cfg.Server.AdminToken,
			CORSOrigins: cfg.Server.CORSOrigins,
			RateLimit:   cfg.Server.RateLimit,
		}),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	tree := supervisor.NewTree(logger, supervisor.DefaultTreeConfig())
	tree.AddEffectsService(dispatcher)
	tree.AddEffectsService(reporter)
	tree.AddGatewayService(manager)
	tree.AddGatewayService(events)
	tree.AddAPIService(supervisor.NewHTTPService(srv, 10*time.Second))

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Server listening", "addr", srv.Addr)
	err = tree.Serve(ctx)
	stop()

	logger.Info("Shutting down gracefully...")
	if report, reportErr := tree.UnstoppedServiceReport(); reportErr == nil && len(report) > 0 {
		logger.Warn("Services did not stop in time", "count", len(report))
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if flushErr := engine.Flush(flushCtx); flushErr != nil {
		logger.Error("Failed to flush counting state", "error", flushErr)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor stopped: %w", err)
	}
	logger.Info("Server stopped successfully")
	return nil
}
