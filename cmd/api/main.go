package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/calderonlabs/tienda-backend/api/routes"
	"github.com/calderonlabs/tienda-backend/internal/agent"
	"github.com/calderonlabs/tienda-backend/internal/cart"
	"github.com/calderonlabs/tienda-backend/internal/catalog"
	"github.com/calderonlabs/tienda-backend/internal/conversation"
	"github.com/calderonlabs/tienda-backend/pkg/config"
	"github.com/calderonlabs/tienda-backend/pkg/db"
	"github.com/calderonlabs/tienda-backend/pkg/env"
	"github.com/calderonlabs/tienda-backend/pkg/logger"
	"github.com/calderonlabs/tienda-backend/pkg/metrics"
	"github.com/calderonlabs/tienda-backend/pkg/migrate"
	"github.com/calderonlabs/tienda-backend/pkg/openrouter"
	"github.com/calderonlabs/tienda-backend/pkg/redis"
	"github.com/calderonlabs/tienda-backend/pkg/twilio"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	agentMetrics := metrics.NewAgentMetrics(registry)

	catalogRepo := catalog.NewRepository(dbClient.DB())
	catalogService, err := catalog.NewService(catalogRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(cart.NewRepository(dbClient.DB()), dbClient, catalogRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	deps := routes.Deps{
		Config:   cfg,
		Logger:   logg,
		DB:       dbClient,
		Redis:    redisClient,
		Catalog:  catalogService,
		Cart:     cartService,
		Metrics:  agentMetrics,
		Registry: registry,
	}

	// The agent only comes up with an OpenRouter key; the shop API works
	// standalone without one.
	if modelClient := openrouter.NewClient(cfg.OpenRouter); modelClient != nil {
		store, err := conversation.NewStore(
			conversation.NewRepository(dbClient.DB()),
			dbClient,
			cartService,
			cfg.Agent.HistoryLimit,
		)
		if err != nil {
			logg.Error(context.Background(), "failed to create conversation store", err)
			os.Exit(1)
		}

		orchestrator, err := agent.NewOrchestrator(
			modelClient, cfg.OpenRouter, cfg.Agent, nil, store, logg, agentMetrics,
		)
		if err != nil {
			logg.Error(context.Background(), "failed to create agent orchestrator", err)
			os.Exit(1)
		}
		deps.Agent = orchestrator
		deps.Sender = senderOrNil(twilio.New(cfg.Twilio))
	} else {
		logg.Warn(context.Background(), "no OpenRouter key configured, chat webhook disabled")
	}

	addr := ":" + env.Get("PORT", cfg.App.Port)
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(deps),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

// senderOrNil avoids storing a typed nil in the Sender interface field.
func senderOrNil(client *twilio.Client) twilio.Sender {
	if client == nil {
		return nil
	}
	return client
}
