// Command relais runs the capability gateway.
//
// Configuration is loaded from a YAML file (-config flag, RELAIS_CONFIG
// env, ./relais.yaml, /etc/relais/config.yaml) with RELAIS_* environment
// overrides and the executor contract variables AGENT_NAME,
// FUNC_SERVER_PORT, PROXY_TIMEOUT and LLM_GATEWAY_BASE_URL. See
// pkg/config for the full surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/rhuss/relais/pkg/config"
	"github.com/rhuss/relais/pkg/debug"
	"github.com/rhuss/relais/pkg/function"
	"github.com/rhuss/relais/pkg/gateway"
	"github.com/rhuss/relais/pkg/mcpbridge"
	"github.com/rhuss/relais/pkg/source"
	"github.com/rhuss/relais/pkg/source/builtins"
	"github.com/rhuss/relais/pkg/storage"
	"github.com/rhuss/relais/pkg/storage/memory"
	"github.com/rhuss/relais/pkg/storage/postgres"
	"github.com/rhuss/relais/pkg/storage/redis"
)

func main() {
	if err := run(); err != nil {
		slog.Error("gateway failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	debug.Init(cfg.Log.Debug, cfg.Log.Level, cfg.Log.Format)
	logger := slog.Default()

	// Data source registry with the builtin catalog.
	reg := source.NewRegistry(source.WithLogger(logger))
	reg.Initialize(&cfg.Sources, builtins.All())

	// Call ledger.
	store, backend, err := buildStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("storage enabled", "type", backend)

	// Function proxies from the executor manifest.
	opts := function.OptionsFromConfig(cfg)
	opts = append(opts, function.WithRecorder(storage.NewRecorder(store, backend, logger)))
	descriptors, proxies, err := function.Load(cfg.Executor.ManifestPath, opts...)
	if err != nil {
		return fmt.Errorf("loading function manifest: %w", err)
	}
	logger.Info("functions loaded",
		"count", len(descriptors),
		"manifest", cfg.Executor.ManifestPath,
	)

	chain, limiter, err := gateway.BuildAuthChain(cfg)
	if err != nil {
		return fmt.Errorf("configuring auth: %w", err)
	}

	gwOpts := []gateway.Option{
		gateway.WithCallStore(store),
		gateway.WithAuth(chain, limiter),
		gateway.WithLogger(logger),
	}
	if cfg.MCP.Enabled {
		bridge := mcpbridge.New(reg, descriptors)
		gwOpts = append(gwOpts, gateway.WithMCP(cfg.MCP.Path, bridge.Handler()))
	}
	if cfg.Observability.Metrics.Enabled {
		gwOpts = append(gwOpts, gateway.WithMetrics(cfg.Observability.Metrics.Path))
	} else {
		gwOpts = append(gwOpts, gateway.WithMetrics(""))
	}

	gw := gateway.New(reg, descriptors, proxies, gwOpts...)

	srv := gateway.NewServer(gw.Handler(),
		gateway.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		gateway.WithReadTimeout(cfg.Server.ReadTimeout.Std()),
		gateway.WithWriteTimeout(cfg.Server.WriteTimeout.Std()),
		gateway.WithServerLogger(logger),
	)

	logger.Info("relais starting",
		"port", cfg.Server.Port,
		"sources", len(reg.SourceNames()),
		"functions", len(descriptors),
		"storage", backend,
		"auth", authType(cfg),
		"mcp", cfg.MCP.Enabled,
	)
	return srv.ListenAndServe()
}

// buildStore creates the configured call ledger backend and reports its
// name for logs and metric labels.
func buildStore(cfg *config.Config) (storage.CallStore, string, error) {
	switch cfg.Storage.Type {
	case "", "memory":
		return memory.New(cfg.Storage.MaxSize), "memory", nil
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		store, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Storage.Postgres.DSN,
			MaxConns:       cfg.Storage.Postgres.MaxConns,
			MigrateOnStart: cfg.Storage.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, "", fmt.Errorf("connecting to postgres: %w", err)
		}
		return store, "postgres", nil
	case "redis":
		return redis.New(redis.Config{
			Addr:     cfg.Storage.Redis.Addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
			TTL:      cfg.Storage.Redis.TTL.Std(),
		}), "redis", nil
	default:
		return nil, "", fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}

func authType(cfg *config.Config) string {
	if cfg.Auth.Type == "" {
		return "none"
	}
	return cfg.Auth.Type
}
