package main

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jarvishq/jarvisd/internal/config"
	"github.com/jarvishq/jarvisd/internal/service"
	"github.com/jarvishq/jarvisd/internal/store"
	"github.com/jarvishq/jarvisd/internal/tools"
	handler "github.com/jarvishq/jarvisd/internal/transport/http"
	"github.com/jarvishq/jarvisd/internal/vector"
	"github.com/jarvishq/jarvisd/policy"
)

func main() {
	cfg := config.Load()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "jarvisd",
	})
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	logger.Info("starting assistant backend", "http_port", cfg.HTTPPort, "database", cfg.DatabaseURL)

	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to initialize store", "err", err)
	}
	defer db.Close()

	index, err := vector.NewSQLiteIndex(cfg.VectorURL)
	if err != nil {
		logger.Fatal("failed to initialize vector index", "err", err)
	}
	defer index.Close()

	embedder := vector.NewEmbedderFromEnv()
	if embedder == nil {
		logger.Info("no embedding provider configured, retrieval is lexical-only")
	}

	ctx := context.Background()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		logger.Fatal("failed to initialize policy engine", "err", err)
	}

	toolPolicy, err := tools.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		logger.Fatal("failed to load tool policy", "file", cfg.PolicyFile, "err", err)
	}

	registry := tools.NewRegistry()
	registry.MustRegister("shell", tools.NewShellExecutor(toolPolicy.Shell))
	registry.MustRegister("queries", tools.NewQueryExecutor(toolPolicy.QueryTemplates))
	registry.MustRegister("device", tools.NewDeviceExecutor(toolPolicy.Device))

	svc := service.New(db, registry, policyEngine, embedder, index, nil, cfg, logger)
	tools.RegisterMemoryExecutors(registry, svc)

	if err := svc.SeedTools(ctx); err != nil {
		logger.Fatal("failed to seed tool catalog", "err", err)
	}
	if _, err := svc.Recorder().Reconcile(ctx); err != nil {
		logger.Fatal("failed to reconcile orphaned runs", "err", err)
	}

	maintCtx, stopMaint := context.WithCancel(ctx)
	go svc.RunMaintenance(maintCtx)

	server := handler.NewServer(svc)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && err != stdhttp.ErrServerClosed {
			logger.Fatal("failed to start server", "err", err)
		}
	}()
	logger.Info("API started", "port", cfg.HTTPPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	stopMaint()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down gracefully", "err", err)
	}
	logger.Info("stopped")
}
