package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/aigoflow/complaint-classifier/internal/artifacts"
	"github.com/aigoflow/complaint-classifier/internal/classifier"
	"github.com/aigoflow/complaint-classifier/internal/config"
	"github.com/aigoflow/complaint-classifier/internal/repository"
	"github.com/aigoflow/complaint-classifier/internal/services"
	"github.com/aigoflow/complaint-classifier/internal/store"
	"github.com/aigoflow/complaint-classifier/pkg/server"
)

func main() {
	var envFile = flag.String("env", "", "Optional .env file to load")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*envFile)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	deps := services.Dependencies{ArtifactPrefix: cfg.ArtifactPrefix}

	// The ledger is optional: without it classification still works.
	var events lifecycle
	db, repo, err := openLedger(cfg.DBPath)
	if err != nil {
		slog.Error("Classification ledger disabled", "db_path", cfg.DBPath, "error", err)
	} else {
		defer db.Close()
		deps.Repo = repo
		events = lifecycle{events: repo.Event()}
	}

	events.record("info", "startup", "Server starting", map[string]interface{}{
		"provider":  cfg.Provider,
		"model":     cfg.ClassifierModel(),
		"http_addr": cfg.HTTPAddr,
		"db_path":   cfg.DBPath,
	})

	// A missing classifier is not fatal: requests get the not-configured reply.
	clf, err := classifier.New(cfg)
	if err != nil {
		events.record("error", "classifier.missing", "Classifier not configured", map[string]interface{}{
			"provider": cfg.Provider,
			"error":    err.Error(),
		})
		slog.Error("Classifier not configured", "provider", cfg.Provider, "error", err)
	} else {
		deps.Classifier = clf
		events.record("info", "classifier.ready", "Classifier configured", map[string]interface{}{
			"provider": cfg.Provider,
			"model":    clf.Model(),
		})
	}

	blobs, err := artifacts.NewBlobStore(cfg.StorageConnectionString, cfg.ArtifactContainer)
	switch {
	case errors.Is(err, artifacts.ErrNoConnectionString):
		slog.Warn("Artifact storage disabled, no connection string")
	case err != nil:
		events.record("error", "artifacts.failed", "Artifact storage initialization failed", map[string]interface{}{
			"error": err.Error(),
		})
		slog.Error("Artifact storage disabled", "error", err)
	default:
		deps.Artifacts = blobs
		slog.Info("Artifact storage enabled", "container", blobs.Container(), "prefix", cfg.ArtifactPrefix)
	}

	complaints := services.NewComplaintService(deps)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var running sync.WaitGroup

	if cfg.NatsURL != "" {
		startNATS(ctx, &running, cfg, events, complaints)
	}

	httpServer := server.NewServer(cfg.HTTPAddr, complaints)

	events.record("info", "server.ready", "Server ready to accept requests", map[string]interface{}{
		"http_addr": cfg.HTTPAddr,
		"ready":     complaints.Ready(),
		"nats_url":  cfg.NatsURL,
	})

	running.Add(1)
	go func() {
		defer running.Done()
		if err := httpServer.Start(ctx); err != nil {
			events.record("error", "http.failed", "HTTP server failed", map[string]interface{}{
				"error": err.Error(),
			})
			slog.Error("HTTP server failed", "error", err)
			cancel()
		}
	}()

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	cancel()
	running.Wait()

	events.record("info", "shutdown", "Server stopped", nil)
}

// openLedger creates the database directory and opens the sqlite ledger.
func openLedger(path string) (*store.DB, repository.Repository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return db, repository.NewSQLiteRepository(db), nil
}

// lifecycle records startup and shutdown milestones in the ledger's events
// table. The zero value records nothing.
type lifecycle struct {
	events repository.EventRepositoryInterface
}

func (l lifecycle) record(level, code, msg string, meta map[string]interface{}) {
	if l.events == nil {
		return
	}
	if err := l.events.LogEvent(context.Background(), level, code, msg, meta); err != nil {
		slog.Warn("Failed to record event", "code", code, "error", err)
	}
}

func startNATS(ctx context.Context, running *sync.WaitGroup, cfg *config.Config, events lifecycle, complaints *services.ComplaintService) {
	natsService, err := services.NewNATSService(cfg, complaints)
	if err != nil {
		events.record("error", "nats.failed", "NATS service initialization failed", map[string]interface{}{
			"nats_url": cfg.NatsURL,
			"error":    err.Error(),
		})
		slog.Error("NATS transport disabled", "error", err)
		return
	}

	healthService := services.NewHealthService(natsService.GetConnection(), cfg, complaints, natsService.GetMonitoringService())
	if err := healthService.Start(ctx); err != nil {
		events.record("error", "health.failed", "Health service failed", map[string]interface{}{
			"error": err.Error(),
		})
		slog.Error("Health service failed", "error", err)
	}

	running.Add(1)
	go func() {
		defer running.Done()
		if err := natsService.Start(ctx); err != nil {
			events.record("error", "nats.failed", "NATS service failed", map[string]interface{}{
				"error": err.Error(),
			})
			slog.Error("NATS service failed", "error", err)
		}
	}()
}
