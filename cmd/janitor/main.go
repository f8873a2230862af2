package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/lertxundi/anchorage/internal/adapters/nats"
	"github.com/lertxundi/anchorage/internal/adapters/postgres"
	"github.com/lertxundi/anchorage/internal/adapters/valkey"
	"github.com/lertxundi/anchorage/internal/pkg/config"
	"github.com/lertxundi/anchorage/internal/pkg/logging"
	"github.com/lertxundi/anchorage/internal/workflows"
)

func main() {
	cfg, err := config.Load("anchorage-janitor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	ctx := context.Background()

	// Database is required: the whole point of the janitor is reaping
	// stored state.
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	activities := &workflows.JanitorActivities{
		Sessions: postgres.NewSessionRepo(db),
	}

	if cache, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable, cache entries will expire on their own", "error", err)
	} else {
		defer cache.Close()
		activities.Cache = cache
	}

	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, API instances rely on touch failures to notice", "error", err)
	} else {
		defer pub.Close()
		activities.Events = pub
	}

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort: cfg.Temporal.HostPort,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.JanitorWorkflow)
	w.RegisterActivity(activities)

	// Cron-schedule the sweep. Starting an already running cron workflow
	// is a no-op thanks to the fixed workflow ID.
	_, err = c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:           "session-janitor",
		TaskQueue:    cfg.Temporal.TaskQueue,
		CronSchedule: "*/15 * * * *",
	}, workflows.JanitorWorkflow, workflows.JanitorInput{
		IdleTTLMinutes: cfg.Session.IdleTTLMinutes,
	})
	if err != nil {
		slog.Warn("cron workflow start failed", "error", err)
	}

	slog.Info("janitor worker started", "taskQueue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
