// Command engine-worker runs the scheduled maintenance jobs that keep the
// review queue and the workflow engine honest between requests: expired
// review claims are re-queued, overdue reviews are escalated, and runs
// that died mid-node without reaching a checkpoint are cancelled.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"

	"github.com/scigraph/engine/internal/config"
	"github.com/scigraph/engine/internal/graph/neo4jrepo"
	"github.com/scigraph/engine/internal/logging"
	"github.com/scigraph/engine/internal/review"
	"github.com/scigraph/engine/internal/workflow"
	"github.com/scigraph/engine/internal/workflow/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	log0 := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: "stdout"})
	ctx := context.Background()

	repo, err := neo4jrepo.New(ctx, cfg.Graph.URI, cfg.Graph.User, cfg.Graph.Password, cfg.Graph.Database)
	if err != nil {
		log0.WithField("error", err).Fatal("connect to graph store")
	}
	defer repo.Close(ctx)

	c := cron.New()

	if strings.TrimSpace(cfg.ReviewQueue.Addr) != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.ReviewQueue.Addr, Password: cfg.ReviewQueue.Password, DB: cfg.ReviewQueue.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log0.WithField("error", err).Fatal("review queue redis unreachable")
		}
		reviewQueue := review.New(rdb, repo)
		if _, err := c.AddFunc("@every 1m", func() {
			if err := reviewQueue.SweepExpiredClaims(ctx); err != nil {
				log0.WithField("error", err).Warn("sweep expired review claims")
			}
		}); err != nil {
			log0.WithField("error", err).Fatal("schedule review sweep")
		}
	} else {
		log0.Warn("REVIEW_QUEUE_REDIS_ADDR not set; skipping review claim sweep")
	}

	dsn := strings.TrimSpace(cfg.Workflow.DSN)
	if dsn != "" {
		workflowStore, err := store.Open(ctx, dsn)
		if err != nil {
			log0.WithField("error", err).Fatal("open workflow store")
		}
		defer workflowStore.Close()

		engine := workflow.New(workflow.Deps{Repo: repo, Store: workflowStore, Log: log0})
		if _, err := c.AddFunc("@every 5m", func() {
			swept, err := engine.SweepStale(ctx, 30*time.Minute)
			if err != nil {
				log0.WithField("error", err).Warn("sweep stale workflow runs")
				return
			}
			if swept > 0 {
				log0.WithField("count", swept).Info("cancelled stale workflow runs")
			}
		}); err != nil {
			log0.WithField("error", err).Fatal("schedule workflow janitor")
		}
	} else {
		log0.Warn("WORKFLOW_DB_DSN not set; skipping stale-run janitor")
	}

	c.Start()
	log0.Info("engine-worker started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	stopCtx := c.Stop()
	<-stopCtx.Done()
}
