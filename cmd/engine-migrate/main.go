// Command engine-migrate applies the durable schema for both storage
// backends the engine depends on: the Neo4j graph's constraints and
// vector indexes, and the Postgres workflow store's tables.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/scigraph/engine/internal/config"
	"github.com/scigraph/engine/internal/graph/schema"
	"github.com/scigraph/engine/internal/workflow/store"
)

func main() {
	skipGraph := flag.Bool("skip-graph", false, "skip applying the Neo4j graph schema")
	skipWorkflow := flag.Bool("skip-workflow", false, "skip applying the Postgres workflow schema")
	migrationsDir := flag.String("workflow-migrations-dir", "migrations/workflow", "directory of workflow store migration files")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Printf("load config: %v", err)
		os.Exit(2)
	}

	ctx := context.Background()

	if !*skipGraph {
		if err := applyGraphSchema(ctx, cfg); err != nil {
			log.Fatalf("apply graph schema: %v", err)
		}
		log.Println("graph schema up to date")
	}

	if !*skipWorkflow {
		dsn := strings.TrimSpace(cfg.Workflow.DSN)
		if dsn == "" {
			log.Println("WORKFLOW_DB_DSN not set; skipping workflow store migrations")
		} else {
			if err := store.ApplyMigrations(dsn, *migrationsDir); err != nil {
				log.Fatalf("apply workflow migrations: %v", err)
			}
			log.Println("workflow store schema up to date")
		}
	}
}

func applyGraphSchema(ctx context.Context, cfg *config.Config) error {
	driver, err := neo4j.NewDriverWithContext(cfg.Graph.URI, neo4j.BasicAuth(cfg.Graph.User, cfg.Graph.Password, ""))
	if err != nil {
		return err
	}
	defer driver.Close(ctx)

	if err := driver.VerifyConnectivity(ctx); err != nil {
		return err
	}

	applier := schema.New(driver, cfg.Graph.Database)
	return applier.Apply(ctx)
}
