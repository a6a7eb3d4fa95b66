// Package schema applies the graph store's constraints and vector indexes.
// Application is idempotent and version-gated: a SchemaVersion node records
// the highest applied version, and Apply only runs the statements after it.
package schema

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/scigraph/engine/internal/apperrors"
)

// EmbeddingDimension is the fixed vector width for every embedded field
// (Problem, ProblemMention, ProblemConcept).
const EmbeddingDimension = 1536

// migration is one versioned batch of schema statements. Statements within
// a migration run in order inside a single transaction.
type migration struct {
	version    int
	statements []string
}

// migrations is the compiled, ordered list of schema changes. Append new
// versions here; never edit or remove an already-released entry.
var migrations = []migration{
	{
		version: 1,
		statements: []string{
			`CREATE CONSTRAINT paper_doi_unique IF NOT EXISTS FOR (p:Paper) REQUIRE p.doi IS UNIQUE`,
			`CREATE CONSTRAINT problem_id_unique IF NOT EXISTS FOR (p:Problem) REQUIRE p.id IS UNIQUE`,
			`CREATE CONSTRAINT author_id_unique IF NOT EXISTS FOR (a:Author) REQUIRE a.id IS UNIQUE`,
			`CREATE CONSTRAINT mention_id_unique IF NOT EXISTS FOR (m:ProblemMention) REQUIRE m.id IS UNIQUE`,
			`CREATE CONSTRAINT concept_id_unique IF NOT EXISTS FOR (c:ProblemConcept) REQUIRE c.id IS UNIQUE`,
			`CREATE CONSTRAINT review_id_unique IF NOT EXISTS FOR (r:PendingReview) REQUIRE r.id IS UNIQUE`,
		},
	},
	{
		version: 2,
		statements: []string{
			vectorIndexStatement("problem_embedding", "Problem"),
			vectorIndexStatement("problem_mention_embedding", "ProblemMention"),
			vectorIndexStatement("problem_concept_embedding", "ProblemConcept"),
		},
	},
}

func vectorIndexStatement(name, label string) string {
	return `CREATE VECTOR INDEX ` + name + ` IF NOT EXISTS FOR (n:` + label + `) ON (n.embedding) ` +
		`OPTIONS {indexConfig: {` +
		`"vector.dimensions": 1536, ` +
		`"vector.similarity_function": "cosine"}}`
}

// Applier runs migrations against a Neo4j database.
type Applier struct {
	driver   neo4j.DriverWithContext
	database string
}

// New builds an Applier over an already-connected driver.
func New(driver neo4j.DriverWithContext, database string) *Applier {
	return &Applier{driver: driver, database: database}
}

// Apply runs every migration newer than the recorded SchemaVersion, then
// advances the recorded version to the latest compiled migration.
func (a *Applier) Apply(ctx context.Context) error {
	session := a.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite, DatabaseName: a.database})
	defer session.Close(ctx)

	current, err := currentVersion(ctx, session)
	if err != nil {
		return apperrors.Wrap(apperrors.Internal, "read schema version", err)
	}

	applied := current
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := applyMigration(ctx, session, m); err != nil {
			return apperrors.Wrap(apperrors.Internal, "apply schema migration", err)
		}
		applied = m.version
	}

	if applied != current {
		if err := setVersion(ctx, session, applied); err != nil {
			return apperrors.Wrap(apperrors.Internal, "record schema version", err)
		}
	}
	return nil
}

func currentVersion(ctx context.Context, session neo4j.SessionWithContext) (int, error) {
	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (v:SchemaVersion) RETURN v.version as version`, nil)
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			return int64(0), res.Err()
		}
		version, _ := res.Record().Get("version")
		return version, nil
	})
	if err != nil {
		return 0, err
	}
	switch v := out.(type) {
	case int64:
		return int(v), nil
	default:
		return 0, nil
	}
}

func setVersion(ctx context.Context, session neo4j.SessionWithContext, version int) error {
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `
			MERGE (v:SchemaVersion {singleton: true})
			SET v.version = $version
		`, map[string]any{"version": version})
	})
	return err
}

func applyMigration(ctx context.Context, session neo4j.SessionWithContext, m migration) error {
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, stmt := range m.statements {
			if _, err := tx.Run(ctx, stmt, nil); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}
