package schema

import (
	"strings"
	"testing"
)

func TestMigrationsAreOrderedByVersion(t *testing.T) {
	for i := 1; i < len(migrations); i++ {
		if migrations[i].version <= migrations[i-1].version {
			t.Fatalf("migration %d (version %d) is not ordered after version %d", i, migrations[i].version, migrations[i-1].version)
		}
	}
}

func TestMigrationsDeclareUniqueConstraintsForEveryPrimaryKey(t *testing.T) {
	labels := []string{"Paper", "Problem", "Author", "ProblemMention", "ProblemConcept"}
	var all string
	for _, m := range migrations {
		for _, s := range m.statements {
			all += s + "\n"
		}
	}
	for _, label := range labels {
		if !containsConstraintFor(all, label) {
			t.Errorf("expected a unique constraint statement for %s", label)
		}
	}
}

func TestVectorIndexStatementUsesFixedDimensionAndCosine(t *testing.T) {
	stmt := vectorIndexStatement("problem_embedding", "Problem")
	if !containsAll(stmt, "1536", "cosine", "problem_embedding", "Problem") {
		t.Fatalf("expected dimension, similarity function, index name and label in statement, got: %s", stmt)
	}
}

func TestVectorIndexesCoverAllThreeEmbeddedLabels(t *testing.T) {
	var all string
	for _, m := range migrations {
		for _, s := range m.statements {
			all += s + "\n"
		}
	}
	for _, label := range []string{"Problem", "ProblemMention", "ProblemConcept"} {
		if !containsAll(all, "VECTOR INDEX", label) {
			t.Errorf("expected a vector index statement for %s", label)
		}
	}
}

func containsConstraintFor(statements, label string) bool {
	return containsAll(statements, "CONSTRAINT", "FOR (", label)
}

func containsAll(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
