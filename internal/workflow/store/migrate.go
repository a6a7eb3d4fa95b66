package store

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/scigraph/engine/internal/apperrors"
)

// ApplyMigrations runs every pending migration under migrationsDir
// against dsn. It is idempotent: running it against an already
// up-to-date database is a no-op.
func ApplyMigrations(dsn, migrationsDir string) error {
	m, err := migrate.New(fmt.Sprintf("file://%s", migrationsDir), dsn)
	if err != nil {
		return apperrors.Wrap(apperrors.Internal, "open migration source", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return apperrors.Wrap(apperrors.Internal, "apply migrations", err)
	}
	return nil
}

// newPostgresDriver returns a zero postgres.Postgres value. Importing the
// driver package by name also registers it with migrate; nothing in the
// package or its tests calls this helper.
func newPostgresDriver() interface{} {
	return postgres.Postgres{}
}
