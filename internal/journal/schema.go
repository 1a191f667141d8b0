package journal

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var baseSchema string

// migrations[i] moves a database from user_version i to i+1.
var migrations = []string{
	baseSchema,
	`CREATE INDEX IF NOT EXISTS idx_events_type_created ON events (event_type, created_at)`,
}

// ErrSchemaMismatch reports a database written by a newer build.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// migrate brings the database up to len(migrations) using PRAGMA user_version
// as the applied-step counter. Every pending step runs in one transaction.
func (s *Store) migrate(ctx context.Context) error {
	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	target := len(migrations)
	switch {
	case current == target:
		return nil
	case current > target:
		return fmt.Errorf("%w: %s is at version %d, this build understands %d",
			ErrSchemaMismatch, s.path, current, target)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for step := current; step < target; step++ {
		if _, err := tx.ExecContext(ctx, migrations[step]); err != nil {
			return fmt.Errorf("apply migration %d: %w", step+1, err)
		}
	}
	// user_version does not accept bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", target)); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}
