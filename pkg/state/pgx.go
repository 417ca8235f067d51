// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PgxStore persists migration state rows to the postgres head-office store.
type PgxStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPgx connects a pool to connString and initializes the schema.
func NewPgx(ctx context.Context, connString string, logger *zap.Logger) (*PgxStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	store := &PgxStore{pool: pool, logger: logger}
	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// NewPgxFromPool wraps an existing pool (shared with the registry reader)
// and initializes the schema.
func NewPgxFromPool(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) (*PgxStore, error) {
	store := &PgxStore{pool: pool, logger: logger}
	if err := store.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Pool exposes the underlying pool so the registry reader can share it.
func (s *PgxStore) Pool() *pgxpool.Pool { return s.pool }

// Close closes the pool.
func (s *PgxStore) Close() { s.pool.Close() }

func (s *PgxStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS migration_states (
		id BIGSERIAL PRIMARY KEY,
		branch_id TEXT NOT NULL UNIQUE,
		last_migration_applied TEXT NOT NULL DEFAULT '',
		status SMALLINT NOT NULL DEFAULT 0,
		last_attempt_at TIMESTAMPTZ,
		retry_count INT NOT NULL DEFAULT 0,
		error_details TEXT,
		lock_owner_id TEXT,
		lock_expires_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_states_status ON migration_states(status);
	CREATE INDEX IF NOT EXISTS idx_states_last_attempt ON migration_states(last_attempt_at);
	CREATE INDEX IF NOT EXISTS idx_states_lock_expires ON migration_states(lock_expires_at);
	`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return err
	}
	return nil
}

const pgxStateColumns = `id, branch_id, last_migration_applied, status, last_attempt_at,
	retry_count, COALESCE(error_details, ''), COALESCE(lock_owner_id, ''), lock_expires_at,
	created_at, updated_at`

func (s *PgxStore) scanState(row pgx.Row) (*MigrationState, error) {
	var st MigrationState
	var status int
	var lastAttempt *time.Time
	err := row.Scan(&st.ID, &st.BranchID, &st.LastAppliedID, &status, &lastAttempt,
		&st.RetryCount, &st.ErrorDetails, &st.LockOwnerToken, &st.LockExpiresAt,
		&st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return nil, err
	}
	st.Status = Status(status)
	if lastAttempt != nil {
		st.LastAttemptAt = *lastAttempt
	}
	return &st, nil
}

func (s *PgxStore) GetOrCreate(ctx context.Context, branchID string) (*MigrationState, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO migration_states (branch_id, status)
		VALUES ($1, $2)
		ON CONFLICT (branch_id) DO NOTHING`,
		branchID, int(StatusPending))
	if err != nil {
		return nil, fmt.Errorf("failed to create migration state: %w", err)
	}
	return s.Get(ctx, branchID)
}

func (s *PgxStore) Get(ctx context.Context, branchID string) (*MigrationState, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+pgxStateColumns+" FROM migration_states WHERE branch_id = $1", branchID)
	st, err := s.scanState(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrStateNotFound, branchID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read migration state: %w", err)
	}
	return st, nil
}

func (s *PgxStore) Update(ctx context.Context, st *MigrationState) error {
	var lastAttempt *time.Time
	if !st.LastAttemptAt.IsZero() {
		lastAttempt = &st.LastAttemptAt
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE migration_states
		SET last_migration_applied = $1,
		    status = $2,
		    last_attempt_at = $3,
		    retry_count = $4,
		    error_details = NULLIF($5, ''),
		    updated_at = NOW()
		WHERE branch_id = $6`,
		st.LastAppliedID, int(st.Status), lastAttempt, st.RetryCount, st.ErrorDetails, st.BranchID)
	if err != nil {
		return fmt.Errorf("failed to update migration state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrStateNotFound, st.BranchID)
	}
	return nil
}

func (s *PgxStore) TryAcquireLock(ctx context.Context, branchID, token string, now, expires time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE migration_states
		SET lock_owner_id = $1, lock_expires_at = $2, updated_at = NOW()
		WHERE branch_id = $3
		  AND (lock_owner_id IS NULL OR lock_expires_at <= $4)`,
		token, expires, branchID, now)
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PgxStore) ReleaseLock(ctx context.Context, branchID, token string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE migration_states
		SET lock_owner_id = NULL, lock_expires_at = NULL, updated_at = NOW()
		WHERE branch_id = $1 AND lock_owner_id = $2`,
		branchID, token)
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}
