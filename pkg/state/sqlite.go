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
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	_ "github.com/teradata-labs/seam/internal/sqlitedriver"
)

// SQLiteStore persists migration state rows to SQLite. Uses WAL mode for
// concurrent read/write access. Timestamps are stored as unix seconds;
// zero means absent.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLite opens (creating if needed) the head-office state database at
// dbPath and initializes the schema.
func NewSQLite(ctx context.Context, dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, logger: logger}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// DB exposes the underlying handle so the registry reader can share it.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

// Close closes the underlying handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS migration_states (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		branch_id TEXT NOT NULL UNIQUE,
		last_migration_applied TEXT NOT NULL DEFAULT '',
		status INTEGER NOT NULL DEFAULT 0,
		last_attempt_at INTEGER DEFAULT 0,
		retry_count INTEGER NOT NULL DEFAULT 0,
		error_details TEXT,
		lock_owner_id TEXT,
		lock_expires_at INTEGER DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_states_status ON migration_states(status);
	CREATE INDEX IF NOT EXISTS idx_states_last_attempt ON migration_states(last_attempt_at);
	CREATE INDEX IF NOT EXISTS idx_states_lock_expires ON migration_states(lock_expires_at);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}
	return nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeOrZero(unix int64) time.Time {
	if unix == 0 {
		return time.Time{}
	}
	return time.Unix(unix, 0).UTC()
}

const sqliteStateColumns = `id, branch_id, last_migration_applied, status, last_attempt_at,
	retry_count, COALESCE(error_details, ''), COALESCE(lock_owner_id, ''), lock_expires_at,
	created_at, updated_at`

func scanSQLiteState(row interface{ Scan(...any) error }) (*MigrationState, error) {
	var st MigrationState
	var lastAttempt, lockExpires, created, updated int64
	var status int
	err := row.Scan(&st.ID, &st.BranchID, &st.LastAppliedID, &status, &lastAttempt,
		&st.RetryCount, &st.ErrorDetails, &st.LockOwnerToken, &lockExpires,
		&created, &updated)
	if err != nil {
		return nil, err
	}
	st.Status = Status(status)
	st.LastAttemptAt = timeOrZero(lastAttempt)
	if lockExpires != 0 {
		t := timeOrZero(lockExpires)
		st.LockExpiresAt = &t
	}
	st.CreatedAt = timeOrZero(created)
	st.UpdatedAt = timeOrZero(updated)
	return &st, nil
}

func (s *SQLiteStore) GetOrCreate(ctx context.Context, branchID string) (*MigrationState, error) {
	now := time.Now().Unix()
	// UNIQUE(branch_id) makes concurrent first-touch creations collapse
	// into one row.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO migration_states (branch_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(branch_id) DO NOTHING`,
		branchID, int(StatusPending), now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration state: %w", err)
	}
	return s.Get(ctx, branchID)
}

func (s *SQLiteStore) Get(ctx context.Context, branchID string) (*MigrationState, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+sqliteStateColumns+" FROM migration_states WHERE branch_id = ?", branchID)
	st, err := scanSQLiteState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrStateNotFound, branchID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read migration state: %w", err)
	}
	return st, nil
}

func (s *SQLiteStore) Update(ctx context.Context, st *MigrationState) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE migration_states
		SET last_migration_applied = ?,
		    status = ?,
		    last_attempt_at = ?,
		    retry_count = ?,
		    error_details = ?,
		    updated_at = ?
		WHERE branch_id = ?`,
		st.LastAppliedID, int(st.Status), unixOrZero(st.LastAttemptAt),
		st.RetryCount, nullIfEmpty(st.ErrorDetails), time.Now().Unix(), st.BranchID)
	if err != nil {
		return fmt.Errorf("failed to update migration state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrStateNotFound, st.BranchID)
	}
	return nil
}

func (s *SQLiteStore) TryAcquireLock(ctx context.Context, branchID, token string, now, expires time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE migration_states
		SET lock_owner_id = ?, lock_expires_at = ?, updated_at = ?
		WHERE branch_id = ?
		  AND (lock_owner_id IS NULL OR lock_expires_at <= ?)`,
		token, expires.Unix(), time.Now().Unix(), branchID, now.Unix())
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLiteStore) ReleaseLock(ctx context.Context, branchID, token string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE migration_states
		SET lock_owner_id = NULL, lock_expires_at = 0, updated_at = ?
		WHERE branch_id = ? AND lock_owner_id = ?`,
		time.Now().Unix(), branchID, token)
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
