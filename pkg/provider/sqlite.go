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
package provider

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	_ "github.com/teradata-labs/seam/internal/sqlitedriver"
	"github.com/teradata-labs/seam/pkg/catalog"
	"github.com/teradata-labs/seam/pkg/dialect"
)

// sqliteStrategy drives file-backed SQLite branch databases. The only
// strategy that can materialize a missing database itself.
type sqliteStrategy struct {
	logger *zap.Logger
}

func (s *sqliteStrategy) Tag() dialect.Tag { return dialect.SQLite }

func (s *sqliteStrategy) Open(connStr string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// modernc sqlite allows one writer; a single pooled conn avoids
	// SQLITE_BUSY during multi-statement migrations.
	db.SetMaxOpenConns(1)
	return db, nil
}

func (s *sqliteStrategy) CanConnect(ctx context.Context, connStr string) bool {
	db, err := s.Open(connStr)
	if err != nil {
		s.logger.Warn("failed to open sqlite database",
			zap.String("conn", Redact(connStr)), zap.Error(err))
		return false
	}
	defer db.Close()
	return pingWithRetry(ctx, db, "sqlite", connStr, s.logger)
}

// sqliteFilePath strips the file: scheme and DSN options from a descriptor,
// leaving the filesystem path.
func sqliteFilePath(connStr string) string {
	p := strings.TrimPrefix(connStr, "file:")
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	return p
}

func sqliteInMemory(connStr string) bool {
	return sqliteFilePath(connStr) == ":memory:" || strings.Contains(connStr, "mode=memory")
}

func (s *sqliteStrategy) DatabaseExists(ctx context.Context, _ *sql.DB, connStr string) bool {
	if sqliteInMemory(connStr) {
		return true
	}
	_, err := os.Stat(sqliteFilePath(connStr))
	return err == nil
}

// EnsureDatabase creates the database file (and its parent directory) by
// opening and pinging a handle. No-op for in-memory descriptors.
func (s *sqliteStrategy) EnsureDatabase(ctx context.Context, connStr string) error {
	if sqliteInMemory(connStr) {
		return nil
	}
	path := sqliteFilePath(connStr)
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := s.Open(connStr)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to create sqlite database: %w", err)
	}
	s.logger.Info("created sqlite branch database", zap.String("path", path))
	return nil
}

func (s *sqliteStrategy) AppliedIDs(ctx context.Context, db *sql.DB) ([]string, error) {
	return appliedIDs(ctx, db, dialect.SQLite)
}

func (s *sqliteStrategy) PendingIDs(ctx context.Context, db *sql.DB, cat *catalog.Catalog) ([]string, error) {
	applied, err := s.AppliedIDs(ctx, db)
	if err != nil {
		return nil, err
	}
	return cat.Pending(applied), nil
}

func (s *sqliteStrategy) ApplyForward(ctx context.Context, db *sql.DB, target string, cat *catalog.Catalog) error {
	return applyIncremental(ctx, db, dialect.SQLite, target, cat, s.logger)
}

func (s *sqliteStrategy) ApplyReverse(ctx context.Context, db *sql.DB, target string, cat *catalog.Catalog) error {
	return reverseIncremental(ctx, db, dialect.SQLite, target, cat, s.logger)
}

func (s *sqliteStrategy) ValidateSchema(ctx context.Context, db *sql.DB) bool {
	return validateTables(ctx, db, dialect.SQLite, s.logger)
}

func (s *sqliteStrategy) QuoteIdent(name string) string {
	return dialect.QuoteIdent(dialect.SQLite, name)
}
