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
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/teradata-labs/seam/pkg/catalog"
	"github.com/teradata-labs/seam/pkg/dialect"
)

type mysqlStrategy struct {
	logger *zap.Logger
}

func (s *mysqlStrategy) Tag() dialect.Tag { return dialect.MySQL }

func (s *mysqlStrategy) Open(connStr string) (*sql.DB, error) {
	db, err := sql.Open("mysql", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

func (s *mysqlStrategy) CanConnect(ctx context.Context, connStr string) bool {
	db, err := s.Open(connStr)
	if err != nil {
		s.logger.Warn("failed to open mysql database",
			zap.String("conn", Redact(connStr)), zap.Error(err))
		return false
	}
	defer db.Close()
	return pingWithRetry(ctx, db, "mysql", connStr, s.logger)
}

// DatabaseExists treats a successful ping as existence: the DSN names the
// schema, so an absent schema fails the handshake.
func (s *mysqlStrategy) DatabaseExists(ctx context.Context, db *sql.DB, connStr string) bool {
	if db == nil {
		return false
	}
	if err := db.PingContext(ctx); err != nil {
		s.logger.Debug("mysql database not reachable",
			zap.String("conn", Redact(connStr)), zap.Error(err))
		return false
	}
	return true
}

// EnsureDatabase verifies reachability. Branch schemas on network backends
// are provisioned out of band; seam never issues CREATE DATABASE.
func (s *mysqlStrategy) EnsureDatabase(ctx context.Context, connStr string) error {
	db, err := s.Open(connStr)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("mysql database must be provisioned out of band: %w", err)
	}
	return nil
}

func (s *mysqlStrategy) AppliedIDs(ctx context.Context, db *sql.DB) ([]string, error) {
	return appliedIDs(ctx, db, dialect.MySQL)
}

func (s *mysqlStrategy) PendingIDs(ctx context.Context, db *sql.DB, cat *catalog.Catalog) ([]string, error) {
	applied, err := s.AppliedIDs(ctx, db)
	if err != nil {
		return nil, err
	}
	return cat.Pending(applied), nil
}

func (s *mysqlStrategy) ApplyForward(ctx context.Context, db *sql.DB, target string, cat *catalog.Catalog) error {
	return applyIncremental(ctx, db, dialect.MySQL, target, cat, s.logger)
}

func (s *mysqlStrategy) ApplyReverse(ctx context.Context, db *sql.DB, target string, cat *catalog.Catalog) error {
	return reverseIncremental(ctx, db, dialect.MySQL, target, cat, s.logger)
}

func (s *mysqlStrategy) ValidateSchema(ctx context.Context, db *sql.DB) bool {
	return validateTables(ctx, db, dialect.MySQL, s.logger)
}

func (s *mysqlStrategy) QuoteIdent(name string) string {
	return dialect.QuoteIdent(dialect.MySQL, name)
}
