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

	"go.uber.org/zap"

	"github.com/teradata-labs/seam/pkg/catalog"
	"github.com/teradata-labs/seam/pkg/dialect"
)

// historyTableDDL renders the history table with the backend's native types
// for a primary-key-capable identifier column.
func historyTableDDL(tag dialect.Tag) string {
	q := func(name string) string { return dialect.QuoteIdent(tag, name) }
	var idType, versionType string
	switch tag {
	case dialect.SQLite:
		idType, versionType = "TEXT", "TEXT"
	case dialect.SQLServer:
		idType, versionType = "NVARCHAR(150)", "NVARCHAR(32)"
	default:
		idType, versionType = "VARCHAR(150)", "VARCHAR(32)"
	}
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s %s PRIMARY KEY,\n\t%s %s NOT NULL\n)",
		q(HistoryTable), q("migration_id"), idType, q("product_version"), versionType)
	if tag == dialect.SQLServer {
		ddl = fmt.Sprintf("IF OBJECT_ID('%s', 'U') IS NULL\nCREATE TABLE %s (\n\t%s %s PRIMARY KEY,\n\t%s %s NOT NULL\n)",
			HistoryTable, q(HistoryTable), q("migration_id"), idType, q("product_version"), versionType)
	}
	return ddl
}

func ensureHistoryTable(ctx context.Context, db *sql.DB, tag dialect.Tag) error {
	if _, err := db.ExecContext(ctx, historyTableDDL(tag)); err != nil {
		return fmt.Errorf("failed to ensure history table: %w", err)
	}
	return nil
}

// listTables returns the user table names visible in the current
// schema/database.
func listTables(ctx context.Context, db *sql.DB, tag dialect.Tag) ([]string, error) {
	var query string
	switch tag {
	case dialect.SQLite:
		query = "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'"
	case dialect.MySQL:
		query = "SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE()"
	case dialect.Postgres:
		query = "SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'"
	case dialect.SQLServer:
		query = "SELECT name FROM sys.tables"
	default:
		return nil, fmt.Errorf("unknown provider tag %q", tag)
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// appliedIDs reads the history table. A missing history table is only legal
// on a fresh database (no user tables at all); on anything else it means the
// branch was provisioned outside seam and needs operator attention.
func appliedIDs(ctx context.Context, db *sql.DB, tag dialect.Tag) ([]string, error) {
	tables, err := listTables(ctx, db, tag)
	if err != nil {
		return nil, err
	}
	hasHistory := false
	for _, t := range tables {
		if t == HistoryTable {
			hasHistory = true
			break
		}
	}
	if !hasHistory {
		if len(tables) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("%w (%d user tables present)", ErrHistoryTableMissing, len(tables))
	}

	q := func(name string) string { return dialect.QuoteIdent(tag, name) }
	rows, err := db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", q("migration_id"), q(HistoryTable), q("migration_id")))
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Backend ORDER BY collation may not be byte-wise; catalog order is.
	catalog.SortIDs(ids)
	return ids, nil
}

// insertHistoryRow records an applied unit. Idempotent per backend so a
// recovered partial run can re-record safely.
func insertHistoryRow(ctx context.Context, db catalog.Executor, tag dialect.Tag, id, productVersion string) error {
	q := func(name string) string { return dialect.QuoteIdent(tag, name) }
	cols := fmt.Sprintf("(%s, %s)", q("migration_id"), q("product_version"))

	var stmt string
	switch tag {
	case dialect.SQLite:
		stmt = fmt.Sprintf("INSERT OR IGNORE INTO %s %s VALUES (?, ?)", q(HistoryTable), cols)
	case dialect.MySQL:
		stmt = fmt.Sprintf("INSERT IGNORE INTO %s %s VALUES (?, ?)", q(HistoryTable), cols)
	case dialect.Postgres:
		stmt = fmt.Sprintf("INSERT INTO %s %s VALUES ($1, $2) ON CONFLICT (%s) DO NOTHING",
			q(HistoryTable), cols, q("migration_id"))
	case dialect.SQLServer:
		stmt = fmt.Sprintf("IF NOT EXISTS (SELECT 1 FROM %s WHERE %s = @p1)\nINSERT INTO %s %s VALUES (@p1, @p2)",
			q(HistoryTable), q("migration_id"), q(HistoryTable), cols)
	default:
		return fmt.Errorf("unknown provider tag %q", tag)
	}
	if _, err := db.ExecContext(ctx, stmt, id, productVersion); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", id, err)
	}
	return nil
}

func deleteHistoryRow(ctx context.Context, db catalog.Executor, tag dialect.Tag, id string) error {
	q := func(name string) string { return dialect.QuoteIdent(tag, name) }
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
		q(HistoryTable), q("migration_id"), dialect.Placeholder(tag, 1))
	if _, err := db.ExecContext(ctx, stmt, id); err != nil {
		return fmt.Errorf("failed to remove history row %s: %w", id, err)
	}
	return nil
}

// applyIncremental runs the catalog's standard forward applier: every
// pending unit up to and including target (empty = head), in catalog order,
// each followed by its history row.
func applyIncremental(ctx context.Context, db *sql.DB, tag dialect.Tag, target string, cat *catalog.Catalog, logger *zap.Logger) error {
	if err := ensureHistoryTable(ctx, db, tag); err != nil {
		return err
	}
	applied, err := appliedIDs(ctx, db, tag)
	if err != nil {
		return err
	}
	for _, id := range cat.Pending(applied) {
		if target != "" && id > target {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		logger.Info("applying migration",
			zap.String("provider", string(tag)),
			zap.String("migration", id),
		)
		if err := cat.Apply(ctx, db, id, tag); err != nil {
			return err
		}
		if err := insertHistoryRow(ctx, db, tag, id, cat.ProductVersion()); err != nil {
			return err
		}
	}
	return nil
}

// reverseIncremental reverts applied units in descending order until target
// is the greatest remaining id (empty target = fully down).
func reverseIncremental(ctx context.Context, db *sql.DB, tag dialect.Tag, target string, cat *catalog.Catalog, logger *zap.Logger) error {
	applied, err := appliedIDs(ctx, db, tag)
	if err != nil {
		return err
	}
	if target != "" && !cat.Contains(target) {
		return fmt.Errorf("rollback target %s is not in the catalog", target)
	}
	for i := len(applied) - 1; i >= 0; i-- {
		id := applied[i]
		if target != "" && id <= target {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if u, ok := cat.Unit(id); ok && u.LossyDown != "" {
			logger.Warn("reverting lossy migration",
				zap.String("provider", string(tag)),
				zap.String("migration", id),
				zap.String("lossy", u.LossyDown),
			)
		} else {
			logger.Info("reverting migration",
				zap.String("provider", string(tag)),
				zap.String("migration", id),
			)
		}
		if err := cat.Revert(ctx, db, id, tag); err != nil {
			return err
		}
		if err := deleteHistoryRow(ctx, db, tag, id); err != nil {
			return err
		}
	}
	return nil
}

// validateTables checks that every core table is present. Errors are
// swallowed: an unreadable catalog is a failed probe.
func validateTables(ctx context.Context, db *sql.DB, tag dialect.Tag, logger *zap.Logger) bool {
	tables, err := listTables(ctx, db, tag)
	if err != nil {
		logger.Warn("schema validation probe failed",
			zap.String("provider", string(tag)),
			zap.Error(err),
		)
		return false
	}
	present := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		present[t] = struct{}{}
	}
	for _, required := range coreTables() {
		if _, ok := present[required]; !ok {
			logger.Warn("schema validation missing core table",
				zap.String("provider", string(tag)),
				zap.String("table", required),
			)
			return false
		}
	}
	return true
}
