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
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/teradata-labs/seam/pkg/dialect"
)

// execAll runs each statement in order, failing fast on the first error.
func execAll(ctx context.Context, db Executor, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("statement failed: %w (sql: %.80s)", err, stmt)
		}
	}
	return nil
}

// columnExists reports whether table.column exists, using the backend's
// catalog. Existence predicates keep forward transforms idempotent so a
// partially applied migration can be retried.
func columnExists(ctx context.Context, db Executor, tag dialect.Tag, table, column string) (bool, error) {
	switch tag {
	case dialect.SQLite:
		rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", dialect.QuoteIdent(tag, table)))
		if err != nil {
			return false, fmt.Errorf("failed to read table info for %s: %w", table, err)
		}
		defer rows.Close()
		for rows.Next() {
			var cid, notNull, pk int
			var name, typ string
			var dflt *string
			if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
				return false, fmt.Errorf("failed to scan column info: %w", err)
			}
			if name == column {
				return true, nil
			}
		}
		return false, rows.Err()

	case dialect.MySQL:
		var n int
		err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM information_schema.columns WHERE table_schema = DATABASE() AND table_name = ? AND column_name = ?",
			table, column).Scan(&n)
		return n > 0, err

	case dialect.Postgres:
		var n int
		err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1 AND column_name = $2",
			table, column).Scan(&n)
		return n > 0, err

	case dialect.SQLServer:
		var n int
		err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM sys.columns WHERE object_id = OBJECT_ID(@p1) AND name = @p2",
			table, column).Scan(&n)
		return n > 0, err

	default:
		return false, fmt.Errorf("unknown provider tag %q", tag)
	}
}

// indexDef describes a single-table index created by a unit.
type indexDef struct {
	Name    string
	Table   string
	Columns []string
	Unique  bool
}

// createIndex creates an index if it does not already exist. MySQL has no
// CREATE INDEX IF NOT EXISTS, so it gets an information_schema predicate.
func createIndex(ctx context.Context, db Executor, tag dialect.Tag, def indexDef) error {
	q := func(name string) string { return dialect.QuoteIdent(tag, name) }
	unique := ""
	if def.Unique {
		unique = "UNIQUE "
	}
	cols := make([]string, len(def.Columns))
	for i, c := range def.Columns {
		cols[i] = q(c)
	}
	colList := strings.Join(cols, ", ")

	switch tag {
	case dialect.SQLite, dialect.Postgres:
		stmt := fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)", unique, q(def.Name), q(def.Table), colList)
		_, err := db.ExecContext(ctx, stmt)
		return err

	case dialect.MySQL:
		var n int
		err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM information_schema.statistics WHERE table_schema = DATABASE() AND table_name = ? AND index_name = ?",
			def.Table, def.Name).Scan(&n)
		if err != nil {
			return fmt.Errorf("failed to check index %s: %w", def.Name, err)
		}
		if n > 0 {
			return nil
		}
		stmt := fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)", unique, q(def.Name), q(def.Table), colList)
		_, err = db.ExecContext(ctx, stmt)
		return err

	case dialect.SQLServer:
		stmt := fmt.Sprintf(
			"IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = '%s' AND object_id = OBJECT_ID('%s'))\nCREATE %sINDEX %s ON %s (%s)",
			def.Name, def.Table, unique, q(def.Name), q(def.Table), colList)
		_, err := db.ExecContext(ctx, stmt)
		return err

	default:
		return fmt.Errorf("unknown provider tag %q", tag)
	}
}

// dropIndex drops an index if it exists. MySQL and SQL Server scope the
// index to its table.
func dropIndex(ctx context.Context, db Executor, tag dialect.Tag, table, name string) error {
	q := func(s string) string { return dialect.QuoteIdent(tag, s) }
	switch tag {
	case dialect.SQLite, dialect.Postgres:
		_, err := db.ExecContext(ctx, "DROP INDEX IF EXISTS "+q(name))
		return err

	case dialect.MySQL:
		var n int
		err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM information_schema.statistics WHERE table_schema = DATABASE() AND table_name = ? AND index_name = ?",
			table, name).Scan(&n)
		if err != nil {
			return fmt.Errorf("failed to check index %s: %w", name, err)
		}
		if n == 0 {
			return nil
		}
		_, err = db.ExecContext(ctx, fmt.Sprintf("DROP INDEX %s ON %s", q(name), q(table)))
		return err

	case dialect.SQLServer:
		_, err := db.ExecContext(ctx, fmt.Sprintf("DROP INDEX IF EXISTS %s ON %s", q(name), q(table)))
		return err

	default:
		return fmt.Errorf("unknown provider tag %q", tag)
	}
}

// tableExists reports whether a table exists in the current schema/database.
func tableExists(ctx context.Context, db Executor, tag dialect.Tag, table string) (bool, error) {
	switch tag {
	case dialect.SQLite:
		var n int
		err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&n)
		return n > 0, err

	case dialect.MySQL:
		var n int
		err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?",
			table).Scan(&n)
		return n > 0, err

	case dialect.Postgres:
		var n int
		err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1",
			table).Scan(&n)
		return n > 0, err

	case dialect.SQLServer:
		var n int
		err := db.QueryRowContext(ctx,
			"SELECT CASE WHEN OBJECT_ID(@p1, 'U') IS NULL THEN 0 ELSE 1 END", table).Scan(&n)
		return n > 0, err

	default:
		return false, fmt.Errorf("unknown provider tag %q", tag)
	}
}
