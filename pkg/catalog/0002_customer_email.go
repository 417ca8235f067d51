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

	"github.com/teradata-labs/seam/pkg/dialect"
)

// CustomerEmailID adds customers.email with a lookup index.
const CustomerEmailID = "20240219114500_customer_email"

func customerEmailUnit() Unit {
	return Unit{
		ID:          CustomerEmailID,
		Description: "add customers.email with lookup index",
		Up: func(ctx context.Context, db Executor, tag dialect.Tag) error {
			exists, err := columnExists(ctx, db, tag, "customers", "email")
			if err != nil {
				return err
			}
			if !exists {
				stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
					dialect.QuoteIdent(tag, "customers"),
					dialect.QuoteIdent(tag, "email"),
					textType(tag, 254))
				if tag == dialect.SQLServer {
					// T-SQL spells it ADD, not ADD COLUMN.
					stmt = fmt.Sprintf("ALTER TABLE %s ADD %s %s",
						dialect.QuoteIdent(tag, "customers"),
						dialect.QuoteIdent(tag, "email"),
						textType(tag, 254))
				}
				if _, err := db.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("failed to add email column: %w", err)
				}
			}
			return createIndex(ctx, db, tag, indexDef{
				Name: "idx_customers_email", Table: "customers", Columns: []string{"email"},
			})
		},
		Down: func(ctx context.Context, db Executor, tag dialect.Tag) error {
			if err := dropIndex(ctx, db, tag, "customers", "idx_customers_email"); err != nil {
				return err
			}
			if tag == dialect.SQLite {
				return rebuildCustomersWithoutEmail(ctx, db)
			}
			exists, err := columnExists(ctx, db, tag, "customers", "email")
			if err != nil {
				return err
			}
			if !exists {
				return nil
			}
			stmt := fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s",
				dialect.QuoteIdent(tag, "customers"), dialect.QuoteIdent(tag, "email"))
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to drop email column: %w", err)
			}
			return nil
		},
	}
}

// rebuildCustomersWithoutEmail drops customers.email on SQLite using the
// table-rebuild pattern: create-new, copy, drop-old, rename, re-create
// indexes. Foreign-key enforcement is toggled off around the sequence so the
// sales FK does not reject the intermediate states.
func rebuildCustomersWithoutEmail(ctx context.Context, db Executor) error {
	tag := dialect.SQLite
	q := func(name string) string { return dialect.QuoteIdent(tag, name) }

	stmts := []string{
		"PRAGMA foreign_keys=OFF",
		fmt.Sprintf(`CREATE TABLE %s (
	%s %s,
	%s TEXT NOT NULL,
	%s TEXT NOT NULL,
	%s TEXT,
	%s %s
)`, q("customers_new"),
			q("id"), pkAutoType(tag),
			q("code"),
			q("name"),
			q("phone"),
			q("created_at"), timestampType(tag)),
		fmt.Sprintf("INSERT INTO %s (%s, %s, %s, %s, %s) SELECT %s, %s, %s, %s, %s FROM %s",
			q("customers_new"), q("id"), q("code"), q("name"), q("phone"), q("created_at"),
			q("id"), q("code"), q("name"), q("phone"), q("created_at"), q("customers")),
		"DROP TABLE " + q("customers"),
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s", q("customers_new"), q("customers")),
		fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s)", q("ux_customers_code"), q("customers"), q("code")),
		"PRAGMA foreign_keys=ON",
	}
	return execAll(ctx, db, stmts)
}
