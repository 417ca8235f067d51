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

// InitialSchemaID is the first unit in the catalog. The integrity probe's
// core table set is derived from exactly this unit (plus the history table);
// tables added by later units must never join that set.
const InitialSchemaID = "20240112090000_initial_schema"

// InitialTables are the tables created by the initial schema unit, in
// creation order.
var InitialTables = []string{"customers", "products", "sales", "sale_lines"}

var initialIndexes = []indexDef{
	{Name: "ux_customers_code", Table: "customers", Columns: []string{"code"}, Unique: true},
	{Name: "ux_products_sku", Table: "products", Columns: []string{"sku"}, Unique: true},
	{Name: "idx_sales_customer", Table: "sales", Columns: []string{"customer_id"}},
	{Name: "idx_sale_lines_sale", Table: "sale_lines", Columns: []string{"sale_id"}},
	{Name: "idx_sale_lines_product", Table: "sale_lines", Columns: []string{"product_id"}},
}

func initialSchemaUnit() Unit {
	return Unit{
		ID:          InitialSchemaID,
		Description: "branch point-of-sale base schema",
		Up: func(ctx context.Context, db Executor, tag dialect.Tag) error {
			if err := execAll(ctx, db, initialTableStatements(tag)); err != nil {
				return err
			}
			for _, idx := range initialIndexes {
				if err := createIndex(ctx, db, tag, idx); err != nil {
					return err
				}
			}
			return nil
		},
		Down: func(ctx context.Context, db Executor, tag dialect.Tag) error {
			q := func(name string) string { return dialect.QuoteIdent(tag, name) }
			// Reverse creation order so FK references drop cleanly.
			stmts := []string{
				"DROP TABLE IF EXISTS " + q("sale_lines"),
				"DROP TABLE IF EXISTS " + q("sales"),
				"DROP TABLE IF EXISTS " + q("products"),
				"DROP TABLE IF EXISTS " + q("customers"),
			}
			return execAll(ctx, db, stmts)
		},
	}
}

// initialTableStatements renders the base schema DDL for one backend.
// Every identifier routes through dialect.QuoteIdent; per-backend column
// types come from the small helpers below.
func initialTableStatements(tag dialect.Tag) []string {
	q := func(name string) string { return dialect.QuoteIdent(tag, name) }

	// Guard table creation so a partially applied forward run is retryable.
	// SQL Server has no CREATE TABLE IF NOT EXISTS; its statements are
	// wrapped in OBJECT_ID guards below instead.
	create := "CREATE TABLE IF NOT EXISTS %s ("
	if tag == dialect.SQLServer {
		create = "CREATE TABLE %s ("
	}

	createCustomers := fmt.Sprintf(create+`
	%s %s,
	%s %s NOT NULL,
	%s %s NOT NULL,
	%s %s,
	%s %s
)`, q("customers"),
		q("id"), pkAutoType(tag),
		q("code"), textType(tag, 20),
		q("name"), textType(tag, 200),
		q("phone"), textType(tag, 30),
		q("created_at"), timestampType(tag))

	createProducts := fmt.Sprintf(create+`
	%s %s,
	%s %s NOT NULL,
	%s %s NOT NULL,
	%s DECIMAL(12,2) NOT NULL DEFAULT 0,
	%s INT NOT NULL DEFAULT 0
)`, q("products"),
		q("id"), pkAutoType(tag),
		q("sku"), textType(tag, 40),
		q("name"), textType(tag, 200),
		q("unit_price"),
		q("stock_qty"))

	createSales := fmt.Sprintf(create+`
	%s %s,
	%s BIGINT,
	%s %s NOT NULL DEFAULT 'pending',
	%s DECIMAL(12,2) NOT NULL DEFAULT 0,
	%s %s,
	FOREIGN KEY (%s) REFERENCES %s (%s)
)`, q("sales"),
		q("id"), pkAutoType(tag),
		q("customer_id"),
		q("status"), textType(tag, 20),
		q("total"),
		q("created_at"), timestampType(tag),
		q("customer_id"), q("customers"), q("id"))

	createSaleLines := fmt.Sprintf(create+`
	%s %s,
	%s BIGINT NOT NULL,
	%s BIGINT NOT NULL,
	%s INT NOT NULL,
	%s DECIMAL(12,2) NOT NULL,
	FOREIGN KEY (%s) REFERENCES %s (%s),
	FOREIGN KEY (%s) REFERENCES %s (%s)
)`, q("sale_lines"),
		q("id"), pkAutoType(tag),
		q("sale_id"),
		q("product_id"),
		q("qty"),
		q("unit_price"),
		q("sale_id"), q("sales"), q("id"),
		q("product_id"), q("products"), q("id"))

	stmts := []string{createCustomers, createProducts, createSales, createSaleLines}
	if tag == dialect.SQLServer {
		for i, s := range stmts {
			stmts[i] = guardCreateTableMSSQL(InitialTables[i], s)
		}
	}
	return stmts
}

// pkAutoType returns the auto-incrementing primary key column type.
func pkAutoType(tag dialect.Tag) string {
	switch tag {
	case dialect.SQLite:
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	case dialect.MySQL:
		return "BIGINT PRIMARY KEY AUTO_INCREMENT"
	case dialect.Postgres:
		return "BIGSERIAL PRIMARY KEY"
	case dialect.SQLServer:
		return "BIGINT IDENTITY(1,1) PRIMARY KEY"
	default:
		return "BIGINT PRIMARY KEY"
	}
}

// textType returns a length-bounded text column type.
func textType(tag dialect.Tag, n int) string {
	switch tag {
	case dialect.SQLite:
		return "TEXT"
	case dialect.SQLServer:
		return fmt.Sprintf("NVARCHAR(%d)", n)
	default:
		return fmt.Sprintf("VARCHAR(%d)", n)
	}
}

// timestampType returns a creation-timestamp column with a server-side default.
func timestampType(tag dialect.Tag) string {
	switch tag {
	case dialect.Postgres:
		return "TIMESTAMPTZ NOT NULL DEFAULT NOW()"
	case dialect.SQLServer:
		return "DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME()"
	default:
		return "TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP"
	}
}

// guardCreateTableMSSQL wraps a CREATE TABLE in an existence guard.
func guardCreateTableMSSQL(table, create string) string {
	return fmt.Sprintf("IF OBJECT_ID('%s', 'U') IS NULL\nBEGIN\n%s\nEND", table, create)
}
