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

// LoyaltyAccountsID introduces the loyalty_accounts table. This table is
// deliberately absent from the integrity probe's core set: rolling this unit
// back must not fail schema validation.
const LoyaltyAccountsID = "20240307153000_loyalty_accounts"

func loyaltyAccountsUnit() Unit {
	return Unit{
		ID:          LoyaltyAccountsID,
		Description: "customer loyalty point balances",
		Up: func(ctx context.Context, db Executor, tag dialect.Tag) error {
			q := func(name string) string { return dialect.QuoteIdent(tag, name) }

			create := "CREATE TABLE IF NOT EXISTS %s ("
			if tag == dialect.SQLServer {
				create = "CREATE TABLE %s ("
			}
			stmt := fmt.Sprintf(create+`
	%s %s,
	%s BIGINT NOT NULL,
	%s INT NOT NULL DEFAULT 0,
	%s %s,
	FOREIGN KEY (%s) REFERENCES %s (%s)
)`, q("loyalty_accounts"),
				q("id"), pkAutoType(tag),
				q("customer_id"),
				q("points"),
				q("updated_at"), timestampType(tag),
				q("customer_id"), q("customers"), q("id"))
			if tag == dialect.SQLServer {
				stmt = guardCreateTableMSSQL("loyalty_accounts", stmt)
			}
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to create loyalty_accounts: %w", err)
			}
			return createIndex(ctx, db, tag, indexDef{
				Name: "ux_loyalty_customer", Table: "loyalty_accounts", Columns: []string{"customer_id"}, Unique: true,
			})
		},
		Down: func(ctx context.Context, db Executor, tag dialect.Tag) error {
			_, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+dialect.QuoteIdent(tag, "loyalty_accounts"))
			return err
		},
	}
}
